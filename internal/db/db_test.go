package db

import (
	"context"
	"errors"
	"io/fs"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/sonar.survey/internal/config"
	"github.com/banshee-data/sonar.survey/internal/monitoring"
	"github.com/banshee-data/sonar.survey/internal/survey"
	"github.com/banshee-data/sonar.survey/internal/survey/pipeline"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })

	db, err := OpenDB(filepath.Join(t.TempDir(), "survey.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleResult() *pipeline.Result {
	lines := []survey.LocatedLine{
		{Time: d("0"), Points: []survey.LocatedPoint{
			{X: d("517825.155"), Y: d("6350350.213"), Zone: "40V", Altitude: d("-740")},
			{X: d("517826.5"), Y: d("6350349.75"), Zone: "40V", Altitude: d("-140.25")},
		}},
		{Time: d("0.02")},
		{Time: d("0.04"), Points: []survey.LocatedPoint{
			{X: d("517830"), Y: d("6350351"), Zone: "40V", Altitude: d("-12.5")},
		}},
	}
	return &pipeline.Result{
		RunID:     uuid.New(),
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Version:   "sonar-survey test",
		Config:    config.DefaultSurveyConfig(),
		Lines:     lines,
		TimeDiff:  d("1000.125"),
		Skipped:   map[string]bool{"sonar": false, "gnss": true, "speed_of_sound": false},
		RangeErrors: []*survey.RangeError{
			{Time: d("0.02"), Detection: 0, SampleIndex: d("-1"), SpeedOfSound: d("1500")},
		},
		NotFused: 2,
		Diagnostics: []monitoring.Entry{
			{Stream: "gnss", Kind: monitoring.KindRecordCorrupt, Count: 1},
		},
		Summary: pipeline.Summarize(lines),
	}
}

func TestOpenDB_PragmasAndSchema(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	assert.Equal(t, 1, foreignKeys)

	version, dirty, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(2), version)

	for _, table := range []string{"runs", "located_lines", "located_points"} {
		var n int
		require.NoError(t, db.QueryRow(
			`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n))
		assert.Equal(t, 1, n, "table %s", table)
	}
}

func TestOpenDB_ReopenIsNoChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "survey.db")
	original := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.Logf = original })

	first, err := OpenDB(path)
	require.NoError(t, err)
	res := sampleResult()
	require.NoError(t, first.SaveRun(context.Background(), res))
	require.NoError(t, first.Close())

	second, err := OpenDB(path)
	require.NoError(t, err)
	defer second.Close()
	_, err = second.GetRun(context.Background(), res.RunID)
	assert.NoError(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	ups, err := fs.Glob(MigrationsFS(), "*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(MigrationsFS(), "*.down.sql")
	require.NoError(t, err)
	assert.Len(t, ups, 2)
	assert.Len(t, downs, len(ups), "every up migration has a down")
}

func TestMigrateDown(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.MigrateDown(MigrationsFS()))

	version, _, err := db.MigrateVersion(MigrationsFS())
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	var n int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='located_points'`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, db.MigrateUp(MigrationsFS()))
}

func TestSaveRun_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	res := sampleResult()

	require.NoError(t, db.SaveRun(ctx, res))

	run, err := db.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, run.ID)
	assert.True(t, run.StartedAt.Equal(res.StartedAt))
	assert.Equal(t, 1500*time.Millisecond, run.Duration)
	assert.Equal(t, "sonar-survey test", run.Version)
	assert.True(t, run.TimeDiff.Equal(d("1000.125")))
	assert.Equal(t, 3, run.Lines)
	assert.Equal(t, 3, run.Points)
	assert.Equal(t, 2, run.NotFused)
	assert.Equal(t, 1, run.RangeErrors)
	assert.Equal(t, []string{"40V"}, run.Zones)
	assert.Equal(t, res.Skipped, run.Skipped)
	assert.Equal(t, res.Diagnostics, run.Diagnostics)
	require.True(t, run.MinAltitude.Valid)
	assert.Equal(t, -740.0, run.MinAltitude.Float64)
	assert.Equal(t, -12.5, run.MaxAltitude.Float64)
	assert.Contains(t, run.ConfigJSON, `"halt_on_invalid_range":true`)

	lines, err := db.LocatedLines(ctx, res.RunID)
	require.NoError(t, err)
	if diff := cmp.Diff(res.Lines, lines, decimalEqual); diff != "" {
		t.Errorf("located lines mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveRun_DecimalsKeepPrecision(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	res := sampleResult()
	res.Lines = []survey.LocatedLine{{Time: d("0.1"), Points: []survey.LocatedPoint{
		{X: d("500000.123456789012345678"), Y: d("1.000000000000000001"), Zone: "1C", Altitude: d("-0.3")},
	}}}
	res.Summary = pipeline.Summarize(res.Lines)
	require.NoError(t, db.SaveRun(ctx, res))

	lines, err := db.LocatedLines(ctx, res.RunID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "500000.123456789012345678", lines[0].Points[0].X.String())
	assert.Equal(t, "1.000000000000000001", lines[0].Points[0].Y.String())
}

func TestSaveRun_EmptyRunHasNullStatistics(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	res := sampleResult()
	res.Lines = nil
	res.Diagnostics = nil
	res.Summary = pipeline.Summarize(nil)
	require.True(t, math.IsNaN(res.Summary.MeanAltitude))

	require.NoError(t, db.SaveRun(ctx, res))
	run, err := db.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.False(t, run.MeanAltitude.Valid)
	assert.False(t, run.StdDevAltitude.Valid)
	assert.Empty(t, run.Zones)
	assert.Empty(t, run.Diagnostics)

	lines, err := db.LocatedLines(ctx, res.RunID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestSaveRun_DuplicateIDRollsBack(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	res := sampleResult()
	require.NoError(t, db.SaveRun(ctx, res))

	err := db.SaveRun(ctx, res)
	require.Error(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM located_points WHERE run_id = ?`, res.RunID.String()).Scan(&n))
	assert.Equal(t, 3, n)
}

func TestSaveRun_NilResult(t *testing.T) {
	db := setupTestDB(t)
	assert.Error(t, db.SaveRun(context.Background(), nil))
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.GetRun(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrRunNotFound))

	_, err = db.LocatedLines(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRunsAndDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	older := sampleResult()
	newer := sampleResult()
	newer.StartedAt = older.StartedAt.Add(time.Hour)
	require.NoError(t, db.SaveRun(ctx, older))
	require.NoError(t, db.SaveRun(ctx, newer))

	runs, err := db.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.RunID, runs[0].ID)
	assert.Equal(t, older.RunID, runs[1].ID)

	require.NoError(t, db.DeleteRun(ctx, older.RunID))
	assert.ErrorIs(t, db.DeleteRun(ctx, older.RunID), ErrRunNotFound)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM located_points WHERE run_id = ?`, older.RunID.String()).Scan(&n))
	assert.Zero(t, n, "points cascade with their run")
}

func TestSink_StoresPipelineRun(t *testing.T) {
	db := setupTestDB(t)
	res := sampleResult()
	require.NoError(t, db.Sink().Write(context.Background(), res))

	_, err := db.GetRun(context.Background(), res.RunID)
	assert.NoError(t, err)
}
