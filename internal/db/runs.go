package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/banshee-data/sonar.survey/internal/monitoring"
	"github.com/banshee-data/sonar.survey/internal/survey"
	"github.com/banshee-data/sonar.survey/internal/survey/pipeline"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// Run is the stored summary of a pipeline run.
type Run struct {
	ID          uuid.UUID
	StartedAt   time.Time
	Duration    time.Duration
	Version     string
	ConfigJSON  string
	TimeDiff    decimal.Decimal
	Lines       int
	Points      int
	NotFused    int
	RangeErrors int

	// Altitude statistics are invalid when the run located no points.
	MinAltitude    sql.NullFloat64
	MaxAltitude    sql.NullFloat64
	MeanAltitude   sql.NullFloat64
	StdDevAltitude sql.NullFloat64

	Zones       []string
	Skipped     map[string]bool
	Diagnostics []monitoring.Entry
}

func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// SaveRun stores a run with all of its located lines and points in a single
// transaction.
func (db *DB) SaveRun(ctx context.Context, res *pipeline.Result) error {
	if res == nil {
		return errors.New("save run: nil result")
	}

	configJSON, err := json.Marshal(res.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	zones := res.Summary.Zones
	if zones == nil {
		zones = []string{}
	}
	zonesJSON, err := json.Marshal(zones)
	if err != nil {
		return fmt.Errorf("failed to encode zones: %w", err)
	}
	skippedJSON, err := json.Marshal(res.Skipped)
	if err != nil {
		return fmt.Errorf("failed to encode skipped streams: %w", err)
	}
	diagnostics := res.Diagnostics
	if diagnostics == nil {
		diagnostics = []monitoring.Entry{}
	}
	diagJSON, err := json.Marshal(diagnostics)
	if err != nil {
		return fmt.Errorf("failed to encode diagnostics: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	s := res.Summary
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, started_at, duration_ms, version, config_json, time_diff, line_count,
			point_count, not_fused, range_errors, min_altitude, max_altitude, mean_altitude,
			stddev_altitude, zones_json, skipped_json, diagnostics_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID.String(), res.StartedAt.UTC().Format(time.RFC3339Nano),
		res.Duration.Milliseconds(), res.Version, string(configJSON),
		res.TimeDiff.String(), s.Lines, s.Points, res.NotFused, len(res.RangeErrors),
		nullFloat(s.MinAltitude), nullFloat(s.MaxAltitude), nullFloat(s.MeanAltitude),
		nullFloat(s.StdDevAltitude), string(zonesJSON), string(skippedJSON), string(diagJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", res.RunID, err)
	}

	lineStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO located_lines (run_id, line_index, time) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare line insert: %w", err)
	}
	defer lineStmt.Close()

	pointStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO located_points (run_id, line_index, point_index, x, y, zone, altitude)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare point insert: %w", err)
	}
	defer pointStmt.Close()

	runID := res.RunID.String()
	for i, line := range res.Lines {
		if _, err := lineStmt.ExecContext(ctx, runID, i, line.Time.String()); err != nil {
			return fmt.Errorf("failed to insert line %d: %w", i, err)
		}
		for j, p := range line.Points {
			if _, err := pointStmt.ExecContext(ctx, runID, i, j,
				p.X.String(), p.Y.String(), p.Zone, p.Altitude.String()); err != nil {
				return fmt.Errorf("failed to insert point %d of line %d: %w", j, i, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", res.RunID, err)
	}
	monitoring.Logf("[db] stored run %s: %d lines, %d points", res.RunID, s.Lines, s.Points)
	return nil
}

// Sink adapts the store to the pipeline.
func (db *DB) Sink() pipeline.Sink {
	return runSink{db}
}

type runSink struct {
	db *DB
}

func (s runSink) Write(ctx context.Context, res *pipeline.Result) error {
	return s.db.SaveRun(ctx, res)
}

const runColumns = `
	run_id, started_at, duration_ms, version, config_json, time_diff, line_count, point_count,
	not_fused, range_errors, min_altitude, max_altitude, mean_altitude,
	stddev_altitude, zones_json, skipped_json, diagnostics_json`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r                                      Run
		id, startedAt, timeDiff                string
		zonesJSON, skippedJSON, diagnosticJSON string
		durationMs                             int64
	)
	if err := row.Scan(
		&id, &startedAt, &durationMs, &r.Version, &r.ConfigJSON, &timeDiff, &r.Lines, &r.Points,
		&r.NotFused, &r.RangeErrors, &r.MinAltitude, &r.MaxAltitude, &r.MeanAltitude,
		&r.StdDevAltitude, &zonesJSON, &skippedJSON, &diagnosticJSON,
	); err != nil {
		return nil, err
	}

	r.Duration = time.Duration(durationMs) * time.Millisecond
	var err error
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", id, err)
	}
	if r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	if r.TimeDiff, err = decimal.NewFromString(timeDiff); err != nil {
		return nil, fmt.Errorf("invalid time_diff %q: %w", timeDiff, err)
	}
	if err := json.Unmarshal([]byte(zonesJSON), &r.Zones); err != nil {
		return nil, fmt.Errorf("invalid zones_json: %w", err)
	}
	if err := json.Unmarshal([]byte(skippedJSON), &r.Skipped); err != nil {
		return nil, fmt.Errorf("invalid skipped_json: %w", err)
	}
	if err := json.Unmarshal([]byte(diagnosticJSON), &r.Diagnostics); err != nil {
		return nil, fmt.Errorf("invalid diagnostics_json: %w", err)
	}
	return &r, nil
}

// GetRun returns the stored summary of one run.
func (db *DB) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id.String())
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return r, nil
}

// ListRuns returns every stored run, most recent first.
func (db *DB) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// LocatedLines reloads the located lines of a run in their original order.
// Lines without points are preserved.
func (db *DB) LocatedLines(ctx context.Context, id uuid.UUID) ([]survey.LocatedLine, error) {
	if _, err := db.GetRun(ctx, id); err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT l.line_index, l.time, p.x, p.y, p.zone, p.altitude
		FROM located_lines l
		LEFT JOIN located_points p
			ON p.run_id = l.run_id AND p.line_index = l.line_index
		WHERE l.run_id = ?
		ORDER BY l.line_index, p.point_index`, id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query located lines: %w", err)
	}
	defer rows.Close()

	var lines []survey.LocatedLine
	last := -1
	for rows.Next() {
		var (
			index          int
			lineTime       string
			x, y, altitude sql.NullString
			zone           sql.NullString
		)
		if err := rows.Scan(&index, &lineTime, &x, &y, &zone, &altitude); err != nil {
			return nil, fmt.Errorf("failed to scan located point: %w", err)
		}
		if index != last {
			t, err := decimal.NewFromString(lineTime)
			if err != nil {
				return nil, fmt.Errorf("invalid time %q on line %d: %w", lineTime, index, err)
			}
			lines = append(lines, survey.LocatedLine{Time: t})
			last = index
		}
		if !x.Valid {
			continue
		}

		p := survey.LocatedPoint{Zone: zone.String}
		if p.X, err = decimal.NewFromString(x.String); err != nil {
			return nil, fmt.Errorf("invalid x on line %d: %w", index, err)
		}
		if p.Y, err = decimal.NewFromString(y.String); err != nil {
			return nil, fmt.Errorf("invalid y on line %d: %w", index, err)
		}
		if p.Altitude, err = decimal.NewFromString(altitude.String); err != nil {
			return nil, fmt.Errorf("invalid altitude on line %d: %w", index, err)
		}
		cur := &lines[len(lines)-1]
		cur.Points = append(cur.Points, p)
	}
	return lines, rows.Err()
}

// DeleteRun removes a run and its located data.
func (db *DB) DeleteRun(ctx context.Context, id uuid.UUID) error {
	result, err := db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}
