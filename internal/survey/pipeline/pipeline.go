package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/banshee-data/sonar.survey/internal/config"
	"github.com/banshee-data/sonar.survey/internal/fsutil"
	"github.com/banshee-data/sonar.survey/internal/monitoring"
	"github.com/banshee-data/sonar.survey/internal/survey"
	"github.com/banshee-data/sonar.survey/internal/survey/fusion"
	"github.com/banshee-data/sonar.survey/internal/survey/geolocate"
	"github.com/banshee-data/sonar.survey/internal/survey/projection"
	"github.com/banshee-data/sonar.survey/internal/survey/records"
	"github.com/banshee-data/sonar.survey/internal/timeutil"
	"github.com/banshee-data/sonar.survey/internal/version"
)

// Stream names used in diagnostics and Result.Skipped.
const (
	StreamSonar        = "sonar"
	StreamGNSS         = "gnss"
	StreamSpeedOfSound = "speed_of_sound"
)

// Sink receives a finished run.
type Sink interface {
	Write(ctx context.Context, res *Result) error
}

// Result is everything a run produced.
type Result struct {
	RunID     uuid.UUID
	StartedAt time.Time
	Duration  time.Duration
	Version   string
	Config    *config.SurveyConfig

	// Lines are located lines in sonar order.
	Lines []survey.LocatedLine
	// TimeDiff is the offset applied to re-base sonar timestamps.
	TimeDiff decimal.Decimal
	// Skipped reports, per stream, whether rows were dropped or the source
	// was missing.
	Skipped     map[string]bool
	Fusion      []fusion.Result
	RangeErrors []*survey.RangeError
	NotFused    int
	Diagnostics []monitoring.Entry
	Summary     Summary
}

// Runner executes survey runs against a file system.
type Runner struct {
	fs    fsutil.FileSystem
	proj  projection.Projector
	sinks []Sink
	clock timeutil.Clock
}

// NewRunner creates a runner. A nil file system reads from disk and a nil
// projector uses UTM with a private zone cache.
func NewRunner(filesystem fsutil.FileSystem, proj projection.Projector, sinks ...Sink) *Runner {
	if filesystem == nil {
		filesystem = fsutil.OSFileSystem{}
	}
	if proj == nil {
		proj = projection.NewUTM(projection.NewZoneCache())
	}
	return &Runner{fs: filesystem, proj: proj, sinks: sinks, clock: timeutil.RealClock{}}
}

// SetClock replaces the clock used to stamp runs.
func (r *Runner) SetClock(clock timeutil.Clock) {
	r.clock = clock
}

type auxSource struct {
	name      string
	path      string
	frequency decimal.Decimal
	headers   []string
}

// Run reads, fuses and locates one survey, then writes the result to every
// sink in order. A sink error is returned together with the result.
func (r *Runner) Run(ctx context.Context, cfg *config.SurveyConfig) (*Result, error) {
	if cfg == nil {
		cfg = config.EmptySurveyConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	diag := monitoring.NewDiagnostics()
	started := r.clock.Now()
	res := &Result{
		RunID:     uuid.New(),
		StartedAt: started.UTC(),
		Version:   version.String(),
		Config:    cfg,
		Skipped:   make(map[string]bool, 3),
	}
	start := cfg.GetStartTime()
	reader := records.NewReader(r.fs, diag)

	monitoring.Logf("[pipeline] run %s (%s): collecting data", res.RunID, res.Version)
	sonar, err := reader.ReadSonar(StreamSonar, cfg.GetSonarPath(), start)
	if err != nil {
		return nil, err
	}
	res.Skipped[StreamSonar] = sonar.Skipped
	res.TimeDiff = sonar.TimeDiff
	lines := sonar.Lines

	fuser := fusion.NewEngine(fusion.Options{FallbackToNearest: cfg.GetFallbackToNearest()}, diag)
	sources := []auxSource{
		{StreamGNSS, cfg.GetGNSSPath(), cfg.GetGNSSFrequency(), cfg.GetGNSSHeaders()},
		{StreamSpeedOfSound, cfg.GetSpeedOfSoundPath(), cfg.GetSpeedOfSoundFrequency(), cfg.GetSpeedOfSoundHeaders()},
	}
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stream, err := reader.ReadStream(src.name, src.path, start, src.frequency, src.headers)
		if err != nil {
			return nil, err
		}
		res.Skipped[src.name] = stream.Skipped

		fused, err := fuser.Fuse(lines, stream)
		if err != nil {
			return nil, fmt.Errorf("fuse %s: %w", src.name, err)
		}
		monitoring.Logf("[pipeline] fused %s using %s strategy: %d matched, %d fallbacks, %d unmatched",
			src.name, fused.Strategy, fused.Matched, fused.Fallbacks, fused.Unmatched)
		res.Fusion = append(res.Fusion, fused)
	}

	monitoring.Logf("[pipeline] run %s: calculating coordinates for %d sonar lines", res.RunID, len(lines))
	geo := geolocate.NewEngine(r.proj, geolocate.Options{
		SampleFrequency:    cfg.GetSonarSampleFrequency(),
		Workers:            cfg.GetGeolocationWorkers(),
		HaltOnInvalidRange: cfg.GetHaltOnInvalidRange(),
	}, diag)
	located, err := geo.Locate(ctx, lines)
	if err != nil {
		return nil, err
	}
	res.Lines = located.Lines
	res.RangeErrors = located.RangeErrors
	res.NotFused = located.NotFused
	res.Summary = Summarize(res.Lines)
	res.Diagnostics = diag.Snapshot()
	res.Duration = r.clock.Since(started)

	for _, sink := range r.sinks {
		if err := sink.Write(ctx, res); err != nil {
			return res, fmt.Errorf("write run %s: %w", res.RunID, err)
		}
	}

	monitoring.Logf("[pipeline] run %s: finished in %s, %d points in %d lines (%d diagnostics)",
		res.RunID, res.Duration, res.Summary.Points, res.Summary.Lines, diag.Total())
	return res, nil
}
