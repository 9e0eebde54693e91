package geolocate

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/sonar.survey/internal/monitoring"
	"github.com/banshee-data/sonar.survey/internal/survey"
	"github.com/banshee-data/sonar.survey/internal/survey/projection"
)

const diagStream = "geolocate"

// Options configures an Engine.
type Options struct {
	// SampleFrequency of the sonar in Hz. Zero means DefaultSampleFrequency.
	SampleFrequency decimal.Decimal
	// Workers bounds parallel line processing; values below 1 mean 1.
	Workers int
	// HaltOnInvalidRange aborts Locate on the first invalid detection.
	// Otherwise the detection is dropped and reported in Result.RangeErrors.
	HaltOnInvalidRange bool
}

// Engine locates fused sonar lines.
type Engine struct {
	proj projection.Projector
	opts Options
	diag *monitoring.Diagnostics
}

// NewEngine creates an engine. The projector carries its own zone cache and
// must be safe for concurrent use when Workers > 1. diag may be nil.
func NewEngine(proj projection.Projector, opts Options, diag *monitoring.Diagnostics) *Engine {
	if opts.SampleFrequency.IsZero() {
		opts.SampleFrequency = decimal.NewFromInt(DefaultSampleFrequency)
	}
	return &Engine{proj: proj, opts: opts, diag: diag}
}

// LocateLine computes every detection of a fused line. Detections whose range
// is invalid are left out of the returned line and come back as RangeErrors.
// A line missing fused fields returns a *survey.NotFusedError.
func (e *Engine) LocateLine(line survey.SonarLine) (survey.LocatedLine, []*survey.RangeError, error) {
	if missing := line.Missing(survey.GeolocationFields); len(missing) > 0 {
		return survey.LocatedLine{}, nil, &survey.NotFusedError{Time: line.Time, Missing: missing}
	}
	f := line.Fields

	base, err := e.proj.Project(
		f[survey.FieldLongitude].InexactFloat64(),
		f[survey.FieldLatitude].InexactFloat64(),
	)
	if err != nil {
		return survey.LocatedLine{}, nil, fmt.Errorf("project line at t=%s: %w", line.Time, err)
	}
	baseX := decimal.NewFromFloat(base.X)
	baseY := decimal.NewFromFloat(base.Y)

	att := NewAttitude(f[survey.FieldRoll], f[survey.FieldPitch], f[survey.FieldHeading])
	speed := f[survey.FieldSpeed]
	altitude := f[survey.FieldAltitude]

	out := survey.LocatedLine{Time: line.Time, Points: make([]survey.LocatedPoint, 0, len(line.Detections))}
	var rangeErrs []*survey.RangeError
	for i, det := range line.Detections {
		distance, err := Distance(det.SampleIndex, speed, e.opts.SampleFrequency)
		if err != nil {
			var re *survey.RangeError
			if errors.As(err, &re) {
				re.Time = line.Time
				re.Detection = i
				rangeErrs = append(rangeErrs, re)
				continue
			}
			return survey.LocatedLine{}, nil, err
		}

		out.Points = append(out.Points, survey.LocatedPoint{
			X:        baseX.Add(HorizontalOffset(distance, det.Angle, att)),
			Y:        baseY.Add(VerticalOffset(distance, det.Angle, att)),
			Zone:     base.Zone,
			Altitude: PointAltitude(distance, det.Angle, altitude),
		})
	}
	return out, rangeErrs, nil
}

// Result is the output of Locate.
type Result struct {
	// Lines are in input order, one per fused input line.
	Lines       []survey.LocatedLine
	RangeErrors []*survey.RangeError
	NotFused    int
}

type lineOutcome struct {
	located   survey.LocatedLine
	rangeErrs []*survey.RangeError
	notFused  bool
}

// Locate runs LocateLine over every line. Lines missing fused fields are
// skipped with a diagnostic. Range errors abort the run when
// HaltOnInvalidRange is set.
func (e *Engine) Locate(ctx context.Context, lines []survey.SonarLine) (Result, error) {
	outcomes := make([]lineOutcome, len(lines))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.opts.Workers, 1))

	for i := range lines {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return e.locateInto(&outcomes[i], i, lines[i])
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	res := Result{Lines: make([]survey.LocatedLine, 0, len(lines))}
	for _, o := range outcomes {
		if o.notFused {
			res.NotFused++
			continue
		}
		res.Lines = append(res.Lines, o.located)
		res.RangeErrors = append(res.RangeErrors, o.rangeErrs...)
	}
	return res, nil
}

func (e *Engine) locateInto(out *lineOutcome, index int, line survey.SonarLine) error {
	located, rangeErrs, err := e.LocateLine(line)
	if err != nil {
		if errors.Is(err, survey.ErrNotFused) {
			e.diag.Report(diagStream, monitoring.KindNotFused, "sonar line %d: %v", index, err)
			out.notFused = true
			return nil
		}
		return fmt.Errorf("geolocate line %d: %w", index, err)
	}

	if len(rangeErrs) > 0 && e.opts.HaltOnInvalidRange {
		return fmt.Errorf("geolocate line %d: %w", index, rangeErrs[0])
	}
	for _, re := range rangeErrs {
		e.diag.Report(diagStream, monitoring.KindInvalidRange, "sonar line %d: %v", index, re)
	}

	out.located = located
	out.rangeErrs = rangeErrs
	return nil
}
