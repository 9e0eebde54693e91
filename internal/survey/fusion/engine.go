package fusion

import (
	"github.com/banshee-data/sonar.survey/internal/monitoring"
	"github.com/banshee-data/sonar.survey/internal/survey"
	"github.com/banshee-data/sonar.survey/internal/survey/records"
)

// Options tunes fusion behaviour.
type Options struct {
	// FallbackToNearest resolves an out-of-range index with a nearest scan
	// instead of failing the run.
	FallbackToNearest bool
}

// Result summarizes one fusion pass.
type Result struct {
	Stream    string
	Strategy  Strategy
	Matched   int
	Fallbacks int
	Unmatched int
}

// Engine runs fusion passes.
type Engine struct {
	opts Options
	diag *monitoring.Diagnostics
}

// NewEngine creates a fusion engine. diag may be nil.
func NewEngine(opts Options, diag *monitoring.Diagnostics) *Engine {
	return &Engine{opts: opts, diag: diag}
}

// Fuse writes aux's header fields onto every line in place. Passes are
// independent, so calling Fuse once per auxiliary stream accumulates fields.
// An out-of-range index returns a *survey.IndexError unless the engine falls
// back to the nearest scan.
func (e *Engine) Fuse(lines []survey.SonarLine, aux *records.Stream) (Result, error) {
	res := Result{
		Stream:   aux.Name,
		Strategy: ChooseStrategy(aux.Skipped, aux.Frequency),
	}

	if len(aux.Records) == 0 {
		if len(lines) > 0 {
			e.diag.Report(aux.Name, monitoring.KindUnmatched,
				"no records to fuse, %d sonar lines left without %v", len(lines), aux.Headers)
		}
		res.Unmatched = len(lines)
		return res, nil
	}

	for i := range lines {
		line := &lines[i]

		var pos int
		if res.Strategy == StrategyIndex {
			idx, at, ok := IndexMatch(aux.Records, line.Time, aux.Frequency)
			if !ok {
				if !e.opts.FallbackToNearest {
					return res, &survey.IndexError{
						Stream: aux.Name,
						Line:   i,
						Time:   line.Time,
						Index:  idx,
						Len:    len(aux.Records),
					}
				}
				pos, _ = NearestMatch(aux.Records, line.Time)
				res.Fallbacks++
				e.diag.Report(aux.Name, monitoring.KindUnmatched,
					"sonar line %d at t=%s: index %s out of range, using nearest record %d", i, line.Time, idx, pos)
			} else {
				pos = at
			}
		} else {
			pos, _ = NearestMatch(aux.Records, line.Time)
		}

		rec := aux.Records[pos]
		for _, name := range aux.Headers {
			if v, ok := rec.Fields[name]; ok {
				line.Set(name, v)
			}
		}
		res.Matched++
	}
	return res, nil
}
