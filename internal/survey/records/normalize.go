package records

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/banshee-data/sonar.survey/internal/survey"
)

// Flat is a normalized frequency-sampled stream.
type Flat struct {
	Records  []survey.FlatRecord
	Rejected []Rejection
}

// Skipped reports whether any row was dropped.
func (f Flat) Skipped() bool { return len(f.Rejected) > 0 }

// NormalizeFlat assigns time = start + rowIndex/frequency to every valid row.
// Rejected rows still consume their index so later rows keep their place on
// the time axis.
func NormalizeFlat(rows []Row, start, frequency decimal.Decimal, headers []string) (Flat, error) {
	if !frequency.IsPositive() {
		return Flat{}, fmt.Errorf("%w: %s", survey.ErrInvalidFrequency, frequency)
	}

	out := Flat{Records: make([]survey.FlatRecord, 0, len(rows))}
	for i, row := range rows {
		values, err := ParseFlat(row.Fields, headers)
		if err != nil {
			out.Rejected = append(out.Rejected, Rejection{Line: row.Line, Err: err})
			continue
		}
		out.Records = append(out.Records, survey.FlatRecord{
			Time:   start.Add(decimal.NewFromInt(int64(i)).Div(frequency)),
			Fields: values,
		})
	}
	return out, nil
}

// Sonar is a normalized sonar stream.
type Sonar struct {
	Lines []survey.SonarLine
	// TimeDiff is the offset subtracted from every raw timestamp.
	TimeDiff     decimal.Decimal
	Rejected     []Rejection
	DroppedPairs []Rejection
}

// Skipped reports whether any row was dropped. Dropped pairs do not count.
func (s Sonar) Skipped() bool { return len(s.Rejected) > 0 }

// NormalizeSonar re-bases sonar timestamps so that the first valid row lands
// on start: time = raw - (T0 - start).
func NormalizeSonar(rows []Row, start decimal.Decimal) Sonar {
	out := Sonar{Lines: make([]survey.SonarLine, 0, len(rows))}
	haveOrigin := false

	for _, row := range rows {
		ts, pairs, bad, err := ParseSonar(row.Fields)
		if err != nil {
			out.Rejected = append(out.Rejected, Rejection{Line: row.Line, Err: err})
			continue
		}
		for _, perr := range bad {
			out.DroppedPairs = append(out.DroppedPairs, Rejection{Line: row.Line, Err: perr})
		}

		if !haveOrigin {
			out.TimeDiff = ts.Sub(start)
			haveOrigin = true
		}
		out.Lines = append(out.Lines, survey.SonarLine{
			Time:       ts.Sub(out.TimeDiff),
			Detections: pairs,
			Fields:     make(map[string]decimal.Decimal),
		})
	}
	return out
}
