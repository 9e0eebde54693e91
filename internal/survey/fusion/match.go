package fusion

import (
	"github.com/shopspring/decimal"

	"github.com/banshee-data/sonar.survey/internal/survey"
)

// Strategy selects how a sonar line finds its auxiliary record.
type Strategy int

const (
	// StrategyIndex matches record round(time * frequency).
	StrategyIndex Strategy = iota
	// StrategyNearest matches the record with the closest time.
	StrategyNearest
)

func (s Strategy) String() string {
	switch s {
	case StrategyIndex:
		return "index"
	case StrategyNearest:
		return "nearest"
	default:
		return "unknown"
	}
}

// ChooseStrategy returns the index strategy only for a gapless stream with a
// positive frequency.
func ChooseStrategy(skipped bool, frequency decimal.Decimal) Strategy {
	if skipped || !frequency.IsPositive() {
		return StrategyNearest
	}
	return StrategyIndex
}

// IndexOf returns round(t * frequency), rounding half to even.
func IndexOf(t, frequency decimal.Decimal) decimal.Decimal {
	return t.Mul(frequency).RoundBank(0)
}

// IndexMatch returns the computed index for t, its record position and
// whether it is in range. The range check runs on the decimal index so
// values beyond int64 never wrap into the stream.
func IndexMatch(records []survey.FlatRecord, t, frequency decimal.Decimal) (decimal.Decimal, int, bool) {
	idx := IndexOf(t, frequency)
	if idx.IsNegative() || idx.GreaterThanOrEqual(decimal.NewFromInt(int64(len(records)))) {
		return idx, -1, false
	}
	return idx, int(idx.IntPart()), true
}

// NearestMatch returns the position of the record minimizing |t - record.Time|.
// Ties go to the earliest record. ok is false for an empty stream.
func NearestMatch(records []survey.FlatRecord, t decimal.Decimal) (int, bool) {
	best := -1
	var bestDiff decimal.Decimal
	for i := range records {
		diff := t.Sub(records[i].Time).Abs()
		if best < 0 || diff.LessThan(bestDiff) {
			best = i
			bestDiff = diff
		}
	}
	return best, best >= 0
}
