package pipeline

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/sonar.survey/internal/survey"
)

func point(alt int64, zone string) survey.LocatedPoint {
	return survey.LocatedPoint{Altitude: decimal.NewFromInt(alt), Zone: zone}
}

func TestSummarize(t *testing.T) {
	lines := []survey.LocatedLine{
		{Points: []survey.LocatedPoint{point(-2, "31U"), point(-4, "31U")}},
		{},
		{Points: []survey.LocatedPoint{point(-6, "32U")}},
	}
	s := Summarize(lines)

	assert.Equal(t, 3, s.Lines)
	assert.Equal(t, 3, s.Points)
	assert.Equal(t, -6.0, s.MinAltitude)
	assert.Equal(t, -2.0, s.MaxAltitude)
	assert.InDelta(t, -4.0, s.MeanAltitude, 1e-12)
	// Sample standard deviation of {-2, -4, -6}.
	assert.InDelta(t, 2.0, s.StdDevAltitude, 1e-12)
	assert.Equal(t, []string{"31U", "32U"}, s.Zones)
}

func TestSummarize_SinglePoint(t *testing.T) {
	s := Summarize([]survey.LocatedLine{{Points: []survey.LocatedPoint{point(-3, "1C")}}})
	assert.Equal(t, -3.0, s.MeanAltitude)
	assert.Zero(t, s.StdDevAltitude)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Points)
	assert.True(t, math.IsNaN(s.MinAltitude))
	assert.True(t, math.IsNaN(s.StdDevAltitude))
	assert.Nil(t, s.Zones)
}
