package pipeline

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/sonar.survey/internal/survey"
)

// Summary describes the located point cloud of a run.
type Summary struct {
	Lines  int
	Points int

	MinAltitude    float64
	MaxAltitude    float64
	MeanAltitude   float64
	StdDevAltitude float64

	// Zones lists the distinct UTM zones in first-seen order.
	Zones []string
}

// Summarize computes point statistics. Altitude fields are NaN when there are
// no points.
func Summarize(lines []survey.LocatedLine) Summary {
	s := Summary{Lines: len(lines)}

	var altitudes []float64
	seen := make(map[string]bool)
	for _, line := range lines {
		for _, p := range line.Points {
			altitudes = append(altitudes, p.Altitude.InexactFloat64())
			if !seen[p.Zone] {
				seen[p.Zone] = true
				s.Zones = append(s.Zones, p.Zone)
			}
		}
	}
	s.Points = len(altitudes)

	if len(altitudes) == 0 {
		nan := math.NaN()
		s.MinAltitude, s.MaxAltitude, s.MeanAltitude, s.StdDevAltitude = nan, nan, nan, nan
		return s
	}

	s.MinAltitude = floats.Min(altitudes)
	s.MaxAltitude = floats.Max(altitudes)
	if len(altitudes) == 1 {
		s.MeanAltitude = altitudes[0]
		return s
	}
	s.MeanAltitude, s.StdDevAltitude = stat.MeanStdDev(altitudes, nil)
	return s
}
