package geolocate

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/banshee-data/sonar.survey/internal/survey"
)

// DefaultSampleFrequency is the sonar's sample rate in Hz.
const DefaultSampleFrequency = 78125

var two = decimal.NewFromInt(2)

func sin(x decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(math.Sin(x.InexactFloat64()))
}

func cos(x decimal.Decimal) decimal.Decimal {
	return decimal.NewFromFloat(math.Cos(x.InexactFloat64()))
}

// Distance returns the one-way range of a detection:
// sampleIndex / sampleFrequency * speedOfSound / 2.
func Distance(sampleIndex, speedOfSound, sampleFrequency decimal.Decimal) (decimal.Decimal, error) {
	if !sampleIndex.IsPositive() || !speedOfSound.IsPositive() {
		return decimal.Decimal{}, &survey.RangeError{SampleIndex: sampleIndex, SpeedOfSound: speedOfSound}
	}
	return sampleIndex.Mul(speedOfSound).Div(sampleFrequency.Mul(two)), nil
}

// Attitude holds the per-line trig values shared by every detection.
type Attitude struct {
	Roll       decimal.Decimal
	SinPitch   decimal.Decimal
	SinHeading decimal.Decimal
	CosHeading decimal.Decimal
}

// NewAttitude evaluates the pitch and heading terms once.
func NewAttitude(roll, pitch, heading decimal.Decimal) Attitude {
	return Attitude{
		Roll:       roll,
		SinPitch:   sin(pitch),
		SinHeading: sin(heading),
		CosHeading: cos(heading),
	}
}

// HorizontalOffset is d * (-sin(angle+roll)*cos(heading) + sin(pitch)*sin(heading)).
func HorizontalOffset(distance, angle decimal.Decimal, att Attitude) decimal.Decimal {
	s := sin(angle.Add(att.Roll))
	return distance.Mul(s.Neg().Mul(att.CosHeading).Add(att.SinPitch.Mul(att.SinHeading)))
}

// VerticalOffset is d * (sin(angle+roll)*sin(heading) + sin(pitch)*cos(heading)).
func VerticalOffset(distance, angle decimal.Decimal, att Attitude) decimal.Decimal {
	s := sin(angle.Add(att.Roll))
	return distance.Mul(s.Mul(att.SinHeading).Add(att.SinPitch.Mul(att.CosHeading)))
}

// PointAltitude is platformAltitude - d*cos(angle). Heave is not applied.
func PointAltitude(distance, angle, platformAltitude decimal.Decimal) decimal.Decimal {
	return platformAltitude.Sub(distance.Mul(cos(angle)))
}
