package survey

import (
	"github.com/shopspring/decimal"
)

// Field names attached to a SonarLine by fusion and required by geolocation.
const (
	FieldRoll      = "roll"
	FieldPitch     = "pitch"
	FieldHeading   = "heading"
	FieldLatitude  = "latitude"
	FieldLongitude = "longitude"
	FieldAltitude  = "altitude"
	FieldHeave     = "heave"
	FieldSpeed     = "speed"
)

// GeolocationFields lists the fields a SonarLine must carry before it can be
// geolocated. Heave is fused but not required.
var GeolocationFields = []string{
	FieldRoll, FieldPitch, FieldHeading,
	FieldLatitude, FieldLongitude, FieldAltitude,
	FieldSpeed,
}

// FlatRecord is one instant of a non-ranging sensor: a time and a value for
// every configured header. A record exists only if every field parsed.
type FlatRecord struct {
	Time   decimal.Decimal
	Fields map[string]decimal.Decimal
}

// Len returns the number of values held, counting the time.
func (r FlatRecord) Len() int {
	return len(r.Fields) + 1
}

// DetectionPair is a single sonar return within a scan line.
type DetectionPair struct {
	Angle       decimal.Decimal // radians
	SampleIndex decimal.Decimal
}

// SonarLine is one scan of the ranging sensor. Fields starts empty and is
// filled by fusion passes.
type SonarLine struct {
	Time       decimal.Decimal
	Detections []DetectionPair
	Fields     map[string]decimal.Decimal
}

// Set writes a fused field onto the line.
func (l *SonarLine) Set(name string, v decimal.Decimal) {
	if l.Fields == nil {
		l.Fields = make(map[string]decimal.Decimal)
	}
	l.Fields[name] = v
}

// Field returns a fused field and whether it is present.
func (l *SonarLine) Field(name string) (decimal.Decimal, bool) {
	v, ok := l.Fields[name]
	return v, ok
}

// Missing returns the names from required that are not yet on the line.
func (l *SonarLine) Missing(required []string) []string {
	var missing []string
	for _, name := range required {
		if _, ok := l.Fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// LocatedPoint is an absolute 3D position of one detection.
type LocatedPoint struct {
	X        decimal.Decimal
	Y        decimal.Decimal
	Zone     string
	Altitude decimal.Decimal
}

// LocatedLine holds the located points of one SonarLine, in detection order.
type LocatedLine struct {
	Time   decimal.Decimal
	Points []LocatedPoint
}
