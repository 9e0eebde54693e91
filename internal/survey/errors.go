package survey

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrMissingSource reports a configured input file that does not exist.
	ErrMissingSource = errors.New("missing source")
	// ErrRecordCorrupt reports a row that failed field-count or numeric validation.
	ErrRecordCorrupt = errors.New("record corrupt")
	// ErrDetectionCorrupt reports a malformed angle,sample_index pair.
	ErrDetectionCorrupt = errors.New("detection corrupt")
	// ErrInvalidRange reports a non-positive sample index or speed of sound.
	ErrInvalidRange = errors.New("invalid range")
	// ErrIndexOutOfRange reports an index-strategy match outside the auxiliary stream.
	ErrIndexOutOfRange = errors.New("fusion index out of range")
	// ErrNotFused reports a line that lacks fields required for geolocation.
	ErrNotFused = errors.New("line not fused")
	// ErrInvalidFrequency reports a non-positive sampling frequency.
	ErrInvalidFrequency = errors.New("invalid frequency")
)

// RangeError carries the inputs of a failed distance calculation.
type RangeError struct {
	Time         decimal.Decimal
	Detection    int
	SampleIndex  decimal.Decimal
	SpeedOfSound decimal.Decimal
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid range at t=%s detection %d: sample_index=%s speed_of_sound=%s",
		e.Time, e.Detection, e.SampleIndex, e.SpeedOfSound)
}

func (e *RangeError) Unwrap() error { return ErrInvalidRange }

// IndexError describes an index-strategy lookup that fell outside the stream.
type IndexError struct {
	Stream string
	Line   int
	Time   decimal.Decimal
	Index  decimal.Decimal
	Len    int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: sonar line %d at t=%s maps to index %s, stream has %d records",
		e.Stream, e.Line, e.Time, e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndexOutOfRange }

// NotFusedError names the fields a line is missing.
type NotFusedError struct {
	Time    decimal.Decimal
	Missing []string
}

func (e *NotFusedError) Error() string {
	return fmt.Sprintf("line at t=%s missing fields: %s", e.Time, strings.Join(e.Missing, ", "))
}

func (e *NotFusedError) Unwrap() error { return ErrNotFused }
