package records

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/banshee-data/sonar.survey/internal/survey"
)

// Row is one non-empty data line of a log.
type Row struct {
	Line   int // 1-based line number in the source file
	Fields []string
}

// Rejection records why a row or pair was dropped.
type Rejection struct {
	Line int
	Err  error
}

// SplitFields splits a log line on spaces and tabs. Runs of separators
// collapse, so empty fields never appear in the result.
func SplitFields(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\r'
	})
}

// SplitRows discards the header line and returns every non-empty line after it.
func SplitRows(content []byte) []Row {
	lines := bytes.Split(content, []byte("\n"))
	if len(lines) <= 1 {
		return nil
	}

	rows := make([]Row, 0, len(lines)-1)
	for i, raw := range lines[1:] {
		fields := SplitFields(string(raw))
		if len(fields) == 0 {
			continue
		}
		rows = append(rows, Row{Line: i + 2, Fields: fields})
	}
	return rows
}

// ParseFlat validates fields against headers and returns the named values.
func ParseFlat(fields []string, headers []string) (map[string]decimal.Decimal, error) {
	if len(fields) != len(headers) {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", survey.ErrRecordCorrupt, len(headers), len(fields))
	}

	values := make(map[string]decimal.Decimal, len(headers))
	for i, raw := range fields {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q value %q is not numeric", survey.ErrRecordCorrupt, headers[i], raw)
		}
		values[headers[i]] = v
	}
	return values, nil
}

// ParseDetection parses an "angle,sample_index" field.
func ParseDetection(field string) (survey.DetectionPair, error) {
	parts := strings.Split(field, ",")
	if len(parts) != 2 {
		return survey.DetectionPair{}, fmt.Errorf("%w: %q is not an angle,sample_index pair", survey.ErrDetectionCorrupt, field)
	}

	angle, err := decimal.NewFromString(parts[0])
	if err != nil {
		return survey.DetectionPair{}, fmt.Errorf("%w: angle %q in %q is not numeric", survey.ErrDetectionCorrupt, parts[0], field)
	}
	index, err := decimal.NewFromString(parts[1])
	if err != nil {
		return survey.DetectionPair{}, fmt.Errorf("%w: sample index %q in %q is not numeric", survey.ErrDetectionCorrupt, parts[1], field)
	}
	return survey.DetectionPair{Angle: angle, SampleIndex: index}, nil
}

// ParseSonar parses a sonar row: a timestamp followed by detection pairs.
// Malformed pairs are returned as errors alongside the pairs that parsed.
// A bad timestamp rejects the whole row.
func ParseSonar(fields []string) (decimal.Decimal, []survey.DetectionPair, []error, error) {
	if len(fields) == 0 {
		return decimal.Decimal{}, nil, nil, fmt.Errorf("%w: empty sonar row", survey.ErrRecordCorrupt)
	}

	ts, err := decimal.NewFromString(fields[0])
	if err != nil {
		return decimal.Decimal{}, nil, nil, fmt.Errorf("%w: timestamp %q is not numeric", survey.ErrRecordCorrupt, fields[0])
	}

	pairs := make([]survey.DetectionPair, 0, len(fields)-1)
	var bad []error
	for _, field := range fields[1:] {
		if field == "" {
			continue
		}
		pair, err := ParseDetection(field)
		if err != nil {
			bad = append(bad, err)
			continue
		}
		pairs = append(pairs, pair)
	}
	return ts, pairs, bad, nil
}
