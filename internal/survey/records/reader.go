package records

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/shopspring/decimal"

	"github.com/banshee-data/sonar.survey/internal/fsutil"
	"github.com/banshee-data/sonar.survey/internal/monitoring"
	"github.com/banshee-data/sonar.survey/internal/survey"
)

// Stream is a frequency-sampled auxiliary stream ready for fusion.
type Stream struct {
	Name      string
	Headers   []string
	Frequency decimal.Decimal
	Records   []survey.FlatRecord
	// Skipped is true when any row was dropped or the source was missing.
	Skipped bool
}

// SonarStream is the re-based ranging stream.
type SonarStream struct {
	Name     string
	Lines    []survey.SonarLine
	TimeDiff decimal.Decimal
	Skipped  bool
}

// Reader loads sensor logs and reports every dropped row or pair.
type Reader struct {
	fs   fsutil.FileSystem
	diag *monitoring.Diagnostics
}

// NewReader creates a Reader. diag may be nil.
func NewReader(filesystem fsutil.FileSystem, diag *monitoring.Diagnostics) *Reader {
	if filesystem == nil {
		filesystem = fsutil.OSFileSystem{}
	}
	return &Reader{fs: filesystem, diag: diag}
}

// ReadStream reads a non-timestamped log and derives a time for every row.
// A missing file is not an error: the stream comes back empty and skipped.
func (r *Reader) ReadStream(name, path string, start, frequency decimal.Decimal, headers []string) (*Stream, error) {
	stream := &Stream{Name: name, Headers: headers, Frequency: frequency}

	content, ok, err := r.load(name, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		stream.Skipped = true
		return stream, nil
	}

	flat, err := NormalizeFlat(SplitRows(content), start, frequency, headers)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", name, err)
	}
	for _, rej := range flat.Rejected {
		r.diag.Report(name, monitoring.KindRecordCorrupt, "line %d: %v", rej.Line, rej.Err)
	}

	stream.Records = flat.Records
	stream.Skipped = flat.Skipped()
	return stream, nil
}

// ReadSonar reads the timestamped ranging log and re-bases it onto start.
func (r *Reader) ReadSonar(name, path string, start decimal.Decimal) (*SonarStream, error) {
	stream := &SonarStream{Name: name}

	content, ok, err := r.load(name, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		stream.Skipped = true
		return stream, nil
	}

	sonar := NormalizeSonar(SplitRows(content), start)
	for _, rej := range sonar.Rejected {
		r.diag.Report(name, monitoring.KindRecordCorrupt, "line %d: %v", rej.Line, rej.Err)
	}
	for _, rej := range sonar.DroppedPairs {
		r.diag.Report(name, monitoring.KindDetectionCorrupt, "line %d: %v", rej.Line, rej.Err)
	}

	stream.Lines = sonar.Lines
	stream.TimeDiff = sonar.TimeDiff
	stream.Skipped = sonar.Skipped()
	return stream, nil
}

// load returns ok=false for a missing file after reporting it once.
func (r *Reader) load(name, path string) ([]byte, bool, error) {
	content, err := r.fs.ReadFile(path)
	if err == nil {
		return content, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		r.diag.Report(name, monitoring.KindMissingSource, "%v: %s", survey.ErrMissingSource, path)
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("read %s log %s: %w", name, path, err)
}
