package monitoring

import (
	"fmt"
	"log"
	"sort"
	"sync"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Kind classifies a recovered data problem.
type Kind string

const (
	KindMissingSource    Kind = "missing_source"
	KindRecordCorrupt    Kind = "record_corrupt"
	KindDetectionCorrupt Kind = "detection_corrupt"
	KindUnmatched        Kind = "unmatched"
	KindInvalidRange     Kind = "invalid_range"
	KindNotFused         Kind = "not_fused"
)

// Diagnostics counts recovered problems per stream so that nothing skipped
// during a run goes unreported. A nil *Diagnostics still logs but does not count.
type Diagnostics struct {
	mu     sync.Mutex
	counts map[string]map[Kind]int
}

// NewDiagnostics returns an empty collector.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{counts: make(map[string]map[Kind]int)}
}

// Report logs a diagnostic for stream through Logf and counts it.
func (d *Diagnostics) Report(stream string, kind Kind, format string, v ...interface{}) {
	Logf("[%s] %s: %s", stream, kind, fmt.Sprintf(format, v...))
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	byKind, ok := d.counts[stream]
	if !ok {
		byKind = make(map[Kind]int)
		d.counts[stream] = byKind
	}
	byKind[kind]++
}

// Count returns how many diagnostics of kind were reported for stream.
func (d *Diagnostics) Count(stream string, kind Kind) int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[stream][kind]
}

// Total returns the number of diagnostics reported across all streams.
func (d *Diagnostics) Total() int {
	if d == nil {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, byKind := range d.counts {
		for _, c := range byKind {
			n += c
		}
	}
	return n
}

// Entry is one row of a diagnostics snapshot.
type Entry struct {
	Stream string
	Kind   Kind
	Count  int
}

// Snapshot returns the counters sorted by stream then kind.
func (d *Diagnostics) Snapshot() []Entry {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Entry
	for stream, byKind := range d.counts {
		for kind, c := range byKind {
			out = append(out, Entry{Stream: stream, Kind: kind, Count: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Stream != out[j].Stream {
			return out[i].Stream < out[j].Stream
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
