// Package export writes located survey points to interchange files.
package export

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/banshee-data/sonar.survey/internal/fsutil"
	"github.com/banshee-data/sonar.survey/internal/monitoring"
	"github.com/banshee-data/sonar.survey/internal/survey"
	"github.com/banshee-data/sonar.survey/internal/survey/pipeline"
)

// ascPlaces is the number of decimal places written per coordinate.
const ascPlaces = 6

// WriteASC writes one "X Y Altitude Zone" row per point, in line order, and
// returns the number of points written.
func WriteASC(w io.Writer, lines []survey.LocatedLine) (int, error) {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Exported survey points\n")
	fmt.Fprintf(bw, "# Format: X Y Altitude Zone\n")

	n := 0
	for _, line := range lines {
		for _, p := range line.Points {
			fmt.Fprintf(bw, "%s %s %s %s\n",
				p.X.StringFixed(ascPlaces), p.Y.StringFixed(ascPlaces), p.Altitude.StringFixed(ascPlaces), p.Zone)
			n++
		}
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return n, nil
}

// ASCWriter exports finished runs to a single ASC file.
type ASCWriter struct {
	fs   fsutil.FileSystem
	path string
}

// NewASCWriter creates a writer for path. A nil file system writes to disk.
func NewASCWriter(filesystem fsutil.FileSystem, path string) *ASCWriter {
	if filesystem == nil {
		filesystem = fsutil.OSFileSystem{}
	}
	return &ASCWriter{fs: filesystem, path: path}
}

// Write implements pipeline.Sink. The file is replaced on every run.
func (a *ASCWriter) Write(ctx context.Context, res *pipeline.Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.path == "" {
		return fmt.Errorf("asc export: empty path")
	}

	if dir := filepath.Dir(a.path); dir != "." {
		if err := a.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("asc export: create %s: %w", dir, err)
		}
	}
	f, err := a.fs.Create(a.path)
	if err != nil {
		return fmt.Errorf("asc export: %w", err)
	}

	n, err := WriteASC(f, res.Lines)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("asc export %s: %w", a.path, err)
	}
	monitoring.Logf("[export] wrote %d points to %s", n, a.path)
	return nil
}
