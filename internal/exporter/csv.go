package exporter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"emsinv/internal/config"
)

// utf8BOM lets spreadsheet tools detect the encoding of item names
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes report files under the configured directories. Every
// file is written to a temporary sibling and renamed into place on success,
// so readers never observe a partial report.
type CSVWriter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewCSVWriter creates a writer resolving names against paths
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths, logger: slog.Default().With(slog.String("component", "csv_writer"))}
}

// WriteFile replaces name with headers followed by records and returns the
// resolved path. A nil headers slice writes no header row.
func (w *CSVWriter) WriteFile(name string, headers []string, records [][]string) (string, error) {
	stream, err := w.Create(name, headers)
	if err != nil {
		return "", err
	}
	for i, record := range records {
		if err := stream.WriteRecord(record); err != nil {
			stream.Abort()
			return "", fmt.Errorf("failed to write record %d of %s: %w", i, stream.Path(), err)
		}
	}
	if err := stream.Close(); err != nil {
		return "", err
	}
	w.logger.Debug("csv written", slog.String("path", stream.Path()), slog.Int("records", len(records)))
	return stream.Path(), nil
}

// StreamWriter writes a report one record at a time. Close publishes the
// file; Abort discards it.
type StreamWriter struct {
	path   string
	tmp    *os.File
	writer *csv.Writer
}

// Create opens a streaming writer for name and writes the BOM and headers
func (w *CSVWriter) Create(name string, headers []string) (*StreamWriter, error) {
	path := w.resolvePath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	s := &StreamWriter{path: path, tmp: tmp, writer: csv.NewWriter(tmp)}
	if _, err := tmp.Write(utf8BOM); err != nil {
		s.Abort()
		return nil, fmt.Errorf("failed to write BOM to %s: %w", path, err)
	}
	if headers != nil {
		if err := s.writer.Write(headers); err != nil {
			s.Abort()
			return nil, fmt.Errorf("failed to write headers to %s: %w", path, err)
		}
	}
	return s, nil
}

// WriteRecord appends one record
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Path returns the final location of the file
func (s *StreamWriter) Path() string {
	return s.path
}

// Close flushes the records and moves the file into place
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	err := errors.Join(s.writer.Error(), s.tmp.Close())
	if err == nil {
		err = os.Rename(s.tmp.Name(), s.path)
	}
	if err != nil {
		_ = os.Remove(s.tmp.Name())
		return fmt.Errorf("failed to finish %s: %w", s.path, err)
	}
	return nil
}

// Abort discards everything written so far
func (s *StreamWriter) Abort() {
	_ = s.tmp.Close()
	_ = os.Remove(s.tmp.Name())
}

// resolvePath keeps absolute paths, maps "data/..." under the data
// directory and places anything else under the reports directory
func (w *CSVWriter) resolvePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if rest, ok := strings.CutPrefix(filepath.ToSlash(name), "data/"); ok {
		return filepath.Join(w.paths.DataDir, filepath.FromSlash(rest))
	}
	return w.paths.GetReportPath(name)
}
