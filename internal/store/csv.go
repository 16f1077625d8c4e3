package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "emsinv/internal/errors"
	"emsinv/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVStore keeps each table as <dir>/<table>.csv
type CSVStore struct {
	dir    string
	logger *slog.Logger
}

// NewCSVStore creates dir if needed and returns a store rooted there
func NewCSVStore(dir string, logger *slog.Logger) (*CSVStore, error) {
	if dir == "" {
		return nil, apperrors.NewConfigError("csv store needs a directory", nil)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperrors.NewStorageError("create table directory", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVStore{
		dir:    dir,
		logger: logger.With(slog.String("component", "store"), slog.String("driver", "csv"), slog.String("dir", dir)),
	}, nil
}

func (s *CSVStore) path(table string) string {
	return filepath.Join(s.dir, table+".csv")
}

// Save writes the table to a temp file and renames it over the old one
func (s *CSVStore) Save(ctx context.Context, table string, t domain.RawTable) error {
	if err := validateTableName(table); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(t.Columns) == 0 {
		return apperrors.NewDataError(fmt.Sprintf("cannot save table %s without columns", table), nil)
	}
	if err := t.Validate(); err != nil {
		return apperrors.NewDataError(fmt.Sprintf("cannot save table %s", table), err)
	}
	if err := WriteCSVFile(s.path(table), t); err != nil {
		return apperrors.NewStorageError("write table "+table, err)
	}
	s.logger.InfoContext(ctx, "table saved", slog.String("table", table), slog.Int("rows", t.Len()))
	return nil
}

// Load reads the whole table
func (s *CSVStore) Load(ctx context.Context, table string) (domain.RawTable, error) {
	if err := validateTableName(table); err != nil {
		return domain.RawTable{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.RawTable{}, err
	}
	t, err := ImportCSV(s.path(table))
	if err != nil {
		if apperrors.IsInputNotFound(err) {
			return domain.RawTable{}, apperrors.NewInputNotFoundError("table "+table, err)
		}
		return domain.RawTable{}, err
	}
	return t, nil
}

// Close is a no-op
func (s *CSVStore) Close() error { return nil }

// ImportCSV reads a delimited text file with a header row. A missing file
// yields an INPUT_NOT_FOUND error.
func ImportCSV(path string) (domain.RawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.RawTable{}, apperrors.NewInputNotFoundError("file "+path, err)
		}
		return domain.RawTable{}, apperrors.NewStorageError("open "+path, err)
	}
	defer f.Close()

	t, err := ReadCSV(f)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// ReadCSV parses CSV with a header row. A leading UTF-8 BOM is ignored.
func ReadCSV(r io.Reader) (domain.RawTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return domain.RawTable{}, apperrors.NewStorageError("read csv", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = 0
	records, err := cr.ReadAll()
	if err != nil {
		return domain.RawTable{}, apperrors.NewDataError("malformed csv", err)
	}
	if len(records) == 0 {
		return domain.RawTable{}, apperrors.NewDataError("csv has no header row", nil)
	}

	t := domain.NewRawTable(records[0]...)
	if len(records) > 1 {
		t.Rows = records[1:]
	}
	if err := t.Validate(); err != nil {
		return domain.RawTable{}, apperrors.NewDataError("invalid csv table", err)
	}
	return t, nil
}

// WriteCSV writes t as CSV with a header row
func WriteCSV(w io.Writer, t domain.RawTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}
	return nil
}

// WriteCSVFile writes t to path through a temp file in the same directory,
// so the destination is either the old or the new content
func WriteCSVFile(path string, t domain.RawTable) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteCSV(tmp, t); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}
