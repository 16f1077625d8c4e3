// Package store persists named tabular datasets. A table is always written
// wholesale, replacing any previous content, and read back in full.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	apperrors "emsinv/internal/errors"
	"emsinv/pkg/contracts/domain"
)

// Store reads and writes named tables
type Store interface {
	// Save replaces the named table with t. Readers never observe a
	// partially written table.
	Save(ctx context.Context, table string, t domain.RawTable) error
	// Load returns every row of the named table. A missing table yields an
	// INPUT_NOT_FOUND error.
	Load(ctx context.Context, table string) (domain.RawTable, error)
	Close() error
}

// headLoader is implemented by stores that can fetch a prefix cheaply
type headLoader interface {
	Head(ctx context.Context, table string, n int) (domain.RawTable, error)
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,47}$`)

func validateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return apperrors.NewAppValidationError(fmt.Sprintf("invalid table name %q", name))
	}
	return nil
}

// Open creates the store for driver. location is a file path for sqlite, a
// DSN for mysql and a directory for csv.
func Open(ctx context.Context, driver, location string, logger *slog.Logger) (Store, error) {
	switch driver {
	case "sqlite", "mysql":
		s, err := OpenSQL(ctx, driver, location, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "csv":
		s, err := NewCSVStore(location, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, apperrors.NewConfigError(fmt.Sprintf("unsupported store driver %q", driver), nil)
	}
}

// Verify returns the first n rows of a table as a sanity sample
func Verify(ctx context.Context, s Store, table string, n int) (domain.RawTable, error) {
	if hl, ok := s.(headLoader); ok {
		return hl.Head(ctx, table, n)
	}
	t, err := s.Load(ctx, table)
	if err != nil {
		return domain.RawTable{}, err
	}
	return t.Head(n), nil
}
