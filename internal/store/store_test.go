package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "emsinv/internal/errors"
	"emsinv/pkg/contracts/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func sampleTable() domain.RawTable {
	return domain.RawTable{
		Columns: []string{"Bandages", "Oxygen Tanks", "Month"},
		Rows: [][]string{
			{"480", "17", "2014-01"},
			{"455", "", "2014-02"},
			{"500", "12.5", "2014-03"},
		},
	}
}

// storeFactories lets every behavioural test run against each backend
func storeFactories(t *testing.T) map[string]func() Store {
	return map[string]func() Store{
		"sqlite": func() Store {
			s, err := OpenSQL(context.Background(), "sqlite", filepath.Join(t.TempDir(), "db", "ems.db"), quietLogger())
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
		"csv": func() Store {
			s, err := NewCSVStore(filepath.Join(t.TempDir(), "tables"), quietLogger())
			require.NoError(t, err)
			return s
		},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			ctx := context.Background()

			require.NoError(t, s.Save(ctx, domain.RawTableName, sampleTable()))
			got, err := s.Load(ctx, domain.RawTableName)
			require.NoError(t, err)
			assert.Equal(t, sampleTable(), got)
		})
	}
}

func TestStoreReplacesWholesale(t *testing.T) {
	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			ctx := context.Background()

			require.NoError(t, s.Save(ctx, "inventory", sampleTable()))
			replacement := domain.RawTable{
				Columns: []string{"Month", "Gloves"},
				Rows:    [][]string{{"2020-01", "1000"}},
			}
			require.NoError(t, s.Save(ctx, "inventory", replacement))

			got, err := s.Load(ctx, "inventory")
			require.NoError(t, err)
			assert.Equal(t, replacement, got)
		})
	}
}

func TestStoreTablesCoexist(t *testing.T) {
	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			ctx := context.Background()

			cleaned := domain.RawTable{
				Columns: []string{"Month", "Bandages", "Bandages_Usage"},
				Rows:    [][]string{{"2014-01", "480", "0"}, {"2014-02", "455", "25"}},
			}
			require.NoError(t, s.Save(ctx, domain.RawTableName, sampleTable()))
			require.NoError(t, s.Save(ctx, domain.PreprocessedTableName, cleaned))

			raw, err := s.Load(ctx, domain.RawTableName)
			require.NoError(t, err)
			assert.Equal(t, sampleTable(), raw)

			got, err := s.Load(ctx, domain.PreprocessedTableName)
			require.NoError(t, err)
			assert.Equal(t, cleaned, got)
		})
	}
}

func TestStoreMissingTable(t *testing.T) {
	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			_, err := open().Load(context.Background(), "preprocessed_inventory")
			require.Error(t, err)
			assert.True(t, apperrors.IsInputNotFound(err))
		})
	}
}

func TestStoreRejectsBadInput(t *testing.T) {
	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			ctx := context.Background()

			err := s.Save(ctx, "inventory; DROP TABLE x", sampleTable())
			assert.True(t, apperrors.IsValidationError(err))

			err = s.Save(ctx, "inventory", domain.RawTable{})
			assert.True(t, apperrors.IsDataError(err))

			err = s.Save(ctx, "inventory", domain.RawTable{Columns: []string{"A", "B"}, Rows: [][]string{{"1"}}})
			assert.True(t, apperrors.IsDataError(err))
		})
	}
}

func TestStoreEmptyTable(t *testing.T) {
	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			ctx := context.Background()

			require.NoError(t, s.Save(ctx, "inventory", domain.NewRawTable("Month", "Gloves")))
			got, err := s.Load(ctx, "inventory")
			require.NoError(t, err)
			assert.Equal(t, []string{"Month", "Gloves"}, got.Columns)
			assert.True(t, got.IsEmpty())
		})
	}
}

func TestVerify(t *testing.T) {
	for name, open := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			s := open()
			ctx := context.Background()
			require.NoError(t, s.Save(ctx, "inventory", sampleTable()))

			head, err := Verify(ctx, s, "inventory", 2)
			require.NoError(t, err)
			assert.Equal(t, sampleTable().Head(2), head)

			all, err := Verify(ctx, s, "inventory", 10)
			require.NoError(t, err)
			assert.Equal(t, 3, all.Len())

			_, err = Verify(ctx, s, "absent", 5)
			assert.True(t, apperrors.IsInputNotFound(err))
		})
	}
}

func TestSQLiteTextColumns(t *testing.T) {
	s, err := OpenSQL(context.Background(), "sqlite", filepath.Join(t.TempDir(), "ems.db"), quietLogger())
	require.NoError(t, err)
	defer s.Close()

	table := domain.RawTable{
		Columns: []string{"Month", "Note", "Gloves"},
		Rows:    [][]string{{"2014-01-01 00:00:00", "ok", "1000"}, {"2014-02-01 00:00:00", "12", "990"}},
	}
	require.NoError(t, s.Save(context.Background(), "inventory", table))
	got, err := s.Load(context.Background(), "inventory")
	require.NoError(t, err)
	assert.Equal(t, table, got)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "csv", t.TempDir(), nil)
	require.NoError(t, err)
	assert.IsType(t, &CSVStore{}, s)

	s, err = Open(ctx, "sqlite", filepath.Join(t.TempDir(), "ems.db"), nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "postgres", "x", nil)
	assert.Error(t, err)

	_, err = Open(ctx, "mysql", "not a dsn", nil)
	assert.Error(t, err)

	_, err = Open(ctx, "sqlite", "", nil)
	assert.Error(t, err)
}

func TestImportCSV(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ImportCSV(filepath.Join(t.TempDir(), "ambulance_items_usage.csv"))
		require.Error(t, err)
		assert.True(t, apperrors.IsInputNotFound(err))
	})

	t.Run("bom and header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.csv")
		content := "\xEF\xBB\xBFBandages,Month\n480,2014-01\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		got, err := ImportCSV(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"Bandages", "Month"}, got.Columns)
		assert.Equal(t, [][]string{{"480", "2014-01"}}, got.Rows)
	})

	t.Run("ragged rows", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("A,B\n1\n"))
		assert.True(t, apperrors.IsDataError(err))
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader(""))
		assert.True(t, apperrors.IsDataError(err))
	})
}

func TestWriteCSVFileReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	require.NoError(t, WriteCSVFile(path, sampleTable()))
	require.NoError(t, WriteCSVFile(path, domain.RawTable{Columns: []string{"Month"}, Rows: [][]string{{"2014-01"}}}))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Month\n2014-01\n", string(b))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}
