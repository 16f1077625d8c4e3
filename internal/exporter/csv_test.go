package exporter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emsinv/internal/config"
)

func testPaths(t testing.TB) *config.Paths {
	t.Helper()
	base := t.TempDir()
	return &config.Paths{
		BaseDir:    base,
		DataDir:    filepath.Join(base, "data"),
		ReportsDir: filepath.Join(base, "reports"),
		LogsDir:    filepath.Join(base, "logs"),
	}
}

// readLines returns the file's lines with any BOM removed
func readLines(t *testing.T, path string) []string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	content = bytes.TrimPrefix(content, utf8BOM)
	return strings.Split(strings.TrimSpace(string(content)), "\n")
}

func TestCSVWriter_WriteFile(t *testing.T) {
	paths := testPaths(t)
	writer := NewCSVWriter(paths)

	tests := []struct {
		name    string
		file    string
		headers []string
		records [][]string
		want    []string
	}{
		{
			name:    "headers and records",
			file:    "stock.csv",
			headers: []string{"Item", "Month", "Stock"},
			records: [][]string{{"Gloves", "2014-01", "1000"}, {"Gloves", "2014-02", "870"}},
			want:    []string{"Item,Month,Stock", "Gloves,2014-01,1000", "Gloves,2014-02,870"},
		},
		{
			name:    "no header row",
			file:    "no_headers.csv",
			records: [][]string{{"a", "b"}, {"c", "d"}},
			want:    []string{"a,b", "c,d"},
		},
		{
			name:    "headers only",
			file:    "empty.csv",
			headers: []string{"Item", "Month"},
			want:    []string{"Item,Month"},
		},
		{
			name:    "nested directory is created",
			file:    filepath.Join("nested", "deeper", "out.csv"),
			headers: []string{"X"},
			records: [][]string{{"1"}},
			want:    []string{"X", "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := writer.WriteFile(tt.file, tt.headers, tt.records)
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(paths.ReportsDir, tt.file), got)
			assert.Equal(t, tt.want, readLines(t, got))

			content, err := os.ReadFile(got)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(content, utf8BOM))
		})
	}
}

func TestCSVWriter_ReplacesWholeFile(t *testing.T) {
	writer := NewCSVWriter(testPaths(t))

	path, err := writer.WriteFile("restock_events.csv", []string{"Item"}, [][]string{{"Gloves"}, {"Splints"}})
	require.NoError(t, err)
	_, err = writer.WriteFile("restock_events.csv", []string{"Item"}, [][]string{{"Syringes"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"Item", "Syringes"}, readLines(t, path))
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestCSVWriter_ResolvePath(t *testing.T) {
	paths := testPaths(t)
	writer := NewCSVWriter(paths)
	abs := filepath.Join(paths.BaseDir, "elsewhere", "file.csv")

	tests := []struct {
		name      string
		inputPath string
		expected  string
	}{
		{"absolute path", abs, abs},
		{"data path", "data/ambulance_items_usage.csv", filepath.Join(paths.DataDir, "ambulance_items_usage.csv")},
		{"default to reports", "restock_events.csv", filepath.Join(paths.ReportsDir, "restock_events.csv")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, writer.resolvePath(tt.inputPath))
		})
	}
}

func TestCSVWriter_SpecialCharacters(t *testing.T) {
	writer := NewCSVWriter(testPaths(t))

	headers := []string{"Item", "Note"}
	records := [][]string{
		{"Pads, Adult", `says "replace"`},
		{"Gauze", "multi\nline"},
	}
	path, err := writer.WriteFile("special_chars.csv", headers, records)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	all, err := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM))).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, append([][]string{headers}, records...), all)
}

func TestCSVWriter_Stream(t *testing.T) {
	writer := NewCSVWriter(testPaths(t))

	stream, err := writer.Create("stream_test.csv", []string{"Item", "Month"})
	require.NoError(t, err)
	require.NoError(t, stream.WriteRecord([]string{"Splints", "2014-01"}))
	assert.NoFileExists(t, stream.Path(), "the file appears only on Close")
	require.NoError(t, stream.WriteRecord([]string{"Splints", "2014-02"}))
	require.NoError(t, stream.Close())

	assert.Equal(t, []string{"Item,Month", "Splints,2014-01", "Splints,2014-02"}, readLines(t, stream.Path()))
}

func TestCSVWriter_StreamAbort(t *testing.T) {
	writer := NewCSVWriter(testPaths(t))

	stream, err := writer.Create("aborted.csv", []string{"Item"})
	require.NoError(t, err)
	require.NoError(t, stream.WriteRecord([]string{"Gloves"}))
	stream.Abort()

	assert.NoFileExists(t, stream.Path())
	entries, err := os.ReadDir(filepath.Dir(stream.Path()))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCSVWriter_ConcurrentWrites(t *testing.T) {
	paths := testPaths(t)
	writer := NewCSVWriter(paths)

	const numGoroutines = 10
	const recordsPerGoroutine = 100

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines)
	for i := range numGoroutines {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			var records [][]string
			for j := range recordsPerGoroutine {
				records = append(records, []string{fmt.Sprintf("item-%d", id), fmt.Sprint(j)})
			}
			if _, err := writer.WriteFile(filepath.Join("concurrent", fmt.Sprintf("file_%d.csv", id)), []string{"Name", "Number"}, records); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	for i := range numGoroutines {
		lines := readLines(t, filepath.Join(paths.ReportsDir, "concurrent", fmt.Sprintf("file_%d.csv", i)))
		assert.Len(t, lines, recordsPerGoroutine+1)
	}
}

func TestCSVWriter_ErrorScenarios(t *testing.T) {
	paths := testPaths(t)
	// a regular file where the reports directory should be
	require.NoError(t, os.WriteFile(filepath.Join(paths.BaseDir, "blocker"), []byte("x"), 0o644))
	paths.ReportsDir = filepath.Join(paths.BaseDir, "blocker")

	_, err := NewCSVWriter(paths).WriteFile("test.csv", []string{"Test"}, [][]string{{"Data"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to")
}

func BenchmarkCSVWriter_WriteFile(b *testing.B) {
	writer := NewCSVWriter(testPaths(b))

	var records [][]string
	for i := range 1000 {
		records = append(records, []string{"Bandages", fmt.Sprint(i), "500", "0"})
	}
	headers := []string{"Item", "Index", "Stock", "Usage"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := writer.WriteFile(fmt.Sprintf("benchmark_%d.csv", i%26), headers, records); err != nil {
			b.Fatal(err)
		}
	}
}
