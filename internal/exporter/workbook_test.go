package exporter

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"emsinv/internal/analysis"
	"emsinv/internal/config"
)

func TestWorkbookExporter_Export(t *testing.T) {
	paths := testPaths(t)
	path, err := NewWorkbookExporter(paths, nil).Export(fixtureTrends(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(paths.ReportsDir, config.UsageTrendsWorkbook), path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Oxygen Tanks", "Gloves"}, f.GetSheetList())

	rows, err := f.GetRows("Oxygen Tanks")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Month", "Raw Data", "Smoothed (Window=3)"}, rows[0])
	assert.Equal(t, []string{"2014-01", "0"}, rows[1])
	assert.Equal(t, "2014-03", rows[3][0])
	assert.True(t, strings.HasPrefix(rows[3][2], "5.666"), rows[3][2])

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, []string{"Item", "Sheet", "Window", "Months", "Latest Smoothed"}, summary[0])
	assert.Equal(t, []string{"Gloves", "Gloves", "3", "4"}, summary[2][:4])
}

func TestWorkbookExporter_NoTrends(t *testing.T) {
	path, err := NewWorkbookExporter(testPaths(t), nil).Export([]analysis.TrendSeries{})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Summary"}, f.GetSheetList())
}

func TestUniqueSheetName(t *testing.T) {
	used := map[string]bool{"summary": true}

	tests := []struct {
		item string
		want string
	}{
		{"Oxygen Tanks", "Oxygen Tanks"},
		{"IV Kits [adult]", "IV Kits _adult_"},
		{"a/b:c", "a_b_c"},
		{"Summary", "Summary (2)"},
		{"oxygen tanks", "oxygen tanks (2)"},
		{"O'Brien's", "O_Brien_s"},
		{"", "Item"},
		{strings.Repeat("x", 40), strings.Repeat("x", 31)},
		{strings.Repeat("x", 35), strings.Repeat("x", 27) + " (2)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := uniqueSheetName(tt.item, used)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len([]rune(got)), 31)
		})
	}
}
