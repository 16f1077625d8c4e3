package exporter

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"emsinv/internal/analysis"
	"emsinv/internal/config"
)

const (
	summarySheet  = "Summary"
	maxSheetName  = 31
	chartAnchor   = "E2"
	chartWidth    = 720
	chartHeight   = 360
	invalidSheetC = `[]:*?/\'`
)

// WorkbookExporter renders usage trends as an XLSX workbook with one sheet
// and one line chart per item
type WorkbookExporter struct {
	paths  *config.Paths
	logger *slog.Logger
}

// NewWorkbookExporter creates a workbook exporter writing under paths.ReportsDir
func NewWorkbookExporter(paths *config.Paths, logger *slog.Logger) *WorkbookExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookExporter{
		paths:  paths,
		logger: logger.With(slog.String("component", "workbook_exporter")),
	}
}

// Export writes usage_trends.xlsx and returns its path
func (w *WorkbookExporter) Export(trends []analysis.TrendSeries) (string, error) {
	path := w.paths.GetReportPath(config.UsageTrendsWorkbook)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return "", err
	}
	if err := f.SetSheetRow(summarySheet, "A1", &[]any{"Item", "Sheet", "Window", "Months", "Latest Smoothed"}); err != nil {
		return "", err
	}

	used := map[string]bool{strings.ToLower(summarySheet): true}
	for i, ts := range trends {
		sheet := uniqueSheetName(ts.Item, used)
		if err := w.writeItemSheet(f, sheet, ts); err != nil {
			return "", fmt.Errorf("failed to write sheet for %s: %w", ts.Item, err)
		}

		latest := any(nil)
		if n := len(ts.Smoothed); n > 0 && !math.IsNaN(ts.Smoothed[n-1]) {
			latest = ts.Smoothed[n-1]
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summarySheet, cell, &[]any{ts.Item, sheet, ts.Window, len(ts.Months), latest}); err != nil {
			return "", err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	w.logger.Info("usage trend workbook written",
		slog.String("path", path),
		slog.Int("items", len(trends)))
	return path, nil
}

func (w *WorkbookExporter) writeItemSheet(f *excelize.File, sheet string, ts analysis.TrendSeries) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	smoothedLabel := fmt.Sprintf("Smoothed (Window=%d)", ts.Window)
	if err := f.SetSheetRow(sheet, "A1", &[]any{"Month", "Raw Data", smoothedLabel}); err != nil {
		return err
	}
	for i, m := range ts.Months {
		var smoothed any
		if !math.IsNaN(ts.Smoothed[i]) {
			smoothed = ts.Smoothed[i]
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &[]any{m.String(), ts.Raw[i], smoothed}); err != nil {
			return err
		}
	}
	if len(ts.Months) == 0 {
		return nil
	}

	last := len(ts.Months) + 1
	ref := func(col string, from, to int) string {
		return fmt.Sprintf("'%s'!$%s$%d:$%s$%d", sheet, col, from, col, to)
	}
	series := func(col string, smooth bool) excelize.ChartSeries {
		return excelize.ChartSeries{
			Name:       fmt.Sprintf("'%s'!$%s$1", sheet, col),
			Categories: ref("A", 2, last),
			Values:     ref(col, 2, last),
			Line:       excelize.ChartLine{Smooth: smooth},
		}
	}
	return f.AddChart(sheet, chartAnchor, &excelize.Chart{
		Type:   excelize.Line,
		Series: []excelize.ChartSeries{series("B", false), series("C", true)},
		Title:  []excelize.RichTextRun{{Text: "Usage Trends for " + ts.Item}},
		Legend: excelize.ChartLegend{Position: "bottom"},
		XAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Month"}}},
		YAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Usage"}}},
		Dimension: excelize.ChartDimension{
			Width:  chartWidth,
			Height: chartHeight,
		},
	})
}

// uniqueSheetName makes an item name usable as a sheet name. used holds
// lower-cased names since sheet names compare case-insensitively.
func uniqueSheetName(item string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(invalidSheetC, r) {
			return '_'
		}
		return r
	}, item)
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Item"
	}
	name = truncateRunes(name, maxSheetName)

	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		candidate = truncateRunes(name, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
