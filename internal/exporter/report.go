package exporter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"emsinv/internal/analysis"
	"emsinv/internal/config"
	"emsinv/pkg/contracts/domain"
)

// CSVReportExporter writes the analysis results as CSV and JSON report files
type CSVReportExporter struct {
	csvWriter *CSVWriter
	paths     *config.Paths
	logger    *slog.Logger
}

// NewCSVReportExporter creates a report exporter writing under paths.ReportsDir
func NewCSVReportExporter(paths *config.Paths, logger *slog.Logger) *CSVReportExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVReportExporter{
		csvWriter: NewCSVWriter(paths),
		paths:     paths,
		logger:    logger.With(slog.String("component", "report_exporter")),
	}
}

// ExportRestockEvents writes one row per flagged restock month
func (e *CSVReportExporter) ExportRestockEvents(report *domain.AnalysisReport) (string, error) {
	headers := []string{"Item", "Capacity", "Threshold", "Month"}
	records := [][]string{}
	for _, ia := range report.Items {
		if ia.Restock == nil {
			continue
		}
		for _, m := range ia.Restock.Months {
			records = append(records, []string{
				ia.Item,
				formatInt(ia.Restock.Capacity),
				formatFloat(ia.Restock.Threshold),
				m.String(),
			})
		}
	}
	return e.csvWriter.WriteFile(config.RestockEventsCSV, headers, records)
}

// ExportCriticalStock writes one row per month an item was below its peak usage
func (e *CSVReportExporter) ExportCriticalStock(report *domain.AnalysisReport) (string, error) {
	headers := []string{"Item", "PeakUsage", "Month"}
	records := [][]string{}
	for _, ia := range report.Items {
		if ia.Critical == nil {
			continue
		}
		for _, m := range ia.Critical.Months {
			records = append(records, []string{ia.Item, formatFloat(ia.Critical.PeakUsage), m.String()})
		}
	}
	return e.csvWriter.WriteFile(config.CriticalStockCSV, headers, records)
}

// ExportTrends streams every item's usage and smoothed usage. Months before
// the window fills have an empty Smoothed cell.
func (e *CSVReportExporter) ExportTrends(trends []analysis.TrendSeries) (string, error) {
	stream, err := e.csvWriter.Create(config.UsageTrendsCSV, []string{"Item", "Month", "Usage", "Smoothed", "Window"})
	if err != nil {
		return "", err
	}
	for _, ts := range trends {
		for i, m := range ts.Months {
			if err := stream.WriteRecord([]string{
				ts.Item,
				m.String(),
				formatFloat(ts.Raw[i]),
				formatFloat(ts.Smoothed[i]),
				formatInt(ts.Window),
			}); err != nil {
				stream.Abort()
				return "", fmt.Errorf("failed to write trend for %s: %w", ts.Item, err)
			}
		}
	}
	if err := stream.Close(); err != nil {
		return "", err
	}
	return stream.Path(), nil
}

// ExportJSON writes the full report, including skip notices
func (e *CSVReportExporter) ExportJSON(report *domain.AnalysisReport) (string, error) {
	path := e.paths.GetReportPath(config.AnalysisReportJSON)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// ExportText writes the console rendering of the report to a text file
func (e *CSVReportExporter) ExportText(report *domain.AnalysisReport, capacities domain.CapacityTable) (string, error) {
	path := e.paths.GetReportPath(config.AnalysisReportText)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := NewConsoleReporter(f).WriteAnalysis(report, capacities); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

// ExportAll writes every report file and returns their paths
func (e *CSVReportExporter) ExportAll(report *domain.AnalysisReport, trends []analysis.TrendSeries) ([]string, error) {
	steps := []func() (string, error){
		func() (string, error) { return e.ExportRestockEvents(report) },
		func() (string, error) { return e.ExportCriticalStock(report) },
		func() (string, error) { return e.ExportTrends(trends) },
		func() (string, error) { return e.ExportJSON(report) },
	}
	var written []string
	for _, step := range steps {
		path, err := step()
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	e.logger.Info("analysis reports exported", slog.Any("files", written))
	return written, nil
}
