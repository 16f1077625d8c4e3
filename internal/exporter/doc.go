// Package exporter writes pipeline results for people and spreadsheets.
//
// CSVWriter: whole-file and streaming CSV output with a UTF-8 BOM, published
// by rename so a report is never half written.
//
// CSVReportExporter: restock events, critical stock months, usage trends and
// the full JSON report under the reports directory.
//
// WorkbookExporter: usage_trends.xlsx with one sheet and line chart per item.
//
// ConsoleReporter: the plain-text restock and critical stock report.
//
// Example usage:
//
//	reports := exporter.NewCSVReportExporter(paths, logger)
//	files, err := reports.ExportAll(report, trends)
//
//	exporter.NewConsoleReporter(os.Stdout).WriteAnalysis(report, capacities)
package exporter
