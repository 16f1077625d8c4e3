package exporter

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"emsinv/internal/analysis"
	"emsinv/pkg/contracts/domain"
)

// ConsoleReporter writes human-readable reports
type ConsoleReporter struct {
	w io.Writer
}

// NewConsoleReporter creates a reporter writing to w
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

// WriteAnalysis prints the restock and critical stock report. Items follow
// the capacity table, then any analyzed items without a capacity.
func (c *ConsoleReporter) WriteAnalysis(report *domain.AnalysisReport, capacities domain.CapacityTable) error {
	var b strings.Builder
	b.WriteString("=== Restock and Critical Stock Analysis ===\n")

	if report == nil || (len(report.Items) == 0 && len(report.SkippedFor("")) > 0) {
		b.WriteString("No preprocessed data available for analysis.\n")
	} else {
		done := make(map[string]bool)
		for _, item := range capacities.Items() {
			done[item] = true
			ia, ok := report.Item(item)
			if !ok {
				fmt.Fprintf(&b, "Skipping %s, not found in data.\n", item)
				continue
			}
			writeItem(&b, ia)
		}
		for _, ia := range report.Items {
			if !done[ia.Item] {
				writeItem(&b, ia)
			}
		}
	}

	b.WriteString("\nAnalysis completed.\n")
	_, err := io.WriteString(c.w, b.String())
	return err
}

func writeItem(b *strings.Builder, ia domain.ItemAnalysis) {
	fmt.Fprintf(b, "\nAnalyzing %s...\n", ia.Item)

	switch r := ia.Restock; {
	case r == nil:
		fmt.Fprintf(b, "No capacity configured for %s, restock analysis skipped.\n", ia.Item)
	case len(r.Months) > 0:
		fmt.Fprintf(b, "Restocks occurred when inventory was below %s%% of max (%s):\n",
			thresholdPercent(r), formatReportFloat(r.Threshold))
		writeMonths(b, r.Months)
	default:
		b.WriteString("No restocks detected below critical levels.\n")
	}

	switch cs := ia.Critical; {
	case cs == nil:
		fmt.Fprintf(b, "No usage data available for %s.\n", ia.Item)
	case len(cs.Months) > 0:
		fmt.Fprintf(b, "Months when %s stock fell below max usage (%s):\n", ia.Item, formatReportFloat(cs.PeakUsage))
		writeMonths(b, cs.Months)
	default:
		b.WriteString("No critical stock issues detected.\n")
	}
}

func writeMonths(b *strings.Builder, months []domain.Month) {
	for _, m := range months {
		fmt.Fprintf(b, " - %s\n", m)
	}
}

// thresholdPercent recovers the ratio as a percentage, e.g. "20"
func thresholdPercent(r *domain.RestockAnalysis) string {
	if r.Capacity == 0 {
		return "0"
	}
	return decimal.NewFromFloat(r.Threshold).
		Div(decimal.NewFromInt(int64(r.Capacity))).
		Mul(decimal.NewFromInt(100)).
		Round(2).
		String()
}

// WriteTrends prints one line per smoothed usage series
func (c *ConsoleReporter) WriteTrends(trends []analysis.TrendSeries) error {
	if len(trends) == 0 {
		_, err := io.WriteString(c.w, "No usage data found for plotting.\n")
		return err
	}
	tw := tabwriter.NewWriter(c.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Item\tMonths\tWindow\tLatest Usage\tLatest Smoothed")
	for _, ts := range trends {
		latestRaw, latestSmoothed := "", ""
		if n := len(ts.Raw); n > 0 {
			latestRaw = formatFloat(ts.Raw[n-1])
			if !math.IsNaN(ts.Smoothed[n-1]) {
				latestSmoothed = formatFloat(ts.Smoothed[n-1])
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", ts.Item, len(ts.Months), ts.Window, latestRaw, latestSmoothed)
	}
	return tw.Flush()
}

// WriteTable prints a titled table sample, such as the first rows read back
// from the store
func (c *ConsoleReporter) WriteTable(title string, t domain.RawTable) error {
	tw := tabwriter.NewWriter(c.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, title)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
