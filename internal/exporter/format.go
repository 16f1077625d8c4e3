package exporter

import (
	"math"
	"strconv"
	"strings"

	"emsinv/pkg/contracts/domain"
)

// formatFloat renders a value with no trailing zeros. NaN renders empty.
func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return domain.FormatValue(f)
}

// formatInt formats an int value for CSV output
func formatInt(i int) string {
	return strconv.Itoa(i)
}

// formatReportFloat renders a float the way the report text always has:
// at least one decimal place (100.0, 4.0, 0.6)
func formatReportFloat(f float64) string {
	s := formatFloat(f)
	if s != "" && !strings.ContainsAny(s, ".eE") && !math.IsInf(f, 0) {
		s += ".0"
	}
	return s
}
