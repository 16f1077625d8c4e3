package analysis

import (
	"slices"

	"emsinv/pkg/contracts/domain"
)

// DetectCriticalStock flags every month whose stock is below the item's
// peak monthly usage. ok is false for an empty series.
func DetectCriticalStock(months []domain.Month, stock, usage []float64) (domain.CriticalStockAnalysis, bool) {
	if len(usage) == 0 {
		return domain.CriticalStockAnalysis{}, false
	}
	result := domain.CriticalStockAnalysis{
		PeakUsage: slices.Max(usage),
		Months:    []domain.Month{},
	}
	for t, level := range stock {
		if level < result.PeakUsage {
			result.Months = append(result.Months, months[t])
		}
	}
	return result, true
}
