package analysis

import (
	"github.com/shopspring/decimal"

	"emsinv/pkg/contracts/domain"
)

// RestockThreshold returns ratio × capacity computed in decimal, so 0.2 × 20
// is exactly 4 rather than 4.000000000000001
func RestockThreshold(ratio float64, capacity int) decimal.Decimal {
	return decimal.NewFromFloat(ratio).Mul(decimal.NewFromInt(int64(capacity)))
}

// DetectRestocks flags every month t ≥ 1 where stock rose from a prior level
// strictly below the threshold
func DetectRestocks(months []domain.Month, stock []float64, capacity int, ratio float64) domain.RestockAnalysis {
	threshold := RestockThreshold(ratio, capacity)
	result := domain.RestockAnalysis{
		Capacity:  capacity,
		Threshold: threshold.InexactFloat64(),
		Months:    []domain.Month{},
	}
	for t := 1; t < len(stock); t++ {
		rose := stock[t]-stock[t-1] > 0
		if rose && decimal.NewFromFloat(stock[t-1]).LessThan(threshold) {
			result.Months = append(result.Months, months[t])
		}
	}
	return result
}
