package analysis

import (
	"fmt"
	"iter"
	"math"

	apperrors "emsinv/internal/errors"
	"emsinv/pkg/contracts/domain"
)

// TrendSeries is one item's usage with its trailing moving average.
// Smoothed[t] is NaN while fewer than Window months are available.
type TrendSeries struct {
	Item     string         `json:"item"`
	Window   int            `json:"window"`
	Months   []domain.Month `json:"months"`
	Raw      []float64      `json:"raw"`
	Smoothed []float64      `json:"-"`
}

// Points yields the months that have a smoothed value
func (ts TrendSeries) Points() iter.Seq2[domain.Month, float64] {
	return func(yield func(domain.Month, float64) bool) {
		for i, v := range ts.Smoothed {
			if math.IsNaN(v) {
				continue
			}
			if !yield(ts.Months[i], v) {
				return
			}
		}
	}
}

// Defined returns the number of months with a smoothed value
func (ts TrendSeries) Defined() int {
	if n := len(ts.Smoothed) - ts.Window + 1; n > 0 {
		return n
	}
	return 0
}

// MovingAverage returns the trailing mean of each window of values.
// The first window-1 entries are NaN.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for t := range values {
		if window < 1 || t < window-1 {
			out[t] = math.NaN()
			continue
		}
		sum := 0.0
		for _, v := range values[t-window+1 : t+1] {
			sum += v
		}
		out[t] = sum / float64(window)
	}
	return out
}

// ValidateWindow rejects smoothing windows below one month
func ValidateWindow(window int) error {
	if window < 1 {
		return apperrors.NewAppValidationError(fmt.Sprintf("smoothing window must be at least 1, got %d", window)).
			WithContext("window", window)
	}
	return nil
}

// Trends smooths the usage of every item that has a usage series. Items
// without one are returned as skip notices.
func Trends(ds *domain.Dataset, window int) ([]TrendSeries, []domain.SkipNotice, error) {
	if err := ValidateWindow(window); err != nil {
		return nil, nil, err
	}
	if ds == nil {
		return nil, []domain.SkipNotice{{Analysis: domain.AnalysisTrend, Reason: reasonNoDataset}}, nil
	}

	var (
		trends  []TrendSeries
		skipped []domain.SkipNotice
	)
	for _, s := range ds.Series {
		if !s.HasUsage() {
			skipped = append(skipped, domain.SkipNotice{
				Item:     s.Item,
				Analysis: domain.AnalysisTrend,
				Reason:   reasonNoUsage,
			})
			continue
		}
		trends = append(trends, TrendSeries{
			Item:     s.Item,
			Window:   window,
			Months:   ds.Months,
			Raw:      s.Usage,
			Smoothed: MovingAverage(s.Usage, window),
		})
	}
	return trends, skipped, nil
}
