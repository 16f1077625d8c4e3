package domain

import "time"

// AnalysisKind names one of the advisory analyses
type AnalysisKind string

const (
	AnalysisTrend    AnalysisKind = "trend"
	AnalysisRestock  AnalysisKind = "restock"
	AnalysisCritical AnalysisKind = "critical_stock"
	// AnalysisAll marks a notice that applies to every analysis
	AnalysisAll AnalysisKind = "all"
)

// SkipNotice records an analysis that could not run for an item
type SkipNotice struct {
	Item     string       `json:"item"`
	Analysis AnalysisKind `json:"analysis"`
	Reason   string       `json:"reason"`
}

// RestockAnalysis lists the months an item was restocked from below the critical threshold
type RestockAnalysis struct {
	Capacity  int     `json:"capacity"`
	Threshold float64 `json:"threshold"`
	Months    []Month `json:"months"`
}

// CriticalStockAnalysis lists the months stock fell below the worst observed monthly usage
type CriticalStockAnalysis struct {
	PeakUsage float64 `json:"peak_usage"`
	Months    []Month `json:"months"`
}

// ItemAnalysis is the per-item result. A nil section means the analysis was skipped.
type ItemAnalysis struct {
	Item     string                 `json:"item"`
	Restock  *RestockAnalysis       `json:"restock,omitempty"`
	Critical *CriticalStockAnalysis `json:"critical,omitempty"`
}

// AnalysisReport is the restock and critical stock report for a dataset
type AnalysisReport struct {
	GeneratedAt time.Time      `json:"generated_at"`
	FirstMonth  Month          `json:"first_month"`
	LastMonth   Month          `json:"last_month"`
	Items       []ItemAnalysis `json:"items"`
	Skipped     []SkipNotice   `json:"skipped,omitempty"`
}

// Item returns the analysis for an item
func (r *AnalysisReport) Item(item string) (ItemAnalysis, bool) {
	if r == nil {
		return ItemAnalysis{}, false
	}
	for _, ia := range r.Items {
		if ia.Item == item {
			return ia, true
		}
	}
	return ItemAnalysis{}, false
}

// SkippedFor returns the skip notices recorded for an item
func (r *AnalysisReport) SkippedFor(item string) []SkipNotice {
	if r == nil {
		return nil
	}
	var notices []SkipNotice
	for _, n := range r.Skipped {
		if n.Item == item {
			notices = append(notices, n)
		}
	}
	return notices
}
