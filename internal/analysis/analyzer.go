package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apperrors "emsinv/internal/errors"
	"emsinv/pkg/contracts/domain"
)

const (
	reasonNoDataset  = "no preprocessed dataset"
	reasonNotFound   = "not found in data"
	reasonNoUsage    = "no usage data available"
	reasonNoCapacity = "no capacity configured"
	reasonNoMonths   = "no months in dataset"
)

// Options configures the analyzer
type Options struct {
	SmoothingWindow       int
	RestockThresholdRatio float64
}

// DefaultOptions returns a 3-month window and a 20% restock threshold
func DefaultOptions() Options {
	return Options{SmoothingWindow: 3, RestockThresholdRatio: 0.2}
}

// Validate checks the options
func (o Options) Validate() error {
	if err := ValidateWindow(o.SmoothingWindow); err != nil {
		return err
	}
	if o.RestockThresholdRatio <= 0 || o.RestockThresholdRatio > 1 {
		return apperrors.NewAppValidationError(
			fmt.Sprintf("restock threshold ratio must be in (0, 1], got %v", o.RestockThresholdRatio))
	}
	return nil
}

// Analyzer runs the trend, restock and critical stock analyses
type Analyzer struct {
	logger *slog.Logger
	opts   Options
	now    func() time.Time
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(logger *slog.Logger, opts Options) (*Analyzer, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		logger: logger.With(slog.String("component", "analyzer")),
		opts:   opts,
		now:    time.Now,
	}, nil
}

// Options returns the analyzer configuration
func (a *Analyzer) Options() Options {
	return a.opts
}

// Analyze bundles restock and critical stock detection with the default
// threshold ratio
func Analyze(ds *domain.Dataset, capacities domain.CapacityTable, window int) (*domain.AnalysisReport, error) {
	opts := DefaultOptions()
	opts.SmoothingWindow = window
	a, err := NewAnalyzer(nil, opts)
	if err != nil {
		return nil, err
	}
	return a.Analyze(context.Background(), ds, capacities), nil
}

// Trends smooths every item's usage with the configured window
func (a *Analyzer) Trends(ctx context.Context, ds *domain.Dataset) ([]TrendSeries, []domain.SkipNotice) {
	// the window was validated by NewAnalyzer
	trends, skipped, _ := Trends(ds, a.opts.SmoothingWindow)
	for _, n := range skipped {
		a.logSkip(ctx, n)
	}
	return trends, skipped
}

// Analyze runs restock and critical stock detection. Capacity table items
// come first in table order, followed by dataset items without a capacity.
// A nil dataset yields an empty report with a single skip notice.
func (a *Analyzer) Analyze(ctx context.Context, ds *domain.Dataset, capacities domain.CapacityTable) *domain.AnalysisReport {
	report := &domain.AnalysisReport{
		GeneratedAt: a.now().UTC(),
		Items:       []domain.ItemAnalysis{},
	}
	skip := func(item string, kind domain.AnalysisKind, reason string) {
		n := domain.SkipNotice{Item: item, Analysis: kind, Reason: reason}
		report.Skipped = append(report.Skipped, n)
		a.logSkip(ctx, n)
	}

	if ds == nil {
		skip("", domain.AnalysisAll, reasonNoDataset)
		return report
	}
	if ds.Len() > 0 {
		report.FirstMonth = ds.Months[0]
		report.LastMonth = ds.Months[ds.Len()-1]
	}

	for _, item := range capacities.Items() {
		series, ok := ds.Lookup(item)
		if !ok {
			skip(item, domain.AnalysisRestock, reasonNotFound)
			skip(item, domain.AnalysisCritical, reasonNotFound)
			continue
		}
		capacity, _ := capacities.Capacity(item)
		restock := DetectRestocks(ds.Months, series.Stock, capacity, a.opts.RestockThresholdRatio)
		ia := domain.ItemAnalysis{Item: item, Restock: &restock}
		ia.Critical = a.critical(ds, series, skip)
		report.Items = append(report.Items, ia)
	}

	for _, series := range ds.Series {
		if capacities.Has(series.Item) {
			continue
		}
		skip(series.Item, domain.AnalysisRestock, reasonNoCapacity)
		report.Items = append(report.Items, domain.ItemAnalysis{
			Item:     series.Item,
			Critical: a.critical(ds, series, skip),
		})
	}

	a.logger.InfoContext(ctx, "analysis completed",
		slog.Int("items", len(report.Items)),
		slog.Int("skipped", len(report.Skipped)))
	return report
}

func (a *Analyzer) critical(ds *domain.Dataset, series domain.ItemSeries, skip func(string, domain.AnalysisKind, string)) *domain.CriticalStockAnalysis {
	if !series.HasUsage() {
		skip(series.Item, domain.AnalysisCritical, reasonNoUsage)
		return nil
	}
	result, ok := DetectCriticalStock(ds.Months, series.Stock, series.Usage)
	if !ok {
		skip(series.Item, domain.AnalysisCritical, reasonNoMonths)
		return nil
	}
	return &result
}

func (a *Analyzer) logSkip(ctx context.Context, n domain.SkipNotice) {
	err := apperrors.NewComputationSkipped(n.Item, string(n.Analysis), n.Reason)
	a.logger.WarnContext(ctx, "analysis skipped",
		slog.String("item", n.Item),
		slog.String("analysis", string(n.Analysis)),
		slog.String("error", err.Error()))
}
