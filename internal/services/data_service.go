package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"emsinv/internal/analysis"
	"emsinv/internal/config"
	apperrors "emsinv/internal/errors"
	"emsinv/internal/infrastructure"
	"emsinv/internal/operations"
	"emsinv/pkg/contracts/domain"
)

// DataService serves the stored preprocessed inventory
type DataService struct {
	config     *config.Config
	capacities domain.CapacityTable
	openStore  operations.StoreOpener
	root       *slog.Logger
	logger     *slog.Logger
}

// ItemSummary describes one item of the preprocessed dataset
type ItemSummary struct {
	Item        string       `json:"item"`
	Capacity    int          `json:"capacity,omitempty"`
	Months      int          `json:"months"`
	FirstMonth  domain.Month `json:"first_month"`
	LastMonth   domain.Month `json:"last_month"`
	LatestStock float64      `json:"latest_stock"`
	TotalUsage  float64      `json:"total_usage"`
	PeakUsage   float64      `json:"peak_usage"`
}

// ItemList is the response of the item listing
type ItemList struct {
	Items []ItemSummary `json:"items"`
	Count int           `json:"count"`
}

// TrendPoint is one month of a usage trend. Smoothed is null until the
// window is filled.
type TrendPoint struct {
	Month    domain.Month `json:"month"`
	Usage    float64      `json:"usage"`
	Smoothed *float64     `json:"smoothed"`
}

// TrendResponse is an item's usage with its moving average
type TrendResponse struct {
	Item   string       `json:"item"`
	Window int          `json:"window"`
	Points []TrendPoint `json:"points"`
}

// NewDataService creates a data service reading through openStore
func NewDataService(cfg *config.Config, capacities domain.CapacityTable, openStore operations.StoreOpener, logger *slog.Logger) *DataService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataService{
		config:     cfg,
		capacities: capacities,
		openStore:  openStore,
		root:       logger,
		logger:     infrastructure.WithComponent(logger, "data_service"),
	}
}

// dataset loads the preprocessed table. A missing table surfaces as
// INPUT_NOT_FOUND.
func (s *DataService) dataset(ctx context.Context) (*domain.Dataset, error) {
	st, err := s.openStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	table, err := st.Load(ctx, s.config.Store.CleanedTable)
	if err != nil {
		return nil, err
	}
	ds, err := domain.DatasetFromTable(table)
	if err != nil {
		return nil, apperrors.NewDataError("invalid preprocessed table", err)
	}
	return ds, nil
}

// GetItems summarizes every item of the stored dataset
func (s *DataService) GetItems(ctx context.Context) (*ItemList, error) {
	start := time.Now()
	ds, err := s.dataset(ctx)
	if err != nil {
		logDataError(ctx, s.logger, "get_items", err)
		return nil, err
	}

	list := &ItemList{Items: make([]ItemSummary, 0, len(ds.Series))}
	for _, series := range ds.Series {
		summary := ItemSummary{
			Item:   series.Item,
			Months: ds.Len(),
		}
		if c, ok := s.capacities.Capacity(series.Item); ok {
			summary.Capacity = c
		}
		if n := ds.Len(); n > 0 {
			summary.FirstMonth = ds.Months[0]
			summary.LastMonth = ds.Months[n-1]
			summary.LatestStock = series.Stock[n-1]
		}
		for _, u := range series.Usage {
			summary.TotalUsage += u
			summary.PeakUsage = math.Max(summary.PeakUsage, u)
		}
		list.Items = append(list.Items, summary)
	}
	list.Count = len(list.Items)

	logDataDebug(ctx, s.logger, "get_items", start, slog.Int("items", list.Count))
	return list, nil
}

// GetItemTrend returns an item's usage smoothed over window months. A zero
// window uses the configured smoothing window.
func (s *DataService) GetItemTrend(ctx context.Context, item string, window int) (*TrendResponse, error) {
	start := time.Now()
	if window == 0 {
		window = s.config.Analysis.SmoothingWindow
	}
	if err := analysis.ValidateWindow(window); err != nil {
		return nil, err
	}

	ds, err := s.dataset(ctx)
	if err != nil {
		logDataError(ctx, s.logger, "get_item_trend", err, slog.String("item", item))
		return nil, err
	}
	series, ok := ds.Lookup(item)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, item)
	}
	if !series.HasUsage() {
		return nil, apperrors.NewComputationSkipped(item, string(domain.AnalysisTrend), "no usage series")
	}

	smoothed := analysis.MovingAverage(series.Usage, window)
	resp := &TrendResponse{
		Item:   item,
		Window: window,
		Points: make([]TrendPoint, len(ds.Months)),
	}
	for i, m := range ds.Months {
		p := TrendPoint{Month: m, Usage: series.Usage[i]}
		if !math.IsNaN(smoothed[i]) {
			v := smoothed[i]
			p.Smoothed = &v
		}
		resp.Points[i] = p
	}

	logDataDebug(ctx, s.logger, "get_item_trend", start,
		slog.String("item", item), slog.Int("window", window))
	return resp, nil
}

// GetAnalysisReport runs the restock and critical stock analyses over the
// stored dataset
func (s *DataService) GetAnalysisReport(ctx context.Context) (*domain.AnalysisReport, error) {
	start := time.Now()
	ds, err := s.dataset(ctx)
	if err != nil {
		logDataError(ctx, s.logger, "get_analysis_report", err)
		return nil, err
	}

	analyzer, err := analysis.NewAnalyzer(s.root, analysis.Options{
		SmoothingWindow:       s.config.Analysis.SmoothingWindow,
		RestockThresholdRatio: s.config.Analysis.RestockThresholdRatio,
	})
	if err != nil {
		return nil, apperrors.NewConfigError("invalid analysis settings", err)
	}
	report := analyzer.Analyze(ctx, ds, s.capacities)

	logDataDebug(ctx, s.logger, "get_analysis_report", start,
		slog.Int("items", len(report.Items)), slog.Int("skipped", len(report.Skipped)))
	return report, nil
}

// logDataError logs a failed read. Missing data is expected before the
// first pipeline run and logs at warn.
func logDataError(ctx context.Context, logger *slog.Logger, action string, err error, attrs ...slog.Attr) {
	level := slog.LevelError
	if apperrors.IsInputNotFound(err) {
		level = slog.LevelWarn
	}
	attrs = append([]slog.Attr{
		slog.String("action", action),
		slog.String("error", err.Error()),
	}, attrs...)
	logger.LogAttrs(ctx, level, "data request failed", attrs...)
}

func logDataDebug(ctx context.Context, logger *slog.Logger, action string, start time.Time, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{
		slog.String("action", action),
		slog.Duration("duration", time.Since(start)),
	}, attrs...)
	logger.LogAttrs(ctx, slog.LevelDebug, "data request served", attrs...)
}
