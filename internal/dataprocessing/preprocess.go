package dataprocessing

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	apperrors "emsinv/internal/errors"
	"emsinv/pkg/contracts/domain"
)

// Options configures the preprocessor
type Options struct {
	// OutlierSigma is the band half-width in standard deviations
	OutlierSigma float64
}

// DefaultOptions returns the standard 3-sigma configuration
func DefaultOptions() Options {
	return Options{OutlierSigma: 3}
}

// Preprocessor cleans raw inventory tables and derives usage
type Preprocessor struct {
	logger *slog.Logger
	opts   Options
}

// NewPreprocessor creates a preprocessor
func NewPreprocessor(logger *slog.Logger, opts Options) *Preprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.OutlierSigma <= 0 {
		opts.OutlierSigma = DefaultOptions().OutlierSigma
	}
	return &Preprocessor{
		logger: logger.With(slog.String("component", "preprocessor")),
		opts:   opts,
	}
}

// Preprocess runs the pipeline with default options and the default logger
func Preprocess(raw domain.RawTable, capacities domain.CapacityTable) (*domain.Dataset, error) {
	return NewPreprocessor(nil, DefaultOptions()).Preprocess(context.Background(), raw, capacities)
}

// Preprocess cleans raw and derives usage. It fails with a DATA error when
// the Month column is absent, when raw has no rows, or when no rows survive.
func (p *Preprocessor) Preprocess(ctx context.Context, raw domain.RawTable, capacities domain.CapacityTable) (*domain.Dataset, error) {
	ds, _, err := p.PreprocessWithStats(ctx, raw, capacities)
	return ds, err
}

// working is the mutable state threaded through the steps. rows always
// holds the surviving raw cells; values holds parsed numeric columns.
type working struct {
	columns  []string
	monthIdx int
	rows     [][]string
	numeric  []int // column indexes
	values   [][]float64
	months   []domain.Month
}

// PreprocessWithStats is Preprocess plus per-step row counts
func (p *Preprocessor) PreprocessWithStats(ctx context.Context, raw domain.RawTable, capacities domain.CapacityTable) (*domain.Dataset, Stats, error) {
	stats := Stats{InputRows: raw.Len()}

	if err := raw.Validate(); err != nil {
		return nil, stats, apperrors.NewDataError("malformed raw table", err)
	}
	monthIdx := raw.ColumnIndex(domain.MonthColumn)
	if monthIdx < 0 {
		return nil, stats, apperrors.NewDataError(fmt.Sprintf("raw table has no %q column", domain.MonthColumn), nil).
			WithContext("columns", raw.Columns)
	}
	if raw.IsEmpty() {
		return nil, stats, apperrors.NewDataError("raw table has no rows", nil)
	}

	w := &working{
		columns:  raw.Columns,
		monthIdx: monthIdx,
		rows:     raw.Clone().Rows,
	}

	for _, step := range []func(context.Context, *working, *Stats) error{
		p.dropMissing,
		p.dropDuplicates,
		p.cleanOutliers,
		p.normalizeMonths,
	} {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}
		if err := step(ctx, w, &stats); err != nil {
			return nil, stats, err
		}
	}
	usage := p.deriveUsage(ctx, w, capacities)
	usage = p.dropNonFinite(ctx, w, usage, &stats)

	if len(w.rows) == 0 {
		return nil, stats, apperrors.NewDataError("no rows left after cleaning", nil).
			WithContext("input_rows", stats.InputRows)
	}
	if len(w.numeric) == 0 {
		return nil, stats, apperrors.NewDataError("raw table has no numeric item columns", nil).
			WithContext("dropped_columns", stats.DroppedColumns)
	}

	ds := &domain.Dataset{Months: w.months}
	for n, col := range w.numeric {
		item := w.columns[col]
		ds.Series = append(ds.Series, domain.ItemSeries{
			Item:  item,
			Stock: w.values[n],
			Usage: usage[n],
		})
		stats.Items = append(stats.Items, item)
	}
	stats.OutputRows = ds.Len()

	if err := ds.Validate(); err != nil {
		return nil, stats, apperrors.NewDataError("preprocessed dataset is inconsistent", err)
	}

	p.logger.InfoContext(ctx, "data preprocessing completed",
		slog.Int("input_rows", stats.InputRows),
		slog.Int("output_rows", stats.OutputRows),
		slog.Int("items", len(stats.Items)))
	return ds, stats, nil
}

// dropMissing treats an infinite or NaN cell as missing, so usage is only
// ever differenced between finite stock levels
func (p *Preprocessor) dropMissing(ctx context.Context, w *working, stats *Stats) error {
	before := len(w.rows)
	w.rows = slices.DeleteFunc(w.rows, func(row []string) bool {
		return slices.ContainsFunc(row, unusable)
	})
	stats.MissingDropped = before - len(w.rows)
	p.logger.InfoContext(ctx, "missing values removed",
		slog.Int("rows_before", before), slog.Int("rows_dropped", stats.MissingDropped))
	return nil
}

func unusable(cell string) bool {
	return domain.IsMissing(cell) || domain.IsNonFinite(cell)
}

// dropDuplicates compares rows by value, so "500" and "500.0" are equal
func (p *Preprocessor) dropDuplicates(ctx context.Context, w *working, stats *Stats) error {
	before := len(w.rows)
	seen := make(map[string]bool, len(w.rows))
	kept := w.rows[:0]
	for _, row := range w.rows {
		key := rowKey(row)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, row)
	}
	w.rows = kept
	stats.DuplicatesDropped = before - len(w.rows)
	p.logger.InfoContext(ctx, "duplicates removed",
		slog.Int("rows_before", before), slog.Int("rows_dropped", stats.DuplicatesDropped))
	return nil
}

func rowKey(row []string) string {
	var b strings.Builder
	for i, cell := range row {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		cell = strings.TrimSpace(cell)
		if v, err := strconv.ParseFloat(cell, 64); err == nil {
			cell = strconv.FormatFloat(v, 'g', -1, 64)
		}
		b.WriteString(cell)
	}
	return b.String()
}

// cleanOutliers identifies the numeric columns, parses them and filters each
// in turn against the rows that survived the previous columns
func (p *Preprocessor) cleanOutliers(ctx context.Context, w *working, stats *Stats) error {
	for i, col := range w.columns {
		if i == w.monthIdx {
			continue
		}
		if isNumericColumn(w.rows, i) {
			w.numeric = append(w.numeric, i)
		} else {
			stats.DroppedColumns = append(stats.DroppedColumns, col)
		}
	}
	if len(stats.DroppedColumns) > 0 {
		p.logger.WarnContext(ctx, "non-numeric columns dropped",
			slog.Any("columns", stats.DroppedColumns))
	}

	before := len(w.rows)
	stats.OutliersByColumn = make(map[string]int)
	for _, col := range w.numeric {
		values := make([]float64, len(w.rows))
		for r, row := range w.rows {
			values[r], _ = strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		}
		keep := withinBand(values, p.opts.OutlierSigma)

		kept := w.rows[:0]
		for r, row := range w.rows {
			if keep[r] {
				kept = append(kept, row)
			}
		}
		if dropped := len(w.rows) - len(kept); dropped > 0 {
			stats.OutliersByColumn[w.columns[col]] = dropped
		}
		w.rows = kept
	}
	stats.OutliersDropped = before - len(w.rows)

	p.logger.InfoContext(ctx, "outliers cleaned",
		slog.Int("numeric_columns", len(w.numeric)),
		slog.Int("rows_dropped", stats.OutliersDropped))
	return nil
}

// isNumericColumn reports whether every remaining cell of col parses as a
// number. A column with no rows left counts as numeric.
func isNumericColumn(rows [][]string, col int) bool {
	for _, row := range rows {
		if _, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64); err != nil {
			return false
		}
	}
	return true
}

// normalizeMonths parses month keys, stable-sorts rows chronologically and
// keeps the first of any rows sharing a month
func (p *Preprocessor) normalizeMonths(ctx context.Context, w *working, stats *Stats) error {
	type keyed struct {
		month domain.Month
		row   []string
	}
	rows := make([]keyed, len(w.rows))
	for i, row := range w.rows {
		m, err := domain.ParseMonth(row[w.monthIdx])
		if err != nil {
			return apperrors.NewDataError(fmt.Sprintf("unparseable month %q", row[w.monthIdx]), err).
				WithContext("row", i)
		}
		rows[i] = keyed{month: m, row: row}
	}
	slices.SortStableFunc(rows, func(a, b keyed) int {
		return a.month.Compare(b.month)
	})

	w.rows = w.rows[:0]
	w.months = w.months[:0]
	var duplicates []string
	for i, k := range rows {
		if i > 0 && k.month == rows[i-1].month {
			duplicates = append(duplicates, k.month.String())
			continue
		}
		w.rows = append(w.rows, k.row)
		w.months = append(w.months, k.month)
	}
	stats.DuplicateMonthsDropped = len(duplicates)
	if len(duplicates) > 0 {
		p.logger.WarnContext(ctx, "conflicting rows for the same month dropped",
			slog.Any("months", slices.Compact(duplicates)))
	}

	w.values = make([][]float64, len(w.numeric))
	for n, col := range w.numeric {
		w.values[n] = make([]float64, len(w.rows))
		for r, row := range w.rows {
			w.values[n][r], _ = strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
		}
	}

	p.logger.InfoContext(ctx, "months normalized", slog.Int("rows", len(w.rows)))
	return nil
}

func (p *Preprocessor) deriveUsage(ctx context.Context, w *working, capacities domain.CapacityTable) [][]float64 {
	usage := make([][]float64, len(w.numeric))
	var uncapped []string
	for n, col := range w.numeric {
		item := w.columns[col]
		capacity, ok := capacities.Capacity(item)
		if !ok {
			uncapped = append(uncapped, item)
		}
		usage[n] = DeriveUsage(w.values[n], float64(capacity))
	}
	if len(uncapped) > 0 {
		p.logger.DebugContext(ctx, "items without capacity are never treated as maxed out",
			slog.Any("items", uncapped))
	}
	p.logger.InfoContext(ctx, "usage derived", slog.Int("items", len(w.numeric)))
	return usage
}

// dropNonFinite removes any month where a stock or usage value is NaN or
// infinite, keeping months, values and usage aligned
func (p *Preprocessor) dropNonFinite(ctx context.Context, w *working, usage [][]float64, stats *Stats) [][]float64 {
	keep := make([]bool, len(w.months))
	for r := range keep {
		keep[r] = true
		for n := range w.numeric {
			if !isFinite(w.values[n][r]) || !isFinite(usage[n][r]) {
				keep[r] = false
				break
			}
		}
	}

	filter := func(xs []float64) []float64 {
		out := xs[:0]
		for r, x := range xs {
			if keep[r] {
				out = append(out, x)
			}
		}
		return out
	}
	for n := range w.numeric {
		w.values[n] = filter(w.values[n])
		usage[n] = filter(usage[n])
	}

	before := len(w.months)
	months := w.months[:0]
	rows := w.rows[:0]
	for r := range keep {
		if keep[r] {
			months = append(months, w.months[r])
			rows = append(rows, w.rows[r])
		}
	}
	w.months, w.rows = months, rows
	stats.NonFiniteDropped = before - len(w.months)

	p.logger.InfoContext(ctx, "rows with non-finite values dropped",
		slog.Int("rows_dropped", stats.NonFiniteDropped))
	return usage
}
