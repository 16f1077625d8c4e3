package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ItemSeries is one item's stock levels and derived usage, aligned with Dataset.Months.
// Usage is nil when the source carried no usage column for the item.
type ItemSeries struct {
	Item  string    `json:"item"`
	Stock []float64 `json:"stock"`
	Usage []float64 `json:"usage,omitempty"`
}

// HasUsage reports whether a usage series is present
func (s ItemSeries) HasUsage() bool {
	return s.Usage != nil
}

// Dataset is a cleaned, chronologically ordered set of monthly inventory series
type Dataset struct {
	Months []Month      `json:"months"`
	Series []ItemSeries `json:"series"`
}

// InventoryRecord is a single month of a dataset in row form
type InventoryRecord struct {
	Month Month              `json:"month"`
	Stock map[string]float64 `json:"stock"`
	Usage map[string]float64 `json:"usage,omitempty"`
}

// Len returns the number of months
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Months)
}

// Items returns the item names in column order
func (d *Dataset) Items() []string {
	if d == nil {
		return nil
	}
	items := make([]string, len(d.Series))
	for i, s := range d.Series {
		items[i] = s.Item
	}
	return items
}

// Lookup returns the series for an item
func (d *Dataset) Lookup(item string) (ItemSeries, bool) {
	if d == nil {
		return ItemSeries{}, false
	}
	for _, s := range d.Series {
		if s.Item == item {
			return s, true
		}
	}
	return ItemSeries{}, false
}

// Record returns month i in row form
func (d *Dataset) Record(i int) InventoryRecord {
	rec := InventoryRecord{
		Month: d.Months[i],
		Stock: make(map[string]float64, len(d.Series)),
	}
	for _, s := range d.Series {
		rec.Stock[s.Item] = s.Stock[i]
		if s.HasUsage() {
			if rec.Usage == nil {
				rec.Usage = make(map[string]float64, len(d.Series))
			}
			rec.Usage[s.Item] = s.Usage[i]
		}
	}
	return rec
}

// Validate checks the structural invariants: aligned series, strictly increasing
// months and finite values.
func (d *Dataset) Validate() error {
	if d == nil {
		return fmt.Errorf("nil dataset")
	}
	for i := 1; i < len(d.Months); i++ {
		if !d.Months[i-1].Before(d.Months[i]) {
			return fmt.Errorf("months not strictly increasing at %s", d.Months[i])
		}
	}
	for _, s := range d.Series {
		if len(s.Stock) != len(d.Months) {
			return fmt.Errorf("item %q has %d stock values for %d months", s.Item, len(s.Stock), len(d.Months))
		}
		if s.HasUsage() && len(s.Usage) != len(d.Months) {
			return fmt.Errorf("item %q has %d usage values for %d months", s.Item, len(s.Usage), len(d.Months))
		}
		for i, v := range s.Stock {
			if !finite(v) {
				return fmt.Errorf("item %q has non-finite stock at %s", s.Item, d.Months[i])
			}
		}
		for i, v := range s.Usage {
			if !finite(v) {
				return fmt.Errorf("item %q has non-finite usage at %s", s.Item, d.Months[i])
			}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ToTable renders the dataset as Month, item columns, then usage columns
func (d *Dataset) ToTable() RawTable {
	t := RawTable{Columns: []string{MonthColumn}}
	for _, s := range d.Series {
		t.Columns = append(t.Columns, s.Item)
	}
	for _, s := range d.Series {
		if s.HasUsage() {
			t.Columns = append(t.Columns, UsageColumn(s.Item))
		}
	}
	for i, m := range d.Months {
		row := make([]string, 0, len(t.Columns))
		row = append(row, m.String())
		for _, s := range d.Series {
			row = append(row, FormatValue(s.Stock[i]))
		}
		for _, s := range d.Series {
			if s.HasUsage() {
				row = append(row, FormatValue(s.Usage[i]))
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// DatasetFromTable parses an already preprocessed table. Usage columns are
// attached to their item; items without one keep a nil Usage.
func DatasetFromTable(t RawTable) (*Dataset, error) {
	monthIdx := t.ColumnIndex(MonthColumn)
	if monthIdx < 0 {
		return nil, fmt.Errorf("missing %q column", MonthColumn)
	}
	ds := &Dataset{Months: make([]Month, 0, len(t.Rows))}
	stockCols := make(map[string]int)
	usageCols := make(map[string]int)
	for i, c := range t.Columns {
		switch {
		case i == monthIdx:
		case IsUsageColumn(c):
			usageCols[ItemOfUsageColumn(c)] = i
		default:
			stockCols[c] = i
			ds.Series = append(ds.Series, ItemSeries{Item: c, Stock: make([]float64, 0, len(t.Rows))})
		}
	}
	for si := range ds.Series {
		if _, ok := usageCols[ds.Series[si].Item]; ok {
			ds.Series[si].Usage = make([]float64, 0, len(t.Rows))
		}
	}

	for r, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("row %d has %d cells, expected %d", r, len(row), len(t.Columns))
		}
		m, err := ParseMonth(row[monthIdx])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r, err)
		}
		ds.Months = append(ds.Months, m)
		for si := range ds.Series {
			s := &ds.Series[si]
			v, err := ParseValue(row[stockCols[s.Item]])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r, s.Item, err)
			}
			s.Stock = append(s.Stock, v)
			if s.Usage != nil {
				u, err := ParseValue(row[usageCols[s.Item]])
				if err != nil {
					return nil, fmt.Errorf("row %d column %q: %w", r, UsageColumn(s.Item), err)
				}
				s.Usage = append(s.Usage, u)
			}
		}
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}

// ParseValue parses a numeric cell
func ParseValue(cell string) (float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, fmt.Errorf("missing value")
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", cell, err)
	}
	return v, nil
}

// FormatValue renders a numeric value without trailing zeros (20, 12.5)
func FormatValue(v float64) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
