package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Well-known table and column names
const (
	MonthColumn = "Month"
	UsageSuffix = "_Usage"

	RawTableName          = "inventory"
	PreprocessedTableName = "preprocessed_inventory"
)

// UsageColumn returns the derived usage column name for an item
func UsageColumn(item string) string {
	return item + UsageSuffix
}

// IsUsageColumn reports whether a column holds a derived usage series
func IsUsageColumn(column string) bool {
	return strings.HasSuffix(column, UsageSuffix) && len(column) > len(UsageSuffix)
}

// ItemOfUsageColumn strips the usage suffix from a column name
func ItemOfUsageColumn(column string) string {
	return strings.TrimSuffix(column, UsageSuffix)
}

// RawTable is a tabular set of inventory rows as read from a store or file.
// An empty (or whitespace only) cell is a missing value.
type RawTable struct {
	Columns []string
	Rows    [][]string
}

// NewRawTable creates an empty table with the given header
func NewRawTable(columns ...string) RawTable {
	return RawTable{Columns: append([]string(nil), columns...)}
}

// Len returns the number of rows
func (t RawTable) Len() int {
	return len(t.Rows)
}

// IsEmpty reports whether the table has no rows
func (t RawTable) IsEmpty() bool {
	return len(t.Rows) == 0
}

// ColumnIndex returns the position of a column or -1
func (t RawTable) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the header contains name
func (t RawTable) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Append adds a row. The row must match the header width.
func (t *RawTable) Append(row ...string) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("row has %d cells, header has %d columns", len(row), len(t.Columns))
	}
	t.Rows = append(t.Rows, append([]string(nil), row...))
	return nil
}

// Head returns a copy of the table limited to the first n rows
func (t RawTable) Head(n int) RawTable {
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	if n < 0 {
		n = 0
	}
	head := RawTable{Columns: append([]string(nil), t.Columns...)}
	for _, row := range t.Rows[:n] {
		head.Rows = append(head.Rows, append([]string(nil), row...))
	}
	return head
}

// Clone returns a deep copy so callers can transform rows without touching the source
func (t RawTable) Clone() RawTable {
	return t.Head(len(t.Rows))
}

// Validate checks the table is rectangular and has unique column names
func (t RawTable) Validate() error {
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("empty column name")
		}
		if seen[c] {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = true
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, expected %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// missingTokens are the placeholders exporters commonly write for an absent value
var missingTokens = map[string]bool{
	"":     true,
	"NA":   true,
	"N/A":  true,
	"NaN":  true,
	"nan":  true,
	"NULL": true,
	"null": true,
	"None": true,
}

// IsMissing reports whether a cell holds no value
func IsMissing(cell string) bool {
	return missingTokens[strings.TrimSpace(cell)]
}

// IsNonFinite reports whether a cell parses as an infinite or NaN number,
// such as "Inf", "-Infinity" or "NAN"
func IsNonFinite(cell string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	return err == nil && (math.IsNaN(v) || math.IsInf(v, 0))
}
