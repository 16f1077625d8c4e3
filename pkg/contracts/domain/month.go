package domain

import (
	"fmt"
	"strings"
	"time"
)

// MonthLayout is the canonical text form of a Month
const MonthLayout = "2006-01"

// monthLayouts lists the accepted month key formats, most specific last
var monthLayouts = []string{
	MonthLayout,
	"2006/01",
	"2006-01-02",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Month is a calendar month, the temporal key of every inventory series
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth creates a month value
func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

// MonthOf truncates a timestamp to its calendar month
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a month key. Day and time components are accepted and discarded.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Month{}, fmt.Errorf("empty month key")
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return MonthOf(t), nil
		}
	}
	return Month{}, fmt.Errorf("unable to parse month: %q", s)
}

// MustParseMonth is like ParseMonth but panics on error. Intended for fixtures.
func MustParseMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String formats the month as YYYY-MM
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Time returns the first instant of the month in UTC
func (m Month) Time() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Index returns a monotonically increasing month number
func (m Month) Index() int {
	return m.Year*12 + int(m.Month) - 1
}

// Before reports whether m is earlier than o
func (m Month) Before(o Month) bool {
	return m.Index() < o.Index()
}

// After reports whether m is later than o
func (m Month) After(o Month) bool {
	return m.Index() > o.Index()
}

// Compare returns -1, 0 or +1 for use with slices.SortFunc
func (m Month) Compare(o Month) int {
	switch {
	case m.Before(o):
		return -1
	case m.After(o):
		return 1
	default:
		return 0
	}
}

// AddMonths returns the month n months after m
func (m Month) AddMonths(n int) Month {
	idx := m.Index() + n
	return Month{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

// IsZero reports whether the month is unset
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// MarshalText implements encoding.TextMarshaler
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// MonthRange returns every month from first through last inclusive
func MonthRange(first, last Month) []Month {
	if last.Before(first) {
		return nil
	}
	months := make([]Month, 0, last.Index()-first.Index()+1)
	for m := first; !m.After(last); m = m.AddMonths(1) {
		months = append(months, m)
	}
	return months
}
