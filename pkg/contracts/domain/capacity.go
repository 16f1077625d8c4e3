package domain

import (
	"fmt"
	"strings"
)

// ItemCapacity is the configured maximum stock level for one item
type ItemCapacity struct {
	Item     string `json:"item" yaml:"item" validate:"required"`
	Capacity int    `json:"capacity" yaml:"capacity" validate:"required,gt=0"`
}

// CapacityTable maps item names to their maximum stock capacity.
// It keeps insertion order so reports are stable, and is immutable once built.
type CapacityTable struct {
	entries []ItemCapacity
	index   map[string]int
}

// NewCapacityTable builds a table from ordered entries
func NewCapacityTable(entries ...ItemCapacity) (CapacityTable, error) {
	t := CapacityTable{
		entries: make([]ItemCapacity, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		name := strings.TrimSpace(e.Item)
		if name == "" {
			return CapacityTable{}, fmt.Errorf("capacity entry with empty item name")
		}
		if e.Capacity <= 0 {
			return CapacityTable{}, fmt.Errorf("capacity for %q must be positive, got %d", name, e.Capacity)
		}
		if _, dup := t.index[name]; dup {
			return CapacityTable{}, fmt.Errorf("duplicate capacity entry for %q", name)
		}
		t.index[name] = len(t.entries)
		t.entries = append(t.entries, ItemCapacity{Item: name, Capacity: e.Capacity})
	}
	return t, nil
}

// MustCapacityTable is like NewCapacityTable but panics on error
func MustCapacityTable(entries ...ItemCapacity) CapacityTable {
	t, err := NewCapacityTable(entries...)
	if err != nil {
		panic(err)
	}
	return t
}

// Capacity returns the capacity for an item
func (t CapacityTable) Capacity(item string) (int, bool) {
	i, ok := t.index[item]
	if !ok {
		return 0, false
	}
	return t.entries[i].Capacity, true
}

// Has reports whether the item has a configured capacity
func (t CapacityTable) Has(item string) bool {
	_, ok := t.index[item]
	return ok
}

// Items returns item names in table order
func (t CapacityTable) Items() []string {
	items := make([]string, len(t.entries))
	for i, e := range t.entries {
		items[i] = e.Item
	}
	return items
}

// Entries returns a copy of the table entries in order
func (t CapacityTable) Entries() []ItemCapacity {
	return append([]ItemCapacity(nil), t.entries...)
}

// Len returns the number of configured items
func (t CapacityTable) Len() int {
	return len(t.entries)
}
