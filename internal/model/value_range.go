package model

import "sync"

// ColumnValueRange holds the predicate constraints the planner has proven
// for a single column. Literal values are carried in their engine string
// form; the foreign scanner parses them against the column type.
type ColumnValueRange struct {
	MinValue     string   `json:"minValue,omitempty"`
	MinInclusive bool     `json:"minInclusive,omitempty"`
	MaxValue     string   `json:"maxValue,omitempty"`
	MaxInclusive bool     `json:"maxInclusive,omitempty"`
	InValues     []string `json:"inValues,omitempty"`
	ExcludeNull  bool     `json:"excludeNull,omitempty"`
}

// HasMin reports whether a lower bound is set.
func (r *ColumnValueRange) HasMin() bool { return r.MinValue != "" }

// HasMax reports whether an upper bound is set.
func (r *ColumnValueRange) HasMax() bool { return r.MaxValue != "" }

// ValueRangeMap maps column names to their known range constraints. The
// engine's dynamic filter propagation may add constraints concurrently
// between pushdown registration and scan start, so access is guarded.
// Constraints added after the bridge has pushed the map down are not
// re-pushed; see scan.PushdownAdapter.
type ValueRangeMap struct {
	mu     sync.RWMutex
	ranges map[string]*ColumnValueRange
}

// NewValueRangeMap creates an empty value range map.
func NewValueRangeMap() *ValueRangeMap {
	return &ValueRangeMap{ranges: make(map[string]*ColumnValueRange)}
}

// Set registers or replaces the constraint for a column.
func (m *ValueRangeMap) Set(column string, r *ColumnValueRange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranges[column] = r
}

// Get returns the constraint for a column, if any.
func (m *ValueRangeMap) Get(column string) (*ColumnValueRange, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.ranges[column]
	return r, ok
}

// Len returns the number of constrained columns.
func (m *ValueRangeMap) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ranges)
}

// Snapshot returns a copy of the current column→range mapping. The copy is
// what pushdown serializes; later mutations of the live map are invisible
// to it.
func (m *ValueRangeMap) Snapshot() map[string]*ColumnValueRange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*ColumnValueRange, len(m.ranges))
	for k, v := range m.ranges {
		out[k] = v
	}
	return out
}
