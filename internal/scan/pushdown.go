package scan

import (
	"fmt"
	"sort"
	"strings"

	"hudi-scan-bridge/internal/model"
)

// PushdownAdapter carries the planner's value-range constraints into the
// foreign scanner. The live map is retained by reference, not copied:
// constraints the engine adds after the bridge has pushed the map down at
// init are not re-pushed, so they are applied only if the foreign scanner
// happens to re-read its configuration. That is a documented limitation
// of the protocol, not something the bridge papers over.
type PushdownAdapter struct {
	ranges *model.ValueRangeMap
}

// NewPushdownAdapter wraps the planner's value-range map.
func NewPushdownAdapter(ranges *model.ValueRangeMap) *PushdownAdapter {
	return &PushdownAdapter{ranges: ranges}
}

// Ranges returns the retained live map.
func (p *PushdownAdapter) Ranges() *model.ValueRangeMap { return p.ranges }

// Encode serializes the current snapshot of the constraints into the
// conjunction expression string handed to the foreign scanner's init
// call. Columns are emitted in sorted order so the wire form is
// deterministic.
func (p *PushdownAdapter) Encode() string {
	if p.ranges == nil || p.ranges.Len() == 0 {
		return ""
	}

	snapshot := p.ranges.Snapshot()
	columns := make([]string, 0, len(snapshot))
	for col := range snapshot {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	var terms []string
	for _, col := range columns {
		r := snapshot[col]
		if len(r.InValues) > 0 {
			terms = append(terms, fmt.Sprintf("%s IN (%s)", col, strings.Join(r.InValues, "|")))
		}
		if r.HasMin() {
			op := ">"
			if r.MinInclusive {
				op = ">="
			}
			terms = append(terms, fmt.Sprintf("%s %s %s", col, op, r.MinValue))
		}
		if r.HasMax() {
			op := "<"
			if r.MaxInclusive {
				op = "<="
			}
			terms = append(terms, fmt.Sprintf("%s %s %s", col, op, r.MaxValue))
		}
		if r.ExcludeNull {
			terms = append(terms, fmt.Sprintf("%s IS NOT NULL", col))
		}
	}

	return strings.Join(terms, " AND ")
}
