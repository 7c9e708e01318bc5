package scan

import (
	"testing"

	"hudi-scan-bridge/internal/model"
)

func TestPushdownEncodeEmpty(t *testing.T) {
	if got := NewPushdownAdapter(nil).Encode(); got != "" {
		t.Errorf("nil map should encode empty, got %q", got)
	}
	if got := NewPushdownAdapter(model.NewValueRangeMap()).Encode(); got != "" {
		t.Errorf("empty map should encode empty, got %q", got)
	}
}

func TestPushdownEncodeConjunction(t *testing.T) {
	ranges := model.NewValueRangeMap()
	ranges.Set("id", &model.ColumnValueRange{
		MinValue: "1", MinInclusive: true,
		MaxValue: "100", MaxInclusive: false,
	})
	ranges.Set("name", &model.ColumnValueRange{
		InValues:    []string{"a", "b"},
		ExcludeNull: true,
	})

	got := NewPushdownAdapter(ranges).Encode()
	want := "id >= 1 AND id < 100 AND name IN (a|b) AND name IS NOT NULL"
	if got != want {
		t.Errorf("Encode() = %q, want %q", got, want)
	}
}

func TestPushdownRetainsLiveMap(t *testing.T) {
	ranges := model.NewValueRangeMap()
	adapter := NewPushdownAdapter(ranges)

	if adapter.Ranges() != ranges {
		t.Fatal("adapter must retain the live map by reference")
	}

	// Constraints added after registration are visible through the
	// retained map, but an already-encoded string never changes.
	before := adapter.Encode()
	ranges.Set("id", &model.ColumnValueRange{MinValue: "5", MinInclusive: true})
	after := adapter.Encode()

	if before != "" {
		t.Errorf("encode before constraint should be empty, got %q", before)
	}
	if after != "id >= 5" {
		t.Errorf("encode after constraint = %q, want %q", after, "id >= 5")
	}
}

func TestPushdownSnapshotIsolation(t *testing.T) {
	ranges := model.NewValueRangeMap()
	ranges.Set("id", &model.ColumnValueRange{MinValue: "1", MinInclusive: true})

	snapshot := ranges.Snapshot()
	ranges.Set("name", &model.ColumnValueRange{ExcludeNull: true})

	if len(snapshot) != 1 {
		t.Errorf("snapshot must not see later mutations, has %d entries", len(snapshot))
	}
	if ranges.Len() != 2 {
		t.Errorf("live map should have 2 entries, has %d", ranges.Len())
	}
}
