package scan

import (
	"context"

	"hudi-scan-bridge/internal/bridge"
	"hudi-scan-bridge/internal/columnar"
	"hudi-scan-bridge/internal/foreign"
	"hudi-scan-bridge/internal/model"
)

// HudiReader bridges one merge-on-read scan range to the foreign
// table-format scanner. It marshals the structured scan parameters into
// the flat configuration, owns the foreign scanner handle for the life of
// the range, and exposes the engine's pull contract on top of it.
type HudiReader struct {
	handle   *bridge.ScannerHandle
	slots    []model.SlotDescriptor
	pushdown *PushdownAdapter
}

// NewHudiReader builds the scan configuration from the descriptor and
// constructs the foreign scanner. The handle is the reader's exclusively;
// no other component may hold or close it.
func NewHudiReader(ctx context.Context, rt foreign.Runtime, scanParams *model.ScanRangeParams, desc *model.HudiFileDescriptor, slots []model.SlotDescriptor) (*HudiReader, error) {
	requiredFields := RequiredFieldNames(slots)

	var properties map[string]string
	if scanParams != nil {
		properties = scanParams.Properties
	}
	params := BuildScanParams(desc, requiredFields, properties)

	handle, err := bridge.NewScannerHandle(ctx, rt, len(requiredFields), params)
	if err != nil {
		return nil, err
	}

	return &HudiReader{
		handle: handle,
		slots:  slots,
	}, nil
}

// InitReader registers the value-range map for pushdown, forwards it to
// the foreign scanner's init, and opens the scanner. The map is retained
// by reference; constraints added after this call are not re-pushed.
func (r *HudiReader) InitReader(ctx context.Context, ranges *model.ValueRangeMap) error {
	r.pushdown = NewPushdownAdapter(ranges)

	if err := r.handle.Init(ctx, r.pushdown.Encode()); err != nil {
		return err
	}
	return r.handle.Open(ctx)
}

// GetNextBlock pulls the next batch from the foreign scanner. On end of
// stream the handle has already been closed, exactly once, before this
// returns.
func (r *HudiReader) GetNextBlock(ctx context.Context, block *columnar.Block) (int, bool, error) {
	return r.handle.NextBlock(ctx, block)
}

// GetColumns reports the resolved output schema. Column resolution is
// delegated to the caller's slot descriptors, so the missing set is
// always empty.
func (r *HudiReader) GetColumns() (map[string]string, []string) {
	nameToType := make(map[string]string, len(r.slots))
	for _, slot := range r.slots {
		nameToType[slot.Name] = slot.Type
	}
	return nameToType, nil
}

// Abandon releases the foreign scanner if the range is torn down early.
func (r *HudiReader) Abandon(ctx context.Context) {
	r.handle.Abandon(ctx)
}

// State exposes the handle's lifecycle state for status reporting.
func (r *HudiReader) State() string { return r.handle.State() }
