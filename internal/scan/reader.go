package scan

import (
	"context"

	"hudi-scan-bridge/internal/columnar"
	"hudi-scan-bridge/internal/foreign"
	"hudi-scan-bridge/internal/model"
	"hudi-scan-bridge/internal/storage"
)

// Reader is the pull-based iterator contract the engine drives for one
// scan range: init once, then pull blocks until eof. A reader closes its
// own resources when it observes end of stream; pulling again after eof
// is caller error and is not defended against.
type Reader interface {
	// InitReader pushes the value-range constraints down and opens the
	// underlying resources. Must be called exactly once, before the
	// first GetNextBlock.
	InitReader(ctx context.Context, ranges *model.ValueRangeMap) error

	// GetNextBlock appends the next batch of rows to the block and
	// reports the appended row count and the end-of-stream flag. When
	// eof is true the reader has already released its resources.
	GetNextBlock(ctx context.Context, block *columnar.Block) (int, bool, error)

	// GetColumns returns the resolved name→type mapping for the
	// requested slots, plus the set of columns the reader cannot supply.
	GetColumns() (map[string]string, []string)

	// Abandon tears the reader down before end of stream. Best effort,
	// at most one underlying close.
	Abandon(ctx context.Context)
}

// NewReader picks the reader implementation for a split. Merge-on-read
// splits carrying delta logs need the foreign table-format scanner; a
// bare base file with no deltas is plain parquet and takes the native
// fast path without crossing the runtime boundary.
func NewReader(ctx context.Context, rt foreign.Runtime, resolver *storage.Resolver, scanParams *model.ScanRangeParams, desc *model.HudiFileDescriptor, slots []model.SlotDescriptor) (Reader, error) {
	if desc.HasDeltaLogs() {
		return NewHudiReader(ctx, rt, scanParams, desc, slots)
	}
	return NewParquetReader(ctx, resolver, scanParams, desc, slots)
}
