package bridge

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"hudi-scan-bridge/internal/columnar"
	"hudi-scan-bridge/internal/foreign"
	"hudi-scan-bridge/internal/model"
	"hudi-scan-bridge/internal/utils"
)

var testSlots = []model.SlotDescriptor{
	{Name: "id", Type: "int"},
	{Name: "name", Type: "string"},
}

// makeBatch encodes one id/name record batch of n rows as an Arrow IPC
// stream, the wire form batches cross the boundary in.
func makeBatch(t *testing.T, n int) []byte {
	t.Helper()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	bldr := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer bldr.Release()

	for i := 0; i < n; i++ {
		bldr.Field(0).(*array.Int32Builder).Append(int32(i))
		bldr.Field(1).(*array.StringBuilder).Append(fmt.Sprintf("row-%d", i))
	}

	rec := bldr.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	wr := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := wr.Write(rec); err != nil {
		t.Fatalf("failed to encode batch: %v", err)
	}
	if err := wr.Close(); err != nil {
		t.Fatalf("failed to close batch writer: %v", err)
	}
	return buf.Bytes()
}

func newTestHandle(t *testing.T, rt *foreign.MockRuntime) *ScannerHandle {
	t.Helper()
	h, err := NewScannerHandle(context.Background(), rt, 2, map[string]string{
		"base_path":      "/t",
		"data_file_path": "/t/base.parquet",
	})
	if err != nil {
		t.Fatalf("failed to construct handle: %v", err)
	}
	return h
}

func TestNewScannerHandleReleasesTransientRefs(t *testing.T) {
	rt := foreign.NewMockRuntime()
	h := newTestHandle(t, rt)

	// Only the owned scanner ref may survive construction.
	if n := rt.LiveRefs(); n != 1 {
		t.Errorf("expected 1 live ref after construction, got %d: %v", n, rt.LiveTags())
	}
	if rt.Params["base_path"] != "/t" || rt.Params["data_file_path"] != "/t/base.parquet" {
		t.Errorf("config map not populated: %v", rt.Params)
	}
	if h.State() != "constructed" {
		t.Errorf("expected constructed, got %s", h.State())
	}
}

func TestNewScannerHandleConstructionFailure(t *testing.T) {
	cases := []struct {
		name string
		prep func(rt *foreign.MockRuntime)
	}{
		{"loader class missing", func(rt *foreign.MockRuntime) {
			rt.FailFindClass = map[string]error{
				"org/apache/hudi/bridge/HudiScannerLoader": fmt.Errorf("class not found"),
			}
		}},
		{"map class missing", func(rt *foreign.MockRuntime) {
			rt.FailFindClass = map[string]error{
				"java/util/HashMap": fmt.Errorf("class not found"),
			}
		}},
		{"string intern failure", func(rt *foreign.MockRuntime) {
			rt.FailNewString = fmt.Errorf("out of memory")
		}},
		{"scanner constructor throws", func(rt *foreign.MockRuntime) {
			rt.FailNewObject = map[string]error{
				"scanner-impl": fmt.Errorf("table not readable"),
			}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rt := foreign.NewMockRuntime()
			tc.prep(rt)

			_, err := NewScannerHandle(context.Background(), rt, 2, map[string]string{"base_path": "/t"})
			if err == nil {
				t.Fatal("expected construction to fail")
			}
			if !utils.IsErrorType(err, utils.ErrCodeBridgeInit) {
				t.Errorf("expected BRIDGE_INIT_ERROR, got %v", err)
			}
			if n := rt.LiveRefs(); n != 0 {
				t.Errorf("leaked %d refs on failure: %v", n, rt.LiveTags())
			}
		})
	}
}

func TestScannerHandleFullScan(t *testing.T) {
	ctx := context.Background()
	rt := foreign.NewMockRuntime()
	rt.Batches = [][]byte{makeBatch(t, 100), makeBatch(t, 100)}

	h := newTestHandle(t, rt)
	if err := h.Init(ctx, "id >= 1"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if rt.InitArg != "id >= 1" {
		t.Errorf("pushdown not forwarded: %q", rt.InitArg)
	}
	if err := h.Open(ctx); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	block, err := columnar.NewBlock(testSlots)
	if err != nil {
		t.Fatalf("failed to build block: %v", err)
	}
	defer block.Release()

	total := 0
	for {
		rows, eof, err := h.NextBlock(ctx, block)
		if err != nil {
			t.Fatalf("nextBlock failed: %v", err)
		}
		total += rows
		if eof {
			break
		}
	}

	if total != 200 {
		t.Errorf("expected 200 rows, got %d", total)
	}
	if rt.ReadCalls != 3 {
		t.Errorf("expected 3 getNextBatch calls, got %d", rt.ReadCalls)
	}
	if rt.CloseCalls != 1 {
		t.Errorf("close must run exactly once, ran %d times", rt.CloseCalls)
	}
	if h.State() != "closed" {
		t.Errorf("expected closed, got %s", h.State())
	}
	if n := rt.LiveRefs(); n != 0 {
		t.Errorf("%d refs still live after eof: %v", n, rt.LiveTags())
	}
}

func TestScannerHandleLifecycleOrder(t *testing.T) {
	ctx := context.Background()
	rt := foreign.NewMockRuntime()
	h := newTestHandle(t, rt)

	block, _ := columnar.NewBlock(testSlots)
	defer block.Release()

	// Open before init.
	if err := h.Open(ctx); !utils.IsErrorType(err, utils.ErrCodeBridgeState) {
		t.Errorf("open before init: expected BRIDGE_STATE_ERROR, got %v", err)
	}
	// Pull before open.
	if _, _, err := h.NextBlock(ctx, block); !utils.IsErrorType(err, utils.ErrCodeBridgeState) {
		t.Errorf("nextBlock before open: expected BRIDGE_STATE_ERROR, got %v", err)
	}

	if err := h.Init(ctx, ""); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	// Double init.
	if err := h.Init(ctx, ""); !utils.IsErrorType(err, utils.ErrCodeBridgeState) {
		t.Errorf("double init: expected BRIDGE_STATE_ERROR, got %v", err)
	}
}

func TestScannerHandleOpenFailure(t *testing.T) {
	ctx := context.Background()
	rt := foreign.NewMockRuntime()
	rt.FailMethod = map[string]error{"open": fmt.Errorf("storage unreachable")}

	h := newTestHandle(t, rt)
	if err := h.Init(ctx, ""); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	err := h.Open(ctx)
	if !utils.IsErrorType(err, utils.ErrCodeOpen) {
		t.Fatalf("expected OPEN_ERROR, got %v", err)
	}
	if h.State() != "failed" {
		t.Errorf("expected failed, got %s", h.State())
	}

	// A failed handle must refuse further pulls.
	block, _ := columnar.NewBlock(testSlots)
	defer block.Release()
	if _, _, err := h.NextBlock(ctx, block); !utils.IsErrorType(err, utils.ErrCodeBridgeState) {
		t.Errorf("nextBlock after open failure: expected BRIDGE_STATE_ERROR, got %v", err)
	}
	if rt.ReadCalls != 0 {
		t.Errorf("getNextBatch must not run after open failure, ran %d times", rt.ReadCalls)
	}

	// Teardown still releases the scanner, once.
	h.Abandon(ctx)
	if rt.CloseCalls != 1 {
		t.Errorf("expected 1 close, got %d", rt.CloseCalls)
	}
	if n := rt.LiveRefs(); n != 0 {
		t.Errorf("%d refs still live after abandon: %v", n, rt.LiveTags())
	}
}

func TestScannerHandleReadFailureClosesOnce(t *testing.T) {
	ctx := context.Background()
	rt := foreign.NewMockRuntime()
	rt.Batches = [][]byte{makeBatch(t, 10)}
	rt.FailReadAt = 2

	h := newTestHandle(t, rt)
	if err := h.Init(ctx, ""); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := h.Open(ctx); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	block, _ := columnar.NewBlock(testSlots)
	defer block.Release()

	if _, _, err := h.NextBlock(ctx, block); err != nil {
		t.Fatalf("first pull failed: %v", err)
	}

	_, _, err := h.NextBlock(ctx, block)
	if !utils.IsErrorType(err, utils.ErrCodeRead) {
		t.Fatalf("expected READ_ERROR, got %v", err)
	}
	if h.State() != "failed" {
		t.Errorf("expected failed, got %s", h.State())
	}
	if rt.CloseCalls != 1 {
		t.Errorf("cleanup close must run exactly once, ran %d times", rt.CloseCalls)
	}

	// Unwinding above already closed; a second close is a programming
	// error and must not reach the foreign side.
	if err := h.Close(ctx); !utils.IsErrorType(err, utils.ErrCodeBridgeState) {
		t.Errorf("double close: expected BRIDGE_STATE_ERROR, got %v", err)
	}
	if rt.CloseCalls != 1 {
		t.Errorf("double close reached the foreign side: %d calls", rt.CloseCalls)
	}
}

func TestScannerHandleAbandonAfterEOFIsNoop(t *testing.T) {
	ctx := context.Background()
	rt := foreign.NewMockRuntime()

	h := newTestHandle(t, rt)
	if err := h.Init(ctx, ""); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := h.Open(ctx); err != nil {
		t.Fatalf("open failed: %v", err)
	}

	block, _ := columnar.NewBlock(testSlots)
	defer block.Release()

	// No scripted batches: first pull is end of stream.
	_, eof, err := h.NextBlock(ctx, block)
	if err != nil || !eof {
		t.Fatalf("expected clean eof, got eof=%v err=%v", eof, err)
	}
	if rt.CloseCalls != 1 {
		t.Fatalf("expected 1 close at eof, got %d", rt.CloseCalls)
	}

	h.Abandon(ctx)
	if rt.CloseCalls != 1 {
		t.Errorf("abandon after eof must not close again: %d calls", rt.CloseCalls)
	}
}
