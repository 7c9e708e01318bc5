package scan

import (
	"bytes"
	"context"
	"testing"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"hudi-scan-bridge/internal/columnar"
	"hudi-scan-bridge/internal/foreign"
	"hudi-scan-bridge/internal/model"
)

var readerSlots = []model.SlotDescriptor{
	{Name: "id", Type: "int"},
	{Name: "name", Type: "string"},
}

func encodeBatch(t *testing.T, n int) []byte {
	t.Helper()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int32, Nullable: true},
		{Name: "name", Type: arrow.BinaryTypes.String, Nullable: true},
	}, nil)

	bldr := array.NewRecordBuilder(memory.NewGoAllocator(), schema)
	defer bldr.Release()
	for i := 0; i < n; i++ {
		bldr.Field(0).(*array.Int32Builder).Append(int32(i))
		bldr.Field(1).(*array.StringBuilder).Append("v")
	}
	rec := bldr.NewRecord()
	defer rec.Release()

	var buf bytes.Buffer
	wr := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	if err := wr.Write(rec); err != nil {
		t.Fatalf("failed to write record: %v", err)
	}
	if err := wr.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return buf.Bytes()
}

func TestHudiReaderFullScan(t *testing.T) {
	ctx := context.Background()
	rt := foreign.NewMockRuntime()
	rt.Batches = [][]byte{encodeBatch(t, 100), encodeBatch(t, 100)}

	desc := testDescriptor()
	reader, err := NewHudiReader(ctx, rt, nil, desc, readerSlots)
	if err != nil {
		t.Fatalf("failed to construct reader: %v", err)
	}

	// The marshalled configuration must have reached the scanner ctor.
	if rt.Params[KeyDataFilePath] != "/t/base.parquet" {
		t.Errorf("scan configuration not delivered: %v", rt.Params)
	}
	if rt.Params[KeyRequiredFields] != "id,name" {
		t.Errorf("required_fields = %q, want id,name", rt.Params[KeyRequiredFields])
	}

	ranges := model.NewValueRangeMap()
	ranges.Set("id", &model.ColumnValueRange{MinValue: "1", MinInclusive: true})
	if err := reader.InitReader(ctx, ranges); err != nil {
		t.Fatalf("InitReader failed: %v", err)
	}
	if rt.InitArg != "id >= 1" {
		t.Errorf("pushdown expression = %q, want %q", rt.InitArg, "id >= 1")
	}
	if rt.InitCalls != 1 || rt.OpenCalls != 1 {
		t.Errorf("expected init then open exactly once, got init=%d open=%d", rt.InitCalls, rt.OpenCalls)
	}

	block, err := columnar.NewBlock(readerSlots)
	if err != nil {
		t.Fatalf("failed to create block: %v", err)
	}
	defer block.Release()

	total := 0
	for {
		rows, eof, err := reader.GetNextBlock(ctx, block)
		if err != nil {
			t.Fatalf("GetNextBlock failed: %v", err)
		}
		total += rows
		if eof {
			break
		}
	}

	if total != 200 {
		t.Errorf("expected 200 rows, got %d", total)
	}
	if rt.CloseCalls != 1 {
		t.Errorf("close must run exactly once, ran %d times", rt.CloseCalls)
	}
	if reader.State() != "closed" {
		t.Errorf("expected closed, got %s", reader.State())
	}
}

func TestHudiReaderGetColumns(t *testing.T) {
	rt := foreign.NewMockRuntime()
	reader, err := NewHudiReader(context.Background(), rt, nil, testDescriptor(), readerSlots)
	if err != nil {
		t.Fatalf("failed to construct reader: %v", err)
	}

	nameToType, missing := reader.GetColumns()
	if nameToType["id"] != "int" || nameToType["name"] != "string" {
		t.Errorf("unexpected column mapping: %v", nameToType)
	}
	if missing != nil {
		t.Errorf("expected no missing columns, got %v", missing)
	}
}

func TestNewReaderPicksForeignPathForDeltaLogs(t *testing.T) {
	rt := foreign.NewMockRuntime()

	desc := testDescriptor() // carries two delta logs
	reader, err := NewReader(context.Background(), rt, nil, nil, desc, readerSlots)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	if _, ok := reader.(*HudiReader); !ok {
		t.Errorf("delta-bearing split must take the foreign path, got %T", reader)
	}
}
