package service

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"hudi-scan-bridge/internal/foreign"
	"hudi-scan-bridge/internal/model"
	"hudi-scan-bridge/internal/storage"
	"hudi-scan-bridge/internal/utils"
)

func scanRequest() *model.ScanRequest {
	return &model.ScanRequest{
		Split: model.HudiFileDescriptor{
			BasePath:      "/t",
			DataFilePath:  "/t/base.parquet",
			DeltaLogPaths: []string{"/t/log1.log"},
			InstantTime:   "20240101000000",
		},
		Slots: []model.SlotDescriptor{
			{Name: "id", Type: "int"},
			{Name: "name", Type: "string"},
		},
	}
}

func encodeServiceBatch(t *testing.T, n int) []byte {
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

func TestScanServiceFullScan(t *testing.T) {
	ctx := context.Background()
	rt := foreign.NewMockRuntime()
	rt.Batches = [][]byte{encodeServiceBatch(t, 100), encodeServiceBatch(t, 100)}

	svc := NewScanService(rt, nil, ScanServiceOptions{SessionTTL: time.Minute})

	opened, err := svc.OpenScan(ctx, scanRequest())
	if err != nil {
		t.Fatalf("OpenScan failed: %v", err)
	}
	if opened.ScanID == "" {
		t.Fatal("expected a scan ID")
	}
	if len(opened.Columns) != 2 || opened.Columns[0].Name != "id" {
		t.Errorf("unexpected columns: %v", opened.Columns)
	}

	total := 0
	batches := 0
	for {
		batch, err := svc.NextBatch(ctx, opened.ScanID)
		if err != nil {
			t.Fatalf("NextBatch failed: %v", err)
		}
		total += batch.RowCount
		batches++
		if batch.EOF {
			break
		}
	}

	if total != 200 {
		t.Errorf("expected 200 rows, got %d", total)
	}
	if batches != 3 {
		t.Errorf("expected 3 pulls (100, 100, eof), got %d", batches)
	}
	if rt.CloseCalls != 1 {
		t.Errorf("close must run exactly once, ran %d times", rt.CloseCalls)
	}

	// The session is torn down at eof; a further pull is a miss.
	if _, err := svc.NextBatch(ctx, opened.ScanID); !utils.IsErrorType(err, utils.ErrCodeScanNotFound) {
		t.Errorf("pull after eof: expected SCAN_NOT_FOUND, got %v", err)
	}
}

func TestScanServiceCloseMidScan(t *testing.T) {
	ctx := context.Background()
	rt := foreign.NewMockRuntime()
	rt.Batches = [][]byte{encodeServiceBatch(t, 50), encodeServiceBatch(t, 50)}

	svc := NewScanService(rt, nil, ScanServiceOptions{SessionTTL: time.Minute})

	opened, err := svc.OpenScan(ctx, scanRequest())
	if err != nil {
		t.Fatalf("OpenScan failed: %v", err)
	}
	if _, err := svc.NextBatch(ctx, opened.ScanID); err != nil {
		t.Fatalf("NextBatch failed: %v", err)
	}

	if err := svc.CloseScan(ctx, opened.ScanID); err != nil {
		t.Fatalf("CloseScan failed: %v", err)
	}
	if rt.CloseCalls != 1 {
		t.Errorf("close must run exactly once, ran %d times", rt.CloseCalls)
	}

	if _, err := svc.NextBatch(ctx, opened.ScanID); !utils.IsErrorType(err, utils.ErrCodeScanNotFound) {
		t.Errorf("pull after close: expected SCAN_NOT_FOUND, got %v", err)
	}
}

func TestScanServiceOpenFailureReleasesScanner(t *testing.T) {
	ctx := context.Background()
	rt := foreign.NewMockRuntime()
	rt.FailMethod = map[string]error{"open": fmt.Errorf("storage unreachable")}

	svc := NewScanService(rt, nil, ScanServiceOptions{SessionTTL: time.Minute})

	_, err := svc.OpenScan(ctx, scanRequest())
	if !utils.IsErrorType(err, utils.ErrCodeOpen) {
		t.Fatalf("expected OPEN_ERROR, got %v", err)
	}
	if rt.CloseCalls != 1 {
		t.Errorf("failed open must release the scanner once, released %d times", rt.CloseCalls)
	}
	if n := rt.LiveRefs(); n != 0 {
		t.Errorf("%d refs still live after failed open: %v", n, rt.LiveTags())
	}
}

func TestScanServicePushdownForwarded(t *testing.T) {
	ctx := context.Background()
	rt := foreign.NewMockRuntime()

	svc := NewScanService(rt, nil, ScanServiceOptions{SessionTTL: time.Minute})

	req := scanRequest()
	req.ValueRanges = map[string]*model.ColumnValueRange{
		"id": {MinValue: "10", MinInclusive: false},
	}

	if _, err := svc.OpenScan(ctx, req); err != nil {
		t.Fatalf("OpenScan failed: %v", err)
	}
	if rt.InitArg != "id > 10" {
		t.Errorf("pushdown expression = %q, want %q", rt.InitArg, "id > 10")
	}
}

func writeHudiTable(t *testing.T, tableType string, timeline []string) string {
	t.Helper()

	base := t.TempDir()
	metaPath := filepath.Join(base, ".hoodie")
	if err := os.MkdirAll(metaPath, 0o755); err != nil {
		t.Fatalf("failed to create meta dir: %v", err)
	}

	props := "hoodie.table.name=trips\nhoodie.table.type=" + tableType + "\n"
	if err := os.WriteFile(filepath.Join(metaPath, "hoodie.properties"), []byte(props), 0o644); err != nil {
		t.Fatalf("failed to write properties: %v", err)
	}
	for _, name := range timeline {
		if err := os.WriteFile(filepath.Join(metaPath, name), nil, 0o644); err != nil {
			t.Fatalf("failed to write timeline file: %v", err)
		}
	}
	return base
}

func TestScanServiceResolvesInstantFromTimeline(t *testing.T) {
	ctx := context.Background()
	rt := foreign.NewMockRuntime()

	base := writeHudiTable(t, "MERGE_ON_READ", []string{
		"20240101000000.deltacommit",
		"20240102000000.deltacommit",
		"20240103000000.deltacommit.inflight",
	})

	svc := NewScanService(rt, storage.NewResolver(nil), ScanServiceOptions{SessionTTL: time.Minute})

	req := scanRequest()
	req.Split.BasePath = base
	req.Split.InstantTime = ""

	if _, err := svc.OpenScan(ctx, req); err != nil {
		t.Fatalf("OpenScan failed: %v", err)
	}
	if rt.Params["instant_time"] != "20240102000000" {
		t.Errorf("instant not resolved from timeline: %q", rt.Params["instant_time"])
	}
}

func TestScanServiceRejectsDeltaLogsOnCopyOnWrite(t *testing.T) {
	ctx := context.Background()
	rt := foreign.NewMockRuntime()

	base := writeHudiTable(t, "COPY_ON_WRITE", []string{"20240101000000.commit"})

	svc := NewScanService(rt, storage.NewResolver(nil), ScanServiceOptions{SessionTTL: time.Minute})

	req := scanRequest() // carries delta logs
	req.Split.BasePath = base
	req.Split.InstantTime = ""

	_, err := svc.OpenScan(ctx, req)
	if !utils.IsErrorType(err, utils.ErrCodeInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}
}

func TestScanSessionManagerCap(t *testing.T) {
	sm := NewScanSessionManager(time.Minute, 1)

	first := &ScanSession{ID: "a", ExpiresAt: time.Now().Add(time.Minute)}
	if err := sm.Store(first); err != nil {
		t.Fatalf("first store failed: %v", err)
	}

	second := &ScanSession{ID: "b", ExpiresAt: time.Now().Add(time.Minute)}
	if err := sm.Store(second); err == nil {
		t.Error("store past the cap must fail")
	}

	sm.Delete("a")
	if err := sm.Store(second); err != nil {
		t.Errorf("store after delete failed: %v", err)
	}
}
