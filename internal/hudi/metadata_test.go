package hudi

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"hudi-scan-bridge/internal/storage"
)

func writeTestTable(t *testing.T, tableType string, timeline []string, extraProps ...string) string {
	t.Helper()

	base := t.TempDir()
	metaPath := filepath.Join(base, ".hoodie")
	if err := os.MkdirAll(metaPath, 0o755); err != nil {
		t.Fatalf("failed to create meta dir: %v", err)
	}

	props := "# table properties\n" +
		"hoodie.table.name=trips\n" +
		"hoodie.table.type=" + tableType + "\n" +
		"hoodie.table.version=6\n" +
		"hoodie.datasource.write.recordkey.field=uuid\n" +
		"hoodie.table.partition.fields=city,day\n"
	for _, extra := range extraProps {
		props += extra + "\n"
	}
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

func TestLoadTableMetadata(t *testing.T) {
	base := writeTestTable(t, TableTypeMergeOnRead, nil)
	client := NewMetadataClient(storage.NewResolver(nil))

	meta, err := client.LoadTableMetadata(context.Background(), base, nil)
	if err != nil {
		t.Fatalf("LoadTableMetadata failed: %v", err)
	}

	if meta.TableName != "trips" {
		t.Errorf("table name = %q, want trips", meta.TableName)
	}
	if meta.TableType != TableTypeMergeOnRead {
		t.Errorf("table type = %q, want %q", meta.TableType, TableTypeMergeOnRead)
	}
	if meta.RecordKeyField != "uuid" {
		t.Errorf("record key = %q, want uuid", meta.RecordKeyField)
	}
	if len(meta.PartitionFields) != 2 || meta.PartitionFields[0] != "city" {
		t.Errorf("partition fields = %v, want [city day]", meta.PartitionFields)
	}
}

func TestLoadTableMetadataParsesCreateSchema(t *testing.T) {
	schema := `{"type":"record","name":"trips","fields":[{"name":"uuid","type":"string"},{"name":"fare","type":["null","double"]}]}`
	base := writeTestTable(t, TableTypeCopyOnWrite, nil, "hoodie.table.create.schema="+schema)
	client := NewMetadataClient(storage.NewResolver(nil))

	meta, err := client.LoadTableMetadata(context.Background(), base, nil)
	if err != nil {
		t.Fatalf("LoadTableMetadata failed: %v", err)
	}

	want := []Column{
		{Name: "uuid", Type: "string"},
		{Name: "fare", Type: "double"},
	}
	if len(meta.Columns) != len(want) {
		t.Fatalf("expected %d columns, got %d: %v", len(want), len(meta.Columns), meta.Columns)
	}
	for i := range want {
		if meta.Columns[i] != want[i] {
			t.Errorf("column %d = %+v, want %+v", i, meta.Columns[i], want[i])
		}
	}
}

func TestLoadTableMetadataRejectsBadCreateSchema(t *testing.T) {
	base := writeTestTable(t, TableTypeCopyOnWrite, nil, `hoodie.table.create.schema={"type":"record"`)
	client := NewMetadataClient(storage.NewResolver(nil))

	if _, err := client.LoadTableMetadata(context.Background(), base, nil); err == nil {
		t.Error("malformed create schema must be rejected")
	}
}

func TestLoadTableMetadataRejectsUnknownType(t *testing.T) {
	base := writeTestTable(t, "SOMETHING_ELSE", nil)
	client := NewMetadataClient(storage.NewResolver(nil))

	if _, err := client.LoadTableMetadata(context.Background(), base, nil); err == nil {
		t.Error("unknown table type must be rejected")
	}
}

func TestTimelineAndLatestInstant(t *testing.T) {
	base := writeTestTable(t, TableTypeCopyOnWrite, []string{
		"20240101000000.commit",
		"20240102000000.deltacommit",
		"20240103000000.commit.requested",
		"20240103000000.inflight",
		"hoodie.properties",
	})
	client := NewMetadataClient(storage.NewResolver(nil))

	instants, err := client.Timeline(context.Background(), base, nil)
	if err != nil {
		t.Fatalf("Timeline failed: %v", err)
	}
	if len(instants) != 2 {
		t.Fatalf("expected 2 completed instants, got %d: %v", len(instants), instants)
	}

	latest, err := client.LatestInstant(context.Background(), base, nil)
	if err != nil {
		t.Fatalf("LatestInstant failed: %v", err)
	}
	if latest.Timestamp != "20240102000000" || latest.Action != "deltacommit" {
		t.Errorf("latest instant = %+v, want 20240102000000 deltacommit", latest)
	}
}

func TestLatestInstantEmptyTimeline(t *testing.T) {
	base := writeTestTable(t, TableTypeCopyOnWrite, nil)
	client := NewMetadataClient(storage.NewResolver(nil))

	if _, err := client.LatestInstant(context.Background(), base, nil); err == nil {
		t.Error("empty timeline must report an error")
	}
}
