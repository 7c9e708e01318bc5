package scan

import (
	"strings"
	"testing"

	"hudi-scan-bridge/internal/model"
)

func testDescriptor() *model.HudiFileDescriptor {
	return &model.HudiFileDescriptor{
		BasePath:       "/t",
		DataFilePath:   "/t/base.parquet",
		DataFileLength: 1024,
		DeltaLogPaths:  []string{"/t/log1.log", "/t/log2.log"},
		ColumnNames:    []string{"id", "name"},
		ColumnTypes:    []string{"int", "string"},
		InstantTime:    "20240101000000",
		Serde:          "org.apache.hadoop.hive.ql.io.parquet.serde.ParquetHiveSerDe",
		InputFormat:    "org.apache.hudi.hadoop.realtime.HoodieParquetRealtimeInputFormat",
	}
}

func TestBuildScanParams(t *testing.T) {
	desc := testDescriptor()
	params := BuildScanParams(desc, []string{"id"}, map[string]string{
		"fs.defaultFS": "hdfs://nn:8020",
	})

	expected := map[string]string{
		"base_path":                "/t",
		"data_file_path":           "/t/base.parquet",
		"data_file_length":         "1024",
		"delta_file_paths":         "/t/log1.log,/t/log2.log",
		"hudi_column_names":        "id,name",
		"hudi_column_types":        "int#string",
		"required_fields":          "id",
		"instant_time":             "20240101000000",
		"serde":                    "org.apache.hadoop.hive.ql.io.parquet.serde.ParquetHiveSerDe",
		"input_format":             "org.apache.hudi.hadoop.realtime.HoodieParquetRealtimeInputFormat",
		"hadoop_fs.fs.defaultFS":   "hdfs://nn:8020",
	}

	if len(params) != len(expected) {
		t.Errorf("expected %d entries, got %d: %v", len(expected), len(params), params)
	}
	for k, want := range expected {
		if got := params[k]; got != want {
			t.Errorf("params[%q] = %q, want %q", k, got, want)
		}
	}
}

func TestBuildScanParamsEmptyCollections(t *testing.T) {
	desc := testDescriptor()
	desc.DeltaLogPaths = nil
	desc.ColumnNames = nil
	desc.ColumnTypes = nil

	params := BuildScanParams(desc, nil, nil)

	if params[KeyDeltaFilePaths] != "" {
		t.Errorf("empty delta logs should marshal to empty string, got %q", params[KeyDeltaFilePaths])
	}
	if params[KeyColumnNames] != "" || params[KeyColumnTypes] != "" {
		t.Errorf("empty columns should marshal to empty strings, got %q / %q",
			params[KeyColumnNames], params[KeyColumnTypes])
	}
	if params[KeyRequiredFields] != "" {
		t.Errorf("empty required fields should marshal to empty string, got %q", params[KeyRequiredFields])
	}
}

func TestBuildScanParamsPrefixNoCollision(t *testing.T) {
	desc := testDescriptor()

	// A storage property whose key matches a table-format key must land
	// under the prefix, leaving the table-format entry untouched.
	params := BuildScanParams(desc, []string{"id"}, map[string]string{
		"base_path": "s3://elsewhere",
	})

	if params[KeyBasePath] != "/t" {
		t.Errorf("table-format base_path clobbered: %q", params[KeyBasePath])
	}
	if params[HadoopFSPrefix+"base_path"] != "s3://elsewhere" {
		t.Errorf("prefixed property missing: %v", params)
	}

	for k := range params {
		if strings.HasPrefix(k, HadoopFSPrefix) {
			continue
		}
		switch k {
		case KeyBasePath, KeyDataFilePath, KeyDataFileLength, KeyDeltaFilePaths,
			KeyColumnNames, KeyColumnTypes, KeyRequiredFields, KeyInstantTime,
			KeySerde, KeyInputFormat:
		default:
			t.Errorf("unexpected unprefixed key %q", k)
		}
	}
}

func TestRequiredFieldNamesOrder(t *testing.T) {
	slots := []model.SlotDescriptor{
		{Name: "name", Type: "string"},
		{Name: "id", Type: "int"},
		{Name: "ts", Type: "timestamp"},
	}

	fields := RequiredFieldNames(slots)
	want := []string{"name", "id", "ts"}
	if len(fields) != len(want) {
		t.Fatalf("expected %d fields, got %d", len(want), len(fields))
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("fields[%d] = %q, want %q", i, fields[i], want[i])
		}
	}
}
