package model

// HudiFileDescriptor describes one Hudi file group split handed to the
// bridge by the planner: the base file plus the delta logs layered on it.
// The descriptor is consumed read-only; the foreign scanner is the
// authority on the values it carries.
type HudiFileDescriptor struct {
	BasePath       string   `json:"basePath" binding:"required"`
	DataFilePath   string   `json:"dataFilePath" binding:"required"`
	DataFileLength int64    `json:"dataFileLength"`
	DeltaLogPaths  []string `json:"deltaLogPaths"`
	ColumnNames    []string `json:"columnNames"`
	ColumnTypes    []string `json:"columnTypes"`
	InstantTime    string   `json:"instantTime"`
	Serde          string   `json:"serde"`
	InputFormat    string   `json:"inputFormat"`
}

// HasDeltaLogs reports whether the split carries merge-on-read delta logs.
func (d *HudiFileDescriptor) HasDeltaLogs() bool {
	return len(d.DeltaLogPaths) > 0
}

// SlotDescriptor is a requested output column: the engine-side name and
// type of one slot the scan must produce.
type SlotDescriptor struct {
	Name string `json:"name" binding:"required"`
	Type string `json:"type" binding:"required"`
}

// ScanRangeParams carries the per-range storage-access properties the
// planner resolved for this split. Keys are plain filesystem/client
// settings (e.g. fs.defaultFS, credentials); the marshaller namespaces
// them before they reach the foreign scanner, so they can never collide
// with table-format keys.
type ScanRangeParams struct {
	Properties map[string]string `json:"properties"`

	// BatchSize caps rows per pulled batch; 0 means the reader default.
	BatchSize int `json:"batchSize"`
}

// ColumnInfo is the resolved name/type pair reported back to the engine
// for schema reconciliation.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}
