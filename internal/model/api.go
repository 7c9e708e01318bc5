package model

// ScanRequest opens one scan range over a Hudi file group split.
type ScanRequest struct {
	Split      HudiFileDescriptor `json:"split" binding:"required"`
	Slots      []SlotDescriptor   `json:"slots" binding:"required,min=1,dive"`
	Properties map[string]string  `json:"properties"`

	// ValueRanges carries the planner's predicate constraints, keyed by
	// column name. They are pushed down once at init.
	ValueRanges map[string]*ColumnValueRange `json:"valueRanges"`

	// BatchSize caps rows per pulled batch; 0 means the service default.
	BatchSize int `json:"batchSize" binding:"omitempty,min=1,max=65535"`
}

// ScanResponse reports the opened scan session.
type ScanResponse struct {
	ScanID  string       `json:"scanId"`
	Columns []ColumnInfo `json:"columns"`
	Missing []string     `json:"missingColumns,omitempty"`
	State   string       `json:"state"`
}

// BatchResponse is one pulled batch. EOF marks the scan finished; the
// session is already torn down when EOF is reported.
type BatchResponse struct {
	ScanID   string          `json:"scanId"`
	Rows     [][]interface{} `json:"rows"`
	RowCount int             `json:"rowCount"`
	EOF      bool            `json:"eof"`
}

// ScanStatus reports a session's progress.
type ScanStatus struct {
	ScanID      string `json:"scanId"`
	State       string `json:"state"`
	BatchSize   int    `json:"batchSize"`
	Batches     int64  `json:"batches"`
	RowsFetched int64  `json:"rowsFetched"`
	CreatedAt   string `json:"createdAt"`
	ExpiresAt   string `json:"expiresAt"`
}
