package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"

	"hudi-scan-bridge/internal/columnar"
	"hudi-scan-bridge/internal/model"
	"hudi-scan-bridge/internal/storage"
)

// defaultBatchRows is the row budget per pulled block on the native path.
const defaultBatchRows = 4096

// ParquetReader is the native fast path for copy-on-write splits with no
// delta logs: the base file is plain parquet and can be read in-process
// without crossing the runtime boundary. Merge semantics never apply
// here, so skipping the foreign scanner is safe.
type ParquetReader struct {
	slots     []model.SlotDescriptor
	pushdown  *PushdownAdapter
	file      storage.File
	pr        *reader.ParquetReader
	batchRows int
	closed    bool
}

// NewParquetReader opens the base parquet file through the storage
// backend resolved from the split's properties.
func NewParquetReader(ctx context.Context, resolver *storage.Resolver, scanParams *model.ScanRangeParams, desc *model.HudiFileDescriptor, slots []model.SlotDescriptor) (*ParquetReader, error) {
	var properties map[string]string
	batchRows := defaultBatchRows
	if scanParams != nil {
		properties = scanParams.Properties
		if scanParams.BatchSize > 0 {
			batchRows = scanParams.BatchSize
		}
	}

	backend, err := resolver.Resolve(desc.DataFilePath, properties)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage for %s: %w", desc.DataFilePath, err)
	}

	file, err := backend.Open(ctx, desc.DataFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open base file: %w", err)
	}

	pf := &storageParquetFile{backend: backend, path: desc.DataFilePath, file: file, ctx: ctx}
	pr, err := reader.NewParquetReader(pf, nil, 4)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}

	return &ParquetReader{
		slots:     slots,
		file:      file,
		pr:        pr,
		batchRows: batchRows,
	}, nil
}

// InitReader records the value-range constraints. The native path has no
// foreign init call; constraints are applied row-wise during reads.
func (r *ParquetReader) InitReader(ctx context.Context, ranges *model.ValueRangeMap) error {
	r.pushdown = NewPushdownAdapter(ranges)
	return nil
}

// GetNextBlock reads up to one batch of rows from the base file. On end
// of stream the underlying file is closed before returning.
func (r *ParquetReader) GetNextBlock(ctx context.Context, block *columnar.Block) (int, bool, error) {
	raw, err := r.pr.ReadByNumber(r.batchRows)
	if err != nil {
		r.close()
		return 0, false, fmt.Errorf("failed to read parquet rows: %w", err)
	}

	if len(raw) == 0 {
		r.close()
		return 0, true, nil
	}

	rows, err := r.projectRows(raw)
	if err != nil {
		r.close()
		return 0, false, err
	}

	appended, err := block.AppendRows(rows)
	if err != nil {
		r.close()
		return 0, false, err
	}

	return appended, false, nil
}

// GetColumns reports the resolved output schema; resolution is delegated
// to the caller's slot descriptors.
func (r *ParquetReader) GetColumns() (map[string]string, []string) {
	nameToType := make(map[string]string, len(r.slots))
	for _, slot := range r.slots {
		nameToType[slot.Name] = slot.Type
	}
	return nameToType, nil
}

// Abandon closes the file if the range is torn down early.
func (r *ParquetReader) Abandon(ctx context.Context) {
	r.close()
}

func (r *ParquetReader) close() {
	if r.closed {
		return
	}
	r.closed = true
	if r.pr != nil {
		r.pr.ReadStop()
	}
	if err := r.file.Close(); err != nil {
		log.Printf("scan: closing base parquet file failed: %v", err)
	}
}

// projectRows converts parquet-go row structs into slot-keyed maps and
// applies the value-range constraints row-wise. parquet-go exports field
// names in its own casing, so matching is case-insensitive.
func (r *ParquetReader) projectRows(raw []interface{}) ([]map[string]interface{}, error) {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert parquet rows: %w", err)
	}
	var decoded []map[string]interface{}
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return nil, fmt.Errorf("failed to convert parquet rows: %w", err)
	}

	out := make([]map[string]interface{}, 0, len(decoded))
	for _, rec := range decoded {
		lowered := make(map[string]interface{}, len(rec))
		for k, v := range rec {
			lowered[strings.ToLower(k)] = v
		}

		row := make(map[string]interface{}, len(r.slots))
		for _, slot := range r.slots {
			row[slot.Name] = lowered[strings.ToLower(slot.Name)]
		}

		if r.matchesRanges(row) {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *ParquetReader) matchesRanges(row map[string]interface{}) bool {
	if r.pushdown == nil || r.pushdown.Ranges() == nil {
		return true
	}

	for col, constraint := range r.pushdown.Ranges().Snapshot() {
		val, ok := row[col]
		if !ok {
			continue
		}
		if !matchValueRange(val, constraint) {
			return false
		}
	}
	return true
}

func matchValueRange(val interface{}, c *model.ColumnValueRange) bool {
	if val == nil {
		return !c.ExcludeNull
	}

	str := valueString(val)
	if len(c.InValues) > 0 {
		found := false
		for _, candidate := range c.InValues {
			if compareScalar(str, candidate) == 0 {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if c.HasMin() {
		cmp := compareScalar(str, c.MinValue)
		if cmp < 0 || (cmp == 0 && !c.MinInclusive) {
			return false
		}
	}
	if c.HasMax() {
		cmp := compareScalar(str, c.MaxValue)
		if cmp > 0 || (cmp == 0 && !c.MaxInclusive) {
			return false
		}
	}
	return true
}

func valueString(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// compareScalar compares numerically when both sides parse as numbers,
// lexically otherwise.
func compareScalar(a, b string) int {
	af, aerr := strconv.ParseFloat(a, 64)
	bf, berr := strconv.ParseFloat(b, 64)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// storageParquetFile adapts a storage.File to parquet-go's source
// interface. Write paths are unsupported; the bridge only reads.
type storageParquetFile struct {
	backend storage.Backend
	path    string
	file    storage.File
	ctx     context.Context
}

func (f *storageParquetFile) Read(p []byte) (int, error)                 { return f.file.Read(p) }
func (f *storageParquetFile) Seek(o int64, whence int) (int64, error)    { return f.file.Seek(o, whence) }
func (f *storageParquetFile) Close() error                               { return f.file.Close() }
func (f *storageParquetFile) Write(p []byte) (int, error)                { return 0, fmt.Errorf("read-only source") }
func (f *storageParquetFile) Create(name string) (source.ParquetFile, error) {
	return nil, fmt.Errorf("read-only source")
}

func (f *storageParquetFile) Open(name string) (source.ParquetFile, error) {
	if name == "" {
		name = f.path
	}
	file, err := f.backend.Open(f.ctx, name)
	if err != nil {
		return nil, err
	}
	return &storageParquetFile{backend: f.backend, path: name, file: file, ctx: f.ctx}, nil
}
