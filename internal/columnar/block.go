package columnar

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"hudi-scan-bridge/internal/model"
)

// Block is the columnar batch container populated in place by a scan. It
// accumulates Arrow records under a fixed output schema negotiated from
// the requested slots.
type Block struct {
	schema *arrow.Schema
	alloc  memory.Allocator
	recs   []arrow.Record
	rows   int64
}

// NewBlock creates an empty block with a schema derived from the slots.
func NewBlock(slots []model.SlotDescriptor) (*Block, error) {
	fields := make([]arrow.Field, len(slots))
	for i, slot := range slots {
		dt, err := ArrowType(slot.Type)
		if err != nil {
			return nil, err
		}
		fields[i] = arrow.Field{Name: slot.Name, Type: dt, Nullable: true}
	}

	return &Block{
		schema: arrow.NewSchema(fields, nil),
		alloc:  memory.NewGoAllocator(),
	}, nil
}

// Schema returns the block's output schema.
func (b *Block) Schema() *arrow.Schema { return b.schema }

// NumRows returns the number of rows appended so far.
func (b *Block) NumRows() int64 { return b.rows }

// Records returns the appended record batches. The block retains
// ownership; callers must not release them.
func (b *Block) Records() []arrow.Record { return b.recs }

// AppendIPC decodes an Arrow IPC stream and appends its record batches.
// Returns the number of rows appended. The stream's schema must match the
// negotiated output schema; a mismatch is data corruption, not something
// to coerce silently.
func (b *Block) AppendIPC(payload []byte) (int, error) {
	rdr, err := ipc.NewReader(bytes.NewReader(payload), ipc.WithAllocator(b.alloc))
	if err != nil {
		return 0, fmt.Errorf("failed to open batch stream: %w", err)
	}
	defer rdr.Release()

	if !b.schema.Equal(rdr.Schema()) {
		return 0, fmt.Errorf("batch schema %v does not match output schema %v", rdr.Schema(), b.schema)
	}

	appended := 0
	for rdr.Next() {
		rec := rdr.Record()
		rec.Retain()
		b.recs = append(b.recs, rec)
		b.rows += rec.NumRows()
		appended += int(rec.NumRows())
	}
	if err := rdr.Err(); err != nil {
		return appended, fmt.Errorf("failed to decode batch stream: %w", err)
	}

	return appended, nil
}

// AppendRows builds one record batch from decoded row maps and appends
// it. Missing keys and nil values become nulls. Numeric values may arrive
// as any Go numeric type (JSON decoding yields float64).
func (b *Block) AppendRows(rows []map[string]interface{}) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	bldr := array.NewRecordBuilder(b.alloc, b.schema)
	defer bldr.Release()

	for _, row := range rows {
		for i, field := range b.schema.Fields() {
			val, ok := row[field.Name]
			if !ok || val == nil {
				bldr.Field(i).AppendNull()
				continue
			}
			if err := appendValue(bldr.Field(i), field.Type, val); err != nil {
				return 0, fmt.Errorf("column %s: %w", field.Name, err)
			}
		}
	}

	rec := bldr.NewRecord()
	b.recs = append(b.recs, rec)
	b.rows += rec.NumRows()
	return int(rec.NumRows()), nil
}

// Rows materializes the block's content as row-major values, one slice
// per row in schema field order. Used by the HTTP surface; the engine
// path consumes Records directly.
func (b *Block) Rows() [][]interface{} {
	out := make([][]interface{}, 0, b.rows)
	for _, rec := range b.recs {
		n := int(rec.NumRows())
		for r := 0; r < n; r++ {
			row := make([]interface{}, rec.NumCols())
			for c := 0; c < int(rec.NumCols()); c++ {
				row[c] = cellValue(rec.Column(c), r)
			}
			out = append(out, row)
		}
	}
	return out
}

// Reset drops all appended records, keeping the schema.
func (b *Block) Reset() {
	for _, rec := range b.recs {
		rec.Release()
	}
	b.recs = nil
	b.rows = 0
}

// Release frees the block's records.
func (b *Block) Release() {
	b.Reset()
}

// ArrowType maps a Hudi column type string to an Arrow type. Parametrized
// and nested types the bridge does not shape natively fall back to string;
// the foreign scanner already serialized them.
func ArrowType(hudiType string) (arrow.DataType, error) {
	t := strings.ToLower(strings.TrimSpace(hudiType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}

	switch t {
	case "boolean":
		return arrow.FixedWidthTypes.Boolean, nil
	case "int", "integer":
		return arrow.PrimitiveTypes.Int32, nil
	case "long", "bigint":
		return arrow.PrimitiveTypes.Int64, nil
	case "float":
		return arrow.PrimitiveTypes.Float32, nil
	case "double":
		return arrow.PrimitiveTypes.Float64, nil
	case "date":
		return arrow.FixedWidthTypes.Date32, nil
	case "timestamp":
		return arrow.FixedWidthTypes.Timestamp_us, nil
	case "binary":
		return arrow.BinaryTypes.Binary, nil
	case "string", "varchar", "char", "decimal", "array", "map", "struct":
		return arrow.BinaryTypes.String, nil
	case "":
		return nil, fmt.Errorf("empty column type")
	default:
		return arrow.BinaryTypes.String, nil
	}
}

func appendValue(fb array.Builder, dt arrow.DataType, val interface{}) error {
	switch builder := fb.(type) {
	case *array.BooleanBuilder:
		v, ok := val.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", val)
		}
		builder.Append(v)
	case *array.Int32Builder:
		f, err := toFloat(val)
		if err != nil {
			return err
		}
		builder.Append(int32(f))
	case *array.Int64Builder:
		f, err := toFloat(val)
		if err != nil {
			return err
		}
		builder.Append(int64(f))
	case *array.Float32Builder:
		f, err := toFloat(val)
		if err != nil {
			return err
		}
		builder.Append(float32(f))
	case *array.Float64Builder:
		f, err := toFloat(val)
		if err != nil {
			return err
		}
		builder.Append(f)
	case *array.Date32Builder:
		f, err := toFloat(val)
		if err != nil {
			return err
		}
		builder.Append(arrow.Date32(int32(f)))
	case *array.TimestampBuilder:
		f, err := toFloat(val)
		if err != nil {
			return err
		}
		builder.Append(arrow.Timestamp(int64(f)))
	case *array.BinaryBuilder:
		switch v := val.(type) {
		case []byte:
			builder.Append(v)
		case string:
			builder.Append([]byte(v))
		default:
			return fmt.Errorf("expected bytes, got %T", val)
		}
	case *array.StringBuilder:
		switch v := val.(type) {
		case string:
			builder.Append(v)
		case []byte:
			builder.Append(string(v))
		default:
			builder.Append(fmt.Sprintf("%v", v))
		}
	default:
		return fmt.Errorf("unsupported builder for type %s", dt)
	}
	return nil
}

func toFloat(val interface{}) (float64, error) {
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("expected numeric, got %T", val)
	}
}

func cellValue(col arrow.Array, row int) interface{} {
	if col.IsNull(row) {
		return nil
	}
	switch arr := col.(type) {
	case *array.Boolean:
		return arr.Value(row)
	case *array.Int32:
		return arr.Value(row)
	case *array.Int64:
		return arr.Value(row)
	case *array.Float32:
		return arr.Value(row)
	case *array.Float64:
		return arr.Value(row)
	case *array.Date32:
		return int32(arr.Value(row))
	case *array.Timestamp:
		return int64(arr.Value(row))
	case *array.Binary:
		return arr.Value(row)
	case *array.String:
		return arr.Value(row)
	default:
		return fmt.Sprintf("%v", col.ValueStr(row))
	}
}
