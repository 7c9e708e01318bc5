package hudi

import (
	"encoding/json"
	"fmt"

	"github.com/linkedin/goavro/v2"
)

// Column is one field of the table's resolved schema, with the type in
// the engine's string form (int, string, decimal(10,2), ...).
type Column struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// avroSchema mirrors the subset of the Avro record schema the bridge
// needs. goavro validates the full document first; this struct only
// picks out the field list.
type avroSchema struct {
	Type   string      `json:"type"`
	Name   string      `json:"name"`
	Fields []avroField `json:"fields"`
}

type avroField struct {
	Name string      `json:"name"`
	Type interface{} `json:"type"`
}

// ParseAvroSchema parses a Hudi table's Avro schema document into the
// resolved column list. Hudi stores the writer schema in the commit
// metadata; the document is validated with goavro before the field walk
// so malformed schemas fail with the codec's diagnostics instead of a
// partial column list.
func ParseAvroSchema(schemaJSON string) ([]Column, error) {
	if _, err := goavro.NewCodec(schemaJSON); err != nil {
		return nil, fmt.Errorf("invalid avro schema: %w", err)
	}

	var schema avroSchema
	if err := json.Unmarshal([]byte(schemaJSON), &schema); err != nil {
		return nil, fmt.Errorf("failed to decode avro schema: %w", err)
	}
	if schema.Type != "record" {
		return nil, fmt.Errorf("avro schema root must be a record, got %q", schema.Type)
	}

	columns := make([]Column, 0, len(schema.Fields))
	for _, field := range schema.Fields {
		colType, err := avroFieldType(field.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		columns = append(columns, Column{Name: field.Name, Type: colType})
	}
	return columns, nil
}

// avroFieldType maps an Avro field type node to the engine type string.
// Nullable unions ["null", T] collapse to T; nullability is carried by
// the engine's slot descriptors, not the type string.
func avroFieldType(node interface{}) (string, error) {
	switch t := node.(type) {
	case string:
		return avroPrimitiveType(t)

	case []interface{}:
		for _, branch := range t {
			if s, ok := branch.(string); ok && s == "null" {
				continue
			}
			return avroFieldType(branch)
		}
		return "", fmt.Errorf("union has no non-null branch")

	case map[string]interface{}:
		return avroComplexType(t)

	default:
		return "", fmt.Errorf("unsupported avro type node %T", node)
	}
}

func avroPrimitiveType(name string) (string, error) {
	switch name {
	case "boolean":
		return "boolean", nil
	case "int":
		return "int", nil
	case "long":
		return "bigint", nil
	case "float":
		return "float", nil
	case "double":
		return "double", nil
	case "bytes":
		return "binary", nil
	case "string":
		return "string", nil
	default:
		return "", fmt.Errorf("unsupported avro primitive %q", name)
	}
}

func avroComplexType(node map[string]interface{}) (string, error) {
	typeName, _ := node["type"].(string)

	if logical, ok := node["logicalType"].(string); ok {
		switch logical {
		case "date":
			return "date", nil
		case "timestamp-millis", "timestamp-micros":
			return "timestamp", nil
		case "decimal":
			precision := jsonInt(node["precision"])
			scale := jsonInt(node["scale"])
			return fmt.Sprintf("decimal(%d,%d)", precision, scale), nil
		}
	}

	switch typeName {
	case "record", "map":
		// Nested structures cross the boundary as JSON text.
		return "string", nil
	case "array":
		return "string", nil
	case "fixed":
		return "binary", nil
	case "enum":
		return "string", nil
	default:
		return avroPrimitiveType(typeName)
	}
}

func jsonInt(v interface{}) int {
	f, _ := v.(float64)
	return int(f)
}
