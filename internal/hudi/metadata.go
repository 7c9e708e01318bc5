package hudi

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"hudi-scan-bridge/internal/storage"
)

// Hudi table types.
const (
	TableTypeCopyOnWrite = "COPY_ON_WRITE"
	TableTypeMergeOnRead = "MERGE_ON_READ"
)

// metaDir is the table-relative directory holding table properties and
// the commit timeline.
const metaDir = ".hoodie"

// TableMetadata is the parsed content of a table's hoodie.properties.
type TableMetadata struct {
	TableName       string
	TableType       string
	TableVersion    string
	RecordKeyField  string
	PrecombineField string
	PartitionFields []string
	Columns         []Column
	BasePath        string
}

// Instant is one completed action on the table timeline.
type Instant struct {
	Timestamp string
	Action    string
}

// MetadataClient reads Hudi table metadata from the table's base path.
type MetadataClient struct {
	resolver *storage.Resolver
}

// NewMetadataClient creates a metadata client over the shared storage
// resolver.
func NewMetadataClient(resolver *storage.Resolver) *MetadataClient {
	return &MetadataClient{resolver: resolver}
}

// LoadTableMetadata reads and parses <basePath>/.hoodie/hoodie.properties.
func (c *MetadataClient) LoadTableMetadata(ctx context.Context, basePath string, properties map[string]string) (*TableMetadata, error) {
	backend, err := c.resolver.Resolve(basePath, properties)
	if err != nil {
		return nil, err
	}

	propsPath := joinTablePath(basePath, metaDir, "hoodie.properties")
	data, err := backend.ReadFile(ctx, propsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read table properties: %w", err)
	}

	props := parseProperties(data)

	meta := &TableMetadata{
		TableName:       props["hoodie.table.name"],
		TableType:       props["hoodie.table.type"],
		TableVersion:    props["hoodie.table.version"],
		RecordKeyField:  props["hoodie.table.recordkey.fields"],
		PrecombineField: props["hoodie.table.precombine.field"],
		BasePath:        basePath,
	}
	if meta.RecordKeyField == "" {
		meta.RecordKeyField = props["hoodie.datasource.write.recordkey.field"]
	}
	if fields := props["hoodie.table.partition.fields"]; fields != "" {
		meta.PartitionFields = strings.Split(fields, ",")
	}

	if meta.TableType != TableTypeCopyOnWrite && meta.TableType != TableTypeMergeOnRead {
		return nil, fmt.Errorf("unknown hudi table type %q", meta.TableType)
	}

	// Tables written by recent Hudi releases record the writer schema in
	// the properties file.
	if schema := props["hoodie.table.create.schema"]; schema != "" {
		columns, err := ParseAvroSchema(schema)
		if err != nil {
			return nil, fmt.Errorf("invalid table create schema: %w", err)
		}
		meta.Columns = columns
	}
	return meta, nil
}

// LatestInstant returns the most recent completed instant on the table
// timeline, or an error if the table has no completed commits.
func (c *MetadataClient) LatestInstant(ctx context.Context, basePath string, properties map[string]string) (*Instant, error) {
	instants, err := c.Timeline(ctx, basePath, properties)
	if err != nil {
		return nil, err
	}
	if len(instants) == 0 {
		return nil, fmt.Errorf("table %s has no completed instants", basePath)
	}
	return &instants[len(instants)-1], nil
}

// Timeline lists the completed instants on the table timeline in
// ascending timestamp order.
func (c *MetadataClient) Timeline(ctx context.Context, basePath string, properties map[string]string) ([]Instant, error) {
	backend, err := c.resolver.Resolve(basePath, properties)
	if err != nil {
		return nil, err
	}

	entries, err := backend.List(ctx, joinTablePath(basePath, metaDir))
	if err != nil {
		return nil, fmt.Errorf("failed to list timeline: %w", err)
	}

	var instants []Instant
	for _, entry := range entries {
		instant, ok := parseInstant(entry)
		if !ok {
			continue
		}
		instants = append(instants, instant)
	}

	sort.Slice(instants, func(i, j int) bool {
		return instants[i].Timestamp < instants[j].Timestamp
	})
	return instants, nil
}

// parseInstant recognizes completed timeline files. In-flight and
// requested markers (.commit.requested, .inflight) are skipped.
func parseInstant(name string) (Instant, bool) {
	for _, action := range []string{"commit", "deltacommit", "replacecommit", "compaction"} {
		suffix := "." + action
		if strings.HasSuffix(name, suffix) {
			return Instant{
				Timestamp: strings.TrimSuffix(name, suffix),
				Action:    action,
			}, true
		}
	}
	return Instant{}, false
}

// parseProperties reads java.util.Properties format: key=value lines,
// with # and ! comments.
func parseProperties(data []byte) map[string]string {
	props := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		i := strings.Index(line, "=")
		if i < 0 {
			continue
		}
		key := strings.TrimSpace(line[:i])
		value := strings.TrimSpace(line[i+1:])
		props[key] = value
	}
	return props
}

// joinTablePath joins path elements under a base path without disturbing
// its scheme and authority.
func joinTablePath(basePath string, elems ...string) string {
	joined := strings.TrimSuffix(basePath, "/")
	for _, e := range elems {
		joined = joined + "/" + strings.Trim(e, "/")
	}
	if !strings.Contains(basePath, "://") {
		return path.Clean(joined)
	}
	return joined
}
