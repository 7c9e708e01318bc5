package scan

import (
	"strconv"
	"strings"

	"hudi-scan-bridge/internal/model"
)

// HadoopFSPrefix is the reserved namespace for storage-access properties
// in the flat scan configuration. Prefixing keeps filesystem settings
// from ever colliding with table-format keys, and tells the foreign
// scanner these configure storage access rather than table semantics.
const HadoopFSPrefix = "hadoop_fs."

// Table-format configuration keys. This flat map is the sole protocol
// surface between the bridge and the foreign scanner; behavior changes on
// the foreign side are reflected by adding or removing keys here, never
// by changing call signatures.
const (
	KeyBasePath       = "base_path"
	KeyDataFilePath   = "data_file_path"
	KeyDataFileLength = "data_file_length"
	KeyDeltaFilePaths = "delta_file_paths"
	KeyColumnNames    = "hudi_column_names"
	KeyColumnTypes    = "hudi_column_types"
	KeyRequiredFields = "required_fields"
	KeyInstantTime    = "instant_time"
	KeySerde          = "serde"
	KeyInputFormat    = "input_format"
)

// BuildScanParams flattens the file descriptor, the required output
// fields, and the storage-access properties into the scan configuration.
// Pure function of its inputs; values pass through verbatim with no
// validation, since the foreign scanner is the authority on what is
// acceptable.
func BuildScanParams(desc *model.HudiFileDescriptor, requiredFields []string, properties map[string]string) map[string]string {
	params := map[string]string{
		KeyBasePath:       desc.BasePath,
		KeyDataFilePath:   desc.DataFilePath,
		KeyDataFileLength: strconv.FormatInt(desc.DataFileLength, 10),
		KeyDeltaFilePaths: strings.Join(desc.DeltaLogPaths, ","),
		KeyColumnNames:    strings.Join(desc.ColumnNames, ","),
		KeyColumnTypes:    strings.Join(desc.ColumnTypes, "#"),
		KeyRequiredFields: strings.Join(requiredFields, ","),
		KeyInstantTime:    desc.InstantTime,
		KeySerde:          desc.Serde,
		KeyInputFormat:    desc.InputFormat,
	}

	// Storage-access properties ride along under the reserved prefix so
	// the foreign side can hand them to a compatible hadoop client.
	for k, v := range properties {
		params[HadoopFSPrefix+k] = v
	}

	return params
}

// RequiredFieldNames extracts the ordered column names from the requested
// slots. Order is preserved for determinism and debuggability.
func RequiredFieldNames(slots []model.SlotDescriptor) []string {
	fields := make([]string, len(slots))
	for i, slot := range slots {
		fields[i] = slot.Name
	}
	return fields
}
