package model

import (
	"encoding/json"
	"fmt"
	"math"
)

type (
	// A Storable defines an object that can be stored in a partitioned table.
	Storable interface {
		// PartitionKey returns the key grouping the record for scoped scans.
		PartitionKey() string
		// RowKey returns the key identifying the record inside its partition.
		RowKey() string
		// Record serializes the model into its stored representation.
		Record() *Record
		// FromRecord populates the model from its stored representation.
		FromRecord(r *Record) error
	}

	// A Record is the stored representation of a Storable.
	Record struct {
		PartitionKey string     `json:"partition_key" msgpack:"partition_key"`
		RowKey       string     `json:"row_key"       msgpack:"row_key"`
		Version      int64      `json:"version"       msgpack:"version"`
		Properties   Properties `json:"properties"    msgpack:"properties"`
	}

	// Properties is the field map of a Record.
	// Values are restricted to string, bool and numbers.
	Properties map[string]any
)

// String returns the named property as a string.
func (p Properties) String(name string) string {
	switch v := p[name].(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Bool returns the named property as a boolean.
func (p Properties) Bool(name string) bool {
	switch v := p[name].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	default:
		return false
	}
}

// Int64 returns the named property as an integer.
// Codecs decode numbers into various Go types, all of them are accepted here.
func (p Properties) Int64(name string) int64 {
	n, _ := ToInt64(p[name])
	return n
}

// ToInt64 converts any numeric value to int64.
func ToInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		if n > math.MaxInt64 {
			return math.MaxInt64, true
		}
		return int64(n), true
	case float32:
		return int64(n), true
	case float64:
		return int64(n), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	default:
		return 0, false
	}
}
