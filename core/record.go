package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Record is a single schemaless row. Values are scalars, []any, or
// map[string]any as produced by JSON decoding.
type Record map[string]any

// Get returns the raw value of a column. Null values report false.
func (r Record) Get(column string) (any, bool) {
	value, ok := r[column]
	if !ok || value == nil {
		return nil, false
	}
	return value, true
}

// GetOr returns the column value or def when it is missing or null.
func (r Record) GetOr(column string, def any) any {
	if value, ok := r.Get(column); ok {
		return value
	}
	return def
}

// String returns the stringified value of a column.
func (r Record) String(column string) (string, bool) {
	value, ok := r.Get(column)
	if !ok {
		return "", false
	}
	return Stringify(value), true
}

// Float parses the column as a float64. Missing, non-numeric and NaN values
// report false.
func (r Record) Float(column string) (float64, bool) {
	value, ok := r.Get(column)
	if !ok {
		return 0, false
	}
	return ToFloat(value)
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	clone := make(Record, len(r))
	for k, v := range r {
		clone[k] = v
	}
	return clone
}

// Stringify renders a value the way the query engine compares it.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case []byte:
		return string(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// ToFloat converts a numeric or numeric-looking value to float64.
func ToFloat(value any) (float64, bool) {
	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case []byte:
		return ToFloat(string(v))
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
