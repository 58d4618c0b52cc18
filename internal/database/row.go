package database

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Row is one result row: column names in result order and their values as
// returned by the driver.
type Row struct {
	columns []string
	values  []any
}

// NewRow builds a row. Columns and values must have the same length.
func NewRow(columns []string, values []any) Row {
	return Row{columns: columns, values: values}
}

// Columns returns the column names in result order.
func (r Row) Columns() []string { return r.columns }

// Values returns the values in result order.
func (r Row) Values() []any { return r.values }

// Len returns the number of columns.
func (r Row) Len() int { return len(r.values) }

// Get returns the value of the named column. Names match exactly first and
// then case-insensitively, since catalogs differ in the case they report.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	for i, c := range r.columns {
		if strings.EqualFold(c, column) {
			return r.values[i], true
		}
	}
	return nil, false
}

// String returns the named column as a string, "" for NULL or missing.
func (r Row) String(column string) string {
	v, _ := r.Get(column)
	return AsString(v)
}

// Map returns the row as a column to value map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, c := range r.columns {
		m[c] = r.values[i]
	}
	return m
}

// AsString renders a driver value as text. NULL is "".
func AsString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v)
	}
}

// AsNullString is like AsString but keeps NULL apart from the empty string.
func AsNullString(v any) *string {
	if v == nil {
		return nil
	}
	s := AsString(v)
	return &s
}

// AsInt64 converts a driver value to an integer.
func AsInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), v <= math.MaxInt64
	case float64:
		return int64(v), v == float64(int64(v))
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// AsBool converts a driver value to a boolean. Catalog flags arrive as
// booleans, integers or strings such as "YES" and "t".
func AsBool(v any) bool {
	switch v := v.(type) {
	case bool:
		return v
	case string:
		return truthy(v)
	case []byte:
		return truthy(string(v))
	}
	n, ok := AsInt64(v)
	return ok && n != 0
}

func truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	}
	return false
}
