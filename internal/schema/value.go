package schema

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Equal reports whether a and b hold the same value for a column of type t.
// Values are compared by their logical meaning rather than their Go
// representation: int32(5) equals int64(5), "1.50" equals decimal 1.5,
// timestamps are equal when they denote the same instant. NULL (nil or a
// nil pointer) only equals NULL.
func (t Type) Equal(a, b any) bool {
	a, b = normalize(a), normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch t.Kind {
	case KindBool:
		x, ok1 := asBool(a)
		y, ok2 := asBool(b)
		if ok1 && ok2 {
			return x == y
		}
	case KindInt16, KindInt32, KindInt64:
		x, ok1 := asInt64(a)
		y, ok2 := asInt64(b)
		if ok1 && ok2 {
			return x == y
		}
	case KindFloat32, KindFloat64:
		x, ok1 := asFloat64(a)
		y, ok2 := asFloat64(b)
		if ok1 && ok2 {
			if t.Kind == KindFloat32 {
				return float32(x) == float32(y)
			}
			return x == y
		}
	case KindDecimal:
		x, ok1 := asDecimal(a)
		y, ok2 := asDecimal(b)
		if ok1 && ok2 {
			return x.Equal(y)
		}
	case KindText, KindJSON:
		x, ok1 := asString(a)
		y, ok2 := asString(b)
		if ok1 && ok2 {
			return x == y
		}
	case KindBinary:
		x, ok1 := asBytes(a)
		y, ok2 := asBytes(b)
		if ok1 && ok2 {
			return bytes.Equal(x, y)
		}
	case KindDate, KindTime, KindTimestamp, KindTimestampTZ:
		x, ok1 := a.(time.Time)
		y, ok2 := b.(time.Time)
		if ok1 && ok2 {
			return x.Equal(y)
		}
	case KindUUID:
		x, ok1 := asUUID(a)
		y, ok2 := asUUID(b)
		if ok1 && ok2 {
			return x == y
		}
	}
	return reflect.DeepEqual(a, b)
}

// Clone returns a copy of v that does not share mutable memory with it.
// Snapshots hold clones so later writes to a byte slice are detected.
func Clone(v any) any {
	switch v := v.(type) {
	case []byte:
		if v == nil {
			return v
		}
		return append([]byte(nil), v...)
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 && !rv.IsNil():
		cp := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		reflect.Copy(cp, rv)
		return cp.Interface()
	case rv.Kind() == reflect.Pointer && !rv.IsNil():
		cp := reflect.New(rv.Elem().Type())
		cp.Elem().Set(rv.Elem())
		return cp.Interface()
	}
	return v
}

// normalize dereferences pointers and unwraps driver.Valuer values.
func normalize(v any) any {
	for i := 0; i < 4 && v != nil; i++ {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil
			}
			v = rv.Elem().Interface()
			continue
		}
		if _, ok := v.(time.Time); ok {
			return v
		}
		if valuer, ok := v.(driver.Valuer); ok {
			dv, err := valuer.Value()
			if err != nil {
				return v
			}
			v = dv
			continue
		}
		return v
	}
	return v
}

func asBool(v any) (bool, bool) {
	switch v := v.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	case []byte:
		b, err := strconv.ParseBool(string(v))
		return b, err == nil
	}
	if n, ok := asInt64(v); ok {
		return n != 0, true
	}
	return false, false
}

func asInt64(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) {
			return 0, false
		}
		return int64(f), true
	case reflect.String:
		n, err := strconv.ParseInt(rv.String(), 10, 64)
		return n, err == nil
	}
	if b, ok := v.([]byte); ok {
		n, err := strconv.ParseInt(string(b), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func asFloat64(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		f, err := strconv.ParseFloat(rv.String(), 64)
		return f, err == nil
	}
	if n, ok := asInt64(v); ok {
		return float64(n), true
	}
	if b, ok := v.([]byte); ok {
		f, err := strconv.ParseFloat(string(b), 64)
		return f, err == nil
	}
	return 0, false
}

func asDecimal(v any) (decimal.Decimal, bool) {
	switch v := v.(type) {
	case decimal.Decimal:
		return v, true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	case []byte:
		d, err := decimal.NewFromString(strings.TrimSpace(string(v)))
		return d, err == nil
	case float32:
		return decimal.NewFromFloat32(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	}
	if n, ok := asInt64(v); ok {
		return decimal.NewFromInt(n), true
	}
	return decimal.Decimal{}, false
}

func asString(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		return v.String(), true
	}
	return "", false
}

func asBytes(v any) ([]byte, bool) {
	switch v := v.(type) {
	case []byte:
		return v, true
	case string:
		return []byte(v), true
	}
	return nil, false
}

func asUUID(v any) (uuid.UUID, bool) {
	switch v := v.(type) {
	case uuid.UUID:
		return v, true
	case [16]byte:
		return uuid.UUID(v), true
	case string:
		u, err := uuid.Parse(v)
		return u, err == nil
	case []byte:
		if len(v) == 16 {
			u, err := uuid.FromBytes(v)
			return u, err == nil
		}
		u, err := uuid.ParseBytes(v)
		return u, err == nil
	}
	return uuid.UUID{}, false
}
