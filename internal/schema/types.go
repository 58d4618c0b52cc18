package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is a logical column type, independent of any dialect.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindDecimal
	KindText
	KindBinary
	KindDate
	KindTime
	KindTimestamp
	KindTimestampTZ
	KindUUID
	KindJSON
)

var kindNames = [...]string{
	KindInvalid:     "invalid",
	KindBool:        "bool",
	KindInt16:       "int16",
	KindInt32:       "int32",
	KindInt64:       "int64",
	KindFloat32:     "float32",
	KindFloat64:     "float64",
	KindDecimal:     "decimal",
	KindText:        "text",
	KindBinary:      "binary",
	KindDate:        "date",
	KindTime:        "time",
	KindTimestamp:   "timestamp",
	KindTimestampTZ: "timestamptz",
	KindUUID:        "uuid",
	KindJSON:        "json",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Type is a logical column type with its size parameters.
// Size applies to Text and Binary (0 means unbounded), Precision and
// Scale to Decimal.
type Type struct {
	Kind      Kind
	Size      int
	Precision int
	Scale     int
}

// Convenience constructors.
var (
	Bool        = Type{Kind: KindBool}
	Int16       = Type{Kind: KindInt16}
	Int32       = Type{Kind: KindInt32}
	Int64       = Type{Kind: KindInt64}
	Float32     = Type{Kind: KindFloat32}
	Float64     = Type{Kind: KindFloat64}
	Date        = Type{Kind: KindDate}
	Time        = Type{Kind: KindTime}
	Timestamp   = Type{Kind: KindTimestamp}
	TimestampTZ = Type{Kind: KindTimestampTZ}
	UUID        = Type{Kind: KindUUID}
	JSON        = Type{Kind: KindJSON}
)

// Text returns a text type; size 0 is unbounded.
func Text(size int) Type { return Type{Kind: KindText, Size: size} }

// Binary returns a binary type; size 0 is unbounded.
func Binary(size int) Type { return Type{Kind: KindBinary, Size: size} }

// Decimal returns a fixed-point type.
func Decimal(precision, scale int) Type {
	return Type{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// String renders the type as "kind", "kind(size)" or "decimal(p,s)".
func (t Type) String() string {
	switch {
	case t.Kind == KindDecimal && t.Precision > 0:
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	case (t.Kind == KindText || t.Kind == KindBinary) && t.Size > 0:
		return fmt.Sprintf("%s(%d)", t.Kind, t.Size)
	default:
		return t.Kind.String()
	}
}

// MarshalText implements encoding.TextMarshaler so types read naturally in
// YAML schema files and JSON snapshots.
func (t Type) MarshalText() ([]byte, error) {
	if t.Kind == KindInvalid {
		return nil, fmt.Errorf("schema: cannot marshal invalid type")
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := ParseType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType parses the textual form produced by Type.String. A few common
// aliases (int, integer, bigint, string, varchar(n), bytes) are accepted.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	name, params := s, ""
	if i := strings.IndexByte(s, '('); i >= 0 {
		if !strings.HasSuffix(s, ")") {
			return Type{}, fmt.Errorf("schema: malformed type %q", s)
		}
		name, params = strings.TrimSpace(s[:i]), s[i+1:len(s)-1]
	}
	var nums []int
	if params != "" {
		for _, p := range strings.Split(params, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || n < 0 {
				return Type{}, fmt.Errorf("schema: malformed type parameter in %q", s)
			}
			nums = append(nums, n)
		}
	}
	var t Type
	switch name {
	case "bool", "boolean":
		t = Bool
	case "int16", "smallint":
		t = Int16
	case "int32", "int", "integer":
		t = Int32
	case "int64", "bigint":
		t = Int64
	case "float32", "real":
		t = Float32
	case "float64", "double", "float":
		t = Float64
	case "decimal", "numeric":
		t = Type{Kind: KindDecimal}
		if len(nums) > 0 {
			t.Precision = nums[0]
		}
		if len(nums) > 1 {
			t.Scale = nums[1]
		}
		return t, nil
	case "text", "string", "varchar":
		t = Text(0)
	case "binary", "bytes", "blob":
		t = Binary(0)
	case "date":
		t = Date
	case "time":
		t = Time
	case "timestamp", "datetime":
		t = Timestamp
	case "timestamptz":
		t = TimestampTZ
	case "uuid":
		t = UUID
	case "json":
		t = JSON
	default:
		return Type{}, fmt.Errorf("schema: unknown type %q", s)
	}
	if len(nums) > 0 {
		if t.Kind != KindText && t.Kind != KindBinary {
			return Type{}, fmt.Errorf("schema: type %q does not take a size", name)
		}
		t.Size = nums[0]
	}
	return t, nil
}
