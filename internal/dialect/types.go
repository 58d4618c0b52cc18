package dialect

import (
	"strconv"
	"strings"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/schema"
)

// NativeType returns the native column type for t, e.g. "varchar(40)" or
// "numeric(10,2)". Types the backend cannot store fail with an
// *dberr.UnsupportedTypeError.
func (d *Dialect) NativeType(t schema.Type) (string, error) {
	var native string
	switch d.kind {
	case Postgres:
		native = postgresNative(t)
	case MySQL:
		native = mysqlNative(t)
	case MSSQL:
		native = mssqlNative(t)
	case SQLite:
		native = sqliteNative(t)
	}
	if native == "" {
		return "", &dberr.UnsupportedTypeError{Dialect: d.Name(), Type: t.String()}
	}
	return native, nil
}

func sized(name string, size int) string {
	if size <= 0 {
		return name
	}
	return name + "(" + strconv.Itoa(size) + ")"
}

func decimalNative(name string, t schema.Type) string {
	if t.Precision <= 0 {
		return name
	}
	return name + "(" + strconv.Itoa(t.Precision) + "," + strconv.Itoa(t.Scale) + ")"
}

func postgresNative(t schema.Type) string {
	switch t.Kind {
	case schema.KindBool:
		return "boolean"
	case schema.KindInt16:
		return "smallint"
	case schema.KindInt32:
		return "integer"
	case schema.KindInt64:
		return "bigint"
	case schema.KindFloat32:
		return "real"
	case schema.KindFloat64:
		return "double precision"
	case schema.KindDecimal:
		return decimalNative("numeric", t)
	case schema.KindText:
		if t.Size > 0 {
			return sized("varchar", t.Size)
		}
		return "text"
	case schema.KindBinary:
		return "bytea"
	case schema.KindDate:
		return "date"
	case schema.KindTime:
		return "time"
	case schema.KindTimestamp:
		return "timestamp"
	case schema.KindTimestampTZ:
		return "timestamptz"
	case schema.KindUUID:
		return "uuid"
	case schema.KindJSON:
		return "jsonb"
	}
	return ""
}

func mysqlNative(t schema.Type) string {
	switch t.Kind {
	case schema.KindBool:
		return "tinyint(1)"
	case schema.KindInt16:
		return "smallint"
	case schema.KindInt32:
		return "int"
	case schema.KindInt64:
		return "bigint"
	case schema.KindFloat32:
		return "float"
	case schema.KindFloat64:
		return "double"
	case schema.KindDecimal:
		return decimalNative("decimal", t)
	case schema.KindText:
		if t.Size > 0 {
			return sized("varchar", t.Size)
		}
		return "longtext"
	case schema.KindBinary:
		if t.Size > 0 {
			return sized("varbinary", t.Size)
		}
		return "longblob"
	case schema.KindDate:
		return "date"
	case schema.KindTime:
		return "time"
	case schema.KindTimestamp:
		return "datetime"
	case schema.KindTimestampTZ:
		return "timestamp"
	case schema.KindUUID:
		return "char(36)"
	case schema.KindJSON:
		return "json"
	}
	return ""
}

func mssqlNative(t schema.Type) string {
	switch t.Kind {
	case schema.KindBool:
		return "bit"
	case schema.KindInt16:
		return "smallint"
	case schema.KindInt32:
		return "int"
	case schema.KindInt64:
		return "bigint"
	case schema.KindFloat32:
		return "real"
	case schema.KindFloat64:
		return "float"
	case schema.KindDecimal:
		return decimalNative("decimal", t)
	case schema.KindText:
		if t.Size > 0 && t.Size <= 4000 {
			return sized("nvarchar", t.Size)
		}
		return "nvarchar(max)"
	case schema.KindBinary:
		if t.Size > 0 && t.Size <= 8000 {
			return sized("varbinary", t.Size)
		}
		return "varbinary(max)"
	case schema.KindDate:
		return "date"
	case schema.KindTime:
		return "time"
	case schema.KindTimestamp:
		return "datetime2"
	case schema.KindTimestampTZ:
		return "datetimeoffset"
	case schema.KindUUID:
		return "uniqueidentifier"
	}
	return ""
}

func sqliteNative(t schema.Type) string {
	switch t.Kind {
	case schema.KindBool:
		return "boolean"
	case schema.KindInt16, schema.KindInt32, schema.KindInt64:
		return "integer"
	case schema.KindFloat32, schema.KindFloat64:
		return "real"
	case schema.KindDecimal:
		return decimalNative("numeric", t)
	case schema.KindText:
		if t.Size > 0 {
			return sized("varchar", t.Size)
		}
		return "text"
	case schema.KindBinary:
		return "blob"
	case schema.KindDate:
		return "date"
	case schema.KindTime:
		return "time"
	case schema.KindTimestamp, schema.KindTimestampTZ:
		return "datetime"
	case schema.KindJSON:
		return "json"
	}
	return ""
}

// nativeParts splits a native type into its base name and parameters:
// "timestamp(6) without time zone" becomes ("timestamp without time zone",
// ["6"]) and "int(11) unsigned" becomes ("int unsigned", ["11"]).
func nativeParts(native string) (string, []string) {
	s := strings.ToLower(strings.TrimSpace(native))
	var params []string
	if i := strings.IndexByte(s, '('); i >= 0 {
		if j := strings.IndexByte(s[i:], ')'); j > 0 {
			for _, p := range strings.Split(s[i+1:i+j], ",") {
				params = append(params, strings.TrimSpace(p))
			}
			s = s[:i] + " " + s[i+j+1:]
		}
	}
	return strings.Join(strings.Fields(s), " "), params
}

func intParam(params []string, i int) int {
	if i >= len(params) {
		return 0
	}
	n, err := strconv.Atoi(params[i])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func decimalFrom(params []string) schema.Type {
	return schema.Decimal(intParam(params, 0), intParam(params, 1))
}

// ParseNativeType maps a native column type read from the catalog back to
// the closest logical type. The mapping is lossy: NativeType(ParseNativeType(n))
// need not return n, but it is stable, so comparing two columns through
// NativeType is meaningful. Unrecognized names fail with an
// *dberr.UnknownNativeTypeError.
func (d *Dialect) ParseNativeType(native string) (schema.Type, error) {
	base, params := nativeParts(native)
	var (
		t  schema.Type
		ok bool
	)
	switch d.kind {
	case Postgres:
		t, ok = parsePostgres(base, params)
	case MySQL:
		t, ok = parseMySQL(base, params)
	case MSSQL:
		t, ok = parseMSSQL(base, params)
	case SQLite:
		t, ok = parseSQLite(base, params)
	}
	if !ok {
		return schema.Type{}, &dberr.UnknownNativeTypeError{Dialect: d.Name(), Native: native}
	}
	return t, nil
}

func parsePostgres(base string, params []string) (schema.Type, bool) {
	switch base {
	case "boolean", "bool":
		return schema.Bool, true
	case "smallint", "int2", "smallserial", "serial2":
		return schema.Int16, true
	case "integer", "int", "int4", "serial", "serial4":
		return schema.Int32, true
	case "bigint", "int8", "bigserial", "serial8":
		return schema.Int64, true
	case "real", "float4":
		return schema.Float32, true
	case "double precision", "float8":
		return schema.Float64, true
	case "numeric", "decimal":
		return decimalFrom(params), true
	case "character varying", "varchar", "character", "char", "bpchar":
		return schema.Text(intParam(params, 0)), true
	case "text", "citext":
		return schema.Text(0), true
	case "bytea":
		return schema.Binary(0), true
	case "date":
		return schema.Date, true
	case "time", "time without time zone", "timetz", "time with time zone":
		return schema.Time, true
	case "timestamp", "timestamp without time zone":
		return schema.Timestamp, true
	case "timestamptz", "timestamp with time zone":
		return schema.TimestampTZ, true
	case "uuid":
		return schema.UUID, true
	case "json", "jsonb":
		return schema.JSON, true
	}
	return schema.Type{}, false
}

func parseMySQL(base string, params []string) (schema.Type, bool) {
	unsigned := false
	var words []string
	for _, w := range strings.Fields(base) {
		switch w {
		case "unsigned":
			unsigned = true
		case "signed", "zerofill":
		default:
			words = append(words, w)
		}
	}
	base = strings.Join(words, " ")
	switch base {
	case "tinyint":
		if intParam(params, 0) == 1 {
			return schema.Bool, true
		}
		return schema.Int16, true
	case "bool", "boolean", "bit":
		if base == "bit" && intParam(params, 0) > 1 {
			return schema.Type{}, false
		}
		return schema.Bool, true
	case "smallint":
		if unsigned {
			return schema.Int32, true
		}
		return schema.Int16, true
	case "mediumint":
		return schema.Int32, true
	case "int", "integer":
		if unsigned {
			return schema.Int64, true
		}
		return schema.Int32, true
	case "bigint":
		return schema.Int64, true
	case "float":
		return schema.Float32, true
	case "double", "double precision", "real":
		return schema.Float64, true
	case "decimal", "numeric", "dec", "fixed":
		return decimalFrom(params), true
	case "char":
		if intParam(params, 0) == 36 {
			return schema.UUID, true
		}
		return schema.Text(intParam(params, 0)), true
	case "varchar":
		return schema.Text(intParam(params, 0)), true
	case "tinytext", "text", "mediumtext", "longtext", "enum", "set":
		return schema.Text(0), true
	case "binary", "varbinary":
		return schema.Binary(intParam(params, 0)), true
	case "tinyblob", "blob", "mediumblob", "longblob":
		return schema.Binary(0), true
	case "date":
		return schema.Date, true
	case "time":
		return schema.Time, true
	case "datetime":
		return schema.Timestamp, true
	case "timestamp":
		return schema.TimestampTZ, true
	case "json":
		return schema.JSON, true
	}
	return schema.Type{}, false
}

func parseMSSQL(base string, params []string) (schema.Type, bool) {
	size := intParam(params, 0)
	switch base {
	case "bit":
		return schema.Bool, true
	case "tinyint", "smallint":
		return schema.Int16, true
	case "int":
		return schema.Int32, true
	case "bigint":
		return schema.Int64, true
	case "real":
		return schema.Float32, true
	case "float":
		if n := intParam(params, 0); n > 0 && n <= 24 {
			return schema.Float32, true
		}
		return schema.Float64, true
	case "decimal", "numeric":
		return decimalFrom(params), true
	case "money":
		return schema.Decimal(19, 4), true
	case "smallmoney":
		return schema.Decimal(10, 4), true
	case "nvarchar", "varchar", "nchar", "char":
		return schema.Text(size), true
	case "text", "ntext", "xml":
		return schema.Text(0), true
	case "varbinary", "binary":
		return schema.Binary(size), true
	case "image":
		return schema.Binary(0), true
	case "date":
		return schema.Date, true
	case "time":
		return schema.Time, true
	case "datetime", "datetime2", "smalldatetime":
		return schema.Timestamp, true
	case "datetimeoffset":
		return schema.TimestampTZ, true
	case "uniqueidentifier":
		return schema.UUID, true
	}
	return schema.Type{}, false
}

func parseSQLite(base string, params []string) (schema.Type, bool) {
	switch base {
	case "boolean", "bool":
		return schema.Bool, true
	case "integer", "int", "tinyint", "smallint", "mediumint", "bigint", "int2", "int8", "unsigned big int":
		return schema.Int64, true
	case "real", "double", "double precision", "float":
		return schema.Float64, true
	case "numeric", "decimal":
		return decimalFrom(params), true
	case "varchar", "character", "varying character", "nchar", "native character", "nvarchar", "char":
		return schema.Text(intParam(params, 0)), true
	case "text", "clob":
		return schema.Text(0), true
	case "blob":
		return schema.Binary(0), true
	case "date":
		return schema.Date, true
	case "time":
		return schema.Time, true
	case "datetime", "timestamp":
		return schema.Timestamp, true
	case "json":
		return schema.JSON, true
	}
	return schema.Type{}, false
}
