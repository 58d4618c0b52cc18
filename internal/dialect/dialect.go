// Package dialect holds the per-backend SQL rules: identifier quoting,
// placeholder syntax, paging, literals, returning clauses and native type
// names.
//
// The supported backends form a closed set. Each variant is a *Dialect
// value built once at package initialization and never mutated:
//
//	d := dialect.For(dialect.Postgres)
//	d.Quote(`weird"name`)   // "weird""name"
//	d.Placeholder(2)        // $2
package dialect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/koba/rowkit/internal/dberr"
)

// Kind identifies a supported backend.
type Kind uint8

// Supported backends.
const (
	Postgres Kind = iota + 1
	MySQL
	MSSQL
	SQLite
)

// Kinds lists every supported backend.
var Kinds = []Kind{Postgres, MySQL, MSSQL, SQLite}

func (k Kind) String() string {
	switch k {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case MSSQL:
		return "mssql"
	case SQLite:
		return "sqlite"
	default:
		return "dialect(" + strconv.Itoa(int(k)) + ")"
	}
}

// PlaceholderStyle is the bind parameter syntax of a backend.
type PlaceholderStyle uint8

const (
	// Question is the fixed token "?"; parameters bind in order.
	Question PlaceholderStyle = iota
	// Dollar numbers parameters $1, $2, ...
	Dollar
	// AtP numbers parameters @p1, @p2, ...
	AtP
)

// ReturningStyle is how a backend hands back generated values from an INSERT.
type ReturningStyle uint8

const (
	// ReturningNone means generated keys come from the driver's LastInsertId.
	ReturningNone ReturningStyle = iota
	// ReturningClause appends RETURNING <cols> to the statement.
	ReturningClause
	// ReturningOutput places OUTPUT INSERTED.<col> before VALUES.
	ReturningOutput
)

// Dialect is the immutable rule set of one backend.
type Dialect struct {
	kind           Kind
	lquote, rquote string
	placeholder    PlaceholderStyle
	returning      ReturningStyle
	boolTrue       string
	boolFalse      string
	defaultValues  string
	// maxLimit is the LIMIT used when only an OFFSET is requested.
	maxLimit       string
}

var (
	postgres = &Dialect{
		kind:          Postgres,
		lquote:        `"`,
		rquote:        `"`,
		placeholder:   Dollar,
		returning:     ReturningClause,
		boolTrue:      "TRUE",
		boolFalse:     "FALSE",
		defaultValues: "DEFAULT VALUES",
	}
	mysql = &Dialect{
		kind:          MySQL,
		lquote:        "`",
		rquote:        "`",
		placeholder:   Question,
		returning:     ReturningNone,
		boolTrue:      "TRUE",
		boolFalse:     "FALSE",
		defaultValues: "() VALUES ()",
		maxLimit:      "18446744073709551615",
	}
	mssql = &Dialect{
		kind:          MSSQL,
		lquote:        "[",
		rquote:        "]",
		placeholder:   AtP,
		returning:     ReturningOutput,
		boolTrue:      "1",
		boolFalse:     "0",
		defaultValues: "DEFAULT VALUES",
	}
	sqlite = &Dialect{
		kind:          SQLite,
		lquote:        `"`,
		rquote:        `"`,
		placeholder:   Question,
		returning:     ReturningClause,
		boolTrue:      "1",
		boolFalse:     "0",
		defaultValues: "DEFAULT VALUES",
		maxLimit:      "-1",
	}
)

// For returns the dialect of kind k. It panics on a kind outside the
// supported set, which is a programming error.
func For(k Kind) *Dialect {
	switch k {
	case Postgres:
		return postgres
	case MySQL:
		return mysql
	case MSSQL:
		return mssql
	case SQLite:
		return sqlite
	}
	panic(fmt.Sprintf("dialect: unsupported kind %d", k))
}

// ByName looks a dialect up by name. Common aliases are accepted.
func ByName(name string) (*Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pg", "pgx":
		return postgres, nil
	case "mysql", "mariadb":
		return mysql, nil
	case "mssql", "sqlserver":
		return mssql, nil
	case "sqlite", "sqlite3":
		return sqlite, nil
	}
	return nil, dberr.InvalidArgument("dialect", "unknown dialect %q", name)
}

// Kind returns the backend of d.
func (d *Dialect) Kind() Kind { return d.kind }

// Name returns the canonical backend name.
func (d *Dialect) Name() string { return d.kind.String() }

func (d *Dialect) String() string { return d.Name() }

// Quote quotes an identifier. The closing quote character is escaped by
// doubling it.
func (d *Dialect) Quote(ident string) string {
	var b strings.Builder
	b.Grow(len(ident) + 2)
	b.WriteString(d.lquote)
	b.WriteString(strings.ReplaceAll(ident, d.rquote, d.rquote+d.rquote))
	b.WriteString(d.rquote)
	return b.String()
}

// QuoteAll quotes every identifier and joins them with ", ".
func (d *Dialect) QuoteAll(idents []string) string {
	quoted := make([]string, len(idents))
	for i, id := range idents {
		quoted[i] = d.Quote(id)
	}
	return strings.Join(quoted, ", ")
}

// QuoteTable quotes a table name, qualified by schema when one is given.
func (d *Dialect) QuoteTable(schema, table string) string {
	if schema == "" {
		return d.Quote(table)
	}
	return d.Quote(schema) + "." + d.Quote(table)
}

// Placeholder returns the bind token of the n-th parameter, counting from 1.
func (d *Dialect) Placeholder(n int) string {
	switch d.placeholder {
	case Dollar:
		return "$" + strconv.Itoa(n)
	case AtP:
		return "@p" + strconv.Itoa(n)
	default:
		return "?"
	}
}

// PlaceholderStyle returns the bind parameter syntax.
func (d *Dialect) PlaceholderStyle() PlaceholderStyle { return d.placeholder }

// Returning returns how generated values are read back after an INSERT.
func (d *Dialect) Returning() ReturningStyle { return d.returning }

// DefaultValues returns the INSERT tail used when no column is written.
func (d *Dialect) DefaultValues() string { return d.defaultValues }

// Bool renders a boolean literal.
func (d *Dialect) Bool(v bool) string {
	if v {
		return d.boolTrue
	}
	return d.boolFalse
}

// PagingNeedsOrder reports whether the paging clause is only valid after
// an ORDER BY.
func (d *Dialect) PagingNeedsOrder() bool { return d.kind == MSSQL }

// Top renders the "TOP (0) " select prefix SQL Server needs for a zero
// limit, since FETCH NEXT requires a positive row count. It is empty for
// every other limit and dialect.
func (d *Dialect) Top(limit *int) string {
	if d.kind == MSSQL && limit != nil && *limit == 0 {
		return "TOP (0) "
	}
	return ""
}

// Paging renders the paging clause for the given limit and offset. Nil
// means absent. An empty string is returned when both are absent, and on
// SQL Server for a zero limit, which Top covers.
func (d *Dialect) Paging(limit, offset *int) string {
	if limit == nil && offset == nil {
		return ""
	}
	if d.kind == MSSQL {
		if d.Top(limit) != "" {
			return ""
		}
		off := 0
		if offset != nil {
			off = *offset
		}
		clause := "OFFSET " + strconv.Itoa(off) + " ROWS"
		if limit != nil {
			clause += " FETCH NEXT " + strconv.Itoa(*limit) + " ROWS ONLY"
		}
		return clause
	}
	var parts []string
	switch {
	case limit != nil:
		parts = append(parts, "LIMIT "+strconv.Itoa(*limit))
	case d.maxLimit != "":
		parts = append(parts, "LIMIT "+d.maxLimit)
	}
	if offset != nil {
		parts = append(parts, "OFFSET "+strconv.Itoa(*offset))
	}
	return strings.Join(parts, " ")
}
