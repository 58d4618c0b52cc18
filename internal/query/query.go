// Package query holds the statement AST, its builder and changesets.
//
// Building a query performs no I/O; it only checks the statement against the
// table metadata it was given. Rendering to SQL lives in package render.
package query

import (
	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/schema"
)

// Kind is the statement kind.
type Kind uint8

// Statement kinds.
const (
	SelectKind Kind = iota + 1
	InsertKind
	UpdateKind
	DeleteKind
)

func (k Kind) String() string {
	switch k {
	case SelectKind:
		return "SELECT"
	case InsertKind:
		return "INSERT"
	case UpdateKind:
		return "UPDATE"
	case DeleteKind:
		return "DELETE"
	}
	return "UNKNOWN"
}

// JoinKind is the join type.
type JoinKind string

// Join types.
const (
	InnerJoin JoinKind = "INNER JOIN"
	LeftJoin  JoinKind = "LEFT JOIN"
)

// On is one equality of a join predicate.
type On struct {
	Left, Right Column
}

// Join adds a table to the query scope.
type Join struct {
	Kind  JoinKind
	Table *schema.Table
	On    []On
}

// Order is one ORDER BY term.
type Order struct {
	Column Column
	Desc   bool
}

// Query is a statement AST. It is a value: rendering it never modifies it.
type Query struct {
	Kind   Kind
	Schema string
	Table  *schema.Table

	// Select only.
	Columns []Column
	Joins   []Join
	OrderBy []Order
	GroupBy []Column
	Having  Filter
	Limit   *int
	Offset  *int

	// Select, Update and Delete.
	Where Filter

	// Insert and Update.
	Values Changeset
	// Returning lists the columns an INSERT hands back.
	Returning []string
}

// Scope returns the tables visible to column references: the main table
// followed by joined tables in declaration order.
func (q *Query) Scope() []*schema.Table {
	scope := make([]*schema.Table, 0, 1+len(q.Joins))
	scope = append(scope, q.Table)
	for _, j := range q.Joins {
		scope = append(scope, j.Table)
	}
	return scope
}

// Insert returns an INSERT of cs into t that hands back the primary key.
func Insert(t *schema.Table, cs Changeset) (*Query, error) {
	if err := checkChangeset(t, cs); err != nil {
		return nil, err
	}
	var returning []string
	for _, c := range t.PrimaryKey() {
		returning = append(returning, c.Name)
	}
	return &Query{Kind: InsertKind, Table: t, Values: cs, Returning: returning}, nil
}

// Update returns an UPDATE writing cs to the row whose primary key has the
// values in key.
func Update(t *schema.Table, cs Changeset, key map[string]any) (*Query, error) {
	if err := checkChangeset(t, cs); err != nil {
		return nil, err
	}
	where, err := KeyFilter(t, key)
	if err != nil {
		return nil, err
	}
	return &Query{Kind: UpdateKind, Table: t, Values: cs, Where: where}, nil
}

// DeleteByKey returns a DELETE of the row whose primary key has the values in key.
func DeleteByKey(t *schema.Table, key map[string]any) (*Query, error) {
	where, err := KeyFilter(t, key)
	if err != nil {
		return nil, err
	}
	return &Query{Kind: DeleteKind, Table: t, Where: where}, nil
}

// KeyFilter returns the filter matching the primary key values in key.
func KeyFilter(t *schema.Table, key map[string]any) (Filter, error) {
	pk := t.PrimaryKey()
	if len(pk) == 0 {
		return nil, dberr.InvalidArgument("key", "table %q has no primary key", t.Name)
	}
	fs := make([]Filter, 0, len(pk))
	for _, c := range pk {
		v, ok := key[c.Name]
		if !ok || v == nil {
			return nil, dberr.InvalidArgument("key", "missing value for primary key column %s.%s", t.Name, c.Name)
		}
		fs = append(fs, Cmp(Column{Table: t.Name, Name: c.Name}, OpEQ, v))
	}
	return And(fs...), nil
}

func checkChangeset(t *schema.Table, cs Changeset) error {
	for _, ch := range cs {
		if !t.HasColumn(ch.Column) {
			return &dberr.UnknownColumnError{Table: t.Name, Column: ch.Column}
		}
	}
	return nil
}
