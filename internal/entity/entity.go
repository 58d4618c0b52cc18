// Package entity maps Go structs onto declared tables and tracks their state.
//
// An entity type is registered once with Define, naming a Field for every
// column. Instances are wrapped in a Tracked value: New for rows not yet in
// the database, Loaded (or Find) for rows read from it. Save writes only what
// changed since the row was loaded.
package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/koba/rowkit/internal/database"
	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/query"
	"github.com/koba/rowkit/internal/render"
	"github.com/koba/rowkit/internal/schema"
)

// ErrStale is returned when an update or delete by primary key matches no
// row: it was deleted or its key changed since it was loaded.
var ErrStale = errors.New("entity: row changed or deleted since it was loaded")

// Entity is the mapping between T and a table.
type Entity[T any] struct {
	table  *schema.Table
	fields []Field[T]
	byCol  map[string]int
}

// Define registers T against table. Every field must name a column of the
// table and every column must have exactly one field.
func Define[T any](table *schema.Table, fields ...Field[T]) (*Entity[T], error) {
	if table == nil {
		return nil, dberr.InvalidArgument("table", "nil table")
	}
	e := &Entity[T]{table: table, fields: fields, byCol: make(map[string]int, len(fields))}
	var errs []error
	for i, f := range fields {
		switch {
		case !table.HasColumn(f.Column):
			errs = append(errs, &dberr.UnknownColumnError{Table: table.Name, Column: f.Column})
		case f.Get == nil || f.Set == nil:
			errs = append(errs, dberr.InvalidArgument("field", "%s.%s needs Get and Set", table.Name, f.Column))
		default:
			if _, dup := e.byCol[f.Column]; dup {
				errs = append(errs, dberr.InvalidArgument("field", "%s.%s mapped twice", table.Name, f.Column))
				continue
			}
			e.byCol[f.Column] = i
		}
	}
	for _, c := range table.Columns {
		if !hasField(fields, c.Name) {
			errs = append(errs, dberr.InvalidArgument("field", "column %s.%s has no field", table.Name, c.Name))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return e, nil
}

func hasField[T any](fields []Field[T], col string) bool {
	for _, f := range fields {
		if f.Column == col {
			return true
		}
	}
	return false
}

// MustDefine is like Define but panics on error.
func MustDefine[T any](table *schema.Table, fields ...Field[T]) *Entity[T] {
	e, err := Define(table, fields...)
	if err != nil {
		panic(err)
	}
	return e
}

// Table returns the mapped table.
func (e *Entity[T]) Table() *schema.Table { return e.table }

// New tracks v as a row that is not in the database yet.
func (e *Entity[T]) New(v *T) *Tracked[T] {
	return &Tracked[T]{def: e, v: v}
}

// Loaded tracks v as a row just read from the database; its current values
// become the baseline for dirty tracking.
func (e *Entity[T]) Loaded(v *T) *Tracked[T] {
	t := &Tracked[T]{def: e, v: v}
	t.snapshot = t.capture()
	return t
}

// Select starts a query over the entity's table for use with Find.
func (e *Entity[T]) Select() *query.Builder {
	return query.Select(e.table)
}

// Find runs the query built by b and loads every row as a tracked entity.
// The select list is always the entity's own columns.
func (e *Entity[T]) Find(ctx context.Context, conn database.Conn, b *query.Builder) ([]*Tracked[T], error) {
	q, err := b.Build()
	if err != nil {
		return nil, err
	}
	if q.Kind != query.SelectKind || q.Table == nil || q.Table.Name != e.table.Name {
		return nil, dberr.InvalidArgument("find", "query does not select from %s", e.table.Name)
	}
	if len(q.Columns) > 0 {
		return nil, dberr.InvalidArgument("find", "the select list is fixed to the entity's columns")
	}
	for _, c := range e.table.Columns {
		q.Columns = append(q.Columns, query.Column{Table: e.table.Name, Name: c.Name})
	}
	stmt, err := render.Select(conn.Dialect(), q)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", e.table.Name, err)
	}
	out := make([]*Tracked[T], 0, len(rows))
	for _, row := range rows {
		v := new(T)
		for i, val := range row.Values() {
			if err := e.set(v, q.Columns[i].Name, val); err != nil {
				return nil, err
			}
		}
		out = append(out, e.Loaded(v))
	}
	return out, nil
}

func (e *Entity[T]) set(v *T, col string, val any) error {
	i, ok := e.byCol[col]
	if !ok {
		return &dberr.UnknownColumnError{Table: e.table.Name, Column: col}
	}
	return e.fields[i].Set(v, val)
}

func (e *Entity[T]) values(v *T) map[string]any {
	m := make(map[string]any, len(e.fields))
	for _, f := range e.fields {
		m[f.Column] = f.Get(v)
	}
	return m
}
