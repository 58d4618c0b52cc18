// Package render turns query ASTs into dialect SQL and bind arguments.
//
// Rendering is a pure function of the dialect and the query: the same input
// always yields byte-identical SQL and the same argument order. Values are
// always bound as parameters. Identifiers are always quoted.
package render

import (
	"reflect"
	"strings"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/dialect"
	"github.com/koba/rowkit/internal/query"
	"github.com/koba/rowkit/internal/schema"
)

// Statement is rendered SQL with its arguments in placeholder order.
type Statement struct {
	SQL  string
	Args []any
}

func (s Statement) String() string { return s.SQL }

// Render renders q for dialect d.
func Render(d *dialect.Dialect, q *query.Query) (Statement, error) {
	if q == nil || q.Table == nil {
		return Statement{}, dberr.InvalidArgument("query", "no table")
	}
	r := &renderer{d: d, q: q, qualify: len(q.Joins) > 0}
	var err error
	switch q.Kind {
	case query.SelectKind:
		err = r.selectStmt()
	case query.InsertKind:
		err = r.insertStmt()
	case query.UpdateKind:
		if q.Values.Empty() {
			return Statement{}, dberr.ErrNoOp
		}
		err = r.updateStmt()
	case query.DeleteKind:
		err = r.deleteStmt()
	default:
		err = dberr.InvalidArgument("query", "unknown statement kind %d", q.Kind)
	}
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: r.b.String(), Args: r.args}, nil
}

// Select renders a SELECT built by query.Select.
func Select(d *dialect.Dialect, q *query.Query) (Statement, error) {
	if q == nil || q.Kind != query.SelectKind {
		return Statement{}, dberr.InvalidArgument("query", "not a select")
	}
	return Render(d, q)
}

// Insert renders an INSERT of cs into t. An empty changeset inserts a row of
// defaults. Primary key columns are handed back when the dialect can.
func Insert(d *dialect.Dialect, t *schema.Table, cs query.Changeset) (Statement, error) {
	q, err := query.Insert(t, cs)
	if err != nil {
		return Statement{}, err
	}
	return Render(d, q)
}

// Update renders an UPDATE of cs on the row identified by key. An empty
// changeset returns dberr.ErrNoOp and an empty Statement.
func Update(d *dialect.Dialect, t *schema.Table, cs query.Changeset, key map[string]any) (Statement, error) {
	q, err := query.Update(t, cs, key)
	if err != nil {
		return Statement{}, err
	}
	return Render(d, q)
}

// Delete renders a DELETE of the row identified by key.
func Delete(d *dialect.Dialect, t *schema.Table, key map[string]any) (Statement, error) {
	q, err := query.DeleteByKey(t, key)
	if err != nil {
		return Statement{}, err
	}
	return Render(d, q)
}

type renderer struct {
	d       *dialect.Dialect
	q       *query.Query
	b       strings.Builder
	args    []any
	qualify bool
}

func (r *renderer) write(parts ...string) {
	for _, p := range parts {
		r.b.WriteString(p)
	}
}

func (r *renderer) bind(v any) string {
	r.args = append(r.args, v)
	return r.d.Placeholder(len(r.args))
}

func (r *renderer) table() string {
	return r.d.QuoteTable(r.q.Schema, r.q.Table.Name)
}

func (r *renderer) column(c query.Column) string {
	var s string
	switch {
	case c.IsStar():
		s = "*"
	case r.qualify && c.Table != "":
		s = r.d.Quote(c.Table) + "." + r.d.Quote(c.Name)
	case r.qualify:
		s = r.d.Quote(r.q.Table.Name) + "." + r.d.Quote(c.Name)
	default:
		s = r.d.Quote(c.Name)
	}
	if c.Func != "" {
		s = c.Func + "(" + s + ")"
	}
	return s
}

func (r *renderer) selectStmt() error {
	q := r.q
	r.write("SELECT ", r.d.Top(q.Limit))
	cols := q.Columns
	if len(cols) == 0 {
		for _, t := range q.Scope() {
			for _, c := range t.Columns {
				cols = append(cols, query.Column{Table: t.Name, Name: c.Name})
			}
		}
	}
	for i, c := range cols {
		if i > 0 {
			r.write(", ")
		}
		r.write(r.column(c))
	}
	r.write(" FROM ", r.table())
	for _, j := range q.Joins {
		r.write(" ", string(j.Kind), " ", r.d.QuoteTable(r.q.Schema, j.Table.Name), " ON ")
		for i, on := range j.On {
			if i > 0 {
				r.write(" AND ")
			}
			r.write(r.column(on.Left), " = ", r.column(on.Right))
		}
	}
	if q.Where != nil {
		r.write(" WHERE ")
		if err := r.filter(q.Where, false); err != nil {
			return err
		}
	}
	if len(q.GroupBy) > 0 {
		r.write(" GROUP BY ")
		for i, c := range q.GroupBy {
			if i > 0 {
				r.write(", ")
			}
			r.write(r.column(c))
		}
	}
	if q.Having != nil {
		r.write(" HAVING ")
		if err := r.filter(q.Having, false); err != nil {
			return err
		}
	}
	paging := r.d.Paging(q.Limit, q.Offset)
	if len(q.OrderBy) > 0 {
		r.write(" ORDER BY ")
		for i, o := range q.OrderBy {
			if i > 0 {
				r.write(", ")
			}
			r.write(r.column(o.Column))
			if o.Desc {
				r.write(" DESC")
			}
		}
	} else if paging != "" && r.d.PagingNeedsOrder() {
		r.write(" ORDER BY (SELECT NULL)")
	}
	if paging != "" {
		r.write(" ", paging)
	}
	return nil
}

func (r *renderer) insertStmt() error {
	q := r.q
	r.write("INSERT INTO ", r.table())
	output := ""
	if len(q.Returning) > 0 && r.d.Returning() == dialect.ReturningOutput {
		parts := make([]string, len(q.Returning))
		for i, c := range q.Returning {
			parts[i] = "INSERTED." + r.d.Quote(c)
		}
		output = " OUTPUT " + strings.Join(parts, ", ")
	}
	if q.Values.Empty() {
		if r.d.Kind() == dialect.MySQL {
			r.write(" ", r.d.DefaultValues())
		} else {
			r.write(output, " ", r.d.DefaultValues())
		}
	} else {
		r.write(" (", r.d.QuoteAll(q.Values.Columns()), ")", output, " VALUES (")
		for i, ch := range q.Values {
			if i > 0 {
				r.write(", ")
			}
			r.write(r.bind(ch.Value))
		}
		r.write(")")
	}
	if len(q.Returning) > 0 && r.d.Returning() == dialect.ReturningClause {
		r.write(" RETURNING ", r.d.QuoteAll(q.Returning))
	}
	return nil
}

func (r *renderer) updateStmt() error {
	q := r.q
	if q.Where == nil {
		return dberr.InvalidArgument("update", "no row filter")
	}
	r.write("UPDATE ", r.table(), " SET ")
	for i, ch := range q.Values {
		if i > 0 {
			r.write(", ")
		}
		r.write(r.d.Quote(ch.Column), " = ", r.bind(ch.Value))
	}
	r.write(" WHERE ")
	return r.filter(q.Where, false)
}

func (r *renderer) deleteStmt() error {
	q := r.q
	if q.Where == nil {
		return dberr.InvalidArgument("delete", "no row filter")
	}
	r.write("DELETE FROM ", r.table(), " WHERE ")
	return r.filter(q.Where, false)
}

// filter renders f. Nested groups are parenthesized; nested reports whether
// f sits inside another group.
func (r *renderer) filter(f query.Filter, nested bool) error {
	switch f := f.(type) {
	case *query.Compare:
		return r.compare(f)
	case *query.NullCheck:
		r.write(r.column(f.Column), " IS ")
		if f.Negate {
			r.write("NOT ")
		}
		r.write("NULL")
	case *query.InList:
		values := flatten(f.Values)
		if len(values) == 0 {
			if f.Negate {
				r.write("1 = 1")
			} else {
				r.write("1 = 0")
			}
			return nil
		}
		r.write(r.column(f.Column))
		if f.Negate {
			r.write(" NOT")
		}
		r.write(" IN (")
		for i, v := range values {
			if i > 0 {
				r.write(", ")
			}
			r.write(r.bind(v))
		}
		r.write(")")
	case *query.Negation:
		r.write("NOT (")
		if err := r.filter(f.Filter, false); err != nil {
			return err
		}
		r.write(")")
	case *query.Logic:
		if nested {
			r.write("(")
		}
		for i, c := range f.Children {
			if i > 0 {
				r.write(" ", string(f.Op), " ")
			}
			if err := r.filter(c, true); err != nil {
				return err
			}
		}
		if nested {
			r.write(")")
		}
	case nil:
		return dberr.InvalidArgument("filter", "nil filter node")
	default:
		return dberr.InvalidArgument("filter", "unsupported node %T", f)
	}
	return nil
}

func (r *renderer) compare(c *query.Compare) error {
	switch c.Op {
	case query.OpEQ, query.OpNEQ:
		if c.Value == nil {
			r.write(r.column(c.Column), " IS ")
			if c.Op == query.OpNEQ {
				r.write("NOT ")
			}
			r.write("NULL")
			return nil
		}
	case query.OpGT, query.OpGTE, query.OpLT, query.OpLTE, query.OpLike, query.OpNotLike:
		if c.Value == nil {
			return dberr.InvalidArgument("filter", "operator %s cannot compare with NULL", c.Op)
		}
	default:
		return dberr.InvalidArgument("filter", "unknown operator %q", string(c.Op))
	}
	r.write(r.column(c.Column), " ", string(c.Op), " ", r.bind(c.Value))
	return nil
}

// flatten expands a single slice argument, so In("id", ids) behaves like
// In("id", ids...). Byte slices are values, not lists.
func flatten(vs []any) []any {
	if len(vs) != 1 {
		return vs
	}
	rv := reflect.ValueOf(vs[0])
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return vs
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// Placeholders returns n placeholders starting at position from, joined
// with ", ". It serves callers that assemble catalog queries by hand.
func Placeholders(d *dialect.Dialect, from, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = d.Placeholder(from + i)
	}
	return strings.Join(parts, ", ")
}
