package query

import (
	"errors"
	"fmt"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/schema"
)

// Builder assembles a SELECT or DELETE incrementally. Misuse is recorded
// and reported by Build; Err reports it early.
//
//	q, err := query.Select(users).
//		Join(posts).
//		Where(query.GT("users.age", 18)).
//		OrderByDesc("posts.created_at").
//		Limit(10).
//		Build()
type Builder struct {
	q    Query
	errs []error
}

// Select starts a SELECT from t.
func Select(t *schema.Table) *Builder {
	return newBuilder(SelectKind, t)
}

// DeleteFrom starts a bulk DELETE from t. Build requires a filter.
func DeleteFrom(t *schema.Table) *Builder {
	return newBuilder(DeleteKind, t)
}

func newBuilder(kind Kind, t *schema.Table) *Builder {
	b := &Builder{q: Query{Kind: kind, Table: t}}
	if t == nil {
		b.errs = append(b.errs, dberr.InvalidArgument("table", "nil table"))
	}
	return b
}

// Schema qualifies the main table and every joined table with a schema name.
func (b *Builder) Schema(name string) *Builder {
	b.q.Schema = name
	return b
}

// Columns sets the select list. Without it every column of every table in
// scope is selected.
func (b *Builder) Columns(refs ...string) *Builder {
	for _, ref := range refs {
		b.addColumn(C(ref))
	}
	return b
}

// Aggregates appends aggregate expressions such as Count("*") to the select list.
func (b *Builder) Aggregates(cols ...Column) *Builder {
	for _, c := range cols {
		b.addColumn(c)
	}
	return b
}

func (b *Builder) addColumn(c Column) {
	resolved, err := b.resolve(c)
	if err != nil {
		b.errs = append(b.errs, err)
		return
	}
	b.q.Columns = append(b.q.Columns, resolved)
}

// Where adds f, AND-combined with the filters already added.
func (b *Builder) Where(fs ...Filter) *Builder {
	b.q.Where = And(append([]Filter{b.q.Where}, fs...)...)
	return b
}

// OrWhere OR-combines f with the filters already added.
func (b *Builder) OrWhere(fs ...Filter) *Builder {
	b.q.Where = Or(b.q.Where, And(fs...))
	return b
}

// Join inner-joins t. The join predicate follows the foreign keys between
// t and the tables already in scope.
func (b *Builder) Join(t *schema.Table) *Builder {
	return b.join(InnerJoin, t)
}

// LeftJoin left-joins t. See Join.
func (b *Builder) LeftJoin(t *schema.Table) *Builder {
	return b.join(LeftJoin, t)
}

func (b *Builder) join(kind JoinKind, t *schema.Table) *Builder {
	if b.q.Table == nil {
		return b
	}
	if t == nil {
		b.errs = append(b.errs, dberr.InvalidArgument("join", "nil table"))
		return b
	}
	for _, in := range b.q.Scope() {
		if in.Name == t.Name {
			b.errs = append(b.errs, &dberr.UnknownTableError{Table: t.Name, Reason: "already in scope"})
			return b
		}
	}
	on, ok := b.relate(t)
	if !ok {
		b.errs = append(b.errs, &dberr.UnknownTableError{Table: t.Name, Reason: "no foreign key relates it to the query's tables"})
		return b
	}
	b.q.Joins = append(b.q.Joins, Join{Kind: kind, Table: t, On: on})
	return b
}

// relate finds the first foreign key, in scope order, linking t to a table
// already in scope, in either direction.
func (b *Builder) relate(t *schema.Table) ([]On, bool) {
	for _, in := range b.q.Scope() {
		for _, fk := range in.ForeignKeys {
			if fk.RefTable == t.Name {
				return pairs(in.Name, fk.Columns, t.Name, fk.RefColumns), true
			}
		}
		for _, fk := range t.ForeignKeys {
			if fk.RefTable == in.Name {
				return pairs(t.Name, fk.Columns, in.Name, fk.RefColumns), true
			}
		}
	}
	return nil, false
}

func pairs(from string, cols []string, to string, refs []string) []On {
	on := make([]On, len(cols))
	for i := range cols {
		on[i] = On{Left: Column{Table: from, Name: cols[i]}, Right: Column{Table: to, Name: refs[i]}}
	}
	return on
}

// OrderBy appends ascending ordering terms.
func (b *Builder) OrderBy(refs ...string) *Builder {
	for _, ref := range refs {
		b.order(ref, false)
	}
	return b
}

// OrderByDesc appends descending ordering terms.
func (b *Builder) OrderByDesc(refs ...string) *Builder {
	for _, ref := range refs {
		b.order(ref, true)
	}
	return b
}

func (b *Builder) order(ref string, desc bool) {
	c, err := b.resolve(C(ref))
	if err != nil {
		b.errs = append(b.errs, err)
		return
	}
	b.q.OrderBy = append(b.q.OrderBy, Order{Column: c, Desc: desc})
}

// GroupBy sets the grouping columns.
func (b *Builder) GroupBy(refs ...string) *Builder {
	for _, ref := range refs {
		c, err := b.resolve(C(ref))
		if err != nil {
			b.errs = append(b.errs, err)
			continue
		}
		b.q.GroupBy = append(b.q.GroupBy, c)
	}
	return b
}

// Having adds a filter on groups, AND-combined with earlier ones.
func (b *Builder) Having(fs ...Filter) *Builder {
	b.q.Having = And(append([]Filter{b.q.Having}, fs...)...)
	return b
}

// Limit caps the number of rows. It must not be negative.
func (b *Builder) Limit(n int) *Builder {
	if n < 0 {
		b.errs = append(b.errs, dberr.InvalidArgument("limit", "must not be negative, got %d", n))
		return b
	}
	b.q.Limit = &n
	return b
}

// Offset skips rows. It must not be negative.
func (b *Builder) Offset(n int) *Builder {
	if n < 0 {
		b.errs = append(b.errs, dberr.InvalidArgument("offset", "must not be negative, got %d", n))
		return b
	}
	b.q.Offset = &n
	return b
}

// Err returns the errors recorded so far, joined.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// Build validates the query and returns it. Filter columns are resolved
// against the tables in scope here, so filters may name joined tables
// regardless of call order.
func (b *Builder) Build() (*Query, error) {
	errs := append([]error(nil), b.errs...)
	q := b.q
	if q.Table == nil {
		return nil, errors.Join(errs...)
	}
	where, err := mapColumns(q.Where, b.resolve)
	if err != nil {
		errs = append(errs, err)
	}
	q.Where = where
	having, err := mapColumns(q.Having, b.resolve)
	if err != nil {
		errs = append(errs, err)
	}
	q.Having = having
	if q.Kind == DeleteKind {
		if q.Where == nil {
			errs = append(errs, dberr.InvalidArgument("delete", "a bulk delete needs a filter"))
		}
		if len(q.Joins) > 0 || len(q.OrderBy) > 0 || len(q.GroupBy) > 0 || q.Limit != nil || q.Offset != nil || len(q.Columns) > 0 {
			errs = append(errs, dberr.InvalidArgument("delete", "only filters apply to a delete"))
		}
	}
	if q.Having != nil && len(q.GroupBy) == 0 {
		errs = append(errs, dberr.InvalidArgument("having", "requires a group by"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	q.Columns = append([]Column(nil), q.Columns...)
	q.Joins = append([]Join(nil), q.Joins...)
	q.OrderBy = append([]Order(nil), q.OrderBy...)
	q.GroupBy = append([]Column(nil), q.GroupBy...)
	return &q, nil
}

// MustBuild is like Build but panics on error. It is meant for queries
// fixed at compile time.
func (b *Builder) MustBuild() *Query {
	q, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("query: %v", err))
	}
	return q
}

// resolve qualifies c with the table in scope that defines it. A qualified
// reference must name a table in scope. An unqualified one resolves to the
// first table in scope order that has the column.
func (b *Builder) resolve(c Column) (Column, error) {
	if b.q.Table == nil || (c.IsStar() && c.Func != "") {
		return c, nil
	}
	scope := b.q.Scope()
	if c.Table != "" {
		for _, t := range scope {
			if t.Name == c.Table {
				if !t.HasColumn(c.Name) {
					return c, &dberr.UnknownColumnError{Table: t.Name, Column: c.Name}
				}
				return c, nil
			}
		}
		return c, &dberr.UnknownColumnError{Table: c.Table, Column: c.Name}
	}
	for _, t := range scope {
		if t.HasColumn(c.Name) {
			c.Table = t.Name
			return c, nil
		}
	}
	return c, &dberr.UnknownColumnError{Column: c.Name}
}
