package query

import (
	"strings"
)

// Op is a comparison operator.
type Op string

// Comparison operators.
const (
	OpEQ      Op = "="
	OpNEQ     Op = "<>"
	OpGT      Op = ">"
	OpGTE     Op = ">="
	OpLT      Op = "<"
	OpLTE     Op = "<="
	OpLike    Op = "LIKE"
	OpNotLike Op = "NOT LIKE"
)

// Column references a column, optionally qualified by its table and wrapped
// in an aggregate function.
type Column struct {
	Table string
	Name  string
	// Func is an aggregate such as COUNT or SUM; empty for a plain column.
	Func string
}

// C parses a column reference, either "name" or "table.name".
func C(ref string) Column {
	if i := strings.LastIndexByte(ref, '.'); i > 0 {
		return Column{Table: ref[:i], Name: ref[i+1:]}
	}
	return Column{Name: ref}
}

// Count returns COUNT(ref). Count("*") counts rows.
func Count(ref string) Column { return aggregate("COUNT", ref) }

// Sum returns SUM(ref).
func Sum(ref string) Column { return aggregate("SUM", ref) }

// Avg returns AVG(ref).
func Avg(ref string) Column { return aggregate("AVG", ref) }

// Min returns MIN(ref).
func Min(ref string) Column { return aggregate("MIN", ref) }

// Max returns MAX(ref).
func Max(ref string) Column { return aggregate("MAX", ref) }

func aggregate(fn, ref string) Column {
	c := C(ref)
	c.Func = fn
	return c
}

// IsStar reports whether the column is the "*" of COUNT(*).
func (c Column) IsStar() bool { return c.Name == "*" }

func (c Column) String() string {
	s := c.Name
	if c.Table != "" {
		s = c.Table + "." + s
	}
	if c.Func != "" {
		s = c.Func + "(" + s + ")"
	}
	return s
}

// Filter is a predicate node. The set of node types is closed: *Compare,
// *Logic, *Negation, *InList and *NullCheck.
type Filter interface {
	filter()
}

// Compare is "<column> <op> <value>".
type Compare struct {
	Column Column
	Op     Op
	Value  any
}

// LogicOp combines child filters.
type LogicOp string

// Logical combinators.
const (
	AndOp LogicOp = "AND"
	OrOp  LogicOp = "OR"
)

// Logic joins its children with AND or OR.
type Logic struct {
	Op       LogicOp
	Children []Filter
}

// Negation is NOT applied to a filter.
type Negation struct {
	Filter Filter
}

// InList is "<column> [NOT] IN (<values>)".
type InList struct {
	Column Column
	Values []any
	Negate bool
}

// NullCheck is "<column> IS [NOT] NULL".
type NullCheck struct {
	Column Column
	Negate bool
}

func (*Compare) filter()   {}
func (*Logic) filter()     {}
func (*Negation) filter()  {}
func (*InList) filter()    {}
func (*NullCheck) filter() {}

// Cmp compares an arbitrary column expression, e.g. Cmp(Count("*"), OpGT, 5).
func Cmp(c Column, op Op, v any) Filter {
	return &Compare{Column: c, Op: op, Value: v}
}

// EQ returns "col = v". A nil v yields "col IS NULL".
func EQ(col string, v any) Filter {
	if v == nil {
		return IsNull(col)
	}
	return Cmp(C(col), OpEQ, v)
}

// NEQ returns "col <> v". A nil v yields "col IS NOT NULL".
func NEQ(col string, v any) Filter {
	if v == nil {
		return NotNull(col)
	}
	return Cmp(C(col), OpNEQ, v)
}

// GT returns "col > v".
func GT(col string, v any) Filter { return Cmp(C(col), OpGT, v) }

// GTE returns "col >= v".
func GTE(col string, v any) Filter { return Cmp(C(col), OpGTE, v) }

// LT returns "col < v".
func LT(col string, v any) Filter { return Cmp(C(col), OpLT, v) }

// LTE returns "col <= v".
func LTE(col string, v any) Filter { return Cmp(C(col), OpLTE, v) }

// Like returns "col LIKE pattern".
func Like(col, pattern string) Filter { return Cmp(C(col), OpLike, pattern) }

// NotLike returns "col NOT LIKE pattern".
func NotLike(col, pattern string) Filter { return Cmp(C(col), OpNotLike, pattern) }

// In returns "col IN (vs...)". An empty list matches nothing.
func In(col string, vs ...any) Filter {
	return &InList{Column: C(col), Values: vs}
}

// NotIn returns "col NOT IN (vs...)". An empty list matches everything.
func NotIn(col string, vs ...any) Filter {
	return &InList{Column: C(col), Values: vs, Negate: true}
}

// IsNull returns "col IS NULL".
func IsNull(col string) Filter { return &NullCheck{Column: C(col)} }

// NotNull returns "col IS NOT NULL".
func NotNull(col string) Filter { return &NullCheck{Column: C(col), Negate: true} }

// And combines filters with AND. Nil filters are skipped and a single
// filter is returned as is.
func And(fs ...Filter) Filter { return logic(AndOp, fs) }

// Or combines filters with OR. Nil filters are skipped and a single filter
// is returned as is.
func Or(fs ...Filter) Filter { return logic(OrOp, fs) }

func logic(op LogicOp, fs []Filter) Filter {
	children := make([]Filter, 0, len(fs))
	for _, f := range fs {
		if f != nil {
			children = append(children, f)
		}
	}
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	}
	return &Logic{Op: op, Children: children}
}

// Not negates f.
func Not(f Filter) Filter { return &Negation{Filter: f} }

// Walk calls fn for every node of f in pre-order, left to right.
func Walk(f Filter, fn func(Filter)) {
	if f == nil {
		return
	}
	fn(f)
	switch f := f.(type) {
	case *Logic:
		for _, c := range f.Children {
			Walk(c, fn)
		}
	case *Negation:
		Walk(f.Filter, fn)
	}
}

// Columns returns the columns f references, in pre-order.
func Columns(f Filter) []Column {
	var cols []Column
	Walk(f, func(n Filter) {
		switch n := n.(type) {
		case *Compare:
			cols = append(cols, n.Column)
		case *InList:
			cols = append(cols, n.Column)
		case *NullCheck:
			cols = append(cols, n.Column)
		}
	})
	return cols
}

// mapColumns returns a copy of f with every column passed through fn.
// The first error stops the copy.
func mapColumns(f Filter, fn func(Column) (Column, error)) (Filter, error) {
	switch f := f.(type) {
	case nil:
		return nil, nil
	case *Compare:
		c, err := fn(f.Column)
		if err != nil {
			return nil, err
		}
		return &Compare{Column: c, Op: f.Op, Value: f.Value}, nil
	case *InList:
		c, err := fn(f.Column)
		if err != nil {
			return nil, err
		}
		return &InList{Column: c, Values: f.Values, Negate: f.Negate}, nil
	case *NullCheck:
		c, err := fn(f.Column)
		if err != nil {
			return nil, err
		}
		return &NullCheck{Column: c, Negate: f.Negate}, nil
	case *Negation:
		inner, err := mapColumns(f.Filter, fn)
		if err != nil {
			return nil, err
		}
		return &Negation{Filter: inner}, nil
	case *Logic:
		children := make([]Filter, len(f.Children))
		for i, c := range f.Children {
			m, err := mapColumns(c, fn)
			if err != nil {
				return nil, err
			}
			children[i] = m
		}
		return &Logic{Op: f.Op, Children: children}, nil
	}
	return f, nil
}
