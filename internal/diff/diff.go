// Package diff compares a declared schema with a live one and plans the
// ordered operations that migrate the live schema to the declared shape.
package diff

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/dialect"
	"github.com/koba/rowkit/internal/schema"
)

// Option configures Diff.
type Option func(*options)

type options struct {
	exclude    map[string]bool
	allowExtra bool
	onExtra    func(Extra)
}

// Exclude leaves the named tables out of the comparison on both sides.
func Exclude(tables ...string) Option {
	return func(o *options) {
		for _, t := range tables {
			o.exclude[t] = true
		}
	}
}

// AllowExtra keeps live tables, columns and indexes the declared schema does
// not define instead of planning their removal.
func AllowExtra() Option {
	return func(o *options) { o.allowExtra = true }
}

// OnExtra registers fn to receive every live object kept by AllowExtra.
func OnExtra(fn func(Extra)) Option {
	return func(o *options) { o.onExtra = fn }
}

func (o *options) extra(e Extra) {
	if o.onExtra != nil {
		o.onExtra(e)
	}
}

// typeEq reports whether a declared column type and a live one are stored
// the same way.
type typeEq func(declared, live schema.Type) (bool, error)

// Diff plans the operations that turn live into declared. Column types are
// compared by their native form in d, so logical types that d stores
// identically never produce an AlterColumnType. Foreign keys are matched by
// their local and referenced columns, indexes by name.
//
// Operations are ordered so that foreign keys and indexes are dropped before
// the columns and tables they use, tables are created after the tables they
// reference, and foreign keys are added last. Tables to be created that
// reference each other fail with a *dberr.CyclicDependencyError.
func Diff(d *dialect.Dialect, declared, live *schema.Schema, opts ...Option) ([]Operation, error) {
	if d == nil {
		return nil, dberr.InvalidArgument("dialect", "nil dialect")
	}
	native := func(declared, live schema.Type) (bool, error) {
		x, err := d.NativeType(declared)
		if err != nil {
			return false, err
		}
		y, err := d.NativeType(live)
		if err != nil {
			return false, err
		}
		return strings.EqualFold(x, y), nil
	}
	return plan(declared, live, native, opts)
}

// Compare plans the operations that turn schema a into schema b. Column
// types are compared logically, so two snapshots of different backends can
// be compared.
func Compare(a, b *schema.Schema) ([]Operation, error) {
	logical := func(x, y schema.Type) (bool, error) { return x == y, nil }
	return plan(b, a, logical, nil)
}

func plan(declared, live *schema.Schema, same typeEq, opts []Option) ([]Operation, error) {
	o := &options{exclude: map[string]bool{}}
	for _, opt := range opts {
		opt(o)
	}

	var ops []Operation
	var created []*schema.Table
	for _, t := range tables(declared) {
		if o.exclude[t.Name] {
			continue
		}
		lt := live.Table(t.Name)
		if lt == nil {
			created = append(created, t)
			continue
		}
		tops, err := diffTable(t, lt, same, o)
		if err != nil {
			return nil, err
		}
		ops = append(ops, tops...)
	}

	if len(created) > 0 {
		sorted, err := (&schema.Schema{Tables: created}).Sorted()
		if err != nil {
			return nil, err
		}
		grown := map[string]bool{}
		for _, op := range ops {
			if op.Kind == AddColumn || op.Kind == AddIndex {
				grown[op.Table] = true
			}
		}
		for _, t := range sorted {
			def, deferred := splitForeignKeys(t, grown)
			ops = append(ops, Operation{Kind: CreateTable, Table: t.Name, Def: def})
			for i := range deferred {
				ops = append(ops, Operation{Kind: AddForeignKey, Table: t.Name, ForeignKey: &deferred[i]})
			}
			for i := range t.Indexes {
				if !t.Indexes[i].Primary {
					ops = append(ops, Operation{Kind: AddIndex, Table: t.Name, Index: &t.Indexes[i]})
				}
			}
		}
	}

	dropped := slices.Clone(tables(live))
	sort.SliceStable(dropped, func(i, j int) bool { return dropped[i].Name < dropped[j].Name })
	for _, lt := range dropped {
		if o.exclude[lt.Name] || declared.Table(lt.Name) != nil {
			continue
		}
		if o.allowExtra {
			o.extra(Extra{Table: lt.Name})
			continue
		}
		for i := range lt.ForeignKeys {
			ops = append(ops, Operation{Kind: DropForeignKey, Table: lt.Name, ForeignKey: &lt.ForeignKeys[i], TableDropped: true})
		}
		ops = append(ops, Operation{Kind: DropTable, Table: lt.Name, Def: lt})
	}

	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Kind.phase() < ops[j].Kind.phase() })
	return ops, nil
}

// splitForeignKeys moves the foreign keys of t that reference a table in
// grown out of its definition. Those targets gain their referenced column or
// unique index after CreateTable runs, so the keys are added separately.
func splitForeignKeys(t *schema.Table, grown map[string]bool) (*schema.Table, []schema.ForeignKey) {
	var inline, deferred []schema.ForeignKey
	for _, fk := range t.ForeignKeys {
		if grown[fk.RefTable] && fk.RefTable != t.Name {
			deferred = append(deferred, fk)
			continue
		}
		inline = append(inline, fk)
	}
	if len(deferred) == 0 {
		return t, nil
	}
	def := *t
	def.ForeignKeys = inline
	return &def, deferred
}

func diffTable(decl, live *schema.Table, same typeEq, o *options) ([]Operation, error) {
	var ops []Operation
	for i := range decl.Columns {
		c := &decl.Columns[i]
		lc := column(live, c.Name)
		if lc == nil {
			ops = append(ops, Operation{Kind: AddColumn, Table: decl.Name, Column: c})
			continue
		}
		eq, err := same(c.Type, lc.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s.%s: %w", decl.Name, c.Name, err)
		}
		if !eq {
			ops = append(ops, Operation{Kind: AlterColumnType, Table: decl.Name, Column: c, Old: lc})
		}
		if c.Nullable != lc.Nullable {
			ops = append(ops, Operation{Kind: AlterColumnNullability, Table: decl.Name, Column: c, Old: lc})
		}
	}
	for i := range live.Columns {
		lc := &live.Columns[i]
		if decl.HasColumn(lc.Name) {
			continue
		}
		if o.allowExtra {
			o.extra(Extra{Table: live.Name, Column: lc.Name})
			continue
		}
		ops = append(ops, Operation{Kind: DropColumn, Table: live.Name, Old: lc})
	}

	for i := range decl.ForeignKeys {
		fk := &decl.ForeignKeys[i]
		lfk := foreignKey(live, fk.Key())
		if lfk != nil && fk.SameActions(*lfk) {
			continue
		}
		if lfk != nil {
			ops = append(ops, Operation{Kind: DropForeignKey, Table: live.Name, ForeignKey: lfk})
		}
		ops = append(ops, Operation{Kind: AddForeignKey, Table: decl.Name, ForeignKey: fk})
	}
	for i := range live.ForeignKeys {
		lfk := &live.ForeignKeys[i]
		if _, ok := decl.ForeignKey(lfk.Key()); ok {
			continue
		}
		if o.allowExtra && onExtraColumn(decl, lfk.Columns) {
			continue
		}
		ops = append(ops, Operation{Kind: DropForeignKey, Table: live.Name, ForeignKey: lfk})
	}

	for i := range decl.Indexes {
		idx := &decl.Indexes[i]
		if idx.Primary {
			continue
		}
		li := index(live, idx.Name)
		if li != nil && li.Unique == idx.Unique && slices.Equal(li.Columns, idx.Columns) {
			continue
		}
		if li != nil {
			ops = append(ops, Operation{Kind: DropIndex, Table: live.Name, Index: li})
		}
		ops = append(ops, Operation{Kind: AddIndex, Table: decl.Name, Index: idx})
	}
	for i := range live.Indexes {
		li := &live.Indexes[i]
		if li.Primary {
			continue
		}
		if _, ok := decl.Index(li.Name); ok {
			continue
		}
		if o.allowExtra {
			o.extra(Extra{Table: live.Name, Index: li.Name})
			continue
		}
		ops = append(ops, Operation{Kind: DropIndex, Table: live.Name, Index: li})
	}
	return ops, nil
}

func tables(s *schema.Schema) []*schema.Table {
	if s == nil {
		return nil
	}
	return s.Tables
}

func column(t *schema.Table, name string) *schema.Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

func foreignKey(t *schema.Table, key string) *schema.ForeignKey {
	for i := range t.ForeignKeys {
		if t.ForeignKeys[i].Key() == key {
			return &t.ForeignKeys[i]
		}
	}
	return nil
}

func index(t *schema.Table, name string) *schema.Index {
	for i := range t.Indexes {
		if t.Indexes[i].Name == name {
			return &t.Indexes[i]
		}
	}
	return nil
}

// onExtraColumn reports whether any of cols is missing from the declared table.
func onExtraColumn(decl *schema.Table, cols []string) bool {
	for _, c := range cols {
		if !decl.HasColumn(c) {
			return true
		}
	}
	return false
}
