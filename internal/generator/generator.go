// Package generator renders planned schema operations as dialect DDL and
// packages them into versioned migration scripts.
package generator

import (
	"errors"
	"io"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/dialect"
	"github.com/koba/rowkit/internal/diff"
)

// Generator renders operations for one dialect.
type Generator struct {
	d       *dialect.Dialect
	now     func() time.Time
	entropy io.Reader
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock sets the clock used to version scripts.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithEntropy sets the random source of script versions.
func WithEntropy(r io.Reader) Option {
	return func(g *Generator) { g.entropy = r }
}

// New returns a Generator for d.
func New(d *dialect.Dialect, opts ...Option) *Generator {
	g := &Generator{d: d, now: time.Now, entropy: ulid.DefaultEntropy()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dialect returns the dialect the generator renders for.
func (g *Generator) Dialect() *dialect.Dialect { return g.d }

// Statements returns the DDL implementing op, without trailing semicolons.
// A foreign key dropped together with its table needs no statement in
// dialects without named constraint drops. Operations the dialect cannot
// express fail with a *dberr.UnsupportedOperationError.
func (g *Generator) Statements(op diff.Operation) ([]string, error) {
	var stmt string
	var err error
	switch op.Kind {
	case diff.CreateTable:
		stmt, err = g.createTable(op.Def)
	case diff.DropTable:
		stmt = "DROP TABLE " + g.d.Quote(op.Table)
	case diff.AddColumn:
		stmt, err = g.addColumn(op.Table, *op.Column)
	case diff.DropColumn:
		stmt = "ALTER TABLE " + g.d.Quote(op.Table) + " DROP COLUMN " + g.d.Quote(op.Old.Name)
	case diff.AlterColumnType:
		stmt, err = g.alterType(op.Table, *op.Column)
	case diff.AlterColumnNullability:
		stmt, err = g.alterNullability(op.Table, *op.Column)
	case diff.AddForeignKey:
		if g.d.Kind() == dialect.SQLite {
			return nil, g.unsupported(op)
		}
		stmt = "ALTER TABLE " + g.d.Quote(op.Table) + " ADD " + g.foreignKey(op.Table, *op.ForeignKey)
	case diff.DropForeignKey:
		if g.d.Kind() == dialect.SQLite {
			if op.TableDropped {
				return nil, nil
			}
			return nil, g.unsupported(op)
		}
		stmt = g.dropForeignKey(op.Table, *op.ForeignKey)
	case diff.AddIndex:
		stmt = g.createIndex(op.Table, *op.Index)
	case diff.DropIndex:
		stmt = g.dropIndex(op.Table, op.Index.Name)
	default:
		return nil, dberr.InvalidArgument("operation", "unknown kind %s", op.Kind)
	}
	if errors.Is(err, errUnsupported) {
		return nil, g.unsupported(op)
	}
	if err != nil {
		return nil, err
	}
	return []string{stmt}, nil
}

// Inverse returns the operation undoing op. Dropped tables and columns
// cannot be restored with their data, so their inverse is reported as
// missing.
func (g *Generator) Inverse(op diff.Operation) (diff.Operation, bool) {
	inv := diff.Operation{Table: op.Table}
	switch op.Kind {
	case diff.CreateTable:
		inv.Kind, inv.Def = diff.DropTable, op.Def
	case diff.AddColumn:
		inv.Kind, inv.Old = diff.DropColumn, op.Column
	case diff.AlterColumnType, diff.AlterColumnNullability:
		inv.Kind, inv.Column, inv.Old = op.Kind, op.Old, op.Column
	case diff.AddForeignKey:
		fk := *op.ForeignKey
		fk.Name = foreignKeyName(op.Table, fk)
		inv.Kind, inv.ForeignKey = diff.DropForeignKey, &fk
	case diff.DropForeignKey:
		if op.TableDropped {
			return diff.Operation{}, false
		}
		inv.Kind, inv.ForeignKey = diff.AddForeignKey, op.ForeignKey
	case diff.AddIndex:
		inv.Kind, inv.Index = diff.DropIndex, op.Index
	case diff.DropIndex:
		inv.Kind, inv.Index = diff.AddIndex, op.Index
	default:
		return diff.Operation{}, false
	}
	return inv, true
}

func (g *Generator) unsupported(op diff.Operation) error {
	return &dberr.UnsupportedOperationError{Dialect: g.d.Name(), Operation: op.Kind.String()}
}
