// Package introspect reads the structure of a live database from its
// catalog into a schema.Schema.
//
// Every dialect's catalog is queried with aliased result columns (column_name,
// column_type, index_name, referenced_table, ...), so one builder turns the
// rows of any dialect into tables.
package introspect

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/koba/rowkit/internal/database"
	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/dialect"
	"github.com/koba/rowkit/internal/schema"
)

// catalog produces the catalog queries of one dialect.
type catalog interface {
	// defaultSchema is used when no schema is given.
	defaultSchema() string
	listTables(schemaName string) database.Fetch
	// describe returns the columns, foreign keys and indexes queries of a
	// table, in that order.
	describe(schemaName, table string) []database.Fetch
}

var catalogs = map[dialect.Kind]catalog{
	dialect.Postgres: postgresCatalog{},
	dialect.MySQL:    mysqlCatalog{},
	dialect.MSSQL:    mssqlCatalog{},
	dialect.SQLite:   sqliteCatalog{},
}

type options struct {
	schema      string
	tables      []string
	concurrency int
	logger      zerolog.Logger
}

// Option configures Introspect.
type Option func(*options)

// WithSchema reads the named schema (database for MySQL) instead of the
// connection's default.
func WithSchema(name string) Option {
	return func(o *options) { o.schema = name }
}

// WithTables restricts introspection to the named tables. A name missing
// from the catalog fails with UnknownTable.
func WithTables(names ...string) Option {
	return func(o *options) { o.tables = append(o.tables, names...) }
}

// WithConcurrency sets how many tables are read at once. The default is 4.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger logs progress to l.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Introspect reads the current structure of the database behind conn. The
// result is a snapshot with tables ordered by name.
func Introspect(ctx context.Context, conn database.Conn, opts ...Option) (*schema.Schema, error) {
	o := options{concurrency: 4, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	d := conn.Dialect()
	if d == nil {
		return nil, &dberr.IntrospectionUnsupportedError{Dialect: "unknown"}
	}
	cat, ok := catalogs[d.Kind()]
	if !ok {
		return nil, &dberr.IntrospectionUnsupportedError{Dialect: d.Name()}
	}
	schemaName := o.schema
	if schemaName == "" {
		schemaName = cat.defaultSchema()
	}

	names := o.tables
	if len(names) == 0 {
		f := cat.listTables(schemaName)
		rows, err := conn.Query(ctx, f.SQL, f.Args...)
		if err != nil {
			return nil, dberr.Connection("introspect tables", err)
		}
		for _, r := range rows {
			names = append(names, r.String("table_name"))
		}
	}
	o.logger.Debug().Str("dialect", d.Name()).Str("schema", schemaName).Int("tables", len(names)).Msg("introspecting")

	tables := make([]*schema.Table, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, name := range names {
		g.Go(func() error {
			res, err := database.FetchAll(gctx, conn, cat.describe(schemaName, name)...)
			if err != nil {
				return dberr.Connection("introspect "+name, err)
			}
			t, err := buildTable(d, name, res)
			if err != nil {
				return err
			}
			o.logger.Debug().Str("table", name).Int("columns", len(t.Columns)).
				Int("foreign_keys", len(t.ForeignKeys)).Int("indexes", len(t.Indexes)).Msg("introspected table")
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })
	return &schema.Schema{Name: schemaName, Tables: tables}, nil
}

// buildTable assembles a table from the results of a catalog's describe
// queries.
func buildTable(d *dialect.Dialect, name string, res [][]database.Row) (*schema.Table, error) {
	if len(res) != 3 {
		return nil, fmt.Errorf("introspect %s: expected 3 catalog results, got %d", name, len(res))
	}
	if len(res[0]) == 0 {
		return nil, &dberr.UnknownTableError{Table: name, Reason: "not found in the catalog"}
	}
	t := &schema.Table{Name: name}
	for i, r := range res[0] {
		native := r.String("column_type")
		typ, err := d.ParseNativeType(native)
		if err != nil {
			return nil, fmt.Errorf("introspect %s.%s: %w", name, r.String("column_name"), err)
		}
		col := schema.Column{
			Name:          r.String("column_name"),
			Type:          typ,
			Nullable:      strings.EqualFold(r.String("is_nullable"), "YES"),
			PrimaryKey:    flag(r, "is_primary"),
			AutoIncrement: flag(r, "is_auto"),
			Position:      i + 1,
		}
		if v, ok := r.Get("column_default"); ok && !col.AutoIncrement {
			col.Default = database.AsNullString(v)
		}
		t.Columns = append(t.Columns, col)
	}

	fks := map[string]*schema.ForeignKey{}
	var fkOrder []string
	for _, r := range res[1] {
		cname := r.String("constraint_name")
		fk, ok := fks[cname]
		if !ok {
			fk = &schema.ForeignKey{
				Name:     cname,
				RefTable: r.String("referenced_table"),
				OnUpdate: strings.ToUpper(r.String("update_rule")),
				OnDelete: strings.ToUpper(r.String("delete_rule")),
			}
			fks[cname] = fk
			fkOrder = append(fkOrder, cname)
		}
		fk.Columns = append(fk.Columns, r.String("column_name"))
		fk.RefColumns = append(fk.RefColumns, r.String("referenced_column"))
	}
	for _, cname := range fkOrder {
		t.ForeignKeys = append(t.ForeignKeys, *fks[cname])
	}

	idx := map[string]*schema.Index{}
	var idxOrder []string
	for _, r := range res[2] {
		iname := r.String("index_name")
		// The primary key is a column flag; MySQL backs each foreign key
		// with an index of the same name.
		if flag(r, "is_primary") || fks[iname] != nil {
			continue
		}
		ix, ok := idx[iname]
		if !ok {
			ix = &schema.Index{Name: iname, Unique: flag(r, "is_unique")}
			idx[iname] = ix
			idxOrder = append(idxOrder, iname)
		}
		ix.Columns = append(ix.Columns, r.String("column_name"))
	}
	for _, iname := range idxOrder {
		t.Indexes = append(t.Indexes, *idx[iname])
	}
	return t, nil
}

func flag(r database.Row, col string) bool {
	v, _ := r.Get(col)
	return database.AsBool(v)
}
