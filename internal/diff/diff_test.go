package diff

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/dialect"
	"github.com/koba/rowkit/internal/schema"
)

func usersTable() *schema.Table {
	return &schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: schema.Text(100)},
		},
		Indexes: []schema.Index{{Name: "users_name_idx", Columns: []string{"name"}}},
	}
}

func postsTable() *schema.Table {
	return &schema.Table{
		Name: "posts",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
			{Name: "author_id", Type: schema.Int64},
			{Name: "title", Type: schema.Text(200)},
		},
		ForeignKeys: []schema.ForeignKey{{
			Name: "posts_author_fk", Columns: []string{"author_id"},
			RefTable: "users", RefColumns: []string{"id"}, OnDelete: "CASCADE",
		}},
	}
}

func kinds(ops []Operation) []OpKind {
	out := make([]OpKind, len(ops))
	for i, op := range ops {
		out[i] = op.Kind
	}
	return out
}

func TestDiffOfIdenticalSchemasIsEmpty(t *testing.T) {
	s := &schema.Schema{Tables: []*schema.Table{usersTable(), postsTable()}}
	for _, k := range dialect.Kinds {
		t.Run(k.String(), func(t *testing.T) {
			ops, err := Diff(dialect.For(k), s, s)
			require.NoError(t, err)
			assert.Empty(t, ops)
		})
	}
}

func TestDiffCreatesMissingTable(t *testing.T) {
	declared := &schema.Schema{Tables: []*schema.Table{{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int32, PrimaryKey: true},
			{Name: "name", Type: schema.Text(0)},
		},
	}}}

	ops, err := Diff(dialect.For(dialect.Postgres), declared, &schema.Schema{})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, CreateTable, ops[0].Kind)
	assert.Equal(t, "users", ops[0].Table)
	assert.Equal(t, []string{"id", "name"}, ops[0].Def.ColumnNames())
}

func TestDiffCreatesReferencedTablesFirst(t *testing.T) {
	declared := &schema.Schema{Tables: []*schema.Table{postsTable(), usersTable()}}

	ops, err := Diff(dialect.For(dialect.MySQL), declared, nil)
	require.NoError(t, err)
	assert.Equal(t, []OpKind{CreateTable, CreateTable, AddIndex}, kinds(ops))
	assert.Equal(t, "users", ops[0].Table)
	assert.Equal(t, "posts", ops[1].Table)
	assert.Equal(t, "users_name_idx", ops[2].Index.Name)
}

func TestDiffDropsForeignKeyBeforeTable(t *testing.T) {
	declared := &schema.Schema{Tables: []*schema.Table{usersTable()}}
	live := &schema.Schema{Tables: []*schema.Table{postsTable(), usersTable()}}

	ops, err := Diff(dialect.For(dialect.Postgres), declared, live)
	require.NoError(t, err)
	assert.Equal(t, []OpKind{DropForeignKey, DropTable}, kinds(ops))
	assert.Equal(t, "posts_author_fk", ops[0].ForeignKey.Name)
	assert.True(t, ops[0].TableDropped)
	assert.Equal(t, "posts", ops[1].Table)
}

func TestDiffDropsUndeclaredForeignKey(t *testing.T) {
	plain := postsTable()
	plain.ForeignKeys = nil
	declared := &schema.Schema{Tables: []*schema.Table{usersTable(), plain}}
	live := &schema.Schema{Tables: []*schema.Table{usersTable(), postsTable()}}

	ops, err := Diff(dialect.For(dialect.MSSQL), declared, live)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, DropForeignKey, ops[0].Kind)
	assert.False(t, ops[0].TableDropped)
}

func TestDiffReplacesForeignKeyWithNewActions(t *testing.T) {
	changed := postsTable()
	changed.ForeignKeys[0].OnDelete = "SET NULL"
	declared := &schema.Schema{Tables: []*schema.Table{usersTable(), changed}}
	live := &schema.Schema{Tables: []*schema.Table{usersTable(), postsTable()}}

	ops, err := Diff(dialect.For(dialect.Postgres), declared, live)
	require.NoError(t, err)
	assert.Equal(t, []OpKind{DropForeignKey, AddForeignKey}, kinds(ops))
	assert.Equal(t, "SET NULL", ops[1].ForeignKey.OnDelete)
}

func TestDiffAddsForeignKeyAfterCreatingItsTarget(t *testing.T) {
	plain := postsTable()
	plain.ForeignKeys = nil
	declared := &schema.Schema{Tables: []*schema.Table{postsTable(), usersTable()}}
	live := &schema.Schema{Tables: []*schema.Table{plain}}

	ops, err := Diff(dialect.For(dialect.Postgres), declared, live)
	require.NoError(t, err)
	assert.Equal(t, []OpKind{CreateTable, AddIndex, AddForeignKey}, kinds(ops))
}

func TestDiffAddsForeignKeyAfterGrowingItsTarget(t *testing.T) {
	grown := usersTable()
	grown.Columns = append(grown.Columns, schema.Column{Name: "code", Type: schema.Text(20)})
	grown.Indexes = append(grown.Indexes, schema.Index{Name: "users_code_key", Columns: []string{"code"}, Unique: true})
	invites := &schema.Table{
		Name: "invites",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
			{Name: "user_code", Type: schema.Text(20)},
		},
		ForeignKeys: []schema.ForeignKey{{
			Name: "invites_user_code_fk", Columns: []string{"user_code"},
			RefTable: "users", RefColumns: []string{"code"},
		}},
	}
	declared := &schema.Schema{Tables: []*schema.Table{invites, grown}}
	live := &schema.Schema{Tables: []*schema.Table{usersTable()}}

	ops, err := Diff(dialect.For(dialect.Postgres), declared, live)
	require.NoError(t, err)
	assert.Equal(t, []OpKind{CreateTable, AddColumn, AddIndex, AddForeignKey}, kinds(ops))
	assert.Empty(t, ops[0].Def.ForeignKeys)
	assert.Equal(t, "invites", ops[3].Table)
	assert.Equal(t, "invites_user_code_fk", ops[3].ForeignKey.Name)
	assert.Len(t, invites.ForeignKeys, 1, "declared table must not be modified")
}

func TestDiffKeepsForeignKeyInlineWhenTargetUnchanged(t *testing.T) {
	declared := &schema.Schema{Tables: []*schema.Table{postsTable(), usersTable()}}
	live := &schema.Schema{Tables: []*schema.Table{usersTable()}}

	ops, err := Diff(dialect.For(dialect.Postgres), declared, live)
	require.NoError(t, err)
	assert.Equal(t, []OpKind{CreateTable}, kinds(ops))
	assert.Len(t, ops[0].Def.ForeignKeys, 1)
}

func TestDiffRejectsForeignKeyCycle(t *testing.T) {
	a := &schema.Table{
		Name:        "a",
		Columns:     []schema.Column{{Name: "id", Type: schema.Int64, PrimaryKey: true}, {Name: "b_id", Type: schema.Int64}},
		ForeignKeys: []schema.ForeignKey{{Columns: []string{"b_id"}, RefTable: "b", RefColumns: []string{"id"}}},
	}
	b := &schema.Table{
		Name:        "b",
		Columns:     []schema.Column{{Name: "id", Type: schema.Int64, PrimaryKey: true}, {Name: "a_id", Type: schema.Int64}},
		ForeignKeys: []schema.ForeignKey{{Columns: []string{"a_id"}, RefTable: "a", RefColumns: []string{"id"}}},
	}

	_, err := Diff(dialect.For(dialect.Postgres), &schema.Schema{Tables: []*schema.Table{a, b}}, nil)
	require.ErrorIs(t, err, dberr.ErrCyclicSchemaDependency)
	var cycle *dberr.CyclicDependencyError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"a", "b"}, cycle.Tables)
}

func TestDiffSelfReferenceIsNotACycle(t *testing.T) {
	tree := &schema.Table{
		Name:        "nodes",
		Columns:     []schema.Column{{Name: "id", Type: schema.Int64, PrimaryKey: true}, {Name: "parent_id", Type: schema.Int64, Nullable: true}},
		ForeignKeys: []schema.ForeignKey{{Columns: []string{"parent_id"}, RefTable: "nodes", RefColumns: []string{"id"}}},
	}
	ops, err := Diff(dialect.For(dialect.SQLite), &schema.Schema{Tables: []*schema.Table{tree}}, nil)
	require.NoError(t, err)
	assert.Equal(t, []OpKind{CreateTable}, kinds(ops))
}

func TestDiffAltersColumns(t *testing.T) {
	declared := usersTable()
	declared.Columns[1] = schema.Column{Name: "name", Type: schema.Text(200), Nullable: true}
	declared.Columns = append(declared.Columns, schema.Column{Name: "age", Type: schema.Int32, Nullable: true})
	live := usersTable()
	live.Columns = append(live.Columns, schema.Column{Name: "legacy", Type: schema.Text(0), Nullable: true})

	ops, err := Diff(dialect.For(dialect.Postgres),
		&schema.Schema{Tables: []*schema.Table{declared}},
		&schema.Schema{Tables: []*schema.Table{live}})
	require.NoError(t, err)
	assert.Equal(t, []OpKind{DropColumn, AddColumn, AlterColumnType, AlterColumnNullability}, kinds(ops))
	assert.Equal(t, "legacy", ops[0].Old.Name)
	assert.Equal(t, "age", ops[1].Column.Name)
	assert.Equal(t, schema.Text(100), ops[2].Old.Type)
	assert.Equal(t, schema.Text(200), ops[2].Column.Type)
	assert.True(t, ops[3].Column.Nullable)
}

func TestDiffComparesNativeTypes(t *testing.T) {
	declared := usersTable()
	declared.Columns[0].Type = schema.Int32
	s := &schema.Schema{Tables: []*schema.Table{declared}}
	live := &schema.Schema{Tables: []*schema.Table{usersTable()}}

	ops, err := Diff(dialect.For(dialect.SQLite), s, live)
	require.NoError(t, err)
	assert.Empty(t, ops, "int32 and int64 are both integer in sqlite")

	ops, err = Diff(dialect.For(dialect.Postgres), s, live)
	require.NoError(t, err)
	assert.Equal(t, []OpKind{AlterColumnType}, kinds(ops))
}

func TestDiffUnsupportedType(t *testing.T) {
	doc := &schema.Table{Name: "docs", Columns: []schema.Column{{Name: "body", Type: schema.JSON}}}
	s := &schema.Schema{Tables: []*schema.Table{doc}}

	_, err := Diff(dialect.For(dialect.MSSQL), s, s)
	assert.ErrorIs(t, err, dberr.ErrUnsupportedType)
}

func TestDiffReplacesChangedIndex(t *testing.T) {
	declared := usersTable()
	declared.Indexes[0].Unique = true
	ops, err := Diff(dialect.For(dialect.MySQL),
		&schema.Schema{Tables: []*schema.Table{declared}},
		&schema.Schema{Tables: []*schema.Table{usersTable()}})
	require.NoError(t, err)
	assert.Equal(t, []OpKind{DropIndex, AddIndex}, kinds(ops))
	assert.True(t, ops[1].Index.Unique)
}

func TestDiffAllowExtra(t *testing.T) {
	live := usersTable()
	live.Columns = append(live.Columns, schema.Column{Name: "legacy", Type: schema.Text(0), Nullable: true})
	live.Indexes = append(live.Indexes, schema.Index{Name: "users_legacy_idx", Columns: []string{"legacy"}})
	audit := &schema.Table{Name: "audit", Columns: []schema.Column{{Name: "id", Type: schema.Int64, PrimaryKey: true}}}
	declared := &schema.Schema{Tables: []*schema.Table{usersTable()}}
	liveSchema := &schema.Schema{Tables: []*schema.Table{live, audit}}

	ops, err := Diff(dialect.For(dialect.Postgres), declared, liveSchema)
	require.NoError(t, err)
	assert.Equal(t, []OpKind{DropIndex, DropColumn, DropTable}, kinds(ops))

	var extras []Extra
	ops, err = Diff(dialect.For(dialect.Postgres), declared, liveSchema,
		AllowExtra(), OnExtra(func(e Extra) { extras = append(extras, e) }))
	require.NoError(t, err)
	assert.Empty(t, ops)
	assert.Equal(t, []Extra{
		{Table: "users", Column: "legacy"},
		{Table: "users", Index: "users_legacy_idx"},
		{Table: "audit"},
	}, extras)
}

func TestDiffExclude(t *testing.T) {
	migrations := &schema.Table{Name: "schema_migrations", Columns: []schema.Column{{Name: "version", Type: schema.Text(64), PrimaryKey: true}}}
	declared := &schema.Schema{Tables: []*schema.Table{usersTable()}}
	live := &schema.Schema{Tables: []*schema.Table{migrations, usersTable()}}

	ops, err := Diff(dialect.For(dialect.SQLite), declared, live, Exclude("schema_migrations"))
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestDiffNilDialect(t *testing.T) {
	_, err := Diff(nil, nil, nil)
	assert.ErrorIs(t, err, dberr.ErrInvalidArgument)
}

func TestCompareSnapshots(t *testing.T) {
	before := &schema.Schema{Tables: []*schema.Table{usersTable()}}
	grown := usersTable()
	grown.Columns = append(grown.Columns, schema.Column{Name: "email", Type: schema.Text(255), Nullable: true})
	after := &schema.Schema{Tables: []*schema.Table{grown, postsTable()}}

	ops, err := Compare(before, after)
	require.NoError(t, err)
	assert.Equal(t, []OpKind{CreateTable, AddColumn}, kinds(ops))

	ops, err = Compare(after, before)
	require.NoError(t, err)
	assert.Equal(t, []OpKind{DropForeignKey, DropColumn, DropTable}, kinds(ops))
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Report(&buf, nil))
	assert.Equal(t, "No differences found.\n", buf.String())

	grown := usersTable()
	grown.Columns = append(grown.Columns, schema.Column{Name: "email", Type: schema.Text(255), Nullable: true})
	ops, err := Compare(&schema.Schema{Tables: []*schema.Table{usersTable()}},
		&schema.Schema{Tables: []*schema.Table{grown, postsTable()}})
	require.NoError(t, err)

	buf.Reset()
	require.NoError(t, Report(&buf, ops, Extra{Table: "audit"}))
	assert.Equal(t, `=== Planned Operations (2) ===

  1. CreateTable posts (3 columns)
  2. AddColumn users.email text(255) NULL

=== Extra Objects Kept (1) ===

  - table audit
`, buf.String())
}

func TestParseOpKind(t *testing.T) {
	for k := range opKindNames {
		parsed, err := ParseOpKind(k.String())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
	_, err := ParseOpKind("RenameTable")
	assert.Error(t, err)
}
