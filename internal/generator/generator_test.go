package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/dialect"
	"github.com/koba/rowkit/internal/diff"
	"github.com/koba/rowkit/internal/schema"
)

func ptr(s string) *string { return &s }

func usersTable() *schema.Table {
	return &schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true},
			{Name: "name", Type: schema.Text(100)},
			{Name: "score", Type: schema.Int32, Default: ptr("0")},
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
		},
		ForeignKeys: []schema.ForeignKey{{
			Name: "posts_author_fk", Columns: []string{"author_id"},
			RefTable: "users", RefColumns: []string{"id"}, OnDelete: "cascade",
		}},
	}
}

func TestCreateTable(t *testing.T) {
	tests := []struct {
		kind dialect.Kind
		want string
	}{
		{dialect.Postgres, `CREATE TABLE "users" (
  "id" bigint NOT NULL GENERATED BY DEFAULT AS IDENTITY,
  "name" varchar(100) NOT NULL,
  "score" integer NOT NULL DEFAULT 0,
  PRIMARY KEY ("id")
)`},
		{dialect.MySQL, "CREATE TABLE `users` (\n" +
			"  `id` bigint NOT NULL AUTO_INCREMENT,\n" +
			"  `name` varchar(100) NOT NULL,\n" +
			"  `score` int NOT NULL DEFAULT 0,\n" +
			"  PRIMARY KEY (`id`)\n)"},
		{dialect.MSSQL, `CREATE TABLE [users] (
  [id] bigint IDENTITY(1,1) NOT NULL,
  [name] nvarchar(100) NOT NULL,
  [score] int NOT NULL DEFAULT 0,
  PRIMARY KEY ([id])
)`},
		{dialect.SQLite, `CREATE TABLE "users" (
  "id" integer NOT NULL PRIMARY KEY AUTOINCREMENT,
  "name" varchar(100) NOT NULL,
  "score" integer NOT NULL DEFAULT 0
)`},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			stmts, err := New(dialect.For(tt.kind)).Statements(diff.Operation{Kind: diff.CreateTable, Table: "users", Def: usersTable()})
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, stmts)
		})
	}
}

func TestCreateTableWithForeignKey(t *testing.T) {
	stmts, err := New(dialect.For(dialect.Postgres)).Statements(diff.Operation{Kind: diff.CreateTable, Table: "posts", Def: postsTable()})
	require.NoError(t, err)
	assert.Equal(t, []string{`CREATE TABLE "posts" (
  "id" bigint NOT NULL GENERATED BY DEFAULT AS IDENTITY,
  "author_id" bigint NOT NULL,
  PRIMARY KEY ("id"),
  CONSTRAINT "posts_author_fk" FOREIGN KEY ("author_id") REFERENCES "users" ("id") ON DELETE CASCADE
)`}, stmts)
}

func TestColumnStatements(t *testing.T) {
	email := schema.Column{Name: "email", Type: schema.Text(255), Nullable: true}
	narrow := schema.Column{Name: "name", Type: schema.Text(100)}
	wide := schema.Column{Name: "name", Type: schema.Text(200)}
	addEmail := diff.Operation{Kind: diff.AddColumn, Table: "users", Column: &email}
	dropEmail := diff.Operation{Kind: diff.DropColumn, Table: "users", Old: &email}
	widen := diff.Operation{Kind: diff.AlterColumnType, Table: "users", Column: &wide, Old: &narrow}
	loosen := diff.Operation{Kind: diff.AlterColumnNullability, Table: "users", Column: &email, Old: &schema.Column{Name: "email", Type: schema.Text(255)}}

	tests := []struct {
		kind dialect.Kind
		op   diff.Operation
		want string
	}{
		{dialect.Postgres, addEmail, `ALTER TABLE "users" ADD COLUMN "email" varchar(255)`},
		{dialect.MSSQL, addEmail, `ALTER TABLE [users] ADD [email] nvarchar(255) NULL`},
		{dialect.SQLite, dropEmail, `ALTER TABLE "users" DROP COLUMN "email"`},
		{dialect.Postgres, widen, `ALTER TABLE "users" ALTER COLUMN "name" TYPE varchar(200)`},
		{dialect.MySQL, widen, "ALTER TABLE `users` MODIFY COLUMN `name` varchar(200) NOT NULL"},
		{dialect.MSSQL, widen, `ALTER TABLE [users] ALTER COLUMN [name] nvarchar(200) NOT NULL`},
		{dialect.Postgres, loosen, `ALTER TABLE "users" ALTER COLUMN "email" DROP NOT NULL`},
		{dialect.MySQL, loosen, "ALTER TABLE `users` MODIFY COLUMN `email` varchar(255)"},
		{dialect.MSSQL, loosen, `ALTER TABLE [users] ALTER COLUMN [email] nvarchar(255) NULL`},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String()+" "+tt.op.Kind.String(), func(t *testing.T) {
			stmts, err := New(dialect.For(tt.kind)).Statements(tt.op)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, stmts)
		})
	}
}

func TestConstraintStatements(t *testing.T) {
	fk := postsTable().ForeignKeys[0]
	unnamed := fk
	unnamed.Name = ""
	idx := schema.Index{Name: "users_email_key", Columns: []string{"email"}, Unique: true}

	tests := []struct {
		kind dialect.Kind
		op   diff.Operation
		want string
	}{
		{dialect.Postgres, diff.Operation{Kind: diff.AddForeignKey, Table: "posts", ForeignKey: &unnamed},
			`ALTER TABLE "posts" ADD CONSTRAINT "fk_posts_author_id" FOREIGN KEY ("author_id") REFERENCES "users" ("id") ON DELETE CASCADE`},
		{dialect.Postgres, diff.Operation{Kind: diff.DropForeignKey, Table: "posts", ForeignKey: &fk},
			`ALTER TABLE "posts" DROP CONSTRAINT "posts_author_fk"`},
		{dialect.MySQL, diff.Operation{Kind: diff.DropForeignKey, Table: "posts", ForeignKey: &fk},
			"ALTER TABLE `posts` DROP FOREIGN KEY `posts_author_fk`"},
		{dialect.MSSQL, diff.Operation{Kind: diff.DropForeignKey, Table: "posts", ForeignKey: &fk},
			`ALTER TABLE [posts] DROP CONSTRAINT [posts_author_fk]`},
		{dialect.SQLite, diff.Operation{Kind: diff.AddIndex, Table: "users", Index: &idx},
			`CREATE UNIQUE INDEX "users_email_key" ON "users" ("email")`},
		{dialect.Postgres, diff.Operation{Kind: diff.DropIndex, Table: "users", Index: &idx},
			`DROP INDEX "users_email_key"`},
		{dialect.MySQL, diff.Operation{Kind: diff.DropIndex, Table: "users", Index: &idx},
			"DROP INDEX `users_email_key` ON `users`"},
		{dialect.MSSQL, diff.Operation{Kind: diff.DropTable, Table: "users"},
			`DROP TABLE [users]`},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String()+" "+tt.op.Kind.String(), func(t *testing.T) {
			stmts, err := New(dialect.For(tt.kind)).Statements(tt.op)
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, stmts)
		})
	}
}

func TestSQLiteUnsupportedOperations(t *testing.T) {
	g := New(dialect.For(dialect.SQLite))
	fk := postsTable().ForeignKeys[0]
	col := schema.Column{Name: "name", Type: schema.Text(200)}

	for _, op := range []diff.Operation{
		{Kind: diff.AlterColumnType, Table: "users", Column: &col, Old: &col},
		{Kind: diff.AlterColumnNullability, Table: "users", Column: &col, Old: &col},
		{Kind: diff.AddForeignKey, Table: "posts", ForeignKey: &fk},
		{Kind: diff.DropForeignKey, Table: "posts", ForeignKey: &fk},
	} {
		_, err := g.Statements(op)
		assert.ErrorIs(t, err, dberr.ErrUnsupportedOperation, op.Kind.String())
	}

	stmts, err := g.Statements(diff.Operation{Kind: diff.DropForeignKey, Table: "posts", ForeignKey: &fk, TableDropped: true})
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestUnsupportedColumnType(t *testing.T) {
	doc := &schema.Table{Name: "docs", Columns: []schema.Column{{Name: "body", Type: schema.JSON}}}
	_, err := New(dialect.For(dialect.MSSQL)).Statements(diff.Operation{Kind: diff.CreateTable, Table: "docs", Def: doc})
	assert.ErrorIs(t, err, dberr.ErrUnsupportedType)
}

func TestInverse(t *testing.T) {
	g := New(dialect.For(dialect.Postgres))
	email := schema.Column{Name: "email", Type: schema.Text(255), Nullable: true}
	strict := schema.Column{Name: "email", Type: schema.Text(255)}
	fk := postsTable().ForeignKeys[0]
	fk.Name = ""

	inv, ok := g.Inverse(diff.Operation{Kind: diff.AddColumn, Table: "users", Column: &email})
	require.True(t, ok)
	assert.Equal(t, diff.DropColumn, inv.Kind)
	assert.Equal(t, "email", inv.Old.Name)

	inv, ok = g.Inverse(diff.Operation{Kind: diff.AlterColumnNullability, Table: "users", Column: &email, Old: &strict})
	require.True(t, ok)
	assert.False(t, inv.Column.Nullable)
	assert.True(t, inv.Old.Nullable)

	inv, ok = g.Inverse(diff.Operation{Kind: diff.AddForeignKey, Table: "posts", ForeignKey: &fk})
	require.True(t, ok)
	assert.Equal(t, diff.DropForeignKey, inv.Kind)
	assert.Equal(t, "fk_posts_author_id", inv.ForeignKey.Name)
	assert.Empty(t, fk.Name, "the planned key is left untouched")

	_, ok = g.Inverse(diff.Operation{Kind: diff.DropColumn, Table: "users", Old: &email})
	assert.False(t, ok)
	_, ok = g.Inverse(diff.Operation{Kind: diff.DropTable, Table: "users", Def: usersTable()})
	assert.False(t, ok)
	_, ok = g.Inverse(diff.Operation{Kind: diff.DropForeignKey, Table: "posts", ForeignKey: &fk, TableDropped: true})
	assert.False(t, ok)
}
