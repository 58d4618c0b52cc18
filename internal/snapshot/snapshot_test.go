package snapshot

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/dialect"
	"github.com/koba/rowkit/internal/schema"
)

func ptr(s string) *string { return &s }

func shop() *schema.Schema {
	return &schema.Schema{Name: "shop", Tables: []*schema.Table{
		{
			Name: "users",
			Columns: []schema.Column{
				{Name: "id", Type: schema.Int64, PrimaryKey: true, AutoIncrement: true, Position: 1},
				{Name: "email", Type: schema.Text(255), Position: 2},
				{Name: "balance", Type: schema.Decimal(10, 2), Default: ptr("0"), Position: 3},
			},
			Indexes: []schema.Index{{Name: "users_email_key", Columns: []string{"email"}, Unique: true}},
		},
		{
			Name: "orders",
			Columns: []schema.Column{
				{Name: "id", Type: schema.Int64, PrimaryKey: true, Position: 1},
				{Name: "user_id", Type: schema.Int64, Position: 2},
				{Name: "placed_at", Type: schema.TimestampTZ, Nullable: true, Position: 3},
			},
			ForeignKeys: []schema.ForeignKey{{
				Name: "orders_user_fk", Columns: []string{"user_id"},
				RefTable: "users", RefColumns: []string{"id"}, OnDelete: "CASCADE",
			}},
		},
	}}
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshots", "shop.db")

	saved, err := Save(ctx, path, shop(), map[string]string{MetaDialect: "postgres"})
	require.NoError(t, err)
	_, err = uuid.Parse(saved.Metadata[MetaID])
	require.NoError(t, err)

	loaded, err := Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, shop(), loaded.Schema)
	assert.Equal(t, saved.Metadata, loaded.Metadata)
	assert.Equal(t, "postgres", loaded.Metadata[MetaDialect])
	assert.Equal(t, "shop", loaded.Metadata[MetaSchema])
	assert.NotEmpty(t, loaded.Metadata[MetaCreatedAt])
}

func TestSaveReplacesExistingFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shop.db")

	_, err := Save(ctx, path, shop(), nil)
	require.NoError(t, err)
	small := &schema.Schema{Name: "shop", Tables: shop().Tables[:1]}
	_, err = Save(ctx, path, small, map[string]string{MetaID: "fixed"})
	require.NoError(t, err)

	loaded, err := Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, loaded.Schema.TableNames())
	assert.Equal(t, "fixed", loaded.Metadata[MetaID])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.db"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot file does not exist")
}

func TestCheckConflicts(t *testing.T) {
	d := dialect.For(dialect.Postgres)
	previous := shop()

	t.Run("matching database", func(t *testing.T) {
		assert.NoError(t, CheckConflicts(d, previous, shop(), shop()))
	})

	t.Run("no previous migration", func(t *testing.T) {
		assert.NoError(t, CheckConflicts(d, nil, shop(), &schema.Schema{}))
	})

	t.Run("table not created yet", func(t *testing.T) {
		live := &schema.Schema{Tables: shop().Tables[:1]}
		assert.NoError(t, CheckConflicts(d, previous, shop(), live))
	})

	t.Run("database drifted", func(t *testing.T) {
		live := shop()
		live.Tables[0].Columns = append(live.Tables[0].Columns, schema.Column{Name: "nickname", Type: schema.Text(40), Nullable: true})
		live.Tables[1].Columns[2].Nullable = false

		err := CheckConflicts(d, previous, shop(), live)
		require.ErrorIs(t, err, dberr.ErrMigrationConflict)
		assert.Contains(t, err.Error(), `table "users"`)
		assert.Contains(t, err.Error(), "DropColumn users.nickname")
		assert.Contains(t, err.Error(), `table "orders"`)
	})

	t.Run("dropped from declared schema", func(t *testing.T) {
		live := shop()
		live.Tables[1].Columns = live.Tables[1].Columns[:2]
		declared := &schema.Schema{Tables: shop().Tables[:1]}
		assert.NoError(t, CheckConflicts(d, previous, declared, live))
	})
}
