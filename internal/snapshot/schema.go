package snapshot

import (
	"context"

	"github.com/koba/rowkit/internal/database"
)

const (
	// SQLite schema for storing snapshots
	createMetadataTable = `
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`

	createTableSchemasTable = `
		CREATE TABLE IF NOT EXISTS table_schemas (
			table_name TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			schema_json TEXT NOT NULL
		)
	`
)

// initializeSchema creates the tables of a snapshot file.
func initializeSchema(ctx context.Context, tx *database.Tx) error {
	for _, ddl := range []string{createMetadataTable, createTableSchemasTable} {
		if _, err := tx.Exec(ctx, ddl); err != nil {
			return err
		}
	}
	return nil
}
