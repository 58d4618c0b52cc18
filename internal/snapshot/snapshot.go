// Package snapshot stores schemas in SQLite files so that two points in
// time, or a migration and the database it targets, can be compared later.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/koba/rowkit/internal/database"
	"github.com/koba/rowkit/internal/schema"
)

// Metadata keys written by Save.
const (
	MetaID        = "id"
	MetaCreatedAt = "created_at"
	MetaSchema    = "schema"
	MetaDialect   = "dialect"
)

// MigrationFile is the snapshot kept in a migration directory. It records
// the declared schema the latest migration brings the database to.
const MigrationFile = "schema.snapshot"

// Snapshot is a schema with the metadata recorded alongside it.
type Snapshot struct {
	Metadata map[string]string
	Schema   *schema.Schema
}

// Save writes s to a new SQLite file at path, replacing any existing one.
// meta is stored as given; id, created_at and schema are filled in when
// missing.
func Save(ctx context.Context, path string, s *schema.Schema, meta map[string]string) (*Snapshot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to remove existing snapshot: %w", err)
	}

	metadata := map[string]string{
		MetaID:        uuid.NewString(),
		MetaCreatedAt: time.Now().UTC().Format(time.RFC3339),
		MetaSchema:    s.Name,
	}
	for k, v := range meta {
		metadata[k] = v
	}

	db, err := database.Open(ctx, database.Config{Type: "sqlite", Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot database: %w", err)
	}
	defer db.Close()

	err = database.WithTx(ctx, db, func(tx *database.Tx) error {
		if err := initializeSchema(ctx, tx); err != nil {
			return fmt.Errorf("failed to initialize snapshot schema: %w", err)
		}
		keys := make([]string, 0, len(metadata))
		for k := range metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if _, err := tx.Exec(ctx, "INSERT INTO metadata (key, value) VALUES (?, ?)", k, metadata[k]); err != nil {
				return fmt.Errorf("failed to insert metadata: %w", err)
			}
		}
		for i, t := range s.Tables {
			tableJSON, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("failed to marshal table %s: %w", t.Name, err)
			}
			if _, err := tx.Exec(ctx,
				"INSERT INTO table_schemas (table_name, position, schema_json) VALUES (?, ?, ?)",
				t.Name, i, string(tableJSON),
			); err != nil {
				return fmt.Errorf("failed to insert table %s: %w", t.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Snapshot{Metadata: metadata, Schema: s}, nil
}

// Load reads a snapshot written by Save.
func Load(ctx context.Context, path string) (*Snapshot, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("snapshot file does not exist: %s", path)
	}

	db, err := database.Open(ctx, database.Config{Type: "sqlite", Path: path})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	defer db.Close()

	results, err := db.FetchMany(ctx,
		database.Fetch{SQL: "SELECT key, value FROM metadata"},
		database.Fetch{SQL: "SELECT table_name, schema_json FROM table_schemas ORDER BY position"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}

	snap := &Snapshot{Metadata: map[string]string{}, Schema: &schema.Schema{}}
	for _, r := range results[0] {
		snap.Metadata[r.String("key")] = r.String("value")
	}
	snap.Schema.Name = snap.Metadata[MetaSchema]
	for _, r := range results[1] {
		var t schema.Table
		if err := json.Unmarshal([]byte(r.String("schema_json")), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal table %s: %w", r.String("table_name"), err)
		}
		snap.Schema.Tables = append(snap.Schema.Tables, &t)
	}
	return snap, nil
}
