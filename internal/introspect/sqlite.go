package introspect

import "github.com/koba/rowkit/internal/database"

// sqliteCatalog reads sqlite_master and the pragma table-valued functions,
// which unlike PRAGMA statements accept bound parameters.
type sqliteCatalog struct{}

func (sqliteCatalog) defaultSchema() string { return "main" }

func (sqliteCatalog) listTables(string) database.Fetch {
	return database.Fetch{SQL: `SELECT name AS table_name
FROM sqlite_master
WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
ORDER BY name`}
}

func (sqliteCatalog) describe(_, table string) []database.Fetch {
	return []database.Fetch{
		{SQL: sqliteColumns, Args: []any{table, table}},
		{SQL: sqliteForeignKeys, Args: []any{table, table}},
		{SQL: sqliteIndexes, Args: []any{table}},
	}
}

// A single INTEGER PRIMARY KEY column aliases the rowid and is assigned by
// the database.
const sqliteColumns = `SELECT
	name AS column_name,
	type AS column_type,
	CASE WHEN "notnull" = 0 AND pk = 0 THEN 'YES' ELSE 'NO' END AS is_nullable,
	dflt_value AS column_default,
	pk > 0 AS is_primary,
	(pk = 1 AND lower(type) = 'integer'
		AND (SELECT COUNT(*) FROM pragma_table_info(?) WHERE pk > 0) = 1) AS is_auto
FROM pragma_table_info(?)
ORDER BY cid`

const sqliteForeignKeys = `SELECT
	? || '_fk' || id AS constraint_name,
	"from" AS column_name,
	"table" AS referenced_table,
	"to" AS referenced_column,
	on_update AS update_rule,
	on_delete AS delete_rule
FROM pragma_foreign_key_list(?)
ORDER BY id, seq`

const sqliteIndexes = `SELECT
	il.name AS index_name,
	ii.name AS column_name,
	il."unique" AS is_unique,
	il.origin = 'pk' AS is_primary
FROM pragma_index_list(?) AS il, pragma_index_info(il.name) AS ii
WHERE il.origin = 'c'
ORDER BY il.name, ii.seqno`
