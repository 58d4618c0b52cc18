package introspect

import "github.com/koba/rowkit/internal/database"

// mysqlCatalog reads information_schema. An empty schema name means the
// connection's current database.
type mysqlCatalog struct{}

func (mysqlCatalog) defaultSchema() string { return "" }

func (mysqlCatalog) listTables(schemaName string) database.Fetch {
	return database.Fetch{
		SQL: `SELECT TABLE_NAME AS table_name
FROM information_schema.TABLES
WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`,
		Args: []any{schemaName},
	}
}

func (mysqlCatalog) describe(schemaName, table string) []database.Fetch {
	args := []any{schemaName, table}
	return []database.Fetch{
		{SQL: mysqlColumns, Args: args},
		{SQL: mysqlForeignKeys, Args: args},
		{SQL: mysqlIndexes, Args: args},
	}
}

const mysqlColumns = `SELECT
	COLUMN_NAME AS column_name,
	COLUMN_TYPE AS column_type,
	IS_NULLABLE AS is_nullable,
	COLUMN_DEFAULT AS column_default,
	COLUMN_KEY = 'PRI' AS is_primary,
	EXTRA LIKE '%auto_increment%' AS is_auto
FROM information_schema.COLUMNS
WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
ORDER BY ORDINAL_POSITION`

const mysqlForeignKeys = `SELECT
	k.CONSTRAINT_NAME AS constraint_name,
	k.COLUMN_NAME AS column_name,
	k.REFERENCED_TABLE_NAME AS referenced_table,
	k.REFERENCED_COLUMN_NAME AS referenced_column,
	r.UPDATE_RULE AS update_rule,
	r.DELETE_RULE AS delete_rule
FROM information_schema.KEY_COLUMN_USAGE k
JOIN information_schema.REFERENTIAL_CONSTRAINTS r
	ON r.CONSTRAINT_SCHEMA = k.TABLE_SCHEMA AND r.CONSTRAINT_NAME = k.CONSTRAINT_NAME
WHERE k.TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND k.TABLE_NAME = ?
	AND k.REFERENCED_TABLE_NAME IS NOT NULL
ORDER BY k.CONSTRAINT_NAME, k.ORDINAL_POSITION`

const mysqlIndexes = `SELECT
	INDEX_NAME AS index_name,
	COLUMN_NAME AS column_name,
	NON_UNIQUE = 0 AS is_unique,
	INDEX_NAME = 'PRIMARY' AS is_primary
FROM information_schema.STATISTICS
WHERE TABLE_SCHEMA = COALESCE(NULLIF(?, ''), DATABASE()) AND TABLE_NAME = ?
ORDER BY INDEX_NAME, SEQ_IN_INDEX`
