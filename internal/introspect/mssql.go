package introspect

import "github.com/koba/rowkit/internal/database"

type mssqlCatalog struct{}

func (mssqlCatalog) defaultSchema() string { return "dbo" }

func (mssqlCatalog) listTables(schemaName string) database.Fetch {
	return database.Fetch{
		SQL: `SELECT TABLE_NAME AS table_name
FROM INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
ORDER BY TABLE_NAME`,
		Args: []any{schemaName},
	}
}

func (mssqlCatalog) describe(schemaName, table string) []database.Fetch {
	args := []any{schemaName, table}
	return []database.Fetch{
		{SQL: mssqlColumns, Args: args},
		{SQL: mssqlForeignKeys, Args: args},
		{SQL: mssqlIndexes, Args: args},
	}
}

// The native type is rebuilt from DATA_TYPE and its length or precision;
// a length of -1 is (max).
const mssqlColumns = `SELECT
	c.COLUMN_NAME AS column_name,
	CASE
		WHEN c.CHARACTER_MAXIMUM_LENGTH = -1 THEN c.DATA_TYPE + '(max)'
		WHEN c.CHARACTER_MAXIMUM_LENGTH IS NOT NULL THEN c.DATA_TYPE + '(' + CAST(c.CHARACTER_MAXIMUM_LENGTH AS varchar(10)) + ')'
		WHEN c.DATA_TYPE IN ('decimal', 'numeric') THEN c.DATA_TYPE + '(' + CAST(c.NUMERIC_PRECISION AS varchar(10)) + ',' + CAST(c.NUMERIC_SCALE AS varchar(10)) + ')'
		ELSE c.DATA_TYPE
	END AS column_type,
	c.IS_NULLABLE AS is_nullable,
	c.COLUMN_DEFAULT AS column_default,
	CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 1 ELSE 0 END AS is_primary,
	COLUMNPROPERTY(OBJECT_ID(c.TABLE_SCHEMA + '.' + c.TABLE_NAME), c.COLUMN_NAME, 'IsIdentity') AS is_auto
FROM INFORMATION_SCHEMA.COLUMNS c
LEFT JOIN (
	SELECT ku.TABLE_SCHEMA, ku.TABLE_NAME, ku.COLUMN_NAME
	FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
	INNER JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE ku
		ON tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		AND tc.CONSTRAINT_NAME = ku.CONSTRAINT_NAME
		AND tc.TABLE_SCHEMA = ku.TABLE_SCHEMA
		AND tc.TABLE_NAME = ku.TABLE_NAME
) pk ON c.TABLE_SCHEMA = pk.TABLE_SCHEMA
	AND c.TABLE_NAME = pk.TABLE_NAME
	AND c.COLUMN_NAME = pk.COLUMN_NAME
WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
ORDER BY c.ORDINAL_POSITION`

const mssqlForeignKeys = `SELECT
	fk.name AS constraint_name,
	pc.name AS column_name,
	rt.name AS referenced_table,
	rc.name AS referenced_column,
	REPLACE(fk.update_referential_action_desc, '_', ' ') AS update_rule,
	REPLACE(fk.delete_referential_action_desc, '_', ' ') AS delete_rule
FROM sys.foreign_keys fk
JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
JOIN sys.tables t ON t.object_id = fk.parent_object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
JOIN sys.columns pc ON pc.object_id = fkc.parent_object_id AND pc.column_id = fkc.parent_column_id
JOIN sys.tables rt ON rt.object_id = fk.referenced_object_id
JOIN sys.columns rc ON rc.object_id = fkc.referenced_object_id AND rc.column_id = fkc.referenced_column_id
WHERE s.name = @p1 AND t.name = @p2
ORDER BY fk.name, fkc.constraint_column_id`

const mssqlIndexes = `SELECT
	i.name AS index_name,
	c.name AS column_name,
	i.is_unique,
	i.is_primary_key AS is_primary
FROM sys.indexes i
JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
JOIN sys.tables t ON t.object_id = i.object_id
JOIN sys.schemas s ON s.schema_id = t.schema_id
WHERE s.name = @p1 AND t.name = @p2 AND i.name IS NOT NULL AND ic.is_included_column = 0
ORDER BY i.name, ic.key_ordinal`
