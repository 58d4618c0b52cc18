package introspect

import "github.com/koba/rowkit/internal/database"

type postgresCatalog struct{}

func (postgresCatalog) defaultSchema() string { return "public" }

func (postgresCatalog) listTables(schemaName string) database.Fetch {
	return database.Fetch{
		SQL: `SELECT table_name
FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`,
		Args: []any{schemaName},
	}
}

func (postgresCatalog) describe(schemaName, table string) []database.Fetch {
	args := []any{schemaName, table}
	return []database.Fetch{
		{SQL: postgresColumns, Args: args},
		{SQL: postgresForeignKeys, Args: args},
		{SQL: postgresIndexes, Args: args},
	}
}

// format_type gives the declared type with its modifiers, such as
// character varying(100) or numeric(10,2).
const postgresColumns = `SELECT
	c.column_name,
	pg_catalog.format_type(a.atttypid, a.atttypmod) AS column_type,
	c.is_nullable,
	c.column_default,
	COALESCE(pk.is_primary, false) AS is_primary,
	(c.is_identity = 'YES' OR COALESCE(c.column_default, '') LIKE 'nextval(%') AS is_auto
FROM information_schema.columns c
JOIN pg_catalog.pg_namespace n ON n.nspname = c.table_schema
JOIN pg_catalog.pg_class t ON t.relnamespace = n.oid AND t.relname = c.table_name
JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attname = c.column_name
LEFT JOIN (
	SELECT ix.indrelid, unnest(ix.indkey) AS attnum, true AS is_primary
	FROM pg_catalog.pg_index ix
	WHERE ix.indisprimary
) pk ON pk.indrelid = t.oid AND pk.attnum = a.attnum
WHERE c.table_schema = $1 AND c.table_name = $2
ORDER BY c.ordinal_position`

const postgresForeignKeys = `SELECT
	con.conname AS constraint_name,
	att.attname AS column_name,
	ref.relname AS referenced_table,
	ratt.attname AS referenced_column,
	rc.update_rule,
	rc.delete_rule
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class cl ON cl.oid = con.conrelid
JOIN pg_catalog.pg_namespace ns ON ns.oid = cl.relnamespace
JOIN pg_catalog.pg_class ref ON ref.oid = con.confrelid
CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refnum, ord)
JOIN pg_catalog.pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = k.attnum
JOIN pg_catalog.pg_attribute ratt ON ratt.attrelid = con.confrelid AND ratt.attnum = k.refnum
JOIN information_schema.referential_constraints rc
	ON rc.constraint_name = con.conname AND rc.constraint_schema = ns.nspname
WHERE con.contype = 'f' AND ns.nspname = $1 AND cl.relname = $2
ORDER BY con.conname, k.ord`

const postgresIndexes = `SELECT
	i.relname AS index_name,
	a.attname AS column_name,
	ix.indisunique AS is_unique,
	ix.indisprimary AS is_primary
FROM pg_catalog.pg_class t
JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
JOIN pg_catalog.pg_index ix ON t.oid = ix.indrelid
JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
JOIN pg_catalog.pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
WHERE n.nspname = $1 AND t.relname = $2 AND t.relkind = 'r'
ORDER BY i.relname, array_position(ix.indkey::int2[], a.attnum)`
