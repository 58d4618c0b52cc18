package generator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/koba/rowkit/internal/dialect"
	"github.com/koba/rowkit/internal/schema"
)

var errUnsupported = errors.New("unsupported")

func (g *Generator) createTable(t *schema.Table) (string, error) {
	inlinePK := g.inlinePrimaryKey(t)
	var parts []string
	for _, col := range t.Columns {
		def, err := g.columnDefinition(col, col.Name == inlinePK)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		parts = append(parts, def)
	}

	if pk := t.PrimaryKey(); len(pk) > 0 && inlinePK == "" {
		names := make([]string, len(pk))
		for i, c := range pk {
			names[i] = c.Name
		}
		parts = append(parts, "PRIMARY KEY ("+g.d.QuoteAll(names)+")")
	}

	for _, fk := range t.ForeignKeys {
		parts = append(parts, g.foreignKey(t.Name, fk))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", g.d.Quote(t.Name), strings.Join(parts, ",\n  ")), nil
}

// inlinePrimaryKey returns the column declared "PRIMARY KEY AUTOINCREMENT"
// in SQLite, where autoincrement only exists on a single integer key.
func (g *Generator) inlinePrimaryKey(t *schema.Table) string {
	if g.d.Kind() != dialect.SQLite {
		return ""
	}
	pk := t.PrimaryKey()
	if len(pk) == 1 && pk[0].AutoIncrement {
		return pk[0].Name
	}
	return ""
}

func (g *Generator) columnDefinition(col schema.Column, inlinePK bool) (string, error) {
	native, err := g.d.NativeType(col.Type)
	if err != nil {
		return "", fmt.Errorf("column %s: %w", col.Name, err)
	}
	def := g.d.Quote(col.Name) + " " + native

	if col.AutoIncrement && g.d.Kind() == dialect.MSSQL {
		def += " IDENTITY(1,1)"
	}

	if !col.Nullable {
		def += " NOT NULL"
	} else if g.d.Kind() == dialect.MSSQL {
		def += " NULL"
	}

	if col.AutoIncrement {
		switch g.d.Kind() {
		case dialect.Postgres:
			def += " GENERATED BY DEFAULT AS IDENTITY"
		case dialect.MySQL:
			def += " AUTO_INCREMENT"
		case dialect.SQLite:
			if inlinePK {
				def += " PRIMARY KEY AUTOINCREMENT"
			}
		}
	} else if col.Default != nil {
		def += " DEFAULT " + *col.Default
	}

	return def, nil
}

func (g *Generator) addColumn(table string, col schema.Column) (string, error) {
	def, err := g.columnDefinition(col, false)
	if err != nil {
		return "", err
	}
	if g.d.Kind() == dialect.MSSQL {
		return "ALTER TABLE " + g.d.Quote(table) + " ADD " + def, nil
	}
	return "ALTER TABLE " + g.d.Quote(table) + " ADD COLUMN " + def, nil
}

func (g *Generator) alterType(table string, col schema.Column) (string, error) {
	switch g.d.Kind() {
	case dialect.Postgres:
		native, err := g.d.NativeType(col.Type)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", g.d.Quote(table), g.d.Quote(col.Name), native), nil
	case dialect.MySQL:
		return g.modifyColumn(table, col)
	case dialect.MSSQL:
		return g.alterColumn(table, col)
	}
	return "", errUnsupported
}

func (g *Generator) alterNullability(table string, col schema.Column) (string, error) {
	switch g.d.Kind() {
	case dialect.Postgres:
		action := "SET NOT NULL"
		if col.Nullable {
			action = "DROP NOT NULL"
		}
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s", g.d.Quote(table), g.d.Quote(col.Name), action), nil
	case dialect.MySQL:
		return g.modifyColumn(table, col)
	case dialect.MSSQL:
		return g.alterColumn(table, col)
	}
	return "", errUnsupported
}

// modifyColumn restates the whole MySQL column definition, which keeps
// AUTO_INCREMENT and nullability in place.
func (g *Generator) modifyColumn(table string, col schema.Column) (string, error) {
	def, err := g.columnDefinition(col, false)
	if err != nil {
		return "", err
	}
	return "ALTER TABLE " + g.d.Quote(table) + " MODIFY COLUMN " + def, nil
}

func (g *Generator) alterColumn(table string, col schema.Column) (string, error) {
	native, err := g.d.NativeType(col.Type)
	if err != nil {
		return "", err
	}
	null := " NULL"
	if !col.Nullable {
		null = " NOT NULL"
	}
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s%s", g.d.Quote(table), g.d.Quote(col.Name), native, null), nil
}

func (g *Generator) foreignKey(table string, fk schema.ForeignKey) string {
	def := fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		g.d.Quote(foreignKeyName(table, fk)),
		g.d.QuoteAll(fk.Columns),
		g.d.Quote(fk.RefTable),
		g.d.QuoteAll(fk.RefColumns),
	)
	if fk.OnDelete != "" {
		def += " ON DELETE " + strings.ToUpper(fk.OnDelete)
	}
	if fk.OnUpdate != "" {
		def += " ON UPDATE " + strings.ToUpper(fk.OnUpdate)
	}
	return def
}

func (g *Generator) dropForeignKey(table string, fk schema.ForeignKey) string {
	if g.d.Kind() == dialect.MySQL {
		return "ALTER TABLE " + g.d.Quote(table) + " DROP FOREIGN KEY " + g.d.Quote(foreignKeyName(table, fk))
	}
	return "ALTER TABLE " + g.d.Quote(table) + " DROP CONSTRAINT " + g.d.Quote(foreignKeyName(table, fk))
}

func (g *Generator) createIndex(table string, idx schema.Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, g.d.Quote(idx.Name), g.d.Quote(table), g.d.QuoteAll(idx.Columns))
}

func (g *Generator) dropIndex(table, name string) string {
	switch g.d.Kind() {
	case dialect.MySQL, dialect.MSSQL:
		return "DROP INDEX " + g.d.Quote(name) + " ON " + g.d.Quote(table)
	}
	return "DROP INDEX " + g.d.Quote(name)
}

// foreignKeyName returns the constraint name of fk, deriving
// fk_<table>_<columns> for unnamed keys.
func foreignKeyName(table string, fk schema.ForeignKey) string {
	if fk.Name != "" {
		return fk.Name
	}
	return "fk_" + table + "_" + strings.Join(fk.Columns, "_")
}
