package schema

import (
	"strings"
)

// Column represents a table column
type Column struct {
	Name          string  `json:"name" yaml:"name"`
	Type          Type    `json:"type" yaml:"type"`
	Nullable      bool    `json:"nullable" yaml:"nullable"`
	Default       *string `json:"default,omitempty" yaml:"default,omitempty"`
	AutoIncrement bool    `json:"auto_increment" yaml:"auto_increment"`
	PrimaryKey    bool    `json:"primary_key" yaml:"primary_key"`
	Position      int     `json:"position" yaml:"-"`
}

// Settable reports whether the application writes the column.
// Auto-increment columns are assigned by the database.
func (c Column) Settable() bool { return !c.AutoIncrement }

// Generated reports whether the database may fill the column on insert.
func (c Column) Generated() bool { return c.AutoIncrement || c.Default != nil }

// Index represents a table index
type Index struct {
	Name    string   `json:"name" yaml:"name"`
	Columns []string `json:"columns" yaml:"columns"`
	Unique  bool     `json:"unique" yaml:"unique"`
	Primary bool     `json:"primary" yaml:"-"`
}

// ForeignKey represents a foreign key constraint
type ForeignKey struct {
	Name       string   `json:"name" yaml:"name"`
	Columns    []string `json:"columns" yaml:"columns"`
	RefTable   string   `json:"ref_table" yaml:"ref_table"`
	RefColumns []string `json:"ref_columns" yaml:"ref_columns"`
	OnDelete   string   `json:"on_delete,omitempty" yaml:"on_delete,omitempty"` // CASCADE, SET NULL, etc.
	OnUpdate   string   `json:"on_update,omitempty" yaml:"on_update,omitempty"`
}

// Key returns the identity of the foreign key: local columns and referenced
// table and columns. Constraint names and actions are not part of it.
func (fk ForeignKey) Key() string {
	return strings.Join(fk.Columns, ",") + "->" + fk.RefTable + "(" + strings.Join(fk.RefColumns, ",") + ")"
}

// SameActions reports whether both keys use the same referential actions.
// An empty action is the database default, NO ACTION.
func (fk ForeignKey) SameActions(other ForeignKey) bool {
	return normAction(fk.OnDelete) == normAction(other.OnDelete) &&
		normAction(fk.OnUpdate) == normAction(other.OnUpdate)
}

func normAction(a string) string {
	a = strings.ToUpper(strings.TrimSpace(a))
	if a == "" || a == "RESTRICT" {
		return "NO ACTION"
	}
	return a
}

// Table represents a table: its columns in declaration order, foreign keys
// and secondary indexes.
type Table struct {
	Name        string       `json:"name" yaml:"name"`
	Columns     []Column     `json:"columns" yaml:"columns"`
	ForeignKeys []ForeignKey `json:"foreign_keys" yaml:"foreign_keys"`
	Indexes     []Index      `json:"indexes" yaml:"indexes"`
}

// Column returns the named column.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the table defines the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// PrimaryKey returns the primary key columns in declaration order.
func (t *Table) PrimaryKey() []Column {
	var pk []Column
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c)
		}
	}
	return pk
}

// Settable returns the columns the application writes.
func (t *Table) Settable() []Column {
	cols := make([]Column, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c.Settable() {
			cols = append(cols, c)
		}
	}
	return cols
}

// ColumnNames returns the names of all columns in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ForeignKey returns the foreign key with the same identity as key.
func (t *Table) ForeignKey(key string) (ForeignKey, bool) {
	for _, fk := range t.ForeignKeys {
		if fk.Key() == key {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// Index returns the named index.
func (t *Table) Index(name string) (Index, bool) {
	for _, idx := range t.Indexes {
		if idx.Name == name {
			return idx, true
		}
	}
	return Index{}, false
}

// Schema is a set of tables, either declared in code or read from a live
// database at one point in time.
type Schema struct {
	Name   string   `json:"name" yaml:"name"`
	Tables []*Table `json:"tables" yaml:"tables"`
}

// Table returns the named table or nil.
func (s *Schema) Table(name string) *Table {
	if s == nil {
		return nil
	}
	for _, t := range s.Tables {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// TableNames returns the table names in schema order.
func (s *Schema) TableNames() []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}
