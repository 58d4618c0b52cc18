package schema

import (
	"errors"
	"fmt"
)

// ValidationError describes one structural problem in a schema.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// Validate checks that names are unique, that foreign keys point at
// existing tables and columns, and that indexes only cover existing columns.
// All problems are returned joined.
func (s *Schema) Validate() error {
	var errs []error
	add := func(table, column, format string, args ...any) {
		errs = append(errs, &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
	}
	seen := make(map[string]bool, len(s.Tables))
	for _, t := range s.Tables {
		if t.Name == "" {
			add("?", "", "table has no name")
			continue
		}
		if seen[t.Name] {
			add(t.Name, "", "duplicate table")
		}
		seen[t.Name] = true
		if len(t.Columns) == 0 {
			add(t.Name, "", "table has no columns")
		}
		cols := make(map[string]bool, len(t.Columns))
		for _, c := range t.Columns {
			if c.Name == "" {
				add(t.Name, "", "column has no name")
				continue
			}
			if cols[c.Name] {
				add(t.Name, c.Name, "duplicate column")
			}
			cols[c.Name] = true
			if c.Type.Kind == KindInvalid {
				add(t.Name, c.Name, "column has no type")
			}
			if c.PrimaryKey && c.Nullable {
				add(t.Name, c.Name, "primary key column cannot be nullable")
			}
		}
		for _, idx := range t.Indexes {
			if len(idx.Columns) == 0 {
				add(t.Name, "", "index %q has no columns", idx.Name)
			}
			for _, c := range idx.Columns {
				if !cols[c] {
					add(t.Name, c, "index %q references unknown column", idx.Name)
				}
			}
		}
		for _, fk := range t.ForeignKeys {
			if len(fk.Columns) == 0 || len(fk.Columns) != len(fk.RefColumns) {
				add(t.Name, "", "foreign key %s has mismatched column lists", fk.Key())
				continue
			}
			for _, c := range fk.Columns {
				if !cols[c] {
					add(t.Name, c, "foreign key %s references unknown local column", fk.Key())
				}
			}
			ref := s.Table(fk.RefTable)
			if ref == nil {
				add(t.Name, "", "foreign key %s references unknown table %q", fk.Key(), fk.RefTable)
				continue
			}
			for _, c := range fk.RefColumns {
				if !ref.HasColumn(c) {
					add(t.Name, "", "foreign key %s references unknown column %s.%s", fk.Key(), fk.RefTable, c)
				}
			}
		}
	}
	return errors.Join(errs...)
}
