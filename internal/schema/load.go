package schema

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-openapi/inflect"
	"gopkg.in/yaml.v3"
)

// file is the YAML layout of a declared schema.
//
//	name: shop
//	tables:
//	  - entity: OrderItem          # table name defaults to order_items
//	    columns:
//	      - {name: id, type: int64, primary_key: true, auto_increment: true}
//	      - {name: note, type: text(200), nullable: true}
type file struct {
	Name   string      `yaml:"name"`
	Tables []fileTable `yaml:"tables"`
}

type fileTable struct {
	Entity      string       `yaml:"entity,omitempty"`
	Name        string       `yaml:"name,omitempty"`
	Columns     []Column     `yaml:"columns"`
	ForeignKeys []ForeignKey `yaml:"foreign_keys,omitempty"`
	Indexes     []Index      `yaml:"indexes,omitempty"`
}

// LoadFile reads a declared schema from a YAML file.
func LoadFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a declared schema from YAML and validates it.
func Parse(data []byte) (*Schema, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f file
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	s := &Schema{Name: f.Name}
	for _, ft := range f.Tables {
		name := ft.Name
		if name == "" && ft.Entity != "" {
			name = TableName(ft.Entity)
		}
		t := &Table{
			Name:        name,
			Columns:     ft.Columns,
			ForeignKeys: ft.ForeignKeys,
			Indexes:     ft.Indexes,
		}
		for i := range t.Columns {
			t.Columns[i].Position = i + 1
		}
		s.Tables = append(s.Tables, t)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// TableName returns the conventional table name of an entity type name:
// snake case and plural, so OrderItem becomes order_items.
func TableName(entity string) string {
	return inflect.Pluralize(inflect.Underscore(entity))
}

// Marshal encodes s in the YAML layout read by Parse.
func Marshal(s *Schema) ([]byte, error) {
	f := file{Name: s.Name}
	for _, t := range s.Tables {
		f.Tables = append(f.Tables, fileTable{
			Name:        t.Name,
			Columns:     t.Columns,
			ForeignKeys: t.ForeignKeys,
			Indexes:     t.Indexes,
		})
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
