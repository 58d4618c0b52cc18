package diff

import (
	"fmt"
	"strings"

	"github.com/koba/rowkit/internal/schema"
)

// OpKind is the kind of a migration operation.
type OpKind uint8

const (
	CreateTable OpKind = iota + 1
	DropTable
	AddColumn
	DropColumn
	AlterColumnType
	AlterColumnNullability
	AddForeignKey
	DropForeignKey
	AddIndex
	DropIndex
)

var opKindNames = map[OpKind]string{
	CreateTable:            "CreateTable",
	DropTable:              "DropTable",
	AddColumn:              "AddColumn",
	DropColumn:             "DropColumn",
	AlterColumnType:        "AlterColumnType",
	AlterColumnNullability: "AlterColumnNullability",
	AddForeignKey:          "AddForeignKey",
	DropForeignKey:         "DropForeignKey",
	AddIndex:               "AddIndex",
	DropIndex:              "DropIndex",
}

func (k OpKind) String() string {
	if name, ok := opKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("OpKind(%d)", uint8(k))
}

// ParseOpKind returns the kind named by s, as produced by OpKind.String.
func ParseOpKind(s string) (OpKind, error) {
	for k, name := range opKindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation kind %q", s)
}

// phase orders operation kinds: drops of dependents first, then drops,
// creates, alters, and finally the indexes and foreign keys that rely on
// the new shape.
func (k OpKind) phase() int {
	switch k {
	case DropForeignKey:
		return 0
	case DropIndex:
		return 1
	case DropColumn:
		return 2
	case DropTable:
		return 3
	case CreateTable:
		return 4
	case AddColumn:
		return 5
	case AlterColumnType:
		return 6
	case AlterColumnNullability:
		return 7
	case AddIndex:
		return 8
	case AddForeignKey:
		return 9
	}
	return 10
}

// Operation is a single schema change.
//
// CreateTable carries the declared table in Def, including its foreign
// keys. DropTable carries the live table. Column operations carry the new
// column in Column and, for alters and drops, the live column in Old.
type Operation struct {
	Kind       OpKind
	Table      string
	Def        *schema.Table
	Column     *schema.Column
	Old        *schema.Column
	ForeignKey *schema.ForeignKey
	Index      *schema.Index

	// TableDropped marks a DropForeignKey emitted because its table is
	// dropped by the same plan.
	TableDropped bool
}

// String describes the operation on one line, e.g. "AddColumn users.email".
func (op Operation) String() string {
	switch op.Kind {
	case CreateTable:
		n := 0
		if op.Def != nil {
			n = len(op.Def.Columns)
		}
		return fmt.Sprintf("%s %s (%d columns)", op.Kind, op.Table, n)
	case AddColumn:
		return fmt.Sprintf("%s %s.%s %s%s", op.Kind, op.Table, op.Column.Name, op.Column.Type, nullText(op.Column.Nullable))
	case DropColumn:
		return fmt.Sprintf("%s %s.%s", op.Kind, op.Table, op.Old.Name)
	case AlterColumnType:
		return fmt.Sprintf("%s %s.%s %s -> %s", op.Kind, op.Table, op.Column.Name, op.Old.Type, op.Column.Type)
	case AlterColumnNullability:
		return fmt.Sprintf("%s %s.%s%s ->%s", op.Kind, op.Table, op.Column.Name, nullText(op.Old.Nullable), nullText(op.Column.Nullable))
	case AddForeignKey, DropForeignKey:
		return fmt.Sprintf("%s %s(%s) -> %s(%s)", op.Kind, op.Table,
			strings.Join(op.ForeignKey.Columns, ", "), op.ForeignKey.RefTable, strings.Join(op.ForeignKey.RefColumns, ", "))
	case AddIndex, DropIndex:
		return fmt.Sprintf("%s %s on %s(%s)", op.Kind, op.Index.Name, op.Table, strings.Join(op.Index.Columns, ", "))
	}
	return fmt.Sprintf("%s %s", op.Kind, op.Table)
}

func nullText(nullable bool) string {
	if nullable {
		return " NULL"
	}
	return " NOT NULL"
}

// Extra is a live object the declared schema does not define, kept in
// place because extras were allowed.
type Extra struct {
	Table  string
	Column string
	Index  string
}

func (e Extra) String() string {
	switch {
	case e.Column != "":
		return "column " + e.Table + "." + e.Column
	case e.Index != "":
		return "index " + e.Index + " on " + e.Table
	}
	return "table " + e.Table
}
