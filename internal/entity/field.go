package entity

import (
	"database/sql"
	"fmt"
)

// Field maps one column to a struct field of T.
type Field[T any] struct {
	Column string
	Get    func(*T) any
	Set    func(*T, any) error
}

// Bind returns a Field for the struct field addressed by ptr. Set accepts
// any value database/sql could scan into V, including NULL (the zero value)
// and sql.Scanner types such as decimal.Decimal and uuid.UUID. Use a pointer
// V for nullable columns.
//
//	entity.Bind("email", func(u *User) **string { return &u.Email })
func Bind[T, V any](column string, ptr func(*T) *V) Field[T] {
	return Field[T]{
		Column: column,
		Get:    func(e *T) any { return *ptr(e) },
		Set: func(e *T, v any) error {
			var n sql.Null[V]
			if err := n.Scan(v); err != nil {
				return fmt.Errorf("column %s: %w", column, err)
			}
			*ptr(e) = n.V
			return nil
		},
	}
}
