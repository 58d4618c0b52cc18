// Package dberr defines the error kinds shared by the query, rendering,
// tracking, introspection and migration layers.
//
// Every kind has a sentinel value usable with errors.Is and, where the
// caller needs details, a typed error usable with errors.As.
package dberr

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	ErrUnsupportedType          = errors.New("rowkit: unsupported type")
	ErrUnknownNativeType        = errors.New("rowkit: unknown native type")
	ErrUnknownTable             = errors.New("rowkit: unknown table")
	ErrUnknownColumn            = errors.New("rowkit: unknown column")
	ErrInvalidArgument          = errors.New("rowkit: invalid argument")
	ErrConnection               = errors.New("rowkit: connection error")
	ErrIntrospectionUnsupported = errors.New("rowkit: introspection unsupported")
	ErrCyclicSchemaDependency   = errors.New("rowkit: cyclic schema dependency")
	ErrMigrationConflict        = errors.New("rowkit: migration conflict")
	ErrUnsupportedOperation     = errors.New("rowkit: unsupported operation")

	// ErrNoOp is not a failure. It reports that a save had nothing to write.
	ErrNoOp = errors.New("rowkit: nothing to do")
)

// UnsupportedTypeError is returned when a dialect has no native type for a
// logical column type.
type UnsupportedTypeError struct {
	Dialect string
	Type    string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("rowkit: type %s is not supported by dialect %s", e.Type, e.Dialect)
}

// Is reports whether target is ErrUnsupportedType.
func (e *UnsupportedTypeError) Is(target error) bool { return target == ErrUnsupportedType }

// UnknownNativeTypeError is returned when an introspected native type cannot
// be mapped back to a logical type.
type UnknownNativeTypeError struct {
	Dialect string
	Native  string
}

func (e *UnknownNativeTypeError) Error() string {
	return fmt.Sprintf("rowkit: native type %q of dialect %s has no logical mapping", e.Native, e.Dialect)
}

// Is reports whether target is ErrUnknownNativeType.
func (e *UnknownNativeTypeError) Is(target error) bool { return target == ErrUnknownNativeType }

// UnknownTableError is returned when a table cannot be resolved.
type UnknownTableError struct {
	Table  string
	Reason string
}

func (e *UnknownTableError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("rowkit: unknown table %q: %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("rowkit: unknown table %q", e.Table)
}

// Is reports whether target is ErrUnknownTable.
func (e *UnknownTableError) Is(target error) bool { return target == ErrUnknownTable }

// UnknownColumnError is returned when a column is not part of any table in scope.
type UnknownColumnError struct {
	Table  string
	Column string
}

func (e *UnknownColumnError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("rowkit: unknown column %q in table %q", e.Column, e.Table)
	}
	return fmt.Sprintf("rowkit: unknown column %q", e.Column)
}

// Is reports whether target is ErrUnknownColumn.
func (e *UnknownColumnError) Is(target error) bool { return target == ErrUnknownColumn }

// InvalidArgumentError reports builder or API misuse.
type InvalidArgumentError struct {
	Arg    string
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("rowkit: invalid %s: %s", e.Arg, e.Reason)
}

// Is reports whether target is ErrInvalidArgument.
func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

// ConnectionError wraps a failure reported by the underlying connection.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rowkit: %s: %v", e.Op, e.Err)
}

// Is reports whether target is ErrConnection.
func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error { return e.Err }

// IntrospectionUnsupportedError is returned when no catalog query exists for a dialect.
type IntrospectionUnsupportedError struct {
	Dialect string
}

func (e *IntrospectionUnsupportedError) Error() string {
	return fmt.Sprintf("rowkit: introspection is not implemented for dialect %q", e.Dialect)
}

// Is reports whether target is ErrIntrospectionUnsupported.
func (e *IntrospectionUnsupportedError) Is(target error) bool {
	return target == ErrIntrospectionUnsupported
}

// CyclicDependencyError names the tables that take part in a foreign key cycle.
type CyclicDependencyError struct {
	Tables []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("rowkit: foreign key cycle between tables: %s", strings.Join(e.Tables, ", "))
}

// Is reports whether target is ErrCyclicSchemaDependency.
func (e *CyclicDependencyError) Is(target error) bool { return target == ErrCyclicSchemaDependency }

// MigrationConflictError is returned when a previously generated migration and
// the database disagree on the shape of a table.
type MigrationConflictError struct {
	Table  string
	Reason string
}

func (e *MigrationConflictError) Error() string {
	return fmt.Sprintf("rowkit: migration conflict on table %q: %s", e.Table, e.Reason)
}

// Is reports whether target is ErrMigrationConflict.
func (e *MigrationConflictError) Is(target error) bool { return target == ErrMigrationConflict }

// UnsupportedOperationError is returned when a dialect cannot express a DDL operation.
type UnsupportedOperationError struct {
	Dialect   string
	Operation string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("rowkit: dialect %s cannot express %s", e.Dialect, e.Operation)
}

// Is reports whether target is ErrUnsupportedOperation.
func (e *UnsupportedOperationError) Is(target error) bool {
	return target == ErrUnsupportedOperation
}

// Connection wraps err in a ConnectionError unless it already is one.
// A nil err returns nil.
func Connection(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return err
	}
	return &ConnectionError{Op: op, Err: err}
}

// InvalidArgument returns an InvalidArgumentError.
func InvalidArgument(arg, format string, args ...any) error {
	return &InvalidArgumentError{Arg: arg, Reason: fmt.Sprintf(format, args...)}
}

// IsNoOp reports whether err signals an empty save.
func IsNoOp(err error) bool { return errors.Is(err, ErrNoOp) }

// IsConnection reports whether err wraps a connection failure.
func IsConnection(err error) bool { return errors.Is(err, ErrConnection) }

// IsUnknownColumn reports whether err is an unknown column error.
func IsUnknownColumn(err error) bool { return errors.Is(err, ErrUnknownColumn) }

// IsUnknownTable reports whether err is an unknown table error.
func IsUnknownTable(err error) bool { return errors.Is(err, ErrUnknownTable) }
