package dberr

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&UnsupportedTypeError{Dialect: "mssql", Type: "json"}, ErrUnsupportedType},
		{&UnknownNativeTypeError{Dialect: "postgres", Native: "tsvector"}, ErrUnknownNativeType},
		{&UnknownTableError{Table: "posts"}, ErrUnknownTable},
		{&UnknownColumnError{Column: "age"}, ErrUnknownColumn},
		{&InvalidArgumentError{Arg: "limit", Reason: "negative"}, ErrInvalidArgument},
		{&ConnectionError{Op: "exec", Err: io.EOF}, ErrConnection},
		{&IntrospectionUnsupportedError{Dialect: "oracle"}, ErrIntrospectionUnsupported},
		{&CyclicDependencyError{Tables: []string{"a", "b"}}, ErrCyclicSchemaDependency},
		{&MigrationConflictError{Table: "users"}, ErrMigrationConflict},
		{&UnsupportedOperationError{Dialect: "sqlite", Operation: "AlterColumnType"}, ErrUnsupportedOperation},
	}
	for _, tt := range tests {
		t.Run(tt.sentinel.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestConnectionKeepsCause(t *testing.T) {
	err := Connection("query", io.ErrUnexpectedEOF)
	require.Error(t, err)
	assert.True(t, IsConnection(err))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, "rowkit: query: unexpected EOF", err.Error())

	// Already wrapped errors are not wrapped twice.
	again := Connection("exec", fmt.Errorf("ctx: %w", err))
	var ce *ConnectionError
	require.True(t, errors.As(again, &ce))
	assert.Equal(t, "query", ce.Op)

	assert.NoError(t, Connection("exec", nil))
}

func TestCyclicDependencyMessage(t *testing.T) {
	err := &CyclicDependencyError{Tables: []string{"authors", "books"}}
	assert.Equal(t, "rowkit: foreign key cycle between tables: authors, books", err.Error())
}

func TestIsNoOp(t *testing.T) {
	assert.True(t, IsNoOp(fmt.Errorf("save users: %w", ErrNoOp)))
	assert.False(t, IsNoOp(ErrInvalidArgument))
}
