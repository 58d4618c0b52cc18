package database

import (
	"bytes"
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/dialect"
)

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mk, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return OpenDB(dialect.For(dialect.Postgres), db), mk
}

func TestExecAndQuery(t *testing.T) {
	ctx := context.Background()
	db, mk := newMock(t)

	mk.ExpectExec(`DELETE FROM "users" WHERE "id" = $1`).
		WithArgs(7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	res, err := db.Exec(ctx, `DELETE FROM "users" WHERE "id" = $1`, 7)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	mk.ExpectQuery(`SELECT "id", "name", "avatar" FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "avatar"}).
			AddRow(int64(1), "ada", []byte{0x1, 0x2}).
			AddRow(int64(2), "bob", nil))
	rows, err := db.Query(ctx, `SELECT "id", "name", "avatar" FROM "users"`)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"id", "name", "avatar"}, rows[0].Columns())
	assert.Equal(t, "ada", rows[0].String("NAME"))
	avatar, ok := rows[0].Get("avatar")
	require.True(t, ok)
	assert.Equal(t, []byte{0x1, 0x2}, avatar)
	v, ok := rows[1].Get("avatar")
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = rows[1].Get("missing")
	assert.False(t, ok)
	assert.Equal(t, map[string]any{"id": int64(2), "name": "bob", "avatar": nil}, rows[1].Map())

	require.NoError(t, mk.ExpectationsWereMet())
}

func TestQueryErrorIsConnectionError(t *testing.T) {
	db, mk := newMock(t)
	cause := errors.New("connection reset")
	mk.ExpectQuery(`SELECT 1`).WillReturnError(cause)

	_, err := db.Query(context.Background(), `SELECT 1`)
	require.Error(t, err)
	assert.True(t, dberr.IsConnection(err))
	assert.ErrorIs(t, err, cause)
}

func TestTxLifecycle(t *testing.T) {
	ctx := context.Background()
	db, mk := newMock(t)

	mk.ExpectBegin()
	mk.ExpectExec(`UPDATE "users" SET "name" = $1 WHERE "id" = $2`).
		WithArgs("ada", 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mk.ExpectCommit()

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	assert.Equal(t, TxOpen, tx.State())
	assert.Equal(t, dialect.Postgres, tx.Dialect().Kind())
	_, err = tx.Exec(ctx, `UPDATE "users" SET "name" = $1 WHERE "id" = $2`, "ada", 1)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, TxCommitted, tx.State())

	// Completed transactions refuse statements, a second commit fails and
	// rollback is a no-op.
	_, err = tx.Exec(ctx, `SELECT 1`)
	assert.ErrorIs(t, err, dberr.ErrInvalidArgument)
	_, err = tx.Query(ctx, `SELECT 1`)
	assert.ErrorIs(t, err, dberr.ErrInvalidArgument)
	assert.ErrorIs(t, tx.Commit(), dberr.ErrInvalidArgument)
	assert.NoError(t, tx.Rollback())
	assert.Equal(t, TxCommitted, tx.State())

	require.NoError(t, mk.ExpectationsWereMet())
}

func TestTxFailedCommitIsRolledBack(t *testing.T) {
	db, mk := newMock(t)
	mk.ExpectBegin()
	mk.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	tx, err := db.Begin(context.Background())
	require.NoError(t, err)
	err = tx.Commit()
	require.Error(t, err)
	assert.True(t, dberr.IsConnection(err))
	assert.Equal(t, TxRolledBack, tx.State())
	assert.NoError(t, tx.Rollback())
}

func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		db, mk := newMock(t)
		mk.ExpectBegin()
		mk.ExpectExec(`DELETE FROM "tags"`).WillReturnResult(sqlmock.NewResult(0, 3))
		mk.ExpectCommit()

		err := WithTx(ctx, db, func(tx *Tx) error {
			_, err := tx.Exec(ctx, `DELETE FROM "tags"`)
			return err
		})
		require.NoError(t, err)
		require.NoError(t, mk.ExpectationsWereMet())
	})

	t.Run("rollback on error", func(t *testing.T) {
		db, mk := newMock(t)
		mk.ExpectBegin()
		mk.ExpectRollback()

		boom := errors.New("boom")
		var seen *Tx
		err := WithTx(ctx, db, func(tx *Tx) error {
			seen = tx
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, TxRolledBack, seen.State())
		require.NoError(t, mk.ExpectationsWereMet())
	})

	t.Run("rollback on panic", func(t *testing.T) {
		db, mk := newMock(t)
		mk.ExpectBegin()
		mk.ExpectRollback()

		assert.PanicsWithValue(t, "boom", func() {
			_ = WithTx(ctx, db, func(*Tx) error { panic("boom") })
		})
		require.NoError(t, mk.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		db, mk := newMock(t)
		mk.ExpectBegin().WillReturnError(errors.New("too many connections"))

		called := false
		err := WithTx(ctx, db, func(*Tx) error { called = true; return nil })
		assert.True(t, dberr.IsConnection(err))
		assert.False(t, called)
	})
}

func TestFetchManyStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	db, mk := newMock(t)

	mk.ExpectQuery(`SELECT 1`).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mk.ExpectQuery(`SELECT 2`).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(2))
	out, err := db.FetchMany(ctx, Fetch{SQL: `SELECT 1`}, Fetch{SQL: `SELECT 2`})
	require.NoError(t, err)
	require.Len(t, out, 2)
	n, ok := AsInt64(out[1][0].Values()[0])
	require.True(t, ok)
	assert.Equal(t, int64(2), n)

	mk.ExpectQuery(`SELECT 1`).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	mk.ExpectQuery(`SELECT broken`).WillReturnError(errors.New("syntax error"))
	_, err = db.FetchMany(ctx, Fetch{SQL: `SELECT 1`}, Fetch{SQL: `SELECT broken`}, Fetch{SQL: `SELECT 3`})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch 1")
	assert.True(t, dberr.IsConnection(err))

	require.NoError(t, mk.ExpectationsWereMet())
}

func TestLoggingConn(t *testing.T) {
	ctx := context.Background()
	db, mk := newMock(t)
	var buf bytes.Buffer
	conn := NewLoggingConn(db, zerolog.New(&buf).Level(zerolog.DebugLevel), WithSlowThreshold(time.Hour))

	mk.ExpectExec(`DELETE FROM "tags" WHERE "id" = $1`).WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
	mk.ExpectQuery(`SELECT "id" FROM "tags"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mk.ExpectQuery(`SELECT nope`).WillReturnError(errors.New("syntax error"))
	mk.ExpectBegin()
	mk.ExpectExec(`DELETE FROM "tags"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mk.ExpectCommit()

	_, err := conn.Exec(ctx, `DELETE FROM "tags" WHERE "id" = $1`, 1)
	require.NoError(t, err)
	_, err = conn.Query(ctx, `SELECT "id" FROM "tags"`)
	require.NoError(t, err)
	_, err = conn.Query(ctx, `SELECT nope`)
	require.Error(t, err)

	err = WithTx(ctx, conn, func(tx *Tx) error {
		_, err := tx.Exec(ctx, `DELETE FROM "tags"`)
		return err
	})
	require.NoError(t, err)

	stats := conn.Stats()
	assert.Equal(t, int64(2), stats.TotalQueries)
	assert.Equal(t, int64(2), stats.TotalExecs)
	assert.Equal(t, int64(1), stats.Errors)
	assert.Zero(t, stats.SlowQueries)

	out := buf.String()
	assert.Contains(t, out, `"sql":"DELETE FROM \"tags\" WHERE \"id\" = $1"`)
	assert.Contains(t, out, `"level":"error"`)
	assert.Contains(t, out, `"message":"statement failed"`)
	require.NoError(t, mk.ExpectationsWereMet())
}

func TestLoggingConnSlowStatements(t *testing.T) {
	db, mk := newMock(t)
	var buf bytes.Buffer
	conn := NewLoggingConn(db, zerolog.New(&buf), WithSlowThreshold(-1))

	mk.ExpectQuery(`SELECT 1`).WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(1))
	_, err := conn.Query(context.Background(), `SELECT 1`)
	require.NoError(t, err)

	assert.Equal(t, int64(1), conn.Stats().SlowQueries)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestRowValueHelpers(t *testing.T) {
	assert.Equal(t, "", AsString(nil))
	assert.Equal(t, "abc", AsString([]byte("abc")))
	assert.Equal(t, "42", AsString(int64(42)))
	assert.Nil(t, AsNullString(nil))
	assert.Equal(t, "", *AsNullString(""))

	n, ok := AsInt64([]byte(" 12 "))
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)
	_, ok = AsInt64("x")
	assert.False(t, ok)
	n, ok = AsInt64(uint64(math.MaxInt64))
	assert.True(t, ok)
	assert.Equal(t, int64(math.MaxInt64), n)
	_, ok = AsInt64(uint64(math.MaxInt64) + 1)
	assert.False(t, ok)

	for _, v := range []any{true, int64(1), "YES", []byte("t"), "on"} {
		assert.True(t, AsBool(v), "%v", v)
	}
	for _, v := range []any{false, int64(0), "NO", nil, "f"} {
		assert.False(t, AsBool(v), "%v", v)
	}
}

func TestOpenSQLiteMemory(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, Config{Type: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, dialect.SQLite, db.Dialect().Kind())
	_, err = db.Exec(ctx, `CREATE TABLE "users" ("id" integer PRIMARY KEY, "name" text NOT NULL)`)
	require.NoError(t, err)
	_, err = db.Exec(ctx, `INSERT INTO "users" ("name") VALUES (?)`, "ada")
	require.NoError(t, err)

	out, err := db.FetchMany(ctx,
		Fetch{SQL: `SELECT "name" FROM "users" WHERE "id" = ?`, Args: []any{1}},
		Fetch{SQL: `PRAGMA foreign_keys`},
	)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "ada", out[0][0].String("name"))
	fk, _ := AsInt64(out[1][0].Values()[0])
	assert.Equal(t, int64(1), fk)
}
