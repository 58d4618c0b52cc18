package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/dialect"
)

// Conn runs statements against one dialect. *DB, *Tx and *LoggingConn
// implement it.
type Conn interface {
	Dialect() *dialect.Dialect
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) ([]Row, error)
}

// Connection is a Conn that owns its resources and can start transactions.
type Connection interface {
	Conn
	Begin(ctx context.Context) (*Tx, error)
	FetchMany(ctx context.Context, fetches ...Fetch) ([][]Row, error)
	Close() error
}

// Fetcher is implemented by connections that can run several queries on one
// underlying session.
type Fetcher interface {
	FetchMany(ctx context.Context, fetches ...Fetch) ([][]Row, error)
}

// Fetch is one query of a FetchMany batch.
type Fetch struct {
	SQL  string
	Args []any
}

// execQuerier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// sqlConn adapts an execQuerier to Conn.
type sqlConn struct {
	ex execQuerier
	d  *dialect.Dialect
}

func (c sqlConn) Dialect() *dialect.Dialect { return c.d }

func (c sqlConn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := c.ex.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, dberr.Connection("exec", err)
	}
	return res, nil
}

func (c sqlConn) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := c.ex.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dberr.Connection("query", err)
	}
	defer rows.Close()
	out, err := scanRows(rows)
	if err != nil {
		return nil, dberr.Connection("query", err)
	}
	return out, nil
}

// scanRows reads every row of rows. Byte slices are copied since the driver
// may reuse them.
func scanRows(rows *sql.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	var data []Row
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
		}
		data = append(data, Row{columns: columns, values: values})
	}

	return data, rows.Err()
}

// DB is a Connection backed by a database/sql pool.
type DB struct {
	sqlConn
	db *sql.DB
}

// OpenDB wraps an open pool. The pool's driver must speak dialect d.
func OpenDB(d *dialect.Dialect, db *sql.DB) *DB {
	return &DB{sqlConn: sqlConn{ex: db, d: d}, db: db}
}

// SQL returns the underlying pool.
func (db *DB) SQL() *sql.DB { return db.db }

// Begin starts a transaction bound to ctx. Cancelling ctx rolls it back.
func (db *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dberr.Connection("begin", err)
	}
	return newTx(sqlConn{ex: tx, d: db.d}, tx.Commit, tx.Rollback), nil
}

// FetchMany runs the queries in order on a single pooled connection and
// stops at the first failure.
func (db *DB) FetchMany(ctx context.Context, fetches ...Fetch) ([][]Row, error) {
	conn, err := db.db.Conn(ctx)
	if err != nil {
		return nil, dberr.Connection("acquire", err)
	}
	defer conn.Close()
	return fetchSequential(ctx, sqlConn{ex: conn, d: db.d}, fetches)
}

// Close closes the pool.
func (db *DB) Close() error { return db.db.Close() }

// FetchAll runs the queries through c's FetchMany when it has one and one by
// one otherwise.
func FetchAll(ctx context.Context, c Conn, fetches ...Fetch) ([][]Row, error) {
	if f, ok := c.(Fetcher); ok {
		return f.FetchMany(ctx, fetches...)
	}
	return fetchSequential(ctx, c, fetches)
}

func fetchSequential(ctx context.Context, c Conn, fetches []Fetch) ([][]Row, error) {
	out := make([][]Row, 0, len(fetches))
	for i, f := range fetches {
		rows, err := c.Query(ctx, f.SQL, f.Args...)
		if err != nil {
			return nil, fmt.Errorf("fetch %d: %w", i, err)
		}
		out = append(out, rows)
	}
	return out, nil
}
