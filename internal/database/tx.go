package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/dialect"
)

// TxState is the lifecycle state of a transaction.
type TxState int

const (
	TxOpen TxState = iota
	TxCommitted
	TxRolledBack
)

func (s TxState) String() string {
	switch s {
	case TxOpen:
		return "open"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled back"
	}
	return fmt.Sprintf("TxState(%d)", int(s))
}

// Tx is a transaction. It implements Conn while open; once committed or
// rolled back every statement fails with InvalidArgument.
type Tx struct {
	conn     Conn
	commit   func() error
	rollback func() error

	mu    sync.Mutex
	state TxState
}

func newTx(conn Conn, commit, rollback func() error) *Tx {
	return &Tx{conn: conn, commit: commit, rollback: rollback}
}

// State returns the current state.
func (tx *Tx) State() TxState {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

func (tx *Tx) Dialect() *dialect.Dialect { return tx.conn.Dialect() }

func (tx *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := tx.open("exec"); err != nil {
		return nil, err
	}
	return tx.conn.Exec(ctx, query, args...)
}

func (tx *Tx) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	if err := tx.open("query"); err != nil {
		return nil, err
	}
	return tx.conn.Query(ctx, query, args...)
}

// FetchMany runs the queries in order inside the transaction.
func (tx *Tx) FetchMany(ctx context.Context, fetches ...Fetch) ([][]Row, error) {
	if err := tx.open("fetch"); err != nil {
		return nil, err
	}
	return fetchSequential(ctx, tx.conn, fetches)
}

func (tx *Tx) open(op string) error {
	if s := tx.State(); s != TxOpen {
		return dberr.InvalidArgument("tx", "%s on a %s transaction", op, s)
	}
	return nil
}

// Commit commits the transaction. A failed commit leaves the transaction
// rolled back.
func (tx *Tx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state != TxOpen {
		return dberr.InvalidArgument("tx", "commit on a %s transaction", tx.state)
	}
	if err := tx.commit(); err != nil {
		tx.state = TxRolledBack
		return dberr.Connection("commit", err)
	}
	tx.state = TxCommitted
	return nil
}

// Rollback aborts the transaction. It is a no-op once the transaction has
// completed, so it is safe to defer.
func (tx *Tx) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.state != TxOpen {
		return nil
	}
	tx.state = TxRolledBack
	if err := tx.rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return dberr.Connection("rollback", err)
	}
	return nil
}

// Beginner starts transactions.
type Beginner interface {
	Begin(ctx context.Context) (*Tx, error)
}

// WithTx runs fn inside a transaction. It commits when fn returns nil and
// rolls back when fn fails or panics; a panic is re-raised after the
// rollback.
func WithTx(ctx context.Context, b Beginner, fn func(tx *Tx) error) (err error) {
	tx, err := b.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return err
	}
	return tx.Commit()
}
