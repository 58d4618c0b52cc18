package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/koba/rowkit/internal/dialect"
)

// QueryStats counts the statements run through a LoggingConn.
type QueryStats struct {
	TotalQueries  atomic.Int64
	TotalExecs    atomic.Int64
	TotalDuration atomic.Int64 // nanoseconds
	SlowQueries   atomic.Int64
	Errors        atomic.Int64
}

// Snapshot returns the current counters.
func (s *QueryStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// StatsSnapshot is a point-in-time copy of QueryStats.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d duration=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.SlowQueries, s.Errors)
}

// LoggingOption configures a LoggingConn.
type LoggingOption func(*LoggingConn)

// WithSlowThreshold sets the duration above which a statement is logged at
// warn level and counted as slow. The default is 100ms.
func WithSlowThreshold(d time.Duration) LoggingOption {
	return func(l *LoggingConn) { l.slow = d }
}

// LoggingConn wraps a Connection and logs every statement: debug level for
// the statement itself, error level for failures, warn level for slow ones.
type LoggingConn struct {
	next  Conn
	owner Connection // nil inside a transaction
	log   zerolog.Logger
	slow  time.Duration
	stats *QueryStats
}

// NewLoggingConn wraps c.
func NewLoggingConn(c Connection, logger zerolog.Logger, opts ...LoggingOption) *LoggingConn {
	l := &LoggingConn{
		next:  c,
		owner: c,
		log:   logger,
		slow:  100 * time.Millisecond,
		stats: &QueryStats{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Stats returns the counters, including statements run in transactions
// started from l.
func (l *LoggingConn) Stats() StatsSnapshot { return l.stats.Snapshot() }

func (l *LoggingConn) Dialect() *dialect.Dialect { return l.next.Dialect() }

func (l *LoggingConn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := l.next.Exec(ctx, query, args...)
	l.stats.TotalExecs.Add(1)
	l.observe("exec", query, args, time.Since(start), err)
	return res, err
}

func (l *LoggingConn) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	start := time.Now()
	rows, err := l.next.Query(ctx, query, args...)
	l.stats.TotalQueries.Add(1)
	l.observe("query", query, args, time.Since(start), err)
	return rows, err
}

// FetchMany runs the batch through the wrapped connection and logs it as
// one entry per query.
func (l *LoggingConn) FetchMany(ctx context.Context, fetches ...Fetch) ([][]Row, error) {
	if len(fetches) == 0 {
		return nil, nil
	}
	start := time.Now()
	out, err := FetchAll(ctx, l.next, fetches...)
	elapsed := time.Since(start)
	for _, f := range fetches {
		l.stats.TotalQueries.Add(1)
		l.observe("fetch", f.SQL, f.Args, elapsed/time.Duration(len(fetches)), nil)
	}
	if err != nil {
		l.stats.Errors.Add(1)
		l.log.Error().Err(err).Int("queries", len(fetches)).Msg("fetch many failed")
	}
	return out, err
}

// Begin starts a transaction whose statements are logged through l.
func (l *LoggingConn) Begin(ctx context.Context) (*Tx, error) {
	if l.owner == nil {
		return nil, fmt.Errorf("begin: nested transactions are not supported")
	}
	tx, err := l.owner.Begin(ctx)
	if err != nil {
		l.stats.Errors.Add(1)
		l.log.Error().Err(err).Msg("begin failed")
		return nil, err
	}
	l.log.Debug().Msg("begin")
	child := &LoggingConn{next: tx.conn, log: l.log, slow: l.slow, stats: l.stats}
	return newTx(child, tx.commit, tx.rollback), nil
}

// Close closes the wrapped connection.
func (l *LoggingConn) Close() error {
	if l.owner == nil {
		return nil
	}
	return l.owner.Close()
}

func (l *LoggingConn) observe(op, query string, args []any, d time.Duration, err error) {
	l.stats.TotalDuration.Add(int64(d))
	switch {
	case err != nil:
		l.stats.Errors.Add(1)
		l.log.Error().Err(err).Str("op", op).Str("sql", query).Interface("args", args).Dur("duration", d).Msg("statement failed")
	case d > l.slow:
		l.stats.SlowQueries.Add(1)
		l.log.Warn().Str("op", op).Str("sql", query).Interface("args", args).Dur("duration", d).Msg("slow statement")
	default:
		l.log.Debug().Str("op", op).Str("sql", query).Interface("args", args).Dur("duration", d).Msg(op)
	}
}
