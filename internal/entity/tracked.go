package entity

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/koba/rowkit/internal/database"
	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/dialect"
	"github.com/koba/rowkit/internal/query"
	"github.com/koba/rowkit/internal/render"
	"github.com/koba/rowkit/internal/schema"
)

// Outcome tells what Save did.
type Outcome int

const (
	NoOp Outcome = iota
	Inserted
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "no-op"
	}
}

// Tracked is an entity instance with its load-time snapshot. It is not safe
// for concurrent use.
type Tracked[T any] struct {
	def      *Entity[T]
	v        *T
	snapshot map[string]any // nil until loaded or saved
}

// Entity returns the tracked value. Mutate it directly; Save picks up the
// changes.
func (t *Tracked[T]) Entity() *T { return t.v }

// IsNew reports whether the row has never been loaded or saved.
func (t *Tracked[T]) IsNew() bool { return t.snapshot == nil }

// Values returns the current column values.
func (t *Tracked[T]) Values() map[string]any { return t.def.values(t.v) }

// Changeset returns the writes Save would issue: every settable column for
// a new row, only the columns that differ from the snapshot otherwise.
func (t *Tracked[T]) Changeset() query.Changeset {
	if t.IsNew() {
		return query.Full(t.def.table, t.Values())
	}
	return query.Dirty(t.def.table, t.snapshot, t.Values())
}

// IsDirty reports whether Save would write anything.
func (t *Tracked[T]) IsDirty() bool { return !t.Changeset().Empty() }

// Save inserts a new row or updates the changed columns of a loaded one.
// Generated keys and server defaults are read back into the entity. The
// snapshot is replaced only when the write succeeded. If the row was
// inserted but its server defaults could not be read back, Save returns
// Inserted with the error and the entity is no longer new.
func (t *Tracked[T]) Save(ctx context.Context, conn database.Conn) (Outcome, error) {
	if t.IsNew() {
		defaulted, err := t.insert(ctx, conn)
		if err != nil {
			return NoOp, err
		}
		t.snapshot = t.capture()
		if len(defaulted) > 0 {
			if err := t.refetch(ctx, conn, defaulted); err != nil {
				return Inserted, fmt.Errorf("insert %s: read back defaults: %w", t.def.table.Name, err)
			}
			t.snapshot = t.capture()
		}
		return Inserted, nil
	}
	stmt, err := render.Update(conn.Dialect(), t.def.table, t.Changeset(), t.key())
	if errors.Is(err, dberr.ErrNoOp) {
		return NoOp, nil
	}
	if err != nil {
		return NoOp, err
	}
	res, err := conn.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return NoOp, fmt.Errorf("update %s: %w", t.def.table.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return NoOp, fmt.Errorf("update %s: %w", t.def.table.Name, ErrStale)
	}
	t.snapshot = t.capture()
	return Updated, nil
}

// Delete removes the loaded row by the key it was loaded with. The entity
// is new again afterwards.
func (t *Tracked[T]) Delete(ctx context.Context, conn database.Conn) error {
	if t.IsNew() {
		return dberr.InvalidArgument("delete", "%s row was never loaded", t.def.table.Name)
	}
	stmt, err := render.Delete(conn.Dialect(), t.def.table, t.key())
	if err != nil {
		return err
	}
	res, err := conn.Exec(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.def.table.Name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete %s: %w", t.def.table.Name, ErrStale)
	}
	t.snapshot = nil
	return nil
}

// insert writes the row and sets its generated key. It returns the columns
// left to their server defaults.
func (t *Tracked[T]) insert(ctx context.Context, conn database.Conn) ([]string, error) {
	table := t.def.table
	d := conn.Dialect()

	// NULL in a column with a server default means "use the default".
	var cs query.Changeset
	var defaulted []string
	for _, ch := range query.Full(table, t.Values()) {
		c, _ := table.Column(ch.Column)
		if c.Default != nil && isNull(ch.Value) {
			defaulted = append(defaulted, c.Name)
			continue
		}
		cs = append(cs, ch)
	}

	stmt, err := render.Insert(d, table, cs)
	if err != nil {
		return nil, err
	}
	pk := table.PrimaryKey()
	if d.Returning() != dialect.ReturningNone && len(pk) > 0 {
		rows, err := conn.Query(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", table.Name, err)
		}
		if len(rows) != 1 {
			return nil, fmt.Errorf("insert %s: expected one returned row, got %d", table.Name, len(rows))
		}
		for _, c := range pk {
			v, _ := rows[0].Get(c.Name)
			if err := t.def.set(t.v, c.Name, v); err != nil {
				return nil, err
			}
		}
	} else {
		res, err := conn.Exec(ctx, stmt.SQL, stmt.Args...)
		if err != nil {
			return nil, fmt.Errorf("insert %s: %w", table.Name, err)
		}
		if len(pk) == 1 && pk[0].AutoIncrement {
			id, err := res.LastInsertId()
			if err != nil {
				return nil, fmt.Errorf("insert %s: last insert id: %w", table.Name, err)
			}
			if err := t.def.set(t.v, pk[0].Name, id); err != nil {
				return nil, err
			}
		}
	}
	return defaulted, nil
}

// refetch reads cols of the just-inserted row back into the entity.
func (t *Tracked[T]) refetch(ctx context.Context, conn database.Conn, cols []string) error {
	table := t.def.table
	where, err := query.KeyFilter(table, t.Values())
	if err != nil {
		return err
	}
	q, err := query.Select(table).Columns(cols...).Where(where).Build()
	if err != nil {
		return err
	}
	stmt, err := render.Select(conn.Dialect(), q)
	if err != nil {
		return err
	}
	rows, err := conn.Query(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return fmt.Errorf("refetch %s: %w", table.Name, err)
	}
	if len(rows) != 1 {
		return fmt.Errorf("refetch %s: expected one row, got %d", table.Name, len(rows))
	}
	for i, v := range rows[0].Values() {
		if err := t.def.set(t.v, cols[i], v); err != nil {
			return err
		}
	}
	return nil
}

// key returns the primary key values the row was loaded or saved with.
func (t *Tracked[T]) key() map[string]any {
	key := make(map[string]any)
	for _, c := range t.def.table.PrimaryKey() {
		key[c.Name] = t.snapshot[c.Name]
	}
	return key
}

func (t *Tracked[T]) capture() map[string]any {
	snap := t.Values()
	for k, v := range snap {
		snap[k] = schema.Clone(v)
	}
	return snap
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
