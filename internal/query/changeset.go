package query

import (
	"github.com/koba/rowkit/internal/schema"
)

// Change is one column write.
type Change struct {
	Column string
	Value  any
}

// Changeset is an ordered list of column writes. Order follows the table's
// column order so rendered statements are deterministic.
type Changeset []Change

// Columns returns the written column names.
func (cs Changeset) Columns() []string {
	cols := make([]string, len(cs))
	for i, ch := range cs {
		cols[i] = ch.Column
	}
	return cols
}

// Get returns the value written to col.
func (cs Changeset) Get(col string) (any, bool) {
	for _, ch := range cs {
		if ch.Column == col {
			return ch.Value, true
		}
	}
	return nil, false
}

// Empty reports whether nothing is written.
func (cs Changeset) Empty() bool { return len(cs) == 0 }

// Full returns a changeset writing every settable column of t with the
// values in current. It is the changeset of an entity never loaded.
func Full(t *schema.Table, current map[string]any) Changeset {
	var cs Changeset
	for _, c := range t.Settable() {
		if v, ok := current[c.Name]; ok {
			cs = append(cs, Change{Column: c.Name, Value: v})
		}
	}
	return cs
}

// Dirty returns the changeset of the settable columns of t whose value in
// current differs from the one in snapshot. Values are compared by their
// logical column type, so writing back the original value is not a change.
func Dirty(t *schema.Table, snapshot, current map[string]any) Changeset {
	var cs Changeset
	for _, c := range t.Settable() {
		cur, ok := current[c.Name]
		if !ok {
			continue
		}
		if orig, ok := snapshot[c.Name]; ok && c.Type.Equal(orig, cur) {
			continue
		}
		cs = append(cs, Change{Column: c.Name, Value: cur})
	}
	return cs
}
