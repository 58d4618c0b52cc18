package snapshot

import (
	"errors"
	"strings"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/dialect"
	"github.com/koba/rowkit/internal/diff"
	"github.com/koba/rowkit/internal/schema"
)

// CheckConflicts compares the schema recorded by the previous migration with
// the live one. Every table the declared schema still defines and both
// sides know must have the same shape in d; each one that does not yields a
// *dberr.MigrationConflictError. A nil previous schema has no conflicts.
func CheckConflicts(d *dialect.Dialect, previous, declared, live *schema.Schema) error {
	if previous == nil || declared == nil {
		return nil
	}
	var errs []error
	for _, t := range declared.Tables {
		prev, cur := previous.Table(t.Name), live.Table(t.Name)
		if prev == nil || cur == nil {
			continue
		}
		ops, err := diff.Diff(d, single(prev), single(cur))
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			continue
		}
		changes := make([]string, len(ops))
		for i, op := range ops {
			changes[i] = op.String()
		}
		errs = append(errs, &dberr.MigrationConflictError{
			Table:  t.Name,
			Reason: "database differs from the last migration: " + strings.Join(changes, "; "),
		})
	}
	return errors.Join(errs...)
}

// single wraps t in a schema of its own.
func single(t *schema.Table) *schema.Schema {
	return &schema.Schema{Tables: []*schema.Table{t}}
}
