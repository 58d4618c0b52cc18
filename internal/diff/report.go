package diff

import (
	"fmt"
	"io"
	"strings"
)

// Report writes ops and the extras kept alongside them in a human-readable
// form.
func Report(w io.Writer, ops []Operation, extras ...Extra) error {
	var b strings.Builder
	if len(ops) == 0 {
		b.WriteString("No differences found.\n")
	} else {
		fmt.Fprintf(&b, "=== Planned Operations (%d) ===\n\n", len(ops))
		for i, op := range ops {
			fmt.Fprintf(&b, "%3d. %s\n", i+1, op)
		}
	}
	if len(extras) > 0 {
		fmt.Fprintf(&b, "\n=== Extra Objects Kept (%d) ===\n\n", len(extras))
		for _, e := range extras {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
