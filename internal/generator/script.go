package generator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/koba/rowkit/internal/dberr"
	"github.com/koba/rowkit/internal/diff"
)

// ErrIrreversible is returned when reverting a script that drops data.
var ErrIrreversible = errors.New("generator: migration is irreversible")

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_]*$`)

// Step is the DDL of one operation.
type Step struct {
	Kind diff.OpKind

	// Summary describes the operation, starting with its kind.
	Summary    string
	Statements []string

	// Irreversible marks a down step whose operation has no inverse.
	Irreversible bool
}

// Script is a versioned migration: the up steps in plan order and the down
// steps undoing them in reverse.
type Script struct {
	Version ulid.ULID
	Name    string
	Up      []Step
	Down    []Step
}

// Irreversible reports whether any down step cannot be replayed.
func (s *Script) Irreversible() bool {
	for _, st := range s.Down {
		if st.Irreversible {
			return true
		}
	}
	return false
}

// Base returns the file name stem, "<version>_<name>".
func (s *Script) Base() string {
	return s.Version.String() + "_" + s.Name
}

// Plan renders ops into a new script named name. Names are lower case
// letters, digits and underscores.
func (g *Generator) Plan(name string, ops []diff.Operation) (*Script, error) {
	if !namePattern.MatchString(name) {
		return nil, dberr.InvalidArgument("name", "migration name %q must match %s", name, namePattern)
	}
	if len(ops) == 0 {
		return nil, dberr.InvalidArgument("operations", "nothing to migrate")
	}
	version, err := ulid.New(ulid.Timestamp(g.now()), g.entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration version: %w", err)
	}

	s := &Script{Version: version, Name: name}
	for _, op := range ops {
		stmts, err := g.Statements(op)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		s.Up = append(s.Up, Step{Kind: op.Kind, Summary: op.String(), Statements: stmts})
	}
	for i := len(ops) - 1; i >= 0; i-- {
		inv, ok := g.Inverse(ops[i])
		if !ok {
			s.Down = append(s.Down, Step{Kind: ops[i].Kind, Summary: ops[i].String(), Irreversible: true})
			continue
		}
		stmts, err := g.Statements(inv)
		if err != nil {
			return nil, fmt.Errorf("inverse of %s: %w", ops[i], err)
		}
		s.Down = append(s.Down, Step{Kind: inv.Kind, Summary: inv.String(), Statements: stmts})
	}
	return s, nil
}

const (
	stepPrefix   = "-- +step "
	irreversible = "-- irreversible"
)

// UpSQL renders the up steps as a SQL file.
func (s *Script) UpSQL() string { return s.render("up", s.Up) }

// DownSQL renders the down steps as a SQL file. Irreversible steps appear
// as markers without statements.
func (s *Script) DownSQL() string { return s.render("down", s.Down) }

func (s *Script) render(direction string, steps []Step) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- rowkit %s %s %s\n", s.Version, s.Name, direction)
	for _, st := range steps {
		fmt.Fprintf(&b, "\n%s%s\n", stepPrefix, st.Summary)
		if st.Irreversible {
			b.WriteString(irreversible + "\n")
		}
		for _, stmt := range st.Statements {
			b.WriteString(stmt + ";\n")
		}
	}
	return b.String()
}

// parseSteps reads the steps of a file written by render.
func parseSteps(data string) ([]Step, error) {
	var steps []Step
	var stmt []string
	for n, line := range strings.Split(data, "\n") {
		switch {
		case strings.HasPrefix(line, stepPrefix):
			if len(stmt) > 0 {
				return nil, fmt.Errorf("line %d: unterminated statement", n+1)
			}
			summary := strings.TrimPrefix(line, stepPrefix)
			kind, _, _ := strings.Cut(summary, " ")
			k, err := diff.ParseOpKind(kind)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n+1, err)
			}
			steps = append(steps, Step{Kind: k, Summary: summary})
		case line == irreversible:
			if len(steps) == 0 {
				return nil, fmt.Errorf("line %d: marker outside a step", n+1)
			}
			steps[len(steps)-1].Irreversible = true
		case len(stmt) == 0 && (strings.TrimSpace(line) == "" || strings.HasPrefix(line, "--")):
		default:
			if len(steps) == 0 {
				return nil, fmt.Errorf("line %d: statement outside a step", n+1)
			}
			if strings.HasSuffix(line, ";") {
				stmt = append(stmt, strings.TrimSuffix(line, ";"))
				last := &steps[len(steps)-1]
				last.Statements = append(last.Statements, strings.Join(stmt, "\n"))
				stmt = nil
				continue
			}
			stmt = append(stmt, line)
		}
	}
	if len(stmt) > 0 {
		return nil, errors.New("unterminated statement at end of file")
	}
	return steps, nil
}
