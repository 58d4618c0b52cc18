package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/zeebo/xxh3"

	"github.com/koba/rowkit/internal/database"
)

// SumFile is the integrity file of a migration directory. Its first line
// hashes the rest, each further line hashes one script file.
const SumFile = "rowkit.sum"

// ErrChecksum is returned when a migration directory does not match its
// sum file.
var ErrChecksum = errors.New("generator: migration directory checksum mismatch")

// WriteDir writes the up and down files of s into dir and refreshes the
// sum file.
func WriteDir(dir string, s *Script) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create migration directory: %w", err)
	}
	files := map[string]string{
		s.Base() + ".up.sql":   s.UpSQL(),
		s.Base() + ".down.sql": s.DownSQL(),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	sum, err := hashDir(dir)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, SumFile), []byte(sum), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", SumFile, err)
	}
	return nil
}

// ReadDir reads every script of dir in version order after checking the
// sum file. A directory without scripts yields none.
func ReadDir(dir string) ([]*Script, error) {
	ups, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, err
	}
	if len(ups) == 0 {
		return nil, nil
	}

	want, err := os.ReadFile(filepath.Join(dir, SumFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChecksum, err)
	}
	got, err := hashDir(dir)
	if err != nil {
		return nil, err
	}
	if string(want) != got {
		return nil, fmt.Errorf("%w: %s", ErrChecksum, changedFiles(string(want), got))
	}

	scripts := make([]*Script, 0, len(ups))
	for _, up := range ups {
		s, err := readScript(dir, strings.TrimSuffix(filepath.Base(up), ".up.sql"))
		if err != nil {
			return nil, err
		}
		scripts = append(scripts, s)
	}
	return scripts, nil
}

func readScript(dir, base string) (*Script, error) {
	version, name, ok := strings.Cut(base, "_")
	if !ok {
		return nil, fmt.Errorf("malformed migration file name %q", base)
	}
	id, err := ulid.ParseStrict(version)
	if err != nil {
		return nil, fmt.Errorf("migration %s: %w", base, err)
	}
	s := &Script{Version: id, Name: name}
	for _, part := range []struct {
		suffix string
		steps  *[]Step
	}{{".up.sql", &s.Up}, {".down.sql", &s.Down}} {
		data, err := os.ReadFile(filepath.Join(dir, base+part.suffix))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration: %w", err)
		}
		steps, err := parseSteps(string(data))
		if err != nil {
			return nil, fmt.Errorf("%s%s: %w", base, part.suffix, err)
		}
		*part.steps = steps
	}
	return s, nil
}

// hashDir renders the sum file content for the scripts in dir.
func hashDir(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read migration directory: %w", err)
	}
	var lines strings.Builder
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		fmt.Fprintf(&lines, "%s %016x\n", e.Name(), xxh3.Hash(data))
	}
	return fmt.Sprintf("total %016x\n", xxh3.HashString(lines.String())) + lines.String(), nil
}

// changedFiles names the files whose lines differ between two sum files.
func changedFiles(want, got string) string {
	seen := map[string]string{}
	for _, line := range strings.Split(want, "\n")[1:] {
		if name, sum, ok := strings.Cut(line, " "); ok {
			seen[name] = sum
		}
	}
	var changed []string
	for _, line := range strings.Split(got, "\n")[1:] {
		name, sum, ok := strings.Cut(line, " ")
		if !ok {
			continue
		}
		if seen[name] != sum {
			changed = append(changed, name)
		}
		delete(seen, name)
	}
	for name := range seen {
		changed = append(changed, name+" (missing)")
	}
	if len(changed) == 0 {
		return SumFile
	}
	return strings.Join(changed, ", ")
}

// Apply runs the up steps of s in one transaction. Backends that commit
// DDL implicitly, such as MySQL, cannot roll back steps that already ran.
func Apply(ctx context.Context, b database.Beginner, s *Script) error {
	return run(ctx, b, s.Up)
}

// Revert runs the down steps of s in one transaction. Scripts with
// irreversible steps fail with ErrIrreversible before anything runs.
func Revert(ctx context.Context, b database.Beginner, s *Script) error {
	if s.Irreversible() {
		return fmt.Errorf("%w: %s", ErrIrreversible, s.Base())
	}
	return run(ctx, b, s.Down)
}

func run(ctx context.Context, b database.Beginner, steps []Step) error {
	return database.WithTx(ctx, b, func(tx *database.Tx) error {
		for i, st := range steps {
			for _, stmt := range st.Statements {
				if _, err := tx.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("step %d (%s): %w", i+1, st.Summary, err)
				}
			}
		}
		return nil
	})
}
