package testengine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/kestrel-ci/kestrel/internal/target"
)

// enumerationTimeout bounds a single test enumeration run.
const enumerationTimeout = 30 * time.Second

// EnumerateTests returns the sub-test names of a target by launching
// it with --list-tests, caching the result per target name. The cache
// entry survives until evicted or refreshed; callers that mutate a
// target's binary refresh explicitly.
func (e *Engine) EnumerateTests(t *target.TestTarget) ([]string, error) {
	if tests, ok := e.enumerations.Get(t.Name()); ok {
		return tests, nil
	}

	tests, err := e.enumerate(t.Command())
	if err != nil {
		return nil, fmt.Errorf("enumerate tests for %q: %w", t.Name(), err)
	}
	e.enumerations.Add(t.Name(), tests)
	return tests, nil
}

// RefreshEnumerations drops and re-populates the enumeration cache for
// the given targets. Enumeration failures are logged and skipped; a
// target that cannot enumerate simply stays uncached.
func (e *Engine) RefreshEnumerations(targets []*target.TestTarget) {
	for _, t := range targets {
		e.enumerations.Remove(t.Name())
		if _, err := e.EnumerateTests(t); err != nil {
			slog.Warn("test enumeration failed", "target", t.Name(), "error", err)
		}
	}
}

func (e *Engine) enumerate(command string) ([]string, error) {
	argv := commandArgv(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty launch command")
	}

	ctx, cancel := context.WithTimeout(context.Background(), enumerationTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, argv[0], append(argv[1:], "--list-tests")...)
	cmd.Dir = e.repoRoot

	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var tests []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		tests = append(tests, line)
	}
	return tests, scanner.Err()
}
