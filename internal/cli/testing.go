package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// CLI runs cardstore commands against a board in its own temp directory.
// Each CLI gets a fresh database under Dir/.cardstore on first use.
type CLI struct {
	t   *testing.T
	Dir string

	// Env is the environment seen by config loading (XDG_CONFIG_HOME etc).
	Env map[string]string
}

// NewCLI returns a CLI with an empty board directory.
func NewCLI(t *testing.T) *CLI {
	t.Helper()

	return &CLI{t: t, Dir: t.TempDir(), Env: map[string]string{}}
}

// Run runs "cardstore --cwd Dir args..." and returns stdout, stderr and
// the exit code.
func (c *CLI) Run(args ...string) (string, string, int) {
	return c.RunWithInput("", args...)
}

// RunWithInput is Run with stdin, used to script the shell.
func (c *CLI) RunWithInput(stdin string, args ...string) (string, string, int) {
	var stdout, stderr bytes.Buffer

	argv := append([]string{"cardstore", "--cwd", c.Dir}, args...)
	code := Run(strings.NewReader(stdin), &stdout, &stderr, argv, c.Env, nil)

	return stdout.String(), stderr.String(), code
}

// MustRun fails the test unless the command exits 0. It returns trimmed
// stdout.
func (c *CLI) MustRun(args ...string) string {
	c.t.Helper()

	stdout, stderr, code := c.Run(args...)
	if code != 0 {
		c.t.Fatalf("cardstore %s: exit code %d\nstderr: %s", strings.Join(args, " "), code, stderr)
	}

	return strings.TrimSpace(stdout)
}

// MustFail fails the test unless the command exits non-zero with nothing
// on stdout. It returns trimmed stderr.
func (c *CLI) MustFail(args ...string) string {
	c.t.Helper()

	stdout, stderr, code := c.Run(args...)
	if code == 0 {
		c.t.Fatalf("cardstore %s: succeeded, want failure\nstdout: %s", strings.Join(args, " "), stdout)
	}

	if stdout != "" {
		c.t.Fatalf("cardstore %s: failed with output on stdout\nstdout: %s", strings.Join(args, " "), stdout)
	}

	return strings.TrimSpace(stderr)
}

// Create creates a card and returns its id.
func (c *CLI) Create(title string, flags ...string) string {
	c.t.Helper()

	return c.MustRun(append([]string{"create", title}, flags...)...)
}

// Field returns the value of "name: value" in the output of show.
func (c *CLI) Field(id, name string) string {
	c.t.Helper()

	out := c.MustRun("show", id)

	for _, line := range strings.Split(out, "\n") {
		if value, ok := strings.CutPrefix(line, name+": "); ok {
			return value
		}
	}

	c.t.Fatalf("show %s: no %q field\n%s", id, name, out)

	return ""
}

// DataDir returns the default data directory of the board.
func (c *CLI) DataDir() string {
	return filepath.Join(c.Dir, ".cardstore")
}

// WriteFile writes content to rel under Dir, creating parent directories,
// and returns the absolute path. Used for attachment sources, archives and
// project config files.
func (c *CLI) WriteFile(rel, content string) string {
	c.t.Helper()

	path := filepath.Join(c.Dir, rel)

	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		c.t.Fatalf("mkdir for %s: %v", rel, err)
	}

	err = os.WriteFile(path, []byte(content), 0o600)
	if err != nil {
		c.t.Fatalf("write %s: %v", rel, err)
	}

	return path
}

// AssertContains reports an error when content lacks substr.
func AssertContains(t *testing.T, content, substr string) {
	t.Helper()

	if !strings.Contains(content, substr) {
		t.Errorf("missing %q in:\n%s", substr, content)
	}
}

// AssertNotContains reports an error when content has substr.
func AssertNotContains(t *testing.T, content, substr string) {
	t.Helper()

	if strings.Contains(content, substr) {
		t.Errorf("unexpected %q in:\n%s", substr, content)
	}
}
