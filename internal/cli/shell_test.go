package cli_test

import (
	"strings"
	"testing"

	"github.com/calvinalkan/cardstore/internal/cli"
)

func Test_Shell_Runs_Commands_From_Input_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	script := strings.Join([]string{
		"create Alpha",
		"create 'Beta card' --column 2",
		"# comments and blank lines are skipped",
		"",
		"ls --column 2",
		"bogus",
		"show 99",
		"shell",
		"exit",
		"create Never",
	}, "\n")

	stdout, stderr, exitCode := c.RunWithInput(script, "shell")

	if got, want := exitCode, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d\nstderr: %s", got, want, stderr)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if got, want := len(lines), 3; got != want {
		t.Fatalf("stdout lines=%d, want=%d\n%s", got, want, stdout)
	}

	if got, want := lines[0], "1"; got != want {
		t.Errorf("line 0=%q, want=%q", got, want)
	}

	if got, want := lines[1], "2"; got != want {
		t.Errorf("line 1=%q, want=%q", got, want)
	}

	cli.AssertContains(t, lines[2], "Beta card")

	cli.AssertContains(t, stderr, "error: unknown command: bogus")
	cli.AssertContains(t, stderr, "error: not found")
	cli.AssertContains(t, stderr, "already in a shell")

	assertIDs(t, c.MustRun("ls", "-r", "--sort", "title"), "1", "2")
}

func Test_Shell_Help_And_Quoting_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)

	stdout, stderr, exitCode := c.RunWithInput("help\ncreate \"unterminated\n", "shell")

	if got, want := exitCode, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d\nstderr: %s", got, want, stderr)
	}

	cli.AssertContains(t, stdout, "Commands:")
	cli.AssertContains(t, stdout, "shell")
	cli.AssertContains(t, stderr, "error: invalid argument")

	if got := c.MustRun("ls"); got != "" {
		t.Errorf("ls=%q, want empty", got)
	}
}
