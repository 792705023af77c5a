package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/cardstore/internal/cli"
)

func Test_Invalid_Global_Flag_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("--invalid-flag", "ls")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stdout, ""; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, "unknown flag")
	cli.AssertContains(t, stderr, "--invalid-flag")
	cli.AssertContains(t, stderr, "--cwd")
	cli.AssertContains(t, stderr, "--data-dir")
}

func Test_Bare_Command_When_Invoked(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer

	exitCode := cli.Run(nil, &stdout, &stderr, []string{"cardstore"}, nil, nil)

	if got, want := exitCode, 0; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if got, want := stderr.String(), ""; got != want {
		t.Errorf("stderr=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stdout.String(), "cardstore - hierarchical Kanban card store")
	cli.AssertContains(t, stdout.String(), "create <title>")
	cli.AssertContains(t, stdout.String(), "export <folder> <archive.zip>")

	for _, group := range []string{"Cards", "Attachments", "Tags", "Checklist", "Folder archives", "Session"} {
		cli.AssertContains(t, stdout.String(), "\n  "+group+"\n")
	}
}

func Test_Unknown_Command_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("frobnicate")

	cli.AssertContains(t, stderr, "error: unknown command: frobnicate")
	cli.AssertContains(t, stderr, "Commands:")
}

func Test_Command_Help_Does_Not_Open_Store_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("create", "--help")

	cli.AssertContains(t, stdout, "Usage: cardstore create <title> [flags]")
	cli.AssertContains(t, stdout, "--column")

	_, err := os.Stat(c.DataDir())
	if !os.IsNotExist(err) {
		t.Errorf("data dir should not exist after --help, stat err=%v", err)
	}
}

func Test_Store_Errors_Print_Reason_When_Card_Missing(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("show", "99")

	if !strings.HasPrefix(stderr, "error: not found: ") {
		t.Errorf("stderr=%q, want prefix %q", stderr, "error: not found: ")
	}

	cli.AssertContains(t, stderr, "card_id=99")
	cli.AssertNotContains(t, stderr, "not found: not found")
}

func Test_Usage_Errors_Print_Reason_Once_When_Invoked(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name string
		args []string
		want string
	}{
		{name: "MissingID", args: []string{"show"}, want: "error: invalid argument: card id is required"},
		{name: "BadID", args: []string{"show", "abc"}, want: `error: invalid argument: card id "abc" is not a valid id`},
		{name: "NoTitle", args: []string{"create"}, want: "error: invalid argument: title is required"},
		{name: "BadAttr", args: []string{"create", "x", "--attr", "novalue"}, want: `attribute "novalue" must be key=value`},
		{name: "UnknownCheckSub", args: []string{"check", "frob"}, want: `unknown check subcommand "frob"`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			stderr := c.MustFail(tt.args...)

			cli.AssertContains(t, stderr, tt.want)
			cli.AssertNotContains(t, stderr, "invalid argument: invalid argument")
		})
	}
}

func Test_Unknown_Command_Flag_Shows_Command_Help_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, exitCode := c.Run("ls", "--bogus")

	if got, want := exitCode, 1; got != want {
		t.Errorf("exitCode=%d, want=%d", got, want)
	}

	if stdout != "" {
		t.Errorf("stdout=%q, want empty", stdout)
	}

	cli.AssertContains(t, stderr, "unknown flag: --bogus")
	cli.AssertContains(t, stderr, "Usage: cardstore ls [flags]")
}

func Test_Data_Dir_Flag_Moves_Database_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("--data-dir", "boards/main", "create", "First")

	_, err := os.Stat(filepath.Join(c.Dir, "boards", "main", "cards.sqlite"))
	if err != nil {
		t.Fatalf("database not created under --data-dir: %v", err)
	}

	_, err = os.Stat(c.DataDir())
	if !os.IsNotExist(err) {
		t.Errorf("default data dir should not exist, stat err=%v", err)
	}
}

func Test_Invalid_Config_Fails_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".cardstore.json", `{"log_level": "loud"}`)

	stderr := c.MustFail("ls")

	cli.AssertContains(t, stderr, "invalid log_level")
}
