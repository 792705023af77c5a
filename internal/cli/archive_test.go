package cli_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/cardstore/internal/cli"
)

func Test_Export_Import_Roundtrip_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("create", "Project", "-k", "folder", "--color", "blue")
	c.MustRun("create", "Sub", "-k", "folder", "--parent", "1")
	c.MustRun("create", "Task card", "--parent", "1")
	c.WriteFile("notes.txt", "meeting notes")
	c.MustRun("attach", "1", "notes.txt")
	c.MustRun("attach", "2", "--url", "https://example.com/board")

	out := c.MustRun("export", "1", "out/project.zip")
	if got, want := out, "exported 2 folders, 2 attachments"; got != want {
		t.Errorf("export=%q, want=%q", got, want)
	}

	_, err := os.Stat(filepath.Join(c.Dir, "out", "project.zip"))
	if err != nil {
		t.Fatalf("archive not written: %v", err)
	}

	c.MustRun("create", "Archive", "-k", "folder", "--column", "3")

	rootID := c.MustRun("import", "4", "out/project.zip")
	if got, want := rootID, "5"; got != want {
		t.Fatalf("import root=%q, want=%q", got, want)
	}

	tree := strings.Split(c.MustRun("tree", "4"), "\n")
	if got, want := len(tree), 3; got != want {
		t.Fatalf("tree lines=%d, want=%d\n%s", got, want, strings.Join(tree, "\n"))
	}

	cli.AssertContains(t, tree[1], "Project [blue]")
	cli.AssertContains(t, tree[2], "Sub")
	cli.AssertContains(t, c.MustRun("show", "5"), "column: 3")

	atts := c.MustRun("attachments", "5")
	cli.AssertContains(t, atts, "notes.txt")
	cli.AssertContains(t, atts, filepath.Join(c.DataDir(), "storage"))
	cli.AssertContains(t, c.MustRun("attachments", "6"), "https://example.com/board")

	stored := strings.Fields(atts)
	payload, err := os.ReadFile(stored[len(stored)-1])
	if err != nil {
		t.Fatalf("read imported payload: %v", err)
	}

	if got, want := string(payload), "meeting notes"; got != want {
		t.Errorf("payload=%q, want=%q", got, want)
	}
}

func Test_Export_Warns_About_Missing_Files_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("create", "Project", "-k", "folder")
	c.WriteFile("gone.txt", "soon gone")
	c.MustRun("attach", "1", "gone.txt")

	fields := strings.Fields(c.MustRun("attachments", "1"))

	err := os.Remove(fields[len(fields)-1])
	if err != nil {
		t.Fatalf("remove stored copy: %v", err)
	}

	stdout, stderr, exitCode := c.Run("export", "1", "p.zip")
	if got, want := exitCode, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d\nstderr: %s", got, want, stderr)
	}

	cli.AssertContains(t, stdout, "exported 1 folders, 1 attachments")
	cli.AssertContains(t, stderr, "warning: 1 attachment files were missing")

	c.MustRun("create", "Target", "-k", "folder")

	stdout, stderr, exitCode = c.Run("import", "2", "p.zip")
	if got, want := exitCode, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d\nstderr: %s", got, want, stderr)
	}

	if got, want := strings.TrimSpace(stdout), "3"; got != want {
		t.Errorf("import root=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, "warning: 1 attachments were restored as metadata only")
	cli.AssertContains(t, c.MustRun("attachments", "3"), "(metadata only)")
}

func Test_Archive_Commands_Reject_Bad_Input_When_Invoked(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name string
		args []string
		want string
	}{
		{name: "ExportNoPath", args: []string{"export", "1"}, want: "archive path is required"},
		{name: "ExportMissingFolder", args: []string{"export", "9", "x.zip"}, want: "error: not found"},
		{name: "ImportNoPath", args: []string{"import", "1"}, want: "archive path is required"},
		{name: "ImportMissingArchive", args: []string{"import", "1", "none.zip"}, want: "error: not found"},
		{name: "ImportNotAZip", args: []string{"import", "1", "junk.zip"}, want: "malformed archive"},
		{name: "ImportMissingParent", args: []string{"import", "9", "junk.zip"}, want: "error: not found"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := cli.NewCLI(t)
			c.MustRun("create", "Folder", "-k", "folder")
			c.WriteFile("junk.zip", "this is not a zip archive")

			stderr := c.MustFail(tt.args...)
			cli.AssertContains(t, stderr, tt.want)
		})
	}
}
