package cli_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/calvinalkan/cardstore/internal/cli"
)

func Test_Tag_Lifecycle_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.MustRun("create", "Login page")
	c.MustRun("create", "Signup page")

	c.MustRun("tag", "1", "ui", "auth")
	c.MustRun("tag", "2", "ui")

	if diff := cmp.Diff("auth\nui", c.MustRun("tags", "1")); diff != "" {
		t.Errorf("card tags mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff("auth\nui", c.MustRun("tags")); diff != "" {
		t.Errorf("all tags mismatch (-want +got):\n%s", diff)
	}

	cli.AssertContains(t, c.MustRun("show", "1"), "tags: auth, ui")

	stdout, stderr, exitCode := c.Run("tag", "2", "ui")
	if got, want := exitCode, 0; got != want {
		t.Fatalf("exitCode=%d, want=%d\nstderr: %s", got, want, stderr)
	}

	if got, want := stdout, ""; got != want {
		t.Errorf("stdout=%q, want=%q", got, want)
	}

	cli.AssertContains(t, stderr, `warning: card 2 already has tag "ui"`)

	c.MustRun("tags", "--rename", "ui", "--to", "frontend")
	if diff := cmp.Diff("frontend", c.MustRun("tags", "2")); diff != "" {
		t.Errorf("renamed tag mismatch (-want +got):\n%s", diff)
	}

	stderr = c.MustFail("tags", "--rename", "auth", "--to", "frontend")
	cli.AssertContains(t, stderr, "error: already exists")

	c.MustRun("untag", "1", "auth")
	if diff := cmp.Diff("frontend", c.MustRun("tags", "1")); diff != "" {
		t.Errorf("card tags after untag mismatch (-want +got):\n%s", diff)
	}

	stderr = c.MustFail("untag", "1", "auth")
	cli.AssertContains(t, stderr, "error: not found")

	c.MustRun("tags", "--delete", "frontend")
	if got := c.MustRun("tags", "2"); got != "" {
		t.Errorf("tags after delete=%q, want empty", got)
	}

	stderr = c.MustFail("untag", "2", "missing")
	cli.AssertContains(t, stderr, `error: not found: tag "missing"`)

	stderr = c.MustFail("tags", "--rename", "auth")
	cli.AssertContains(t, stderr, "--rename requires --to")
}
