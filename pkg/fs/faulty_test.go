package fs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
)

func Test_Faulty_Passes_Through_When_No_Rules(t *testing.T) {
	t.Parallel()

	fs := NewFaulty(NewReal())
	path := filepath.Join(t.TempDir(), "a.txt")

	if err := fs.WriteFileAtomic(path, strings.NewReader("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if string(data) != "x" {
		t.Fatalf("data=%q", data)
	}
}

func Test_Faulty_Fails_Matching_Path_With_Injected_EIO(t *testing.T) {
	t.Parallel()

	fs := NewFaulty(NewReal())
	dir := t.TempDir()
	fs.Fail(OpWrite, "blocked")

	err := fs.WriteFileAtomic(filepath.Join(dir, "blocked.txt"), strings.NewReader("x"))
	if !IsInjected(err) {
		t.Fatalf("err=%v, want injected", err)
	}

	if !errors.Is(err, syscall.EIO) {
		t.Fatalf("err=%v, want EIO", err)
	}

	if _, statErr := os.Stat(filepath.Join(dir, "blocked.txt")); !os.IsNotExist(statErr) {
		t.Fatalf("file written despite injected failure: %v", statErr)
	}

	if err := fs.WriteFileAtomic(filepath.Join(dir, "other.txt"), strings.NewReader("x")); err != nil {
		t.Fatalf("unrelated path failed: %v", err)
	}

	if got := fs.Hits(OpWrite); got != 1 {
		t.Fatalf("hits=%d, want=1", got)
	}
}

func Test_Faulty_FailN_Stops_After_N_Failures(t *testing.T) {
	t.Parallel()

	fs := NewFaulty(NewReal())
	dir := t.TempDir()
	fs.FailN(OpMkdirAll, "", 1)

	if err := fs.MkdirAll(filepath.Join(dir, "a"), 0o755); err == nil {
		t.Fatal("first mkdir succeeded, want failure")
	}

	if err := fs.MkdirAll(filepath.Join(dir, "a"), 0o755); err != nil {
		t.Fatalf("second mkdir: %v", err)
	}
}

func Test_CopyFile_Surfaces_Injected_Write_Failure(t *testing.T) {
	t.Parallel()

	fs := NewFaulty(NewReal())
	dir := t.TempDir()
	src := filepath.Join(dir, "src")

	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	fs.Fail(OpWrite, "dst")

	_, err := CopyFile(fs, src, filepath.Join(dir, "dst"))
	if !IsInjected(err) {
		t.Fatalf("err=%v, want injected", err)
	}
}
