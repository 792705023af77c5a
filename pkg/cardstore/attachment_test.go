package cardstore_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/cardstore/pkg/cardstore"
	"github.com/calvinalkan/cardstore/pkg/fs"
)

func Test_AddAttachment_Lists_Oldest_First(t *testing.T) {
	t.Parallel()

	s := openTestStore(t).store
	ctx := t.Context()

	card := mustCreate(t, s, cardstore.NewCard{Title: "Design"})

	first, err := s.AddAttachment(ctx, cardstore.NewAttachment{CardID: card.ID, FileName: "a.pdf", MimeType: "application/pdf", SizeBytes: 10})
	require.NoError(t, err)

	second, err := s.AddAttachment(ctx, cardstore.NewAttachment{CardID: card.ID, FileName: "link", RemoteURL: "https://example.com/doc"})
	require.NoError(t, err)

	list, err := s.ListAttachments(ctx, card.ID)
	require.NoError(t, err)

	if diff := cmp.Diff([]cardstore.Attachment{first, second}, list); diff != "" {
		t.Fatalf("attachments mismatch (-want +got):\n%s", diff)
	}

	if second.RemoteURL != "https://example.com/doc" || second.LocalPath != "" {
		t.Fatalf("remote attachment=%+v", second)
	}
}

func Test_AddAttachment_Rejects_Invalid_Input(t *testing.T) {
	t.Parallel()

	s := openTestStore(t).store
	card := mustCreate(t, s, cardstore.NewCard{Title: "Design"})

	tests := []struct {
		name string
		in   cardstore.NewAttachment
		want error
	}{
		{"EmptyName", cardstore.NewAttachment{CardID: card.ID, FileName: " "}, cardstore.ErrInvalidArgument},
		{"NegativeSize", cardstore.NewAttachment{CardID: card.ID, FileName: "x", SizeBytes: -1}, cardstore.ErrInvalidArgument},
		{"MissingCard", cardstore.NewAttachment{CardID: 999, FileName: "x"}, cardstore.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.AddAttachment(t.Context(), tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err=%v, want=%v", err, tt.want)
			}
		})
	}
}

func Test_DeleteAttachment_Removes_Row_Only(t *testing.T) {
	t.Parallel()

	env := openTestStore(t)
	s := env.store
	ctx := t.Context()

	card := mustCreate(t, s, cardstore.NewCard{Title: "Design"})
	src := writeFile(t, filepath.Join(env.dir, "in", "notes.txt"), "hello")

	att, err := s.ImportFile(ctx, card.ID, src)
	require.NoError(t, err)

	require.NoError(t, s.DeleteAttachment(ctx, att.ID))

	_, err = s.GetAttachment(ctx, att.ID)
	if !errors.Is(err, cardstore.ErrNotFound) {
		t.Fatalf("get after delete err=%v, want ErrNotFound", err)
	}

	if _, statErr := os.Stat(att.LocalPath); statErr != nil {
		t.Fatalf("payload should remain: %v", statErr)
	}

	err = s.DeleteAttachment(ctx, att.ID)
	if !errors.Is(err, cardstore.ErrNotFound) {
		t.Fatalf("second delete err=%v, want ErrNotFound", err)
	}
}

func Test_ImportFile_Copies_Into_Card_Storage_Path(t *testing.T) {
	t.Parallel()

	env := openTestStore(t)
	s := env.store
	ctx := t.Context()

	project := mustCreate(t, s, cardstore.NewCard{Title: "Project", Kind: cardstore.KindFolder})
	card := mustCreate(t, s, cardstore.NewCard{Title: "Design/Docs", ParentID: &project.ID})
	src := writeFile(t, filepath.Join(env.dir, "in", "notes.txt"), "hello world")

	first, err := s.ImportFile(ctx, card.ID, src)
	require.NoError(t, err)

	second, err := s.ImportFile(ctx, card.ID, src)
	require.NoError(t, err)

	wantDir := filepath.Join(env.dir, "storage",
		strconv.FormatInt(project.ID, 10)+"_Project",
		strconv.FormatInt(card.ID, 10)+"_Design_Docs")

	for _, att := range []cardstore.Attachment{first, second} {
		if filepath.Dir(att.LocalPath) != wantDir {
			t.Fatalf("local path=%q, want dir %q", att.LocalPath, wantDir)
		}

		if !strings.HasSuffix(att.LocalPath, "_notes.txt") {
			t.Fatalf("local path=%q, want suffix _notes.txt", att.LocalPath)
		}

		if att.FileName != "notes.txt" || att.SizeBytes != 11 {
			t.Fatalf("attachment=%+v", att)
		}

		if !strings.HasPrefix(att.MimeType, "text/plain") {
			t.Fatalf("mime=%q, want text/plain", att.MimeType)
		}

		data, readErr := os.ReadFile(att.LocalPath)
		require.NoError(t, readErr)

		if string(data) != "hello world" {
			t.Fatalf("payload=%q", data)
		}
	}

	if first.LocalPath == second.LocalPath {
		t.Fatal("two imports of the same file share a path")
	}

	dir, err := s.CardStoragePath(ctx, card.ID)
	require.NoError(t, err)

	if dir != wantDir {
		t.Fatalf("CardStoragePath=%q, want=%q", dir, wantDir)
	}
}

func Test_ImportFile_Returns_NotFound_When_Source_Missing(t *testing.T) {
	t.Parallel()

	env := openTestStore(t)
	card := mustCreate(t, env.store, cardstore.NewCard{Title: "Design"})

	_, err := env.store.ImportFile(t.Context(), card.ID, filepath.Join(env.dir, "nope.txt"))
	if !errors.Is(err, cardstore.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}

func Test_ImportFile_Rejects_Directory_Source(t *testing.T) {
	t.Parallel()

	env := openTestStore(t)
	card := mustCreate(t, env.store, cardstore.NewCard{Title: "Design"})

	_, err := env.store.ImportFile(t.Context(), card.ID, env.dir)
	if !errors.Is(err, cardstore.ErrInvalidArgument) {
		t.Fatalf("err=%v, want ErrInvalidArgument", err)
	}
}

func Test_ImportFile_Returns_IO_Error_And_Records_Nothing_When_Copy_Fails(t *testing.T) {
	t.Parallel()

	env := openTestStore(t)
	s := env.store
	ctx := t.Context()

	card := mustCreate(t, s, cardstore.NewCard{Title: "Design"})
	src := writeFile(t, filepath.Join(env.dir, "in", "notes.txt"), "hello")

	env.fs.Fail(fs.OpWrite, "_notes.txt")

	_, err := s.ImportFile(ctx, card.ID, src)
	if !errors.Is(err, cardstore.ErrIO) {
		t.Fatalf("err=%v, want ErrIO", err)
	}

	if !fs.IsInjected(err) {
		t.Fatalf("err=%v, want injected cause", err)
	}

	list, err := s.ListAttachments(ctx, card.ID)
	require.NoError(t, err)

	if len(list) != 0 {
		t.Fatalf("attachments=%+v, want none", list)
	}

	dir, err := s.CardStoragePath(ctx, card.ID)
	require.NoError(t, err)

	if got := dirEntries(t, dir); len(got) != 0 {
		t.Fatalf("storage dir has %v, want empty", got)
	}
}

func Test_ImportFile_Returns_NotFound_When_Card_Missing(t *testing.T) {
	t.Parallel()

	env := openTestStore(t)
	src := writeFile(t, filepath.Join(env.dir, "in", "notes.txt"), "hello")

	_, err := env.store.ImportFile(t.Context(), 404, src)
	if !errors.Is(err, cardstore.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
}
