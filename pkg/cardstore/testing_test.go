package cardstore_test

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/calvinalkan/cardstore/pkg/cardstore"
	"github.com/calvinalkan/cardstore/pkg/fs"
)

// stepClock returns a strictly increasing time on every call so that
// creation-time ordering is deterministic.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(time.Millisecond)

	return c.now
}

type testEnv struct {
	store   *cardstore.Store
	dir     string
	tempDir string
	fs      *fs.Faulty
}

type envOption func(*cardstore.Options)

func withForeignKeys(on bool) envOption {
	return func(o *cardstore.Options) { o.ForeignKeys = on }
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func openTestStore(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	dir := t.TempDir()
	tempDir := filepath.Join(dir, "tmp")

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		t.Fatalf("create temp dir: %v", err)
	}

	faulty := fs.NewFaulty(fs.NewReal())

	o := cardstore.Options{
		DBPath:      filepath.Join(dir, "cards.sqlite"),
		StorageDir:  filepath.Join(dir, "storage"),
		TempDir:     tempDir,
		ForeignKeys: true,
		FS:          faulty,
		Logger:      quietLogger(),
		Now:         newStepClock().Now,
	}

	for _, opt := range opts {
		opt(&o)
	}

	s, err := cardstore.Open(t.Context(), o)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return &testEnv{store: s, dir: dir, tempDir: tempDir, fs: faulty}
}

// forEachFKMode runs fn once with foreign keys enforced and once without.
func forEachFKMode(t *testing.T, fn func(t *testing.T, env *testEnv)) {
	t.Helper()

	for _, on := range []bool{true, false} {
		name := "FKOff"
		if on {
			name = "FKOn"
		}

		t.Run(name, func(t *testing.T) {
			t.Parallel()

			fn(t, openTestStore(t, withForeignKeys(on)))
		})
	}
}

func mustCreate(t *testing.T, s *cardstore.Store, in cardstore.NewCard) cardstore.Card {
	t.Helper()

	if in.ColumnID == 0 {
		in.ColumnID = 1
	}

	card, err := s.CreateCard(t.Context(), in)
	if err != nil {
		t.Fatalf("create card %q: %v", in.Title, err)
	}

	return card
}

func mustGet(t *testing.T, s *cardstore.Store, id int64) cardstore.Card {
	t.Helper()

	card, err := s.GetCard(t.Context(), id)
	if err != nil {
		t.Fatalf("get card %d: %v", id, err)
	}

	return card
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}

	return path
}

// groupLayout lists the group's active cards as "title@order".
func groupLayout(t *testing.T, s *cardstore.Store, columnID int64, parentID *int64) []string {
	t.Helper()

	cards, err := s.ListCards(t.Context(), cardstore.ListOptions{ColumnID: &columnID, ParentID: parentID})
	if err != nil {
		t.Fatalf("list cards: %v", err)
	}

	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.Title+"@"+strconv.Itoa(c.Order))
	}

	return out
}

func ptr[T any](v T) *T {
	return &v
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	return names
}
