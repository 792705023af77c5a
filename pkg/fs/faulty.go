package fs

import (
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"strings"
	"sync"
	"syscall"
)

// Op names an [FS] method that [Faulty] can fail.
type Op string

// Operations that can be failed.
const (
	OpOpen      Op = "open"
	OpReadFile  Op = "readfile"
	OpWrite     Op = "write"
	OpReadDir   Op = "readdir"
	OpMkdirAll  Op = "mkdirall"
	OpMkdirTemp Op = "mkdirtemp"
	OpStat      Op = "stat"
	OpRemove    Op = "remove"
	OpRemoveAll Op = "removeall"
)

// InjectedError marks an error as intentionally injected by [Faulty].
// It wraps the underlying error so errors.Is/As continue to work.
type InjectedError struct {
	Err error
}

func (e *InjectedError) Error() string {
	return e.Err.Error()
}

func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any error it wraps) was produced by
// [Faulty].
func IsInjected(err error) bool {
	var injected *InjectedError

	return errors.As(err, &injected)
}

type faultRule struct {
	op       Op
	contains string
	remain   int // <0 means unlimited
}

// Faulty wraps an [FS] and fails operations whose path contains a registered
// substring. It is safe for concurrent use.
//
// Injected failures are *fs.PathError values with EIO wrapped in
// [InjectedError], so callers see an ordinary I/O error.
type Faulty struct {
	inner FS

	mu    sync.Mutex
	rules []*faultRule
	hits  map[Op]int
}

// NewFaulty returns a [Faulty] passing everything through to inner until
// rules are added.
func NewFaulty(inner FS) *Faulty {
	return &Faulty{inner: inner, hits: make(map[Op]int)}
}

// Fail makes every future op on a path containing substr fail.
// An empty substr matches every path.
func (f *Faulty) Fail(op Op, substr string) {
	f.FailN(op, substr, -1)
}

// FailN is like [Faulty.Fail] but stops failing after n injected errors.
func (f *Faulty) FailN(op Op, substr string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rules = append(f.rules, &faultRule{op: op, contains: substr, remain: n})
}

// Reset removes all rules and counters.
func (f *Faulty) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rules = nil
	f.hits = make(map[Op]int)
}

// Hits returns how many errors were injected for op.
func (f *Faulty) Hits(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.hits[op]
}

func (f *Faulty) check(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, rule := range f.rules {
		if rule.op != op || rule.remain == 0 || !strings.Contains(path, rule.contains) {
			continue
		}

		if rule.remain > 0 {
			rule.remain--
		}

		f.hits[op]++

		return &InjectedError{Err: &iofs.PathError{Op: string(op), Path: path, Err: syscall.EIO}}
	}

	return nil
}

func (f *Faulty) Open(path string) (File, error) {
	if err := f.check(OpOpen, path); err != nil {
		return nil, err
	}

	return f.inner.Open(path)
}

func (f *Faulty) ReadFile(path string) ([]byte, error) {
	if err := f.check(OpReadFile, path); err != nil {
		return nil, err
	}

	return f.inner.ReadFile(path)
}

func (f *Faulty) WriteFileAtomic(path string, r io.Reader) error {
	if err := f.check(OpWrite, path); err != nil {
		return err
	}

	return f.inner.WriteFileAtomic(path, r)
}

func (f *Faulty) ReadDir(path string) ([]os.DirEntry, error) {
	if err := f.check(OpReadDir, path); err != nil {
		return nil, err
	}

	return f.inner.ReadDir(path)
}

func (f *Faulty) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check(OpMkdirAll, path); err != nil {
		return err
	}

	return f.inner.MkdirAll(path, perm)
}

func (f *Faulty) MkdirTemp(dir, pattern string) (string, error) {
	if err := f.check(OpMkdirTemp, dir); err != nil {
		return "", err
	}

	return f.inner.MkdirTemp(dir, pattern)
}

func (f *Faulty) Stat(path string) (os.FileInfo, error) {
	if err := f.check(OpStat, path); err != nil {
		return nil, err
	}

	return f.inner.Stat(path)
}

func (f *Faulty) Exists(path string) (bool, error) {
	if err := f.check(OpStat, path); err != nil {
		return false, err
	}

	return f.inner.Exists(path)
}

func (f *Faulty) Remove(path string) error {
	if err := f.check(OpRemove, path); err != nil {
		return err
	}

	return f.inner.Remove(path)
}

func (f *Faulty) RemoveAll(path string) error {
	if err := f.check(OpRemoveAll, path); err != nil {
		return err
	}

	return f.inner.RemoveAll(path)
}

var _ FS = (*Faulty)(nil)
