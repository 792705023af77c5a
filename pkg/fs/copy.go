package fs

import (
	"errors"
	"fmt"
	"io"
)

// ErrNotRegular is returned by [CopyFile] when the source is a directory or
// another non-regular file.
var ErrNotRegular = errors.New("not a regular file")

// CopyFile copies src to dst through fsys and returns the number of bytes
// written. The destination is written atomically and its parent directory
// must already exist.
func CopyFile(fsys FS, src, dst string) (int64, error) {
	f, err := fsys.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", src, err)
	}

	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("copy %s: %w", src, ErrNotRegular)
	}

	counter := &countingReader{r: f}

	err = fsys.WriteFileAtomic(dst, counter)
	if err != nil {
		return 0, err
	}

	return counter.n, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)

	return n, err
}
