package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FS stores archives as <hash>.<ext> files in a single directory.
type FS struct {
	Dir       string
	Extension string
}

// NewFS returns an FS rooted at dir, creating the directory if needed.
func NewFS(dir, ext string) (*FS, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory '%s': %w", dir, err)
	}
	return &FS{Dir: dir, Extension: ext}, nil
}

// Location is the path of the archive for hash.
func (s *FS) Location(hash string) string {
	return filepath.Join(s.Dir, objectName(hash, s.Extension))
}

func (s *FS) Exists(_ context.Context, hash string) (bool, error) {
	_, err := os.Stat(s.Location(hash))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Put writes r to a temporary file next to the destination and renames it
// into place, so readers see either no archive or a complete one.
func (s *FS) Put(ctx context.Context, hash string, r io.Reader, _ int64) error {
	dest := s.Location(hash)
	tmp, err := os.CreateTemp(s.Dir, filepath.Base(dest)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create file for '%s': %w", dest, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	if _, err := io.Copy(tmp, &contextReader{ctx: ctx, r: r}); err != nil {
		cleanup()
		return fmt.Errorf("failed to write downloaded content to '%s': %w", dest, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to flush '%s': %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close '%s': %w", tmpName, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move '%s' into place: %w", dest, err)
	}
	return nil
}

func (s *FS) Open(_ context.Context, hash string) (Archive, error) {
	f, err := os.Open(s.Location(hash))
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileArchive{File: f, size: info.Size()}, nil
}

type fileArchive struct {
	*os.File
	size int64
}

func (a *fileArchive) Size() int64 { return a.size }

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
