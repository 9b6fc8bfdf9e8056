// Package billy provides a meld ObjectStore over a go-billy filesystem.
// Buckets map to top-level directories, so osfs serves as a local storage
// emulator and memfs as an in-memory store for tests.
package billy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/zoobzio/meld"
)

// Store implements meld.ObjectStore on a billy.Filesystem.
// Content types are accepted but not persisted.
type Store struct {
	fs billy.Filesystem
}

// New creates a Store over fs.
func New(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// NewOS creates a Store rooted at dir on the host filesystem.
func NewOS(dir string) *Store {
	return New(osfs.New(dir))
}

// NewMemory creates an in-memory Store.
func NewMemory() *Store {
	return New(memfs.New())
}

// Filesystem returns the underlying filesystem.
func (s *Store) Filesystem() billy.Filesystem {
	return s.fs
}

// Open returns a reader for the file backing path.
func (s *Store) Open(_ context.Context, p string) (io.ReadCloser, error) {
	name, err := fsPath(p)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", meld.ErrNotFound, p)
		}
		return nil, fmt.Errorf("billy: open %q: %w", name, err)
	}
	return f, nil
}

// Create truncates or creates the file backing path, creating parent directories.
func (s *Store) Create(_ context.Context, p, _ string) (io.WriteCloser, error) {
	name, err := fsPath(p)
	if err != nil {
		return nil, err
	}
	if dir := path.Dir(name); dir != "." {
		if err := s.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("billy: mkdirall %q: %w", dir, err)
		}
	}
	f, err := s.fs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("billy: create %q: %w", name, err)
	}
	return f, nil
}

// fsPath maps /bucket/object to bucket/object. Objects that resolve outside
// their bucket, or to the bucket itself, are rejected.
func fsPath(p string) (string, error) {
	bucket, object, err := meld.SplitPath(p)
	if err != nil {
		return "", err
	}
	if object == "" {
		return "", fmt.Errorf("%w: no object in %q", meld.ErrInvalidPath, p)
	}
	name := path.Join(bucket, object)
	if !strings.HasPrefix(name, bucket+"/") {
		return "", fmt.Errorf("%w: %q leaves bucket %q", meld.ErrInvalidPath, p, bucket)
	}
	return name, nil
}

var _ meld.ObjectStore = (*Store)(nil)
