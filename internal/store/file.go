package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore serves images from a directory tree laid out as <root>/<bucket>/<key>.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("file store root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("file store root %s is not a directory", dir)
	}
	return &FileStore{root: dir}, nil
}

// Fetch reads the file named by loc.
func (s *FileStore) Fetch(ctx context.Context, loc Locator) ([]byte, error) {
	if err := loc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(s.root, filepath.FromSlash(loc.Bucket), filepath.FromSlash(loc.Key))
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: %s", ErrNotFound, loc)
	case errors.Is(err, fs.ErrPermission):
		return nil, fmt.Errorf("%w: %s", ErrAccessDenied, loc)
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}
	return data, nil
}
