// Package disk stores file blobs in a local directory.
package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-file-vault/internal/domain"
)

// Store keeps one file per key directly under its base directory.
type Store struct {
	baseDir string
}

// NewStore creates baseDir when it does not exist yet.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload directory: %w", err)
	}
	return &Store{baseDir: abs}, nil
}

// Put streams r into the blob named key and returns its absolute path. The data is written
// to a temp file first and renamed into place, so a failed write never leaves a partial blob.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.baseDir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	return path, nil
}

// Open returns the blob contents. A missing blob yields domain.ErrNotFound.
func (s *Store) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("blob %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}
	return f, nil
}

// Delete removes the blob. A missing blob yields domain.ErrNotFound.
func (s *Store) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("blob %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// path rejects keys that could escape the base directory.
func (s *Store) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || filepath.Base(key) != key {
		return "", fmt.Errorf("invalid blob key %q: %w", key, domain.ErrBadRequest)
	}
	return filepath.Join(s.baseDir, key), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
