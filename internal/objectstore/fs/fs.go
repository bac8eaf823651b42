// Package fs serves document bytes from a local directory tree.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/kailas-cloud/docingest/internal/domain"
)

// DefaultMaxObjectBytes caps a single fetch when no limit is configured.
const DefaultMaxObjectBytes int64 = 64 << 20

// Store resolves storage keys as slash-separated paths below a root directory.
type Store struct {
	root     string
	maxBytes int64
}

// New creates a filesystem object store rooted at dir.
func New(dir string, maxBytes int64) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("root dir required: %w", domain.ErrInvalidInput)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root %q: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory: %w", abs, domain.ErrInvalidInput)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxObjectBytes
	}
	return &Store{root: abs, maxBytes: maxBytes}, nil
}

// Fetch reads the object stored under key.
func (s *Store) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch %q: %w", key, domain.ErrTransientIO)
	}
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("object %q: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("open %q: %v: %w", key, err, domain.ErrTransientIO)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %q: %v: %w", key, err, domain.ErrTransientIO)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("object %q exceeds %d bytes: %w", key, s.maxBytes, domain.ErrInvalidInput)
	}
	return data, nil
}

// HealthCheck verifies the root directory is still reachable.
func (s *Store) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(s.root); err != nil {
		return fmt.Errorf("object store root: %v: %w", err, domain.ErrTransientIO)
	}
	return nil
}

// Close is a no-op; files are closed after every Fetch.
func (s *Store) Close() error { return nil }

func (s *Store) resolve(key string) (string, error) {
	if key == "" || strings.ContainsRune(key, 0) {
		return "", fmt.Errorf("storage key %q: %w", key, domain.ErrInvalidInput)
	}
	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(key, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("storage key %q escapes root: %w", key, domain.ErrInvalidInput)
	}
	return filepath.Join(s.root, clean), nil
}
