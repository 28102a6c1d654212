package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidPath is returned for object paths that would escape the root.
var ErrInvalidPath = errors.New("invalid object path")

// ObjectStore stores uploaded assets such as event and sponsor logos.
type ObjectStore interface {
	Put(ctx context.Context, path string, data []byte) (string, error)
	Copy(ctx context.Context, src, dst string) (string, error)
	Delete(ctx context.Context, prefix string) error
}

// LocalStore keeps objects on the local filesystem under Root.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &LocalStore{root: root}, nil
}

// Put writes data under path and returns the object path.
func (s *LocalStore) Put(ctx context.Context, path string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return filepath.ToSlash(filepath.Clean(path)), nil
}

// Copy duplicates the object at src to dst and returns dst.
func (s *LocalStore) Copy(ctx context.Context, src, dst string) (string, error) {
	from, err := s.resolve(src)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(from)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", src, err)
	}
	return s.Put(ctx, dst, data)
}

// Delete removes everything under prefix.
func (s *LocalStore) Delete(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("failed to delete %s: %w", prefix, err)
	}
	return nil
}

func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if clean == "/" || strings.Contains(path, "..") {
		return "", ErrInvalidPath
	}
	return filepath.Join(s.root, clean), nil
}
