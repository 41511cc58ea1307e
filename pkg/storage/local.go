package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStore implements ObjectStore on the local filesystem. Intended for
// development; presigned URLs are plain file:// URLs with no expiry.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates a local filesystem store
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// Put stores an object under the given key
func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	path := s.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path) // Cleanup on error
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// PresignGet returns a file URL for the object
func (s *LocalStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	path := s.pathFor(key)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("failed to stat object: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve object path: %w", err)
	}
	return (&url.URL{Scheme: "file", Path: abs}).String(), nil
}

// Delete removes an object
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.pathFor(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (s *LocalStore) pathFor(key string) string {
	parts := strings.Split(key, "/")
	safe := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		safe = append(safe, sanitizeSegment(p))
	}
	return filepath.Join(append([]string{s.basePath}, safe...)...)
}

func sanitizeSegment(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
