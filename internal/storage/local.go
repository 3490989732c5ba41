package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore keeps blobs on the local filesystem. Intended for development.
type LocalStore struct {
	basePath string
	baseURL  string
}

// NewLocalStore creates the base directory if needed.
func NewLocalStore(cfg Config) (*LocalStore, error) {
	base := strings.TrimSpace(cfg.BasePath)
	if base == "" {
		base = "./data/uploads"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create base directory: %w", err)
	}
	return &LocalStore{basePath: base, baseURL: cfg.BaseURL}, nil
}

// Put writes the stream to {basePath}/{key}.
func (s *LocalStore) Put(ctx context.Context, r io.Reader, key, _ string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return Object{}, fmt.Errorf("storage: create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return Object{}, fmt.Errorf("storage: create file: %w", err)
	}
	if _, err := io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = os.Remove(fullPath)
		return Object{}, fmt.Errorf("storage: write file: %w", err)
	}
	if err := file.Close(); err != nil {
		return Object{}, fmt.Errorf("storage: close file: %w", err)
	}

	return Object{Key: key, URL: joinURL(s.baseURL, key)}, nil
}

// DeleteMany removes each key, ignoring ones that are already gone.
func (s *LocalStore) DeleteMany(_ context.Context, keys []string) error {
	for _, key := range keys {
		fullPath, err := s.resolve(key)
		if err != nil {
			return err
		}
		if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("storage: delete %s: %w", key, err)
		}
	}
	return nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return filepath.Join(s.basePath, clean), nil
}
