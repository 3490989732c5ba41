// Package storage holds the media store used for report photos.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Object identifies a stored blob.
type Object struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// Store is the blob storage used by the report saga.
type Store interface {
	// Put stores the stream under key and returns its public location.
	Put(ctx context.Context, r io.Reader, key, contentType string) (Object, error)
	// DeleteMany removes every key. Missing keys are not an error.
	DeleteMany(ctx context.Context, keys []string) error
}

// Config holds storage configuration.
type Config struct {
	Type      string // local or s3
	BasePath  string // local root directory
	BaseURL   string // public URL prefix
	Bucket    string
	Region    string
	Endpoint  string // S3-compatible endpoint override (R2, MinIO)
	AccessKey string
	SecretKey string
}

// New creates a store based on configuration.
func New(cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "local":
		return NewLocalStore(cfg)
	case "s3":
		return NewS3Store(cfg)
	default:
		return nil, fmt.Errorf("storage: unsupported type %q", cfg.Type)
	}
}

func joinURL(base, key string) string {
	if base == "" {
		return "/" + key
	}
	return strings.TrimRight(base, "/") + "/" + key
}
