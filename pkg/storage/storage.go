// Package storage provides object storage for retained upload files, with
// MinIO/S3-compatible and local filesystem implementations.
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/hotelops/ota-reconciliation/pkg/config"
)

// ObjectStore defines the interface for retained-file operations
type ObjectStore interface {
	// Put stores an object under the given key
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// PresignGet returns a time-limited download URL for an object
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)

	// Delete removes an object
	Delete(ctx context.Context, key string) error
}

// New creates an ObjectStore implementation based on configuration
func New(cfg *config.StorageConfig) (ObjectStore, error) {
	switch cfg.Type {
	case "minio":
		return NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	case "local":
		return NewLocalStore(cfg.LocalPath)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
