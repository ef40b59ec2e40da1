// Package storage provides a small interface over S3-compatible object
// storage, used to publish lead exports.
package storage

import (
	"context"
	"io"
	"time"

	"crescoflow/platform/config"
)

// Config is the storage part of the application config.
type Config = config.MinIOConfig

// PresignedURL is a time-limited download link.
type PresignedURL struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StorageService defines the object storage operations in use.
type StorageService interface {
	// EnsureBucketExists creates the bucket if it doesn't exist.
	EnsureBucketExists(ctx context.Context, bucket string) error

	// UploadFile stores reader under folder with a collision-free name and
	// returns the object key.
	UploadFile(ctx context.Context, bucket, folder, fileName, contentType string, reader io.Reader, size int64) (string, error)

	GenerateDownloadURL(ctx context.Context, bucket, fileKey string) (*PresignedURL, error)
}
