package storage

import (
	"context"
	"io"
)

//go:generate mockgen -source=interface.go -destination=mock_storage.go -package=storage

// ObjectStorage is the blob store raw payload archives are written to.
type ObjectStorage interface {
	// Upload writes an object under key, replacing any previous version.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// EnsureBucket creates the target bucket when the backend allows it.
	EnsureBucket(ctx context.Context) error
}
