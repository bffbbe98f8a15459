// Package blob persists binary attachments by logical relative path. Two
// interchangeable backends exist (local filesystem, S3-compatible object
// store); the backend is chosen once at startup, never branched on in
// business logic.
package blob

import (
	"context"
	"io"
	"time"
)

// Store is the capability every backend provides.
type Store interface {
	Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// Presigner is the optional capability of backends that can pre-authorize a
// direct client upload. Callers type-assert; the local backend does not
// implement it.
type Presigner interface {
	PresignPut(ctx context.Context, path, contentType string, ttl time.Duration) (string, error)
}
