// Package storage defines the Backend interface and common types for all
// artifact storage backends in the plugin registry.
//
// New backends are added by implementing the Backend interface and
// registering with the factory via an init() function in the backend's own
// package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (Backend, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The main package imports each backend with a blank import to trigger
// init(), so adding a backend requires no changes to the factory.
package storage

import (
	"context"
	"io"
	"time"
)

// Backend is the interface all artifact storage backends implement.
// Objects are the repackaged plugin archive plus its readme and icon side
// files, keyed as {login}/{name}/{version}/{object}.
type Backend interface {
	// Upload stores an object with the given content type.
	Upload(ctx context.Context, path string, reader io.Reader, size int64, contentType string) (*UploadResult, error)

	// Download retrieves an object as a stream.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes an object.
	Delete(ctx context.Context, path string) error

	// GetURL returns a download URL for the object. Cloud backends generate
	// a signed URL valid for the given TTL; the local backend returns a
	// registry-served path.
	GetURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// Exists reports whether an object is present.
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata retrieves object metadata without downloading the body.
	GetMetadata(ctx context.Context, path string) (*ObjectMetadata, error)
}

// UploadResult describes a stored object.
type UploadResult struct {
	// Path is the storage path where the object was stored
	Path string

	// Size is the object size in bytes
	Size int64

	// Checksum is the SHA256 hash of the object contents
	Checksum string
}

// ObjectMetadata describes a stored object without its body.
type ObjectMetadata struct {
	Path         string
	Size         int64
	ContentType  string
	Checksum     string
	LastModified time.Time
}
