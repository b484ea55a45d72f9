// Package storage persists named artifacts under an output directory and
// optionally mirrors them to S3. It defines the Storage port with adapters
// for local disk and S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for artifact persistence.
type Storage interface {
	// Dir returns the directory artifacts are written to.
	Dir() string

	// Save writes data to the artifact called name and returns its path.
	// The write goes through a temporary file that is renamed into place, so
	// readers never observe a partial artifact. An existing artifact with
	// the same name is replaced.
	Save(ctx context.Context, name string, data io.Reader) (path string, err error)

	// Cleanup removes the named artifacts.
	// It continues even if some files fail to delete.
	Cleanup(ctx context.Context, names []string) error

	// UploadToS3 uploads data to S3 and returns its URL.
	// Returns ErrS3NotConfigured if S3 is not configured.
	UploadToS3(ctx context.Context, key string, data io.Reader) (url string, err error)
}
