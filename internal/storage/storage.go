// Package storage provides transient and published file storage for studio media.
// Transient files hold narration audio, preview videos and export buffers while
// they are in use; published files are the final export deliverables, written
// either to a local directory or to S3.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for transient and published file storage.
type Storage interface {
	// SaveTemp saves data to a transient file and returns the file path.
	// The name is used as a hint for the filename; its extension is preserved.
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)

	// OpenTemp opens a transient file for reading.
	// The caller is responsible for closing the returned ReadCloser.
	OpenTemp(ctx context.Context, path string) (io.ReadCloser, error)

	// Release removes the given transient files.
	// It continues even if some files fail to delete.
	Release(ctx context.Context, paths ...string) error

	// Publish stores a finished deliverable under key and returns its location,
	// a file path for local storage or a URL for S3.
	Publish(ctx context.Context, key, contentType string, data io.Reader) (location string, err error)
}
