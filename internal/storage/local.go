package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidKey is returned when a publish key would escape the publish directory.
var ErrInvalidKey = errors.New("storage: invalid publish key")

// LocalStorage implements Storage on local disk.
// Transient files live in tempDir and published files in publishDir.
type LocalStorage struct {
	tempDir    string
	publishDir string
}

// NewLocalStorage creates a new LocalStorage instance.
// If tempDir is empty, a "zinara" directory under os.TempDir() is used.
// If publishDir is empty, published files go to an "exports" directory under tempDir.
// Both directories are created if they don't exist.
func NewLocalStorage(tempDir, publishDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "zinara")
	}
	if publishDir == "" {
		publishDir = filepath.Join(tempDir, "exports")
	}

	for _, dir := range []string{tempDir, publishDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create storage directory %s: %w", dir, err)
		}
	}

	return &LocalStorage{tempDir: tempDir, publishDir: publishDir}, nil
}

// TempDir returns the transient directory path.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// PublishDir returns the directory published files are written to.
func (s *LocalStorage) PublishDir() string {
	return s.publishDir
}

// SaveTemp saves data to a transient file and returns the file path.
// "narration.mp3" becomes something like "narration_123456.mp3".
func (s *LocalStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(filepath.Base(name), ext)

	f, err := os.CreateTemp(s.tempDir, base+"_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	fileName := f.Name()
	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(fileName)
		return "", fmt.Errorf("write temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(fileName)
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return fileName, nil
}

// OpenTemp opens a transient file for reading.
func (s *LocalStorage) OpenTemp(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled: %w", err)
	}

	f, err := os.Open(path) // #nosec G304 - path is provided by trusted caller
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}

	return f, nil
}

// Release removes the given transient files, returning the first error
// encountered. Missing files are ignored so release is idempotent.
// Cancellation is not checked: releasing must still happen on aborted work.
func (s *LocalStorage) Release(_ context.Context, paths ...string) error {
	var firstErr error
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = fmt.Errorf("remove temp file %s: %w", p, err)
			}
		}
	}
	return firstErr
}

// Publish copies data into the publish directory under key and returns the file path.
func (s *LocalStorage) Publish(ctx context.Context, key, _ string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context cancelled: %w", err)
	}

	clean := filepath.Clean(key)
	if key == "" || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	dst := filepath.Join(s.publishDir, clean)
	if err := os.MkdirAll(filepath.Dir(dst), 0750); err != nil {
		return "", fmt.Errorf("create publish directory: %w", err)
	}

	f, err := os.Create(dst) // #nosec G304 - dst is confined to publishDir
	if err != nil {
		return "", fmt.Errorf("create published file: %w", err)
	}

	if _, err := io.Copy(f, data); err != nil {
		_ = f.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("write published file: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(dst)
		return "", fmt.Errorf("close published file: %w", err)
	}

	return dst, nil
}
