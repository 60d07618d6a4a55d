package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directories if not exist", func(t *testing.T) {
		root := t.TempDir()
		tempDir := filepath.Join(root, "tmp")
		publishDir := filepath.Join(root, "out")

		storage, err := NewLocalStorage(tempDir, publishDir)
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		if storage.TempDir() != tempDir {
			t.Errorf("TempDir() = %v, want %v", storage.TempDir(), tempDir)
		}
		if storage.PublishDir() != publishDir {
			t.Errorf("PublishDir() = %v, want %v", storage.PublishDir(), publishDir)
		}

		for _, dir := range []string{tempDir, publishDir} {
			info, err := os.Stat(dir)
			if err != nil {
				t.Fatalf("directory not created: %v", err)
			}
			if !info.IsDir() {
				t.Errorf("expected directory at %s", dir)
			}
		}
	})

	t.Run("publish dir defaults under temp dir", func(t *testing.T) {
		tempDir := filepath.Join(t.TempDir(), "tmp")

		storage, err := NewLocalStorage(tempDir, "")
		if err != nil {
			t.Fatalf("NewLocalStorage() error = %v", err)
		}

		expected := filepath.Join(tempDir, "exports")
		if storage.PublishDir() != expected {
			t.Errorf("PublishDir() = %v, want %v", storage.PublishDir(), expected)
		}
	})
}

func TestLocalStorage_SaveTemp(t *testing.T) {
	storage := setupTestStorage(t)

	t.Run("saves data and keeps extension", func(t *testing.T) {
		path, err := storage.SaveTemp(context.Background(), "narration.mp3", bytes.NewReader([]byte("test data")))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}

		if !strings.HasPrefix(filepath.Base(path), "narration_") {
			t.Errorf("path %s should start with 'narration_'", path)
		}
		if filepath.Ext(path) != ".mp3" {
			t.Errorf("path %s should keep the .mp3 extension", path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "test data" {
			t.Errorf("got %q, want %q", string(content), "test data")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := storage.SaveTemp(ctx, "test", bytes.NewReader([]byte("data")))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestLocalStorage_OpenTemp(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("opens saved file", func(t *testing.T) {
		path, err := storage.SaveTemp(ctx, "load_test", bytes.NewReader([]byte("load data")))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}

		reader, err := storage.OpenTemp(ctx, path)
		if err != nil {
			t.Fatalf("OpenTemp() error = %v", err)
		}
		defer func() { _ = reader.Close() }()

		content, err := io.ReadAll(reader)
		if err != nil {
			t.Fatalf("failed to read: %v", err)
		}
		if string(content) != "load data" {
			t.Errorf("got %q, want %q", string(content), "load data")
		}
	})

	t.Run("returns error for non-existent file", func(t *testing.T) {
		if _, err := storage.OpenTemp(ctx, "/non/existent/file"); err == nil {
			t.Error("expected error for non-existent file")
		}
	})
}

func TestLocalStorage_Release(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("removes files", func(t *testing.T) {
		var paths []string
		for i := 0; i < 3; i++ {
			path, err := storage.SaveTemp(ctx, "cleanup", bytes.NewReader([]byte("data")))
			if err != nil {
				t.Fatalf("SaveTemp() error = %v", err)
			}
			paths = append(paths, path)
		}

		if err := storage.Release(ctx, paths...); err != nil {
			t.Fatalf("Release() error = %v", err)
		}

		for _, p := range paths {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("file %s still exists", p)
			}
		}
	})

	t.Run("is idempotent", func(t *testing.T) {
		if err := storage.Release(ctx, "/non/existent/file", ""); err != nil {
			t.Errorf("Release() should ignore missing files, got %v", err)
		}
	})

	t.Run("still releases on cancelled context", func(t *testing.T) {
		path, err := storage.SaveTemp(ctx, "cancelled", bytes.NewReader([]byte("data")))
		if err != nil {
			t.Fatalf("SaveTemp() error = %v", err)
		}

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		if err := storage.Release(cancelled, path); err != nil {
			t.Fatalf("Release() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("file %s still exists", path)
		}
	})
}

func TestLocalStorage_Publish(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	t.Run("writes into publish dir", func(t *testing.T) {
		location, err := storage.Publish(ctx, "zinara-studio-export-1.mp4", "video/mp4", bytes.NewReader([]byte("video")))
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}

		if location != filepath.Join(storage.PublishDir(), "zinara-studio-export-1.mp4") {
			t.Errorf("unexpected location %s", location)
		}
		content, err := os.ReadFile(location)
		if err != nil {
			t.Fatalf("failed to read published file: %v", err)
		}
		if string(content) != "video" {
			t.Errorf("got %q, want %q", string(content), "video")
		}
	})

	t.Run("rejects keys escaping the publish dir", func(t *testing.T) {
		for _, key := range []string{"", "../escape.mp4", "/etc/passwd"} {
			_, err := storage.Publish(ctx, key, "video/mp4", bytes.NewReader(nil))
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("key %q: expected ErrInvalidKey, got %v", key, err)
			}
		}
	})
}

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	root := t.TempDir()

	storage, err := NewLocalStorage(filepath.Join(root, "tmp"), filepath.Join(root, "out"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	return storage
}
