package export

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/zinara-studio/internal/storage"
)

var exportName = regexp.MustCompile(`^.+-studio-export-\d+\.mp4$`)

// trackingStorage wraps LocalStorage and records transient file use.
type trackingStorage struct {
	*storage.LocalStorage

	mu         sync.Mutex
	saved      []string
	released   []string
	publishErr error
}

func (s *trackingStorage) SaveTemp(ctx context.Context, name string, data io.Reader) (string, error) {
	path, err := s.LocalStorage.SaveTemp(ctx, name, data)
	if err == nil {
		s.mu.Lock()
		s.saved = append(s.saved, path)
		s.mu.Unlock()
	}
	return path, err
}

func (s *trackingStorage) Release(ctx context.Context, paths ...string) error {
	s.mu.Lock()
	s.released = append(s.released, paths...)
	s.mu.Unlock()
	return s.LocalStorage.Release(ctx, paths...)
}

func (s *trackingStorage) Publish(ctx context.Context, key, contentType string, data io.Reader) (string, error) {
	if s.publishErr != nil {
		return "", s.publishErr
	}
	return s.LocalStorage.Publish(ctx, key, contentType, data)
}

func newTrackingStorage(t *testing.T) *trackingStorage {
	t.Helper()
	root := t.TempDir()
	local, err := storage.NewLocalStorage(filepath.Join(root, "tmp"), filepath.Join(root, "exports"))
	require.NoError(t, err)
	return &trackingStorage{LocalStorage: local}
}

// recordingOpener records URIs it was asked to open.
type recordingOpener struct {
	uris []string
	err  error
}

func (o *recordingOpener) Open(uri string) error {
	o.uris = append(o.uris, uri)
	return o.err
}

func videoServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestExporter_Export(t *testing.T) {
	server := videoServer(t, http.StatusOK, "video-bytes")
	store := newTrackingStorage(t)
	opener := &recordingOpener{}
	fixed := time.UnixMilli(1700000000123)

	exp := NewExporter(store, "zinara", nil, WithOpener(opener), WithClock(func() time.Time { return fixed }))

	res, err := exp.Export(context.Background(), server.URL+"/x.mp4")
	require.NoError(t, err)

	assert.Equal(t, "zinara-studio-export-1700000000123.mp4", res.Filename)
	assert.Regexp(t, exportName, res.Filename)
	assert.False(t, res.OpenedExternally)
	assert.Equal(t, int64(len("video-bytes")), res.Bytes)
	assert.Empty(t, opener.uris)

	data, err := os.ReadFile(res.Location)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))
	assert.Equal(t, filepath.Join(store.PublishDir(), res.Filename), res.Location)

	require.Len(t, store.saved, 1)
	assert.Equal(t, store.saved, store.released, "transient file is released")
	_, statErr := os.Stat(store.saved[0])
	assert.True(t, os.IsNotExist(statErr))
}

func TestExporter_FallbackOnDownloadFailure(t *testing.T) {
	server := videoServer(t, http.StatusForbidden, "denied")
	store := newTrackingStorage(t)
	opener := &recordingOpener{}

	exp := NewExporter(store, "zinara", nil, WithOpener(opener))

	uri := server.URL + "/x.mp4"
	res, err := exp.Export(context.Background(), uri)
	require.NoError(t, err, "fallback is not an error")

	assert.True(t, res.OpenedExternally)
	assert.Empty(t, res.Location)
	assert.Equal(t, []string{uri}, opener.uris)
	assert.Empty(t, store.saved)
}

func TestExporter_FallbackReleasesOnPublishFailure(t *testing.T) {
	server := videoServer(t, http.StatusOK, "video-bytes")
	store := newTrackingStorage(t)
	store.publishErr = errors.New("bucket missing")
	opener := &recordingOpener{}

	exp := NewExporter(store, "zinara", nil, WithOpener(opener))

	res, err := exp.Export(context.Background(), server.URL+"/x.mp4")
	require.NoError(t, err)
	assert.True(t, res.OpenedExternally)

	require.Len(t, store.saved, 1)
	assert.Equal(t, store.saved, store.released, "transient file is released after failure")
}

func TestExporter_OpenerFailure(t *testing.T) {
	store := newTrackingStorage(t)
	opener := &recordingOpener{err: errors.New("no browser")}

	exp := NewExporter(store, "zinara", nil, WithOpener(opener))

	_, err := exp.Export(context.Background(), "http://127.0.0.1:1/unreachable.mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExportFailed)
	assert.Contains(t, err.Error(), "no browser")
}

func TestExporter_RequiresURI(t *testing.T) {
	exp := NewExporter(newTrackingStorage(t), "", nil)
	_, err := exp.Export(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoURI)
}

func TestExporter_Filename(t *testing.T) {
	exp := NewExporter(nil, "", nil)
	name := exp.Filename(time.Now())
	assert.Regexp(t, `^zinara-studio-export-\d+\.mp4$`, name)
}

func TestOpenerFunc(t *testing.T) {
	var got string
	o := OpenerFunc(func(uri string) error { got = uri; return nil })
	require.NoError(t, o.Open("https://cdn/x.mp4"))
	assert.Equal(t, "https://cdn/x.mp4", got)
}
