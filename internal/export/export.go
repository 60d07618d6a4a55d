// Package export saves a generated video to the configured destination, or
// hands the video URI to the system browser when saving fails.
package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkg/browser"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/maauso/zinara-studio/internal/storage"
)

// Static errors for export operations.
var (
	// ErrNoURI is returned when Export is called without a resource URI.
	ErrNoURI = errors.New("export: resource URI is required")
	// ErrDownloadFailed is returned when the resource responds with a non-2xx status.
	ErrDownloadFailed = errors.New("export: download failed")
	// ErrExportFailed is returned when both saving and the external fallback fail.
	ErrExportFailed = errors.New("export: could not save or open video")
)

const videoContentType = "video/mp4"

// Result describes where an export ended up.
type Result struct {
	// Filename is the generated export name.
	Filename string
	// Location is the saved file path or object URL; empty when opened externally.
	Location string
	// Bytes is the size of the saved video.
	Bytes int64
	// OpenedExternally is true when the video was handed to the system browser instead.
	OpenedExternally bool
}

// Opener opens a URI outside the process.
type Opener interface {
	Open(uri string) error
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(uri string) error

// Open implements Opener.
func (f OpenerFunc) Open(uri string) error {
	return f(uri)
}

// BrowserOpener opens URIs in the system browser.
type BrowserOpener struct{}

// Open implements Opener.
func (BrowserOpener) Open(uri string) error {
	return browser.OpenURL(uri)
}

// Exporter downloads videos and delivers them to storage.
type Exporter struct {
	store      storage.Storage
	opener     Opener
	httpClient *http.Client
	appName    string
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithHTTPClient sets the client used for downloads.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Exporter) {
		e.httpClient = c
	}
}

// WithOpener sets the fallback opener.
func WithOpener(o Opener) Option {
	return func(e *Exporter) {
		e.opener = o
	}
}

// WithClock sets the time source used in filenames.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		e.now = now
	}
}

// NewExporter creates an Exporter writing through store.
func NewExporter(store storage.Storage, appName string, logger *slog.Logger, opts ...Option) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	if appName == "" {
		appName = "zinara"
	}
	e := &Exporter{
		store:      store,
		opener:     BrowserOpener{},
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		appName:    appName,
		logger:     logger,
		tracer:     otel.Tracer("github.com/maauso/zinara-studio/internal/export"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Filename returns the export name for a moment in time.
func (e *Exporter) Filename(t time.Time) string {
	return fmt.Sprintf("%s-studio-export-%d.mp4", e.appName, t.UnixMilli())
}

// Export saves the video at uri. When saving fails the uri is opened
// externally and the result reports OpenedExternally with a nil error.
func (e *Exporter) Export(ctx context.Context, uri string) (Result, error) {
	if uri == "" {
		return Result{}, ErrNoURI
	}

	filename := e.Filename(e.now())

	ctx, span := e.tracer.Start(ctx, "export.video", trace.WithAttributes(
		attribute.String("export.filename", filename),
	))
	defer span.End()

	location, size, err := e.save(ctx, uri, filename)
	if err == nil {
		e.logger.Info("video exported",
			slog.String("filename", filename),
			slog.String("location", location),
			slog.Int64("bytes", size),
		)
		return Result{Filename: filename, Location: location, Bytes: size}, nil
	}

	e.logger.Warn("export failed, opening video externally",
		slog.String("filename", filename),
		slog.String("error", err.Error()),
	)
	span.AddEvent("fallback")

	if openErr := e.opener.Open(uri); openErr != nil {
		span.RecordError(openErr)
		return Result{}, fmt.Errorf("%w: %w", ErrExportFailed, errors.Join(err, openErr))
	}

	return Result{Filename: filename, OpenedExternally: true}, nil
}

// save downloads uri into a transient file and publishes it.
// The transient file is always released.
func (e *Exporter) save(ctx context.Context, uri, filename string) (string, int64, error) {
	data, err := e.download(ctx, uri)
	if err != nil {
		return "", 0, err
	}

	tempPath, err := e.store.SaveTemp(ctx, filename, bytes.NewReader(data))
	if err != nil {
		return "", 0, fmt.Errorf("export: save temp file: %w", err)
	}
	defer func() {
		if err := e.store.Release(context.WithoutCancel(ctx), tempPath); err != nil {
			e.logger.Warn("failed to release export buffer",
				slog.String("path", tempPath),
				slog.String("error", err.Error()),
			)
		}
	}()

	f, err := e.store.OpenTemp(ctx, tempPath)
	if err != nil {
		return "", 0, fmt.Errorf("export: open temp file: %w", err)
	}
	defer func() { _ = f.Close() }()

	location, err := e.store.Publish(ctx, filename, videoContentType, f)
	if err != nil {
		return "", 0, fmt.Errorf("export: publish: %w", err)
	}

	return location, int64(len(data)), nil
}

func (e *Exporter) download(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("export: create download request: %w", err)
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("export: download request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w with status %d", ErrDownloadFailed, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("export: read download: %w", err)
	}
	return data, nil
}
