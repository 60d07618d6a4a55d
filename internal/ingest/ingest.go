// Package ingest turns uploaded files into in-memory assets: document
// metadata for prompts and data URLs for visual references.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/vincent-petithory/dataurl"

	"github.com/maauso/zinara-studio/internal/generator"
	"github.com/maauso/zinara-studio/internal/job/id"
)

// Static errors for ingestion.
var (
	// ErrUnsupportedDocument is returned when a document is not a PDF.
	ErrUnsupportedDocument = errors.New("ingest: only PDF documents are supported")
	// ErrVisualTooLarge is returned when a visual exceeds the configured size limit.
	ErrVisualTooLarge = errors.New("ingest: visual reference is too large")
	// ErrEmptyVisual is returned when a visual has no content.
	ErrEmptyVisual = errors.New("ingest: visual reference is empty")
)

// DefaultMaxVisualBytes is the size limit used when none is configured.
const DefaultMaxVisualBytes int64 = 50 << 20

const pdfMIMEType = "application/pdf"

// File is an uploaded file.
type File struct {
	Name     string
	MIMEType string
	Reader   io.Reader
}

// Document is the metadata kept for an attached document. Its content is never read.
type Document struct {
	Name     string
	MIMEType string
}

// Kind distinguishes image references from video references.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// VisualReference is an uploaded image or video held as a data URL.
type VisualReference struct {
	// ID identifies this upload; replacing the reference changes it.
	ID       string
	Kind     Kind
	Name     string
	MIMEType string
	Size     int64
	DataURL  string
}

// IsVideo reports whether the reference is a video.
func (v VisualReference) IsVideo() bool {
	return v.Kind == KindVideo
}

// Bytes decodes the data URL back into raw content.
func (v VisualReference) Bytes() ([]byte, error) {
	du, err := dataurl.DecodeString(v.DataURL)
	if err != nil {
		return nil, fmt.Errorf("ingest: decode data URL: %w", err)
	}
	return du.Data, nil
}

// ConditioningImage returns the reference as a generation input.
// Only image references can condition a generation.
func (v VisualReference) ConditioningImage() (*generator.Image, bool) {
	if v.Kind != KindImage || v.DataURL == "" {
		return nil, false
	}
	du, err := dataurl.DecodeString(v.DataURL)
	if err != nil {
		return nil, false
	}
	return &generator.Image{Bytes: du.Data, MIMEType: du.MediaType.ContentType()}, true
}

// Ingestor converts uploads into session assets.
type Ingestor struct {
	maxVisualBytes int64
}

// NewIngestor creates an Ingestor. Non-positive limits use DefaultMaxVisualBytes.
func NewIngestor(maxVisualBytes int64) *Ingestor {
	if maxVisualBytes <= 0 {
		maxVisualBytes = DefaultMaxVisualBytes
	}
	return &Ingestor{maxVisualBytes: maxVisualBytes}
}

// IngestDocument accepts PDF documents and records their metadata.
func (i *Ingestor) IngestDocument(f File) (Document, error) {
	if baseMIMEType(f.MIMEType) != pdfMIMEType {
		return Document{}, ErrUnsupportedDocument
	}
	return Document{Name: f.Name, MIMEType: pdfMIMEType}, nil
}

// IngestVisual reads f fully and encodes it as a data URL.
// An empty declared MIME type is sniffed from the content.
func (i *Ingestor) IngestVisual(ctx context.Context, f File) (VisualReference, error) {
	if err := ctx.Err(); err != nil {
		return VisualReference{}, err
	}
	if f.Reader == nil {
		return VisualReference{}, ErrEmptyVisual
	}

	// Read one byte past the limit to detect oversized uploads.
	data, err := io.ReadAll(io.LimitReader(f.Reader, i.maxVisualBytes+1))
	if err != nil {
		return VisualReference{}, fmt.Errorf("ingest: read visual: %w", err)
	}
	if int64(len(data)) > i.maxVisualBytes {
		return VisualReference{}, ErrVisualTooLarge
	}
	if len(data) == 0 {
		return VisualReference{}, ErrEmptyVisual
	}

	mimeType := baseMIMEType(f.MIMEType)
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = baseMIMEType(mimetype.Detect(data).String())
	}

	kind := KindImage
	if strings.HasPrefix(mimeType, "video/") {
		kind = KindVideo
	}

	return VisualReference{
		ID:       id.New("visual"),
		Kind:     kind,
		Name:     f.Name,
		MIMEType: mimeType,
		Size:     int64(len(data)),
		DataURL:  dataurl.New(data, mimeType).String(),
	}, nil
}

// baseMIMEType strips parameters and normalizes case.
func baseMIMEType(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil {
		return strings.ToLower(v)
	}
	return mediaType
}
