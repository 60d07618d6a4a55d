// Package generator provides the contract for asynchronous video generation
// providers and a Gemini (Veo) implementation built on google.golang.org/genai.
package generator

import (
	"context"
	"errors"
)

// Static errors for generator operations.
var (
	// ErrNoAPIKey is returned when Dial is called without a credential.
	ErrNoAPIKey = errors.New("generator: API key is required")
	// ErrEmptyPrompt is returned when a request has no prompt.
	ErrEmptyPrompt = errors.New("generator: prompt is required")
	// ErrUnknownOperation is returned when GetStatus receives an operation this API did not create.
	ErrUnknownOperation = errors.New("generator: operation was not created by this API")
)

// Image is a conditioning image sent with a generation request.
type Image struct {
	Bytes    []byte
	MIMEType string
}

// Request describes one video generation job.
type Request struct {
	Prompt      string
	Image       *Image // Optional conditioning image
	Resolution  string // "720p" or "1080p"
	AspectRatio string // "16:9" or "9:16"
	Count       int    // Number of videos; 0 means 1
}

// Asset is one generated output.
type Asset struct {
	URI string
}

// Operation is the handle of an asynchronous generation job.
type Operation struct {
	Name   string
	Done   bool
	Assets []Asset
	// Error is set when the provider reports the job failed.
	Error string

	// raw is the provider's own handle, needed to query the job again.
	raw any
}

// FirstAssetURI returns the URI of the first asset, or "" when there is none.
func (o *Operation) FirstAssetURI() string {
	for _, a := range o.Assets {
		if a.URI != "" {
			return a.URI
		}
	}
	return ""
}

// VideoAPI defines the interface for video generation providers.
type VideoAPI interface {
	// Submit starts a generation job and returns its handle.
	Submit(ctx context.Context, req Request) (*Operation, error)

	// GetStatus re-queries a job and returns its current state.
	GetStatus(ctx context.Context, op *Operation) (*Operation, error)
}

// Dialer creates a VideoAPI bound to an API key.
// The key is only known after the credential broker has run, so clients are
// created per submission.
type Dialer interface {
	Dial(ctx context.Context, apiKey string) (VideoAPI, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(ctx context.Context, apiKey string) (VideoAPI, error)

// Dial implements Dialer.
func (f DialerFunc) Dial(ctx context.Context, apiKey string) (VideoAPI, error) {
	return f(ctx, apiKey)
}

// NewOperation builds an Operation carrying a provider handle.
// Test doubles use it to round-trip their own state through GetStatus.
func NewOperation(name string, done bool, assets []Asset, raw any) *Operation {
	return &Operation{Name: name, Done: done, Assets: assets, raw: raw}
}

// Raw returns the provider handle stored in the operation.
func (o *Operation) Raw() any {
	return o.raw
}
