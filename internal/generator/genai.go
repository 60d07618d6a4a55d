package generator

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// DefaultModel is the Veo model used when none is configured.
const DefaultModel = "veo-3.1-fast-generate-preview"

// GenaiDialer dials Gemini API clients for video generation.
type GenaiDialer struct {
	model      string
	httpClient *http.Client
	baseURL    string
}

// GenaiOption configures a GenaiDialer.
type GenaiOption func(*GenaiDialer)

// WithHTTPClient sets the HTTP client used by dialed clients.
func WithHTTPClient(c *http.Client) GenaiOption {
	return func(d *GenaiDialer) {
		d.httpClient = c
	}
}

// WithBaseURL overrides the Gemini API endpoint.
func WithBaseURL(u string) GenaiOption {
	return func(d *GenaiDialer) {
		d.baseURL = u
	}
}

// NewGenaiDialer creates a dialer for model. If model is empty, DefaultModel is used.
func NewGenaiDialer(model string, opts ...GenaiOption) *GenaiDialer {
	if model == "" {
		model = DefaultModel
	}
	d := &GenaiDialer{model: model}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dial implements Dialer.
func (d *GenaiDialer) Dial(ctx context.Context, apiKey string) (VideoAPI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrNoAPIKey
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: d.httpClient,
	}
	if d.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: d.baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("generator: create genai client: %w", err)
	}

	return &GenaiVideoAPI{client: client, model: d.model}, nil
}

// GenaiVideoAPI implements VideoAPI on the Gemini API Veo models.
type GenaiVideoAPI struct {
	client *genai.Client
	model  string
}

// Submit implements VideoAPI.
func (a *GenaiVideoAPI) Submit(ctx context.Context, req Request) (*Operation, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	op, err := a.client.Models.GenerateVideos(ctx, a.model, req.Prompt, toGenaiImage(req.Image), toGenaiConfig(req))
	if err != nil {
		return nil, fmt.Errorf("generator: generate videos: %w", err)
	}

	return fromGenaiOperation(op), nil
}

// GetStatus implements VideoAPI.
func (a *GenaiVideoAPI) GetStatus(ctx context.Context, op *Operation) (*Operation, error) {
	raw, ok := op.raw.(*genai.GenerateVideosOperation)
	if !ok || raw == nil {
		return nil, ErrUnknownOperation
	}

	next, err := a.client.Operations.GetVideosOperation(ctx, raw, nil)
	if err != nil {
		return nil, fmt.Errorf("generator: get videos operation: %w", err)
	}

	return fromGenaiOperation(next), nil
}

func toGenaiImage(img *Image) *genai.Image {
	if img == nil || len(img.Bytes) == 0 {
		return nil
	}
	return &genai.Image{ImageBytes: img.Bytes, MIMEType: img.MIMEType}
}

func toGenaiConfig(req Request) *genai.GenerateVideosConfig {
	count := req.Count
	if count <= 0 {
		count = 1
	}
	return &genai.GenerateVideosConfig{
		NumberOfVideos: int32(count), // #nosec G115 - count is small
		Resolution:     req.Resolution,
		AspectRatio:    req.AspectRatio,
	}
}

func fromGenaiOperation(op *genai.GenerateVideosOperation) *Operation {
	if op == nil {
		return &Operation{}
	}

	out := &Operation{
		Name: op.Name,
		Done: op.Done,
		raw:  op,
	}

	if msg, ok := op.Error["message"].(string); ok {
		out.Error = msg
	} else if len(op.Error) > 0 {
		out.Error = fmt.Sprint(op.Error)
	}

	if op.Response != nil {
		for _, v := range op.Response.GeneratedVideos {
			if v == nil || v.Video == nil {
				continue
			}
			out.Assets = append(out.Assets, Asset{URI: v.Video.URI})
		}
	}

	return out
}

// Compile-time checks that the genai types implement the generator interfaces.
var (
	_ Dialer   = (*GenaiDialer)(nil)
	_ VideoAPI = (*GenaiVideoAPI)(nil)
)
