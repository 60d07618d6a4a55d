package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Static errors for ElevenLabs client operations.
var (
	// ErrAPIKeyNotSet is returned when the ELEVENLABS_API_KEY is not provided.
	ErrAPIKeyNotSet = errors.New("elevenlabs: API key is required")
	// ErrEmptyText is returned when a request has no text.
	ErrEmptyText = errors.New("elevenlabs: text is required")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("elevenlabs: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("elevenlabs: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("elevenlabs: request failed")
)

// Client defines the interface for the remote speech synthesis API.
type Client interface {
	// Synthesize converts text to encoded audio. The caller must close the stream.
	Synthesize(ctx context.Context, req Request) (io.ReadCloser, error)
}

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	apiKey       string
	baseURL      string
	voiceID      string
	modelID      string
	outputFormat string
	httpClient   *http.Client
	maxRetries   int
	baseBackoff  time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key sent in the xi-api-key header.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(u, "/")
	}
}

// WithVoiceID sets the default voice.
func WithVoiceID(id string) ClientOption {
	return func(hc *HTTPClient) {
		if id != "" {
			hc.voiceID = id
		}
	}
}

// WithModelID sets the default synthesis model.
func WithModelID(id string) ClientOption {
	return func(hc *HTTPClient) {
		if id != "" {
			hc.modelID = id
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
// The default is zero: a failed request is reported at once so the caller can
// fall back.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new ElevenLabs HTTP client.
// The API key can be set via the WithAPIKey option. If not provided,
// it is read from the environment variable ELEVENLABS_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:      DefaultBaseURL,
		voiceID:      DefaultVoiceID,
		modelID:      DefaultModelID,
		outputFormat: DefaultOutputFormat,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		baseBackoff:  500 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Synthesize sends text to the text-to-speech endpoint and returns the audio stream.
// With WithMaxRetries, transient failures are retried before the stream is handed
// to the caller.
func (c *HTTPClient) Synthesize(ctx context.Context, req Request) (io.ReadCloser, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	body, err := json.Marshal(speechRequest{
		Text:    req.Text,
		ModelID: firstNonEmpty(req.ModelID, c.modelID),
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?%s",
		c.baseURL,
		url.PathEscape(firstNonEmpty(req.VoiceID, c.voiceID)),
		url.Values{"output_format": {firstNonEmpty(req.OutputFormat, c.outputFormat)}}.Encode(),
	)

	return c.doRequestWithRetry(ctx, endpoint, body)
}

// doRequestWithRetry performs the request with exponential backoff retry.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, endpoint string, body []byte) (io.ReadCloser, error) {
	var lastErr error
	backoff := c.baseBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("elevenlabs: context cancelled: %w", ctx.Err())
			case <-time.After(backoff):
				backoff *= 2 // Exponential backoff
			}
		}

		stream, err := c.doRequest(ctx, endpoint, body)
		if err == nil {
			return stream, nil
		}

		if !isRetryable(err) || c.maxRetries == 0 {
			return nil, err
		}

		lastErr = err
	}

	return nil, fmt.Errorf("elevenlabs: max retries exceeded: %w", lastErr)
}

// doRequest performs a single request. On success the response body is returned open.
func (c *HTTPClient) doRequest(ctx context.Context, endpoint string, body []byte) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}

	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
		}
		return nil, &retryableError{err: fmt.Errorf("elevenlabs: request failed: %w", err)}
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.Body, nil
	}

	defer func() { _ = resp.Body.Close() }()
	msg := errorMessage(resp.Body)

	switch {
	case resp.StatusCode >= 500:
		return nil, &retryableError{err: fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, msg)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &retryableError{err: fmt.Errorf("%w: %s", ErrRateLimited, msg)}
	default:
		return nil, fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, msg)
	}
}

// errorMessage extracts a readable message from an error body.
func errorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return ""
	}

	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Detail.Message != "" {
		return er.Detail.Message
	}
	return strings.TrimSpace(string(raw))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// retryableError wraps errors that should be retried.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string {
	return e.err.Error()
}

func (e *retryableError) Unwrap() error {
	return e.err
}

// isRetryable returns true if the error should be retried.
func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
