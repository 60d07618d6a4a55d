// Package credential provides access to the generation API key.
package credential

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Static errors for credential operations.
var (
	// ErrNoCredential is returned when no API key is available after prompting.
	ErrNoCredential = errors.New("credential: no API key available")
	// ErrNoTerminal is returned when an interactive prompt is needed but stdin is not a terminal.
	ErrNoTerminal = errors.New("credential: stdin is not a terminal")
)

// Broker hands out the API key used by the generation service.
type Broker interface {
	// HasCredential reports whether a key is already available.
	HasCredential(ctx context.Context) bool
	// PromptForCredential asks the operator for a key and blocks until one is provided.
	PromptForCredential(ctx context.Context) error
	// Credential returns the current key, or "" if none is set.
	Credential() string
}

// StaticBroker serves a fixed key, typically from configuration.
type StaticBroker struct {
	key string
}

// NewStaticBroker creates a broker for key.
func NewStaticBroker(key string) *StaticBroker {
	return &StaticBroker{key: strings.TrimSpace(key)}
}

// HasCredential implements Broker.
func (b *StaticBroker) HasCredential(_ context.Context) bool {
	return b.key != ""
}

// PromptForCredential implements Broker. A static broker cannot ask for a key.
func (b *StaticBroker) PromptForCredential(_ context.Context) error {
	if b.key == "" {
		return ErrNoCredential
	}
	return nil
}

// Credential implements Broker.
func (b *StaticBroker) Credential() string {
	return b.key
}

// TerminalBroker starts from an optional configured key and asks for one on the
// controlling terminal when it is missing. The key is read without echo.
type TerminalBroker struct {
	fd  int
	out io.Writer

	isTerminal   func(fd int) bool
	readPassword func(fd int) ([]byte, error)

	// promptMu allows one prompt on the terminal at a time.
	promptMu sync.Mutex

	mu  sync.Mutex
	key string
	// pending is a terminal read whose caller gave up; the next prompt takes it over.
	pending <-chan readResult
}

type readResult struct {
	key []byte
	err error
}

// NewTerminalBroker creates a broker reading from stdin and prompting on stderr.
func NewTerminalBroker(key string) *TerminalBroker {
	return &TerminalBroker{
		fd:           int(os.Stdin.Fd()), // #nosec G115 - file descriptors fit in int
		out:          os.Stderr,
		isTerminal:   term.IsTerminal,
		readPassword: term.ReadPassword,
		key:          strings.TrimSpace(key),
	}
}

// HasCredential implements Broker.
func (b *TerminalBroker) HasCredential(_ context.Context) bool {
	return b.Credential() != ""
}

// Credential implements Broker.
func (b *TerminalBroker) Credential() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.key
}

// PromptForCredential implements Broker. Concurrent callers share one prompt:
// a caller that waited for another returns as soon as a key is set.
func (b *TerminalBroker) PromptForCredential(ctx context.Context) error {
	b.promptMu.Lock()
	defer b.promptMu.Unlock()

	if b.Credential() != "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("credential: prompt cancelled: %w", err)
	}
	if !b.isTerminal(b.fd) {
		return ErrNoTerminal
	}

	b.mu.Lock()
	ch := b.pending
	b.pending = nil
	b.mu.Unlock()

	if ch == nil {
		_, _ = fmt.Fprint(b.out, "Enter Gemini API key: ")
		read := make(chan readResult, 1)
		go func() {
			key, err := b.readPassword(b.fd)
			read <- readResult{key: key, err: err}
		}()
		ch = read
	}

	var res readResult
	select {
	case <-ctx.Done():
		b.mu.Lock()
		b.pending = ch
		b.mu.Unlock()
		return fmt.Errorf("credential: prompt cancelled: %w", ctx.Err())
	case res = <-ch:
	}
	_, _ = fmt.Fprintln(b.out)

	if res.err != nil {
		return fmt.Errorf("credential: read key: %w", res.err)
	}

	key := strings.TrimSpace(string(res.key))
	if key == "" {
		return ErrNoCredential
	}

	b.mu.Lock()
	b.key = key
	b.mu.Unlock()
	return nil
}

// Compile-time checks that brokers implement Broker.
var (
	_ Broker = (*StaticBroker)(nil)
	_ Broker = (*TerminalBroker)(nil)
)
