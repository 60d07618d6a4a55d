// Package media provides process-backed media playback.
// A Playback wraps one external player process (ffplay, espeak-ng, ...) and
// exposes pause, resume and stop controls on it.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Static errors for playback operations.
var (
	// ErrStopped is returned by Wait when playback was stopped before it finished.
	ErrStopped = errors.New("media: playback stopped")
	// ErrPlaybackFailed is returned by Wait when the player process exits with an error.
	ErrPlaybackFailed = errors.New("media: playback failed")
	// ErrPauseUnsupported is returned on platforms without job-control signals.
	ErrPauseUnsupported = errors.New("media: pause is not supported on this platform")
	// ErrNoCommand is returned when Start is called without a program.
	ErrNoCommand = errors.New("media: no player command")
)

// Playback is a running player process.
type Playback struct {
	cmd    *exec.Cmd
	stderr bytes.Buffer
	done   chan struct{}

	mu      sync.Mutex
	err     error
	stopped bool
	paused  bool
}

// Start launches name with args and returns its playback handle.
// Cancelling ctx kills the process.
func Start(ctx context.Context, name string, args ...string) (*Playback, error) {
	if name == "" {
		return nil, ErrNoCommand
	}

	p := &Playback{done: make(chan struct{})}
	p.cmd = exec.CommandContext(ctx, name, args...) // #nosec G204 - player path comes from configuration
	p.cmd.Stderr = &p.stderr

	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	go func() {
		err := p.cmd.Wait()
		p.mu.Lock()
		p.err = err
		p.mu.Unlock()
		close(p.done)
	}()

	return p, nil
}

// Done is closed once the process has exited.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until playback ends or ctx is cancelled.
// It returns ErrStopped when Stop ended the playback.
func (p *Playback) Wait(ctx context.Context) error {
	select {
	case <-p.done:
	case <-ctx.Done():
		_ = p.Stop()
		<-p.done
		return ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}
	if p.err != nil {
		msg := strings.TrimSpace(p.stderr.String())
		if msg != "" {
			return fmt.Errorf("%w: %v: %s", ErrPlaybackFailed, p.err, msg)
		}
		return fmt.Errorf("%w: %v", ErrPlaybackFailed, p.err)
	}
	return nil
}

// Pause suspends the player process.
func (p *Playback) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exited() || p.paused {
		return nil
	}
	if err := suspend(p.cmd.Process); err != nil {
		return err
	}
	p.paused = true
	return nil
}

// Resume continues a paused player process.
func (p *Playback) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exited() || !p.paused {
		return nil
	}
	if err := resume(p.cmd.Process); err != nil {
		return err
	}
	p.paused = false
	return nil
}

// Paused reports whether the process is currently suspended.
func (p *Playback) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Stop kills the player process. Safe to call more than once.
func (p *Playback) Stop() error {
	p.mu.Lock()
	if p.exited() || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()

	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, errProcessDone) {
		return fmt.Errorf("stop playback: %w", err)
	}
	<-p.done
	return nil
}

// exited must be called with mu held.
func (p *Playback) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
