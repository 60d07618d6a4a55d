package narration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/maauso/zinara-studio/internal/elevenlabs"
	"github.com/maauso/zinara-studio/internal/media"
	"github.com/maauso/zinara-studio/internal/storage"
)

// RemoteBackend speaks through the remote neural voice API. The synthesized
// audio is buffered, written to a transient file and played locally.
type RemoteBackend struct {
	client elevenlabs.Client
	store  storage.Storage
	player media.Player
	logger *slog.Logger

	mu       sync.Mutex
	epoch    uint64
	cancel   context.CancelFunc
	playback *media.Playback
}

// NewRemoteBackend creates a RemoteBackend.
func NewRemoteBackend(client elevenlabs.Client, store storage.Storage, player media.Player, logger *slog.Logger) *RemoteBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoteBackend{client: client, store: store, player: player, logger: logger}
}

// Speak implements Backend.
func (b *RemoteBackend) Speak(ctx context.Context, text string, opts Options) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	b.mu.Lock()
	epoch := b.epoch
	b.cancel = cancel
	b.mu.Unlock()

	err := b.speak(ctx, epoch, text, opts)

	b.mu.Lock()
	stopped := b.epoch != epoch
	if !stopped {
		b.cancel = nil
	}
	b.mu.Unlock()

	if stopped {
		return ErrStopped
	}
	return err
}

func (b *RemoteBackend) speak(ctx context.Context, epoch uint64, text string, opts Options) error {
	stream, err := b.client.Synthesize(ctx, elevenlabs.Request{Text: text, VoiceID: opts.VoiceID})
	if err != nil {
		return fmt.Errorf("narration: synthesize: %w", err)
	}

	data, err := io.ReadAll(stream)
	_ = stream.Close()
	if err != nil {
		return fmt.Errorf("narration: read audio stream: %w", err)
	}

	path, err := b.store.SaveTemp(ctx, "narration.mp3", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("narration: save audio: %w", err)
	}
	defer func() {
		if err := b.store.Release(context.WithoutCancel(ctx), path); err != nil {
			b.logger.Warn("failed to release narration audio",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}()

	playback, err := b.player.Play(ctx, path)
	if err != nil {
		return fmt.Errorf("narration: play audio: %w", err)
	}

	b.mu.Lock()
	if b.epoch != epoch || ctx.Err() != nil {
		b.mu.Unlock()
		_ = playback.Stop()
		return ErrStopped
	}
	b.playback = playback
	b.mu.Unlock()

	err = playback.Wait(ctx)

	b.mu.Lock()
	if b.playback == playback {
		b.playback = nil
	}
	b.mu.Unlock()

	if errors.Is(err, media.ErrStopped) {
		return ErrStopped
	}
	if err != nil {
		return fmt.Errorf("narration: playback: %w", err)
	}
	return nil
}

// Pause implements Backend.
func (b *RemoteBackend) Pause() error {
	if p := b.current(); p != nil {
		return p.Pause()
	}
	return nil
}

// Resume implements Backend.
func (b *RemoteBackend) Resume() error {
	if p := b.current(); p != nil {
		return p.Resume()
	}
	return nil
}

// Stop implements Backend. It also aborts a synthesis that is still downloading.
func (b *RemoteBackend) Stop() error {
	b.mu.Lock()
	b.epoch++
	cancel := b.cancel
	b.cancel = nil
	p := b.playback
	b.playback = nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if p == nil {
		return nil
	}
	return p.Stop()
}

func (b *RemoteBackend) current() *media.Playback {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playback
}

// Compile-time check that RemoteBackend implements Backend.
var _ Backend = (*RemoteBackend)(nil)
