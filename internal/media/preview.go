package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/maauso/zinara-studio/internal/storage"
)

// ErrNoPreviewSource is returned when Restart is called without video data.
var ErrNoPreviewSource = errors.New("media: no preview source")

// Preview plays a session's reference video alongside narration.
// The video is materialized once per source key and restarted from the
// beginning on every Restart.
type Preview struct {
	player Player
	store  storage.Storage
	logger *slog.Logger

	mu       sync.Mutex
	key      string
	path     string
	playback *Playback
}

// NewPreview creates a Preview that writes sources through store and plays them with player.
func NewPreview(player Player, store storage.Storage, logger *slog.Logger) *Preview {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preview{player: player, store: store, logger: logger}
}

// Restart plays the video identified by key from its beginning.
// data is only written to disk when key differs from the current source.
func (p *Preview) Restart(ctx context.Context, key string, data []byte) error {
	if key == "" || len(data) == 0 {
		return ErrNoPreviewSource
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()

	if key != p.key {
		p.releaseLocked(ctx)
		path, err := p.store.SaveTemp(ctx, "preview.mp4", bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("materialize preview: %w", err)
		}
		p.key = key
		p.path = path
	}

	// The preview outlives the request that started it; Pause and Close end it.
	playback, err := p.player.Play(context.WithoutCancel(ctx), p.path)
	if err != nil {
		return fmt.Errorf("start preview: %w", err)
	}
	p.playback = playback
	return nil
}

// Pause suspends the preview if it is playing.
func (p *Preview) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playback == nil {
		return nil
	}
	return p.playback.Pause()
}

// Close stops playback and releases the materialized source.
func (p *Preview) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	return p.releaseLocked(ctx)
}

func (p *Preview) stopLocked() {
	if p.playback == nil {
		return
	}
	if err := p.playback.Stop(); err != nil {
		p.logger.Warn("failed to stop preview", slog.String("error", err.Error()))
	}
	p.playback = nil
}

func (p *Preview) releaseLocked(ctx context.Context) error {
	if p.path == "" {
		return nil
	}
	err := p.store.Release(ctx, p.path)
	p.key = ""
	p.path = ""
	return err
}
