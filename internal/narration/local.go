package narration

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/maauso/zinara-studio/internal/audio"
	"github.com/maauso/zinara-studio/internal/media"
)

// LocalBackend speaks through the local speech facility.
type LocalBackend struct {
	facility audio.Facility
	logger   *slog.Logger

	mu       sync.Mutex
	epoch    uint64
	playback *media.Playback
}

// NewLocalBackend creates a LocalBackend.
func NewLocalBackend(facility audio.Facility, logger *slog.Logger) *LocalBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalBackend{facility: facility, logger: logger}
}

// Speak implements Backend.
func (b *LocalBackend) Speak(ctx context.Context, text string, opts Options) error {
	b.mu.Lock()
	epoch := b.epoch
	b.mu.Unlock()

	u := audio.Utterance{
		Text:  text,
		Rate:  opts.Rate,
		Pitch: opts.Pitch,
		Voice: opts.Voice,
	}
	if opts.Language != "" {
		u.Locale = LocaleFor(opts.Language)
	}
	if u.Voice == nil && u.Locale != "" {
		voices, err := b.facility.Voices(ctx)
		if err != nil {
			b.logger.Warn("failed to list local voices", slog.String("error", err.Error()))
		}
		u.Voice = SelectVoice(voices, u.Locale)
	}

	playback, err := b.facility.Speak(ctx, u)
	if err != nil {
		return err
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
	return err
}

// Pause implements Backend.
func (b *LocalBackend) Pause() error {
	if p := b.current(); p != nil {
		return p.Pause()
	}
	return nil
}

// Resume implements Backend.
func (b *LocalBackend) Resume() error {
	if p := b.current(); p != nil {
		return p.Resume()
	}
	return nil
}

// Stop implements Backend.
func (b *LocalBackend) Stop() error {
	b.mu.Lock()
	b.epoch++
	p := b.playback
	b.playback = nil
	b.mu.Unlock()

	if p == nil {
		return nil
	}
	return p.Stop()
}

func (b *LocalBackend) current() *media.Playback {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playback
}

// Compile-time check that LocalBackend implements Backend.
var _ Backend = (*LocalBackend)(nil)
