// Package narration speaks lesson content through a local or remote text-to-speech
// backend, with at most one narration playing at a time.
package narration

import (
	"context"
	"errors"

	"github.com/maauso/zinara-studio/internal/audio"
)

// Static errors for narration.
var (
	// ErrStopped is returned by Speak when the narration was stopped before it finished.
	ErrStopped = errors.New("narration: stopped")
	// ErrEmptyText is returned when there is nothing to speak.
	ErrEmptyText = errors.New("narration: empty text")
)

// EngineKind selects which backend speaks.
type EngineKind string

const (
	// EngineLocal uses the local speech facility.
	EngineLocal EngineKind = "local"
	// EngineRemote uses the remote neural voice API, falling back to local on failure.
	EngineRemote EngineKind = "remote"
)

// IsValid returns true if the engine kind is known.
func (k EngineKind) IsValid() bool {
	return k == EngineLocal || k == EngineRemote
}

// Options configures one Speak call.
type Options struct {
	// Language is a human-readable label such as "Spanish" or a locale tag.
	Language string
	Engine   EngineKind
	// Rate and Pitch are multipliers; zero keeps the backend default.
	Rate  float64
	Pitch float64
	// Voice forces a local voice instead of locale-based selection.
	Voice *audio.Voice
	// VoiceID overrides the remote voice.
	VoiceID string
}

// Backend is one text-to-speech implementation.
type Backend interface {
	// Speak plays text and blocks until playback ends.
	// It returns ErrStopped when Stop interrupted it.
	Speak(ctx context.Context, text string, opts Options) error
	Pause() error
	Resume() error
	// Stop ends any playback. Safe to call when nothing is playing.
	Stop() error
}

// Session describes the narration currently playing.
type Session struct {
	ID     string
	Engine EngineKind
	Active bool
}
