// Package audio provides the local speech synthesis facility used for narration.
package audio

import (
	"context"

	"github.com/maauso/zinara-studio/internal/media"
)

// Voice is a voice installed in the local synthesizer.
type Voice struct {
	// ID is the identifier passed back to the synthesizer to select the voice.
	ID string
	// Name is the human-readable voice name.
	Name string
	// Locale is the language tag the voice speaks, e.g. "en-us".
	Locale string
}

// Utterance describes one piece of text to speak.
type Utterance struct {
	Text string
	// Locale selects the synthesizer language when Voice is nil.
	Locale string
	// Rate is a speed multiplier where 1 is normal speed. Zero keeps the default.
	Rate float64
	// Pitch is a pitch multiplier where 1 is normal pitch. Zero keeps the default.
	Pitch float64
	// Voice overrides Locale when set.
	Voice *Voice
}

// Facility is a local text-to-speech engine.
type Facility interface {
	// Voices lists the voices the engine can use.
	Voices(ctx context.Context) ([]Voice, error)
	// Speak starts speaking u and returns a handle to the running playback.
	Speak(ctx context.Context, u Utterance) (*media.Playback, error)
}
