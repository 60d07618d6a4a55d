package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/maauso/zinara-studio/internal/media"
)

// ErrEmptyUtterance is returned when Speak is called without text.
var ErrEmptyUtterance = errors.New("audio: empty utterance")

const (
	// espeak-ng defaults: 175 words per minute, pitch 50 on a 0-99 scale.
	defaultWordsPerMinute = 175
	defaultPitch          = 50
	maxPitch              = 99
)

// Espeak implements Facility using the espeak-ng CLI.
type Espeak struct {
	// espeakPath is the path to the espeak-ng binary. Defaults to "espeak-ng".
	espeakPath string
}

// NewEspeak creates a new Espeak facility.
// If espeakPath is empty, it defaults to "espeak-ng" (found in PATH).
func NewEspeak(espeakPath string) *Espeak {
	if espeakPath == "" {
		espeakPath = "espeak-ng"
	}
	return &Espeak{espeakPath: espeakPath}
}

// Voices implements Facility.Voices by parsing `espeak-ng --voices`.
func (e *Espeak) Voices(ctx context.Context) ([]Voice, error) {
	cmd := exec.CommandContext(ctx, e.espeakPath, "--voices") // #nosec G204 - path comes from configuration

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("list voices: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return parseVoices(stdout.String()), nil
}

// Speak implements Facility.Speak.
func (e *Espeak) Speak(ctx context.Context, u Utterance) (*media.Playback, error) {
	if strings.TrimSpace(u.Text) == "" {
		return nil, ErrEmptyUtterance
	}
	return media.Start(ctx, e.espeakPath, speakArgs(u)...)
}

// speakArgs builds the espeak-ng command line for u.
func speakArgs(u Utterance) []string {
	var args []string

	switch {
	case u.Voice != nil && u.Voice.ID != "":
		args = append(args, "-v", u.Voice.ID)
	case u.Locale != "":
		args = append(args, "-v", strings.ToLower(u.Locale))
	}

	if u.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(int(defaultWordsPerMinute*u.Rate)))
	}

	if u.Pitch > 0 {
		pitch := int(defaultPitch * u.Pitch)
		if pitch > maxPitch {
			pitch = maxPitch
		}
		args = append(args, "-p", strconv.Itoa(pitch))
	}

	return append(args, u.Text)
}

// parseVoices parses the table printed by `espeak-ng --voices`:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  af              --/M      Afrikaans          gmw/af
func parseVoices(output string) []Voice {
	var voices []Voice

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		if _, err := strconv.Atoi(fields[0]); err != nil {
			continue
		}

		voices = append(voices, Voice{
			ID:     fields[1],
			Name:   strings.ReplaceAll(fields[3], "_", " "),
			Locale: fields[1],
		})
	}

	return voices
}

// Compile-time check that Espeak implements Facility.
var _ Facility = (*Espeak)(nil)
