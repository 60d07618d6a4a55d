package media

import "context"

// Player plays a local media file.
type Player interface {
	// Play starts playing the file at path and returns immediately.
	Play(ctx context.Context, path string) (*Playback, error)
}

// FFplayPlayer implements Player using the ffplay CLI.
type FFplayPlayer struct {
	// ffplayPath is the path to the ffplay binary. Defaults to "ffplay".
	ffplayPath string
	// video keeps the display window open; audio-only playback runs headless.
	video bool
}

// NewFFplayPlayer creates an audio-only FFplayPlayer.
// If ffplayPath is empty, it defaults to "ffplay" (found via PATH).
func NewFFplayPlayer(ffplayPath string) *FFplayPlayer {
	if ffplayPath == "" {
		ffplayPath = "ffplay"
	}
	return &FFplayPlayer{ffplayPath: ffplayPath}
}

// NewFFplayVideoPlayer creates an FFplayPlayer that renders video in a window.
func NewFFplayVideoPlayer(ffplayPath string) *FFplayPlayer {
	p := NewFFplayPlayer(ffplayPath)
	p.video = true
	return p
}

// Play starts ffplay on path from the beginning and exits when the file ends.
func (p *FFplayPlayer) Play(ctx context.Context, path string) (*Playback, error) {
	return Start(ctx, p.ffplayPath, p.args(path)...)
}

func (p *FFplayPlayer) args(path string) []string {
	args := []string{
		"-autoexit",          // Exit when the file ends
		"-loglevel", "error", // Keep stderr for real failures
		"-ss", "0", // Always start from the beginning
	}
	if !p.video {
		args = append(args, "-nodisp") // No window for audio
	}
	return append(args, path)
}

// Compile-time check that FFplayPlayer implements Player.
var _ Player = (*FFplayPlayer)(nil)
