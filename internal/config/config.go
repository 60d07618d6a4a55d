// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrInvalidPollInterval is returned when POLL_INTERVAL is not positive.
	ErrInvalidPollInterval = errors.New("config: POLL_INTERVAL must be positive")
	// ErrInvalidGenerationTimeout is returned when GENERATION_TIMEOUT is shorter than POLL_INTERVAL.
	ErrInvalidGenerationTimeout = errors.New("config: GENERATION_TIMEOUT must be at least POLL_INTERVAL")
	// ErrInvalidOTelExporter is returned when OTEL_EXPORTER is not one of none, stdout or otlp.
	ErrInvalidOTelExporter = errors.New("config: OTEL_EXPORTER must be none, stdout or otlp")
	// ErrInvalidMaxVisualBytes is returned when MAX_VISUAL_BYTES is not positive.
	ErrInvalidMaxVisualBytes = errors.New("config: MAX_VISUAL_BYTES must be positive")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port    int    `env:"PORT, default=8080" json:"port"`
	AppName string `env:"APP_NAME, default=zinara" json:"app_name"`

	// Generation settings
	GeminiAPIKey      string        `env:"GEMINI_API_KEY" json:"-"` // Masked in JSON
	GenerationModel   string        `env:"GENERATION_MODEL, default=veo-3.1-fast-generate-preview" json:"generation_model"`
	TextModel         string        `env:"TEXT_MODEL, default=gemini-3-flash-preview" json:"text_model"`
	PollInterval      time.Duration `env:"POLL_INTERVAL, default=8s" json:"poll_interval"`
	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT, default=10m" json:"generation_timeout"`

	// Narration settings
	ElevenLabsAPIKey  string `env:"ELEVENLABS_API_KEY" json:"-"` // Masked in JSON
	ElevenLabsVoiceID string `env:"ELEVENLABS_VOICE_ID, default=JBFqnCBsd6RMkjVDRZzb" json:"elevenlabs_voice_id"`
	ElevenLabsModelID string `env:"ELEVENLABS_MODEL_ID, default=eleven_multilingual_v2" json:"elevenlabs_model_id"`
	EspeakPath        string `env:"ESPEAK_PATH, default=espeak-ng" json:"espeak_path"`
	FFplayPath        string `env:"FFPLAY_PATH, default=ffplay" json:"ffplay_path"`

	// Storage settings
	TempDir        string `env:"TEMP_DIR, default=/tmp/zinara" json:"temp_dir"`
	ExportDir      string `env:"EXPORT_DIR, default=./exports" json:"export_dir"`
	MaxVisualBytes int64  `env:"MAX_VISUAL_BYTES, default=52428800" json:"max_visual_bytes"`

	// Optional S3 export destination
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Tracing settings
	OTelExporter string `env:"OTEL_EXPORTER, default=none" json:"otel_exporter"` // "none", "stdout" or "otlp"

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RemoteNarrationEnabled returns true if the remote narration engine can be used.
func (c *Config) RemoteNarrationEnabled() bool {
	return c.ElevenLabsAPIKey != ""
}

// Load reads configuration from environment variables using go-envconfig
// and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks value ranges that envconfig cannot express.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return ErrInvalidPollInterval
	}
	if c.GenerationTimeout < c.PollInterval {
		return ErrInvalidGenerationTimeout
	}
	if c.MaxVisualBytes <= 0 {
		return ErrInvalidMaxVisualBytes
	}
	switch strings.ToLower(c.OTelExporter) {
	case "none", "stdout", "otlp":
	default:
		return ErrInvalidOTelExporter
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.LogLevel)}

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(slog.String("app", c.AppName))
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, AppName: %s, GenerationModel: %s, TextModel: %s, PollInterval: %s, GenerationTimeout: %s, RemoteNarration: %t, TempDir: %s, ExportDir: %s, S3Bucket: %s, S3Region: %s, OTelExporter: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.AppName,
		c.GenerationModel,
		c.TextModel,
		c.PollInterval,
		c.GenerationTimeout,
		c.RemoteNarrationEnabled(),
		c.TempDir,
		c.ExportDir,
		c.S3Bucket,
		c.S3Region,
		c.OTelExporter,
		c.LogFormat,
		c.LogLevel,
	)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
