// Package bootstrap provides dependency initialization for the studio server.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maauso/zinara-studio/internal/audio"
	"github.com/maauso/zinara-studio/internal/config"
	"github.com/maauso/zinara-studio/internal/credential"
	"github.com/maauso/zinara-studio/internal/elevenlabs"
	"github.com/maauso/zinara-studio/internal/export"
	"github.com/maauso/zinara-studio/internal/generator"
	"github.com/maauso/zinara-studio/internal/ingest"
	"github.com/maauso/zinara-studio/internal/job"
	"github.com/maauso/zinara-studio/internal/lesson"
	"github.com/maauso/zinara-studio/internal/media"
	"github.com/maauso/zinara-studio/internal/narration"
	"github.com/maauso/zinara-studio/internal/storage"
	"github.com/maauso/zinara-studio/internal/studio"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Sessions   *studio.Registry
	Generation *job.GenerationService
	Narration  *narration.Engine
	Lessons    *lesson.Assistant
	Store      storage.Storage
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	// The terminal broker only prompts when GEMINI_API_KEY is unset.
	broker := credential.NewTerminalBroker(cfg.GeminiAPIKey)
	generation := job.NewGenerationService(
		job.NewMemoryRepository(),
		broker,
		generator.NewGenaiDialer(cfg.GenerationModel),
		logger,
		job.WithPollInterval(cfg.PollInterval),
		job.WithTimeout(cfg.GenerationTimeout),
	)

	engine, err := initNarration(cfg, store, logger)
	if err != nil {
		return nil, err
	}

	lessons, err := lesson.NewGenaiAssistant(ctx, cfg.GeminiAPIKey, cfg.TextModel, logger)
	if err != nil {
		return nil, fmt.Errorf("create lesson assistant: %w", err)
	}

	exporter := export.NewExporter(store, cfg.AppName, logger)
	ingestor := ingest.NewIngestor(cfg.MaxVisualBytes)
	videoPlayer := media.NewFFplayVideoPlayer(cfg.FFplayPath)

	sessions := studio.NewRegistry(func() studio.Dependencies {
		return studio.Dependencies{
			Generator: generation,
			Narrator:  engine,
			Exporter:  exporter,
			Ingestor:  ingestor,
			Preview:   media.NewPreview(videoPlayer, store, logger),
			Logger:    logger,
		}
	})

	return &Dependencies{
		Sessions:   sessions,
		Generation: generation,
		Narration:  engine,
		Lessons:    lessons,
		Store:      store,
	}, nil
}

// Close stops narration and closes every session.
func (d *Dependencies) Close(ctx context.Context) error {
	return errors.Join(d.Narration.Stop(), d.Sessions.Close(ctx))
}

// initNarration builds the narration engine. The remote backend is only
// configured when an ElevenLabs key is present.
func initNarration(cfg *config.Config, store storage.Storage, logger *slog.Logger) (*narration.Engine, error) {
	local := narration.NewLocalBackend(audio.NewEspeak(cfg.EspeakPath), logger)

	if !cfg.RemoteNarrationEnabled() {
		logger.Info("remote narration disabled, using local speech only",
			slog.String("espeak_path", cfg.EspeakPath),
		)
		return narration.NewEngine(local, logger), nil
	}

	client, err := elevenlabs.NewClient(
		elevenlabs.WithAPIKey(cfg.ElevenLabsAPIKey),
		elevenlabs.WithVoiceID(cfg.ElevenLabsVoiceID),
		elevenlabs.WithModelID(cfg.ElevenLabsModelID),
	)
	if err != nil {
		return nil, fmt.Errorf("create ElevenLabs client: %w", err)
	}

	remote := narration.NewRemoteBackend(client, store, media.NewFFplayPlayer(cfg.FFplayPath), logger)
	logger.Info("remote narration configured",
		slog.String("voice_id", cfg.ElevenLabsVoiceID),
		slog.String("model_id", cfg.ElevenLabsModelID),
	)
	return narration.NewEngine(local, logger, narration.WithRemote(remote)), nil
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 export destination configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir, cfg.ExportDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
		slog.String("export_dir", cfg.ExportDir),
	)
	return localStore, nil
}
