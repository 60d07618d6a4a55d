package narration

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maauso/zinara-studio/internal/job/id"
)

// Engine coordinates the local and remote backends and owns the single
// active narration session.
type Engine struct {
	local  Backend
	remote Backend // nil when no remote API key is configured
	logger *slog.Logger
	tracer trace.Tracer

	// switchMu is held while one narration hands the backends to the next.
	switchMu sync.Mutex

	mu      sync.Mutex
	seq     uint64
	session *Session
	cancel  context.CancelFunc
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithRemote enables the remote backend.
func WithRemote(b Backend) EngineOption {
	return func(e *Engine) {
		e.remote = b
	}
}

// WithTracer sets the tracer used for narration spans.
func WithTracer(t trace.Tracer) EngineOption {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// NewEngine creates an Engine speaking through local, and through the remote
// backend when one is supplied with WithRemote.
func NewEngine(local Backend, logger *slog.Logger, opts ...EngineOption) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		local:  local,
		logger: logger,
		tracer: otel.Tracer("github.com/maauso/zinara-studio/internal/narration"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RemoteEnabled reports whether the remote backend is configured.
func (e *Engine) RemoteEnabled() bool {
	return e.remote != nil
}

// Speak stops any active narration, then plays text and blocks until it ends.
// A remote failure falls back to the local backend once with the same options,
// unless the narration was stopped.
func (e *Engine) Speak(ctx context.Context, text string, opts Options) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}

	kind := opts.Engine
	if kind != EngineRemote || e.remote == nil {
		kind = EngineLocal
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.switchMu.Lock()
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.seq++
	seq := e.seq
	e.session = &Session{ID: id.New("narration"), Engine: kind, Active: true}
	e.cancel = cancel
	sessionID := e.session.ID
	e.mu.Unlock()
	_ = e.stopBackends()
	e.switchMu.Unlock()

	ctx, span := e.tracer.Start(ctx, "narration.speak", trace.WithAttributes(
		attribute.String("narration.session", sessionID),
		attribute.String("narration.engine", string(kind)),
		attribute.String("narration.language", opts.Language),
	))
	defer span.End()

	e.logger.Info("starting narration",
		slog.String("session_id", sessionID),
		slog.String("engine", string(kind)),
		slog.String("language", opts.Language),
	)

	err := e.backend(kind).Speak(ctx, text, opts)

	if err != nil && kind == EngineRemote && !errors.Is(err, ErrStopped) && e.isCurrent(seq) && ctx.Err() == nil {
		e.logger.Warn("remote narration failed, falling back to local",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
		span.AddEvent("fallback")

		e.mu.Lock()
		if e.seq == seq && e.session != nil {
			e.session.Engine = EngineLocal
		}
		e.mu.Unlock()

		err = e.local.Speak(ctx, text, opts)
	}

	// A narration replaced by a newer one ends through its cancelled context.
	if err != nil && parent.Err() == nil && ctx.Err() != nil {
		err = ErrStopped
	}

	e.finish(seq)

	switch {
	case err == nil:
		e.logger.Info("narration complete", slog.String("session_id", sessionID))
	case errors.Is(err, ErrStopped):
		e.logger.Info("narration stopped", slog.String("session_id", sessionID))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Error("narration failed",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()),
		)
	}

	return err
}

// Pause suspends the active narration, if any.
func (e *Engine) Pause() error {
	s, ok := e.Active()
	if !ok {
		return nil
	}
	return e.backend(s.Engine).Pause()
}

// Resume continues a paused narration, if any.
func (e *Engine) Resume() error {
	s, ok := e.Active()
	if !ok {
		return nil
	}
	return e.backend(s.Engine).Resume()
}

// Stop ends any narration on both backends and clears the session.
// Safe to call when nothing is playing.
func (e *Engine) Stop() error {
	e.switchMu.Lock()
	defer e.switchMu.Unlock()

	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.session = nil
	e.mu.Unlock()

	return e.stopBackends()
}

func (e *Engine) stopBackends() error {
	var errs []error
	if err := e.local.Stop(); err != nil {
		errs = append(errs, err)
	}
	if e.remote != nil {
		if err := e.remote.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Active returns the narration currently playing.
func (e *Engine) Active() (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return Session{}, false
	}
	return *e.session, true
}

func (e *Engine) backend(kind EngineKind) Backend {
	if kind == EngineRemote && e.remote != nil {
		return e.remote
	}
	return e.local
}

func (e *Engine) isCurrent(seq uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq == seq && e.session != nil
}

// finish clears the session if no newer Speak or Stop replaced it.
func (e *Engine) finish(seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.seq == seq {
		e.session = nil
		e.cancel = nil
	}
}
