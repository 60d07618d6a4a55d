package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/maauso/zinara-studio/internal/credential"
	"github.com/maauso/zinara-studio/internal/generator"
)

// Static errors for generation.
var (
	// ErrCredential is returned when no API key could be obtained.
	ErrCredential = errors.New("job: credential unavailable")
	// ErrTimedOut is returned when polling exceeds the generation timeout.
	ErrTimedOut = errors.New("job: generation timed out")
	// ErrGenerationFailed is returned when the provider reports a failed job.
	ErrGenerationFailed = errors.New("job: generation failed")
)

// Status lines published while a job runs.
const (
	MessageAuthenticating = "Authenticating..."
	MessageSynthesizing   = "Synthesizing script..."
	MessageComplete       = "Creation complete."
	MessageFailed         = "Generation failed. Please try again."
	MessageTimedOut       = "Generation timed out. Please try again."
	MessageCancelled      = "Generation cancelled."
)

// PollPhases are the progress labels cycled through while polling, in order.
var PollPhases = [...]string{
	"Directing visual metaphors...",
	"Rendering cinematic frames...",
	"Applying studio lighting...",
	"Finalizing export...",
}

// Defaults for the poll loop.
const (
	DefaultPollInterval = 8 * time.Second
	DefaultTimeout      = 10 * time.Minute
	// DefaultAPIHost is the host whose result URIs need the API key to be fetched.
	DefaultAPIHost = "generativelanguage.googleapis.com"
)

// SubmitInput contains the input parameters for one generation.
type SubmitInput struct {
	// JobID lets the caller know the job identity before it runs. Generated when empty.
	JobID string
	// Supersedes is the caller's previous job. It is dropped from the
	// repository if it has finished.
	Supersedes string
	PromptInput
	// Image is an optional conditioning image.
	Image       *generator.Image
	Resolution  string
	AspectRatio string
}

// ProgressFunc receives a copy of the job after every state change.
type ProgressFunc func(snapshot *Job)

// GenerationService orchestrates one video generation: credential check,
// prompt composition, submission and a bounded, cancellable poll loop.
type GenerationService struct {
	repo   Repository
	broker credential.Broker
	dialer generator.Dialer
	logger *slog.Logger
	tracer trace.Tracer

	pollInterval time.Duration
	timeout      time.Duration
	apiHost      string
}

// ServiceOption configures a GenerationService.
type ServiceOption func(*GenerationService)

// WithPollInterval sets the wait between status queries.
func WithPollInterval(d time.Duration) ServiceOption {
	return func(s *GenerationService) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithTimeout bounds the poll loop.
func WithTimeout(d time.Duration) ServiceOption {
	return func(s *GenerationService) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithAPIHost sets the host whose result URIs get the API key appended.
func WithAPIHost(host string) ServiceOption {
	return func(s *GenerationService) {
		s.apiHost = host
	}
}

// WithTracer sets the tracer used for generation spans.
func WithTracer(t trace.Tracer) ServiceOption {
	return func(s *GenerationService) {
		if t != nil {
			s.tracer = t
		}
	}
}

// NewGenerationService creates a new GenerationService.
func NewGenerationService(repo Repository, broker credential.Broker, dialer generator.Dialer, logger *slog.Logger, opts ...ServiceOption) *GenerationService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &GenerationService{
		repo:         repo,
		broker:       broker,
		dialer:       dialer,
		logger:       logger,
		tracer:       otel.Tracer("github.com/maauso/zinara-studio/internal/job"),
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
		apiHost:      DefaultAPIHost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetJob retrieves a job by ID.
func (s *GenerationService) GetJob(ctx context.Context, id string) (*Job, error) {
	return s.repo.FindByID(ctx, id)
}

// Submit runs one generation to completion and returns the final job.
// It blocks until the job is terminal; cancel ctx to abort the poll loop.
// The returned job is non-nil whenever it was created, even on error.
func (s *GenerationService) Submit(ctx context.Context, in SubmitInput, progress ProgressFunc) (*Job, error) {
	if progress == nil {
		progress = func(*Job) {}
	}

	j := New()
	if in.JobID != "" {
		j = NewWithID(in.JobID)
	}

	ctx, span := s.tracer.Start(ctx, "generation.submit", trace.WithAttributes(
		attribute.String("job.id", j.ID),
		attribute.String("generation.resolution", in.Resolution),
		attribute.String("generation.aspect_ratio", in.AspectRatio),
	))
	defer span.End()

	s.logger.Info("creating new generation job",
		slog.String("job_id", j.ID),
		slog.String("resolution", in.Resolution),
		slog.String("aspect_ratio", in.AspectRatio),
		slog.Bool("conditioning_image", in.Image != nil),
	)

	if err := j.Submit(); err != nil {
		return j.Clone(), err
	}
	j.SetMessage(MessageAuthenticating)
	s.save(ctx, j, progress)
	s.forget(ctx, in.Supersedes)

	result, err := s.run(ctx, j, in, progress)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("job.status", string(result.Status)))
	return result, err
}

func (s *GenerationService) run(ctx context.Context, j *Job, in SubmitInput, progress ProgressFunc) (*Job, error) {
	if !s.broker.HasCredential(ctx) {
		s.logger.Info("no credential available, prompting", slog.String("job_id", j.ID))
		if err := s.broker.PromptForCredential(ctx); err != nil {
			return s.abort(ctx, j, progress, fmt.Errorf("%w: %w", ErrCredential, err))
		}
	}
	apiKey := s.broker.Credential()
	if apiKey == "" {
		return s.abort(ctx, j, progress, ErrCredential)
	}

	j.SetMessage(MessageSynthesizing)
	s.save(ctx, j, progress)

	api, err := s.dialer.Dial(ctx, apiKey)
	if err != nil {
		return s.abort(ctx, j, progress, fmt.Errorf("dial video API: %w", err))
	}

	op, err := api.Submit(ctx, generator.Request{
		Prompt:      BuildPrompt(in.PromptInput),
		Image:       in.Image,
		Resolution:  in.Resolution,
		AspectRatio: in.AspectRatio,
		Count:       1,
	})
	if err != nil {
		return s.abort(ctx, j, progress, fmt.Errorf("submit generation: %w", err))
	}
	if op == nil {
		return s.abort(ctx, j, progress, fmt.Errorf("%w: no operation returned", ErrGenerationFailed))
	}

	if err := j.StartPolling(op.Name); err != nil {
		return j.Clone(), err
	}
	s.logger.Info("generation submitted",
		slog.String("job_id", j.ID),
		slog.String("operation", op.Name),
	)
	s.save(ctx, j, progress)

	op, err = s.poll(ctx, j, api, op, progress)
	if err != nil {
		return s.abort(ctx, j, progress, err)
	}

	if op.Error != "" {
		return s.abort(ctx, j, progress, fmt.Errorf("%w: %s", ErrGenerationFailed, op.Error))
	}

	resultURI := op.FirstAssetURI()
	if resultURI != "" {
		resultURI = s.playableURI(resultURI, apiKey)
	}
	if err := j.Complete(resultURI); err != nil {
		return j.Clone(), err
	}
	if resultURI != "" {
		j.SetMessage(MessageComplete)
	} else {
		s.logger.Warn("generation finished without a video asset", slog.String("job_id", j.ID))
	}

	s.logger.Info("generation completed",
		slog.String("job_id", j.ID),
		slog.Int("polls", j.PollCount()),
		slog.Bool("has_result", resultURI != ""),
	)
	s.save(ctx, j, progress)
	return j.Clone(), nil
}

// poll re-queries op until it is done, publishing one phase label per wait.
// Queries are strictly sequential.
func (s *GenerationService) poll(ctx context.Context, j *Job, api generator.VideoAPI, op *generator.Operation, progress ProgressFunc) (*generator.Operation, error) {
	pollCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	timer := time.NewTimer(s.pollInterval)
	defer timer.Stop()

	for index := 0; !op.Done; index++ {
		phase := index % len(PollPhases)
		j.SetProgress(phase, PollPhases[phase])
		if err := j.TransitionTo(StatusPolling); err != nil {
			return nil, err
		}
		s.save(ctx, j, progress)

		timer.Reset(s.pollInterval)
		select {
		case <-pollCtx.Done():
			return nil, s.pollStopped(ctx)
		case <-timer.C:
		}

		next, err := s.getStatus(pollCtx, api, op)
		j.RecordPoll()
		if err != nil {
			if pollCtx.Err() != nil {
				return nil, s.pollStopped(ctx)
			}
			return nil, fmt.Errorf("poll generation: %w", err)
		}
		op = next
	}

	return op, nil
}

func (s *GenerationService) getStatus(ctx context.Context, api generator.VideoAPI, op *generator.Operation) (*generator.Operation, error) {
	ctx, span := s.tracer.Start(ctx, "generation.poll", trace.WithAttributes(
		attribute.String("generation.operation", op.Name),
	))
	defer span.End()

	next, err := api.GetStatus(ctx, op)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("generation.done", next.Done))
	return next, nil
}

// pollStopped tells a caller cancellation apart from the poll deadline.
func (s *GenerationService) pollStopped(parent context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	return ErrTimedOut
}

// abort moves j to the terminal state matching err and reports it.
func (s *GenerationService) abort(ctx context.Context, j *Job, progress ProgressFunc, err error) (*Job, error) {
	switch {
	case errors.Is(err, context.Canceled):
		_ = j.Cancel()
		j.SetMessage(MessageCancelled)
		s.logger.Info("generation cancelled", slog.String("job_id", j.ID))
	case errors.Is(err, ErrTimedOut):
		_ = j.Timeout()
		j.SetMessage(MessageTimedOut)
		s.logger.Error("generation timed out",
			slog.String("job_id", j.ID),
			slog.Duration("timeout", s.timeout),
		)
	default:
		_ = j.Fail(err.Error())
		j.SetMessage(MessageFailed)
		s.logger.Error("generation failed",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}

	// Record the outcome even if the caller's context is gone.
	s.save(context.WithoutCancel(ctx), j, progress)
	return j.Clone(), err
}

// forget deletes a superseded job if it has finished. A job that is still
// running is left for the repository's retention to evict.
func (s *GenerationService) forget(ctx context.Context, jobID string) {
	if jobID == "" {
		return
	}
	prev, err := s.repo.FindByID(ctx, jobID)
	if err != nil || !prev.IsTerminal() {
		return
	}
	if err := s.repo.Delete(ctx, jobID); err != nil && !errors.Is(err, ErrJobNotFound) {
		s.logger.Warn("failed to delete superseded job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return
	}
	s.logger.Debug("deleted superseded job", slog.String("job_id", jobID))
}

// save persists j and reports a snapshot.
func (s *GenerationService) save(ctx context.Context, j *Job, progress ProgressFunc) {
	if err := s.repo.Save(ctx, j); err != nil {
		s.logger.Warn("failed to save job",
			slog.String("job_id", j.ID),
			slog.String("error", err.Error()),
		)
	}
	progress(j.Clone())
}

// playableURI appends the API key to URIs served by the generation API, which
// refuses unauthenticated downloads. Other hosts are returned unchanged.
func (s *GenerationService) playableURI(raw, apiKey string) string {
	u, err := url.Parse(raw)
	if err != nil || s.apiHost == "" || !strings.EqualFold(u.Hostname(), s.apiHost) {
		return raw
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()
	return u.String()
}
