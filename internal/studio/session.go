// Package studio implements the studio session controller: one user's
// configuration, knowledge input and visual reference, plus the generation,
// narration and export work started from them.
package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/maauso/zinara-studio/internal/export"
	"github.com/maauso/zinara-studio/internal/ingest"
	"github.com/maauso/zinara-studio/internal/job"
	"github.com/maauso/zinara-studio/internal/job/id"
	"github.com/maauso/zinara-studio/internal/narration"
)

// Static errors for session operations.
var (
	// ErrEmptyContent is returned when generation is requested without content.
	ErrEmptyContent = errors.New("studio: content is required for generation")
	// ErrEmptyNarration is returned when narration is requested without content.
	ErrEmptyNarration = errors.New("studio: content is required for narration")
	// ErrGenerationInFlight is returned when a generation is already running for the session.
	ErrGenerationInFlight = errors.New("studio: generation already in progress")
	// ErrNoVideo is returned when exporting before a video is available.
	ErrNoVideo = errors.New("studio: no video to export")
	// ErrExportInFlight is returned when an export is already running for the session.
	ErrExportInFlight = errors.New("studio: export already in progress")
	// ErrNotNarrating is returned by pause and resume when no narration is playing.
	ErrNotNarrating = errors.New("studio: no narration playing")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("studio: session closed")
)

// Status lines owned by the controller. Generation lines come from the job package.
const (
	MessageEmptyContent      = "Please provide some educational content or a prompt."
	MessageEmptyNarration    = "Please provide some educational content."
	MessageAudioStopped      = "Audio stopped."
	MessageSynthesizingAudio = "Synthesizing audio lesson..."
	MessageAudioComplete     = "Audio lesson complete."
	MessageAudioFailed       = "Audio synthesis failed."
)

// Generator runs one generation to completion. Implemented by job.GenerationService.
type Generator interface {
	Submit(ctx context.Context, in job.SubmitInput, progress job.ProgressFunc) (*job.Job, error)
}

// Narrator speaks text with at most one narration active. Implemented by narration.Engine.
type Narrator interface {
	Speak(ctx context.Context, text string, opts narration.Options) error
	Pause() error
	Resume() error
	Stop() error
}

// Previewer plays the session's reference video alongside narration. Implemented by media.Preview.
type Previewer interface {
	Restart(ctx context.Context, key string, data []byte) error
	Pause() error
	Close(ctx context.Context) error
}

// Exporter delivers a finished video. Implemented by export.Exporter.
type Exporter interface {
	Export(ctx context.Context, uri string) (export.Result, error)
}

// Dependencies are the collaborators a session drives.
type Dependencies struct {
	Generator Generator
	Narrator  Narrator
	Exporter  Exporter
	Ingestor  *ingest.Ingestor
	// Preview is optional; without it video references are not played.
	Preview Previewer
	Logger  *slog.Logger
}

// KnowledgeInput is the lesson content a session generates and narrates from.
type KnowledgeInput struct {
	Content      string `json:"content"`
	DocumentName string `json:"document_name,omitempty"`
}

// VisualInfo describes the attached visual reference without its content.
type VisualInfo struct {
	ID       string      `json:"id"`
	Kind     ingest.Kind `json:"kind"`
	Name     string      `json:"name"`
	MIMEType string      `json:"mime_type"`
	Size     int64       `json:"size"`
}

// State is a consistent copy of a session for readers.
type State struct {
	ID            string         `json:"id"`
	Configuration Configuration  `json:"configuration"`
	Input         KnowledgeInput `json:"input"`
	Visual        *VisualInfo    `json:"visual,omitempty"`
	JobID         string         `json:"job_id,omitempty"`
	Job           *job.Job       `json:"job,omitempty"`
	ResultURI     string         `json:"result_uri,omitempty"`
	Generating    bool           `json:"generating"`
	Narrating     bool           `json:"narrating"`
	Downloading   bool           `json:"downloading"`
	Fullscreen    bool           `json:"fullscreen"`
	Status        string         `json:"status"`
	LastExport    *export.Result `json:"last_export,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Session is one studio workspace. All methods are safe for concurrent use.
type Session struct {
	id        string
	createdAt time.Time
	deps      Dependencies
	logger    *slog.Logger

	mu         sync.Mutex
	closed     bool
	config     Configuration
	input      KnowledgeInput
	visual     *ingest.VisualReference
	status     string
	fullscreen bool

	// generation
	jobID      string
	current    *job.Job
	generating bool
	cancelGen  context.CancelFunc

	// narration; narrationSeq identifies the latest toggle so stale results are ignored.
	narrating       bool
	narrationSeq    uint64
	cancelNarration context.CancelFunc

	downloading bool
	lastExport  *export.Result
}

// NewSession creates a session with the default configuration.
func NewSession(deps Dependencies) *Session {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Ingestor == nil {
		deps.Ingestor = ingest.NewIngestor(ingest.DefaultMaxVisualBytes)
	}
	sessionID := id.New("session")
	return &Session{
		id:        sessionID,
		createdAt: time.Now(),
		deps:      deps,
		logger:    deps.Logger.With(slog.String("session_id", sessionID)),
		config:    DefaultConfiguration(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Configuration returns the current configuration.
func (s *Session) Configuration() Configuration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// UpdateConfiguration sets one field. Invalid values leave the configuration unchanged.
func (s *Session) UpdateConfiguration(field Field, value string) (Configuration, error) {
	return s.ApplyConfiguration(map[Field]string{field: value})
}

// ApplyConfiguration sets several fields atomically.
func (s *Session) ApplyConfiguration(updates map[Field]string) (Configuration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.config.Apply(updates)
	if err != nil {
		return s.config, err
	}
	s.config = next
	return next, nil
}

// SetResolution sets the output resolution.
func (s *Session) SetResolution(v string) error { return s.set(FieldResolution, v) }

// SetAspectRatio sets the output aspect ratio.
func (s *Session) SetAspectRatio(v string) error { return s.set(FieldAspectRatio, v) }

// SetVisualStyle sets the visual style.
func (s *Session) SetVisualStyle(v string) error { return s.set(FieldVisualStyle, v) }

// SetGuidanceLevel sets the guidance level.
func (s *Session) SetGuidanceLevel(v string) error { return s.set(FieldGuidanceLevel, v) }

// SetLanguage sets the lesson language.
func (s *Session) SetLanguage(v string) error { return s.set(FieldLanguage, v) }

// SetLearnerLevel sets the learner level.
func (s *Session) SetLearnerLevel(v string) error { return s.set(FieldLearnerLevel, v) }

// SetAudioModel selects the narration engine.
func (s *Session) SetAudioModel(v string) error { return s.set(FieldAudioModel, v) }

func (s *Session) set(field Field, value string) error {
	_, err := s.UpdateConfiguration(field, value)
	return err
}

// SetContent replaces the lesson content.
func (s *Session) SetContent(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.input.Content = text
}

// AttachDocument records a PDF as prompt context. Other document types are ignored.
func (s *Session) AttachDocument(f ingest.File) error {
	doc, err := s.deps.Ingestor.IngestDocument(f)
	if errors.Is(err, ingest.ErrUnsupportedDocument) {
		s.logger.Debug("ignoring unsupported document",
			slog.String("name", f.Name),
			slog.String("mime_type", f.MIMEType),
		)
		return nil
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.input.DocumentName = doc.Name
	s.status = "Ready with " + doc.Name
	return nil
}

// AttachVisual replaces the visual reference with f.
func (s *Session) AttachVisual(ctx context.Context, f ingest.File) (VisualInfo, error) {
	ref, err := s.deps.Ingestor.IngestVisual(ctx, f)
	if err != nil {
		return VisualInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.visual = &ref
	s.logger.Info("visual reference attached",
		slog.String("kind", string(ref.Kind)),
		slog.String("name", ref.Name),
		slog.Int64("size", ref.Size),
	)
	return visualInfo(ref), nil
}

// SubmitVideoGeneration starts a generation from the current content and configuration.
// The returned channel receives the outcome once and is then closed.
func (s *Session) SubmitVideoGeneration(ctx context.Context) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if strings.TrimSpace(s.input.Content) == "" {
		s.status = MessageEmptyContent
		return nil, ErrEmptyContent
	}
	if s.generating {
		return nil, ErrGenerationInFlight
	}

	in := job.SubmitInput{
		JobID:      id.Generate(),
		Supersedes: s.jobID,
		PromptInput: job.PromptInput{
			Content:       s.input.Content,
			DocumentName:  s.input.DocumentName,
			VisualStyle:   s.config.VisualStyle,
			GuidanceLevel: s.config.GuidanceLevel,
			Language:      s.config.Language,
			LearnerLevel:  s.config.LearnerLevel,
		},
		Resolution:  s.config.Resolution,
		AspectRatio: s.config.AspectRatio,
	}
	if s.visual != nil {
		if img, ok := s.visual.ConditioningImage(); ok {
			in.Image = img
		}
	}

	genCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.jobID = in.JobID
	s.current = nil
	s.generating = true
	s.cancelGen = cancel
	s.status = job.MessageAuthenticating

	s.logger.Info("generation requested",
		slog.String("job_id", in.JobID),
		slog.Bool("conditioning_image", in.Image != nil),
	)

	done := make(chan error, 1)
	go func() {
		defer close(done)
		defer cancel()
		j, err := s.deps.Generator.Submit(genCtx, in, func(snapshot *job.Job) {
			s.onJobProgress(snapshot)
		})
		s.finishGeneration(in.JobID, j)
		done <- err
	}()

	return done, nil
}

// onJobProgress records a job snapshot unless the job has been superseded.
func (s *Session) onJobProgress(snapshot *job.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snapshot == nil || snapshot.ID != s.jobID {
		return
	}
	s.current = snapshot
	if snapshot.ProgressMessage != "" {
		s.status = snapshot.ProgressMessage
	}
}

func (s *Session) finishGeneration(jobID string, final *job.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if jobID != s.jobID {
		s.logger.Debug("discarding superseded generation result", slog.String("job_id", jobID))
		return
	}
	s.generating = false
	s.cancelGen = nil
	if final != nil {
		s.current = final
		if final.ProgressMessage != "" {
			s.status = final.ProgressMessage
		}
	}
}

// CancelGeneration aborts the in-flight generation. It reports whether one was running.
func (s *Session) CancelGeneration() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelGenerationLocked()
}

func (s *Session) cancelGenerationLocked() bool {
	if !s.generating {
		return false
	}
	if s.cancelGen != nil {
		s.cancelGen()
		s.cancelGen = nil
	}
	s.generating = false
	s.status = job.MessageCancelled
	s.logger.Info("generation cancelled", slog.String("job_id", s.jobID))
	return true
}

// ToggleNarration stops the active narration, or starts narrating the content.
// When starting, the returned channel receives the outcome once and is then
// closed. When stopping, the channel is nil.
func (s *Session) ToggleNarration(ctx context.Context) (<-chan error, error) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	text := s.input.Content
	if strings.TrimSpace(text) == "" {
		s.status = MessageEmptyNarration
		s.mu.Unlock()
		return nil, ErrEmptyNarration
	}

	if s.narrating {
		s.stopNarrationLocked()
		s.status = MessageAudioStopped
		s.mu.Unlock()
		s.pausePreview()
		return nil, nil
	}

	s.narrationSeq++
	seq := s.narrationSeq
	s.narrating = true
	s.status = MessageSynthesizingAudio
	narrCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelNarration = cancel
	visual := s.visual
	opts := narration.Options{
		Language: s.config.Language,
		Engine:   s.config.Engine(),
	}
	s.mu.Unlock()

	done := make(chan error, 1)
	if visual != nil && visual.IsVideo() {
		s.restartPreview(narrCtx, *visual)

		// A stop that landed while the preview was restarting wins.
		if !s.isCurrentNarration(seq) {
			cancel()
			s.pausePreview()
			done <- narration.ErrStopped
			close(done)
			return done, nil
		}
	}

	go func() {
		defer close(done)
		defer cancel()
		err := s.deps.Narrator.Speak(narrCtx, text, opts)
		s.finishNarration(seq, err)
		done <- err
	}()

	return done, nil
}

// stopNarrationLocked ends this session's narration and invalidates its pending result.
func (s *Session) stopNarrationLocked() {
	s.narrationSeq++
	s.narrating = false
	if s.cancelNarration != nil {
		s.cancelNarration()
		s.cancelNarration = nil
	}
	if err := s.deps.Narrator.Stop(); err != nil {
		s.logger.Warn("failed to stop narration", slog.String("error", err.Error()))
	}
}

func (s *Session) finishNarration(seq uint64, err error) {
	s.mu.Lock()
	if seq != s.narrationSeq {
		s.mu.Unlock()
		return
	}
	s.narrating = false
	s.cancelNarration = nil
	switch {
	case err == nil:
		s.status = MessageAudioComplete
	case errors.Is(err, narration.ErrStopped):
		s.status = MessageAudioStopped
	default:
		s.logger.Error("narration failed", slog.String("error", err.Error()))
		s.status = MessageAudioFailed
	}
	s.mu.Unlock()

	s.pausePreview()
}

// PauseNarration suspends the playing narration and its preview.
func (s *Session) PauseNarration() error {
	if !s.isNarrating() {
		return ErrNotNarrating
	}
	s.pausePreview()
	return s.deps.Narrator.Pause()
}

// ResumeNarration continues a paused narration.
func (s *Session) ResumeNarration() error {
	if !s.isNarrating() {
		return ErrNotNarrating
	}
	return s.deps.Narrator.Resume()
}

func (s *Session) isCurrentNarration(seq uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seq == s.narrationSeq
}

func (s *Session) isNarrating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.narrating
}

func (s *Session) restartPreview(ctx context.Context, ref ingest.VisualReference) {
	if s.deps.Preview == nil {
		return
	}
	data, err := ref.Bytes()
	if err == nil {
		err = s.deps.Preview.Restart(ctx, ref.ID, data)
	}
	if err != nil {
		s.logger.Warn("failed to restart preview", slog.String("error", err.Error()))
	}
}

func (s *Session) pausePreview() {
	if s.deps.Preview == nil {
		return
	}
	if err := s.deps.Preview.Pause(); err != nil {
		s.logger.Warn("failed to pause preview", slog.String("error", err.Error()))
	}
}

// ExportCurrentVideo delivers the generated video.
func (s *Session) ExportCurrentVideo(ctx context.Context) (export.Result, error) {
	s.mu.Lock()
	uri := s.resultURILocked()
	switch {
	case s.closed:
		s.mu.Unlock()
		return export.Result{}, ErrClosed
	case uri == "":
		s.mu.Unlock()
		return export.Result{}, ErrNoVideo
	case s.downloading:
		s.mu.Unlock()
		return export.Result{}, ErrExportInFlight
	}
	s.downloading = true
	s.mu.Unlock()

	res, err := s.deps.Exporter.Export(ctx, uri)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.downloading = false
	if err != nil {
		return export.Result{}, fmt.Errorf("export video: %w", err)
	}
	s.lastExport = &res
	return res, nil
}

// ToggleFullscreenPreview flips the fullscreen flag and returns the new value.
func (s *Session) ToggleFullscreenPreview() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fullscreen = !s.fullscreen
	return s.fullscreen
}

// Snapshot returns a consistent copy of the session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:            s.id,
		Configuration: s.config,
		Input:         s.input,
		JobID:         s.jobID,
		ResultURI:     s.resultURILocked(),
		Generating:    s.generating,
		Narrating:     s.narrating,
		Downloading:   s.downloading,
		Fullscreen:    s.fullscreen,
		Status:        s.status,
		CreatedAt:     s.createdAt,
	}
	if s.visual != nil {
		info := visualInfo(*s.visual)
		st.Visual = &info
	}
	if s.current != nil {
		st.Job = s.current.Clone()
	}
	if s.lastExport != nil {
		res := *s.lastExport
		st.LastExport = &res
	}
	return st
}

// Close cancels generation, stops this session's narration and releases the preview.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancelGenerationLocked()
	if s.narrating {
		s.stopNarrationLocked()
	}
	s.mu.Unlock()

	if s.deps.Preview != nil {
		return s.deps.Preview.Close(ctx)
	}
	return nil
}

func (s *Session) resultURILocked() string {
	if s.current == nil || !s.current.HasResult() {
		return ""
	}
	return s.current.ResultURI
}

func visualInfo(ref ingest.VisualReference) VisualInfo {
	return VisualInfo{
		ID:       ref.ID,
		Kind:     ref.Kind,
		Name:     ref.Name,
		MIMEType: ref.MIMEType,
		Size:     ref.Size,
	}
}
