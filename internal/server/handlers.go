package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/maauso/zinara-studio/internal/ingest"
	"github.com/maauso/zinara-studio/internal/job"
	"github.com/maauso/zinara-studio/internal/lesson"
	"github.com/maauso/zinara-studio/internal/studio"
)

// DefaultMaxUploadBytes bounds multipart uploads when no limit is configured.
const DefaultMaxUploadBytes int64 = 64 << 20

// JobFinder looks up generation jobs. Implemented by job.GenerationService.
type JobFinder interface {
	GetJob(ctx context.Context, id string) (*job.Job, error)
}

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	sessions       *studio.Registry
	jobs           JobFinder
	lessons        *lesson.Assistant
	validator      *validator.Validate
	logger         *slog.Logger
	maxUploadBytes int64
}

// HandlerOption is a function that configures a Handlers instance.
type HandlerOption func(*Handlers)

// WithMaxUploadBytes bounds the size of multipart uploads.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxUploadBytes = n
		}
	}
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(sessions *studio.Registry, jobs JobFinder, lessons *lesson.Assistant, logger *slog.Logger, opts ...HandlerOption) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if lessons == nil {
		lessons = lesson.NewAssistant(nil, "", logger)
	}
	h := &Handlers{
		sessions:       sessions,
		jobs:           jobs,
		lessons:        lessons,
		validator:      validator.New(validator.WithRequiredStructEnabled()),
		logger:         logger,
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// CreateSession handles POST /sessions requests.
func (h *Handlers) CreateSession(w http.ResponseWriter, r *http.Request) {
	s := h.sessions.Create()
	h.logger.Info("session created", slog.String("session_id", s.ID()))
	writeJSON(w, http.StatusCreated, newSessionResponse(s.Snapshot()))
}

// ListSessions handles GET /sessions requests.
func (h *Handlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.List()
	out := make([]SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, newSessionResponse(s.Snapshot()))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetSession handles GET /sessions/{id} requests.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s.Snapshot()))
}

// DeleteSession handles DELETE /sessions/{id} requests.
func (h *Handlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if err := h.sessions.Delete(r.Context(), sessionID); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.logger.Info("session deleted", slog.String("session_id", sessionID))
	w.WriteHeader(http.StatusNoContent)
}

// UpdateConfig handles PATCH /sessions/{id}/config requests.
func (h *Handlers) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req UpdateConfigRequest
	if !h.decode(w, r, &req) {
		return
	}

	updates := req.updates()
	if len(updates) == 0 {
		writeError(w, http.StatusBadRequest, "at least one configuration field is required", "VALIDATION_ERROR")
		return
	}

	if _, err := s.ApplyConfiguration(updates); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s.Snapshot()))
}

// SetContent handles PUT /sessions/{id}/content requests.
func (h *Handlers) SetContent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req SetContentRequest
	if !h.decode(w, r, &req) {
		return
	}

	s.SetContent(req.Content)
	writeJSON(w, http.StatusOK, newSessionResponse(s.Snapshot()))
}

// AttachDocument handles POST /sessions/{id}/document multipart uploads.
func (h *Handlers) AttachDocument(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	f, closeFile, ok := h.upload(w, r)
	if !ok {
		return
	}
	defer closeFile()

	if err := s.AttachDocument(f); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s.Snapshot()))
}

// AttachVisual handles POST /sessions/{id}/visual multipart uploads.
func (h *Handlers) AttachVisual(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	f, closeFile, ok := h.upload(w, r)
	if !ok {
		return
	}
	defer closeFile()

	if _, err := s.AttachVisual(r.Context(), f); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s.Snapshot()))
}

// Generate handles POST /sessions/{id}/generate requests.
// Generation runs in the background; clients poll the session or job.
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if _, err := s.SubmitVideoGeneration(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, newSessionResponse(s.Snapshot()))
}

// CancelGeneration handles POST /sessions/{id}/generate/cancel requests.
func (h *Handlers) CancelGeneration(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	if !s.CancelGeneration() {
		writeError(w, http.StatusConflict, "no generation in progress", "NO_GENERATION")
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s.Snapshot()))
}

// ToggleNarration handles POST /sessions/{id}/narration/toggle requests.
func (h *Handlers) ToggleNarration(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	started, err := s.ToggleNarration(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	status := http.StatusOK
	if started != nil {
		status = http.StatusAccepted
	}
	writeJSON(w, status, newSessionResponse(s.Snapshot()))
}

// PauseNarration handles POST /sessions/{id}/narration/pause requests.
func (h *Handlers) PauseNarration(w http.ResponseWriter, r *http.Request) {
	h.narrationControl(w, r, (*studio.Session).PauseNarration)
}

// ResumeNarration handles POST /sessions/{id}/narration/resume requests.
func (h *Handlers) ResumeNarration(w http.ResponseWriter, r *http.Request) {
	h.narrationControl(w, r, (*studio.Session).ResumeNarration)
}

func (h *Handlers) narrationControl(w http.ResponseWriter, r *http.Request, control func(*studio.Session) error) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := control(s); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionResponse(s.Snapshot()))
}

// Export handles POST /sessions/{id}/export requests.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	res, err := s.ExportCurrentVideo(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newExportResponse(res))
}

// ToggleFullscreen handles POST /sessions/{id}/fullscreen requests.
func (h *Handlers) ToggleFullscreen(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, FullscreenResponse{Fullscreen: s.ToggleFullscreenPreview()})
}

// GetJob handles GET /jobs/{id} requests.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	foundJob, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobResponse(foundJob))
}

// LessonSummary handles POST /lessons/summary requests.
func (h *Handlers) LessonSummary(w http.ResponseWriter, r *http.Request) {
	var req SummaryRequest
	if !h.decode(w, r, &req) {
		return
	}

	summary := h.lessons.Summary(r.Context(), lesson.SummaryRequest{
		Title:    req.Title,
		Context:  req.Context,
		Language: req.Language,
		Level:    req.Level,
	})
	writeJSON(w, http.StatusOK, SummaryResponse{Summary: summary})
}

// LessonQuiz handles POST /lessons/quiz requests.
func (h *Handlers) LessonQuiz(w http.ResponseWriter, r *http.Request) {
	var req QuizRequest
	if !h.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, QuizResponse{Questions: h.lessons.Quiz(r.Context(), req.Title)})
}

// session resolves the {id} path parameter, writing a 404 when it is unknown.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) (*studio.Session, bool) {
	s, err := h.sessions.Find(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return nil, false
	}
	return s, true
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return false
	}
	return true
}

// upload reads the "file" part of a multipart request.
func (h *Handlers) upload(w http.ResponseWriter, r *http.Request) (ingest.File, func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload is too large", "UPLOAD_TOO_LARGE")
			return ingest.File{}, nil, false
		}
		writeError(w, http.StatusBadRequest, "invalid multipart body", "INVALID_MULTIPART")
		return ingest.File{}, nil, false
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required", "MISSING_FILE")
		return ingest.File{}, nil, false
	}

	return ingest.File{
		Name:     header.Filename,
		MIMEType: header.Header.Get("Content-Type"),
		Reader:   file,
	}, func() { _ = file.Close() }, true
}

// writeDomainError maps service errors onto the error envelope.
func (h *Handlers) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, studio.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND")
	case errors.Is(err, job.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, studio.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, studio.MessageEmptyContent, "EMPTY_CONTENT")
	case errors.Is(err, studio.ErrEmptyNarration):
		writeError(w, http.StatusBadRequest, studio.MessageEmptyNarration, "EMPTY_NARRATION")
	case errors.Is(err, studio.ErrInvalidConfiguration):
		writeError(w, http.StatusBadRequest, err.Error(), "INVALID_CONFIGURATION")
	case errors.Is(err, ingest.ErrEmptyVisual):
		writeError(w, http.StatusBadRequest, "visual reference is empty", "EMPTY_VISUAL")
	case errors.Is(err, ingest.ErrVisualTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "visual reference is too large", "VISUAL_TOO_LARGE")
	case errors.Is(err, studio.ErrGenerationInFlight):
		writeError(w, http.StatusConflict, "generation already in progress", "GENERATION_IN_FLIGHT")
	case errors.Is(err, studio.ErrExportInFlight):
		writeError(w, http.StatusConflict, "export already in progress", "EXPORT_IN_FLIGHT")
	case errors.Is(err, studio.ErrNoVideo):
		writeError(w, http.StatusConflict, "no video to export", "NO_VIDEO")
	case errors.Is(err, studio.ErrNotNarrating):
		writeError(w, http.StatusConflict, "no narration playing", "NOT_NARRATING")
	case errors.Is(err, studio.ErrClosed):
		writeError(w, http.StatusConflict, "session is closed", "SESSION_CLOSED")
	default:
		h.logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
