// Package server provides the HTTP API for the studio.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/zinara-studio/internal/export"
	"github.com/maauso/zinara-studio/internal/job"
	"github.com/maauso/zinara-studio/internal/lesson"
	"github.com/maauso/zinara-studio/internal/studio"
)

// UpdateConfigRequest is the HTTP request body for changing session configuration.
// Omitted fields are left unchanged.
type UpdateConfigRequest struct {
	Resolution    string `json:"resolution,omitempty" validate:"omitempty,oneof=720p 1080p"`
	AspectRatio   string `json:"aspect_ratio,omitempty" validate:"omitempty,oneof=16:9 9:16"`
	VisualStyle   string `json:"visual_style,omitempty" validate:"omitempty,oneof=Cinematic Minimalist Hyper-realistic 'Studio 3D' Hand-drawn"`
	GuidanceLevel string `json:"guidance_level,omitempty" validate:"omitempty,oneof=Low Medium High"`
	Language      string `json:"language,omitempty" validate:"omitempty,max=64"`
	LearnerLevel  string `json:"learner_level,omitempty" validate:"omitempty,oneof=Beginner Intermediate Professional"`
	AudioModel    string `json:"audio_model,omitempty" validate:"omitempty,oneof=local remote"`
}

// updates returns the non-empty fields keyed by configuration field.
func (r UpdateConfigRequest) updates() map[studio.Field]string {
	out := make(map[studio.Field]string)
	for field, value := range map[studio.Field]string{
		studio.FieldResolution:    r.Resolution,
		studio.FieldAspectRatio:   r.AspectRatio,
		studio.FieldVisualStyle:   r.VisualStyle,
		studio.FieldGuidanceLevel: r.GuidanceLevel,
		studio.FieldLanguage:      r.Language,
		studio.FieldLearnerLevel:  r.LearnerLevel,
		studio.FieldAudioModel:    r.AudioModel,
	} {
		if value != "" {
			out[field] = value
		}
	}
	return out
}

// SetContentRequest is the HTTP request body for replacing lesson content.
type SetContentRequest struct {
	Content string `json:"content" validate:"max=100000"`
}

// SummaryRequest is the HTTP request body for a lesson summary.
type SummaryRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Context  string `json:"context" validate:"max=2000"`
	Language string `json:"language" validate:"max=64"`
	Level    string `json:"level" validate:"omitempty,oneof=Beginner Intermediate Professional"`
}

// SummaryResponse is the HTTP response for a lesson summary.
type SummaryResponse struct {
	Summary string `json:"summary"`
}

// QuizRequest is the HTTP request body for a lesson quiz.
type QuizRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// QuizResponse is the HTTP response for a lesson quiz.
type QuizResponse struct {
	Questions []lesson.Question `json:"questions"`
}

// JobResponse is the HTTP response for getting job details.
type JobResponse struct {
	// ID is the unique identifier for the job.
	ID string `json:"id"`
	// Status is the current job status.
	Status string `json:"status"`
	// ProgressIndex is the current poll phase.
	ProgressIndex int `json:"progress_index"`
	// Message is the human-readable status line.
	Message string `json:"message,omitempty"`
	// Polls is the number of status queries made.
	Polls int `json:"polls"`
	// ResultURI is the playable video location once done.
	ResultURI string `json:"result_uri,omitempty"`
	// HasResult is false when the job finished without a video.
	HasResult bool `json:"has_result"`
	// Error contains any error message if the job failed.
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newJobResponse(j *job.Job) JobResponse {
	return JobResponse{
		ID:            j.ID,
		Status:        string(j.Status),
		ProgressIndex: j.ProgressIndex,
		Message:       j.ProgressMessage,
		Polls:         j.Polls,
		ResultURI:     j.ResultURI,
		HasResult:     j.HasResult(),
		Error:         j.Error,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

// SessionResponse is the HTTP response describing a studio session.
type SessionResponse struct {
	ID            string               `json:"id"`
	Configuration studio.Configuration `json:"configuration"`
	Content       string               `json:"content"`
	DocumentName  string               `json:"document_name,omitempty"`
	Visual        *studio.VisualInfo   `json:"visual,omitempty"`
	JobID         string               `json:"job_id,omitempty"`
	Job           *JobResponse         `json:"job,omitempty"`
	ResultURI     string               `json:"result_uri,omitempty"`
	Generating    bool                 `json:"generating"`
	Narrating     bool                 `json:"narrating"`
	Downloading   bool                 `json:"downloading"`
	Fullscreen    bool                 `json:"fullscreen"`
	Status        string               `json:"status"`
	LastExport    *ExportResponse      `json:"last_export,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`
}

func newSessionResponse(st studio.State) SessionResponse {
	resp := SessionResponse{
		ID:            st.ID,
		Configuration: st.Configuration,
		Content:       st.Input.Content,
		DocumentName:  st.Input.DocumentName,
		Visual:        st.Visual,
		JobID:         st.JobID,
		ResultURI:     st.ResultURI,
		Generating:    st.Generating,
		Narrating:     st.Narrating,
		Downloading:   st.Downloading,
		Fullscreen:    st.Fullscreen,
		Status:        st.Status,
		CreatedAt:     st.CreatedAt,
	}
	if st.Job != nil {
		jr := newJobResponse(st.Job)
		resp.Job = &jr
	}
	if st.LastExport != nil {
		er := newExportResponse(*st.LastExport)
		resp.LastExport = &er
	}
	return resp
}

// ExportResponse is the HTTP response after exporting a video.
type ExportResponse struct {
	Filename         string `json:"filename"`
	Location         string `json:"location,omitempty"`
	Bytes            int64  `json:"bytes,omitempty"`
	OpenedExternally bool   `json:"opened_externally"`
}

func newExportResponse(r export.Result) ExportResponse {
	return ExportResponse(r)
}

// FullscreenResponse is the HTTP response after toggling fullscreen.
type FullscreenResponse struct {
	Fullscreen bool `json:"fullscreen"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
