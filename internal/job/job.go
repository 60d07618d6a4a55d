// Package job provides the GenerationJob aggregate and the service that drives
// one video generation from credential check to a playable result.
// It includes the Job entity with its state machine and the repository
// interface for persistence.
package job

import (
	"errors"
	"sync"
	"time"

	"github.com/maauso/zinara-studio/internal/job/id"
)

// Status represents the current state of a Job.
type Status string

const (
	// StatusIdle indicates the job was created but not yet submitted.
	StatusIdle Status = "idle"
	// StatusSubmitted indicates the job is authenticating and sending its request.
	StatusSubmitted Status = "submitted"
	// StatusPolling indicates the provider accepted the job and it is being polled.
	StatusPolling Status = "polling"
	// StatusDone indicates the provider finished the job.
	StatusDone Status = "done"
	// StatusFailed indicates the job encountered an error.
	StatusFailed Status = "failed"
	// StatusTimedOut indicates polling exceeded the generation timeout.
	StatusTimedOut Status = "timed_out"
	// StatusCancelled indicates the job was aborted or superseded.
	StatusCancelled Status = "cancelled"
)

// ErrInvalidTransition is returned when an invalid state transition is attempted.
var ErrInvalidTransition = errors.New("job: invalid state transition")

// validTransitions defines which state transitions are allowed.
var validTransitions = map[Status][]Status{
	StatusIdle:      {StatusSubmitted},
	StatusSubmitted: {StatusPolling, StatusFailed, StatusCancelled},
	StatusPolling:   {StatusPolling, StatusDone, StatusFailed, StatusTimedOut, StatusCancelled},
	StatusDone:      {},
	StatusFailed:    {},
	StatusTimedOut:  {},
	StatusCancelled: {},
}

// canTransition checks if a transition from one status to another is valid.
func canTransition(from, to Status) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDone, StatusFailed, StatusTimedOut, StatusCancelled:
		return true
	default:
		return false
	}
}

// Job represents one video generation request.
type Job struct {
	mu sync.RWMutex

	// ID is the unique identifier for this job.
	ID string
	// Status is the current job state.
	Status Status
	// ProgressIndex is the position in the cyclic progress phases.
	ProgressIndex int
	// ProgressMessage is the human-readable status line for this job.
	ProgressMessage string
	// Polls counts the status queries made so far.
	Polls int
	// OperationName is the provider's handle name.
	OperationName string
	// ResultURI is the playable video location; empty when the provider returned no asset.
	ResultURI string
	// Error contains any error message if the job failed.
	Error string
	// CreatedAt is when the job was created.
	CreatedAt time.Time
	// UpdatedAt is when the job was last updated.
	UpdatedAt time.Time
	// SubmittedAt is when the request was handed to the orchestrator.
	SubmittedAt time.Time
	// CompletedAt is when the job reached a terminal state.
	CompletedAt time.Time
}

// New creates a new Job with a generated ID and initial idle status.
func New() *Job {
	return NewWithID(id.Generate())
}

// NewWithID creates a new Job with the specified ID and initial idle status.
func NewWithID(jobID string) *Job {
	now := time.Now()
	return &Job{
		ID:        jobID,
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// TransitionTo attempts to change the job status to the specified state.
// Returns ErrInvalidTransition if the transition is not allowed.
func (j *Job) TransitionTo(status Status) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.transitionLocked(status)
}

func (j *Job) transitionLocked(status Status) error {
	if !canTransition(j.Status, status) {
		return ErrInvalidTransition
	}

	j.Status = status
	j.UpdatedAt = time.Now()

	switch {
	case status == StatusSubmitted:
		j.SubmittedAt = j.UpdatedAt
	case status.IsTerminal():
		j.CompletedAt = j.UpdatedAt
	}

	return nil
}

// Submit transitions the job from idle to submitted.
func (j *Job) Submit() error {
	return j.TransitionTo(StatusSubmitted)
}

// StartPolling records the provider handle and transitions to polling.
func (j *Job) StartPolling(operationName string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusPolling); err != nil {
		return err
	}
	j.OperationName = operationName
	return nil
}

// Complete transitions the job to done with the given result location.
func (j *Job) Complete(resultURI string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusDone); err != nil {
		return err
	}
	j.ResultURI = resultURI
	return nil
}

// Fail transitions the job to failed with an error message.
func (j *Job) Fail(errMsg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.transitionLocked(StatusFailed); err != nil {
		return err
	}
	j.Error = errMsg
	return nil
}

// Cancel transitions the job to cancelled.
func (j *Job) Cancel() error {
	return j.TransitionTo(StatusCancelled)
}

// Timeout transitions the job to timed_out.
func (j *Job) Timeout() error {
	return j.TransitionTo(StatusTimedOut)
}

// SetProgress updates the status line and, for poll phases, the phase index.
func (j *Job) SetProgress(index int, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ProgressIndex = index
	j.ProgressMessage = message
	j.UpdatedAt = time.Now()
}

// SetMessage updates the status line without touching the phase index.
func (j *Job) SetMessage(message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ProgressMessage = message
	j.UpdatedAt = time.Now()
}

// RecordPoll increments the poll counter.
func (j *Job) RecordPoll() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Polls++
}

// PollCount returns the number of status queries made so far.
func (j *Job) PollCount() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Polls
}

// GetStatus returns the current job status (thread-safe).
func (j *Job) GetStatus() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.GetStatus().IsTerminal()
}

// HasResult reports whether the job finished with a playable video.
// A done job may have no result when the provider returned no asset.
func (j *Job) HasResult() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status == StatusDone && j.ResultURI != ""
}

// Clone creates a copy of the job for safe reads.
func (j *Job) Clone() *Job {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return &Job{
		ID:              j.ID,
		Status:          j.Status,
		ProgressIndex:   j.ProgressIndex,
		ProgressMessage: j.ProgressMessage,
		Polls:           j.Polls,
		OperationName:   j.OperationName,
		ResultURI:       j.ResultURI,
		Error:           j.Error,
		CreatedAt:       j.CreatedAt,
		UpdatedAt:       j.UpdatedAt,
		SubmittedAt:     j.SubmittedAt,
		CompletedAt:     j.CompletedAt,
	}
}
