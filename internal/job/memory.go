package job

import (
	"context"
	"sort"
	"sync"
)

// DefaultTerminalRetention is how many finished jobs a MemoryRepository keeps.
const DefaultTerminalRetention = 256

// Compile-time check that MemoryRepository implements Repository.
var _ Repository = (*MemoryRepository)(nil)

// MemoryRepository is an in-memory implementation of Repository.
// Running jobs are always kept. Finished jobs beyond the retention limit are
// evicted oldest first.
type MemoryRepository struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	retention int
}

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithTerminalRetention sets how many finished jobs are kept. Zero or less keeps all of them.
func WithTerminalRetention(n int) MemoryOption {
	return func(r *MemoryRepository) {
		r.retention = n
	}
}

// NewMemoryRepository creates a new in-memory job repository.
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{
		jobs:      make(map[string]*Job),
		retention: DefaultTerminalRetention,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save stores a clone of job. Saving a finished job may evict the oldest
// finished jobs beyond the retention limit.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	saved := job.Clone()
	r.jobs[saved.ID] = saved
	if saved.Status.IsTerminal() {
		r.evictLocked()
	}
	return nil
}

func (r *MemoryRepository) evictLocked() {
	if r.retention <= 0 {
		return
	}
	var finished []*Job
	for _, j := range r.jobs {
		if j.Status.IsTerminal() {
			finished = append(finished, j)
		}
	}
	if len(finished) <= r.retention {
		return
	}
	sort.Slice(finished, func(i, k int) bool {
		if finished[i].CompletedAt.Equal(finished[k].CompletedAt) {
			return finished[i].ID < finished[k].ID
		}
		return finished[i].CompletedAt.Before(finished[k].CompletedAt)
	})
	for _, j := range finished[:len(finished)-r.retention] {
		delete(r.jobs, j.ID)
	}
}

// FindByID retrieves a job by its ID.
// Returns a clone to prevent external mutations.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns all jobs in the repository.
// Returns clones to prevent external mutations.
func (r *MemoryRepository) List(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		result = append(result, job.Clone())
	}
	return result, nil
}

// Delete removes a job from storage.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}
