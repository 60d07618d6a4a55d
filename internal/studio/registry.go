package studio

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrSessionNotFound is returned when a session does not exist.
var ErrSessionNotFound = errors.New("studio: session not found")

// Factory builds the dependencies for a new session.
// Each session gets its own preview; the narrator and generator may be shared.
type Factory func() Dependencies

// Registry is an in-memory session store.
type Registry struct {
	factory Factory

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty Registry whose sessions are built from factory.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		factory:  factory,
		sessions: make(map[string]*Session),
	}
}

// Create starts and stores a new session.
func (r *Registry) Create() *Session {
	s := NewSession(r.factory())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
	return s
}

// Find returns the session with the given ID.
func (r *Registry) Find(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete closes and removes a session.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	return s.Close(ctx)
}

// List returns all sessions, oldest first.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].createdAt.Equal(out[j].createdAt) {
			return out[i].id < out[j].id
		}
		return out[i].createdAt.Before(out[j].createdAt)
	})
	return out
}

// Close closes every session and empties the registry.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := s.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
