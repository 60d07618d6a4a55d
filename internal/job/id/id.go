// Package id provides unique identifier generation for jobs and sessions.
package id

import "github.com/google/uuid"

// Generate creates a new unique job ID.
// Format: job-<uuid>
// Example: job-9f1c2d4e-8a3b-4c5d-9e6f-0a1b2c3d4e5f
func Generate() string {
	return New("job")
}

// New creates a unique identifier with the given prefix.
func New(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}
