// SPDX-License-Identifier: MIT

package compose

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/clipforge/clipforge/internal/types"
)

// JobStore persists job records. Implementations must hand out copies:
// mutating a returned job never changes stored state except through Update.
type JobStore interface {
	// Put stores a new record, overwriting any previous one with the id.
	Put(ctx context.Context, job *Job) error
	// Get returns the record, or nil without error when absent.
	Get(ctx context.Context, id string) (*Job, error)
	// Update applies fn to the stored record atomically and returns the
	// result. ErrJobNotFound when the id is unknown.
	Update(ctx context.Context, id string, fn func(*Job) error) (*Job, error)
	// List returns all records, newest first.
	List(ctx context.Context) ([]*Job, error)
	// ActiveForSession returns the session's non-terminal job, or nil
	// without error when the session has none.
	ActiveForSession(ctx context.Context, sessionID string) (*Job, error)
	// SweepNonTerminal fails every non-terminal record with the given
	// reason and returns how many were swept. Run once on startup so a
	// crash during composition cannot leave a stuck active job behind.
	SweepNonTerminal(ctx context.Context, reason string) (int, error)
	Close() error
}

// MemoryStore is a JobStore kept entirely in memory, used in tests and as
// the fallback when no data directory is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

// Put stores a copy of the record.
func (s *MemoryStore) Put(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

// Get returns a copy of the record, or nil when absent.
func (s *MemoryStore) Get(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return job.Clone(), nil
}

// Update applies fn to the stored record atomically.
func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Job) error) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	next := job.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	s.jobs[id] = next
	return next.Clone(), nil
}

// List returns all records, newest first.
func (s *MemoryStore) List(_ context.Context) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// ActiveForSession returns the session's non-terminal job, if any.
func (s *MemoryStore) ActiveForSession(_ context.Context, sessionID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.SessionID == sessionID && !job.Terminal() {
			return job.Clone(), nil
		}
	}
	return nil, nil
}

// SweepNonTerminal fails every non-terminal record with the given reason.
func (s *MemoryStore) SweepNonTerminal(_ context.Context, reason string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	swept := 0
	now := time.Now().UTC()
	for id, job := range s.jobs {
		if job.Terminal() {
			continue
		}
		next := job.Clone()
		next.Status = types.JobStatusFailed
		next.Error = reason
		next.Result = nil
		next.UpdatedAt = now
		completed := now
		next.CompletedAt = &completed
		s.jobs[id] = next
		swept++
	}
	return swept, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

var _ JobStore = (*MemoryStore)(nil)
