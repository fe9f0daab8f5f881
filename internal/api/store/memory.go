package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps jobs in an in-process map. Jobs are lost on restart,
// which suits development servers and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewMemoryStore returns an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

// Get retrieves a job. Expired jobs read as missing; Cleanup reclaims them.
func (m *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok || job.IsExpired() {
		return nil, ErrNotFound
	}
	cp := *job
	return &cp, nil
}

// Put stores a copy of the job, so later mutations by the caller don't
// leak into the store.
func (m *MemoryStore) Put(ctx context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

// Delete removes a job if present.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.jobs, id)
	return nil
}

// Cleanup drops expired jobs.
func (m *MemoryStore) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, job := range m.jobs {
		if now.After(job.ExpiresAt) {
			delete(m.jobs, id)
		}
	}
	return nil
}

// Close is a no-op for the memory backend.
func (m *MemoryStore) Close() error {
	return nil
}
