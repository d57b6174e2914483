package store

import (
	"context"
	"errors"
	"sync"

	"github.com/soundwall/api/internal/model"
)

// ErrNotFound is returned when no session exists for the given id
var ErrNotFound = errors.New("session not found")

// SessionStore is the single source of truth for job state. Update is
// the read-modify-write primitive: the store serializes updates per
// key, so concurrent variant callbacks for the same session can never
// lose each other's writes.
type SessionStore interface {
	Get(ctx context.Context, id string) (*model.JobSession, error)
	Set(ctx context.Context, id string, session *model.JobSession) error
	Update(ctx context.Context, id string, fn func(*model.JobSession) error) (*model.JobSession, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process memory with one lock per key.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*sessionEntry
}

type sessionEntry struct {
	mu      sync.Mutex
	session *model.JobSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*sessionEntry)}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*model.JobSession, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return entry.session.Clone(), nil
}

func (s *MemoryStore) Set(ctx context.Context, id string, session *model.JobSession) error {
	entry := s.entry(id)
	entry.mu.Lock()
	entry.session = session.Clone()
	entry.mu.Unlock()
	return nil
}

// Update runs fn against the stored session while holding the key's
// lock and returns a snapshot of the result. If fn returns an error
// the session is left unchanged.
func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*model.JobSession) error) (*model.JobSession, error) {
	s.mu.RLock()
	entry, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.session == nil {
		return nil, ErrNotFound
	}
	working := entry.session.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	entry.session = working
	return working.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) entry(id string) *sessionEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		entry = &sessionEntry{}
		s.entries[id] = entry
	}
	return entry
}
