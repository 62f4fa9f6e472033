package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process session store for development and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*memoryEntry
	opts     Options
}

type memoryEntry struct {
	session   *Session
	expiresAt time.Time
}

// NewMemoryStore creates an in-memory session store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*memoryEntry),
		opts:     opts,
	}
}

// Create makes a new empty session.
func (m *MemoryStore) Create(ctx context.Context) (*Session, error) {
	s := New(uuid.NewString(), m.opts.maxBytes())

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &memoryEntry{session: s, expiresAt: time.Now().Add(m.opts.ttl())}
	return s, nil
}

// Get loads a session by id, refreshing its expiry.
func (m *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	entry.expiresAt = time.Now().Add(m.opts.ttl())
	entry.session.MaxBytes = m.opts.maxBytes()
	return entry.session, nil
}

// Save persists the session.
func (m *MemoryStore) Save(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = &memoryEntry{session: s, expiresAt: time.Now().Add(m.opts.ttl())}
	return nil
}

// Delete destroys a session.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error { return nil }
