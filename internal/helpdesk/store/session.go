package store

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/helpdesk-x/internal/model"
	"github.com/kart-io/helpdesk-x/pkg/errors"
)

// SessionStore holds conversation sessions with a TTL. Expired sessions
// behave exactly like missing ones.
type SessionStore interface {
	Get(ctx context.Context, id string) (*model.Session, error)
	Put(ctx context.Context, session *model.Session) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// MemorySessionStore keeps sessions in process memory. A janitor goroutine
// evicts expired sessions so the map does not grow without bound.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

type sessionEntry struct {
	session   *model.Session
	expiresAt time.Time
}

// NewMemorySessionStore creates a memory session store with the given TTL.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	s := &MemorySessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		stop:     make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemorySessionStore) janitor() {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.mu.Lock()
			for id, e := range s.sessions {
				if now.After(e.expiresAt) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Get returns the session or errors.ErrSessionNotFound.
func (s *MemorySessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return nil, errors.ErrSessionNotFound
	}
	return e.session, nil
}

// Put stores the session and refreshes its TTL.
func (s *MemorySessionStore) Put(ctx context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = &sessionEntry{
		session:   session,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

// Delete removes the session. Deleting an absent session is a no-op.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Close stops the janitor.
func (s *MemorySessionStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

var _ SessionStore = (*MemorySessionStore)(nil)
