package memory

import (
	"context"
	"sync"
	"time"

	"github.com/safirlabs/safir-agent/internal/domain"
)

type sessionEntry struct {
	record    domain.SessionRecord
	expiresAt time.Time
}

// SessionStore keeps session transcripts in process memory with a
// whole-session TTL, mirroring the semantics of the Redis backend.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]sessionEntry
	ttl      time.Duration

	now func() time.Time
}

// NewSessionStore builds a store. ttl <= 0 disables expiry.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.SessionID]sessionEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns a copy of the stored record, or (nil, nil) when the
// session is unknown or expired.
func (s *SessionStore) Get(ctx context.Context, id domain.SessionID) (*domain.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	if s.ttl > 0 && s.now().After(e.expiresAt) {
		delete(s.sessions, id)
		return nil, nil
	}

	rec := e.record
	rec.Messages = make([]domain.Message, len(e.record.Messages))
	copy(rec.Messages, e.record.Messages)
	return &rec, nil
}

// Upsert stores the record and refreshes its TTL.
func (s *SessionStore) Upsert(ctx context.Context, rec *domain.SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	stored.Messages = make([]domain.Message, len(rec.Messages))
	copy(stored.Messages, rec.Messages)

	s.sessions[rec.ID] = sessionEntry{
		record:    stored,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Delete removes the session.
func (s *SessionStore) Delete(ctx context.Context, id domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}
