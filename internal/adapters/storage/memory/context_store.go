// Package memory provides in-process storage adapters for local
// development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/safirlabs/safir-agent/internal/domain"
)

type contextEntry struct {
	value     domain.FieldValue
	expiresAt time.Time
}

// ContextStore keeps per-session facts with a per-key TTL. Expiry is
// lazy: stale entries are dropped when read, there is no reaper.
type ContextStore struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]map[string]contextEntry

	// now is swappable for expiry tests.
	now func() time.Time
}

func NewContextStore() *ContextStore {
	return &ContextStore{
		sessions: make(map[domain.SessionID]map[string]contextEntry),
		now:      time.Now,
	}
}

// Merge writes each update under its own key, refreshing only those
// keys' TTLs. Keys not present in updates are untouched.
func (s *ContextStore) Merge(ctx context.Context, sessionID domain.SessionID, updates map[string]domain.FieldValue, ttl time.Duration) error {
	if len(updates) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.sessions[sessionID]
	if entries == nil {
		entries = make(map[string]contextEntry)
		s.sessions[sessionID] = entries
	}
	expiresAt := s.now().Add(ttl)
	for key, value := range updates {
		entries[key] = contextEntry{value: value, expiresAt: expiresAt}
	}
	return nil
}

// Get returns the unexpired facts for a session. An unknown session
// yields an empty map.
func (s *ContextStore) Get(ctx context.Context, sessionID domain.SessionID) (map[string]domain.FieldValue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.sessions[sessionID]
	out := make(map[string]domain.FieldValue, len(entries))
	now := s.now()
	for key, e := range entries {
		if now.After(e.expiresAt) {
			delete(entries, key)
			continue
		}
		out[key] = e.value
	}
	return out, nil
}

// Delete drops every fact of a session.
func (s *ContextStore) Delete(ctx context.Context, sessionID domain.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}
