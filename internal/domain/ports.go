package domain

import (
	"context"
	"time"
)

// LLMClient is the opaque text-generation backend: prompt in, text out.
type LLMClient interface {
	// Generate produces free text from a system prompt, a user prompt and
	// optional prior history.
	Generate(ctx context.Context, system, user string, history []Message) (string, error)

	// GenerateStructured asks for a JSON response and unmarshals it into
	// out. Backend response-shape quirks (markdown fences, stray text) are
	// normalized inside the adapter, never by callers.
	GenerateStructured(ctx context.Context, system, user string, out any) error
}

// KnowledgeQuery is one lookup against a knowledge source.
type KnowledgeQuery struct {
	Text    string
	Mode    string // "mix", "hybrid", "local", ...
	History []Message
	Limit   int
}

// KnowledgeSource is any consumed retrieval backend. An empty result or
// an error both mean "no contribution" to the pipeline.
type KnowledgeSource interface {
	Name() string
	Query(ctx context.Context, q KnowledgeQuery) (string, error)
}

// ContextStore is the per-session structured-fact store. Merge is
// last-write-wins per key: writing one key must never erase unrelated
// keys. Every write refreshes that key's TTL independently; expired
// entries are invisible to Get.
type ContextStore interface {
	Merge(ctx context.Context, sessionID SessionID, updates map[string]FieldValue, ttl time.Duration) error
	Get(ctx context.Context, sessionID SessionID) (map[string]FieldValue, error)
	Delete(ctx context.Context, sessionID SessionID) error
}

// SessionStore persists session transcripts and meta. Get returns
// (nil, nil) for an unknown session so callers treat it as fresh.
type SessionStore interface {
	Get(ctx context.Context, id SessionID) (*SessionRecord, error)
	Upsert(ctx context.Context, rec *SessionRecord) error
	Delete(ctx context.Context, id SessionID) error
}
