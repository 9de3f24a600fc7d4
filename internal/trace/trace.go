// Package trace records what one orchestration cycle did: which handler
// ran, what context it saw, and how the output was transformed.
package trace

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/safirlabs/safir-agent/internal/domain"
)

// Error classes attached to a trace.
const (
	ErrClassNone       = ""
	ErrClassRouter     = "router"
	ErrClassExtractor  = "extractor"
	ErrClassRetrieval  = "retrieval"
	ErrClassSpecialist = "specialist"
	ErrClassStorage    = "storage"
)

// ExecutionTrace is an immutable record of one request cycle. Previews
// are truncated copies; the trace never holds live references.
type ExecutionTrace struct {
	ID        string            `json:"trace_id"`
	SessionID domain.SessionID  `json:"session_id"`
	Handler   domain.HandlerKey `json:"handler"`

	UserMessage    string `json:"user_message"`
	SummaryPreview string `json:"summary_preview,omitempty"`
	ContextPreview string `json:"context_preview,omitempty"`
	KnowledgePrev  string `json:"knowledge_preview,omitempty"`

	RawOutput   string   `json:"raw_output"`
	FinalOutput string   `json:"final_output"`
	Steps       []string `json:"postprocess_steps,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	DurationMS float64   `json:"duration_ms"`
	ErrorClass string    `json:"error_class,omitempty"`
}

// NewID mints a trace id.
func NewID() string {
	return uuid.NewString()
}

// Preview truncates s for embedding in a trace.
func Preview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

// Ring is a fixed-capacity buffer of the most recent traces. Oldest
// entries are overwritten once capacity is reached.
type Ring struct {
	mu      sync.RWMutex
	entries []ExecutionTrace
	next    int
	full    bool
}

// NewRing builds a ring with the given capacity (minimum 1).
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{entries: make([]ExecutionTrace, capacity)}
}

// Add records a trace.
func (r *Ring) Add(t ExecutionTrace) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = t
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Recent returns up to n traces, newest first.
func (r *Ring) Recent(n int) []ExecutionTrace {
	r.mu.RLock()
	defer r.mu.RUnlock()

	size := r.len()
	if n <= 0 || n > size {
		n = size
	}
	out := make([]ExecutionTrace, 0, n)
	for i := 0; i < n; i++ {
		idx := (r.next - 1 - i + len(r.entries)) % len(r.entries)
		out = append(out, r.entries[idx])
	}
	return out
}

// Get returns the trace with the given id.
func (r *Ring) Get(id string) (ExecutionTrace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := 0; i < r.len(); i++ {
		idx := (r.next - 1 - i + len(r.entries)) % len(r.entries)
		if r.entries[idx].ID == id {
			return r.entries[idx], true
		}
	}
	return ExecutionTrace{}, false
}

// Len reports how many traces are held.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.len()
}

func (r *Ring) len() int {
	if r.full {
		return len(r.entries)
	}
	return r.next
}
