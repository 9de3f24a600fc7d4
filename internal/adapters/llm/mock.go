package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/safirlabs/safir-agent/internal/domain"
)

// Mock is an in-memory LLM for development and tests. Responses can be
// scripted per call; unscripted calls echo the prompt.
type Mock struct {
	mu sync.Mutex

	// Reply, if set, is returned by every Generate call.
	Reply string
	// Replies are consumed in order before falling back to Reply.
	Replies []string
	// StructuredJSON is unmarshaled into out by GenerateStructured.
	StructuredJSON string
	// Err fails every call when set.
	Err error

	// GenerateCalls counts Generate invocations.
	GenerateCalls int
	// StructuredCalls counts GenerateStructured invocations.
	StructuredCalls int
	// LastUser records the most recent user prompt.
	LastUser string
}

// NewMock returns a mock with default echo behavior.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Generate(ctx context.Context, system, user string, history []domain.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GenerateCalls++
	m.LastUser = user
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Replies) > 0 {
		reply := m.Replies[0]
		m.Replies = m.Replies[1:]
		return reply, nil
	}
	if m.Reply != "" {
		return m.Reply, nil
	}
	return fmt.Sprintf("پاسخ آزمایشی به: %s", user), nil
}

func (m *Mock) GenerateStructured(ctx context.Context, system, user string, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.StructuredCalls++
	m.LastUser = user
	if m.Err != nil {
		return m.Err
	}
	if m.StructuredJSON == "" {
		return fmt.Errorf("mock: no structured response scripted")
	}
	return json.Unmarshal([]byte(m.StructuredJSON), out)
}
