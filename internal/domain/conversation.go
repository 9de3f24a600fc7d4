package domain

// Message is one entry in a session transcript.
type Message struct {
	ID        MessageID `json:"message_id,omitempty"`
	Role      Role      `json:"role"`
	Text      string    `json:"content"`
	CreatedAt Timestamp `json:"timestamp"`
}

// SummaryState is the cached high-water mark of incremental summarization.
// UpToIndex is the last transcript index the summary covers, -1 if none.
// It never decreases within a session.
type SummaryState struct {
	Summary   string `json:"conversation_summary,omitempty"`
	UpToIndex int    `json:"summary_up_to_index"`
}

// NewSummaryState returns the empty state (no summary yet).
func NewSummaryState() SummaryState {
	return SummaryState{UpToIndex: -1}
}

// SuggestionState tracks the guided→free lifecycle. Once Mode is free it
// never reverts within the session.
type SuggestionState struct {
	Mode               UserMode `json:"user_mode"`
	ClickCount         int      `json:"suggestion_click_count"`
	LastFromSuggestion bool     `json:"last_message_from_suggestion"`
	// ClickPending marks a click already counted through the click
	// endpoint; the next turn's from_suggestion flag then reports the
	// same click and must not count again.
	ClickPending bool `json:"suggestion_click_pending,omitempty"`
}

// NewSuggestionState returns the initial guided state.
func NewSuggestionState() SuggestionState {
	return SuggestionState{Mode: ModeGuided}
}

// SessionMeta collects the mutable per-session fields that subsystems
// update during a pass. It is threaded through one orchestration cycle
// and persisted once at the end, never incrementally.
type SessionMeta struct {
	Summary     SummaryState    `json:"summary"`
	Suggest     SuggestionState `json:"suggest"`
	LastHandler HandlerKey      `json:"last_agent,omitempty"`
	EntryPath   string          `json:"entry_path,omitempty"`
}

// NewSessionMeta returns meta for a fresh session.
func NewSessionMeta() SessionMeta {
	return SessionMeta{
		Summary: NewSummaryState(),
		Suggest: NewSuggestionState(),
	}
}

// SessionRecord is the persisted form of a session: the transcript plus
// meta. Transcripts are trimmed to a configured maximum on every persist,
// oldest messages dropped first.
type SessionRecord struct {
	ID        SessionID   `json:"session_id"`
	Messages  []Message   `json:"messages"`
	Meta      SessionMeta `json:"metadata"`
	UpdatedAt Timestamp   `json:"updated_at"`
}

// TrimMessages drops the oldest messages so at most max remain.
// max <= 0 means no limit.
func (r *SessionRecord) TrimMessages(max int) {
	if max > 0 && len(r.Messages) > max {
		r.Messages = r.Messages[len(r.Messages)-max:]
	}
}

// UserTurnCount counts user messages, the turn measure used by the
// suggestion lifecycle.
func UserTurnCount(messages []Message) int {
	n := 0
	for _, m := range messages {
		if m.Role == RoleUser {
			n++
		}
	}
	return n
}
