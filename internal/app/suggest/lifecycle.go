// Package suggest drives the guided→free suggestion lifecycle. The
// transition is one-way: once a session is free it stays free.
package suggest

import (
	"github.com/safirlabs/safir-agent/internal/domain"
)

// Config holds the lifecycle thresholds.
type Config struct {
	// MaxClicks flips to free mode once this many suggestions were clicked.
	MaxClicks int
	// FreeModeTurnTrigger flips to free mode at this many user turns.
	FreeModeTurnTrigger int
	// WarmupTurns is carried for config compatibility; nothing reads it.
	WarmupTurns int
	// TransitionMessage is appended once when the mode flips.
	TransitionMessage string
}

// Decision is the per-turn outcome.
type Decision struct {
	ShowSuggestions   bool
	TransitionMessage string
	State             domain.SuggestionState
}

// Lifecycle evaluates the state machine once per turn.
type Lifecycle struct {
	cfg Config
}

func New(cfg Config) *Lifecycle {
	return &Lifecycle{cfg: cfg}
}

// Decide applies the turn's events to the state. fromSuggestion marks
// whether this user message came from clicking a suggestion; userTurns
// counts user messages including the current one.
func (l *Lifecycle) Decide(state domain.SuggestionState, fromSuggestion bool, userTurns int) Decision {
	counted := state.ClickPending
	state.ClickPending = false
	state.LastFromSuggestion = fromSuggestion
	if fromSuggestion && !counted {
		state.ClickCount++
	}

	if state.Mode == domain.ModeFree {
		return Decision{ShowSuggestions: false, State: state}
	}

	if state.ClickCount >= l.cfg.MaxClicks || userTurns >= l.cfg.FreeModeTurnTrigger {
		state.Mode = domain.ModeFree
		return Decision{
			ShowSuggestions:   false,
			TransitionMessage: l.cfg.TransitionMessage,
			State:             state,
		}
	}

	return Decision{ShowSuggestions: true, State: state}
}
