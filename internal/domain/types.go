package domain

import "time"

type SessionID string
type MessageID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// HandlerKey selects which specialist pipeline answers a request.
// The set is closed: anything else normalizes to DefaultHandler.
type HandlerKey string

const (
	HandlerFAQ             HandlerKey = "faq"
	HandlerActionExpert    HandlerKey = "action_expert"
	HandlerJourneyRegister HandlerKey = "journey_register"
	HandlerRewardsInvite   HandlerKey = "rewards_invite"
)

// DefaultHandler answers whenever classification fails or returns a key
// outside the closed set.
const DefaultHandler = HandlerFAQ

// AllHandlers lists every valid handler key.
func AllHandlers() []HandlerKey {
	return []HandlerKey{
		HandlerFAQ,
		HandlerActionExpert,
		HandlerJourneyRegister,
		HandlerRewardsInvite,
	}
}

// ParseHandlerKey normalizes a free string to a member of the closed set.
// Unrecognized values map to DefaultHandler and never propagate further.
func ParseHandlerKey(s string) HandlerKey {
	switch HandlerKey(s) {
	case HandlerFAQ, HandlerActionExpert, HandlerJourneyRegister, HandlerRewardsInvite:
		return HandlerKey(s)
	case "guest_faq": // legacy key still sent by older web clients
		return HandlerFAQ
	default:
		return DefaultHandler
	}
}

// UserMode is the conversational phase controlling whether follow-up
// suggestions are synthesized.
type UserMode string

const (
	ModeGuided UserMode = "guided"
	ModeFree   UserMode = "free"
)

type Timestamp = time.Time
