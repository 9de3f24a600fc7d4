// Package summarize compresses long transcripts into a rolling summary
// so prompts stay bounded while old facts survive.
package summarize

import (
	"context"
	"fmt"
	"strings"

	"github.com/safirlabs/safir-agent/internal/domain"
	"github.com/safirlabs/safir-agent/internal/observability"
)

const systemPrompt = `خلاصه‌ساز گفتگو هستی. گفتگوی زیر را در چند جمله کوتاه فارسی خلاصه کن.
نکات مهم: اطلاعات شخصی کاربر، درخواست‌هایش، و تصمیم‌های گرفته‌شده.
فقط خلاصه را برگردان، بدون مقدمه.`

// HistoryContext is what a long transcript collapses into: a summary of
// the old part, the recent messages verbatim, and the cache state to
// persist.
type HistoryContext struct {
	Summary string
	Recent  []domain.Message
	State   domain.SummaryState
}

// Summarizer maintains the incremental summary cache. Below the
// threshold the transcript passes through untouched; above it the old
// part is summarized once and only the delta is summarized on later
// turns. The covered index never moves backward.
type Summarizer struct {
	llm       domain.LLMClient
	threshold int
	keepLastN int
}

// New builds a summarizer. threshold is the transcript length that
// triggers summarization; keepLastN is how many trailing user turns
// stay verbatim.
func New(llm domain.LLMClient, threshold, keepLastN int) *Summarizer {
	return &Summarizer{llm: llm, threshold: threshold, keepLastN: keepLastN}
}

// Build returns the history context for the next generation. On a
// summarization failure the previous cached summary is kept and the
// recent window is served as-is; the turn never fails because of it.
func (s *Summarizer) Build(ctx context.Context, messages []domain.Message, state domain.SummaryState) HistoryContext {
	log := observability.LoggerFromContext(ctx)

	if len(messages) <= s.threshold {
		return HistoryContext{Recent: messages, State: state}
	}

	cutoff := s.recentWindowStart(messages)
	recent := messages[cutoff:]

	// Messages already covered by the cache are never re-summarized.
	deltaStart := state.UpToIndex + 1
	if deltaStart >= cutoff {
		return HistoryContext{Summary: state.Summary, Recent: recent, State: state}
	}
	delta := messages[deltaStart:cutoff]

	merged, err := s.summarize(ctx, state.Summary, delta)
	if err != nil {
		log.Warn("summarization failed, keeping previous summary", "error", err)
		return HistoryContext{Summary: state.Summary, Recent: recent, State: state}
	}

	newState := domain.SummaryState{Summary: merged, UpToIndex: cutoff - 1}
	if newState.UpToIndex < state.UpToIndex {
		newState.UpToIndex = state.UpToIndex
	}
	log.Info("summary cache advanced",
		"covered_index", newState.UpToIndex, "delta_messages", len(delta))
	return HistoryContext{Summary: merged, Recent: recent, State: newState}
}

// recentWindowStart finds the index of the keepLastN-th user message
// from the end; everything from there on stays verbatim.
func (s *Summarizer) recentWindowStart(messages []domain.Message) int {
	seen := 0
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			seen++
			if seen == s.keepLastN {
				return i
			}
		}
	}
	return 0
}

func (s *Summarizer) summarize(ctx context.Context, previous string, delta []domain.Message) (string, error) {
	var b strings.Builder
	if previous != "" {
		fmt.Fprintf(&b, "خلاصه قبلی گفتگو:\n%s\n\nادامه گفتگو:\n", previous)
	}
	for _, m := range delta {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
	}
	b.WriteString("\nخلاصه به‌روزشده کل گفتگو را بنویس.")

	return s.llm.Generate(ctx, systemPrompt, b.String(), nil)
}
