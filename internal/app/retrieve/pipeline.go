// Package retrieve assembles the knowledge context for one turn from
// the staged lookup pipeline.
package retrieve

import (
	"context"
	"strings"
	"time"

	"github.com/safirlabs/safir-agent/internal/adapters/knowledge"
	"github.com/safirlabs/safir-agent/internal/domain"
	"github.com/safirlabs/safir-agent/internal/observability"
)

// Placeholder returned when every stage comes back empty, so the
// specialist knows to answer from general knowledge.
const Placeholder = "(No KB context retrieved - answer from general knowledge if needed.)"

// greetings short-circuit retrieval entirely.
var greetings = []string{
	"سلام", "خداحافظ", "خدا حافظ", "hi", "hello", "bye", "goodbye",
	"صبح بخیر", "عصر بخیر", "شب بخیر",
}

// referenceKeywords gate the CSV stage on an exact hit.
var referenceKeywords = []string{
	"کنش ویژه", "بستر انجام", "سطح سختی", "کنش‌گر", "هشتگ",
	"لیست کنش", "کنش‌ها",
}

// placeWords plus a question pattern also gate the CSV stage.
var placeWords = []string{
	"خانه", "خونه", "مدرسه", "مسجد", "فضای مجازی", "محیط کار",
}

var questionPatterns = []string{
	"چه کنش", "کدوم کنش", "چی کار", "چیکار", "پیشنهاد", "معرفی کن",
}

// longMessageRunes is the stage-4 fallback gate for verbose asks.
const longMessageRunes = 80

// historyWindow limits how much transcript accompanies a KB query.
const historyWindow = 4

// Pipeline runs the staged lookups. Every stage has its own timeout and
// a failed or empty stage contributes nothing; the pipeline itself
// never fails.
type Pipeline struct {
	kb        domain.KnowledgeSource
	actions   *knowledge.ActionsCatalog
	reference *knowledge.ReferenceCSV

	stageTimeout time.Duration
}

// Options wires the pipeline. Any source may be nil; its stage is
// skipped.
type Options struct {
	KnowledgeBase domain.KnowledgeSource
	Actions       *knowledge.ActionsCatalog
	Reference     *knowledge.ReferenceCSV
	StageTimeout  time.Duration
}

func New(opts Options) *Pipeline {
	timeout := opts.StageTimeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Pipeline{
		kb:           opts.KnowledgeBase,
		actions:      opts.Actions,
		reference:    opts.Reference,
		stageTimeout: timeout,
	}
}

// Retrieve returns the combined context block for the turn. Greetings
// skip every lookup and return the placeholder immediately.
func (p *Pipeline) Retrieve(ctx context.Context, handler domain.HandlerKey, utterance string, history []domain.Message) string {
	log := observability.LoggerFromContext(ctx)

	if IsGreeting(utterance) {
		log.Debug("greeting detected, skipping retrieval")
		return Placeholder
	}

	var parts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	add(p.queryKB(ctx, utterance, recentWindow(history)))
	add(p.queryActions(ctx, handler, utterance))

	if p.reference != nil && wantsReference(utterance) {
		rows := p.reference.Search(utterance, 5)
		add(p.reference.FormatRows(rows))
		add(p.crossReference(ctx, rows))
	}

	if len(parts) == 0 {
		return Placeholder
	}
	return strings.Join(parts, "\n\n")
}

func (p *Pipeline) queryKB(ctx context.Context, utterance string, history []domain.Message) string {
	if p.kb == nil {
		return ""
	}
	log := observability.LoggerFromContext(ctx)

	stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	out, err := p.kb.Query(stageCtx, domain.KnowledgeQuery{
		Text:    utterance,
		Mode:    "mix",
		History: history,
	})
	if err != nil {
		log.Warn("knowledge base stage failed", "source", p.kb.Name(), "error", err)
		return ""
	}
	return out
}

func (p *Pipeline) queryActions(ctx context.Context, handler domain.HandlerKey, utterance string) string {
	if p.actions == nil {
		return ""
	}
	if handler != domain.HandlerActionExpert && handler != domain.HandlerJourneyRegister {
		return ""
	}
	log := observability.LoggerFromContext(ctx)

	stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	out, err := p.actions.Query(stageCtx, domain.KnowledgeQuery{Text: utterance, Limit: 10})
	if err != nil {
		log.Warn("actions stage failed", "error", err)
		return ""
	}
	return out
}

// crossReference runs the single bounded follow-up lookup seeded by the
// matched rows' related-content terms.
func (p *Pipeline) crossReference(ctx context.Context, rows []knowledge.ReferenceRow) string {
	if p.kb == nil || len(rows) == 0 {
		return ""
	}
	terms := p.reference.RelatedTerms(rows)
	if len(terms) == 0 {
		return ""
	}
	log := observability.LoggerFromContext(ctx)

	stageCtx, cancel := context.WithTimeout(ctx, p.stageTimeout)
	defer cancel()

	out, err := p.kb.Query(stageCtx, domain.KnowledgeQuery{
		Text: strings.Join(terms, "، "),
		Mode: "mix",
	})
	if err != nil {
		log.Warn("cross-reference stage failed", "error", err)
		return ""
	}
	return out
}

// IsGreeting reports whether the message is a bare greeting or closing,
// allowing up to two trailing characters of punctuation.
func IsGreeting(message string) bool {
	msg := strings.ToLower(strings.TrimSpace(message))
	for _, g := range greetings {
		if msg == g {
			return true
		}
		if strings.HasPrefix(msg, g) && len([]rune(msg)) <= len([]rune(g))+2 {
			return true
		}
	}
	return false
}

// wantsReference gates the CSV stage: an exact keyword hit, a place
// word co-occurring with a question pattern, or a long message.
func wantsReference(message string) bool {
	msg := strings.ToLower(message)
	for _, kw := range referenceKeywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	hasPlace := false
	for _, w := range placeWords {
		if strings.Contains(msg, w) {
			hasPlace = true
			break
		}
	}
	if hasPlace {
		for _, q := range questionPatterns {
			if strings.Contains(msg, q) {
				return true
			}
		}
	}
	return len([]rune(msg)) > longMessageRunes
}

func recentWindow(history []domain.Message) []domain.Message {
	if len(history) > historyWindow {
		return history[len(history)-historyWindow:]
	}
	return history
}
