// Package router classifies a user utterance into one of the closed set
// of specialist handler keys.
package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/safirlabs/safir-agent/internal/domain"
	"github.com/safirlabs/safir-agent/internal/observability"
)

const systemPrompt = `You are a router. Analyze the user message and context, then return the single best handler key.

Available handlers:
- faq: معرفی نهضت، سفیر چیه، شروع مسیر، سوالات کلی
- action_expert: تولید متن/اسکریپت/محتوا برای کنش، چی بگم، محفل، فضاسازی، لیست کنش‌ها
- journey_register: ثبت کنش، گزارش، تکمیل پروفایل
- rewards_invite: جایزه، امتیاز، سکه، کد معرف

Rules:
- "ثبت / گزارش کنش" → journey_register
- "چی بگم / متن بده / اسکریپت / محتوا تولید کن" → action_expert
- "لیست کنش‌ها / چه کنشی انجام بدم" → action_expert
- سوال جوایز/دعوت → rewards_invite
- معرفی، سفیر چیه، شروع → faq
- If unclear, default to faq

Respond with JSON: {"handler_key": "...", "reason": "..."}`

// historyWindow is how many trailing messages inform classification.
const historyWindow = 6

type classification struct {
	HandlerKey string `json:"handler_key"`
	Reason     string `json:"reason"`
}

// Router asks the text-generation backend for a structured
// classification. Any failure falls back to the default handler; no
// retries, and the caller never sees the error.
type Router struct {
	llm domain.LLMClient
}

func New(llm domain.LLMClient) *Router {
	return &Router{llm: llm}
}

// Route classifies the utterance. The returned key is always a member of
// the closed handler set.
func (r *Router) Route(ctx context.Context, utterance string, history []domain.Message) domain.HandlerKey {
	log := observability.LoggerFromContext(ctx)

	prompt := buildPrompt(utterance, history)

	var result classification
	if err := r.llm.GenerateStructured(ctx, systemPrompt, prompt, &result); err != nil {
		log.Warn("router classification failed, using default", "error", err)
		return domain.DefaultHandler
	}

	key := domain.ParseHandlerKey(strings.TrimSpace(result.HandlerKey))
	if string(key) != strings.TrimSpace(result.HandlerKey) {
		log.Warn("router returned out-of-set key, normalized",
			"raw", result.HandlerKey, "handler", key)
	}
	log.Info("router selected handler", "handler", key, "reason", result.Reason)
	return key
}

func buildPrompt(utterance string, history []domain.Message) string {
	var b strings.Builder

	recent := history
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}
	if len(recent) > 0 {
		b.WriteString("Conversation so far:\n")
		for _, m := range recent {
			if m.Text == "" {
				continue
			}
			fmt.Fprintf(&b, "%s: %s\n", m.Role, truncate(m.Text, 300))
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "User message: %s\n\nReturn handler_key and reason.", utterance)
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
