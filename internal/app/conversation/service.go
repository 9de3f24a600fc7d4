// Package conversation is the orchestrator: it runs one full request
// cycle across routing, extraction, retrieval, generation and
// post-processing, and persists the session once at the end.
package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/safirlabs/safir-agent/internal/app/extract"
	"github.com/safirlabs/safir-agent/internal/app/postprocess"
	"github.com/safirlabs/safir-agent/internal/app/retrieve"
	"github.com/safirlabs/safir-agent/internal/app/router"
	"github.com/safirlabs/safir-agent/internal/app/suggest"
	"github.com/safirlabs/safir-agent/internal/app/summarize"
	"github.com/safirlabs/safir-agent/internal/domain"
	"github.com/safirlabs/safir-agent/internal/observability"
	"github.com/safirlabs/safir-agent/internal/schema"
	"github.com/safirlabs/safir-agent/internal/trace"
)

// apology is returned when the specialist call fails; the request still
// succeeds at the transport.
const apology = "متأسفانه خطایی رخ داد. لطفاً دوباره تلاش کنید."

const previewLen = 200

// Options wires the orchestrator.
type Options struct {
	LLM        domain.LLMClient
	Sessions   domain.SessionStore
	Contexts   domain.ContextStore
	Router     *router.Router
	PathRouter *router.PathRouter
	Extractor  *extract.Extractor
	Summarizer *summarize.Summarizer
	Pipeline   *retrieve.Pipeline
	Lifecycle  *suggest.Lifecycle
	Processor  *postprocess.Processor
	Registry   *schema.Registry
	Personas   *Personas

	Traces   *trace.Ring
	LogStore *trace.LogStore

	MaxSessionMessages int
	SessionTTL         time.Duration
	ContextTTL         time.Duration
}

// Service runs request cycles.
type Service struct {
	opts Options
}

func NewService(opts Options) *Service {
	return &Service{opts: opts}
}

// ChatRequest is one user turn.
type ChatRequest struct {
	SessionID      string            `json:"session_id,omitempty"`
	Message        string            `json:"message"`
	FromSuggestion bool              `json:"from_suggestion,omitempty"`
	EntryPath      string            `json:"entry_path,omitempty"`
	UserData       map[string]string `json:"user_data,omitempty"`
}

// ChatResponse is the reply for one turn.
type ChatResponse struct {
	SessionID       string            `json:"session_id"`
	Output          string            `json:"output"`
	Handler         domain.HandlerKey `json:"agent_key"`
	UserMode        domain.UserMode   `json:"user_mode"`
	ShowSuggestions bool              `json:"show_suggestions"`
	TraceID         string            `json:"trace_id"`
}

// Chat processes one user message end to end. Degraded subsystems never
// fail the turn; only a cancelled context aborts it, and a cancelled
// turn persists nothing.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	started := time.Now()

	sid := domain.SessionID(req.SessionID)
	if sid == "" {
		sid = domain.SessionID(uuid.NewString())
	}
	ctx = observability.WithSessionID(ctx, string(sid))
	log := observability.LoggerFromContext(ctx)

	rec := s.loadSession(ctx, sid, req.EntryPath)
	facts := s.loadContext(ctx, sid)

	// Transport-supplied user data merges before anything reads context.
	pending := s.normalizeUserData(ctx, req.UserData)
	for k, v := range pending {
		facts[k] = v
	}

	hc := s.opts.Summarizer.Build(ctx, rec.Messages, rec.Meta.Summary)

	var (
		handler   domain.HandlerKey
		extracted map[string]domain.FieldValue
		errClass  = trace.ErrClassNone
	)
	// The router degrades internally (silent fallback to faq), so the
	// only error the group can surface is a degraded extraction.
	var g errgroup.Group
	g.Go(func() error {
		handler = s.opts.Router.Route(ctx, req.Message, hc.Recent)
		return nil
	})
	g.Go(func() error {
		var err error
		extracted, err = s.opts.Extractor.Extract(ctx, req.Message, facts)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Warn("extraction degraded", "error", err)
		errClass = trace.ErrClassExtractor
	}
	for k, v := range extracted {
		pending[k] = v
		facts[k] = v
	}

	knowledgeCtx := s.opts.Pipeline.Retrieve(ctx, handler, req.Message, hc.Recent)

	persona := s.opts.Personas.For(handler)
	system := buildSystemPrompt(persona, facts, s.opts.Registry, hc.Summary, rec.Meta.EntryPath)
	raw, genErr := s.opts.LLM.Generate(ctx, system, buildUserPrompt(knowledgeCtx, req.Message), hc.Recent)
	if genErr != nil {
		log.Error("specialist generation failed", "handler", handler, "error", genErr)
		raw = apology
		errClass = trace.ErrClassSpecialist
	}

	// The lifecycle decides first so free mode can suppress the
	// suggestions block before it is ever synthesized.
	userTurns := domain.UserTurnCount(rec.Messages) + 1
	decision := s.opts.Lifecycle.Decide(rec.Meta.Suggest, req.FromSuggestion, userTurns)

	output := s.opts.Processor.Process(handler, raw, req.Message, decision.ShowSuggestions)
	if decision.TransitionMessage != "" {
		output = strings.TrimSpace(output) + "\n\n" + decision.TransitionMessage
		log.Info("suggestion mode flipped to free", "click_count", decision.State.ClickCount)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	now := time.Now()
	rec.Messages = append(rec.Messages,
		domain.Message{ID: domain.MessageID(uuid.NewString()), Role: domain.RoleUser, Text: req.Message, CreatedAt: now},
		domain.Message{ID: domain.MessageID(uuid.NewString()), Role: domain.RoleAssistant, Text: output, CreatedAt: now},
	)
	rec.TrimMessages(s.opts.MaxSessionMessages)
	rec.Meta.Summary = hc.State
	rec.Meta.Suggest = decision.State
	rec.Meta.LastHandler = handler
	rec.UpdatedAt = now

	if err := s.opts.Contexts.Merge(ctx, sid, pending, s.opts.ContextTTL); err != nil {
		log.Warn("context merge failed", "error", err)
		errClass = trace.ErrClassStorage
	}
	if err := s.opts.Sessions.Upsert(ctx, rec); err != nil {
		log.Warn("session persist failed", "error", err)
		errClass = trace.ErrClassStorage
	}

	t := trace.ExecutionTrace{
		ID:             trace.NewID(),
		SessionID:      sid,
		Handler:        handler,
		UserMessage:    req.Message,
		SummaryPreview: trace.Preview(hc.Summary, previewLen),
		ContextPreview: trace.Preview(userInfoBlock(facts, s.opts.Registry), previewLen),
		KnowledgePrev:  trace.Preview(knowledgeCtx, previewLen),
		RawOutput:      raw,
		FinalOutput:    output,
		Steps:          processSteps(decision.ShowSuggestions),
		StartedAt:      started,
		DurationMS:     float64(time.Since(started).Microseconds()) / 1000,
		ErrorClass:     errClass,
	}
	s.recordTrace(ctx, t)

	return &ChatResponse{
		SessionID:       string(sid),
		Output:          output,
		Handler:         handler,
		UserMode:        decision.State.Mode,
		ShowSuggestions: decision.ShowSuggestions,
		TraceID:         t.ID,
	}, nil
}

// InitRequest opens a session before the first user message.
type InitRequest struct {
	SessionID string            `json:"session_id,omitempty"`
	EntryPath string            `json:"entry_path,omitempty"`
	UserData  map[string]string `json:"user_data,omitempty"`
}

// InitResponse carries the welcome message for the entry handler.
type InitResponse struct {
	SessionID      string            `json:"session_id"`
	Handler        domain.HandlerKey `json:"agent_key"`
	WelcomeMessage string            `json:"welcome_message"`
}

// Init creates (or refreshes) a session routed by entry path and
// returns the handler's welcome message.
func (s *Service) Init(ctx context.Context, req InitRequest) (*InitResponse, error) {
	sid := domain.SessionID(req.SessionID)
	if sid == "" {
		sid = domain.SessionID(uuid.NewString())
	}
	ctx = observability.WithSessionID(ctx, string(sid))
	log := observability.LoggerFromContext(ctx)

	handler := domain.DefaultHandler
	if s.opts.PathRouter != nil {
		handler = s.opts.PathRouter.HandlerForPath(req.EntryPath)
	}
	persona := s.opts.Personas.For(handler)

	rec := s.loadSession(ctx, sid, req.EntryPath)
	rec.Meta.LastHandler = handler
	now := time.Now()
	if len(rec.Messages) == 0 {
		rec.Messages = append(rec.Messages, domain.Message{
			ID:        domain.MessageID(uuid.NewString()),
			Role:      domain.RoleAssistant,
			Text:      persona.WelcomeMessage,
			CreatedAt: now,
		})
	}
	rec.UpdatedAt = now
	if err := s.opts.Sessions.Upsert(ctx, rec); err != nil {
		log.Warn("session persist failed", "error", err)
	}

	if pending := s.normalizeUserData(ctx, req.UserData); len(pending) > 0 {
		if err := s.opts.Contexts.Merge(ctx, sid, pending, s.opts.ContextTTL); err != nil {
			log.Warn("context merge failed", "error", err)
		}
	}

	return &InitResponse{
		SessionID:      string(sid),
		Handler:        handler,
		WelcomeMessage: persona.WelcomeMessage,
	}, nil
}

// RegisterSuggestionClick counts a suggestion click against the
// session's lifecycle state.
func (s *Service) RegisterSuggestionClick(ctx context.Context, sid domain.SessionID) error {
	rec, err := s.opts.Sessions.Get(ctx, sid)
	if err != nil {
		return err
	}
	if rec == nil {
		return domain.ErrSessionNotFound
	}
	rec.Meta.Suggest.ClickCount++
	rec.Meta.Suggest.LastFromSuggestion = true
	rec.Meta.Suggest.ClickPending = true
	rec.UpdatedAt = time.Now()
	return s.opts.Sessions.Upsert(ctx, rec)
}

// Session returns the stored record, ErrSessionNotFound when unknown.
func (s *Service) Session(ctx context.Context, sid domain.SessionID) (*domain.SessionRecord, error) {
	rec, err := s.opts.Sessions.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, domain.ErrSessionNotFound
	}
	return rec, nil
}

// Context returns the session's live facts.
func (s *Service) Context(ctx context.Context, sid domain.SessionID) (map[string]domain.FieldValue, error) {
	return s.opts.Contexts.Get(ctx, sid)
}

// DeleteSession removes transcript and facts.
func (s *Service) DeleteSession(ctx context.Context, sid domain.SessionID) error {
	if err := s.opts.Sessions.Delete(ctx, sid); err != nil {
		return err
	}
	return s.opts.Contexts.Delete(ctx, sid)
}

func (s *Service) loadSession(ctx context.Context, sid domain.SessionID, entryPath string) *domain.SessionRecord {
	log := observability.LoggerFromContext(ctx)

	rec, err := s.opts.Sessions.Get(ctx, sid)
	if err != nil {
		log.Warn("session load failed, starting fresh", "error", err)
	}
	if rec == nil {
		rec = &domain.SessionRecord{ID: sid, Meta: domain.NewSessionMeta()}
	}
	if entryPath != "" && rec.Meta.EntryPath == "" {
		rec.Meta.EntryPath = entryPath
	}
	return rec
}

func (s *Service) loadContext(ctx context.Context, sid domain.SessionID) map[string]domain.FieldValue {
	log := observability.LoggerFromContext(ctx)

	facts, err := s.opts.Contexts.Get(ctx, sid)
	if err != nil {
		log.Warn("context load failed, continuing without", "error", err)
		return map[string]domain.FieldValue{}
	}
	if facts == nil {
		facts = map[string]domain.FieldValue{}
	}
	return facts
}

// normalizeUserData validates transport-supplied user data through the
// field registry; unknown or invalid entries are dropped.
func (s *Service) normalizeUserData(ctx context.Context, userData map[string]string) map[string]domain.FieldValue {
	out := make(map[string]domain.FieldValue)
	if len(userData) == 0 {
		return out
	}
	log := observability.LoggerFromContext(ctx)
	for name, raw := range userData {
		field, err := s.opts.Registry.Resolve(name)
		if err != nil {
			log.Warn("unknown user_data field", "field", name)
			continue
		}
		value, err := field.Convert(raw)
		if err != nil {
			log.Warn("user_data value rejected", "field", field.NormalizedKey, "error", err)
			continue
		}
		out[field.NormalizedKey] = value
	}
	return out
}

func processSteps(showSuggestions bool) []string {
	if !showSuggestions {
		return []string{"strip_boilerplate", "remove_suggestions"}
	}
	return []string{"strip_boilerplate", "rewrite_perspective", "ensure_suggestions"}
}

func (s *Service) recordTrace(ctx context.Context, t trace.ExecutionTrace) {
	if s.opts.Traces != nil {
		s.opts.Traces.Add(t)
	}
	if s.opts.LogStore != nil {
		s.opts.LogStore.AppendTrace(ctx, t)
	}
}
