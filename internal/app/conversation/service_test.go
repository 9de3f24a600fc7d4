package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safirlabs/safir-agent/internal/adapters/llm"
	"github.com/safirlabs/safir-agent/internal/adapters/storage/memory"
	"github.com/safirlabs/safir-agent/internal/app/extract"
	"github.com/safirlabs/safir-agent/internal/app/postprocess"
	"github.com/safirlabs/safir-agent/internal/app/retrieve"
	"github.com/safirlabs/safir-agent/internal/app/router"
	"github.com/safirlabs/safir-agent/internal/app/suggest"
	"github.com/safirlabs/safir-agent/internal/app/summarize"
	"github.com/safirlabs/safir-agent/internal/domain"
	"github.com/safirlabs/safir-agent/internal/schema"
	"github.com/safirlabs/safir-agent/internal/trace"
)

type fixture struct {
	svc      *Service
	mock     *llm.Mock
	sessions *memory.SessionStore
	contexts *memory.ContextStore
	traces   *trace.Ring
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mock := llm.NewMock()
	mock.StructuredJSON = `{"handler_key": "faq", "reason": "default", "fields": []}`

	registry, err := schema.NewRegistry(schema.DefaultFields())
	require.NoError(t, err)

	sessions := memory.NewSessionStore(time.Hour)
	contexts := memory.NewContextStore()
	traces := trace.NewRing(16)

	svc := NewService(Options{
		LLM:        mock,
		Sessions:   sessions,
		Contexts:   contexts,
		Router:     router.New(mock),
		PathRouter: router.NewPathRouter([]router.PathMapping{{Path: "/konesh/*", Handler: "action_expert"}}),
		Extractor:  extract.New(mock, registry),
		Summarizer: summarize.New(mock, 10, 2),
		Pipeline:   retrieve.New(retrieve.Options{}),
		Lifecycle: suggest.New(suggest.Config{
			MaxClicks:           3,
			FreeModeTurnTrigger: 4,
			TransitionMessage:   "آزادی!",
		}),
		Processor:          postprocess.New(),
		Registry:           registry,
		Personas:           NewPersonas(DefaultPersonas()),
		Traces:             traces,
		MaxSessionMessages: 30,
		SessionTTL:         time.Hour,
		ContextTTL:         time.Hour,
	})
	return &fixture{svc: svc, mock: mock, sessions: sessions, contexts: contexts, traces: traces}
}

func TestChatCreatesSessionAndPersistsOnce(t *testing.T) {
	f := newFixture(t)
	f.mock.Reply = "پاسخ درباره سفیر و نقش او."

	res, err := f.svc.Chat(context.Background(), ChatRequest{Message: "سفیر چیه؟"})
	require.NoError(t, err)
	require.NotEmpty(t, res.SessionID)
	assert.Equal(t, domain.HandlerFAQ, res.Handler)
	assert.Contains(t, res.Output, "پاسخ درباره سفیر")

	rec, err := f.sessions.Get(context.Background(), domain.SessionID(res.SessionID))
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Len(t, rec.Messages, 2)
	assert.Equal(t, domain.RoleUser, rec.Messages[0].Role)
	assert.Equal(t, domain.RoleAssistant, rec.Messages[1].Role)
	assert.Equal(t, domain.HandlerFAQ, rec.Meta.LastHandler)
}

func TestChatSpecialistFailureReturnsApology(t *testing.T) {
	f := newFixture(t)
	f.mock.Err = errors.New("backend down")

	res, err := f.svc.Chat(context.Background(), ChatRequest{Message: "یک سوال"})
	require.NoError(t, err)
	assert.Contains(t, res.Output, "متأسفانه خطایی رخ داد")

	// The failed turn is still persisted and traced.
	rec, err := f.sessions.Get(context.Background(), domain.SessionID(res.SessionID))
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Len(t, rec.Messages, 2)

	tr, ok := f.traces.Get(res.TraceID)
	require.True(t, ok)
	assert.Equal(t, trace.ErrClassSpecialist, tr.ErrorClass)
}

func TestChatMergesUserDataAndExtraction(t *testing.T) {
	f := newFixture(t)
	f.mock.Reply = "باشه"
	f.mock.StructuredJSON = `{"handler_key": "faq", "reason": "x", "fields": [{"field": "age", "value": "۲۵"}]}`

	res, err := f.svc.Chat(context.Background(), ChatRequest{
		Message:  "۲۵ سالمه",
		UserData: map[string]string{"name": "علی"},
	})
	require.NoError(t, err)

	facts, err := f.contexts.Get(context.Background(), domain.SessionID(res.SessionID))
	require.NoError(t, err)
	assert.Equal(t, domain.StringValue("علی"), facts["user_name"])
	assert.Equal(t, domain.IntValue(25), facts["user_age"])
}

func TestChatTranscriptTrimmed(t *testing.T) {
	f := newFixture(t)
	f.mock.Reply = "پاسخ"

	sid := ""
	for i := 0; i < 20; i++ {
		res, err := f.svc.Chat(context.Background(), ChatRequest{SessionID: sid, Message: "سوال"})
		require.NoError(t, err)
		sid = res.SessionID
	}

	rec, err := f.sessions.Get(context.Background(), domain.SessionID(sid))
	require.NoError(t, err)
	assert.Len(t, rec.Messages, 30)
}

func TestChatCancelledContextPersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.mock.Reply = "پاسخ"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Chat(ctx, ChatRequest{SessionID: "cancelled", Message: "سوال"})
	assert.Error(t, err)

	rec, err := f.sessions.Get(context.Background(), domain.SessionID("cancelled"))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestChatTurnTriggerAppendsTransition(t *testing.T) {
	f := newFixture(t)
	f.mock.Reply = "پاسخ درباره کنش محفل خانگی."

	sid := ""
	var last *ChatResponse
	for i := 0; i < 4; i++ {
		res, err := f.svc.Chat(context.Background(), ChatRequest{SessionID: sid, Message: "سوال"})
		require.NoError(t, err)
		sid = res.SessionID
		last = res

		// Guided turns carry a synthesized suggestions block.
		if i < 3 {
			assert.True(t, res.ShowSuggestions)
			assert.Contains(t, res.Output, postprocess.SuggestionsHeader)
		}
	}

	assert.Equal(t, domain.ModeFree, last.UserMode)
	assert.False(t, last.ShowSuggestions)
	assert.Contains(t, last.Output, "آزادی!")
	assert.NotContains(t, last.Output, postprocess.SuggestionsHeader)

	// One more turn: free mode is terminal, the transition shows only
	// once and no suggestions block ever comes back.
	res, err := f.svc.Chat(context.Background(), ChatRequest{SessionID: sid, Message: "سوال"})
	require.NoError(t, err)
	assert.NotContains(t, res.Output, "آزادی!")
	assert.NotContains(t, res.Output, postprocess.SuggestionsHeader)
}

func TestChatExtractorFailureDegrades(t *testing.T) {
	f := newFixture(t)
	f.mock.Reply = "پاسخ"
	f.mock.StructuredJSON = "not json"

	res, err := f.svc.Chat(context.Background(), ChatRequest{Message: "یه سوال"})
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultHandler, res.Handler)
	assert.Contains(t, res.Output, "پاسخ")

	tr, ok := f.traces.Get(res.TraceID)
	require.True(t, ok)
	assert.Equal(t, trace.ErrClassExtractor, tr.ErrorClass)
}

func TestInitRoutesByPathAndWelcomes(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Init(context.Background(), InitRequest{EntryPath: "/konesh/ideas"})
	require.NoError(t, err)
	assert.Equal(t, domain.HandlerActionExpert, res.Handler)
	assert.Contains(t, res.WelcomeMessage, "کنش")

	rec, err := f.sessions.Get(context.Background(), domain.SessionID(res.SessionID))
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Len(t, rec.Messages, 1)
	assert.Equal(t, domain.RoleAssistant, rec.Messages[0].Role)
}

func TestRegisterSuggestionClick(t *testing.T) {
	f := newFixture(t)

	init, err := f.svc.Init(context.Background(), InitRequest{})
	require.NoError(t, err)
	sid := domain.SessionID(init.SessionID)

	require.NoError(t, f.svc.RegisterSuggestionClick(context.Background(), sid))
	rec, err := f.svc.Session(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Meta.Suggest.ClickCount)

	// A client that echoes from_suggestion on the next message reports
	// the same click; it counts once.
	f.mock.Reply = "پاسخ"
	_, err = f.svc.Chat(context.Background(), ChatRequest{
		SessionID:      string(sid),
		Message:        "سوال",
		FromSuggestion: true,
	})
	require.NoError(t, err)
	rec, err = f.svc.Session(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Meta.Suggest.ClickCount)
	assert.False(t, rec.Meta.Suggest.ClickPending)

	err = f.svc.RegisterSuggestionClick(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestDeleteSessionClearsBothStores(t *testing.T) {
	f := newFixture(t)
	f.mock.Reply = "پاسخ"

	res, err := f.svc.Chat(context.Background(), ChatRequest{
		Message:  "سلام",
		UserData: map[string]string{"name": "زهرا"},
	})
	require.NoError(t, err)
	sid := domain.SessionID(res.SessionID)

	require.NoError(t, f.svc.DeleteSession(context.Background(), sid))

	_, err = f.svc.Session(context.Background(), sid)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	facts, err := f.svc.Context(context.Background(), sid)
	require.NoError(t, err)
	assert.Empty(t, facts)
}
