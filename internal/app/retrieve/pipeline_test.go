package retrieve

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safirlabs/safir-agent/internal/adapters/knowledge"
	"github.com/safirlabs/safir-agent/internal/domain"
)

type fakeKB struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	queries []domain.KnowledgeQuery
}

func (f *fakeKB) Name() string { return "fake_kb" }

func (f *fakeKB) Query(ctx context.Context, q domain.KnowledgeQuery) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, q)
	return f.reply, f.err
}

func TestGreetingSkipsAllLookups(t *testing.T) {
	kb := &fakeKB{reply: "نباید برسد"}
	p := New(Options{KnowledgeBase: kb})

	for _, msg := range []string{"سلام", "سلام!", "hello", "خداحافظ", "شب بخیر"} {
		out := p.Retrieve(context.Background(), domain.HandlerFAQ, msg, nil)
		assert.Equal(t, Placeholder, out, "message %q", msg)
	}
	assert.Equal(t, 0, kb.calls)
}

func TestRetrieveQueriesKBWithMixMode(t *testing.T) {
	kb := &fakeKB{reply: "متن دانش"}
	p := New(Options{KnowledgeBase: kb})

	out := p.Retrieve(context.Background(), domain.HandlerFAQ, "نهضت سفیران چیست؟", nil)
	assert.Contains(t, out, "متن دانش")
	require.Equal(t, 1, kb.calls)
	assert.Equal(t, "mix", kb.queries[0].Mode)
}

func TestRetrieveEmptyYieldsPlaceholder(t *testing.T) {
	kb := &fakeKB{err: errors.New("down")}
	p := New(Options{KnowledgeBase: kb})

	out := p.Retrieve(context.Background(), domain.HandlerFAQ, "نهضت چیست؟", nil)
	assert.Equal(t, Placeholder, out)
}

func TestActionsStageOnlyForHandlerSubset(t *testing.T) {
	actions := knowledge.NewActionsCatalog([]knowledge.Action{
		{Title: "محفل مدرسه", Platform: "مدرسه"},
	})
	p := New(Options{Actions: actions})

	out := p.Retrieve(context.Background(), domain.HandlerActionExpert, "کنش مدرسه می‌خوام", nil)
	assert.Contains(t, out, "محفل مدرسه")

	out = p.Retrieve(context.Background(), domain.HandlerFAQ, "کنش مدرسه می‌خوام", nil)
	assert.NotContains(t, out, "محفل مدرسه")
}

func TestReferenceStageGatedByHeuristics(t *testing.T) {
	ref, err := knowledge.ParseReferenceCSV(
		"عنوان کنش;بستر انجام;سطح سختی;محتواهای مرتبط\n" +
			"تلاوت خانوادگی;خانه;آسان;آداب تلاوت\n")
	require.NoError(t, err)

	kb := &fakeKB{reply: "پاسخ"}
	p := New(Options{KnowledgeBase: kb, Reference: ref})

	// Place word + question pattern triggers the CSV stage and one
	// follow-up KB call seeded by related terms.
	p.Retrieve(context.Background(), domain.HandlerFAQ, "چه کنشی تو خانه پیشنهاد می‌کنی؟", nil)
	require.Equal(t, 2, kb.calls)
	assert.Contains(t, kb.queries[1].Text, "آداب تلاوت")

	// Short message without keywords: KB only.
	kb.calls, kb.queries = 0, nil
	p.Retrieve(context.Background(), domain.HandlerFAQ, "نهضت چیست؟", nil)
	assert.Equal(t, 1, kb.calls)
}

func TestLongMessageTriggersReference(t *testing.T) {
	long := strings.Repeat("توضیح ", 20)
	assert.True(t, wantsReference(long))
	assert.False(t, wantsReference("نهضت چیست؟"))
	assert.True(t, wantsReference("کنش ویژه چیه؟"))
}

func TestRetrieveHistoryWindowBounded(t *testing.T) {
	kb := &fakeKB{reply: "متن"}
	p := New(Options{KnowledgeBase: kb})

	history := make([]domain.Message, 10)
	for i := range history {
		history[i] = domain.Message{Role: domain.RoleUser, Text: "پیام"}
	}
	p.Retrieve(context.Background(), domain.HandlerFAQ, "سوال من", history)
	require.Equal(t, 1, kb.calls)
	assert.Len(t, kb.queries[0].History, 4)
}
