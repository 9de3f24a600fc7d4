package trace

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safirlabs/safir-agent/internal/domain"
)

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Add(ExecutionTrace{ID: fmt.Sprintf("t%d", i)})
	}

	assert.Equal(t, 3, r.Len())

	recent := r.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, "t4", recent[0].ID)
	assert.Equal(t, "t2", recent[2].ID)

	_, ok := r.Get("t0")
	assert.False(t, ok)
	got, ok := r.Get("t3")
	assert.True(t, ok)
	assert.Equal(t, "t3", got.ID)
}

func TestRingRecentBeforeFull(t *testing.T) {
	r := NewRing(10)
	r.Add(ExecutionTrace{ID: "a"})
	r.Add(ExecutionTrace{ID: "b"})

	recent := r.Recent(5)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].ID)
}

func TestPreviewTruncates(t *testing.T) {
	assert.Equal(t, "کوتاه", Preview("کوتاه", 10))
	long := Preview("متن خیلی طولانی برای پیش‌نمایش", 8)
	assert.Equal(t, 9, len([]rune(long)))
}

func openTestStore(t *testing.T) *LogStore {
	t.Helper()
	store, err := OpenLogStore(filepath.Join(t.TempDir(), "logs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLogStoreAppendAndQuery(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	store.Append(ctx, LogEntry{
		LogType:   LogTypeRequest,
		SessionID: "s1",
		Method:    "POST",
		Path:      "/api/chat",
	})
	store.Append(ctx, LogEntry{
		LogType:         LogTypeTrace,
		SessionID:       "s1",
		AgentKey:        "faq",
		ResponseSummary: "پاسخ نمونه",
	})
	store.Append(ctx, LogEntry{
		LogType:   LogTypeRequest,
		SessionID: "s2",
		Method:    "GET",
		Path:      "/api/session",
	})

	page, err := store.Query(ctx, LogFilter{SessionID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.Items, 2)
	// Newest first by default.
	assert.Equal(t, LogTypeTrace, page.Items[0].LogType)

	page, err = store.Query(ctx, LogFilter{LogType: LogTypeRequest})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = store.Query(ctx, LogFilter{Search: "نمونه"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestLogStorePagination(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	for i := 0; i < 7; i++ {
		store.Append(ctx, LogEntry{LogType: LogTypeEvent, SessionID: "s1"})
	}

	page, err := store.Query(ctx, LogFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, page.Total)
	assert.Len(t, page.Items, 3)

	page, err = store.Query(ctx, LogFilter{Page: 3, Limit: 3})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
}

func TestLogStoreStatsAndClear(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	store.AppendTrace(ctx, ExecutionTrace{
		ID:        NewID(),
		SessionID: domain.SessionID("s1"),
		Handler:   domain.HandlerFAQ,
	})
	store.Append(ctx, LogEntry{LogType: LogTypeRequest})

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByType[LogTypeTrace])
	assert.Equal(t, 1, stats.ByType[LogTypeRequest])
	assert.Equal(t, 1, stats.ByAgent["faq"])

	require.NoError(t, store.Clear(ctx))
	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Total)
}
