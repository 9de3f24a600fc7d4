package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safirlabs/safir-agent/internal/domain"
)

func TestContextStoreMergeIsolatesKeys(t *testing.T) {
	ctx := context.Background()
	store := NewContextStore()

	require.NoError(t, store.Merge(ctx, "s1", map[string]domain.FieldValue{
		"user_name": domain.StringValue("علی"),
		"user_age":  domain.IntValue(25),
	}, time.Hour))

	require.NoError(t, store.Merge(ctx, "s1", map[string]domain.FieldValue{
		"user_location": domain.StringValue("تهران"),
	}, time.Hour))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StringValue("علی"), got["user_name"])
	assert.Equal(t, domain.IntValue(25), got["user_age"])
	assert.Equal(t, domain.StringValue("تهران"), got["user_location"])
}

func TestContextStoreLastWriteWinsPerKey(t *testing.T) {
	ctx := context.Background()
	store := NewContextStore()

	require.NoError(t, store.Merge(ctx, "s1", map[string]domain.FieldValue{
		"user_location": domain.StringValue("تهران"),
	}, time.Hour))
	require.NoError(t, store.Merge(ctx, "s1", map[string]domain.FieldValue{
		"user_location": domain.StringValue("مشهد"),
	}, time.Hour))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StringValue("مشهد"), got["user_location"])
}

func TestContextStorePerKeyExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewContextStore()

	current := time.Unix(1000, 0)
	store.now = func() time.Time { return current }

	require.NoError(t, store.Merge(ctx, "s1", map[string]domain.FieldValue{
		"user_name": domain.StringValue("علی"),
	}, time.Minute))

	current = current.Add(30 * time.Second)
	require.NoError(t, store.Merge(ctx, "s1", map[string]domain.FieldValue{
		"user_age": domain.IntValue(25),
	}, time.Minute))

	// 40s later user_name (written 70s ago) is stale, user_age is not.
	current = current.Add(40 * time.Second)
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	_, hasName := got["user_name"]
	assert.False(t, hasName)
	assert.Equal(t, domain.IntValue(25), got["user_age"])
}

func TestContextStoreWriteRefreshesKeyTTL(t *testing.T) {
	ctx := context.Background()
	store := NewContextStore()

	current := time.Unix(1000, 0)
	store.now = func() time.Time { return current }

	require.NoError(t, store.Merge(ctx, "s1", map[string]domain.FieldValue{
		"user_name": domain.StringValue("علی"),
	}, time.Minute))

	current = current.Add(50 * time.Second)
	require.NoError(t, store.Merge(ctx, "s1", map[string]domain.FieldValue{
		"user_name": domain.StringValue("علی"),
	}, time.Minute))

	current = current.Add(50 * time.Second)
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StringValue("علی"), got["user_name"])
}

func TestContextStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewContextStore()

	require.NoError(t, store.Merge(ctx, "s1", map[string]domain.FieldValue{
		"user_name": domain.StringValue("علی"),
	}, time.Hour))
	require.NoError(t, store.Delete(ctx, "s1"))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSessionStoreUnknownIsNilNil(t *testing.T) {
	store := NewSessionStore(time.Hour)
	rec, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSessionStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Hour)

	rec := &domain.SessionRecord{
		ID: "s1",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Text: "سلام"},
		},
		Meta: domain.NewSessionMeta(),
	}
	require.NoError(t, store.Upsert(ctx, rec))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Messages, 1)

	// Mutating the returned copy must not leak into the store.
	got.Messages[0].Text = "changed"
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "سلام", again.Messages[0].Text)
}

func TestSessionStoreExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore(time.Minute)

	current := time.Unix(1000, 0)
	store.now = func() time.Time { return current }

	require.NoError(t, store.Upsert(ctx, &domain.SessionRecord{ID: "s1"}))

	current = current.Add(2 * time.Minute)
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
