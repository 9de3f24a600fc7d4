package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safirlabs/safir-agent/internal/adapters/llm"
	"github.com/safirlabs/safir-agent/internal/adapters/storage/memory"
	"github.com/safirlabs/safir-agent/internal/app/tools"
	"github.com/safirlabs/safir-agent/internal/domain"
	"github.com/safirlabs/safir-agent/internal/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg, err := schema.NewRegistry(schema.DefaultFields())
	require.NoError(t, err)
	return reg
}

func TestExtractConvertsAndValidates(t *testing.T) {
	mock := llm.NewMock()
	mock.StructuredJSON = `{"fields": [
		{"field": "name", "value": "علی"},
		{"field": "age", "value": "۲۵ سالمه"}
	]}`

	e := New(mock, testRegistry(t))
	updates, err := e.Extract(context.Background(), "علی هستم، ۲۵ سالمه", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.StringValue("علی"), updates["user_name"])
	assert.Equal(t, domain.IntValue(25), updates["user_age"])
}

func TestExtractDropsRejectedFieldOnly(t *testing.T) {
	mock := llm.NewMock()
	mock.StructuredJSON = `{"fields": [
		{"field": "name", "value": "زهرا"},
		{"field": "age", "value": "سیصد"}
	]}`

	e := New(mock, testRegistry(t))
	updates, err := e.Extract(context.Background(), "زهرا هستم", nil)
	require.NoError(t, err)

	assert.Equal(t, domain.StringValue("زهرا"), updates["user_name"])
	_, hasAge := updates["user_age"]
	assert.False(t, hasAge)
}

func TestExtractSkipsUnknownFields(t *testing.T) {
	mock := llm.NewMock()
	mock.StructuredJSON = `{"fields": [{"field": "shoe_size", "value": "42"}]}`

	e := New(mock, testRegistry(t))
	updates, err := e.Extract(context.Background(), "سایز کفشم ۴۲ـه", nil)
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestExtractAccumulatesListFields(t *testing.T) {
	mock := llm.NewMock()
	mock.StructuredJSON = `{"fields": [{"field": "interest", "value": "کتاب"}]}`

	current := map[string]domain.FieldValue{
		"user_interests": domain.ListValue("ورزش"),
	}

	e := New(mock, testRegistry(t))
	updates, err := e.Extract(context.Background(), "به کتاب هم علاقه دارم", current)
	require.NoError(t, err)

	assert.Equal(t, []string{"ورزش", "کتاب"}, updates["user_interests"].List)
}

func TestExtractAccumulateDeduplicates(t *testing.T) {
	mock := llm.NewMock()
	mock.StructuredJSON = `{"fields": [{"field": "interest", "value": "ورزش"}]}`

	current := map[string]domain.FieldValue{
		"user_interests": domain.ListValue("ورزش", "کتاب"),
	}

	e := New(mock, testRegistry(t))
	updates, err := e.Extract(context.Background(), "ورزش دوست دارم", current)
	require.NoError(t, err)

	assert.Equal(t, []string{"ورزش", "کتاب"}, updates["user_interests"].List)
}

func TestExtractPropagatesCallFailure(t *testing.T) {
	mock := llm.NewMock()
	mock.Err = errors.New("backend down")

	e := New(mock, testRegistry(t))
	_, err := e.Extract(context.Background(), "سلام", nil)
	assert.Error(t, err)
}

func TestSaveFieldToolPersistsSingleKey(t *testing.T) {
	ctx := context.Background()
	store := memory.NewContextStore()
	tool := NewSaveFieldTool(testRegistry(t), store, time.Hour)

	cctx := tools.CallContext{SessionID: "s1"}
	_, err := tool.Execute(ctx, cctx, map[string]any{"field": "age", "value": "۲۵"})
	require.NoError(t, err)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.IntValue(25), got["user_age"])
}

func TestSaveFieldToolRejectsInvalidValue(t *testing.T) {
	ctx := context.Background()
	store := memory.NewContextStore()
	tool := NewSaveFieldTool(testRegistry(t), store, time.Hour)

	cctx := tools.CallContext{SessionID: "s1"}
	_, err := tool.Execute(ctx, cctx, map[string]any{"field": "age", "value": "چهارصد"})
	assert.ErrorIs(t, err, domain.ErrFieldRejected)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSaveFieldToolAccumulates(t *testing.T) {
	ctx := context.Background()
	store := memory.NewContextStore()
	tool := NewSaveFieldTool(testRegistry(t), store, time.Hour)

	cctx := tools.CallContext{SessionID: "s1"}
	for _, v := range []string{"ورزش", "کتاب", "ورزش"} {
		_, err := tool.Execute(ctx, cctx, map[string]any{"field": "interest", "value": v})
		require.NoError(t, err)
	}

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ورزش", "کتاب"}, got["user_interests"].List)
}
