package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safirlabs/safir-agent/internal/adapters/llm"
	"github.com/safirlabs/safir-agent/internal/domain"
)

func inClosedSet(key domain.HandlerKey) bool {
	for _, h := range domain.AllHandlers() {
		if h == key {
			return true
		}
	}
	return false
}

func TestRouteReturnsClassifiedHandler(t *testing.T) {
	mock := llm.NewMock()
	mock.StructuredJSON = `{"handler_key": "action_expert", "reason": "content request"}`

	r := New(mock)
	key := r.Route(context.Background(), "برای محفل چی بگم؟", nil)

	assert.Equal(t, domain.HandlerActionExpert, key)
	assert.Equal(t, 1, mock.StructuredCalls)
}

func TestRouteFallsBackOnError(t *testing.T) {
	mock := llm.NewMock()
	mock.Err = errors.New("backend unavailable")

	r := New(mock)
	key := r.Route(context.Background(), "سلام", nil)

	assert.Equal(t, domain.DefaultHandler, key)
}

func TestRouteNormalizesGarbageKey(t *testing.T) {
	cases := []string{
		`{"handler_key": "banana", "reason": "??"}`,
		`{"handler_key": "", "reason": ""}`,
		`{"handler_key": "FAQ ", "reason": "caps"}`,
	}
	for _, payload := range cases {
		mock := llm.NewMock()
		mock.StructuredJSON = payload

		r := New(mock)
		key := r.Route(context.Background(), "یه سوال دارم", nil)

		require.True(t, inClosedSet(key), "payload %s produced %q", payload, key)
	}
}

func TestRouteAcceptsLegacyAlias(t *testing.T) {
	mock := llm.NewMock()
	mock.StructuredJSON = `{"handler_key": "guest_faq", "reason": "legacy"}`

	r := New(mock)
	key := r.Route(context.Background(), "سفیر چیه؟", nil)

	assert.Equal(t, domain.HandlerFAQ, key)
}

func TestRouteIncludesRecentHistoryOnly(t *testing.T) {
	mock := llm.NewMock()
	mock.StructuredJSON = `{"handler_key": "faq", "reason": "general"}`

	history := make([]domain.Message, 0, 10)
	for i := 0; i < 10; i++ {
		history = append(history, domain.Message{Role: domain.RoleUser, Text: "پیام قدیمی"})
	}
	history = append(history, domain.Message{Role: domain.RoleAssistant, Text: "جدیدترین پاسخ"})

	r := New(mock)
	r.Route(context.Background(), "ادامه بده", history)

	assert.Contains(t, mock.LastUser, "جدیدترین پاسخ")
}

func TestPathRouterSpecificity(t *testing.T) {
	pr := NewPathRouter([]PathMapping{
		{Path: "/konesh/*", Handler: "action_expert"},
		{Path: "/konesh/register", Handler: "journey_register"},
		{Path: "/rewards/*", Handler: "rewards_invite"},
	})

	assert.Equal(t, domain.HandlerJourneyRegister, pr.HandlerForPath("/konesh/register"))
	assert.Equal(t, domain.HandlerActionExpert, pr.HandlerForPath("/konesh/ideas"))
	assert.Equal(t, domain.HandlerRewardsInvite, pr.HandlerForPath("/rewards/coins"))
	assert.Equal(t, domain.DefaultHandler, pr.HandlerForPath("/about"))
	assert.Equal(t, domain.DefaultHandler, pr.HandlerForPath(""))
}

func TestPathRouterNormalizesLeadingSlash(t *testing.T) {
	pr := NewPathRouter([]PathMapping{
		{Path: "/rewards/*", Handler: "rewards_invite"},
	})
	assert.Equal(t, domain.HandlerRewardsInvite, pr.HandlerForPath("rewards/invite"))
}

func TestLoadPathRouterMissingFile(t *testing.T) {
	pr, err := LoadPathRouter("/nonexistent/mapping.yaml")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultHandler, pr.HandlerForPath("/anything"))
}
