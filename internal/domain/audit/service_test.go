package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarion-chat/clarion/internal/infra/sqlite"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	require.NoError(t, sqlite.MigrateUp(db))
	return NewService(db)
}

func TestLogChatAndListRecent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.LogChat(ctx, ChatEvent{
		TraceID:     "t-1",
		Topic:       "minestrone recipe",
		TopicStatus: "new_topic",
		RAGResult:   "match",
		Intent:      "recipes/comfort_soups",
		Service:     "recipes",
		Collection:  "comfort_soups",
		RuleIndex:   0,
		Connection:  "hosted",
		Model:       "gpt-4o-mini",
		ToolCalls:   2,
		LatencyMS:   431,
		Outcome:     OutcomeOK,
	}))
	require.NoError(t, svc.LogChat(ctx, ChatEvent{
		TraceID:   "t-2",
		RuleIndex: -1,
		Outcome:   OutcomeNoRule,
		Error:     "no response rule matched the profile",
	}))

	events, err := svc.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	byTrace := map[string]ChatEvent{}
	for _, e := range events {
		assert.NotEmpty(t, e.ID)
		byTrace[e.TraceID] = e
	}
	ok := byTrace["t-1"]
	assert.Equal(t, "recipes/comfort_soups", ok.Intent)
	assert.Equal(t, 2, ok.ToolCalls)
	assert.Equal(t, int64(431), ok.LatencyMS)
	assert.Equal(t, OutcomeOK, ok.Outcome)

	failed := byTrace["t-2"]
	assert.Equal(t, -1, failed.RuleIndex)
	assert.Contains(t, failed.Error, "no response rule")
}

func TestListRecentLimit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.LogChat(ctx, ChatEvent{TraceID: "t", Outcome: OutcomeOK}))
	}
	events, err := svc.ListRecent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}
