package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playground-ai/agent-platform/internal/model"
	"github.com/playground-ai/agent-platform/pkg/logger"
)

func newTestConversations(t *testing.T) (*ConversationService, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return NewConversationService(store, logger.NewNop()), store
}

func TestGetOrCreateNewConversation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestConversations(t)

	conv, created, err := svc.GetOrCreate(ctx, nil, "Help me plan a trip to Norway\nwith details")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "Help me plan a trip to Norway", conv.Title)

	got, err := svc.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, got.ID)
}

func TestGetOrCreateExisting(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestConversations(t)

	conv, _, err := svc.GetOrCreate(ctx, nil, "first")
	require.NoError(t, err)

	got, created, err := svc.GetOrCreate(ctx, &conv.ID, "second")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, conv.ID, got.ID)

	missing := "does-not-exist"
	_, _, err = svc.GetOrCreate(ctx, &missing, "x")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestTitleTruncation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestConversations(t)

	long := "This opening message is deliberately much longer than any reasonable conversation title should ever be"
	conv, _, err := svc.GetOrCreate(ctx, nil, long)
	require.NoError(t, err)
	assert.LessOrEqual(t, len([]rune(conv.Title)), titleMaxLen)
	assert.NotEqual(t, long, conv.Title)
}

func TestListOrderedByRecency(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestConversations(t)

	a, _, err := svc.GetOrCreate(ctx, nil, "first conversation")
	require.NoError(t, err)
	b, _, err := svc.GetOrCreate(ctx, nil, "second conversation")
	require.NoError(t, err)

	// Touch the older conversation so it becomes the most recent.
	time.Sleep(time.Millisecond)
	svc.UpdateLastMessage(ctx, a.ID, &model.Message{Role: model.RoleUser, Content: "bump"})

	resp, err := svc.List(ctx, 50, 0)
	require.NoError(t, err)
	require.Len(t, resp.Conversations, 2)
	assert.Equal(t, a.ID, resp.Conversations[0].ID)
	assert.Equal(t, b.ID, resp.Conversations[1].ID)
	assert.Equal(t, "bump", resp.Conversations[0].Preview)
	assert.Equal(t, 1, resp.Conversations[0].MessageCount)
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestConversations(t)

	for i := 0; i < 5; i++ {
		_, _, err := svc.GetOrCreate(ctx, nil, "conversation")
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	resp, err := svc.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, resp.Conversations, 2)
	assert.Equal(t, 5, resp.Total)

	resp, err = svc.List(ctx, 2, 4)
	require.NoError(t, err)
	assert.Len(t, resp.Conversations, 1)

	resp, err = svc.List(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, resp.Conversations)
	assert.Equal(t, 5, resp.Total)
}

func TestSingleActiveRunPerConversation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestConversations(t)

	conv, _, err := svc.GetOrCreate(ctx, nil, "hello")
	require.NoError(t, err)

	require.NoError(t, svc.TryBeginRun(conv.ID, "run-1"))
	assert.ErrorIs(t, svc.TryBeginRun(conv.ID, "run-2"), ErrRunInProgress)

	// Only the claiming run may release.
	svc.EndRun(conv.ID, "run-2")
	assert.ErrorIs(t, svc.TryBeginRun(conv.ID, "run-3"), ErrRunInProgress)

	svc.EndRun(conv.ID, "run-1")
	require.NoError(t, svc.TryBeginRun(conv.ID, "run-3"))
}

func TestDeletePurgesStore(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestConversations(t)

	conv, _, err := svc.GetOrCreate(ctx, nil, "hello")
	require.NoError(t, err)
	_, err = store.PublishMessage(ctx, &model.Message{ConversationID: conv.ID, Role: model.RoleUser, Content: "hello"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, conv.ID))

	_, err = svc.Get(ctx, conv.ID)
	assert.ErrorIs(t, err, ErrConversationNotFound)

	msgs, _, _, err := store.GetMessages(ctx, conv.ID, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	assert.ErrorIs(t, svc.Delete(ctx, conv.ID), ErrConversationNotFound)
}

func TestDeleteRefusedDuringRun(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestConversations(t)

	conv, _, err := svc.GetOrCreate(ctx, nil, "hello")
	require.NoError(t, err)
	require.NoError(t, svc.TryBeginRun(conv.ID, "run-1"))

	assert.ErrorIs(t, svc.Delete(ctx, conv.ID), ErrRunInProgress)
}

func TestGetDetailReturnsOrderedHistory(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestConversations(t)

	conv, _, err := svc.GetOrCreate(ctx, nil, "hello")
	require.NoError(t, err)

	for _, content := range []string{"one", "two", "three"} {
		_, err = store.PublishMessage(ctx, &model.Message{
			ConversationID: conv.ID, Role: model.RoleUser, Content: content,
		})
		require.NoError(t, err)
	}

	detail, err := svc.GetDetail(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 3)
	assert.Equal(t, "one", detail.Messages[0].Content)
	assert.Equal(t, "three", detail.Messages[2].Content)
}
