package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playground-ai/agent-platform/internal/agent"
	"github.com/playground-ai/agent-platform/internal/model"
	"github.com/playground-ai/agent-platform/pkg/logger"
)

func newTestRecorder(t *testing.T) (*TranscriptRecorder, *MemoryStore, *ConversationService) {
	t.Helper()
	store := NewMemoryStore()
	convs := NewConversationService(store, logger.NewNop())
	return NewTranscriptRecorder(store, convs, logger.NewNop()), store, convs
}

func TestCommitSuccessWritesAssistantMessage(t *testing.T) {
	ctx := context.Background()
	rec, store, convs := newTestRecorder(t)

	conv, _, err := convs.GetOrCreate(ctx, nil, "write a summary")
	require.NoError(t, err)

	_, err = rec.RecordUserMessage(ctx, conv.ID, "write a summary")
	require.NoError(t, err)

	record := rec.Begin(conv.ID, "run-1", "msg-1", "claude-3-5-sonnet")
	record.Observe(agent.Event{Type: agent.EventReasoningDelta, Delta: "outline first"})
	record.Observe(agent.Event{Type: agent.EventTextDelta, Delta: "Summary: "})
	record.Observe(agent.Event{Type: agent.EventTextDelta, Delta: "done."})
	record.Observe(agent.Event{Type: agent.EventToolCompleted,
		ToolCallID: "call-1", ToolName: "generate_document",
		ToolInput:  map[string]any{"title": "Summary"},
		ToolOutput: agent.DecodeToolOutput(`{"filename":"summary.md"}`)})

	msg, err := record.CommitSuccess(ctx)
	require.NoError(t, err)

	messages, _, _, err := store.GetMessages(ctx, conv.ID, 0, 100)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	asst := messages[1]
	assert.Equal(t, "msg-1", asst.ID)
	assert.Equal(t, model.RoleAssistant, asst.Role)
	assert.Equal(t, model.FinishReasonStop, asst.FinishReason)
	assert.Equal(t, "Summary: done.", asst.Content)
	require.NotNil(t, asst.Model)
	assert.Equal(t, "claude-3-5-sonnet", *asst.Model)
	assert.NotNil(t, asst.LatencyMs)

	require.Len(t, asst.Parts, 3)
	assert.Equal(t, model.PartTypeReasoning, asst.Parts[0].Type)
	assert.Equal(t, model.PartTypeText, asst.Parts[1].Type)
	assert.Equal(t, "Summary: done.", asst.Parts[1].Text)
	assert.Equal(t, model.ToolStateOutputAvailable, asst.Parts[2].State)

	assert.Equal(t, msg.Sequence, asst.Sequence)
	assert.Empty(t, store.RunEvents(conv.ID))
}

// A failed run must never be stored as an assistant message. The partial
// output is discarded and an explicit error record is written instead.
func TestCommitFailureNeverWritesAssistantMessage(t *testing.T) {
	ctx := context.Background()
	rec, store, convs := newTestRecorder(t)

	conv, _, err := convs.GetOrCreate(ctx, nil, "hello")
	require.NoError(t, err)
	_, err = rec.RecordUserMessage(ctx, conv.ID, "hello")
	require.NoError(t, err)

	record := rec.Begin(conv.ID, "run-1", "msg-1", "claude-3-5-sonnet")
	record.Observe(agent.Event{Type: agent.EventTextDelta, Delta: "partial answer that will be lost"})

	require.NoError(t, record.CommitFailure(ctx, "model unavailable"))

	messages, _, _, err := store.GetMessages(ctx, conv.ID, 0, 100)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, model.RoleUser, messages[0].Role)

	events := store.RunEvents(conv.ID)
	require.Len(t, events, 1)
	assert.Equal(t, model.RunEventError, events[0].Type)
	assert.Equal(t, "model unavailable", events[0].Reason)
	assert.Equal(t, "run-1", events[0].RunID)
}

func TestCommitCancelWritesCancelRecord(t *testing.T) {
	ctx := context.Background()
	rec, store, convs := newTestRecorder(t)

	conv, _, err := convs.GetOrCreate(ctx, nil, "hello")
	require.NoError(t, err)

	record := rec.Begin(conv.ID, "run-1", "msg-1", "m")
	require.NoError(t, record.CommitCancel(ctx, "client disconnected"))

	events := store.RunEvents(conv.ID)
	require.Len(t, events, 1)
	assert.Equal(t, model.RunEventCancel, events[0].Type)
}

// Exactly one outcome per run: after any commit, further commits are no-ops.
func TestRecordCommitsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	rec, store, convs := newTestRecorder(t)

	conv, _, err := convs.GetOrCreate(ctx, nil, "hello")
	require.NoError(t, err)

	record := rec.Begin(conv.ID, "run-1", "msg-1", "m")
	record.Observe(agent.Event{Type: agent.EventTextDelta, Delta: "ok"})

	require.NoError(t, record.CommitFailure(ctx, "timeout"))
	msg, err := record.CommitSuccess(ctx)
	require.NoError(t, err)
	assert.Nil(t, msg)
	require.NoError(t, record.CommitCancel(ctx, "late"))

	messages, _, _, err := store.GetMessages(ctx, conv.ID, 0, 100)
	require.NoError(t, err)
	assert.Empty(t, messages)
	assert.Len(t, store.RunEvents(conv.ID), 1)
	assert.True(t, record.Committed())
}

func TestRecordFinalBlobFallback(t *testing.T) {
	ctx := context.Background()
	rec, _, convs := newTestRecorder(t)

	conv, _, err := convs.GetOrCreate(ctx, nil, "hello")
	require.NoError(t, err)

	record := rec.Begin(conv.ID, "run-1", "msg-1", "m")
	record.Observe(agent.Event{Type: agent.EventRunCompleted, FinalContent: "whole answer"})

	msg, err := record.CommitSuccess(ctx)
	require.NoError(t, err)
	assert.Equal(t, "whole answer", msg.Content)
	require.Len(t, msg.Parts, 1)
	assert.Equal(t, "whole answer", msg.Parts[0].Text)
}

func TestRecordFinalBlobIgnoredAfterDeltas(t *testing.T) {
	ctx := context.Background()
	rec, _, convs := newTestRecorder(t)

	conv, _, err := convs.GetOrCreate(ctx, nil, "hello")
	require.NoError(t, err)

	record := rec.Begin(conv.ID, "run-1", "msg-1", "m")
	record.Observe(agent.Event{Type: agent.EventTextDelta, Delta: "streamed"})
	record.Observe(agent.Event{Type: agent.EventRunCompleted, FinalContent: "streamed"})

	msg, err := record.CommitSuccess(ctx)
	require.NoError(t, err)
	assert.Equal(t, "streamed", msg.Content)
}
