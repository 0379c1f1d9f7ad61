package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/playground-ai/agent-platform/internal/agent"
	"github.com/playground-ai/agent-platform/internal/model"
	"github.com/playground-ai/agent-platform/pkg/logger"
	"github.com/playground-ai/agent-platform/pkg/metrics"
)

// TranscriptRecorder bridges a live run to durable storage. It observes the
// same event sequence the wire encoder sees, builds the assistant message
// incrementally, and commits exactly one outcome per run: a completed
// assistant message on success, or a run-event record on failure or cancel.
// A failed run is never written as an assistant message.
type TranscriptRecorder struct {
	store         MessageStore
	conversations *ConversationService
	logger        *logger.Logger
}

// NewTranscriptRecorder creates a transcript recorder.
func NewTranscriptRecorder(store MessageStore, conversations *ConversationService, log *logger.Logger) *TranscriptRecorder {
	return &TranscriptRecorder{
		store:         store,
		conversations: conversations,
		logger:        log,
	}
}

// RecordUserMessage commits the user's turn before the run starts. The user
// message is durable regardless of how the run ends.
func (r *TranscriptRecorder) RecordUserMessage(ctx context.Context, conversationID, content string) (*model.Message, error) {
	msg := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conversationID,
		Role:           model.RoleUser,
		Content:        content,
		CreatedAt:      time.Now(),
	}

	seq, err := r.store.PublishMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.Sequence = seq

	r.conversations.UpdateLastMessage(ctx, conversationID, msg)
	metrics.MessagesTotal.WithLabelValues(string(model.RoleUser)).Inc()

	return msg, nil
}

// Begin opens a recording for one run. The returned Record is not safe for
// concurrent use; the run loop owns it.
type Record struct {
	recorder *TranscriptRecorder

	conversationID string
	runID          string
	messageID      string
	modelName      string
	started        time.Time

	content   strings.Builder
	parts     []model.Part
	partIndex map[string]int
	committed bool
}

// Begin starts recording a run's assistant turn.
func (r *TranscriptRecorder) Begin(conversationID, runID, messageID, modelName string) *Record {
	return &Record{
		recorder:       r,
		conversationID: conversationID,
		runID:          runID,
		messageID:      messageID,
		modelName:      modelName,
		started:        time.Now(),
		partIndex:      make(map[string]int),
	}
}

func (rec *Record) part(id string) *model.Part {
	if idx, ok := rec.partIndex[id]; ok {
		return &rec.parts[idx]
	}
	rec.parts = append(rec.parts, model.Part{ID: id})
	rec.partIndex[id] = len(rec.parts) - 1
	return &rec.parts[len(rec.parts)-1]
}

// Observe folds one run event into the pending assistant message. It mirrors
// what the client reducer builds from the wire so a reloaded transcript and a
// live stream produce the same shape.
func (rec *Record) Observe(ev agent.Event) {
	switch ev.Type {
	case agent.EventTextDelta:
		rec.content.WriteString(ev.Delta)
		p := rec.part("text-1")
		p.Type = model.PartTypeText
		p.Text += ev.Delta

	case agent.EventReasoningDelta:
		p := rec.part("reasoning-1")
		p.Type = model.PartTypeReasoning
		p.Text += ev.Delta

	case agent.EventToolStarted:
		p := rec.part(ev.ToolCallID)
		p.Type = model.PartTypeTool
		p.ToolName = ev.ToolName
		p.State = model.ToolStateInputStreaming

	case agent.EventToolInputDelta:
		p := rec.part(ev.ToolCallID)
		p.Type = model.PartTypeTool
		if p.State == "" {
			p.State = model.ToolStateInputStreaming
		}

	case agent.EventToolCompleted:
		p := rec.part(ev.ToolCallID)
		p.Type = model.PartTypeTool
		p.ToolName = ev.ToolName
		if ev.ToolInput != nil {
			p.Input = ev.ToolInput
		}
		p.State = model.ToolStateOutputAvailable
		p.Output = ev.ToolOutput.Payload()

	case agent.EventToolFailed:
		p := rec.part(ev.ToolCallID)
		p.Type = model.PartTypeTool
		p.ToolName = ev.ToolName
		if ev.ToolInput != nil {
			p.Input = ev.ToolInput
		}
		p.State = model.ToolStateOutputError
		p.ErrorText = ev.ErrorText

	case agent.EventFileCreated:
		if ev.File == nil {
			return
		}
		p := rec.part(ev.File.URL)
		p.Type = model.PartTypeFile
		p.URL = ev.File.URL
		p.Filename = ev.File.Filename
		p.MediaType = ev.File.MediaType

	case agent.EventRunCompleted:
		if ev.FinalContent != "" && rec.content.Len() == 0 {
			rec.content.WriteString(ev.FinalContent)
			p := rec.part("text-1")
			p.Type = model.PartTypeText
			p.Text = ev.FinalContent
		}
	}
}

// CommitSuccess writes the assistant message with a stop finish reason.
// Idempotent: a second commit on the same record is a no-op.
func (rec *Record) CommitSuccess(ctx context.Context) (*model.Message, error) {
	if rec.committed {
		return nil, nil
	}
	rec.committed = true

	now := time.Now()
	latency := now.Sub(rec.started).Milliseconds()
	modelName := rec.modelName

	msg := &model.Message{
		ID:             rec.messageID,
		ConversationID: rec.conversationID,
		Role:           model.RoleAssistant,
		Content:        rec.content.String(),
		Parts:          rec.parts,
		FinishReason:   model.FinishReasonStop,
		Model:          &modelName,
		LatencyMs:      &latency,
		CreatedAt:      now,
		StreamStarted:  &rec.started,
		StreamEnded:    &now,
	}

	seq, err := rec.recorder.store.PublishMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.Sequence = seq

	rec.recorder.conversations.UpdateLastMessage(ctx, rec.conversationID, msg)
	metrics.MessagesTotal.WithLabelValues(string(model.RoleAssistant)).Inc()
	metrics.RecordRun("success", time.Since(rec.started).Seconds())

	return msg, nil
}

// CommitFailure records the run as failed. No assistant message is written;
// the partial content is discarded and an error record is stored instead.
func (rec *Record) CommitFailure(ctx context.Context, reason string) error {
	return rec.commitEvent(ctx, model.RunEventError, reason, "error")
}

// CommitCancel records a client-initiated abort.
func (rec *Record) CommitCancel(ctx context.Context, reason string) error {
	return rec.commitEvent(ctx, model.RunEventCancel, reason, "cancel")
}

func (rec *Record) commitEvent(ctx context.Context, typ model.RunEventType, reason, outcome string) error {
	if rec.committed {
		return nil
	}
	rec.committed = true

	event := &model.RunEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: rec.conversationID,
		RunID:          rec.runID,
		Type:           typ,
		Reason:         reason,
		CreatedAt:      time.Now(),
	}

	if _, err := rec.recorder.store.PublishRunEvent(ctx, event); err != nil {
		rec.recorder.logger.Error("failed to record run event",
			"conversation_id", rec.conversationID, "run_id", rec.runID, "error", err)
		return err
	}

	metrics.RecordRun(outcome, time.Since(rec.started).Seconds())
	return nil
}

// Committed reports whether an outcome has been written for this run.
func (rec *Record) Committed() bool {
	return rec.committed
}
