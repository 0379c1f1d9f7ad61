package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/playground-ai/agent-platform/internal/agent"
	"github.com/playground-ai/agent-platform/internal/middleware"
	"github.com/playground-ai/agent-platform/internal/model"
	"github.com/playground-ai/agent-platform/internal/service"
	"github.com/playground-ai/agent-platform/internal/stream"
	"github.com/playground-ai/agent-platform/pkg/logger"
	"github.com/playground-ai/agent-platform/pkg/metrics"
)

// ChatHandler runs agent turns and streams them over SSE.
type ChatHandler struct {
	producer      agent.Producer
	conversations *service.ConversationService
	recorder      *service.TranscriptRecorder
	store         service.MessageStore
	artifactsDir  string
	modelName     string
	idleTimeout   time.Duration
	logger        *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(
	producer agent.Producer,
	conversations *service.ConversationService,
	recorder *service.TranscriptRecorder,
	store service.MessageStore,
	artifactsDir string,
	modelName string,
	idleTimeout time.Duration,
	log *logger.Logger,
) *ChatHandler {
	return &ChatHandler{
		producer:      producer,
		conversations: conversations,
		recorder:      recorder,
		store:         store,
		artifactsDir:  artifactsDir,
		modelName:     modelName,
		idleTimeout:   idleTimeout,
		logger:        log,
	}
}

// Chat handles POST /api/chat. It commits the user message, runs the agent,
// and streams the turn as SSE frames. Exactly one terminal outcome is both
// streamed and persisted per run.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ConversationID != nil && *req.ConversationID != "" {
		if err := middleware.ValidateConversationID(*req.ConversationID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx := r.Context()

	conv, created, err := h.conversations.GetOrCreate(ctx, req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to resolve conversation")
		return
	}

	runID := uuid.Must(uuid.NewV7()).String()
	messageID := uuid.Must(uuid.NewV7()).String()

	if err := h.conversations.TryBeginRun(conv.ID, runID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	defer h.conversations.EndRun(conv.ID, runID)

	log := h.logger.With(
		"conversation_id", conv.ID,
		"run_id", runID,
		"correlation_id", middleware.GetCorrelationID(ctx),
	)
	if created {
		log.Info("starting run in new conversation")
	}

	// The user's turn is durable before the run starts, whatever happens
	// after.
	userMsg, err := h.recorder.RecordUserMessage(ctx, conv.ID, req.Message)
	if err != nil {
		log.Error("failed to record user message", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record message")
		return
	}

	history, _, _, err := h.store.GetMessages(ctx, conv.ID, 0, 1000)
	if err != nil {
		log.Error("failed to load history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if len(history) == 0 {
		history = []model.Message{*userMsg}
	}

	artifactDir := filepath.Join(h.artifactsDir, conv.ID)
	if err := os.MkdirAll(artifactDir, 0o755); err != nil {
		log.Error("failed to create artifact dir", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to prepare run")
		return
	}

	sw, err := stream.NewWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	metrics.StreamsActive.Inc()
	defer metrics.StreamsActive.Dec()

	enc := stream.NewEncoder(sw, log)
	if err := enc.Start(messageID, conv.ID); err != nil {
		log.Warn("client gone before stream start", "error", err)
		return
	}

	h.run(ctx, log, enc, conv.ID, runID, messageID, artifactDir, history)
}

// run drives one producer run to a single terminal outcome on both the wire
// and the store.
func (h *ChatHandler) run(
	ctx context.Context,
	log *logger.Logger,
	enc *stream.Encoder,
	conversationID, runID, messageID, artifactDir string,
	history []model.Message,
) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	record := h.recorder.Begin(conversationID, runID, messageID, h.modelName)

	// Commits must survive client disconnects.
	commitCtx, commitCancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer commitCancel()

	events := make(chan agent.Event)
	runErr := make(chan error, 1)

	go func() {
		defer close(events)
		defer func() {
			if p := recover(); p != nil {
				log.Error("producer panic", "panic", p)
				runErr <- fmt.Errorf("producer panic: %v", p)
			}
		}()
		runErr <- h.producer.Run(runCtx, agent.RunContext{
			ConversationID: conversationID,
			RunID:          runID,
			ArtifactDir:    artifactDir,
		}, history, events)
	}()

	idle := time.NewTimer(h.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				err := <-runErr
				h.finish(commitCtx, log, enc, record, conversationID, messageID, err, ctx.Err() != nil)
				return
			}

			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(h.idleTimeout)

			record.Observe(ev)
			if err := enc.Encode(ev); err != nil {
				// Client went away mid-stream. Stop the producer and record
				// the abort; there is no one left to write frames to.
				log.Info("stream write failed, aborting run", "error", err)
				cancel()
				h.drain(events, runErr)
				record.CommitCancel(commitCtx, "client disconnected")
				return
			}

		case <-idle.C:
			log.Warn("run idle timeout exceeded", "timeout", h.idleTimeout)
			cancel()
			h.drain(events, runErr)
			enc.FinishError("run produced no output before the idle timeout")
			record.CommitFailure(commitCtx, "idle timeout")
			return

		case <-ctx.Done():
			log.Info("client disconnected, cancelling run")
			cancel()
			h.drain(events, runErr)
			record.CommitCancel(commitCtx, "client disconnected")
			return
		}
	}
}

// finish writes the run's terminal frame and commits the matching outcome.
func (h *ChatHandler) finish(
	ctx context.Context,
	log *logger.Logger,
	enc *stream.Encoder,
	record *service.Record,
	conversationID, messageID string,
	runErr error,
	clientGone bool,
) {
	if runErr != nil {
		if clientGone || errors.Is(runErr, context.Canceled) {
			log.Info("run cancelled", "error", runErr)
			record.CommitCancel(ctx, "client disconnected")
			return
		}

		log.Error("run failed", "error", runErr)
		enc.FinishError(runErr.Error())
		record.CommitFailure(ctx, runErr.Error())
		return
	}

	if err := enc.FinishSuccess(conversationID, messageID); err != nil {
		// The run succeeded but the success frame never reached the client.
		// The transcript still records the completed turn.
		log.Warn("failed to write finish frame", "error", err)
	}
	if _, err := record.CommitSuccess(ctx); err != nil {
		log.Error("failed to commit assistant message", "error", err)
	}
}

// drain unblocks the producer goroutine after a cancel and waits for it to
// return.
func (h *ChatHandler) drain(events <-chan agent.Event, runErr <-chan error) {
	for {
		select {
		case _, ok := <-events:
			if !ok {
				<-runErr
				return
			}
		case <-time.After(5 * time.Second):
			return
		}
	}
}
