package handler

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/playground-ai/agent-platform/internal/middleware"
	"github.com/playground-ai/agent-platform/internal/service"
	"github.com/playground-ai/agent-platform/pkg/logger"
)

// ConversationHandler handles conversation CRUD endpoints.
type ConversationHandler struct {
	conversations *service.ConversationService
	artifactsDir  string
	allowDelete   bool
	logger        *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(conversations *service.ConversationService, artifactsDir string, allowDelete bool, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		artifactsDir:  artifactsDir,
		allowDelete:   allowDelete,
		logger:        log,
	}
}

// List handles GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	resp, err := h.conversations.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// Get handles GET /api/conversations/{conversationID}. It returns the full
// committed history in the same message shape the live stream builds.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	detail, err := h.conversations.GetDetail(r.Context(), conversationID)
	if err != nil {
		if errors.Is(err, service.ErrConversationNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		h.logger.Error("failed to load conversation", "conversation_id", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// Delete handles DELETE /api/conversations/{conversationID}. Deletion fails
// closed: unless explicitly enabled by configuration, the endpoint refuses.
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.allowDelete {
		writeError(w, http.StatusForbidden, "conversation deletion is disabled")
		return
	}

	conversationID := chi.URLParam(r, "conversationID")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.conversations.Delete(r.Context(), conversationID); err != nil {
		switch {
		case errors.Is(err, service.ErrConversationNotFound):
			writeError(w, http.StatusNotFound, "conversation not found")
		case errors.Is(err, service.ErrRunInProgress):
			writeError(w, http.StatusConflict, err.Error())
		default:
			h.logger.Error("failed to delete conversation", "conversation_id", conversationID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		}
		return
	}

	// The transcript is gone; the generated files go with it.
	if err := os.RemoveAll(filepath.Join(h.artifactsDir, conversationID)); err != nil {
		h.logger.Warn("failed to remove artifact dir", "conversation_id", conversationID, "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}
