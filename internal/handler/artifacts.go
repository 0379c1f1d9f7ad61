package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/playground-ai/agent-platform/internal/agent"
	"github.com/playground-ai/agent-platform/internal/middleware"
	"github.com/playground-ai/agent-platform/internal/model"
	"github.com/playground-ai/agent-platform/internal/service"
	"github.com/playground-ai/agent-platform/pkg/logger"
)

// ArtifactHandler serves files generated by agent tools. Every request is
// confined to the requested conversation's artifact directory.
type ArtifactHandler struct {
	conversations *service.ConversationService
	artifactsDir  string
	logger        *logger.Logger
}

// NewArtifactHandler creates a new artifact handler.
func NewArtifactHandler(conversations *service.ConversationService, artifactsDir string, log *logger.Logger) *ArtifactHandler {
	return &ArtifactHandler{
		conversations: conversations,
		artifactsDir:  artifactsDir,
		logger:        log,
	}
}

// resolve validates a conversation/filename pair and returns the on-disk
// path. Traversal outside the conversation's directory is rejected before
// any filesystem access.
func (h *ArtifactHandler) resolve(conversationID, filename string) (string, string, error) {
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		return "", "", err
	}

	if filename == "" || filename != filepath.Base(filename) ||
		strings.Contains(filename, "..") || strings.ContainsAny(filename, "/\\") {
		return "", "", fmt.Errorf("invalid filename")
	}

	mediaType, ok := agent.AllowedArtifact(filename)
	if !ok {
		return "", "", fmt.Errorf("file type not allowed")
	}

	dir := filepath.Join(h.artifactsDir, conversationID)
	path := filepath.Join(dir, filename)

	// Belt-and-suspenders after the Base check above.
	if rel, err := filepath.Rel(dir, path); err != nil || strings.HasPrefix(rel, "..") {
		return "", "", fmt.Errorf("invalid filename")
	}

	return path, mediaType, nil
}

// Download handles GET /api/artifacts/{conversationID}/{filename}
func (h *ArtifactHandler) Download(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	filename := chi.URLParam(r, "filename")

	path, mediaType, err := h.resolve(conversationID, filename)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.conversations.Get(r.Context(), conversationID); err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, "artifact not found")
			return
		}
		h.logger.Error("failed to open artifact", "path", path, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to open artifact")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}

	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

// List handles GET /api/conversations/{conversationID}/artifacts
func (h *ArtifactHandler) List(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := h.conversations.Get(r.Context(), conversationID); err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	dir := filepath.Join(h.artifactsDir, conversationID)
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		h.logger.Error("failed to read artifact dir", "dir", dir, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list artifacts")
		return
	}

	artifacts := make([]model.ArtifactInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		mediaType, ok := agent.AllowedArtifact(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		artifacts = append(artifacts, model.ArtifactInfo{
			Filename:  entry.Name(),
			Type:      mediaType,
			URL:       fmt.Sprintf("/api/artifacts/%s/%s", conversationID, entry.Name()),
			SizeBytes: info.Size(),
		})
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Filename < artifacts[j].Filename
	})

	writeJSON(w, http.StatusOK, model.ListArtifactsResponse{
		Artifacts: artifacts,
		Total:     len(artifacts),
	})
}
