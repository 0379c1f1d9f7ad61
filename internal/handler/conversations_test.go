package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playground-ai/agent-platform/internal/model"
	"github.com/playground-ai/agent-platform/internal/service"
	"github.com/playground-ai/agent-platform/pkg/logger"
)

func newConversationFixture(t *testing.T, allowDelete bool) (*ConversationHandler, *service.ConversationService, *service.MemoryStore) {
	t.Helper()
	log := logger.NewNop()
	store := service.NewMemoryStore()
	convs := service.NewConversationService(store, log)
	return NewConversationHandler(convs, t.TempDir(), allowDelete, log), convs, store
}

func TestConversationDeleteRemovesArtifacts(t *testing.T) {
	log := logger.NewNop()
	store := service.NewMemoryStore()
	convs := service.NewConversationService(store, log)
	dir := t.TempDir()
	h := NewConversationHandler(convs, dir, true, log)

	conv, _, err := convs.GetOrCreate(context.Background(), nil, "hi")
	require.NoError(t, err)

	convDir := filepath.Join(dir, conv.ID)
	require.NoError(t, os.MkdirAll(convDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(convDir, "doc.md"), []byte("x"), 0o644))

	rec := httptest.NewRecorder()
	req := paramRequest(http.MethodDelete, "/api/conversations/x", map[string]string{
		"conversationID": conv.ID,
	})
	h.Delete(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	_, err = os.Stat(convDir)
	assert.True(t, os.IsNotExist(err))
}

func TestConversationList(t *testing.T) {
	h, convs, _ := newConversationFixture(t, false)

	_, _, err := convs.GetOrCreate(context.Background(), nil, "talk about go")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/conversations", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp model.ListConversationsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "talk about go", resp.Conversations[0].Title)
}

func TestConversationGetReturnsHistory(t *testing.T) {
	h, convs, store := newConversationFixture(t, false)

	conv, _, err := convs.GetOrCreate(context.Background(), nil, "hi")
	require.NoError(t, err)
	_, err = store.PublishMessage(context.Background(), &model.Message{
		ConversationID: conv.ID, Role: model.RoleUser, Content: "hi",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := paramRequest(http.MethodGet, "/api/conversations/x", map[string]string{
		"conversationID": conv.ID,
	})
	h.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var detail model.ConversationDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, conv.ID, detail.ID)
	require.Len(t, detail.Messages, 1)
	assert.Equal(t, "hi", detail.Messages[0].Content)
}

// Deletion fails closed: without the explicit opt-in flag the endpoint
// refuses even valid requests.
func TestConversationDeleteFailsClosed(t *testing.T) {
	h, convs, _ := newConversationFixture(t, false)

	conv, _, err := convs.GetOrCreate(context.Background(), nil, "hi")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := paramRequest(http.MethodDelete, "/api/conversations/x", map[string]string{
		"conversationID": conv.ID,
	})
	h.Delete(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)

	_, err = convs.Get(context.Background(), conv.ID)
	assert.NoError(t, err)
}

func TestConversationDeleteWhenEnabled(t *testing.T) {
	h, convs, _ := newConversationFixture(t, true)

	conv, _, err := convs.GetOrCreate(context.Background(), nil, "hi")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := paramRequest(http.MethodDelete, "/api/conversations/x", map[string]string{
		"conversationID": conv.ID,
	})
	h.Delete(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)

	_, err = convs.Get(context.Background(), conv.ID)
	assert.ErrorIs(t, err, service.ErrConversationNotFound)
}

func TestConversationGetUnknown(t *testing.T) {
	h, _, _ := newConversationFixture(t, false)

	rec := httptest.NewRecorder()
	req := paramRequest(http.MethodGet, "/api/conversations/x", map[string]string{
		"conversationID": "018f0000-0000-7000-8000-000000000000",
	})
	h.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
