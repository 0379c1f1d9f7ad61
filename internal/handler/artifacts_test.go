package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playground-ai/agent-platform/internal/model"
	"github.com/playground-ai/agent-platform/internal/service"
	"github.com/playground-ai/agent-platform/pkg/logger"
)

type artifactFixture struct {
	handler *ArtifactHandler
	convs   *service.ConversationService
	dir     string
	convID  string
}

func newArtifactFixture(t *testing.T) *artifactFixture {
	t.Helper()
	log := logger.NewNop()
	store := service.NewMemoryStore()
	convs := service.NewConversationService(store, log)

	conv, _, err := convs.GetOrCreate(context.Background(), nil, "artifact test")
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, conv.ID), 0o755))

	return &artifactFixture{
		handler: NewArtifactHandler(convs, dir, log),
		convs:   convs,
		dir:     dir,
		convID:  conv.ID,
	}
}

func (f *artifactFixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, f.convID, name), []byte(content), 0o644))
}

func paramRequest(method, url string, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, url, nil)
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func (f *artifactFixture) download(conversationID, filename string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := paramRequest(http.MethodGet, "/api/artifacts/x/y", map[string]string{
		"conversationID": conversationID,
		"filename":       filename,
	})
	f.handler.Download(rec, req)
	return rec
}

func TestArtifactDownload(t *testing.T) {
	f := newArtifactFixture(t)
	f.write(t, "report.md", "# Report")

	rec := f.download(f.convID, "report.md")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/markdown", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `"report.md"`)
	assert.Equal(t, "# Report", rec.Body.String())
}

// Path traversal never reaches the filesystem: the request is rejected on
// the filename alone.
func TestArtifactDownloadRejectsTraversal(t *testing.T) {
	f := newArtifactFixture(t)

	secret := filepath.Join(f.dir, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("keep out"), 0o644))

	for _, name := range []string{
		"../secret.txt",
		"..%2Fsecret.txt",
		"foo/../../secret.txt",
		"..\\secret.txt",
		"/etc/passwd",
		"..",
		"",
	} {
		rec := f.download(f.convID, name)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "filename %q", name)
		assert.NotContains(t, rec.Body.String(), "keep out", "filename %q", name)
	}
}

func TestArtifactDownloadExtensionAllowlist(t *testing.T) {
	f := newArtifactFixture(t)
	f.write(t, "tool.sh", "#!/bin/sh")
	f.write(t, "notes.md", "ok")

	rec := f.download(f.convID, "tool.sh")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.download(f.convID, "notes.md")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestArtifactDownloadUnknownConversation(t *testing.T) {
	f := newArtifactFixture(t)

	rec := f.download("not-a-uuid", "report.md")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.download("018f0000-0000-7000-8000-000000000000", "report.md")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArtifactDownloadMissingFile(t *testing.T) {
	f := newArtifactFixture(t)

	rec := f.download(f.convID, "nope.md")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArtifactList(t *testing.T) {
	f := newArtifactFixture(t)
	f.write(t, "b.md", "two")
	f.write(t, "a.csv", "one")
	f.write(t, "skipped.sh", "not listed")

	rec := httptest.NewRecorder()
	req := paramRequest(http.MethodGet, "/api/conversations/x/artifacts", map[string]string{
		"conversationID": f.convID,
	})
	f.handler.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.ListArtifactsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "a.csv", resp.Artifacts[0].Filename)
	assert.Equal(t, "text/csv", resp.Artifacts[0].Type)
	assert.Equal(t, "/api/artifacts/"+f.convID+"/a.csv", resp.Artifacts[0].URL)
	assert.Equal(t, "b.md", resp.Artifacts[1].Filename)
}
