package agent

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRunContext(t *testing.T) RunContext {
	t.Helper()
	return RunContext{
		ConversationID: "conv-1",
		RunID:          "run-1",
		ArtifactDir:    t.TempDir(),
	}
}

func TestDocumentToolWritesArtifact(t *testing.T) {
	rc := testRunContext(t)
	tool := NewDocumentTool()

	res, err := tool.Execute(context.Background(), rc, map[string]any{
		"title":   "Trip Plan: Norway!",
		"content": "# Day 1\nBergen",
	})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)

	f := res.Files[0]
	assert.True(t, strings.HasPrefix(f.Filename, "trip-plan-norway-"))
	assert.True(t, strings.HasSuffix(f.Filename, ".md"))
	assert.Equal(t, "text/markdown", f.MediaType)
	assert.Equal(t, "/api/artifacts/conv-1/"+f.Filename, f.URL)

	data, err := os.ReadFile(filepath.Join(rc.ArtifactDir, f.Filename))
	require.NoError(t, err)
	assert.Equal(t, "# Day 1\nBergen", string(data))

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content), &payload))
	assert.Equal(t, f.Filename, payload["filename"])
}

// Same title twice must not collide: each generation gets a unique name.
func TestDocumentToolUniqueNames(t *testing.T) {
	rc := testRunContext(t)
	tool := NewDocumentTool()

	input := map[string]any{"title": "Notes", "content": "v1"}
	res1, err := tool.Execute(context.Background(), rc, input)
	require.NoError(t, err)

	input["content"] = "v2"
	res2, err := tool.Execute(context.Background(), rc, input)
	require.NoError(t, err)

	assert.NotEqual(t, res1.Files[0].Filename, res2.Files[0].Filename)
}

func TestDocumentToolValidation(t *testing.T) {
	rc := testRunContext(t)
	tool := NewDocumentTool()

	_, err := tool.Execute(context.Background(), rc, map[string]any{"title": "no content"})
	assert.Error(t, err)

	// A missing title still yields a usable filename.
	res, err := tool.Execute(context.Background(), rc, map[string]any{"content": "body"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Files[0].Filename, "document-"))
}

func TestListArtifactsTool(t *testing.T) {
	rc := testRunContext(t)
	require.NoError(t, os.WriteFile(filepath.Join(rc.ArtifactDir, "a.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(rc.ArtifactDir, "b.csv"), []byte("y"), 0o644))

	tool := NewListArtifactsTool()
	res, err := tool.Execute(context.Background(), rc, nil)
	require.NoError(t, err)

	assert.Contains(t, res.Content, "a.md")
	assert.Contains(t, res.Content, "b.csv")
}

func TestAllowedArtifact(t *testing.T) {
	mt, ok := AllowedArtifact("report.MD")
	assert.True(t, ok)
	assert.Equal(t, "text/markdown", mt)

	_, ok = AllowedArtifact("payload.sh")
	assert.False(t, ok)
	_, ok = AllowedArtifact("noext")
	assert.False(t, ok)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "trip-plan-norway", slugify("Trip Plan: Norway!"))
	assert.Equal(t, "hello-world", slugify("  Hello   World  "))
	assert.Equal(t, "document", slugify("!!!"))
}
