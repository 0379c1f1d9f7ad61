package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// mediaTypes maps artifact extensions to their media types.
var mediaTypes = map[string]string{
	".md":   "text/markdown",
	".txt":  "text/plain",
	".csv":  "text/csv",
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
}

// AllowedArtifact reports whether filename has a servable artifact extension
// and returns its media type. Anything off the allowlist is never served.
func AllowedArtifact(filename string) (string, bool) {
	mt, ok := mediaTypes[strings.ToLower(filepath.Ext(filename))]
	return mt, ok
}

// GuessMediaType returns the media type for an artifact filename.
func GuessMediaType(filename string) string {
	if mt, ok := mediaTypes[strings.ToLower(filepath.Ext(filename))]; ok {
		return mt
	}
	return "application/octet-stream"
}

// DocumentTool writes a document into the run's artifact directory. Names
// carry a unique suffix so repeated generations with the same title never
// collide.
type DocumentTool struct{}

// NewDocumentTool creates the generate_document tool.
func NewDocumentTool() *DocumentTool {
	return &DocumentTool{}
}

func (t *DocumentTool) Name() string { return "generate_document" }

func (t *DocumentTool) Description() string {
	return "Generate a document file (markdown or plain text) from the given title and content. " +
		"The file is saved as a downloadable artifact of the current conversation."
}

func (t *DocumentTool) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":   map[string]any{"type": "string", "description": "Document title, used for the filename"},
			"content": map[string]any{"type": "string", "description": "Full document body"},
			"format":  map[string]any{"type": "string", "enum": []string{"md", "txt"}, "description": "Output format, defaults to md"},
		},
		"required": []string{"title", "content"},
	}
}

// Execute writes the document and returns a JSON result the model can read
// back (filename, url, size).
func (t *DocumentTool) Execute(ctx context.Context, rc RunContext, input map[string]any) (*ToolResult, error) {
	title, _ := input["title"].(string)
	content, _ := input["content"].(string)
	format, _ := input["format"].(string)

	if content == "" {
		return nil, fmt.Errorf("content is required")
	}
	if format != "txt" {
		format = "md"
	}
	if rc.ArtifactDir == "" {
		return nil, fmt.Errorf("no artifact directory for this run")
	}

	filename := fmt.Sprintf("%s-%s.%s", slugify(title), uuid.New().String()[:8], format)
	path := filepath.Join(rc.ArtifactDir, filename)

	if err := os.MkdirAll(rc.ArtifactDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write document: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat document: %w", err)
	}

	artifact := FileArtifact{
		Filename:  filename,
		MediaType: GuessMediaType(filename),
		URL:       fmt.Sprintf("/api/artifacts/%s/%s", rc.ConversationID, filename),
		SizeBytes: info.Size(),
	}

	result, err := json.Marshal(map[string]any{
		"filename":   artifact.Filename,
		"url":        artifact.URL,
		"size_bytes": artifact.SizeBytes,
	})
	if err != nil {
		return nil, err
	}

	return &ToolResult{
		Content: string(result),
		Files:   []FileArtifact{artifact},
	}, nil
}

// ListArtifactsTool lets the model see which files the conversation already has.
type ListArtifactsTool struct{}

// NewListArtifactsTool creates the list_artifacts tool.
func NewListArtifactsTool() *ListArtifactsTool {
	return &ListArtifactsTool{}
}

func (t *ListArtifactsTool) Name() string { return "list_artifacts" }

func (t *ListArtifactsTool) Description() string {
	return "List the files already generated in this conversation."
}

func (t *ListArtifactsTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *ListArtifactsTool) Execute(ctx context.Context, rc RunContext, input map[string]any) (*ToolResult, error) {
	entries, err := os.ReadDir(rc.ArtifactDir)
	if err != nil {
		if os.IsNotExist(err) {
			return &ToolResult{Content: "[]"}, nil
		}
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	files := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, map[string]any{
			"filename":   e.Name(),
			"url":        fmt.Sprintf("/api/artifacts/%s/%s", rc.ConversationID, e.Name()),
			"size_bytes": info.Size(),
		})
	}

	result, err := json.Marshal(files)
	if err != nil {
		return nil, err
	}
	return &ToolResult{Content: string(result)}, nil
}

func slugify(s string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "document"
	}
	if len(slug) > 48 {
		slug = slug[:48]
	}
	return slug
}
