// Package agent defines the run producer boundary: the domain events an
// agent run emits, the request-scoped context threaded through tool
// execution, and the tool surface available to the model.
package agent

import (
	"context"

	"github.com/playground-ai/agent-platform/internal/model"
)

// EventType identifies a domain event produced during an agent run.
type EventType string

const (
	EventRunStarted     EventType = "run_started"
	EventReasoningDelta EventType = "reasoning_delta"
	EventTextDelta      EventType = "text_delta"
	EventToolStarted    EventType = "tool_started"
	EventToolInputDelta EventType = "tool_input_delta"
	EventToolCompleted  EventType = "tool_completed"
	EventToolFailed     EventType = "tool_failed"
	EventFileCreated    EventType = "file_created"
	EventRunCompleted   EventType = "run_completed"
)

// Event is one temporally-ordered occurrence in a run. The producer emits
// events in the order they happen; consumers rely on that ordering.
type Event struct {
	Type EventType

	// Incremental text for text/reasoning deltas.
	Delta string

	// Tool lifecycle. ToolCallID is stable across all events for one
	// invocation.
	ToolCallID string
	ToolName   string
	ToolInput  map[string]any
	ToolOutput ToolOutput
	ErrorText  string

	// File artifact announcements.
	File *FileArtifact

	// Final content fallback for producers that only yield a terminal blob.
	FinalContent string
}

// FileArtifact describes a file a tool wrote during the run. URL is always a
// same-origin path, never a backend host.
type FileArtifact struct {
	Filename  string
	MediaType string
	URL       string
	SizeBytes int64
}

// RunContext carries the per-request state a run needs. It is passed
// explicitly through the producer call graph so concurrent runs cannot
// cross-contaminate each other's artifact directories.
type RunContext struct {
	ConversationID string
	RunID          string
	ArtifactDir    string
}

// Producer executes one agent run, sending events on emit as they occur.
// Sends observe channel backpressure: a slow consumer blocks the producer
// rather than dropping or batching events. A nil return is run success; a
// non-nil error is run failure. Producers must respect ctx cancellation.
type Producer interface {
	Run(ctx context.Context, rc RunContext, history []model.Message, emit chan<- Event) error
}
