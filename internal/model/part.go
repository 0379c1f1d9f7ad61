package model

// PartType identifies the kind of a message part.
type PartType string

const (
	PartTypeText      PartType = "text"
	PartTypeReasoning PartType = "reasoning"
	PartTypeTool      PartType = "tool"
	PartTypeFile      PartType = "file"
)

// ToolState tracks the lifecycle of a tool-call part.
// Transitions are one-way: input-streaming -> input-available ->
// (output-available | output-error). A part never regresses.
type ToolState string

const (
	ToolStateInputStreaming  ToolState = "input-streaming"
	ToolStateInputAvailable  ToolState = "input-available"
	ToolStateOutputAvailable ToolState = "output-available"
	ToolStateOutputError     ToolState = "output-error"
)

// Part is one typed fragment of an assistant turn. The ID is stable for the
// life of the owning message; streaming deltas for the same logical unit
// always carry the same ID.
type Part struct {
	ID   string   `json:"id"`
	Type PartType `json:"type"`

	// Text content, accumulated from deltas (text and reasoning parts).
	Text string `json:"text,omitempty"`

	// Tool-call fields.
	ToolName  string         `json:"tool_name,omitempty"`
	State     ToolState      `json:"state,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	Output    any            `json:"output,omitempty"`
	ErrorText string         `json:"error_text,omitempty"`

	// File artifact fields.
	URL       string `json:"url,omitempty"`
	Filename  string `json:"filename,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// Terminal reports whether a tool part has reached a final state.
func (p *Part) Terminal() bool {
	return p.State == ToolStateOutputAvailable || p.State == ToolStateOutputError
}
