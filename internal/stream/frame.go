// Package stream implements the chat streaming wire protocol: typed frames
// carried as SSE records, the encoder that turns agent run events into an
// ordered frame sequence, and the parser that reassembles frames from an
// arbitrarily chunked byte stream.
package stream

import (
	"encoding/json"
	"fmt"
)

// FrameType identifies the kind of a protocol frame.
type FrameType string

const (
	FrameStart               FrameType = "start"
	FrameStartStep           FrameType = "start-step"
	FrameTextStart           FrameType = "text-start"
	FrameTextDelta           FrameType = "text-delta"
	FrameTextEnd             FrameType = "text-end"
	FrameReasoningStart      FrameType = "reasoning-start"
	FrameReasoningDelta      FrameType = "reasoning-delta"
	FrameReasoningEnd        FrameType = "reasoning-end"
	FrameToolInputStart      FrameType = "tool-input-start"
	FrameToolInputDelta      FrameType = "tool-input-delta"
	FrameToolInputAvailable  FrameType = "tool-input-available"
	FrameToolOutputAvailable FrameType = "tool-output-available"
	FrameToolOutputError     FrameType = "tool-output-error"
	FrameFile                FrameType = "file"
	FrameError               FrameType = "error"
	FrameFinishStep          FrameType = "finish-step"
	FrameFinish              FrameType = "finish"
)

// MessageMetadata rides on the start frame so the client can pick up the
// server-assigned conversation id before any content arrives.
type MessageMetadata struct {
	ConversationID string `json:"conversationId,omitempty"`
}

// Frame is one atomic unit of the streaming protocol. Fields are populated
// per type; ordering on the wire is a correctness invariant, so frames carry
// no explicit sequence number.
type Frame struct {
	Type FrameType `json:"type"`

	// Text / reasoning part fields.
	ID    string `json:"id,omitempty"`
	Delta string `json:"delta,omitempty"`

	// Tool part fields. ToolCallID is the part id for all tool-* frames and
	// stays constant across a tool invocation's whole lifecycle.
	ToolCallID     string         `json:"toolCallId,omitempty"`
	ToolName       string         `json:"toolName,omitempty"`
	Input          map[string]any `json:"input,omitempty"`
	InputTextDelta string         `json:"inputTextDelta,omitempty"`
	Output         any            `json:"output,omitempty"`

	// File part fields.
	URL       string `json:"url,omitempty"`
	Filename  string `json:"filename,omitempty"`
	MediaType string `json:"mediaType,omitempty"`

	// Error frames and tool-output-error.
	ErrorText string `json:"errorText,omitempty"`

	// Start / finish fields.
	MessageID       string           `json:"messageId,omitempty"`
	MessageMetadata *MessageMetadata `json:"messageMetadata,omitempty"`
	FinishReason    string           `json:"finishReason,omitempty"`
	ConversationID  string           `json:"conversationId,omitempty"`
}

// PartID returns the part id a frame routes to, or "" for frames that act at
// the message/conversation level.
func (f *Frame) PartID() string {
	if f.ToolCallID != "" {
		return f.ToolCallID
	}
	return f.ID
}

// Terminal reports whether this is the run-ending frame.
func (f *Frame) Terminal() bool {
	return f.Type == FrameFinish
}

// MarshalSSE encodes the frame as a single SSE record: "data: <json>\n\n".
func (f *Frame) MarshalSSE() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame: %w", err)
	}
	buf := make([]byte, 0, len(data)+8)
	buf = append(buf, "data: "...)
	buf = append(buf, data...)
	buf = append(buf, '\n', '\n')
	return buf, nil
}
