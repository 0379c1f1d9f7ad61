package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// FinishReason states how an assistant turn ended. An assistant message is
// only a completed turn when the reason is "stop"; a message finished with
// "error" must never be presented as a normal completion.
type FinishReason string

const (
	FinishReasonStop  FinishReason = "stop"
	FinishReasonError FinishReason = "error"
)

// Message represents one conversation turn.
type Message struct {
	// Identity
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`

	// Content
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Parts   []Part `json:"parts,omitempty"`

	// Terminal metadata (assistant messages only).
	FinishReason FinishReason `json:"finish_reason,omitempty"`

	// Run metadata (nullable for non-assistant messages).
	Model     *string `json:"model,omitempty"`
	LatencyMs *int64  `json:"latency_ms,omitempty"`

	// Timestamps
	CreatedAt     time.Time  `json:"created_at"`
	StreamStarted *time.Time `json:"stream_started,omitempty"`
	StreamEnded   *time.Time `json:"stream_ended,omitempty"`

	// JetStream metadata (populated on read).
	Sequence uint64 `json:"sequence,omitempty"`
}

// ChatRequest is the request body for POST /api/chat. A null conversationId
// creates a new conversation whose id is surfaced on the stream's start and
// finish frames.
type ChatRequest struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversationId"`
}

// ListMessagesResponse is the response for listing messages.
type ListMessagesResponse struct {
	Messages     []Message `json:"messages"`
	HasMore      bool      `json:"has_more"`
	LastSequence uint64    `json:"last_sequence"`
}
