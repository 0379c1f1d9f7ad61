package model

import (
	"time"
)

// RunEventType classifies run-level event records stored alongside messages.
type RunEventType string

const (
	RunEventError  RunEventType = "error"
	RunEventCancel RunEventType = "cancel"
)

// RunEvent records a run that did not produce a committed assistant message.
// A failed run leaves an explicit error record, never an assistant message
// that looks like a normal completion.
type RunEvent struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	RunID          string       `json:"run_id"`
	Type           RunEventType `json:"type"`
	Reason         string       `json:"reason"`
	CreatedAt      time.Time    `json:"created_at"`
	Sequence       uint64       `json:"sequence,omitempty"`
}
