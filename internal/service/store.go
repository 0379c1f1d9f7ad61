// Package service provides business logic for the agent chat platform.
package service

import (
	"context"

	"github.com/playground-ai/agent-platform/internal/model"
)

// MessageStore is the transcript storage backend. The JetStream manager
// satisfies it in production; the in-memory store serves tests and
// deployments without a NATS_URL.
type MessageStore interface {
	// PublishMessage appends a committed message and returns its sequence.
	PublishMessage(ctx context.Context, msg *model.Message) (uint64, error)

	// PublishRunEvent appends a run-level error or cancel record.
	PublishRunEvent(ctx context.Context, event *model.RunEvent) (uint64, error)

	// GetMessages returns messages after a sequence, oldest first.
	GetMessages(ctx context.Context, conversationID string, afterSequence uint64, limit int) ([]model.Message, uint64, bool, error)

	// PurgeConversation removes everything stored for a conversation.
	PurgeConversation(ctx context.Context, conversationID string) error
}
