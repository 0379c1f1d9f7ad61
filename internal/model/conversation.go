// Package model defines data structures for the agent chat platform.
package model

import (
	"time"
)

// Conversation represents a conversation thread.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count,omitempty"`
	LastMessage  *Message  `json:"last_message,omitempty"`
	Deleted      bool      `json:"deleted,omitempty"`
}

// ConversationSummary is the list-view shape of a conversation.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ConversationDetail is the full history of a conversation in the same
// Message/Part shape the streaming client builds live, so a history load and
// a live stream produce structurally identical state.
type ConversationDetail struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []ConversationSummary `json:"conversations"`
	Total         int                   `json:"total"`
}

// ArtifactInfo describes one generated file owned by a conversation.
type ArtifactInfo struct {
	Filename  string `json:"filename"`
	Type      string `json:"type"`
	URL       string `json:"url"`
	SizeBytes int64  `json:"size_bytes"`
}

// ListArtifactsResponse is the response for listing a conversation's artifacts.
type ListArtifactsResponse struct {
	Artifacts []ArtifactInfo `json:"artifacts"`
	Total     int            `json:"total"`
}
