package service

import (
	"context"
	"sync"

	"github.com/playground-ai/agent-platform/internal/model"
)

// MemoryStore is an in-process MessageStore. Used when no NATS_URL is
// configured and throughout the test suites.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      uint64
	messages map[string][]model.Message
	events   map[string][]model.RunEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]model.Message),
		events:   make(map[string][]model.RunEvent),
	}
}

// PublishMessage appends a committed message.
func (s *MemoryStore) PublishMessage(ctx context.Context, msg *model.Message) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	stored := *msg
	stored.Sequence = s.seq
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], stored)
	return s.seq, nil
}

// PublishRunEvent appends a run-level error or cancel record.
func (s *MemoryStore) PublishRunEvent(ctx context.Context, event *model.RunEvent) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	stored := *event
	stored.Sequence = s.seq
	s.events[event.ConversationID] = append(s.events[event.ConversationID], stored)
	return s.seq, nil
}

// GetMessages returns messages after a sequence, oldest first.
func (s *MemoryStore) GetMessages(ctx context.Context, conversationID string, afterSequence uint64, limit int) ([]model.Message, uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Message
	var lastSeq uint64
	all := s.messages[conversationID]
	for i := range all {
		if all[i].Sequence <= afterSequence {
			continue
		}
		if limit > 0 && len(out) == limit {
			return out, lastSeq, true, nil
		}
		out = append(out, all[i])
		lastSeq = all[i].Sequence
	}
	return out, lastSeq, false, nil
}

// RunEvents returns the run-event records for a conversation.
func (s *MemoryStore) RunEvents(conversationID string) []model.RunEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.events[conversationID]
	out := make([]model.RunEvent, len(events))
	copy(out, events)
	return out
}

// PurgeConversation removes everything stored for a conversation.
func (s *MemoryStore) PurgeConversation(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, conversationID)
	delete(s.events, conversationID)
	return nil
}
