package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/playground-ai/agent-platform/internal/model"
	"github.com/playground-ai/agent-platform/pkg/logger"
	"github.com/playground-ai/agent-platform/pkg/metrics"
)

// ErrConversationNotFound is returned for unknown or deleted conversations.
var ErrConversationNotFound = fmt.Errorf("conversation not found")

// ErrRunInProgress is returned when a conversation already has an active run.
var ErrRunInProgress = fmt.Errorf("a run is already in progress for this conversation")

const titleMaxLen = 60

// ConversationService handles conversation operations and enforces the
// single-active-run rule per conversation.
type ConversationService struct {
	store  MessageStore
	logger *logger.Logger

	// In-memory registry for conversation metadata (transcripts live in the
	// message store).
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	activeRuns    map[string]string
}

// NewConversationService creates a new conversation service.
func NewConversationService(store MessageStore, log *logger.Logger) *ConversationService {
	return &ConversationService{
		store:         store,
		logger:        log,
		conversations: make(map[string]*model.Conversation),
		activeRuns:    make(map[string]string),
	}
}

// GetOrCreate resolves an optional conversation id from a chat request. A nil
// id creates a new conversation titled after the first user message; the
// created flag tells the caller whether the id must be surfaced back to the
// client on the stream.
func (s *ConversationService) GetOrCreate(ctx context.Context, conversationID *string, firstMessage string) (*model.Conversation, bool, error) {
	if conversationID != nil && *conversationID != "" {
		conv, err := s.Get(ctx, *conversationID)
		if err != nil {
			return nil, false, err
		}
		return conv, false, nil
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Title:     deriveTitle(firstMessage),
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.mu.Unlock()

	metrics.ConversationsTotal.Inc()
	s.logger.Info("conversation created", "conversation_id", conv.ID, "title", conv.Title)

	return conv, true, nil
}

// Get retrieves a conversation by ID.
func (s *ConversationService) Get(ctx context.Context, conversationID string) (*model.Conversation, error) {
	s.mu.RLock()
	conv, exists := s.conversations[conversationID]
	s.mu.RUnlock()

	if !exists || conv.Deleted {
		return nil, ErrConversationNotFound
	}

	return conv, nil
}

// List retrieves conversation summaries, most recently updated first.
func (s *ConversationService) List(ctx context.Context, limit, offset int) (*model.ListConversationsResponse, error) {
	s.mu.RLock()
	var convs []*model.Conversation
	for _, conv := range s.conversations {
		if !conv.Deleted {
			convs = append(convs, conv)
		}
	}
	s.mu.RUnlock()

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})

	total := len(convs)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	convs = convs[offset:end]

	summaries := make([]model.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		summaries = append(summaries, model.ConversationSummary{
			ID:           conv.ID,
			Title:        conv.Title,
			Preview:      conv.Preview,
			MessageCount: conv.MessageCount,
			CreatedAt:    conv.CreatedAt,
			UpdatedAt:    conv.UpdatedAt,
		})
	}

	return &model.ListConversationsResponse{
		Conversations: summaries,
		Total:         total,
	}, nil
}

// GetDetail retrieves a conversation with its full committed history.
func (s *ConversationService) GetDetail(ctx context.Context, conversationID string) (*model.ConversationDetail, error) {
	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	messages, _, _, err := s.store.GetMessages(ctx, conversationID, 0, 1000)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Sequence < messages[j].Sequence
	})

	return &model.ConversationDetail{
		ID:        conv.ID,
		Title:     conv.Title,
		Messages:  messages,
		CreatedAt: conv.CreatedAt,
		UpdatedAt: conv.UpdatedAt,
	}, nil
}

// Delete removes a conversation and purges its stored transcript. Callers
// must check the deletion flag before reaching here.
func (s *ConversationService) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	conv, exists := s.conversations[conversationID]
	if !exists || conv.Deleted {
		s.mu.Unlock()
		return ErrConversationNotFound
	}
	if _, running := s.activeRuns[conversationID]; running {
		s.mu.Unlock()
		return ErrRunInProgress
	}
	conv.Deleted = true
	s.mu.Unlock()

	if err := s.store.PurgeConversation(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to purge conversation: %w", err)
	}

	s.logger.Info("conversation deleted", "conversation_id", conversationID)
	return nil
}

// UpdateLastMessage updates conversation metadata after a message is committed.
func (s *ConversationService) UpdateLastMessage(ctx context.Context, conversationID string, msg *model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, exists := s.conversations[conversationID]
	if !exists {
		return
	}

	conv.UpdatedAt = time.Now()
	conv.MessageCount++
	conv.LastMessage = msg
	if msg.Role == model.RoleUser {
		conv.Preview = truncate(msg.Content, titleMaxLen)
	}
}

// TryBeginRun claims the conversation for a run. Returns ErrRunInProgress if
// another run is active.
func (s *ConversationService) TryBeginRun(conversationID, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, running := s.activeRuns[conversationID]; running {
		s.logger.Warn("run rejected, conversation busy",
			"conversation_id", conversationID, "active_run_id", existing)
		return ErrRunInProgress
	}
	s.activeRuns[conversationID] = runID
	return nil
}

// EndRun releases a conversation's run claim. Only the claiming run may
// release it.
func (s *ConversationService) EndRun(conversationID, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeRuns[conversationID] == runID {
		delete(s.activeRuns, conversationID)
	}
}

func deriveTitle(message string) string {
	title := strings.TrimSpace(message)
	if idx := strings.IndexAny(title, "\r\n"); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}
	if title == "" {
		return "New conversation"
	}
	return truncate(title, titleMaxLen)
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}
