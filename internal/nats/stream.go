package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/playground-ai/agent-platform/internal/model"
)

const (
	// StreamName is the name of the transcripts stream.
	StreamName = "TRANSCRIPTS"

	// SubjectPrefix is the prefix for all conversation subjects.
	SubjectPrefix = "conv"
)

// StreamManager is the JetStream-backed transcript store: committed messages
// (with their parts) and run-event records, one subject tree per
// conversation.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the transcripts stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      365 * 24 * time.Hour,
		MaxBytes:    100 * 1024 * 1024 * 1024,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Conversation transcripts and run events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// MessageSubject returns the subject for a message.
func MessageSubject(conversationID string, role model.Role) string {
	return fmt.Sprintf("%s.%s.msg.%s", SubjectPrefix, conversationID, role)
}

// RunEventSubject returns the subject for a run event record.
func RunEventSubject(conversationID string, eventType model.RunEventType) string {
	return fmt.Sprintf("%s.%s.event.%s", SubjectPrefix, conversationID, eventType)
}

// ConversationFilter returns the filter subject covering everything stored
// for one conversation.
func ConversationFilter(conversationID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, conversationID)
}

// PublishMessage publishes a committed message to JetStream.
func (m *StreamManager) PublishMessage(ctx context.Context, msg *model.Message) (uint64, error) {
	subject := MessageSubject(msg.ConversationID, msg.Role)

	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal message: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish message: %w", err)
	}

	return ack.Sequence, nil
}

// PublishRunEvent records a run that ended without a committed assistant
// message (error or cancel).
func (m *StreamManager) PublishRunEvent(ctx context.Context, event *model.RunEvent) (uint64, error) {
	subject := RunEventSubject(event.ConversationID, event.Type)

	data, err := json.Marshal(event)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal run event: %w", err)
	}

	ack, err := m.client.JetStream().Publish(ctx, subject, data)
	if err != nil {
		return 0, fmt.Errorf("failed to publish run event: %w", err)
	}

	return ack.Sequence, nil
}

// GetMessages retrieves messages from a conversation starting after a sequence.
func (m *StreamManager) GetMessages(ctx context.Context, conversationID string, afterSequence uint64, limit int) ([]model.Message, uint64, bool, error) {
	js := m.client.JetStream()

	filterSubject := fmt.Sprintf("%s.%s.msg.>", SubjectPrefix, conversationID)

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: filterSubject,
		AckPolicy:     jetstream.AckNonePolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}

	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := js.CreateConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to create consumer: %w", err)
	}

	var messages []model.Message
	var lastSequence uint64

	fetchCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to fetch messages: %w", err)
	}

	for msg := range batch.Messages() {
		select {
		case <-fetchCtx.Done():
			break
		default:
		}

		var message model.Message
		if err := json.Unmarshal(msg.Data(), &message); err != nil {
			continue
		}

		meta, err := msg.Metadata()
		if err == nil {
			message.Sequence = meta.Sequence.Stream
			lastSequence = meta.Sequence.Stream
		}

		messages = append(messages, message)
	}

	if batch.Error() != nil && batch.Error() != context.DeadlineExceeded {
		return nil, 0, false, fmt.Errorf("batch error: %w", batch.Error())
	}

	hasMore := len(messages) == limit

	return messages, lastSequence, hasMore, nil
}

// PurgeConversation removes everything stored for a conversation. Only
// reachable when deletion is explicitly enabled.
func (m *StreamManager) PurgeConversation(ctx context.Context, conversationID string) error {
	s, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err := s.Purge(ctx, jetstream.WithPurgeSubject(ConversationFilter(conversationID))); err != nil {
		return fmt.Errorf("failed to purge conversation: %w", err)
	}
	return nil
}
