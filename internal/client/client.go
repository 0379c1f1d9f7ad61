package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/playground-ai/agent-platform/internal/model"
	"github.com/playground-ai/agent-platform/internal/stream"
	"github.com/playground-ai/agent-platform/pkg/logger"
)

// ErrStreamTruncated is returned when the response body ends before a
// terminal frame arrives.
var ErrStreamTruncated = fmt.Errorf("stream ended without a terminal frame")

// Client talks to the chat API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logger.Logger
}

// New creates an API client. httpClient may be nil for the default; it must
// not have a timeout that would cut long-lived streams.
func New(baseURL string, httpClient *http.Client, log *logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		logger:  log,
	}
}

// Chat posts a chat turn and delivers each frame to onFrame as it arrives.
// It returns nil only after a terminal frame: an early EOF or connection
// drop is ErrStreamTruncated, which the caller surfaces as a transport
// error rather than a completed turn.
func (c *Client) Chat(ctx context.Context, req *model.ChatRequest, onFrame func(stream.Frame)) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}

	parser := stream.NewParser(c.logger)
	buf := make([]byte, 4096)
	terminal := false

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			for _, f := range parser.Feed(buf[:n]) {
				if f.Terminal() {
					terminal = true
				}
				onFrame(f)
			}
		}
		if readErr == io.EOF {
			if !terminal {
				return ErrStreamTruncated
			}
			return nil
		}
		if readErr != nil {
			if terminal {
				return nil
			}
			return fmt.Errorf("stream read failed: %w", readErr)
		}
	}
}

// ListConversations fetches conversation summaries.
func (c *Client) ListConversations(ctx context.Context) (*model.ListConversationsResponse, error) {
	var out model.ListConversationsResponse
	if err := c.getJSON(ctx, "/api/conversations", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation fetches a conversation's full history.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*model.ConversationDetail, error) {
	var out model.ConversationDetail
	if err := c.getJSON(ctx, "/api/conversations/"+conversationID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation deletes a conversation. Fails unless the server has
// deletion enabled.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/conversations/"+conversationID, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.decodeError(resp)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.decodeError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, body.Error)
	}
	return fmt.Errorf("api error (%d)", resp.StatusCode)
}

// Session ties a Client to a Reducer: one conversation view driven by live
// streams and history loads.
type Session struct {
	client  *Client
	reducer *Reducer
	mu      sync.Mutex

	// cancel aborts the in-flight Chat request, nil outside a turn.
	cancel context.CancelFunc
}

// NewSession creates a session on a fresh reducer.
func NewSession(client *Client) *Session {
	return &Session{
		client:  client,
		reducer: NewReducer(),
	}
}

// Send runs one chat turn, folding frames into the session state as they
// arrive. It blocks until the turn reaches a terminal state.
func (s *Session) Send(ctx context.Context, text string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	generation := s.reducer.Submit(text)
	conversationID := s.reducer.ConversationID
	s.cancel = cancel
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	req := &model.ChatRequest{Message: text}
	if conversationID != "" {
		req.ConversationID = &conversationID
	}

	err := s.client.Chat(ctx, req, func(f stream.Frame) {
		s.mu.Lock()
		s.reducer.Apply(generation, f)
		s.mu.Unlock()
	})
	if err != nil {
		s.mu.Lock()
		s.reducer.TransportError(generation, err.Error())
		s.mu.Unlock()
		return err
	}
	return nil
}

// Load replaces the session with a stored conversation.
func (s *Session) Load(ctx context.Context, conversationID string) error {
	detail, err := s.client.GetConversation(ctx, conversationID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.reducer.LoadHistory(detail.ID, detail.Messages)
	s.mu.Unlock()
	return nil
}

// Stop abandons the current turn and aborts the in-flight request, so the
// server sees the disconnect and cancels the run instead of streaming on.
// The reducer is stopped first; the transport error the abort produces
// lands on a stale generation and is discarded.
func (s *Session) Stop() {
	s.mu.Lock()
	s.reducer.Stop()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// State returns a snapshot of the session's conversation view.
func (s *Session) State() (string, []model.Message, RunStatus, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := make([]model.Message, len(s.reducer.Messages))
	copy(msgs, s.reducer.Messages)
	return s.reducer.ConversationID, msgs, s.reducer.Status, s.reducer.Error
}
