package llm

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIClient is the OpenAI LLM client.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAI client.
func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	client := openai.NewClient(apiKey)

	return &OpenAIClient{
		client: client,
	}, nil
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string {
	return "openai"
}

// Models returns available models.
func (c *OpenAIClient) Models() []string {
	return []string{
		"gpt-4o",
		"gpt-4o-mini",
		"gpt-4-turbo",
	}
}

func (c *OpenAIClient) buildRequest(req *CompletionRequest, stream bool) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = "gpt-4o"
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, msg := range req.Messages {
		m := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		messages = append(messages, m)
	}

	out := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: float32(req.Temperature),
		Stream:      stream,
	}

	for _, t := range req.Tools {
		out.Tools = append(out.Tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}

	return out
}

// Complete sends a completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req, false))
	if err != nil {
		return nil, err
	}

	var content, stopReason string
	var toolCalls []ToolCall
	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		content = choice.Message.Content
		stopReason = string(choice.FinishReason)
		for _, call := range choice.Message.ToolCalls {
			toolCalls = append(toolCalls, ToolCall{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			})
		}
	}

	return &CompletionResponse{
		Content:    content,
		ToolCalls:  toolCalls,
		Model:      resp.Model,
		TokensIn:   resp.Usage.PromptTokens,
		TokensOut:  resp.Usage.CompletionTokens,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// CompleteStream sends a streaming completion request. Tool call fragments
// arrive interleaved with content deltas and are reassembled by index.
func (c *OpenAIClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(req, true))
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	var content string
	var stopReason string
	index := 0

	type pendingTool struct {
		id   string
		name string
		args string
	}
	var pending []*pendingTool

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]

		if delta := choice.Delta.Content; delta != "" {
			content += delta
			if err := callback(delta, index); err != nil {
				return nil, err
			}
			index++
		}

		for _, call := range choice.Delta.ToolCalls {
			idx := len(pending) - 1
			if call.Index != nil {
				idx = *call.Index
			}
			if idx < 0 {
				idx = 0
			}
			for len(pending) <= idx {
				pending = append(pending, &pendingTool{})
			}
			pt := pending[idx]
			if call.ID != "" {
				pt.id = call.ID
			}
			if call.Function.Name != "" {
				pt.name = call.Function.Name
			}
			pt.args += call.Function.Arguments
		}

		if choice.FinishReason != "" {
			stopReason = string(choice.FinishReason)
		}
	}

	var toolCalls []ToolCall
	for _, pt := range pending {
		args := pt.args
		if args == "" {
			args = "{}"
		}
		toolCalls = append(toolCalls, ToolCall{ID: pt.id, Name: pt.name, Arguments: args})
	}

	model := req.Model
	if model == "" {
		model = "gpt-4o"
	}

	// OpenAI streaming doesn't report token counts; estimate from content.
	tokensOut := len(content) / 4

	return &CompletionResponse{
		Content:    content,
		ToolCalls:  toolCalls,
		Model:      model,
		TokensIn:   0,
		TokensOut:  tokensOut,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
