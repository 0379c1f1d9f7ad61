package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient is the Anthropic LLM client.
type AnthropicClient struct {
	client *anthropic.Client
	apiKey string
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(apiKey string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, errors.New("Anthropic API key is required")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &AnthropicClient{
		client: client,
		apiKey: apiKey,
	}, nil
}

// Name returns the provider name.
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// Models returns available models.
func (c *AnthropicClient) Models() []string {
	return []string{
		"claude-3-5-sonnet-20241022",
		"claude-3-5-haiku-20241022",
		"claude-3-opus-20240229",
	}
}

func (c *AnthropicClient) buildParams(req *CompletionRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, msg := range req.Messages {
		switch {
		case msg.Role == "tool":
			// Tool results travel back as user-role tool_result blocks.
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.F(anthropic.MessageParamRoleUser),
				Content: anthropic.F([]anthropic.ContentBlockParamUnion{
					anthropic.ToolResultBlockParam{
						Type:      anthropic.F(anthropic.ToolResultBlockParamTypeToolResult),
						ToolUseID: anthropic.F(msg.ToolCallID),
						Content: anthropic.F([]anthropic.ToolResultBlockParamContentUnion{
							anthropic.ToolResultBlockParamContent{
								Type: anthropic.F(anthropic.ToolResultBlockParamContentTypeText),
								Text: anthropic.F(msg.Content),
							},
						}),
					},
				}),
			})
		case len(msg.ToolCalls) > 0:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				blocks = append(blocks, anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(msg.Content),
				})
			}
			for _, call := range msg.ToolCalls {
				var input any
				if err := json.Unmarshal([]byte(call.Arguments), &input); err != nil {
					input = map[string]any{}
				}
				blocks = append(blocks, anthropic.ToolUseBlockParam{
					Type:  anthropic.F(anthropic.ToolUseBlockParamTypeToolUse),
					ID:    anthropic.F(call.ID),
					Name:  anthropic.F(call.Name),
					Input: anthropic.F(input),
				})
			}
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.F(anthropic.MessageParamRoleAssistant),
				Content: anthropic.F(blocks),
			})
		default:
			messages = append(messages, anthropic.MessageParam{
				Role: anthropic.F(anthropic.MessageParamRole(msg.Role)),
				Content: anthropic.F([]anthropic.ContentBlockParamUnion{
					anthropic.TextBlockParam{
						Type: anthropic.F(anthropic.TextBlockParamTypeText),
						Text: anthropic.F(msg.Content),
					},
				}),
			})
		}
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(model),
		MaxTokens: anthropic.F(int64(maxTokens)),
		Messages:  anthropic.F(messages),
	}

	if req.System != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{{
			Type: anthropic.F(anthropic.TextBlockParamTypeText),
			Text: anthropic.F(req.System),
		}})
	}

	if len(req.Tools) > 0 {
		tools := make([]anthropic.ToolParam, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = anthropic.ToolParam{
				Name:        anthropic.F(t.Name),
				Description: anthropic.F(t.Description),
				InputSchema: anthropic.F[interface{}](t.InputSchema),
			}
		}
		params.Tools = anthropic.F(tools)
	}

	return params
}

// Complete sends a completion request.
func (c *AnthropicClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	resp, err := c.client.Messages.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, err
	}

	var content string
	var toolCalls []ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.ContentBlockTypeText:
			content += block.Text
		case anthropic.ContentBlockTypeToolUse:
			toolCalls = append(toolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}

	return &CompletionResponse{
		Content:    content,
		ToolCalls:  toolCalls,
		Model:      resp.Model,
		TokensIn:   int(resp.Usage.InputTokens),
		TokensOut:  int(resp.Usage.OutputTokens),
		StopReason: string(resp.StopReason),
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// CompleteStream sends a streaming completion request. Text deltas are
// forwarded through callback the moment each arrives; tool-use blocks are
// accumulated from input_json_delta fragments and returned on the response.
func (c *AnthropicClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()

	stream := c.client.Messages.NewStreaming(ctx, c.buildParams(req))

	var content string
	var tokensIn, tokensOut int
	var stopReason string
	index := 0

	// Tool-use blocks stream as content_block_start + input_json_delta
	// fragments keyed by block index.
	type pendingTool struct {
		id   string
		name string
		args string
	}
	pending := make(map[int64]*pendingTool)
	var blockOrder []int64

	for stream.Next() {
		event := stream.Current()

		switch event.Type {
		case anthropic.MessageStreamEventTypeMessageStart:
			tokensIn = int(event.Message.Usage.InputTokens)
		case anthropic.MessageStreamEventTypeContentBlockStart:
			if block, ok := event.ContentBlock.(anthropic.ContentBlockStartEventContentBlock); ok &&
				block.Type == anthropic.ContentBlockStartEventContentBlockTypeToolUse {
				pending[event.Index] = &pendingTool{
					id:   block.ID,
					name: block.Name,
				}
				blockOrder = append(blockOrder, event.Index)
			}
		case anthropic.MessageStreamEventTypeContentBlockDelta:
			delta, ok := event.Delta.(anthropic.ContentBlockDeltaEventDelta)
			if !ok {
				continue
			}
			switch delta.Type {
			case "text_delta":
				token := delta.Text
				content += token
				if err := callback(token, index); err != nil {
					return nil, err
				}
				index++
			case "input_json_delta":
				if pt, ok := pending[event.Index]; ok {
					pt.args += delta.PartialJSON
				}
			}
		case anthropic.MessageStreamEventTypeMessageDelta:
			if delta, ok := event.Delta.(anthropic.MessageDeltaEventDelta); ok {
				stopReason = string(delta.StopReason)
			}
			tokensOut = int(event.Usage.OutputTokens)
		}
	}

	if err := stream.Err(); err != nil {
		return nil, err
	}

	var toolCalls []ToolCall
	for _, idx := range blockOrder {
		pt := pending[idx]
		args := pt.args
		if args == "" {
			args = "{}"
		}
		toolCalls = append(toolCalls, ToolCall{ID: pt.id, Name: pt.name, Arguments: args})
	}

	model := req.Model
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}

	return &CompletionResponse{
		Content:    content,
		ToolCalls:  toolCalls,
		Model:      model,
		TokensIn:   tokensIn,
		TokensOut:  tokensOut,
		StopReason: stopReason,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}
