package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/playground-ai/agent-platform/internal/llm"
	"github.com/playground-ai/agent-platform/internal/model"
	"github.com/playground-ai/agent-platform/pkg/logger"
	"github.com/playground-ai/agent-platform/pkg/metrics"
)

const systemPrompt = `You are a helpful assistant. When the user asks for a document,
report, or other written deliverable, use the generate_document tool to produce it as a
downloadable file, then summarize what you created.`

// maxSteps bounds the tool loop so a confused model cannot spin forever.
const maxSteps = 8

// Runner is the LLM-backed run producer: it streams model output, executes
// tools the model requests, feeds results back, and loops until the model
// finishes its turn. A failing tool becomes a tool_failed event and the run
// continues; only model/transport failures fail the run.
type Runner struct {
	llm    llm.Client
	tools  *Registry
	model  string
	logger *logger.Logger
}

// NewRunner creates a runner over the given LLM client and tool registry.
func NewRunner(client llm.Client, tools *Registry, model string, log *logger.Logger) *Runner {
	return &Runner{
		llm:    client,
		tools:  tools,
		model:  model,
		logger: log,
	}
}

// Run implements Producer.
func (r *Runner) Run(ctx context.Context, rc RunContext, history []model.Message, emit chan<- Event) error {
	send := func(ev Event) error {
		select {
		case emit <- ev:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err := send(Event{Type: EventRunStarted}); err != nil {
		return err
	}

	messages := make([]llm.ChatMessage, 0, len(history))
	for _, msg := range history {
		messages = append(messages, llm.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	var defs []llm.ToolDefinition
	for _, t := range r.tools.All() {
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.Schema(),
		})
	}

	sawDelta := false
	var finalContent string

	for step := 0; step < maxSteps; step++ {
		resp, err := r.llm.CompleteStream(ctx, &llm.CompletionRequest{
			Model:    r.model,
			System:   systemPrompt,
			Messages: messages,
			Tools:    defs,
		}, func(token string, _ int) error {
			sawDelta = true
			return send(Event{Type: EventTextDelta, Delta: token})
		})
		if err != nil {
			return fmt.Errorf("model stream failed: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			if !sawDelta {
				finalContent = resp.Content
			}
			break
		}

		messages = append(messages, llm.ChatMessage{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			result, err := r.execute(ctx, rc, call, send)
			if err != nil {
				// Tool failures are part-level: surface them to the model
				// and keep the run going.
				r.logger.Warn("tool execution failed",
					"tool", call.Name, "run_id", rc.RunID, "error", err)
				metrics.ToolCallsTotal.WithLabelValues(call.Name, "error").Inc()
				if sendErr := send(Event{
					Type:       EventToolFailed,
					ToolCallID: call.ID,
					ToolName:   call.Name,
					ErrorText:  err.Error(),
				}); sendErr != nil {
					return sendErr
				}
				messages = append(messages, llm.ChatMessage{
					Role:       "tool",
					ToolCallID: call.ID,
					Content:    fmt.Sprintf("tool error: %v", err),
				})
				continue
			}
			metrics.ToolCallsTotal.WithLabelValues(call.Name, "success").Inc()
			messages = append(messages, llm.ChatMessage{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    result.Content,
			})
		}
	}

	return send(Event{Type: EventRunCompleted, FinalContent: finalContent})
}

// execute runs one tool call, emitting its lifecycle events.
func (r *Runner) execute(ctx context.Context, rc RunContext, call llm.ToolCall, send func(Event) error) (*ToolResult, error) {
	var input map[string]any
	if err := json.Unmarshal([]byte(call.Arguments), &input); err != nil {
		input = map[string]any{}
	}

	if err := send(Event{
		Type:       EventToolStarted,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		ToolInput:  input,
	}); err != nil {
		return nil, err
	}

	tool, err := r.tools.Get(call.Name)
	if err != nil {
		return nil, err
	}

	result, err := tool.Execute(ctx, rc, input)
	if err != nil {
		return nil, err
	}

	if err := send(Event{
		Type:       EventToolCompleted,
		ToolCallID: call.ID,
		ToolName:   call.Name,
		ToolOutput: DecodeToolOutput(result.Content),
	}); err != nil {
		return nil, err
	}

	for i := range result.Files {
		f := result.Files[i]
		metrics.ArtifactsWritten.Inc()
		if err := send(Event{Type: EventFileCreated, File: &f}); err != nil {
			return nil, err
		}
	}

	return result, nil
}
