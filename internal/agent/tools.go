package agent

import (
	"context"
	"fmt"
)

// ToolResult is what a tool returns on success: text content for the model
// plus any files it wrote into the run's artifact directory.
type ToolResult struct {
	Content string
	Files   []FileArtifact
}

// Tool is one capability the model can invoke during a run.
type Tool interface {
	// Name is the identifier the model uses to call the tool.
	Name() string
	// Description tells the model what the tool does.
	Description() string
	// Schema is the JSON schema of the tool's input object.
	Schema() map[string]any
	// Execute runs the tool. Errors are surfaced to the model as a
	// tool-output-error part; they do not abort the run.
	Execute(ctx context.Context, rc RunContext, input map[string]any) (*ToolResult, error)
}

// Registry holds the tools available to a run, keyed by name.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates a registry with the given tools.
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	if _, exists := r.tools[t.Name()]; !exists {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	return t, nil
}

// All returns the tools in registration order.
func (r *Registry) All() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}
