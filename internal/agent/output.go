package agent

import (
	"encoding/json"
	"strings"
)

// ToolOutput is the tagged union for a tool result. Tool results arrive as
// text that may or may not be valid JSON (some tools print Python-ish dict
// literals that only look structured). A failed decode degrades to the raw
// string; it never aborts the run.
type ToolOutput struct {
	Value      any
	Raw        string
	Structured bool
}

// DecodeToolOutput best-effort decodes raw as JSON, falling back to an
// opaque string payload.
func DecodeToolOutput(raw string) ToolOutput {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '{', '[', '"':
			var v any
			if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
				return ToolOutput{Value: v, Raw: raw, Structured: true}
			}
		}
	}
	return ToolOutput{Value: raw, Raw: raw}
}

// Payload returns the value to put on the wire: the decoded structure when
// available, otherwise the raw string.
func (o ToolOutput) Payload() any {
	return o.Value
}
