package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeToolOutputJSON(t *testing.T) {
	out := DecodeToolOutput(`{"filename":"doc.md","size":42}`)

	assert.True(t, out.Structured)
	m, ok := out.Value.(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "doc.md", m["filename"])
	assert.Equal(t, float64(42), m["size"])
}

func TestDecodeToolOutputArrayAndString(t *testing.T) {
	out := DecodeToolOutput(`["a.md","b.md"]`)
	assert.True(t, out.Structured)
	assert.Len(t, out.Value, 2)

	out = DecodeToolOutput(`"quoted"`)
	assert.True(t, out.Structured)
	assert.Equal(t, "quoted", out.Value)
}

// Tool results that only look structured degrade to an opaque string
// instead of failing the run.
func TestDecodeToolOutputFallback(t *testing.T) {
	for _, raw := range []string{
		"{'python': 'dict'}",
		"{broken json",
		"[1, 2,",
		"plain text result",
		"",
	} {
		out := DecodeToolOutput(raw)
		assert.False(t, out.Structured, "raw %q", raw)
		assert.Equal(t, raw, out.Payload(), "raw %q", raw)
	}
}

func TestDecodeToolOutputWhitespace(t *testing.T) {
	out := DecodeToolOutput("  \n {\"ok\":true} ")
	assert.True(t, out.Structured)
}
