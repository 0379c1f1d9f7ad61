package stream

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playground-ai/agent-platform/internal/agent"
	"github.com/playground-ai/agent-platform/pkg/logger"
)

func newTestEncoder(t *testing.T) (*Encoder, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)
	return NewEncoder(w, logger.NewNop()), rec
}

func decodeFrames(t *testing.T, rec *httptest.ResponseRecorder) []Frame {
	t.Helper()
	frames, rest, malformed := Split(nil, rec.Body.Bytes())
	require.Empty(t, rest)
	require.Zero(t, malformed)
	return frames
}

func frameTypes(frames []Frame) []FrameType {
	types := make([]FrameType, len(frames))
	for i, f := range frames {
		types[i] = f.Type
	}
	return types
}

func TestEncoderSuccessfulRunFrameOrder(t *testing.T) {
	enc, rec := newTestEncoder(t)

	require.NoError(t, enc.Start("msg-1", "conv-1"))
	require.NoError(t, enc.Encode(agent.Event{Type: agent.EventRunStarted}))
	require.NoError(t, enc.Encode(agent.Event{Type: agent.EventReasoningDelta, Delta: "thinking"}))
	require.NoError(t, enc.Encode(agent.Event{Type: agent.EventTextDelta, Delta: "hel"}))
	require.NoError(t, enc.Encode(agent.Event{Type: agent.EventTextDelta, Delta: "lo"}))
	require.NoError(t, enc.FinishSuccess("conv-1", "msg-1"))

	frames := decodeFrames(t, rec)
	assert.Equal(t, []FrameType{
		FrameStart, FrameStartStep,
		FrameReasoningStart, FrameReasoningDelta,
		FrameTextStart, FrameTextDelta, FrameTextDelta,
		FrameReasoningEnd, FrameTextEnd,
		FrameFinishStep, FrameFinish,
	}, frameTypes(frames))

	start := frames[0]
	assert.Equal(t, "msg-1", start.MessageID)
	require.NotNil(t, start.MessageMetadata)
	assert.Equal(t, "conv-1", start.MessageMetadata.ConversationID)

	finish := frames[len(frames)-1]
	assert.Equal(t, "stop", finish.FinishReason)
	assert.Equal(t, "conv-1", finish.ConversationID)
	assert.Equal(t, "msg-1", finish.MessageID)
}

func TestEncoderStartWritesPadding(t *testing.T) {
	enc, rec := newTestEncoder(t)
	require.NoError(t, enc.Start("m", "c"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, ": "))
	assert.GreaterOrEqual(t, strings.Index(body, "\n\n"), 2048)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}

func TestEncoderToolLifecycle(t *testing.T) {
	enc, rec := newTestEncoder(t)

	require.NoError(t, enc.Start("m", "c"))
	require.NoError(t, enc.Encode(agent.Event{
		Type:       agent.EventToolStarted,
		ToolCallID: "call-1",
		ToolName:   "generate_document",
		ToolInput:  map[string]any{"title": "Notes"},
	}))
	require.NoError(t, enc.Encode(agent.Event{
		Type:       agent.EventToolCompleted,
		ToolCallID: "call-1",
		ToolOutput: agent.DecodeToolOutput(`{"filename":"notes.md"}`),
	}))
	require.NoError(t, enc.FinishSuccess("c", "m"))

	frames := decodeFrames(t, rec)
	assert.Equal(t, []FrameType{
		FrameStart, FrameStartStep,
		FrameToolInputStart, FrameToolInputAvailable, FrameToolOutputAvailable,
		FrameFinishStep, FrameFinish,
	}, frameTypes(frames))

	avail := frames[3]
	assert.Equal(t, "call-1", avail.ToolCallID)
	assert.Equal(t, "generate_document", avail.ToolName)
	assert.Equal(t, "Notes", avail.Input["title"])

	out := frames[4]
	assert.Equal(t, "call-1", out.ToolCallID)
	outMap, ok := out.Output.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "notes.md", outMap["filename"])
}

func TestEncoderOpaqueToolOutput(t *testing.T) {
	enc, rec := newTestEncoder(t)

	require.NoError(t, enc.Start("m", "c"))
	require.NoError(t, enc.Encode(agent.Event{
		Type:       agent.EventToolCompleted,
		ToolCallID: "call-1",
		ToolOutput: agent.DecodeToolOutput("{'python': 'dict'}"),
	}))

	frames := decodeFrames(t, rec)
	out := frames[len(frames)-1]
	assert.Equal(t, "{'python': 'dict'}", out.Output)
}

func TestEncoderFinalBlobFallback(t *testing.T) {
	enc, rec := newTestEncoder(t)

	require.NoError(t, enc.Start("m", "c"))
	require.NoError(t, enc.Encode(agent.Event{Type: agent.EventRunCompleted, FinalContent: "the whole answer"}))
	require.NoError(t, enc.FinishSuccess("c", "m"))

	frames := decodeFrames(t, rec)
	assert.Equal(t, []FrameType{
		FrameStart, FrameStartStep,
		FrameTextStart, FrameTextDelta, FrameTextEnd,
		FrameFinishStep, FrameFinish,
	}, frameTypes(frames))
	assert.Equal(t, "the whole answer", frames[3].Delta)
}

func TestEncoderFinalBlobIgnoredAfterDeltas(t *testing.T) {
	enc, rec := newTestEncoder(t)

	require.NoError(t, enc.Start("m", "c"))
	require.NoError(t, enc.Encode(agent.Event{Type: agent.EventTextDelta, Delta: "streamed"}))
	require.NoError(t, enc.Encode(agent.Event{Type: agent.EventRunCompleted, FinalContent: "streamed"}))
	require.NoError(t, enc.FinishSuccess("c", "m"))

	var deltas int
	for _, f := range decodeFrames(t, rec) {
		if f.Type == FrameTextDelta {
			deltas++
		}
	}
	assert.Equal(t, 1, deltas)
}

func TestEncoderErrorRun(t *testing.T) {
	enc, rec := newTestEncoder(t)

	require.NoError(t, enc.Start("m", "c"))
	require.NoError(t, enc.Encode(agent.Event{Type: agent.EventTextDelta, Delta: "partial"}))
	require.NoError(t, enc.FinishError("model unavailable"))

	frames := decodeFrames(t, rec)
	assert.Equal(t, []FrameType{
		FrameStart, FrameStartStep,
		FrameTextStart, FrameTextDelta, FrameTextEnd,
		FrameError, FrameFinish,
	}, frameTypes(frames))

	assert.Equal(t, "model unavailable", frames[5].ErrorText)
	assert.Equal(t, "error", frames[6].FinishReason)
}

// A run gets exactly one terminal frame no matter how it ends.
func TestEncoderTerminalExactlyOnce(t *testing.T) {
	enc, rec := newTestEncoder(t)

	require.NoError(t, enc.Start("m", "c"))
	require.NoError(t, enc.FinishSuccess("c", "m"))
	require.NoError(t, enc.FinishSuccess("c", "m"))
	require.NoError(t, enc.FinishError("too late"))

	var terminals int
	for _, f := range decodeFrames(t, rec) {
		if f.Terminal() {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals)
	assert.True(t, enc.Finished())

	err := enc.Encode(agent.Event{Type: agent.EventTextDelta, Delta: "x"})
	assert.Error(t, err)
}

func TestEncoderFileFrame(t *testing.T) {
	enc, rec := newTestEncoder(t)

	require.NoError(t, enc.Start("m", "c"))
	require.NoError(t, enc.Encode(agent.Event{
		Type: agent.EventFileCreated,
		File: &agent.FileArtifact{
			Filename:  "report-ab12cd34.md",
			MediaType: "text/markdown",
			URL:       "/api/artifacts/c/report-ab12cd34.md",
		},
	}))

	frames := decodeFrames(t, rec)
	file := frames[len(frames)-1]
	assert.Equal(t, FrameFile, file.Type)
	assert.Equal(t, "/api/artifacts/c/report-ab12cd34.md", file.URL)
	assert.Equal(t, "text/markdown", file.MediaType)
}
