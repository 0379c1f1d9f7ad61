package stream

import (
	"fmt"

	"github.com/playground-ai/agent-platform/internal/agent"
	"github.com/playground-ai/agent-platform/pkg/logger"
)

// Encoder converts a run's domain events into the outbound frame sequence.
// Every event is written and flushed the moment it is observed; the encoder
// never waits to coalesce frames. It owns the synthesis of implicit frames
// (text-start on first delta, span ends, step boundaries) and guarantees
// exactly one terminal frame per run.
type Encoder struct {
	w      *Writer
	logger *logger.Logger

	textID      string
	reasoningID string

	textOpen      bool
	reasoningOpen bool
	finished      bool
}

// NewEncoder creates an encoder writing to w.
func NewEncoder(w *Writer, log *logger.Logger) *Encoder {
	return &Encoder{
		w:           w,
		logger:      log,
		textID:      "text-1",
		reasoningID: "reasoning-1",
	}
}

// Start opens the stream: anti-buffering padding, the start frame carrying
// the server-assigned ids, and the first step boundary. Must be called
// before any Encode.
func (e *Encoder) Start(messageID, conversationID string) error {
	if err := e.w.WritePadding(); err != nil {
		return err
	}
	if err := e.w.WriteFrame(Frame{
		Type:            FrameStart,
		MessageID:       messageID,
		MessageMetadata: &MessageMetadata{ConversationID: conversationID},
	}); err != nil {
		return err
	}
	return e.w.WriteFrame(Frame{Type: FrameStartStep})
}

// Encode maps one domain event to its frame(s) and flushes them.
func (e *Encoder) Encode(ev agent.Event) error {
	if e.finished {
		return fmt.Errorf("encode after terminal frame: %s", ev.Type)
	}

	switch ev.Type {
	case agent.EventRunStarted:
		return nil

	case agent.EventTextDelta:
		if ev.Delta == "" {
			return nil
		}
		if !e.textOpen {
			e.textOpen = true
			if err := e.w.WriteFrame(Frame{Type: FrameTextStart, ID: e.textID}); err != nil {
				return err
			}
		}
		return e.w.WriteFrame(Frame{Type: FrameTextDelta, ID: e.textID, Delta: ev.Delta})

	case agent.EventReasoningDelta:
		if ev.Delta == "" {
			return nil
		}
		if !e.reasoningOpen {
			e.reasoningOpen = true
			if err := e.w.WriteFrame(Frame{Type: FrameReasoningStart, ID: e.reasoningID}); err != nil {
				return err
			}
		}
		return e.w.WriteFrame(Frame{Type: FrameReasoningDelta, ID: e.reasoningID, Delta: ev.Delta})

	case agent.EventToolStarted:
		if err := e.w.WriteFrame(Frame{
			Type:       FrameToolInputStart,
			ToolCallID: ev.ToolCallID,
			ToolName:   ev.ToolName,
		}); err != nil {
			return err
		}
		if ev.ToolInput == nil {
			return nil
		}
		return e.w.WriteFrame(Frame{
			Type:       FrameToolInputAvailable,
			ToolCallID: ev.ToolCallID,
			ToolName:   ev.ToolName,
			Input:      ev.ToolInput,
		})

	case agent.EventToolInputDelta:
		return e.w.WriteFrame(Frame{
			Type:           FrameToolInputDelta,
			ToolCallID:     ev.ToolCallID,
			InputTextDelta: ev.Delta,
		})

	case agent.EventToolCompleted:
		return e.w.WriteFrame(Frame{
			Type:       FrameToolOutputAvailable,
			ToolCallID: ev.ToolCallID,
			Output:     ev.ToolOutput.Payload(),
		})

	case agent.EventToolFailed:
		return e.w.WriteFrame(Frame{
			Type:       FrameToolOutputError,
			ToolCallID: ev.ToolCallID,
			ErrorText:  ev.ErrorText,
		})

	case agent.EventFileCreated:
		if ev.File == nil {
			return nil
		}
		return e.w.WriteFrame(Frame{
			Type:      FrameFile,
			URL:       ev.File.URL,
			Filename:  ev.File.Filename,
			MediaType: ev.File.MediaType,
		})

	case agent.EventRunCompleted:
		// Producers that never streamed deltas but produced a terminal blob
		// still get a proper text span.
		if ev.FinalContent != "" && !e.textOpen {
			e.textOpen = true
			if err := e.w.WriteFrame(Frame{Type: FrameTextStart, ID: e.textID}); err != nil {
				return err
			}
			return e.w.WriteFrame(Frame{Type: FrameTextDelta, ID: e.textID, Delta: ev.FinalContent})
		}
		return nil

	default:
		e.logger.Warn("unhandled run event", "event_type", string(ev.Type))
		return nil
	}
}

// closeSpans emits end frames for any open text/reasoning parts.
func (e *Encoder) closeSpans() error {
	if e.reasoningOpen {
		e.reasoningOpen = false
		if err := e.w.WriteFrame(Frame{Type: FrameReasoningEnd, ID: e.reasoningID}); err != nil {
			return err
		}
	}
	if e.textOpen {
		e.textOpen = false
		if err := e.w.WriteFrame(Frame{Type: FrameTextEnd, ID: e.textID}); err != nil {
			return err
		}
	}
	return nil
}

// FinishSuccess emits the single success terminal frame, carrying the ids
// the client adopts. Safe to call at most once; a second call is a no-op.
func (e *Encoder) FinishSuccess(conversationID, messageID string) error {
	if e.finished {
		return nil
	}
	e.finished = true
	if err := e.closeSpans(); err != nil {
		return err
	}
	if err := e.w.WriteFrame(Frame{Type: FrameFinishStep}); err != nil {
		return err
	}
	return e.w.WriteFrame(Frame{
		Type:           FrameFinish,
		FinishReason:   "stop",
		ConversationID: conversationID,
		MessageID:      messageID,
	})
}

// FinishError converts a run failure into an error frame plus the error
// terminal frame on the already-open channel. The channel must never close
// without a terminal frame: the client cannot tell a silent close from a
// slow network.
func (e *Encoder) FinishError(reason string) error {
	if e.finished {
		return nil
	}
	e.finished = true
	if err := e.closeSpans(); err != nil {
		return err
	}
	if err := e.w.WriteFrame(Frame{Type: FrameError, ErrorText: reason}); err != nil {
		return err
	}
	return e.w.WriteFrame(Frame{Type: FrameFinish, FinishReason: "error"})
}

// Finished reports whether a terminal frame has been written.
func (e *Encoder) Finished() bool {
	return e.finished
}
