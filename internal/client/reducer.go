// Package client is the consuming side of the stream protocol: an HTTP
// client that runs chat turns and a reducer that folds the frame sequence
// into conversation state. The reducer builds the exact Message/Part shape
// the server persists, so live streams and history loads are interchangeable.
package client

import (
	"github.com/playground-ai/agent-platform/internal/model"
	"github.com/playground-ai/agent-platform/internal/stream"
)

// RunStatus is the lifecycle of the current turn.
type RunStatus string

const (
	// StatusIdle means no turn is in flight.
	StatusIdle RunStatus = "idle"
	// StatusSubmitted means the request was sent but no frame has arrived.
	StatusSubmitted RunStatus = "submitted"
	// StatusStreaming means frames are arriving.
	StatusStreaming RunStatus = "streaming"
	// StatusErrored means the turn ended in an error that has not been
	// dismissed.
	StatusErrored RunStatus = "errored"
)

// toolStateRank orders tool part states so a part never moves backwards.
var toolStateRank = map[model.ToolState]int{
	model.ToolStateInputStreaming:  1,
	model.ToolStateInputAvailable:  2,
	model.ToolStateOutputAvailable: 3,
	model.ToolStateOutputError:     3,
}

// Reducer folds stream frames into conversation state. It is a pure state
// machine over one conversation view; callers own synchronization.
type Reducer struct {
	ConversationID string
	Messages       []model.Message
	Status         RunStatus
	Error          string

	// current points at the assistant message being streamed, nil outside a
	// run.
	current   *model.Message
	partIndex map[string]int

	// generation invalidates in-flight frames after Stop or Navigate.
	generation int
}

// NewReducer creates a reducer in the idle state.
func NewReducer() *Reducer {
	return &Reducer{Status: StatusIdle}
}

// Submit records the outgoing user message and arms the reducer for the
// response stream. It returns the generation token that Apply calls for this
// run must carry.
func (r *Reducer) Submit(text string) int {
	r.Messages = append(r.Messages, model.Message{
		Role:           model.RoleUser,
		Content:        text,
		ConversationID: r.ConversationID,
	})
	r.Status = StatusSubmitted
	r.Error = ""
	r.current = nil
	r.partIndex = nil
	return r.generation
}

// Apply folds one frame into the state. Frames from a stale generation, one
// stopped or navigated away from, are ignored.
func (r *Reducer) Apply(generation int, f stream.Frame) {
	if generation != r.generation {
		return
	}
	if r.Status != StatusSubmitted && r.Status != StatusStreaming {
		return
	}

	switch f.Type {
	case stream.FrameStart:
		r.Status = StatusStreaming
		msg := model.Message{
			ID:   f.MessageID,
			Role: model.RoleAssistant,
		}
		// The server names the conversation on the first turn; adopt its id
		// in place, without resetting the state already built.
		if f.MessageMetadata != nil && f.MessageMetadata.ConversationID != "" {
			r.adoptConversation(f.MessageMetadata.ConversationID)
			msg.ConversationID = r.ConversationID
		}
		r.Messages = append(r.Messages, msg)
		r.current = &r.Messages[len(r.Messages)-1]
		r.partIndex = make(map[string]int)

	case stream.FrameStartStep, stream.FrameFinishStep:
		// Step boundaries carry no state.

	case stream.FrameTextStart:
		r.ensurePart(f.PartID(), model.PartTypeText)

	case stream.FrameTextDelta:
		p := r.ensurePart(f.PartID(), model.PartTypeText)
		if p != nil {
			p.Text += f.Delta
			r.current.Content += f.Delta
		}

	case stream.FrameTextEnd:
		// Text parts need no terminal bookkeeping.

	case stream.FrameReasoningStart:
		r.ensurePart(f.PartID(), model.PartTypeReasoning)

	case stream.FrameReasoningDelta:
		p := r.ensurePart(f.PartID(), model.PartTypeReasoning)
		if p != nil {
			p.Text += f.Delta
		}

	case stream.FrameReasoningEnd:

	case stream.FrameToolInputStart:
		p := r.ensurePart(f.PartID(), model.PartTypeTool)
		if p != nil {
			p.ToolName = f.ToolName
			r.advanceTool(p, model.ToolStateInputStreaming)
		}

	case stream.FrameToolInputDelta:
		p := r.ensurePart(f.PartID(), model.PartTypeTool)
		if p != nil {
			r.advanceTool(p, model.ToolStateInputStreaming)
		}

	case stream.FrameToolInputAvailable:
		p := r.ensurePart(f.PartID(), model.PartTypeTool)
		if p != nil {
			if f.ToolName != "" {
				p.ToolName = f.ToolName
			}
			p.Input = f.Input
			r.advanceTool(p, model.ToolStateInputAvailable)
		}

	case stream.FrameToolOutputAvailable:
		p := r.ensurePart(f.PartID(), model.PartTypeTool)
		if p != nil && !p.Terminal() {
			p.Output = f.Output
			r.advanceTool(p, model.ToolStateOutputAvailable)
		}

	case stream.FrameToolOutputError:
		p := r.ensurePart(f.PartID(), model.PartTypeTool)
		if p != nil && !p.Terminal() {
			p.ErrorText = f.ErrorText
			r.advanceTool(p, model.ToolStateOutputError)
		}

	case stream.FrameFile:
		p := r.ensurePart(f.URL, model.PartTypeFile)
		if p != nil {
			p.URL = f.URL
			p.Filename = f.Filename
			p.MediaType = f.MediaType
		}

	case stream.FrameError:
		r.Error = f.ErrorText
		if r.current != nil {
			r.current.FinishReason = model.FinishReasonError
		}

	case stream.FrameFinish:
		if f.ConversationID != "" {
			r.adoptConversation(f.ConversationID)
		}
		if r.current != nil {
			if f.MessageID != "" && r.current.ID == "" {
				r.current.ID = f.MessageID
			}
			r.current.FinishReason = model.FinishReason(f.FinishReason)
		}
		if f.FinishReason == string(model.FinishReasonError) {
			r.Status = StatusErrored
		} else {
			r.Status = StatusIdle
		}
		r.current = nil
		r.partIndex = nil
	}
}

// TransportError marks a turn that broke without a terminal frame: the
// connection dropped, the body ended early, or the request failed outright.
func (r *Reducer) TransportError(generation int, message string) {
	if generation != r.generation {
		return
	}
	if r.Status != StatusSubmitted && r.Status != StatusStreaming {
		return
	}

	r.Error = message
	if r.current != nil {
		r.current.FinishReason = model.FinishReasonError
		r.current = nil
		r.partIndex = nil
	}
	r.Status = StatusErrored
}

// Stop abandons the current turn. Whatever streamed so far is kept as-is;
// any frame still in flight is discarded.
func (r *Reducer) Stop() {
	r.generation++
	if r.current != nil {
		r.current.FinishReason = model.FinishReasonStop
		r.current = nil
		r.partIndex = nil
	}
	r.Status = StatusIdle
}

// DismissError clears a surfaced run error.
func (r *Reducer) DismissError() {
	r.Error = ""
	if r.Status == StatusErrored {
		r.Status = StatusIdle
	}
}

// LoadHistory replaces the message list with a stored transcript. A live
// stream takes precedence: history never clobbers a run in flight.
func (r *Reducer) LoadHistory(conversationID string, messages []model.Message) {
	if r.Status == StatusSubmitted || r.Status == StatusStreaming {
		return
	}

	r.ConversationID = conversationID
	r.Messages = append([]model.Message(nil), messages...)
	r.current = nil
	r.partIndex = nil
	r.Status = StatusIdle
	r.Error = ""
}

// Navigate switches to another conversation. In-flight frames for the old
// one become stale and are dropped on arrival.
func (r *Reducer) Navigate(conversationID string) {
	r.generation++
	r.ConversationID = conversationID
	r.Messages = nil
	r.current = nil
	r.partIndex = nil
	r.Status = StatusIdle
	r.Error = ""
}

// adoptConversation takes the server-assigned id for a conversation that
// started without one. It also back-fills the id onto messages created
// before the id existed.
func (r *Reducer) adoptConversation(id string) {
	if r.ConversationID == id {
		return
	}
	r.ConversationID = id
	for i := range r.Messages {
		if r.Messages[i].ConversationID == "" {
			r.Messages[i].ConversationID = id
		}
	}
}

// ensurePart returns the part with the given id on the current message,
// creating it if needed. The id is stable for the part's lifetime, so every
// delta for one logical unit lands on the same part.
func (r *Reducer) ensurePart(id string, typ model.PartType) *model.Part {
	if r.current == nil {
		return nil
	}
	if idx, ok := r.partIndex[id]; ok {
		return &r.current.Parts[idx]
	}
	r.current.Parts = append(r.current.Parts, model.Part{ID: id, Type: typ})
	r.partIndex[id] = len(r.current.Parts) - 1
	return &r.current.Parts[len(r.current.Parts)-1]
}

// advanceTool moves a tool part forward, never backwards. A terminal
// outcome is absorbing: once the output or its error is recorded, no later
// frame rewrites it.
func (r *Reducer) advanceTool(p *model.Part, next model.ToolState) {
	if p.Terminal() {
		return
	}
	if toolStateRank[next] >= toolStateRank[p.State] {
		p.State = next
	}
}
