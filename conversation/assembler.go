package conversation

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/theanh9911/agno-ui-sub003/stream"
)

type (
	// Assembler folds the typed event stream for a session into conversation
	// records. One Assembler serves one session; events for multiple runs may
	// interleave (cancel/replace), but events within a run must be applied in
	// arrival order.
	//
	// Reads and writes are guarded so the UI can snapshot conversations
	// concurrently with ingestion: at any point in the stream, Conversations
	// returns a valid, fully-formed state, never a half-constructed record.
	Assembler struct {
		mu    sync.RWMutex
		order []string
		convs map[string]*conversationState
	}

	// conversationState is the mutable in-flight record for one run.
	conversationState struct {
		conv      Conversation
		toolIndex map[string]int
		finalized bool
	}
)

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{convs: make(map[string]*conversationState)}
}

// Apply folds a single event into the assembled state. Events for a run that
// has already reached a terminal state are ignored: the transport may
// duplicate or trail events after completion, and a finalized agent message
// is locked against further mutation.
func (a *Assembler) Apply(evt stream.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch e := evt.(type) {
	case stream.RunStarted:
		st := a.ensure(e.RunID(), evt)
		// Fill the user side from the echoed input so the conversation is
		// renderable before the user_message event lands. A later
		// user_message replaces it.
		if st.conv.UserMessage.Content == "" && e.Input != "" {
			st.conv.UserMessage.Content = e.Input
		}
	case stream.UserMessage:
		st := a.ensure(e.RunID(), evt)
		if st.finalized {
			return nil
		}
		st.conv.UserMessage = &Message{
			RunID:       e.RunID(),
			Role:        RoleUser,
			Content:     e.Content,
			CreatedAt:   e.CreatedAt(),
			Attachments: e.Attachments,
		}
	case stream.ContentDelta:
		st := a.ensure(e.RunID(), evt)
		if st.finalized {
			return nil
		}
		msg := a.agentMessage(st, evt)
		msg.Content += e.Delta
	case stream.ToolCall:
		st := a.ensure(e.RunID(), evt)
		if st.finalized {
			return nil
		}
		msg := a.agentMessage(st, evt)
		if idx, ok := st.toolIndex[e.Data.ToolCallID]; ok {
			msg.ToolCalls[idx] = e.Data
		} else {
			st.toolIndex[e.Data.ToolCallID] = len(msg.ToolCalls)
			msg.ToolCalls = append(msg.ToolCalls, e.Data)
		}
	case stream.ReasoningStep:
		st := a.ensure(e.RunID(), evt)
		if st.finalized {
			return nil
		}
		msg := a.agentMessage(st, evt)
		msg.Reasoning = append(msg.Reasoning, ReasoningStep{Title: e.Title, Reasoning: e.Reasoning})
	case stream.RunCompleted:
		st := a.ensure(e.RunID(), evt)
		if st.finalized {
			return nil
		}
		msg := a.agentMessage(st, evt)
		if e.Content != "" {
			msg.Content = e.Content
		}
		st.finalized = true
	case stream.RunError, stream.RunCancelled:
		st := a.ensure(evt.RunID(), evt)
		st.finalized = true
	case stream.RunPaused, stream.RunContinued:
		// Lifecycle-only events: run status is tracked by the run cache, not
		// the conversation record.
	default:
		return fmt.Errorf("assembler: unhandled event type %q", evt.Type())
	}
	return nil
}

// Conversations returns a deep-copied snapshot of the assembled records in
// creation order. Safe to call concurrently with Apply.
func (a *Assembler) Conversations() []Conversation {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Conversation, 0, len(a.order))
	for _, runID := range a.order {
		st := a.convs[runID]
		conv := st.conv
		conv.UserMessage = st.conv.UserMessage.clone()
		conv.AgentMessage = st.conv.AgentMessage.clone()
		out = append(out, conv)
	}
	return out
}

// Finalized reports whether the given run has reached a terminal event.
func (a *Assembler) Finalized(runID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	st, ok := a.convs[runID]
	return ok && st.finalized
}

// Reset discards all assembled state, typically after a successful
// reconciliation transferred ownership to the cached history view.
func (a *Assembler) Reset() {
	a.mu.Lock()
	a.order = nil
	a.convs = make(map[string]*conversationState)
	a.mu.Unlock()
}

// ensure returns the in-flight state for the run, creating it on first sight.
// A new record carries an empty user message so the never-nil UserMessage
// contract holds even when an agent-side event arrives first.
func (a *Assembler) ensure(runID string, evt stream.Event) *conversationState {
	if st, ok := a.convs[runID]; ok {
		return st
	}
	st := &conversationState{
		conv: Conversation{
			ID:    uuid.NewString(),
			RunID: runID,
			UserMessage: &Message{
				RunID:     runID,
				Role:      RoleUser,
				CreatedAt: evt.CreatedAt(),
			},
			CreatedAt: evt.CreatedAt(),
		},
		toolIndex: make(map[string]int),
	}
	a.convs[runID] = st
	a.order = append(a.order, runID)
	return st
}

// agentMessage returns the agent message for the run, creating an empty one
// first when metadata (tool calls, reasoning) arrives before the first text
// chunk.
func (a *Assembler) agentMessage(st *conversationState, evt stream.Event) *Message {
	if st.conv.AgentMessage == nil {
		st.conv.AgentMessage = &Message{
			RunID:     evt.RunID(),
			Role:      RoleAgent,
			CreatedAt: evt.CreatedAt(),
		}
	}
	return st.conv.AgentMessage
}
