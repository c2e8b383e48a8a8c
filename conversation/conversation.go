// Package conversation assembles flat, role-tagged message sequences into
// paired user/response conversation records.
//
// Two producers feed it: the live event stream for an in-flight run (via
// Assembler.Apply) and flat historical message logs fetched from the backend
// (via Pair). Both yield the same Conversation shape so the rest of the
// engine does not care whether a record came from streaming or history.
package conversation

import (
	"time"

	"github.com/theanh9911/agno-ui-sub003/stream"
)

type (
	// Role tags the author of a message.
	Role string

	// Message is one role-tagged unit of conversation. A finalized message
	// is immutable; while a run is streaming, the agent-side message is
	// mutated in place by appending content deltas.
	Message struct {
		// RunID groups the request/response pair this message belongs to.
		RunID string
		// Role is the message author: RoleUser or RoleAgent.
		Role Role
		// Content is the message text or serialized structured payload.
		Content string
		// CreatedAt orders messages within a session.
		CreatedAt time.Time
		// Attachments lists media references attached to the message.
		Attachments []stream.Attachment
		// ToolCalls accumulates tool invocations keyed by tool_call_id,
		// preserving first-appearance order.
		ToolCalls []stream.ToolCallData
		// Reasoning lists intermediate reasoning steps in arrival order.
		Reasoning []ReasoningStep
		// ExtraData carries backend-specific metadata passed through opaquely.
		ExtraData map[string]any
	}

	// ReasoningStep is one intermediate reasoning step attached to an agent
	// message.
	ReasoningStep struct {
		// Title is a short label for the step.
		Title string
		// Reasoning is the step's reasoning text.
		Reasoning string
	}

	// Conversation is a paired user/response record. UserMessage is always
	// present; AgentMessage is nil while the response is pending or when the
	// run never produced output (for example, cancelled before any delta).
	Conversation struct {
		// ID identifies the conversation record (client-generated).
		ID string
		// RunID is the run backing this conversation.
		RunID string
		// UserMessage is the user side of the pair. Never nil.
		UserMessage *Message
		// AgentMessage is the response side. Nil until the first agent
		// output arrives.
		AgentMessage *Message
		// CreatedAt is the conversation creation time (user message time).
		CreatedAt time.Time
	}
)

const (
	// RoleUser tags messages authored by the user.
	RoleUser Role = "user"
	// RoleAgent tags messages authored by the agent.
	RoleAgent Role = "agent"
)

// IsAgent reports whether the role is an agent/assistant role. Backends are
// inconsistent about the label; both spellings are accepted.
func (r Role) IsAgent() bool { return r == RoleAgent || r == "assistant" }

// Pair folds a flat message log into conversation records: each user message
// opens a new conversation; when the immediately following message is an
// agent message with the same run ID it is attached as the response and the
// iteration advances past it. A single left-to-right pass, stable under the
// invariant that a session's log alternates user→agent per run.
//
// Messages that are neither a user message nor a directly-following agent
// response (for example, an orphaned agent message at the head of a page)
// are skipped.
func Pair(msgs []Message) []Conversation {
	out := make([]Conversation, 0, (len(msgs)+1)/2)
	for i := 0; i < len(msgs); i++ {
		m := msgs[i]
		if m.Role.IsAgent() {
			continue
		}
		user := m
		conv := Conversation{
			ID:          user.RunID,
			RunID:       user.RunID,
			UserMessage: &user,
			CreatedAt:   user.CreatedAt,
		}
		if i+1 < len(msgs) {
			next := msgs[i+1]
			if next.Role.IsAgent() && next.RunID == m.RunID {
				agent := next
				conv.AgentMessage = &agent
				i++
			}
		}
		out = append(out, conv)
	}
	return out
}

// clone returns a deep copy of the message so snapshot readers never share
// mutable slices with the assembler.
func (m *Message) clone() *Message {
	if m == nil {
		return nil
	}
	out := *m
	if len(m.Attachments) > 0 {
		out.Attachments = append([]stream.Attachment(nil), m.Attachments...)
	}
	if len(m.ToolCalls) > 0 {
		out.ToolCalls = append([]stream.ToolCallData(nil), m.ToolCalls...)
	}
	if len(m.Reasoning) > 0 {
		out.Reasoning = append([]ReasoningStep(nil), m.Reasoning...)
	}
	if len(m.ExtraData) > 0 {
		out.ExtraData = make(map[string]any, len(m.ExtraData))
		for k, v := range m.ExtraData {
			out.ExtraData[k] = v
		}
	}
	return &out
}
