// Package stream defines the typed run-lifecycle events delivered by the
// backend while an agent, team, or workflow run executes, together with the
// decoding machinery that turns raw transport frames into those events.
//
// Events arrive as JSON frames over a chunked HTTP response, a WebSocket, or
// a Pulse stream. Within a single run's stream, frames are delivered and must
// be applied in arrival order; the decoder keeps no cross-run state. A frame
// that fails to decode is dropped with a log signal and the stream continues.
//
// All event types implement the Event interface by embedding Base. Consumers
// that need structured field access type-assert to the concrete types;
// generic consumers (telemetry, fan-out) use the interface methods.
package stream

import (
	"encoding/json"
	"time"
)

type (
	// Event describes a single run-lifecycle update read off the realtime
	// channel. Implementations are immutable after construction and safe to
	// hand to concurrent readers.
	Event interface {
		// Type returns the event kind constant (e.g. EventContentDelta).
		Type() EventType

		// RunID returns the run identifier this event belongs to. All events
		// within a single run execution share the same run ID.
		RunID() string

		// SessionID returns the session the run belongs to. May be empty on
		// early events emitted before the backend confirms the session.
		SessionID() string

		// CreatedAt returns the backend timestamp of the event.
		CreatedAt() time.Time
	}

	// RunStarted signals that the backend accepted the run and began
	// executing it. It is the first event of a run stream and carries the
	// server-confirmed session identity used to index session caches.
	RunStarted struct {
		Base
		// SessionName is the backend-assigned display name for the session,
		// when one exists.
		SessionName string
		// Input echoes the run input the backend accepted.
		Input string
	}

	// UserMessage carries the user message that opened the run. The
	// assembler uses it to create (or replace) the user side of the
	// conversation for this run.
	UserMessage struct {
		Base
		// Content is the user message text or serialized structured payload.
		Content string
		// Attachments lists media references attached to the message.
		Attachments []Attachment
	}

	// ContentDelta carries an incremental fragment of the agent response.
	// Consumers concatenate Delta values in arrival order to reconstruct the
	// full message.
	ContentDelta struct {
		Base
		// Delta is the raw content fragment. Fragments are not guaranteed to
		// align with word or JSON boundaries.
		Delta string
	}

	// ToolCall reports a tool invocation observed during the run. Repeated
	// deliveries for the same ToolCallID overwrite the previous record; the
	// transport may retransmit.
	ToolCall struct {
		Base
		// Data is the structured tool call record.
		Data ToolCallData
	}

	// ReasoningStep carries one step of intermediate reasoning produced by
	// the agent. Steps are ordered by arrival; the engine never reorders them.
	ReasoningStep struct {
		Base
		// Title is a short label for the step.
		Title string
		// Reasoning is the step's reasoning text.
		Reasoning string
	}

	// RunPaused signals that the run is waiting on external input (for
	// example a human confirmation) and will not progress until continued.
	RunPaused struct {
		Base
		// Reason describes what the run is waiting for, when known.
		Reason string
	}

	// RunContinued signals that a paused run resumed execution.
	RunContinued struct {
		Base
	}

	// RunCompleted signals successful termination. It finalizes the agent
	// message for the run: no further mutation is applied after this event.
	RunCompleted struct {
		Base
		// Content, when non-empty, is the authoritative full response text.
		// Backends that stream deltas may repeat the concatenation here.
		Content string
	}

	// RunError signals permanent failure of the run.
	RunError struct {
		Base
		// Reason is a human-readable failure description.
		Reason string
	}

	// RunCancelled signals that the run was cancelled externally.
	RunCancelled struct {
		Base
		// Reason describes the cancellation origin, when known.
		Reason string
	}

	// ToolCallData is the structured record for a single tool invocation.
	ToolCallData struct {
		// ToolCallID uniquely identifies the invocation. Duplicate events for
		// the same ID replace one another (idempotent under retransmission).
		ToolCallID string `json:"tool_call_id"`
		// ToolName is the tool identifier.
		ToolName string `json:"tool_name"`
		// Arguments holds the canonical JSON arguments for the call.
		Arguments json.RawMessage `json:"arguments,omitempty"`
		// Result holds the tool output once the call completed. Nil while the
		// call is in flight or when the tool failed.
		Result json.RawMessage `json:"result,omitempty"`
		// Error carries the tool failure message, empty on success.
		Error string `json:"error,omitempty"`
	}

	// Attachment references a media object (image, video, audio) attached to
	// a message.
	Attachment struct {
		// Kind is the media category: "image", "video", or "audio".
		Kind string `json:"kind"`
		// URL locates the media object.
		URL string `json:"url"`
		// MimeType is the declared content type, when known.
		MimeType string `json:"mime_type,omitempty"`
	}

	// Base provides the Event implementation shared by all concrete event
	// types. Fields are abbreviated because they are set once at decode time
	// and read only through the interface methods.
	Base struct {
		t  EventType
		r  string
		s  string
		at time.Time
	}

	// EventType enumerates the run-lifecycle event kinds.
	EventType string
)

const (
	// EventRunStarted marks acceptance of the run by the backend.
	EventRunStarted EventType = "run_started"
	// EventUserMessage delivers the user message that opened the run.
	EventUserMessage EventType = "user_message"
	// EventContentDelta delivers an incremental agent response fragment.
	EventContentDelta EventType = "content_delta"
	// EventToolCall delivers a tool invocation record.
	EventToolCall EventType = "tool_call"
	// EventReasoningStep delivers one intermediate reasoning step.
	EventReasoningStep EventType = "reasoning_step"
	// EventRunPaused marks the run as waiting on external input.
	EventRunPaused EventType = "run_paused"
	// EventRunContinued marks a paused run as resumed.
	EventRunContinued EventType = "run_continued"
	// EventRunCompleted marks successful termination of the run.
	EventRunCompleted EventType = "run_completed"
	// EventRunError marks permanent failure of the run.
	EventRunError EventType = "run_error"
	// EventRunCancelled marks external cancellation of the run.
	EventRunCancelled EventType = "run_cancelled"
)

// NewBase constructs a Base with the given type, run ID, session ID, and
// event timestamp. Concrete event constructors and the decoder use it; tests
// may use it to build synthetic events.
func NewBase(t EventType, runID, sessionID string, at time.Time) Base {
	return Base{t: t, r: runID, s: sessionID, at: at}
}

// Type implements Event.Type.
func (e Base) Type() EventType { return e.t }

// RunID implements Event.RunID.
func (e Base) RunID() string { return e.r }

// SessionID implements Event.SessionID.
func (e Base) SessionID() string { return e.s }

// CreatedAt implements Event.CreatedAt.
func (e Base) CreatedAt() time.Time { return e.at }

// Terminal reports whether the event kind ends the run stream. After a
// terminal event no further events for the run are applied.
func (t EventType) Terminal() bool {
	switch t {
	case EventRunCompleted, EventRunError, EventRunCancelled:
		return true
	default:
		return false
	}
}
