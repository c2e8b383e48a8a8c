package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrUnknownEvent indicates a frame carried an event kind the decoder does
// not recognize. Callers treat it like any other decode failure: drop the
// frame, log, continue with the next one.
var ErrUnknownEvent = errors.New("unknown event kind")

// envelope is the wire form shared by all transports: one JSON object per
// logical event, tagged with an event-kind discriminator. Payload fields are
// flattened into the envelope rather than nested, matching the backend wire
// format.
type envelope struct {
	Event     EventType       `json:"event"`
	RunID     string          `json:"run_id"`
	SessionID string          `json:"session_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Content   string          `json:"content,omitempty"`
	Delta     string          `json:"delta,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Input     string          `json:"input,omitempty"`
	Session   string          `json:"session_name,omitempty"`
	Title     string          `json:"title,omitempty"`
	Tool      *ToolCallData   `json:"tool,omitempty"`
	Media     []Attachment    `json:"attachments,omitempty"`
	Extra     json.RawMessage `json:"extra_data,omitempty"`
}

// Decode parses a single transport frame into a typed event.
//
// Contract: frames for a given run must be decoded in arrival order; Decode
// keeps no state across calls. A malformed frame or unrecognized event kind
// returns an error; the caller drops the frame and continues with the next
// one. Decode failures are never fatal to the stream.
func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decode event frame: %w", err)
	}
	if env.RunID == "" {
		return nil, errors.New("decode event frame: missing run_id")
	}
	base := NewBase(env.Event, env.RunID, env.SessionID, env.CreatedAt)
	switch env.Event {
	case EventRunStarted:
		return RunStarted{Base: base, SessionName: env.Session, Input: env.Input}, nil
	case EventUserMessage:
		return UserMessage{Base: base, Content: env.Content, Attachments: env.Media}, nil
	case EventContentDelta:
		// Some backends put the fragment in "content" rather than "delta".
		delta := env.Delta
		if delta == "" {
			delta = env.Content
		}
		return ContentDelta{Base: base, Delta: delta}, nil
	case EventToolCall:
		if env.Tool == nil {
			return nil, errors.New("decode event frame: tool_call without tool payload")
		}
		return ToolCall{Base: base, Data: *env.Tool}, nil
	case EventReasoningStep:
		return ReasoningStep{Base: base, Title: env.Title, Reasoning: env.Content}, nil
	case EventRunPaused:
		return RunPaused{Base: base, Reason: env.Reason}, nil
	case EventRunContinued:
		return RunContinued{Base: base}, nil
	case EventRunCompleted:
		return RunCompleted{Base: base, Content: env.Content}, nil
	case EventRunError:
		return RunError{Base: base, Reason: env.Reason}, nil
	case EventRunCancelled:
		return RunCancelled{Base: base, Reason: env.Reason}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}
