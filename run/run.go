// Package run defines the execution-unit model backing a conversation at the
// agent/team/workflow granularity, and the reconciliation merging persisted
// history runs with in-flight streaming runs.
//
// # Ownership
//
// While a run streams, its record is exclusively owned by the in-memory
// streaming state. Once the run reaches a terminal status and the history
// page covering it is re-fetched, Reconcile transfers ownership of the
// authoritative record to the cached history view and the streaming copy is
// discarded.
package run

import (
	"encoding/json"
	"time"
)

type (
	// Status represents the lifecycle state of a run.
	Status string

	// Run captures one execution of an agent, team, or workflow.
	Run struct {
		// RunID is the unique run identifier.
		RunID string `json:"run_id"`
		// SessionID associates the run with its conversational session.
		SessionID string `json:"session_id"`
		// Status is the current lifecycle state.
		Status Status `json:"status"`
		// Input is the run input that opened the execution.
		Input string `json:"run_input,omitempty"`
		// Content is the accumulated response content, when available.
		Content string `json:"content,omitempty"`
		// CreatedAt records when the run began.
		CreatedAt time.Time `json:"created_at"`
		// Steps carries step-executor sub-runs for workflow runs. Streaming
		// copies may hold step detail not yet reflected in paginated history
		// payloads.
		Steps []Run `json:"step_executor_runs,omitempty"`
		// Metadata stores backend-specific metadata (error codes, labels).
		Metadata json.RawMessage `json:"extra_data,omitempty"`
	}
)

const (
	// StatusRunning indicates the run is actively executing.
	StatusRunning Status = "running"
	// StatusPaused indicates the run is waiting for external input.
	StatusPaused Status = "paused"
	// StatusCompleted indicates the run finished successfully.
	StatusCompleted Status = "completed"
	// StatusError indicates the run failed permanently.
	StatusError Status = "error"
	// StatusCancelled indicates the run was cancelled externally.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is a terminal lifecycle state. Status
// transitions are monotonic toward a terminal state: a terminal run must
// never be overwritten by a non-terminal update arriving out of order.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}
