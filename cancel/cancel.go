// Package cancel coordinates user-initiated cancellation of in-flight runs.
//
// Cancellation is fire-and-forget: once requested it is immediate and
// irreversible from the client's point of view, whether or not the backend
// genuinely stopped execution. For workflow runs the coordinator mutes the
// run (and any discoverable step-executor sessions) on the realtime channel
// BEFORE issuing the network call, so a trailing "completed" event can never
// race in after the user cancelled.
package cancel

import (
	"context"
	"errors"
	"sync"

	"github.com/theanh9911/agno-ui-sub003/stream"
	"github.com/theanh9911/agno-ui-sub003/telemetry"
)

type (
	// EntityKind identifies the kind of conversational entity a run executes
	// under. Workflows additionally support cancelling a specific run ID
	// because a workflow may own multiple step-executor sub-runs.
	EntityKind string

	// Entity identifies one conversational entity.
	Entity struct {
		// Kind is the entity kind: agent, team, or workflow.
		Kind EntityKind
		// ID is the entity identifier.
		ID string
	}

	// API issues the remote cancel call. Implementations are thin REST
	// collaborators; the coordinator needs only success/failure signaling.
	API interface {
		CancelRun(ctx context.Context, kind EntityKind, entityID, runID string) error
	}

	// Notifier receives user-visible warnings when a cancel call fails over
	// the network. The engine wires a toast collaborator here; tests use a
	// recording fake.
	Notifier interface {
		Warn(ctx context.Context, msg string)
	}

	// Options configures a Coordinator.
	Options struct {
		// API issues remote cancel calls. Required.
		API API
		// Muter silences stream delivery before the network call. Required.
		Muter stream.Muter
		// Notifier surfaces cancel-failure warnings. Optional; defaults to
		// log-only.
		Notifier Notifier
		// StepSessions resolves the step-executor session IDs owned by a
		// workflow run so they can be muted alongside it. Optional.
		StepSessions func(runID string) []string
	}

	// Coordinator tracks the currently active run per entity and drives the
	// Idle → Requesting → Cancelled transition. Safe for concurrent use.
	Coordinator struct {
		api      API
		muter    stream.Muter
		notifier Notifier
		steps    func(runID string) []string

		mu     sync.Mutex
		active map[Entity]string
	}

	logNotifier struct{}
)

const (
	// KindAgent identifies single-agent entities.
	KindAgent EntityKind = "agent"
	// KindTeam identifies team entities.
	KindTeam EntityKind = "team"
	// KindWorkflow identifies workflow entities.
	KindWorkflow EntityKind = "workflow"
)

func (logNotifier) Warn(ctx context.Context, msg string) {
	telemetry.Warnf(ctx, msg)
}

// New constructs a Coordinator. The API and Muter fields in opts are
// required; Notifier defaults to a log-only implementation.
func New(opts Options) (*Coordinator, error) {
	if opts.API == nil {
		return nil, errors.New("cancel API is required")
	}
	if opts.Muter == nil {
		return nil, errors.New("muter is required")
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = logNotifier{}
	}
	return &Coordinator{
		api:      opts.API,
		muter:    opts.Muter,
		notifier: notifier,
		steps:    opts.StepSessions,
		active:   make(map[Entity]string),
	}, nil
}

// Track records the active run for an entity when a new stream starts. A
// subsequent Track for the same entity replaces the previous run id
// (cancel/replace semantics).
func (c *Coordinator) Track(entity Entity, runID string) {
	c.mu.Lock()
	c.active[entity] = runID
	c.mu.Unlock()
}

// Active returns the tracked run ID for an entity, empty when none.
func (c *Coordinator) Active(entity Entity) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active[entity]
}

// Clear drops the tracked run for an entity without cancelling, typically
// when the run terminates on its own.
func (c *Coordinator) Clear(entity Entity) {
	c.mu.Lock()
	delete(c.active, entity)
	c.mu.Unlock()
}

// Cancel cancels the currently active run for the entity and reports whether
// a cancel request was issued. With no active run tracked it is a silent
// no-op: no network call, no error.
func (c *Coordinator) Cancel(ctx context.Context, entity Entity) bool {
	c.mu.Lock()
	runID := c.active[entity]
	c.mu.Unlock()
	if runID == "" {
		return false
	}
	return c.CancelRun(ctx, entity, runID)
}

// CancelRun cancels a specific run of the entity and reports whether a cancel
// request was issued. Workflows use this to target a step-executor sub-run
// rather than only "the active one".
//
// Ordering: for workflow entities the run (and any discoverable step
// sessions) is muted before the cancel request goes out. The local state is
// always cleared afterwards. On network failure the outcome degrades to a
// user-visible warning, never a retry, and the run is still treated as
// cancelled locally.
func (c *Coordinator) CancelRun(ctx context.Context, entity Entity, runID string) bool {
	if runID == "" {
		return false
	}
	if entity.Kind == KindWorkflow {
		c.muter.MuteRun(runID)
		if c.steps != nil {
			for _, sid := range c.steps(runID) {
				c.muter.MuteSession(sid)
			}
		}
	}
	err := c.api.CancelRun(ctx, entity.Kind, entity.ID, runID)
	if err != nil {
		telemetry.Errorf(ctx, err, "remote cancel failed",
			"run_id", runID,
			"entity_kind", string(entity.Kind),
		)
		c.notifier.Warn(ctx, "the backend could not confirm the cancellation; the run was stopped locally")
	}

	c.mu.Lock()
	if c.active[entity] == runID {
		delete(c.active, entity)
	}
	c.mu.Unlock()
	return true
}
