// Package engine wires the streaming ingestion, conversation assembly,
// history/streaming reconciliation, and cancellation pipeline into one
// component.
//
// State containers (session cache, run cache, manual-override store, mute
// set) are explicit and injected; the engine holds no package-level
// singletons, so independent instances coexist in tests without
// cross-contamination.
//
// Concurrency model: two asynchronous sources feed the engine, the stream
// reader for an active run and paginated history fetches. All in-memory
// folding is synchronous and run-to-completion per event; suspension points
// are at network awaits only, inside the collaborators.
package engine

import (
	"context"
	"errors"

	"goa.design/clue/log"

	"github.com/theanh9911/agno-ui-sub003/cancel"
	"github.com/theanh9911/agno-ui-sub003/conversation"
	"github.com/theanh9911/agno-ui-sub003/manual"
	"github.com/theanh9911/agno-ui-sub003/run"
	"github.com/theanh9911/agno-ui-sub003/sessioncache"
	"github.com/theanh9911/agno-ui-sub003/stream"
	"github.com/theanh9911/agno-ui-sub003/telemetry"
)

type (
	// Options configures an Engine. Every container is optional and defaults
	// to a fresh instance; inject shared ones when composing with external
	// collaborators.
	Options struct {
		// Sessions is the paginated session-list cache.
		Sessions *sessioncache.Cache
		// Runs is the per-session run cache (history + streaming).
		Runs *sessioncache.RunCache
		// Manual is the manual-override store.
		Manual *manual.Store
		// Mutes is the in-process mute set shared with stream readers.
		Mutes *stream.MuteSet
		// CancelAPI issues remote cancel calls. Required to enable Cancel;
		// when nil the engine has no cancellation coordinator.
		CancelAPI cancel.API
		// Notifier surfaces cancel-failure warnings.
		Notifier cancel.Notifier
		// Metrics records engine counters. Optional.
		Metrics *telemetry.Metrics
	}

	// IngestOptions qualifies one run ingestion.
	IngestOptions struct {
		// Entity is the conversational entity the run executes under.
		Entity cancel.Entity
		// RunID is the run identifier announced by the caller. Events carry
		// it too; the option exists so the run is tracked for cancellation
		// before the first event lands.
		RunID string
		// SessionID is the session the run belongs to. May be a
		// client-generated provisional id when the backend has not confirmed
		// the session yet; the engine re-keys state on confirmation.
		SessionID string
		// Provisional marks SessionID as client-generated. A provisional
		// session entry is removed from the session cache when ingestion
		// errors out before the backend ever confirmed the session.
		Provisional bool
	}

	// Engine is the run-streaming reconciliation engine.
	Engine struct {
		sessions *sessioncache.Cache
		runs     *sessioncache.RunCache
		manual   *manual.Store
		tracker  *manual.Tracker
		mutes    *stream.MuteSet
		coord    *cancel.Coordinator
		metrics  *telemetry.Metrics

		assemblers *assemblerSet
	}
)

// New constructs an Engine from the given containers.
func New(opts Options) (*Engine, error) {
	e := &Engine{
		sessions:   opts.Sessions,
		runs:       opts.Runs,
		manual:     opts.Manual,
		mutes:      opts.Mutes,
		metrics:    opts.Metrics,
		assemblers: newAssemblerSet(),
	}
	if e.sessions == nil {
		e.sessions = sessioncache.NewCache()
	}
	if e.runs == nil {
		e.runs = sessioncache.NewRunCache()
	}
	if e.manual == nil {
		e.manual = manual.NewStore()
	}
	if e.mutes == nil {
		e.mutes = stream.NewMuteSet()
	}
	e.tracker = manual.NewTracker(e.manual)
	if opts.CancelAPI != nil {
		coord, err := cancel.New(cancel.Options{
			API:          opts.CancelAPI,
			Muter:        e.mutes,
			Notifier:     opts.Notifier,
			StepSessions: e.stepSessions,
		})
		if err != nil {
			return nil, err
		}
		e.coord = coord
	}
	return e, nil
}

// Mutes exposes the engine's mute set so transports can filter at intake.
func (e *Engine) Mutes() *stream.MuteSet { return e.mutes }

// Manual exposes the manual-override store.
func (e *Engine) Manual() *manual.Store { return e.manual }

// Sessions exposes the session-list cache.
func (e *Engine) Sessions() *sessioncache.Cache { return e.sessions }

// Runs exposes the run cache.
func (e *Engine) Runs() *sessioncache.RunCache { return e.runs }

// ObserveBackend records the currently connected backend instance. A change
// of instance invalidates the manual-override store wholesale; the first
// observation never resets.
func (e *Engine) ObserveBackend(ctx context.Context, backendID string) {
	if e.tracker.Observe(backendID) {
		log.Info(ctx, log.KV{K: "msg", V: "backend changed, manual overrides reset"},
			log.KV{K: "backend_id", V: backendID})
	}
}

// IngestRun drains the event channel for one run, folding each event into
// streaming state in arrival order. It returns when the channel closes
// (stream end, transport failure, or cancellation) or ctx is done.
//
// Side effects along the way: the first server-confirmed session id inserts
// a session entry into the session-list cache; a run error before any
// confirmation removes the provisional entry; terminal events finalize the
// conversation, mark the streaming run terminal, and clear the tracked
// active run.
func (e *Engine) IngestRun(ctx context.Context, opts IngestOptions, events <-chan stream.Event) error {
	if opts.SessionID == "" {
		return errors.New("engine: session id is required")
	}
	st := &ingestState{
		sessionID:   opts.SessionID,
		provisional: opts.Provisional,
		entity:      opts.Entity,
		runID:       opts.RunID,
	}
	if e.coord != nil && opts.RunID != "" {
		e.coord.Track(opts.Entity, opts.RunID)
	}
	if opts.Provisional {
		if _, err := e.sessions.InsertIfAbsent(sessioncache.SessionEntry{SessionID: opts.SessionID}); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			e.apply(ctx, st, evt)
		}
	}
}

// ApplyHistory merges a freshly fetched history run list with the session's
// streaming runs, stores the reconciled result as the authoritative view,
// and clears the streaming state (single-use merge). It returns the
// reconciled list.
//
// Runs present only in streaming state are not injected into the result:
// membership is owned by history, and brand-new runs surface on the next
// history refresh.
func (e *Engine) ApplyHistory(sessionID string, historyRuns []run.Run) []run.Run {
	reconciled := run.Reconcile(historyRuns, e.runs.Streaming(sessionID))
	e.runs.SetHistory(sessionID, reconciled)
	e.runs.ClearStreaming(sessionID)
	e.assemblers.drop(sessionID)
	if e.metrics != nil {
		e.metrics.Reconciliations.Inc(context.Background())
	}
	return reconciled
}

// Conversations snapshots the assembled conversation records for a session.
func (e *Engine) Conversations(sessionID string) []conversation.Conversation {
	return e.assemblers.get(sessionID).Conversations()
}

// Cancel cancels the active run for the entity. A no-op when no cancel API
// was configured or no run is tracked.
func (e *Engine) Cancel(ctx context.Context, entity cancel.Entity) {
	if e.coord == nil {
		return
	}
	if e.coord.Cancel(ctx, entity) && e.metrics != nil {
		e.metrics.Cancellations.Inc(ctx)
	}
}

// CancelRun cancels a specific run of the entity (workflow sub-runs).
func (e *Engine) CancelRun(ctx context.Context, entity cancel.Entity, runID string) {
	if e.coord == nil {
		return
	}
	if e.coord.CancelRun(ctx, entity, runID) && e.metrics != nil {
		e.metrics.Cancellations.Inc(ctx)
	}
}

// ingestState carries the per-ingestion bookkeeping across events.
type ingestState struct {
	sessionID   string
	provisional bool
	confirmed   bool
	entity      cancel.Entity
	runID       string
}

// apply folds one event. Folding is synchronous and run-to-completion: no
// suspension between reading an event and finishing its state mutation.
func (e *Engine) apply(ctx context.Context, st *ingestState, evt stream.Event) {
	if e.mutes.Muted(evt) {
		return
	}
	e.confirmSession(ctx, st, evt)

	asm := e.assemblers.get(st.sessionID)
	if err := asm.Apply(evt); err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "dropping unassemblable event"},
			log.KV{K: "run_id", V: evt.RunID()})
		if e.metrics != nil {
			e.metrics.FramesDropped.Inc(ctx)
		}
		return
	}
	e.foldRun(st, evt)

	if evt.Type().Terminal() {
		if e.coord != nil && e.coord.Active(st.entity) == evt.RunID() {
			e.coord.Clear(st.entity)
		}
		if evt.Type() == stream.EventRunError && !st.confirmed && st.provisional {
			// The run never produced a server-confirmed session; drop the
			// provisional entry from the session list.
			if _, err := e.sessions.Remove(st.sessionID); err != nil {
				log.Error(ctx, err, log.KV{K: "msg", V: "remove provisional session"})
			}
		}
	}
	if e.metrics != nil {
		e.metrics.FramesDecoded.Inc(ctx)
	}
}

// confirmSession reconciles the provisional session identity with the
// server-confirmed one and indexes the session in the list cache. Runs at
// most once per ingestion (first event carrying a session id).
func (e *Engine) confirmSession(ctx context.Context, st *ingestState, evt stream.Event) {
	if st.confirmed {
		return
	}
	sid := evt.SessionID()
	if sid == "" {
		return
	}
	entry := sessioncache.SessionEntry{SessionID: sid, CreatedAt: evt.CreatedAt()}
	if started, ok := evt.(stream.RunStarted); ok {
		entry.SessionName = started.SessionName
	}
	if st.provisional && sid != st.sessionID {
		if _, err := e.sessions.Remove(st.sessionID); err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "remove provisional session"})
		}
		e.assemblers.rekey(st.sessionID, sid)
		st.sessionID = sid
	}
	if _, err := e.sessions.InsertIfAbsent(entry); err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "index confirmed session"})
	}
	st.confirmed = true
}

// foldRun maintains the streaming run copy for the event's run.
func (e *Engine) foldRun(st *ingestState, evt stream.Event) {
	existing := e.streamingRun(st.sessionID, evt.RunID())
	r := existing
	if r.RunID == "" {
		r = run.Run{RunID: evt.RunID(), SessionID: st.sessionID, Status: run.StatusRunning, CreatedAt: evt.CreatedAt()}
	}
	switch ev := evt.(type) {
	case stream.RunStarted:
		r.Input = ev.Input
	case stream.UserMessage:
		if r.Input == "" {
			r.Input = ev.Content
		}
	case stream.ContentDelta:
		r.Content += ev.Delta
	case stream.RunPaused:
		r.Status = run.StatusPaused
	case stream.RunContinued:
		r.Status = run.StatusRunning
	case stream.RunCompleted:
		if ev.Content != "" {
			r.Content = ev.Content
		}
		r.Status = run.StatusCompleted
	case stream.RunError:
		r.Status = run.StatusError
	case stream.RunCancelled:
		r.Status = run.StatusCancelled
	}
	e.runs.UpsertStreaming(r)
}

func (e *Engine) streamingRun(sessionID, runID string) run.Run {
	for _, r := range e.runs.Streaming(sessionID) {
		if r.RunID == runID {
			return r
		}
	}
	return run.Run{}
}

// stepSessions resolves step-executor session ids for a workflow run from
// the streaming cache, so cancellation can mute them alongside the run.
func (e *Engine) stepSessions(runID string) []string {
	var out []string
	for _, sid := range e.runs.Sessions() {
		for _, r := range e.runs.Streaming(sid) {
			if r.RunID != runID {
				continue
			}
			for _, step := range r.Steps {
				if step.SessionID != "" && step.SessionID != r.SessionID {
					out = append(out, step.SessionID)
				}
			}
		}
	}
	return out
}
