package sessioncache

import (
	"sync"

	"github.com/theanh9911/agno-ui-sub003/run"
)

// RunCache holds the per-session run lists the UI reads: the authoritative
// history list and the transient streaming list. Safe for concurrent use.
//
// Streaming entries live here only until a reconciliation succeeds; the
// merge is single-use and ClearStreaming is invoked right after so stale
// streaming copies are never served again.
type RunCache struct {
	mu        sync.RWMutex
	history   map[string][]run.Run
	streaming map[string]map[string]run.Run
	order     map[string][]string
}

// NewRunCache returns an empty RunCache.
func NewRunCache() *RunCache {
	return &RunCache{
		history:   make(map[string][]run.Run),
		streaming: make(map[string]map[string]run.Run),
		order:     make(map[string][]string),
	}
}

// SetHistory stores the reconciled, authoritative run list for a session.
// The slice is copied.
func (c *RunCache) SetHistory(sessionID string, runs []run.Run) {
	cp := append([]run.Run(nil), runs...)
	c.mu.Lock()
	c.history[sessionID] = cp
	c.mu.Unlock()
}

// History returns the cached authoritative run list for a session.
func (c *RunCache) History(sessionID string) []run.Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]run.Run(nil), c.history[sessionID]...)
}

// UpsertStreaming inserts or updates the streaming copy of a run, keyed by
// run ID, preserving first-appearance order. A run already in a terminal
// state is never downgraded by a non-terminal update arriving out of order.
func (c *RunCache) UpsertStreaming(r run.Run) {
	if r.RunID == "" || r.SessionID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	byID, ok := c.streaming[r.SessionID]
	if !ok {
		byID = make(map[string]run.Run)
		c.streaming[r.SessionID] = byID
	}
	if existing, ok := byID[r.RunID]; ok {
		if existing.Status.Terminal() && !r.Status.Terminal() {
			return
		}
	} else {
		c.order[r.SessionID] = append(c.order[r.SessionID], r.RunID)
	}
	byID[r.RunID] = r
}

// Streaming returns the streaming run copies for a session in
// first-appearance order.
func (c *RunCache) Streaming(sessionID string) []run.Run {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byID := c.streaming[sessionID]
	out := make([]run.Run, 0, len(byID))
	for _, id := range c.order[sessionID] {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}

// Sessions lists the session ids currently holding streaming state.
func (c *RunCache) Sessions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.streaming))
	for sid := range c.streaming {
		out = append(out, sid)
	}
	return out
}

// ClearStreaming discards all streaming state for a session after ownership
// transferred to the reconciled history view.
func (c *RunCache) ClearStreaming(sessionID string) {
	c.mu.Lock()
	delete(c.streaming, sessionID)
	delete(c.order, sessionID)
	c.mu.Unlock()
}
