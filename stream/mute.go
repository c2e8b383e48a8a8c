package stream

import "sync"

type (
	// Muter silences further event delivery for a run or session. Both
	// operations are idempotent and fire-and-forget. There is no unmute; a
	// mute is permanent for the lifetime of the process.
	//
	// The cancellation coordinator mutes a run BEFORE issuing the remote
	// cancel call so that trailing events delivered after the cancel request
	// never reach local state.
	Muter interface {
		// MuteRun discards all subsequent events carrying the given run ID.
		MuteRun(runID string)
		// MuteSession discards all subsequent events carrying the given
		// session ID.
		MuteSession(sessionID string)
	}

	// MuteSet is the in-process Muter used by stream readers. It is safe for
	// concurrent use: cancellation mutes from one goroutine while a reader
	// filters events on another.
	MuteSet struct {
		mu       sync.RWMutex
		runs     map[string]struct{}
		sessions map[string]struct{}
	}
)

// NewMuteSet returns an empty MuteSet.
func NewMuteSet() *MuteSet {
	return &MuteSet{
		runs:     make(map[string]struct{}),
		sessions: make(map[string]struct{}),
	}
}

// MuteRun implements Muter.
func (m *MuteSet) MuteRun(runID string) {
	if runID == "" {
		return
	}
	m.mu.Lock()
	m.runs[runID] = struct{}{}
	m.mu.Unlock()
}

// MuteSession implements Muter.
func (m *MuteSet) MuteSession(sessionID string) {
	if sessionID == "" {
		return
	}
	m.mu.Lock()
	m.sessions[sessionID] = struct{}{}
	m.mu.Unlock()
}

// Muted reports whether the event's run or session has been silenced.
func (m *MuteSet) Muted(e Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.runs[e.RunID()]; ok {
		return true
	}
	if sid := e.SessionID(); sid != "" {
		if _, ok := m.sessions[sid]; ok {
			return true
		}
	}
	return false
}
