// Package manual tracks per-session manual-override flags: a boolean per
// session marking that a human has taken manual control of an otherwise
// automated session.
//
// The store's lifecycle is tied to the identity of the connected backend
// instance: when the active backend changes, the whole map is invalidated.
// Entries have no expiry; they live until explicit reset.
package manual

import "sync"

type (
	// Store is a keyed map of session ID to manual-override flag. Safe for
	// concurrent use.
	Store struct {
		mu    sync.RWMutex
		flags map[string]bool
	}

	// Tracker detects backend-instance transitions and resets the store
	// exactly once per transition. The first observation never resets: there
	// is no prior state worth clearing on mount.
	Tracker struct {
		mu    sync.Mutex
		store *Store
		prev  string
		seen  bool
	}
)

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{flags: make(map[string]bool)}
}

// SetStatus records the manual-override flag for a session.
func (s *Store) SetStatus(sessionID string, isManual bool) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	s.flags[sessionID] = isManual
	s.mu.Unlock()
}

// Status returns the flag for a session and whether it was ever set.
func (s *Store) Status(sessionID string) (bool, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.flags[sessionID]
	return v, ok
}

// ResetAll discards every entry. Invoked when the connected backend
// instance changes.
func (s *Store) ResetAll() {
	s.mu.Lock()
	s.flags = make(map[string]bool)
	s.mu.Unlock()
}

// NewTracker wires a Tracker to the store it resets.
func NewTracker(store *Store) *Tracker {
	return &Tracker{store: store}
}

// Observe records the currently connected backend instance ID. When the ID
// differs from the previously observed one the store is reset wholesale.
// Reports whether a reset happened.
func (t *Tracker) Observe(backendID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.seen {
		t.seen = true
		t.prev = backendID
		return false
	}
	if backendID == t.prev {
		return false
	}
	t.prev = backendID
	t.store.ResetAll()
	return true
}
