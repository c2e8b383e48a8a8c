// Package sessioncache holds the client-side cached views the UI reads:
// paginated session lists and per-session run lists (history and streaming).
//
// All mutation goes through the exported insert/remove/set operations; no
// other component writes to the cached views directly. That single-writer
// discipline is what prevents lost updates between a background history
// refresh and a live stream-triggered insert.
package sessioncache

import (
	"errors"
	"sync"
	"time"
)

type (
	// SessionEntry is the lightweight index record used to populate session
	// lists before the full session detail is fetched.
	SessionEntry struct {
		// SessionID is the backend session identifier.
		SessionID string `json:"session_id"`
		// SessionName is the display name, when assigned.
		SessionName string `json:"session_name,omitempty"`
		// CreatedAt records session creation time.
		CreatedAt time.Time `json:"created_at"`
		// State carries opaque backend session state.
		State map[string]any `json:"session_state,omitempty"`
	}

	// PageMeta mirrors the pagination envelope of the backend's paginated
	// queries.
	PageMeta struct {
		Page       int `json:"page"`
		Limit      int `json:"limit"`
		TotalPages int `json:"total_pages"`
		TotalCount int `json:"total_count"`
	}

	// Page is one cached page of session entries.
	Page struct {
		Data []SessionEntry `json:"data"`
		Meta PageMeta       `json:"meta"`
	}

	// Cache holds the paginated session list for one query identity (for
	// example, "sessions for backend X"). Safe for concurrent use.
	Cache struct {
		mu    sync.RWMutex
		pages []Page
	}
)

// ErrEmptySessionID indicates a cache operation was attempted without a
// session identifier.
var ErrEmptySessionID = errors.New("session id is required")

// NewCache returns an empty, uninitialized Cache.
func NewCache() *Cache {
	return &Cache{}
}

// SetPages replaces the cached pages wholesale, typically after a paginated
// history fetch. The slice is copied; callers keep ownership of theirs.
func (c *Cache) SetPages(pages []Page) {
	cp := make([]Page, len(pages))
	for i, p := range pages {
		cp[i] = clonePage(p)
	}
	c.mu.Lock()
	c.pages = cp
	c.mu.Unlock()
}

// InsertIfAbsent inserts a newly observed session entry:
//
//   - empty/uninitialized cache: creates a single page holding just the entry;
//   - an entry with the same session ID anywhere in any page: no-op, the
//     cache is left untouched (no duplicate, no reordering);
//   - otherwise: the entry is prepended to the first page only, following
//     the most-recent-first display convention.
//
// It reports whether the entry was inserted. Callers invoke it exactly once
// per first-seen session ID per streaming session (insertion-triggered, not
// polled).
func (c *Cache) InsertIfAbsent(entry SessionEntry) (bool, error) {
	if entry.SessionID == "" {
		return false, ErrEmptySessionID
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.pages {
		for _, e := range p.Data {
			if e.SessionID == entry.SessionID {
				return false, nil
			}
		}
	}
	if len(c.pages) == 0 {
		c.pages = []Page{{
			Data: []SessionEntry{entry},
			Meta: PageMeta{Page: 1, Limit: 1, TotalPages: 1, TotalCount: 1},
		}}
		return true, nil
	}
	first := &c.pages[0]
	first.Data = append([]SessionEntry{entry}, first.Data...)
	first.Meta.TotalCount++
	return true, nil
}

// Remove filters the entry with the given session ID out of whichever pages
// hold it. Used when ingestion fails before the backend ever confirmed the
// session. Reports whether anything was removed.
func (c *Cache) Remove(sessionID string) (bool, error) {
	if sessionID == "" {
		return false, ErrEmptySessionID
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := false
	for i := range c.pages {
		data := c.pages[i].Data
		kept := data[:0]
		for _, e := range data {
			if e.SessionID == sessionID {
				removed = true
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) != len(data) {
			c.pages[i].Data = kept
			if c.pages[i].Meta.TotalCount > 0 {
				c.pages[i].Meta.TotalCount -= len(data) - len(kept)
			}
		}
	}
	return removed, nil
}

// Pages returns a deep-copied snapshot of the cached pages.
func (c *Cache) Pages() []Page {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Page, len(c.pages))
	for i, p := range c.pages {
		out[i] = clonePage(p)
	}
	return out
}

func clonePage(in Page) Page {
	out := in
	out.Data = make([]SessionEntry, len(in.Data))
	for i, e := range in.Data {
		out.Data[i] = cloneEntry(e)
	}
	return out
}

func cloneEntry(in SessionEntry) SessionEntry {
	out := in
	if len(in.State) > 0 {
		out.State = make(map[string]any, len(in.State))
		for k, v := range in.State {
			out.State[k] = v
		}
	}
	return out
}
