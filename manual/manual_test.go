package manual

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStoreSetAndReset(t *testing.T) {
	s := NewStore()
	s.SetStatus("s1", true)
	s.SetStatus("s2", false)

	v, ok := s.Status("s1")
	assert.True(t, ok)
	assert.True(t, v)

	v, ok = s.Status("s2")
	assert.True(t, ok)
	assert.False(t, v)

	_, ok = s.Status("ghost")
	assert.False(t, ok)

	s.ResetAll()
	_, ok = s.Status("s1")
	assert.False(t, ok)
}

func TestStoreIgnoresEmptySessionID(t *testing.T) {
	s := NewStore()
	s.SetStatus("", true)
	_, ok := s.Status("")
	assert.False(t, ok)
}

func TestTrackerFirstObservationNeverResets(t *testing.T) {
	s := NewStore()
	tr := NewTracker(s)
	s.SetStatus("s1", true)

	assert.False(t, tr.Observe("backend-a"), "first mount must not clear state")
	_, ok := s.Status("s1")
	assert.True(t, ok)
}

func TestTrackerResetsOnBackendChange(t *testing.T) {
	s := NewStore()
	tr := NewTracker(s)
	tr.Observe("backend-a")
	s.SetStatus("s1", true)

	assert.False(t, tr.Observe("backend-a"), "same backend must not reset")
	_, ok := s.Status("s1")
	assert.True(t, ok)

	assert.True(t, tr.Observe("backend-b"))
	_, ok = s.Status("s1")
	assert.False(t, ok)

	// Exactly once per transition: observing the new backend again is quiet.
	s.SetStatus("s2", true)
	assert.False(t, tr.Observe("backend-b"))
	_, ok = s.Status("s2")
	assert.True(t, ok)
}
