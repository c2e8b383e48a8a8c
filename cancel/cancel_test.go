package cancel

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callRecorder records the observable order of mute and cancel operations.
type callRecorder struct {
	mu    sync.Mutex
	calls []string
	fail  error
}

func (r *callRecorder) record(call string) {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
}

func (r *callRecorder) MuteRun(runID string)         { r.record("mute_run:" + runID) }
func (r *callRecorder) MuteSession(sessionID string) { r.record("mute_session:" + sessionID) }

func (r *callRecorder) CancelRun(_ context.Context, kind EntityKind, entityID, runID string) error {
	r.record("cancel:" + string(kind) + ":" + entityID + ":" + runID)
	return r.fail
}

type recordingNotifier struct {
	mu    sync.Mutex
	warns []string
}

func (n *recordingNotifier) Warn(_ context.Context, msg string) {
	n.mu.Lock()
	n.warns = append(n.warns, msg)
	n.mu.Unlock()
}

func newCoordinator(t *testing.T, rec *callRecorder, notifier Notifier, steps func(string) []string) *Coordinator {
	t.Helper()
	c, err := New(Options{API: rec, Muter: rec, Notifier: notifier, StepSessions: steps})
	require.NoError(t, err)
	return c
}

func TestCancelWithoutActiveRunIsNoOp(t *testing.T) {
	rec := &callRecorder{}
	c := newCoordinator(t, rec, nil, nil)

	issued := c.Cancel(context.Background(), Entity{Kind: KindAgent, ID: "a1"})
	assert.False(t, issued)
	assert.Empty(t, rec.calls, "no network call, no mute")
}

func TestCancelAgentIssuesRemoteCallAndClears(t *testing.T) {
	rec := &callRecorder{}
	c := newCoordinator(t, rec, nil, nil)
	entity := Entity{Kind: KindAgent, ID: "a1"}
	c.Track(entity, "r1")

	assert.True(t, c.Cancel(context.Background(), entity))
	assert.Equal(t, []string{"cancel:agent:a1:r1"}, rec.calls)
	assert.Empty(t, c.Active(entity))

	// A second cancel finds no tracked run and reports nothing issued.
	assert.False(t, c.Cancel(context.Background(), entity))
	assert.Len(t, rec.calls, 1)
}

func TestWorkflowCancelMutesBeforeNetworkCall(t *testing.T) {
	rec := &callRecorder{}
	steps := func(runID string) []string {
		require.Equal(t, "r1", runID)
		return []string{"step-s1"}
	}
	c := newCoordinator(t, rec, nil, steps)
	entity := Entity{Kind: KindWorkflow, ID: "w1"}
	c.Track(entity, "r1")

	c.Cancel(context.Background(), entity)
	require.Equal(t, []string{
		"mute_run:r1",
		"mute_session:step-s1",
		"cancel:workflow:w1:r1",
	}, rec.calls, "mute must be observably invoked before the cancel call begins")
}

func TestCancelSpecificWorkflowRun(t *testing.T) {
	rec := &callRecorder{}
	c := newCoordinator(t, rec, nil, nil)
	entity := Entity{Kind: KindWorkflow, ID: "w1"}
	c.Track(entity, "r-active")

	c.CancelRun(context.Background(), entity, "r-step")
	assert.Equal(t, []string{"mute_run:r-step", "cancel:workflow:w1:r-step"}, rec.calls)
	assert.Equal(t, "r-active", c.Active(entity), "cancelling a sub-run keeps the active run tracked")
}

func TestNetworkFailureDegradesToWarning(t *testing.T) {
	rec := &callRecorder{fail: errors.New("connection refused")}
	notifier := &recordingNotifier{}
	c := newCoordinator(t, rec, notifier, nil)
	entity := Entity{Kind: KindTeam, ID: "t1"}
	c.Track(entity, "r1")

	assert.True(t, c.Cancel(context.Background(), entity), "a failed request still counts as issued")
	assert.Len(t, notifier.warns, 1)
	assert.Empty(t, c.Active(entity), "locally cancelled regardless of network outcome")
}

func TestTrackReplacesPreviousRun(t *testing.T) {
	rec := &callRecorder{}
	c := newCoordinator(t, rec, nil, nil)
	entity := Entity{Kind: KindAgent, ID: "a1"}
	c.Track(entity, "r1")
	c.Track(entity, "r2")
	assert.Equal(t, "r2", c.Active(entity))
}

func TestNewValidatesOptions(t *testing.T) {
	rec := &callRecorder{}
	_, err := New(Options{Muter: rec})
	require.Error(t, err)
	_, err = New(Options{API: rec})
	require.Error(t, err)
}
