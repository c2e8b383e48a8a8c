package stream

import (
	"bufio"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderEmitsEventsInArrivalOrder(t *testing.T) {
	body := strings.Join([]string{
		`{"event":"run_started","run_id":"r1","session_id":"s1"}`,
		`{"event":"content_delta","run_id":"r1","delta":"a"}`,
		`{"event":"content_delta","run_id":"r1","delta":"b"}`,
		`{"event":"run_completed","run_id":"r1"}`,
	}, "\n") + "\n"

	r := NewReader(io.NopCloser(strings.NewReader(body)), ReaderOptions{})
	events, errs, cancel := r.Events(context.Background())
	defer cancel()

	var kinds []EventType
	for evt := range events {
		kinds = append(kinds, evt.Type())
	}
	require.NoError(t, <-errs)
	assert.Equal(t, []EventType{EventRunStarted, EventContentDelta, EventContentDelta, EventRunCompleted}, kinds)
}

func TestReaderDropsUndecodableFrames(t *testing.T) {
	body := strings.Join([]string{
		`{"event":"run_started","run_id":"r1"}`,
		`not json at all`,
		`{"event":"mystery","run_id":"r1"}`,
		`{"event":"run_completed","run_id":"r1"}`,
	}, "\n") + "\n"

	var dropped int
	r := NewReader(io.NopCloser(strings.NewReader(body)), ReaderOptions{
		OnDrop: func(error) { dropped++ },
	})
	events, errs, cancel := r.Events(context.Background())
	defer cancel()

	var kinds []EventType
	for evt := range events {
		kinds = append(kinds, evt.Type())
	}
	require.NoError(t, <-errs)
	assert.Equal(t, []EventType{EventRunStarted, EventRunCompleted}, kinds)
	assert.Equal(t, 2, dropped)
}

func TestReaderFiltersMutedRuns(t *testing.T) {
	body := strings.Join([]string{
		`{"event":"content_delta","run_id":"r1","delta":"a"}`,
		`{"event":"content_delta","run_id":"r2","delta":"b"}`,
		`{"event":"run_completed","run_id":"r1"}`,
	}, "\n") + "\n"

	mutes := NewMuteSet()
	mutes.MuteRun("r1")
	r := NewReader(io.NopCloser(strings.NewReader(body)), ReaderOptions{Mutes: mutes})
	events, errs, cancel := r.Events(context.Background())
	defer cancel()

	var runs []string
	for evt := range events {
		runs = append(runs, evt.RunID())
	}
	require.NoError(t, <-errs)
	assert.Equal(t, []string{"r2"}, runs)
}

func TestReaderFiltersMutedSessions(t *testing.T) {
	body := `{"event":"content_delta","run_id":"r1","session_id":"s1","delta":"a"}` + "\n"
	mutes := NewMuteSet()
	mutes.MuteSession("s1")
	r := NewReader(io.NopCloser(strings.NewReader(body)), ReaderOptions{Mutes: mutes})
	events, _, cancel := r.Events(context.Background())
	defer cancel()
	for range events {
		t.Fatal("muted session event must not be emitted")
	}
}

func TestReaderOversizedFrameEndsStream(t *testing.T) {
	body := strings.Join([]string{
		`{"event":"run_started","run_id":"r1"}`,
		`{"event":"content_delta","run_id":"r1","delta":"` + strings.Repeat("x", 256) + `"}`,
	}, "\n") + "\n"

	r := NewReader(io.NopCloser(strings.NewReader(body)), ReaderOptions{MaxFrameSize: 64})
	events, errs, cancel := r.Events(context.Background())
	defer cancel()

	var kinds []EventType
	for evt := range events {
		kinds = append(kinds, evt.Type())
	}
	require.ErrorIs(t, <-errs, bufio.ErrTooLong)
	assert.Equal(t, []EventType{EventRunStarted}, kinds)
}

func TestReaderCancelStopsConsumption(t *testing.T) {
	pr, pw := io.Pipe()
	r := NewReader(pr, ReaderOptions{})
	events, _, cancel := r.Events(context.Background())

	_, err := pw.Write([]byte(`{"event":"run_started","run_id":"r1"}` + "\n"))
	require.NoError(t, err)
	evt := <-events
	require.Equal(t, EventRunStarted, evt.Type())

	cancel()
	for range events {
	}
	_ = pw.Close()
}

func TestMuteSetIdempotent(t *testing.T) {
	m := NewMuteSet()
	m.MuteRun("r1")
	m.MuteRun("r1")
	m.MuteSession("s1")
	m.MuteSession("s1")
	assert.True(t, m.Muted(NewBase(EventContentDelta, "r1", "", time.Time{})))
	assert.True(t, m.Muted(NewBase(EventContentDelta, "r9", "s1", time.Time{})))
	assert.False(t, m.Muted(NewBase(EventContentDelta, "r9", "s9", time.Time{})))
}
