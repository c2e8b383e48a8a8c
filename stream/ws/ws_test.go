package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theanh9911/agno-ui-sub003/stream"
)

// serveFrames upgrades incoming requests and writes each frame as one text
// message, then closes normally.
func serveFrames(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, frame := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSubscribeEmitsDecodedEvents(t *testing.T) {
	srv := serveFrames(t, []string{
		`{"event":"run_started","run_id":"r1","session_id":"s1"}`,
		`{"event":"content_delta","run_id":"r1","delta":"hi"}`,
		`{"event":"run_completed","run_id":"r1"}`,
	})
	defer srv.Close()

	sub := NewSubscriber(Options{})
	events, errs, cancel, err := sub.Subscribe(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer cancel()

	var kinds []stream.EventType
	for evt := range events {
		kinds = append(kinds, evt.Type())
	}
	require.NoError(t, <-errs)
	assert.Equal(t, []stream.EventType{stream.EventRunStarted, stream.EventContentDelta, stream.EventRunCompleted}, kinds)
}

func TestSubscribeDropsUndecodableFrames(t *testing.T) {
	srv := serveFrames(t, []string{
		`garbage`,
		`{"event":"run_completed","run_id":"r1"}`,
	})
	defer srv.Close()

	var dropped int
	sub := NewSubscriber(Options{OnDrop: func(error) { dropped++ }})
	events, errs, cancel, err := sub.Subscribe(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer cancel()

	var kinds []stream.EventType
	for evt := range events {
		kinds = append(kinds, evt.Type())
	}
	require.NoError(t, <-errs)
	assert.Equal(t, []stream.EventType{stream.EventRunCompleted}, kinds)
	assert.Equal(t, 1, dropped)
}

func TestSubscribeFiltersMutedRuns(t *testing.T) {
	srv := serveFrames(t, []string{
		`{"event":"content_delta","run_id":"muted","delta":"x"}`,
		`{"event":"content_delta","run_id":"live","delta":"y"}`,
	})
	defer srv.Close()

	mutes := stream.NewMuteSet()
	mutes.MuteRun("muted")
	sub := NewSubscriber(Options{Mutes: mutes})
	events, errs, cancel, err := sub.Subscribe(context.Background(), wsURL(srv))
	require.NoError(t, err)
	defer cancel()

	var runs []string
	for evt := range events {
		runs = append(runs, evt.RunID())
	}
	require.NoError(t, <-errs)
	assert.Equal(t, []string{"live"}, runs)
}

func TestSubscribeDialFailure(t *testing.T) {
	sub := NewSubscriber(Options{})
	_, _, _, err := sub.Subscribe(context.Background(), "ws://127.0.0.1:1/nope")
	require.Error(t, err)
}
