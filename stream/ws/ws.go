// Package ws consumes run-lifecycle events over a WebSocket connection.
// Frames carry the same one-JSON-object-per-event envelopes as the chunked
// HTTP transport; this package dials, reads, decodes, and emits typed events
// through the same channel shape as stream.Reader.
package ws

import (
	"context"
	"errors"

	"github.com/gorilla/websocket"
	"goa.design/clue/log"

	"github.com/theanh9911/agno-ui-sub003/stream"
)

type (
	// Options configures a Subscriber.
	Options struct {
		// Dialer overrides the WebSocket dialer. Defaults to
		// websocket.DefaultDialer.
		Dialer *websocket.Dialer
		// Mutes filters silenced runs/sessions at intake. Optional.
		Mutes *stream.MuteSet
		// Buffer is the event channel capacity. Defaults to 64.
		Buffer int
		// Decoder deserializes frames. Defaults to stream.Decode.
		Decoder func([]byte) (stream.Event, error)
		// OnDrop is invoked for every discarded frame. Optional.
		OnDrop func(err error)
	}

	// Subscriber dials a backend event endpoint and emits typed events.
	Subscriber struct {
		dialer *websocket.Dialer
		mutes  *stream.MuteSet
		buffer int
		decode func([]byte) (stream.Event, error)
		onDrop func(error)
	}
)

// NewSubscriber constructs a WebSocket subscriber.
func NewSubscriber(opts Options) *Subscriber {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	decode := opts.Decoder
	if decode == nil {
		decode = stream.Decode
	}
	return &Subscriber{
		dialer: dialer,
		mutes:  opts.Mutes,
		buffer: buffer,
		decode: decode,
		onDrop: opts.OnDrop,
	}
}

// Subscribe dials the endpoint and returns the event channel, an error
// channel, and a cancel function that stops the read loop and closes the
// connection. Both channels close when the connection ends.
//
// Decode failures drop the frame with a log signal and reading continues;
// transport failures are reported on the error channel before close.
func (s *Subscriber) Subscribe(ctx context.Context, endpoint string) (<-chan stream.Event, <-chan error, context.CancelFunc, error) {
	conn, _, err := s.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	events := make(chan stream.Event, s.buffer)
	errs := make(chan error, 1)
	runCtx, cancel := context.WithCancel(ctx)
	go s.consume(runCtx, conn, events, errs)
	cancelFunc := func() {
		cancel()
		_ = conn.Close()
	}
	return events, errs, cancelFunc, nil
}

func (s *Subscriber) consume(ctx context.Context, conn *websocket.Conn, out chan<- stream.Event, errs chan<- error) {
	defer close(out)
	defer close(errs)
	defer func() { _ = conn.Close() }()
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) && closeErr.Code == websocket.CloseNormalClosure {
				return
			}
			errs <- err
			return
		}
		if len(frame) == 0 {
			continue
		}
		evt, err := s.decode(frame)
		if err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "dropping undecodable ws frame"})
			if s.onDrop != nil {
				s.onDrop(err)
			}
			continue
		}
		if s.mutes != nil && s.mutes.Muted(evt) {
			continue
		}
		select {
		case out <- evt:
		case <-ctx.Done():
			return
		}
	}
}
