package pulse

import (
	"context"
	"errors"
	"fmt"

	"goa.design/clue/log"

	"github.com/theanh9911/agno-ui-sub003/stream"
)

type (
	// SubscriberOptions configures a Pulse-backed subscriber.
	SubscriberOptions struct {
		// Client is the Pulse client used to consume events. Required.
		Client Client
		// SinkName identifies the consumer group. Defaults to
		// "agno_ui_subscriber".
		SinkName string
		// Mutes filters silenced runs/sessions at intake. Optional.
		Mutes *stream.MuteSet
		// Buffer is the event channel capacity. Defaults to 64.
		Buffer int
		// Decoder deserializes event payloads. Defaults to stream.Decode.
		Decoder func([]byte) (stream.Event, error)
		// OnDrop is invoked for every discarded frame. Optional.
		OnDrop func(err error)
	}

	// Subscriber consumes Pulse run streams and emits typed events.
	Subscriber struct {
		client Client
		name   string
		mutes  *stream.MuteSet
		buffer int
		decode func([]byte) (stream.Event, error)
		onDrop func(error)
	}
)

// RunStream returns the Pulse stream name carrying events for a run.
func RunStream(runID string) string { return "run/" + runID }

// NewSubscriber constructs a Pulse-backed subscriber.
func NewSubscriber(opts SubscriberOptions) (*Subscriber, error) {
	if opts.Client == nil {
		return nil, errors.New("pulse client is required")
	}
	name := opts.SinkName
	if name == "" {
		name = "agno_ui_subscriber"
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
		client: opts.Client,
		name:   name,
		mutes:  opts.Mutes,
		buffer: buffer,
		decode: decode,
		onDrop: opts.OnDrop,
	}, nil
}

// Subscribe opens a consumer group on the given stream and returns channels
// for events and transport errors, plus a cancel function that stops
// consumption and closes the sink.
//
// Frames that fail to decode are dropped with a log signal and consumption
// continues; a malformed envelope is never fatal to the stream. Muted
// runs/sessions are filtered before emission and still acked.
func (s *Subscriber) Subscribe(ctx context.Context, streamID string) (<-chan stream.Event, <-chan error, context.CancelFunc, error) {
	str, err := s.client.Stream(streamID)
	if err != nil {
		return nil, nil, nil, err
	}
	sink, err := str.NewSink(ctx, s.name)
	if err != nil {
		return nil, nil, nil, err
	}
	events := make(chan stream.Event, s.buffer)
	errs := make(chan error, 1)
	runCtx, cancel := context.WithCancel(ctx)
	go s.consume(runCtx, sink, events, errs)
	cancelFunc := func() {
		cancel()
		sink.Close(context.Background())
	}
	return events, errs, cancelFunc, nil
}

func (s *Subscriber) consume(ctx context.Context, sink Sink, out chan<- stream.Event, errs chan<- error) {
	defer close(out)
	defer close(errs)
	ch := sink.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			decoded, err := s.decode(evt.Payload)
			if err != nil {
				log.Error(ctx, err, log.KV{K: "msg", V: "dropping undecodable pulse envelope"})
				if s.onDrop != nil {
					s.onDrop(err)
				}
				if ackErr := sink.Ack(ctx, evt); ackErr != nil {
					errs <- fmt.Errorf("pulse ack: %w", ackErr)
					return
				}
				continue
			}
			if s.mutes == nil || !s.mutes.Muted(decoded) {
				select {
				case out <- decoded:
				case <-ctx.Done():
					return
				}
			}
			if ackErr := sink.Ack(ctx, evt); ackErr != nil {
				errs <- fmt.Errorf("pulse ack: %w", ackErr)
				return
			}
		}
	}
}
