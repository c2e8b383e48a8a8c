// Package pulse consumes run-lifecycle events from goa.design/pulse streams
// backed by Redis. Deployments that fan events out over a message bus rather
// than a per-run HTTP response publish the same JSON envelopes to a
// `run/<run_id>` Pulse stream; this package subscribes to them through a
// consumer group and emits typed events with mute filtering at intake.
package pulse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"goa.design/pulse/streaming"
	streamopts "goa.design/pulse/streaming/options"
)

type (
	// ClientOptions configures the Pulse client.
	ClientOptions struct {
		// Redis is the Redis connection backing the Pulse streams. Required.
		Redis *redis.Client
		// OperationTimeout bounds individual stream operations. Zero means
		// no timeout.
		OperationTimeout time.Duration
	}

	// Client exposes the subset of Pulse APIs the subscriber needs.
	Client interface {
		// Stream returns a handle to the named Pulse stream, creating it if
		// needed.
		Stream(name string) (Stream, error)
		// Close releases resources owned by the client. Callers typically
		// own the Redis connection; implementations may no-op.
		Close(ctx context.Context) error
	}

	// Stream exposes the operations needed to consume (and, in tests,
	// publish) run event envelopes.
	Stream interface {
		// Add publishes an envelope to the stream and returns the assigned
		// event ID.
		Add(ctx context.Context, event string, payload []byte) (string, error)
		// NewSink creates a consumer group on this stream.
		NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (Sink, error)
	}

	// Sink mirrors the subset of Pulse sinks the subscriber requires.
	Sink interface {
		// Subscribe returns the channel of incoming events.
		Subscribe() <-chan *streaming.Event
		// Ack acknowledges successful processing of an event.
		Ack(context.Context, *streaming.Event) error
		// Close stops the sink and releases resources.
		Close(context.Context)
	}

	client struct {
		redis   *redis.Client
		timeout time.Duration
	}

	handle struct {
		stream  *streaming.Stream
		timeout time.Duration
	}

	sinkAdapter struct {
		*streaming.Sink
	}
)

// NewClient constructs a Pulse client backed by the provided Redis
// connection.
func NewClient(opts ClientOptions) (Client, error) {
	if opts.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	return &client{redis: opts.Redis, timeout: opts.OperationTimeout}, nil
}

// Stream implements Client.
func (c *client) Stream(name string) (Stream, error) {
	if name == "" {
		return nil, errors.New("stream name is required")
	}
	str, err := streaming.NewStream(name, c.redis)
	if err != nil {
		return nil, fmt.Errorf("create pulse stream: %w", err)
	}
	return &handle{stream: str, timeout: c.timeout}, nil
}

// Close implements Client. The caller owns the Redis connection lifecycle.
func (c *client) Close(context.Context) error { return nil }

// Add implements Stream.
func (h *handle) Add(ctx context.Context, event string, payload []byte) (string, error) {
	if event == "" {
		return "", errors.New("event name is required")
	}
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	id, err := h.stream.Add(ctx, event, payload)
	if err != nil {
		return "", fmt.Errorf("pulse add: %w", err)
	}
	return id, nil
}

// NewSink implements Stream.
func (h *handle) NewSink(ctx context.Context, name string, opts ...streamopts.Sink) (Sink, error) {
	sink, err := h.stream.NewSink(ctx, name, opts...)
	if err != nil {
		return nil, err
	}
	return &sinkAdapter{Sink: sink}, nil
}

// Close implements Sink.
func (s sinkAdapter) Close(ctx context.Context) {
	s.Sink.Close(ctx)
}
