package stream

import (
	"bufio"
	"context"
	"errors"
	"io"

	"goa.design/clue/log"
)

type (
	// ReaderOptions configures a Reader.
	ReaderOptions struct {
		// Mutes filters silenced runs/sessions at intake. Optional; when nil
		// no filtering is applied.
		Mutes *MuteSet
		// Buffer is the event channel capacity. Defaults to 64.
		Buffer int
		// Decoder deserializes frames. Defaults to Decode.
		Decoder func([]byte) (Event, error)
		// OnDrop is invoked for every frame discarded because it failed to
		// decode. Optional; used by telemetry to count dropped frames. The
		// drop itself is always logged regardless.
		OnDrop func(err error)
		// MaxFrameSize bounds a single frame in bytes. Defaults to 1 MiB.
		// Unlike a malformed frame, an oversized frame ends the stream: the
		// line scanner cannot resync past a token it refused to buffer, so
		// bufio.ErrTooLong is reported on the error channel and the channels
		// close.
		MaxFrameSize int
	}

	// Reader consumes newline-delimited JSON event frames from a chunked
	// HTTP response body (or any io.ReadCloser) and emits typed events.
	//
	// The event sequence is lazy, single-pass, and non-restartable: once the
	// underlying body is drained or the cancel function is called, the Reader
	// is spent. Frames that fail to decode are dropped with a log signal and
	// reading continues; a malformed frame is never fatal to the stream.
	Reader struct {
		body   io.ReadCloser
		mutes  *MuteSet
		buffer int
		decode func([]byte) (Event, error)
		onDrop func(error)
		maxLen int
	}
)

// NewReader wraps the given body, typically the response body of a streaming
// run request. The Reader takes ownership of the body and closes it when
// consumption stops.
func NewReader(body io.ReadCloser, opts ReaderOptions) *Reader {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	decode := opts.Decoder
	if decode == nil {
		decode = Decode
	}
	maxLen := opts.MaxFrameSize
	if maxLen <= 0 {
		maxLen = 1 << 20
	}
	return &Reader{
		body:   body,
		mutes:  opts.Mutes,
		buffer: buffer,
		decode: decode,
		onDrop: opts.OnDrop,
		maxLen: maxLen,
	}
}

// Events starts consumption and returns the event channel, an error channel,
// and a cancel function that stops the underlying read loop and closes the
// body. Both channels are closed when the stream ends (EOF, transport error,
// or cancellation).
//
// Usage:
//
//	events, errs, cancel := r.Events(ctx)
//	defer cancel()
//	for evt := range events {
//	    // apply event
//	}
//
// Transport errors other than EOF are reported on the error channel before
// the channels close; a frame exceeding MaxFrameSize counts as a transport
// error (bufio.ErrTooLong). Decode errors are not: those frames are dropped
// and logged, and consumption continues.
func (r *Reader) Events(ctx context.Context) (<-chan Event, <-chan error, context.CancelFunc) {
	events := make(chan Event, r.buffer)
	errs := make(chan error, 1)
	runCtx, cancel := context.WithCancel(ctx)
	go r.consume(runCtx, events, errs)
	cancelFunc := func() {
		cancel()
		_ = r.body.Close()
	}
	return events, errs, cancelFunc
}

// consume reads frames line by line, decodes them, and emits events until
// EOF, transport error, or context cancellation. Closing the body from the
// cancel function unblocks the scanner.
func (r *Reader) consume(ctx context.Context, out chan<- Event, errs chan<- error) {
	defer close(out)
	defer close(errs)
	defer func() { _ = r.body.Close() }()

	scanner := bufio.NewScanner(r.body)
	scanner.Buffer(make([]byte, 0, 64*1024), r.maxLen)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		frame := scanner.Bytes()
		if len(frame) == 0 {
			continue
		}
		evt, err := r.decode(frame)
		if err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "dropping undecodable event frame"})
			if r.onDrop != nil {
				r.onDrop(err)
			}
			continue
		}
		if r.mutes != nil && r.mutes.Muted(evt) {
			continue
		}
		select {
		case out <- evt:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, io.ErrClosedPipe) {
		errs <- err
	}
}
