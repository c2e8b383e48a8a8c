// Package telemetry carries the engine's observability glue: structured
// logging helpers over goa.design/clue/log and OTEL counters for the few
// things worth counting in a client-side reconciler (frames decoded and
// dropped, reconciliations, cancellations).
//
// Counters use the global MeterProvider; configure it via
// otel.SetMeterProvider before constructing Metrics.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"goa.design/clue/log"
)

type (
	// Counter is a monotonically increasing engine counter.
	Counter struct {
		c metric.Int64Counter
	}

	// Metrics groups the engine counters.
	Metrics struct {
		// FramesDecoded counts event frames decoded and applied.
		FramesDecoded Counter
		// FramesDropped counts frames discarded because they failed to
		// decode or assemble.
		FramesDropped Counter
		// Reconciliations counts history/streaming merges.
		Reconciliations Counter
		// Cancellations counts user-initiated run cancellations.
		Cancellations Counter
	}
)

// NewMetrics constructs the engine counters on the global meter. Counter
// creation failures are tolerated: a failed counter is a no-op.
func NewMetrics() *Metrics {
	meter := otel.Meter("github.com/theanh9911/agno-ui-sub003/engine")
	return &Metrics{
		FramesDecoded:   newCounter(meter, "engine.frames_decoded"),
		FramesDropped:   newCounter(meter, "engine.frames_dropped"),
		Reconciliations: newCounter(meter, "engine.reconciliations"),
		Cancellations:   newCounter(meter, "engine.cancellations"),
	}
}

func newCounter(meter metric.Meter, name string) Counter {
	c, err := meter.Int64Counter(name)
	if err != nil {
		return Counter{}
	}
	return Counter{c: c}
}

// Inc increments the counter by one.
func (c Counter) Inc(ctx context.Context) {
	if c.c == nil {
		return
	}
	c.c.Add(ctx, 1)
}

// Warnf logs a warning with structured key-value pairs. Keyvals are
// alternating key/value; non-string keys are skipped.
func Warnf(ctx context.Context, msg string, keyvals ...any) {
	fielders := append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvSlice(keyvals)...)
	log.Warn(ctx, fielders...)
}

// Errorf logs an error with structured key-value pairs.
func Errorf(ctx context.Context, err error, msg string, keyvals ...any) {
	fielders := append([]log.Fielder{log.KV{K: "msg", V: msg}}, kvSlice(keyvals)...)
	log.Error(ctx, err, fielders...)
}

func kvSlice(keyvals []any) []log.Fielder {
	var fielders []log.Fielder
	for i := 0; i < len(keyvals); i += 2 {
		k, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		var v any
		if i+1 < len(keyvals) {
			v = keyvals[i+1]
		}
		fielders = append(fielders, log.KV{K: k, V: v})
	}
	return fielders
}
