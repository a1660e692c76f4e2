// Package observe forwards stopwatch events to logs and traces.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/psantana5/regtimer/internal/logging"
	"github.com/psantana5/regtimer/pkg/stopwatch"
)

// LogObserver logs every stop at DEBUG
type LogObserver struct {
	Logger *logging.Logger
}

// ObserveStop implements stopwatch.Observer
func (o LogObserver) ObserveStop(e stopwatch.Event) {
	if o.Logger == nil || !o.Logger.Enabled(logging.DEBUG) {
		return
	}
	fields := logging.Fields{"seconds": e.Elapsed.Seconds()}
	if e.Named {
		fields["label"] = e.Label
	}
	o.Logger.Debug("stopwatch stopped", fields)
}

// SpanObserver records one span per labeled stop. Unlabeled stops are
// skipped.
type SpanObserver struct {
	Tracer trace.Tracer
	Ctx    context.Context // parent context, may be nil
	Attrs  []attribute.KeyValue
}

// ObserveStop implements stopwatch.Observer
func (o SpanObserver) ObserveStop(e stopwatch.Event) {
	if o.Tracer == nil || !e.Named {
		return
	}
	ctx := o.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	attrs := append([]attribute.KeyValue{
		attribute.String("regtimer.label", e.Label),
		attribute.Float64("regtimer.seconds", e.Elapsed.Seconds()),
	}, o.Attrs...)

	_, span := o.Tracer.Start(ctx, e.Label,
		trace.WithTimestamp(e.Start.Time()),
		trace.WithAttributes(attrs...),
	)
	span.End(trace.WithTimestamp(e.Stop.Time()))
}

type multi []stopwatch.Observer

func (m multi) ObserveStop(e stopwatch.Event) {
	for _, o := range m {
		o.ObserveStop(e)
	}
}

// Multi fans events out to every non-nil observer
func Multi(observers ...stopwatch.Observer) stopwatch.Observer {
	var m multi
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	return m
}
