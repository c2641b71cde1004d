package submit

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/roach88/posync/internal/order"
)

const instrumentationName = "github.com/roach88/posync/internal/submit"

// Traced decorates a Submitter with a span per call and outcome counters.
type Traced struct {
	inner       Submitter
	tracer      trace.Tracer
	accepted    metric.Int64Counter
	rejected    metric.Int64Counter
	unavailable metric.Int64Counter
}

// TracedOption configures a Traced submitter.
type TracedOption func(*Traced)

// WithTracerProvider sets where spans go.
func WithTracerProvider(tp trace.TracerProvider) TracedOption {
	return func(t *Traced) {
		if tp != nil {
			t.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithMeterProvider sets where outcome counters are recorded.
func WithMeterProvider(mp metric.MeterProvider) TracedOption {
	return func(t *Traced) {
		if mp != nil {
			t.setMeter(mp.Meter(instrumentationName))
		}
	}
}

// NewTraced wraps inner. Without options spans and counters are no-ops.
func NewTraced(inner Submitter, opts ...TracedOption) *Traced {
	t := &Traced{
		inner:  inner,
		tracer: nooptrace.NewTracerProvider().Tracer(instrumentationName),
	}
	t.setMeter(metricnoop.NewMeterProvider().Meter(instrumentationName))
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
	return t
}

func (t *Traced) setMeter(m metric.Meter) {
	t.accepted = counter(m, "posync.submit.accepted", "Orders acknowledged by the remote system")
	t.rejected = counter(m, "posync.submit.rejected", "Orders refused by the remote system")
	t.unavailable = counter(m, "posync.submit.network_unavailable", "Submissions that could not reach the remote system")
}

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		return metricnoop.Int64Counter{}
	}
	return c
}

// Submit implements Submitter.
func (t *Traced) Submit(ctx context.Context, orders []order.PendingOrder, opts Options) (Result, error) {
	ctx, span := t.tracer.Start(ctx, "submit.Submit", trace.WithAttributes(
		attribute.Int("orders.count", len(orders)),
		attribute.Bool("submit.silent", opts.Silent),
		attribute.Int64("submit.timeout_ms", opts.Timeout.Milliseconds()),
	))
	defer span.End()

	res, err := t.inner.Submit(ctx, orders, opts)

	t.accepted.Add(ctx, int64(len(res.Successful)))
	t.rejected.Add(ctx, int64(len(res.Failed)))

	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
	case IsNetworkUnavailable(err):
		t.unavailable.Add(ctx, 1)
		span.SetAttributes(attribute.Bool("submit.network_unavailable", true))
		span.SetStatus(codes.Error, "network unavailable")
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.SetAttributes(
		attribute.Int("orders.accepted", len(res.Successful)),
		attribute.Int("orders.rejected", len(res.Failed)),
	)
	return res, err
}
