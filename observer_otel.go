package flight

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const otelInstrumentationName = "github.com/goforj/flight"

type otelObserver struct {
	opCount    metric.Int64Counter
	opDuration metric.Float64Histogram
}

// NewOTelObserver records an operation counter and a duration histogram with
// meters from provider. Keys are not recorded as attributes.
// @group Observability
func NewOTelObserver(provider metric.MeterProvider) (Observer, error) {
	meter := provider.Meter(otelInstrumentationName)

	opCount, err := meter.Int64Counter(
		"flight.op.count",
		metric.WithDescription("Total number of flight operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("create op count metric: %w", err)
	}
	opDuration, err := meter.Float64Histogram(
		"flight.op.duration",
		metric.WithDescription("Time spent in flight operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create op duration metric: %w", err)
	}
	return &otelObserver{opCount: opCount, opDuration: opDuration}, nil
}

func (o *otelObserver) OnFlightOp(ctx context.Context, op string, _ string, hit bool, err error, dur time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("hit", hit),
		attribute.Bool("error", err != nil),
	)
	o.opCount.Add(ctx, 1, attrs)
	o.opDuration.Record(ctx, dur.Seconds(), attrs)
}
