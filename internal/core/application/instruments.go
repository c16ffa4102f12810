package application

import (
	"context"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/arkade-os/feekeeper/internal/core/application"

// instruments are bound to the global providers, they are no-ops unless the
// otel sdk has been initialized.
type instruments struct {
	tracer trace.Tracer

	sweeps        metric.Int64Counter
	channels      metric.Int64Counter
	sweepDuration metric.Float64Histogram
}

func newInstruments() *instruments {
	meter := otel.Meter(instrumentationName)

	sweeps, err := meter.Int64Counter(
		"feekeeper.sweeps",
		metric.WithDescription("Number of completed sweeps"),
	)
	if err != nil {
		log.WithError(err).Warn("failed to create sweeps counter")
	}
	channels, err := meter.Int64Counter(
		"feekeeper.channels.reconciled",
		metric.WithDescription("Number of channels reconciled, by outcome"),
	)
	if err != nil {
		log.WithError(err).Warn("failed to create channels counter")
	}
	sweepDuration, err := meter.Float64Histogram(
		"feekeeper.sweep.duration",
		metric.WithDescription("Duration of a sweep"),
		metric.WithUnit("s"),
	)
	if err != nil {
		log.WithError(err).Warn("failed to create sweep duration histogram")
	}

	return &instruments{
		tracer:        otel.Tracer(instrumentationName),
		sweeps:        sweeps,
		channels:      channels,
		sweepDuration: sweepDuration,
	}
}

func (i *instruments) recordChannel(ctx context.Context, result ChannelResult) {
	if i.channels == nil {
		return
	}
	attrs := []attribute.KeyValue{attribute.String("outcome", string(result.Outcome))}
	if result.Outcome != OutcomeFailed && result.Outcome != OutcomeSkipped {
		attrs = append(attrs, attribute.String("tier", result.Tier.String()))
	}
	i.channels.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (i *instruments) recordSweep(ctx context.Context, report SweepReport) {
	attrs := metric.WithAttributes(attribute.Bool("list_failed", report.ListFailed))
	if i.sweeps != nil {
		i.sweeps.Add(ctx, 1, attrs)
	}
	if i.sweepDuration != nil {
		i.sweepDuration.Record(ctx, report.Duration.Seconds(), attrs)
	}
}
