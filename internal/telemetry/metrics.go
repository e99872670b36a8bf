// Package telemetry wires OpenTelemetry metrics for the replay service.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const instrumentationName = "github.com/xiaot623/gogo/replayer"

// Setup installs a global meter provider exporting over OTLP gRPC. With an
// empty endpoint the global no-op provider is left in place. The returned
// function flushes and stops the exporter.
func Setup(ctx context.Context, endpoint, serviceName string) (func(context.Context) error, error) {
	logger := slog.Default().With("component", "telemetry")
	if endpoint == "" {
		logger.InfoContext(ctx, "metrics export disabled")
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(15*time.Second),
		)),
	)
	otel.SetMeterProvider(mp)

	logger.InfoContext(ctx, "metrics export enabled", "endpoint", endpoint)
	return mp.Shutdown, nil
}

// Metrics records replay service measurements.
type Metrics struct {
	sessionsOpened metric.Int64Counter
	sessionsActive metric.Int64UpDownCounter
	commands       metric.Int64Counter
	completions    metric.Int64Counter
	fetchFailures  metric.Int64Counter
	fetchDuration  metric.Float64Histogram
}

// NewMetrics creates the instruments on meter. A nil meter uses the global
// provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}

	m := &Metrics{}
	var err error

	if m.sessionsOpened, err = meter.Int64Counter("replay.sessions.opened",
		metric.WithDescription("Replay sessions opened"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, err
	}
	if m.sessionsActive, err = meter.Int64UpDownCounter("replay.sessions.active",
		metric.WithDescription("Replay sessions currently open"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, err
	}
	if m.commands, err = meter.Int64Counter("replay.commands",
		metric.WithDescription("Playback commands handled, by operation"),
		metric.WithUnit("{command}"),
	); err != nil {
		return nil, err
	}
	if m.completions, err = meter.Int64Counter("replay.completions",
		metric.WithDescription("Playbacks that reached the end of the run"),
		metric.WithUnit("{playback}"),
	); err != nil {
		return nil, err
	}
	if m.fetchFailures, err = meter.Int64Counter("replay.fetch.failures",
		metric.WithDescription("Failed replay data loads"),
		metric.WithUnit("{error}"),
	); err != nil {
		return nil, err
	}
	if m.fetchDuration, err = meter.Float64Histogram("replay.fetch.duration",
		metric.WithDescription("Replay data load latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordCommand counts one playback command.
func (m *Metrics) RecordCommand(ctx context.Context, op string) {
	m.commands.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordCompletion counts one playback reaching the end.
func (m *Metrics) RecordCompletion(ctx context.Context) {
	m.completions.Add(ctx, 1)
}

// SessionOpened counts a new session and marks it active.
func (m *Metrics) SessionOpened(ctx context.Context) {
	m.sessionsOpened.Add(ctx, 1)
	m.sessionsActive.Add(ctx, 1)
}

// SessionClosed marks a session inactive.
func (m *Metrics) SessionClosed(ctx context.Context) {
	m.sessionsActive.Add(ctx, -1)
}

// RecordFetch records one replay data load from source.
func (m *Metrics) RecordFetch(ctx context.Context, source string, d time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("source", source))
	m.fetchDuration.Record(ctx, d.Seconds(), attrs)
	if err != nil {
		m.fetchFailures.Add(ctx, 1, attrs)
	}
}
