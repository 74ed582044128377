package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMeter installs a periodic OTLP meter provider as the global one.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, cfg Config, service, version, environment string) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(service, version, environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if iv := cfg.interval(); iv > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(iv))
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return mp, nil
}

// Meter returns the module meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Metrics holds the service instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	probes          metric.Int64Counter
	assignments     metric.Int64Counter
	noCapacity      metric.Int64Counter
	jobDuration     metric.Float64Histogram
	speedFactor     metric.Float64Histogram
	queueLength     metric.Int64Gauge
	compareAttempts metric.Int64Counter
	decisions       metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.probes, err = meter.Int64Counter("voiceid.probe.total",
		metric.WithDescription("Liveness probes by result")); err != nil {
		return nil, fmt.Errorf("creating probe counter: %w", err)
	}
	if m.assignments, err = meter.Int64Counter("voiceid.dispatch.assignments",
		metric.WithDescription("Jobs assigned to a node")); err != nil {
		return nil, fmt.Errorf("creating assignment counter: %w", err)
	}
	if m.noCapacity, err = meter.Int64Counter("voiceid.dispatch.no_capacity",
		metric.WithDescription("Jobs rejected for lack of capacity, by reason")); err != nil {
		return nil, fmt.Errorf("creating no_capacity counter: %w", err)
	}
	if m.jobDuration, err = meter.Float64Histogram("voiceid.job.duration",
		metric.WithDescription("Job processing time"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating job duration histogram: %w", err)
	}
	if m.speedFactor, err = meter.Float64Histogram("voiceid.job.speed_factor",
		metric.WithDescription("Processing time divided by clip length")); err != nil {
		return nil, fmt.Errorf("creating speed factor histogram: %w", err)
	}
	if m.queueLength, err = meter.Int64Gauge("voiceid.job.queue_length",
		metric.WithDescription("Jobs waiting in the node queue")); err != nil {
		return nil, fmt.Errorf("creating queue length gauge: %w", err)
	}
	if m.compareAttempts, err = meter.Int64Counter("voiceid.identify.compare_attempts",
		metric.WithDescription("Comparator invocations by outcome")); err != nil {
		return nil, fmt.Errorf("creating compare counter: %w", err)
	}
	if m.decisions, err = meter.Int64Counter("voiceid.identify.decisions",
		metric.WithDescription("Identification outcomes")); err != nil {
		return nil, fmt.Errorf("creating decision counter: %w", err)
	}
	return &m, nil
}

// NewMetricsOrNop builds instruments on the global meter, returning nil
// (a valid no-op) on failure.
func NewMetricsOrNop() *Metrics {
	m, err := NewMetrics(Meter())
	if err != nil {
		return nil
	}
	return m
}

func (m *Metrics) RecordProbe(ctx context.Context, up bool) {
	if m == nil {
		return
	}
	result := "down"
	if up {
		result = "up"
	}
	m.probes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func (m *Metrics) RecordAssignment(ctx context.Context, node string) {
	if m == nil {
		return
	}
	m.assignments.Add(ctx, 1, metric.WithAttributes(attribute.String("node", node)))
}

// RecordNoCapacity counts a rejection. reason is "no_node", "forward" or
// "queue_full".
func (m *Metrics) RecordNoCapacity(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.noCapacity.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) RecordJob(ctx context.Context, d time.Duration, speedFactor float64, status string) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.jobDuration.Record(ctx, d.Seconds(), attrs)
	if speedFactor > 0 {
		m.speedFactor.Record(ctx, speedFactor, attrs)
	}
}

func (m *Metrics) RecordQueueLength(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.queueLength.Record(ctx, int64(n))
}

func (m *Metrics) RecordCompare(ctx context.Context, ok bool) {
	if m == nil {
		return
	}
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	m.compareAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordDecision counts an engine outcome: "identified", "unknown" or
// "failed".
func (m *Metrics) RecordDecision(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
