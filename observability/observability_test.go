package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/701789262a/backend-dailychat/logger"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Endpoint != "localhost:4318" || !cfg.Insecure {
		t.Errorf("endpoint defaults = %q insecure=%v", cfg.Endpoint, cfg.Insecure)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("SampleRate = %v", cfg.SampleRate)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{SampleRate: 2, Interval: "1s"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected sample rate error")
	}
	cfg = Config{SampleRate: 0.5, Interval: "often"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected interval error")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordProbe(ctx, true)
	m.RecordAssignment(ctx, "10.0.0.1")
	m.RecordNoCapacity(ctx, "no_node")
	m.RecordJob(ctx, time.Second, 0.5, "ok")
	m.RecordQueueLength(ctx, 3)
	m.RecordCompare(ctx, false)
	m.RecordDecision(ctx, "unknown")
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background()) //nolint:errcheck

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	m.RecordAssignment(ctx, "10.0.0.1")
	m.RecordAssignment(ctx, "10.0.0.1")
	m.RecordNoCapacity(ctx, "no_node")

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatal(err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if sum, ok := metric.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					got[metric.Name] += dp.Value
				}
			}
		}
	}
	if got["voiceid.dispatch.assignments"] != 2 {
		t.Errorf("assignments = %d", got["voiceid.dispatch.assignments"])
	}
	if got["voiceid.dispatch.no_capacity"] != 1 {
		t.Errorf("no_capacity = %d", got["voiceid.dispatch.no_capacity"])
	}
}

func TestStartAndEndSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer otel.SetTracerProvider(prev)

	_, span := StartSpan(context.Background(), SpanLevel, AttrLevel.Int(2))
	EndSpan(span, errors.New("compare failed"))

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans = %d", len(spans))
	}
	if spans[0].Name != SpanLevel {
		t.Errorf("name = %q", spans[0].Name)
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("status = %v", spans[0].Status.Code)
	}
}

func TestSampler(t *testing.T) {
	if sampler(1).Description() != sdktrace.AlwaysSample().Description() {
		t.Error("rate 1 should always sample")
	}
	if sampler(0).Description() != sdktrace.NeverSample().Description() {
		t.Error("rate 0 should never sample")
	}
}

func TestComponentDisabled(t *testing.T) {
	c := NewComponent(Config{}, "voiceid-node", "dev", "development", logger.Nop())
	if err := c.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h := c.Health(context.Background()); h.Message != "exporters disabled" {
		t.Errorf("health = %+v", h)
	}
}
