package instrumentation

import (
	"context"
	"testing"
	"time"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "test-service", Enabled: false})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if provider.Enabled() {
		t.Error("expected provider to be disabled")
	}
	if provider.Metrics() == nil {
		t.Error("expected metrics to be non-nil even when disabled")
	}
	if provider.ServesPrometheus() {
		t.Error("disabled provider must not serve prometheus")
	}
	if provider.Tracer("test") == nil {
		t.Error("expected a no-op tracer")
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		t.Errorf("expected no error on shutdown, got %v", err)
	}
}

func TestNewProvider_PrometheusExporter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:     "test-service",
		ServiceVersion:  "1.0.0",
		Enabled:         true,
		MetricsExporter: ExporterPrometheus,
		TracingExporter: ExporterNone,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if !provider.Enabled() || !provider.ServesPrometheus() {
		t.Error("expected an enabled prometheus provider")
	}
	provider.Metrics().RecordRetryAttempt(ctx, "events.list", OutcomeSuccess, "")
}

func TestNewProvider_StdoutExporter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := NewProvider(ctx, Config{
		ServiceName:       "test-service",
		Enabled:           true,
		MetricsExporter:   ExporterStdout,
		TracingExporter:   ExporterStdout,
		TraceSamplingRate: 1,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	if provider.ServesPrometheus() {
		t.Error("stdout exporter should not serve prometheus")
	}
}

func TestNewProvider_InvalidConfig(t *testing.T) {
	configs := map[string]Config{
		"metrics exporter": {Enabled: true, MetricsExporter: "invalid"},
		"tracing exporter": {Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: "invalid"},
		"otlp no endpoint": {Enabled: true, MetricsExporter: ExporterPrometheus, TracingExporter: ExporterOTLP},
	}

	for name, config := range configs {
		t.Run(name, func(t *testing.T) {
			if _, err := NewProvider(context.Background(), config); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
