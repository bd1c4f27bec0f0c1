package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeterProvider creates a test meter provider with a manual reader
func setupTestMeterProvider(t *testing.T) *metric.ManualReader {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		if err := provider.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down provider: %v", err)
		}
	})
	return reader
}

func collectNames(t *testing.T, reader *metric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestNewOTelMetrics(t *testing.T) {
	setupTestMeterProvider(t)

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v, want nil", err)
	}
	if m.validationsTotal == nil || m.celEvalErrors == nil || m.assemblyDuration == nil {
		t.Error("instruments not initialized")
	}
}

func TestOTelMetrics_Record(t *testing.T) {
	reader := setupTestMeterProvider(t)

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	m.RecordValidation("acme.User", []string{"required", "string.email"}, 2*time.Millisecond)
	m.RecordCELError("user.age")
	m.RecordConsistencyError("OverlappingLists")
	m.RecordAssembly(errors.New("missing"), time.Millisecond)

	metrics := collectNames(t, reader)
	for _, name := range []string{
		"protoguard.validations",
		"protoguard.validation.duration",
		"protoguard.violations",
		"protoguard.cel.eval_errors",
		"protoguard.consistency_errors",
		"protoguard.schema.assemblies",
		"protoguard.schema.assembly.duration",
	} {
		if _, ok := metrics[name]; !ok {
			t.Errorf("metric %s was not recorded", name)
		}
	}

	violations, ok := metrics["protoguard.violations"].Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("violations has unexpected data type %T", metrics["protoguard.violations"].Data)
	}
	var total int64
	for _, dp := range violations.DataPoints {
		total += dp.Value
	}
	if total != 2 {
		t.Errorf("violations total = %d, want 2", total)
	}
}
