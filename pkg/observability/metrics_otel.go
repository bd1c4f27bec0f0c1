package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/platinummonkey/protoguard"

// OTelMetrics holds OpenTelemetry metric instruments. It mirrors Metrics for
// deployments that export through an OTLP collector instead of scraping.
type OTelMetrics struct {
	validationsTotal   metric.Int64Counter
	validationDuration metric.Float64Histogram
	violationsTotal    metric.Int64Counter

	celEvalErrors     metric.Int64Counter
	consistencyErrors metric.Int64Counter

	assembliesTotal  metric.Int64Counter
	assemblyDuration metric.Float64Histogram
}

// NewOTelMetrics creates the instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter(instrumentationName)

	m := &OTelMetrics{}
	var err error

	m.validationsTotal, err = meter.Int64Counter(
		"protoguard.validations",
		metric.WithDescription("Total number of validated messages"),
		metric.WithUnit("{message}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validations counter: %w", err)
	}

	m.validationDuration, err = meter.Float64Histogram(
		"protoguard.validation.duration",
		metric.WithDescription("Validation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation duration histogram: %w", err)
	}

	m.violationsTotal, err = meter.Int64Counter(
		"protoguard.violations",
		metric.WithDescription("Total number of violations"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create violations counter: %w", err)
	}

	m.celEvalErrors, err = meter.Int64Counter(
		"protoguard.cel.eval_errors",
		metric.WithDescription("Total number of CEL evaluation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create cel error counter: %w", err)
	}

	m.consistencyErrors, err = meter.Int64Counter(
		"protoguard.consistency_errors",
		metric.WithDescription("Total number of rule consistency errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consistency error counter: %w", err)
	}

	m.assembliesTotal, err = meter.Int64Counter(
		"protoguard.schema.assemblies",
		metric.WithDescription("Total number of schema assemblies"),
		metric.WithUnit("{assembly}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assembly counter: %w", err)
	}

	m.assemblyDuration, err = meter.Float64Histogram(
		"protoguard.schema.assembly.duration",
		metric.WithDescription("Schema assembly duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create assembly duration histogram: %w", err)
	}

	return m, nil
}

// RecordValidation records one validated message and its violations
func (m *OTelMetrics) RecordValidation(message string, ruleIDs []string, d time.Duration) {
	ctx := context.Background()
	result := "valid"
	if len(ruleIDs) > 0 {
		result = "invalid"
	}
	attrs := metric.WithAttributes(
		attribute.String("message", message),
		attribute.String("result", result),
	)
	m.validationsTotal.Add(ctx, 1, attrs)
	m.validationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("message", message)))
	for _, id := range ruleIDs {
		m.violationsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("rule_id", id)))
	}
}

// RecordCELError records one CEL evaluation failure
func (m *OTelMetrics) RecordCELError(ruleID string) {
	m.celEvalErrors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("rule_id", ruleID)))
}

// RecordConsistencyError records one consistency error
func (m *OTelMetrics) RecordConsistencyError(kind string) {
	m.consistencyErrors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordAssembly records one schema assembly
func (m *OTelMetrics) RecordAssembly(err error, d time.Duration) {
	ctx := context.Background()
	result := "success"
	if err != nil {
		result = "error"
	}
	m.assembliesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	m.assemblyDuration.Record(ctx, d.Seconds())
}
