// Package observability provides structured logging, Prometheus and
// OpenTelemetry metrics, and tracing for the validation engine.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stderr)
//	logger.WithField("rule_id", id).Warn("cel evaluation failed")
//
// # Metrics
//
// Metrics and OTelMetrics both implement Recorder, the sink used by the
// validation and schema packages:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	v, err := validation.New(md, rules, validation.WithRecorder(metrics))
//
// # Tracing
//
// InitOTel installs OTLP gRPC exporters for traces and metrics. StartSpan
// and EndSpan wrap the package tracer.
package observability
