package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives validation and schema events. Metrics and OTelMetrics
// implement it; NopRecorder discards everything.
type Recorder interface {
	RecordValidation(message string, ruleIDs []string, d time.Duration)
	RecordCELError(ruleID string)
	RecordConsistencyError(kind string)
	RecordAssembly(err error, d time.Duration)
}

// NopRecorder is a Recorder that does nothing
type NopRecorder struct{}

func (NopRecorder) RecordValidation(string, []string, time.Duration) {}
func (NopRecorder) RecordCELError(string)                            {}
func (NopRecorder) RecordConsistencyError(string)                    {}
func (NopRecorder) RecordAssembly(error, time.Duration)              {}

// MultiRecorder fans every event out to all of its members
type MultiRecorder []Recorder

func (m MultiRecorder) RecordValidation(message string, ruleIDs []string, d time.Duration) {
	for _, r := range m {
		r.RecordValidation(message, ruleIDs, d)
	}
}

func (m MultiRecorder) RecordCELError(ruleID string) {
	for _, r := range m {
		r.RecordCELError(ruleID)
	}
}

func (m MultiRecorder) RecordConsistencyError(kind string) {
	for _, r := range m {
		r.RecordConsistencyError(kind)
	}
}

func (m MultiRecorder) RecordAssembly(err error, d time.Duration) {
	for _, r := range m {
		r.RecordAssembly(err, d)
	}
}

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Validation metrics
	ValidationsTotal   *prometheus.CounterVec
	ValidationDuration *prometheus.HistogramVec
	ViolationsTotal    *prometheus.CounterVec

	// CEL metrics
	CELEvalErrorsTotal *prometheus.CounterVec
	CELProgramsCached  prometheus.Gauge

	// Build-time metrics
	ConsistencyErrorsTotal *prometheus.CounterVec
	SchemaAssembliesTotal  *prometheus.CounterVec
	SchemaAssemblyDuration prometheus.Histogram
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protoguard_validations_total",
				Help: "Total number of validated messages",
			},
			[]string{"message", "result"},
		),
		ValidationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "protoguard_validation_duration_seconds",
				Help:    "Validation duration in seconds",
				Buckets: []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"message"},
		),
		ViolationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protoguard_violations_total",
				Help: "Total number of violations by rule id",
			},
			[]string{"rule_id"},
		),
		CELEvalErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protoguard_cel_eval_errors_total",
				Help: "Total number of CEL evaluation errors",
			},
			[]string{"rule_id"},
		),
		CELProgramsCached: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "protoguard_cel_programs_cached",
				Help: "Number of compiled CEL programs held in the cache",
			},
		),
		ConsistencyErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protoguard_consistency_errors_total",
				Help: "Total number of rule consistency errors by kind",
			},
			[]string{"kind"},
		),
		SchemaAssembliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "protoguard_schema_assemblies_total",
				Help: "Total number of schema assemblies",
			},
			[]string{"result"},
		),
		SchemaAssemblyDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "protoguard_schema_assembly_duration_seconds",
				Help:    "Schema assembly duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	// Register all metrics
	registry.MustRegister(
		m.ValidationsTotal,
		m.ValidationDuration,
		m.ViolationsTotal,
		m.CELEvalErrorsTotal,
		m.CELProgramsCached,
		m.ConsistencyErrorsTotal,
		m.SchemaAssembliesTotal,
		m.SchemaAssemblyDuration,
	)

	return m
}

// RecordValidation counts one validated message and its violations
func (m *Metrics) RecordValidation(message string, ruleIDs []string, d time.Duration) {
	result := "valid"
	if len(ruleIDs) > 0 {
		result = "invalid"
	}
	m.ValidationsTotal.WithLabelValues(message, result).Inc()
	m.ValidationDuration.WithLabelValues(message).Observe(d.Seconds())
	for _, id := range ruleIDs {
		m.ViolationsTotal.WithLabelValues(id).Inc()
	}
}

// RecordCELError counts one CEL evaluation failure
func (m *Metrics) RecordCELError(ruleID string) {
	m.CELEvalErrorsTotal.WithLabelValues(ruleID).Inc()
}

// RecordConsistencyError counts one consistency error
func (m *Metrics) RecordConsistencyError(kind string) {
	m.ConsistencyErrorsTotal.WithLabelValues(kind).Inc()
}

// RecordAssembly counts one schema assembly
func (m *Metrics) RecordAssembly(err error, d time.Duration) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.SchemaAssembliesTotal.WithLabelValues(result).Inc()
	m.SchemaAssemblyDuration.Observe(d.Seconds())
}

// SetCachedPrograms reports the current size of the CEL program cache
func (m *Metrics) SetCachedPrograms(n int) {
	m.CELProgramsCached.Set(float64(n))
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
