package observability

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if metrics.ValidationsTotal == nil || metrics.ViolationsTotal == nil || metrics.CELEvalErrorsTotal == nil {
		t.Error("validation metrics are nil")
	}

	t.Run("registering twice panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("Expected duplicate registration to panic")
			}
		}()
		NewMetrics(registry)
	})
}

func TestMetrics_RecordValidation(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordValidation("acme.User", nil, time.Millisecond)
	metrics.RecordValidation("acme.User", []string{"string.min_len", "string.min_len", "required"}, time.Millisecond)

	if got := testutil.ToFloat64(metrics.ValidationsTotal.WithLabelValues("acme.User", "valid")); got != 1 {
		t.Errorf("valid validations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ValidationsTotal.WithLabelValues("acme.User", "invalid")); got != 1 {
		t.Errorf("invalid validations = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ViolationsTotal.WithLabelValues("string.min_len")); got != 2 {
		t.Errorf("string.min_len violations = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(metrics.ValidationDuration); got != 1 {
		t.Errorf("duration series = %v, want 1", got)
	}
}

func TestMetrics_BuildTimeCounters(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordCELError("user.age")
	metrics.RecordConsistencyError("ContradictoryInput")
	metrics.RecordAssembly(nil, time.Millisecond)
	metrics.RecordAssembly(errors.New("missing"), time.Millisecond)
	metrics.SetCachedPrograms(3)

	if got := testutil.ToFloat64(metrics.CELEvalErrorsTotal.WithLabelValues("user.age")); got != 1 {
		t.Errorf("cel errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.ConsistencyErrorsTotal.WithLabelValues("ContradictoryInput")); got != 1 {
		t.Errorf("consistency errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.SchemaAssembliesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed assemblies = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.CELProgramsCached); got != 3 {
		t.Errorf("cached programs = %v, want 3", got)
	}
}

func TestMultiRecorder(t *testing.T) {
	a := NewMetrics(prometheus.NewRegistry())
	b := NewMetrics(prometheus.NewRegistry())
	rec := MultiRecorder{a, b, NopRecorder{}}

	rec.RecordCELError("x")
	rec.RecordConsistencyError("CelError")
	rec.RecordValidation("m", []string{"r"}, 0)
	rec.RecordAssembly(nil, 0)

	for _, m := range []*Metrics{a, b} {
		if got := testutil.ToFloat64(m.CELEvalErrorsTotal.WithLabelValues("x")); got != 1 {
			t.Errorf("cel errors = %v, want 1", got)
		}
		if got := testutil.ToFloat64(m.ViolationsTotal.WithLabelValues("r")); got != 1 {
			t.Errorf("violations = %v, want 1", got)
		}
	}
}

func TestRegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordCELError("user.age")

	mux := http.NewServeMux()
	RegisterMetricsEndpoint(mux, registry)

	server := httptest.NewServer(mux)
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !strings.Contains(string(body), `protoguard_cel_eval_errors_total{rule_id="user.age"} 1`) {
		t.Errorf("metrics output missing cel counter:\n%s", body)
	}
}
