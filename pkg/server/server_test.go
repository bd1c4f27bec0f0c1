package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/protoguard/pkg/httputil"
	"github.com/platinummonkey/protoguard/pkg/middleware"
	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/protosource"
	"github.com/platinummonkey/protoguard/pkg/validation"
)

const accountProto = `syntax = "proto3";
package acme.v1;

message Account {
  // @protoguard:string.min_len:3
  string id = 1;
  // @protoguard:string.format:email
  string email = 2;
  // @protoguard:map.keys.string.min_len:1
  map<string, int32> limits = 3;
}

message Broken {
  // @protoguard:string.min_len:5
  // @protoguard:string.max_len:2
  string name = 1;
}
`

func compile(t *testing.T) *protosource.Result {
	t.Helper()
	res, err := protosource.NewCompiler(
		protosource.WithSources(map[string]string{"acme/v1/account.proto": accountProto}),
	).Compile(context.Background(), "acme/v1/account.proto")
	require.NoError(t, err)
	return res
}

func newServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s, err := New(compile(t), opts...)
	require.NoError(t, err)
	return s
}

func do(s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestServer_RegisterRoutes(t *testing.T) {
	s := newServer(t, WithMetricsRegistry(prometheus.NewRegistry()))

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/healthz"},
		{http.MethodGet, "/metrics"},
		{http.MethodGet, "/v1/types"},
		{http.MethodPost, "/v1/validate/acme.v1.Account"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			var match mux.RouteMatch
			assert.True(t, s.router.Match(req, &match), "route %s %s should be registered", tt.method, tt.path)
		})
	}
}

func TestServer_Healthz(t *testing.T) {
	rec := do(newServer(t), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(httputil.RequestIDHeader))

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Empty(t, status.Dependencies)
}

func TestServer_ListTypes(t *testing.T) {
	rec := do(newServer(t), http.MethodGet, "/v1/types", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TypesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"acme.v1.Account", "acme.v1.Broken"}, resp.Types)
}

func TestServer_Validate(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name    string
		path    string
		body    string
		status  int
		valid   bool
		ruleIDs []string
	}{
		{"valid", "/v1/validate/acme.v1.Account", `{"id": "acc-1", "email": "a@example.com"}`, http.StatusOK, true, nil},
		{"violations", "/v1/validate/acme.v1.Account", `{"id": "a", "email": "nope", "limits": {"": 1}}`, http.StatusOK, false,
			[]string{"string.min_len", "string.email", "string.min_len"}},
		{"unknown type", "/v1/validate/acme.v1.Missing", `{}`, http.StatusNotFound, false, nil},
		{"field is not a type", "/v1/validate/acme.v1.Account.id", `{}`, http.StatusNotFound, false, nil},
		{"malformed body", "/v1/validate/acme.v1.Account", `{"id": 7}`, http.StatusBadRequest, false, nil},
		{"unknown field", "/v1/validate/acme.v1.Account", `{"nickname": "x"}`, http.StatusBadRequest, false, nil},
		{"inconsistent rules", "/v1/validate/acme.v1.Broken", `{}`, http.StatusInternalServerError, false, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				var resp httputil.ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.NotEmpty(t, resp.Error)
				assert.NotEmpty(t, resp.RequestID)
				return
			}

			var resp ValidateResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.valid, resp.Valid)
			var ids []string
			for _, v := range resp.Violations {
				ids = append(ids, v.RuleID)
			}
			assert.Equal(t, tt.ruleIDs, ids)
		})
	}
}

func TestServer_ValidateReportsPaths(t *testing.T) {
	rec := do(newServer(t), http.MethodPost, "/v1/validate/acme.v1.Account", `{"id": "acc-1", "email": "a@example.com", "limits": {"": 1}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ValidateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Violations, 1)
	assert.Equal(t, `limits[""]`, resp.Violations[0].Field)
	assert.True(t, resp.Violations[0].ForKey)
	assert.Equal(t, "acme.v1.Account", resp.Type)
}

func TestServer_BodyTooLarge(t *testing.T) {
	s := newServer(t, WithMaxBodyBytes(8))
	rec := do(s, http.MethodPost, "/v1/validate/acme.v1.Account", `{"id": "a-rather-long-identifier"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestServer_ValidatorCache(t *testing.T) {
	s := newServer(t, WithCacheSize(1))
	ctx := context.Background()

	var wg sync.WaitGroup
	built := make([]*validation.Validator, 8)
	for i := range built {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.Validator(ctx, "acme.v1.Account")
			assert.NoError(t, err)
			built[i] = v
		}(i)
	}
	wg.Wait()
	for _, v := range built {
		assert.Same(t, built[0], v)
	}
	assert.Equal(t, 1, s.validators.Len())

	assert.Equal(t, 1, s.validators.Len())
}

func TestServer_ValidatorCachesBuildErrors(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()

	_, err := s.Validator(ctx, "acme.v1.Broken")
	_, ok := validation.AsConsistencyErrors(err)
	require.True(t, ok)

	cached, ok := s.validators.Get("acme.v1.Broken")
	require.True(t, ok)
	assert.Nil(t, cached.v)
	assert.Equal(t, err, cached.err)

	again, err2 := s.Validator(ctx, "acme.v1.Broken")
	assert.Nil(t, again)
	assert.Equal(t, err, err2)

	_, err = s.Validator(ctx, "acme.v1.Missing")
	assert.ErrorIs(t, err, protosource.ErrTypeNotFound)
	assert.False(t, s.validators.Contains("acme.v1.Missing"))
	assert.Equal(t, 1, s.validators.Len())
}

func TestServer_Metrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	s := newServer(t,
		WithMetricsRegistry(registry),
		WithValidatorOptions(validation.WithRecorder(observability.NewMetrics(registry))),
	)

	rec := do(s, http.MethodPost, "/v1/validate/acme.v1.Account", `{"id": "a"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "string.min_len")
}

func TestServer_RateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Minute})
	s := newServer(t, WithRateLimiter(limiter))

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/v1/types", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(s, http.MethodGet, "/v1/types", "").Code)

	// health checks are not limited
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/healthz", "").Code)
}

func TestServer_HealthzWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	s := newServer(t, WithRateLimiter(middleware.NewDistributedRateLimiter(client, nil, "test")))

	health := func() HealthStatus {
		rec := do(s, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		return status
	}

	status := health()
	assert.Equal(t, StatusHealthy, status.Status)
	assert.Equal(t, StatusHealthy, status.Dependencies["rate_limit_store"].Status)

	mr.Close()
	status = health()
	assert.Equal(t, StatusDegraded, status.Status)
	assert.NotEmpty(t, status.Dependencies["rate_limit_store"].Message)
}
