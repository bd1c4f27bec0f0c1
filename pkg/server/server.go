package server

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/platinummonkey/protoguard/pkg/httputil"
	"github.com/platinummonkey/protoguard/pkg/middleware"
	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/protosource"
	"github.com/platinummonkey/protoguard/pkg/validation"
)

const (
	defaultCacheSize    = 256
	defaultMaxBodyBytes = 4 << 20
	healthTimeout       = 5 * time.Second
)

// Server serves validation requests for one compiled set of files
type Server struct {
	result    *protosource.Result
	unmarshal protojson.UnmarshalOptions
	types     []string

	router  *mux.Router
	handler http.Handler

	logger       *observability.Logger
	limiter      middleware.Limiter
	registry     *prometheus.Registry
	validatorOps []validation.Option
	cacheSize    int
	maxBodyBytes int64

	validators *lru.Cache[protoreflect.FullName, builtValidator]
	group      singleflight.Group
}

// builtValidator is a cache entry. Sources are immutable once loaded, so a
// failed build is cached as well.
type builtValidator struct {
	v   *validation.Validator
	err error
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(logger *observability.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRateLimiter limits /v1 requests per client IP
func WithRateLimiter(limiter middleware.Limiter) Option {
	return func(s *Server) {
		s.limiter = limiter
	}
}

// WithMetricsRegistry serves the registry on /metrics
func WithMetricsRegistry(registry *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = registry
	}
}

// WithValidatorOptions sets the options every validator is built with
func WithValidatorOptions(opts ...validation.Option) Option {
	return func(s *Server) {
		s.validatorOps = append(s.validatorOps, opts...)
	}
}

// WithCacheSize bounds the number of cached validators
func WithCacheSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.cacheSize = n
		}
	}
}

// WithMaxBodyBytes bounds request bodies
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// New creates a server for the compiled result
func New(result *protosource.Result, opts ...Option) (*Server, error) {
	s := &Server{
		result:       result,
		router:       mux.NewRouter(),
		logger:       observability.NewNopLogger(),
		cacheSize:    defaultCacheSize,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}

	files, err := result.Registry()
	if err != nil {
		return nil, err
	}
	s.unmarshal = protojson.UnmarshalOptions{Resolver: dynamicpb.NewTypes(files)}

	for _, md := range result.MessageTypes() {
		s.types = append(s.types, string(md.FullName()))
	}
	sort.Strings(s.types)

	s.validators, err = lru.New[protoreflect.FullName, builtValidator](s.cacheSize)
	if err != nil {
		return nil, err
	}

	s.setupRoutes()
	s.handler = otelhttp.NewHandler(httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(s.logger),
		httputil.RecoveryMiddleware(s.logger),
		httputil.MaxBytesMiddleware(s.maxBodyBytes),
	)(s.router), "protoguard")
	return s, nil
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	if s.registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/v1").Subrouter()
	if s.limiter != nil {
		v1.Use(middleware.NewRateLimitMiddleware(s.limiter, s.logger).Handler)
	}
	v1.HandleFunc("/types", s.listTypes).Methods(http.MethodGet)
	v1.HandleFunc("/validate/{type}", s.validate).Methods(http.MethodPost)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Validator returns the cached validator for a message type, building it on
// first use
func (s *Server) Validator(ctx context.Context, name protoreflect.FullName) (*validation.Validator, error) {
	if b, ok := s.validators.Get(name); ok {
		return b.v, b.err
	}

	result, err, _ := s.group.Do(string(name), func() (interface{}, error) {
		if b, ok := s.validators.Get(name); ok {
			return b.v, b.err
		}
		// unknown names are not cached so clients cannot evict real entries
		md, err := s.result.FindMessage(name)
		if err != nil {
			return nil, err
		}

		_, span := observability.StartSpan(ctx, "server.build_validator")
		v, err := validation.New(md, s.result.Rules, s.validatorOps...)
		observability.EndSpan(span, err)
		s.validators.Add(name, builtValidator{v: v, err: err})
		if err != nil {
			return nil, err
		}

		s.logger.WithField("type", string(name)).Debug("Built validator")
		return v, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*validation.Validator), nil
}

// HealthChecker is implemented by limiters backed by an external store
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Health statuses
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// HealthStatus is the body of GET /healthz
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus reports one external dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// healthz reports the service as degraded, not down, when the rate limit
// store is unreachable, since the limiter then fails open
func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Status: StatusHealthy, Timestamp: time.Now()}

	if hc, ok := s.limiter.(HealthChecker); ok {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		start := time.Now()
		dep := DependencyStatus{Status: StatusHealthy}
		if err := hc.HealthCheck(ctx); err != nil {
			s.logger.WithError(err).Warn("Rate limit store unavailable")
			dep.Status = StatusDegraded
			dep.Message = err.Error()
			status.Status = StatusDegraded
		}
		dep.LatencyMS = time.Since(start).Milliseconds()
		status.Dependencies = map[string]DependencyStatus{"rate_limit_store": dep}
	}
	httputil.WriteJSONOrError(w, http.StatusOK, status, "failed to encode health")
}

// isNotFound reports whether err came from looking up an unknown type
func isNotFound(err error) bool {
	return errors.Is(err, protosource.ErrTypeNotFound)
}
