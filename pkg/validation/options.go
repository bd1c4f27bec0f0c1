package validation

import (
	"sync"
	"time"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/celbridge"
	"github.com/platinummonkey/protoguard/pkg/lookup"
	"github.com/platinummonkey/protoguard/pkg/observability"
)

const (
	// DefaultMaxDepth bounds message recursion
	DefaultMaxDepth = 64
	// DefaultConcurrency bounds the goroutines of ValidateAll
	DefaultConcurrency = 8
)

// env is the immutable configuration shared by every validator built with
// the same options
type env struct {
	compiler    celbridge.Compiler
	files       []protoreflect.FileDescriptor
	logger      *observability.Logger
	recorder    observability.Recorder
	tolerance   lookup.Tolerance
	maxDepth    int
	seenBudget  int
	concurrency int
	now         func() time.Time

	compilerOnce sync.Once
	compilerErr  error
}

// Option configures validators
type Option func(*env)

// WithCompiler sets the CEL compiler. Without one, a cel-go Engine is created
// on first use.
func WithCompiler(c celbridge.Compiler) Option {
	return func(e *env) {
		e.compiler = c
	}
}

// WithLogger sets the logger used for CEL evaluation diagnostics
func WithLogger(l *observability.Logger) Option {
	return func(e *env) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder sets the metrics sink
func WithRecorder(r observability.Recorder) Option {
	return func(e *env) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithTolerance sets the float equality tolerance
func WithTolerance(t lookup.Tolerance) Option {
	return func(e *env) {
		e.tolerance = t
	}
}

// WithMaxDepth bounds message recursion
func WithMaxDepth(n int) Option {
	return func(e *env) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// WithUniqueBudget caps the memory, in bytes, of one uniqueness check
func WithUniqueBudget(bytes int) Option {
	return func(e *env) {
		if bytes > 0 {
			e.seenBudget = bytes
		}
	}
}

// WithConcurrency bounds the goroutines used by ValidateAll
func WithConcurrency(n int) Option {
	return func(e *env) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithClock overrides the source of "now" for timestamp rules and CEL
func WithClock(now func() time.Time) Option {
	return func(e *env) {
		if now != nil {
			e.now = now
		}
	}
}

func newEnv(opts []Option) *env {
	e := &env{
		logger:      observability.NewNopLogger(),
		recorder:    observability.NopRecorder{},
		maxDepth:    DefaultMaxDepth,
		seenBudget:  lookup.DefaultSeenBudget,
		concurrency: DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// celCompiler returns the configured compiler or lazily builds an Engine that
// knows the message types of e.files
func (e *env) celCompiler() (celbridge.Compiler, error) {
	e.compilerOnce.Do(func() {
		if e.compiler != nil {
			return
		}
		engine, err := celbridge.NewEngine(celbridge.WithFileDescriptors(e.files...))
		if err != nil {
			e.compilerErr = err
			return
		}
		e.compiler = engine
	})
	return e.compiler, e.compilerErr
}
