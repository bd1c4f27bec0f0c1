package celbridge

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/formats"
)

// DefaultCacheSize is the number of compiled programs kept by an Engine
const DefaultCacheSize = 1024

// Engine is a cel-go backed Compiler. Compiled programs are cached by
// expression text and concurrent compilations of the same expression are
// collapsed into one.
type Engine struct {
	env   *cel.Env
	cache *lru.Cache[string, Program]
	group singleflight.Group
}

type engineConfig struct {
	cacheSize   int
	descriptors []any
	envOptions  []cel.EnvOption
}

// EngineOption configures NewEngine
type EngineOption func(*engineConfig)

// WithCacheSize sets the compiled program cache size
func WithCacheSize(size int) EngineOption {
	return func(c *engineConfig) {
		c.cacheSize = size
	}
}

// WithFileDescriptors makes message types from files available to
// expressions, so `this` may be a message of those types
func WithFileDescriptors(files ...protoreflect.FileDescriptor) EngineOption {
	return func(c *engineConfig) {
		for _, f := range files {
			c.descriptors = append(c.descriptors, f)
		}
	}
}

// WithEnvOptions appends raw cel-go environment options
func WithEnvOptions(opts ...cel.EnvOption) EngineOption {
	return func(c *engineConfig) {
		c.envOptions = append(c.envOptions, opts...)
	}
}

// NewEngine builds the CEL environment
func NewEngine(opts ...EngineOption) (*Engine, error) {
	cfg := &engineConfig{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.cacheSize <= 0 {
		cfg.cacheSize = DefaultCacheSize
	}

	envOpts := []cel.EnvOption{
		cel.Variable("this", cel.DynType),
		cel.Variable("now", cel.TimestampType),
		ext.Strings(),
		formatFunctions(),
	}
	if len(cfg.descriptors) > 0 {
		envOpts = append(envOpts, cel.TypeDescs(cfg.descriptors...))
	}
	envOpts = append(envOpts, cfg.envOptions...)

	env, err := cel.NewEnv(envOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create cel environment: %w", err)
	}

	cache, err := lru.New[string, Program](cfg.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create program cache: %w", err)
	}

	return &Engine{env: env, cache: cache}, nil
}

// Compile parses, type-checks and plans expr
func (e *Engine) Compile(expr string) (Program, error) {
	if prog, ok := e.cache.Get(expr); ok {
		return prog, nil
	}

	v, err, _ := e.group.Do(expr, func() (any, error) {
		if prog, ok := e.cache.Get(expr); ok {
			return prog, nil
		}
		prog, err := e.compile(expr)
		if err != nil {
			return nil, err
		}
		e.cache.Add(expr, prog)
		return prog, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Program), nil
}

func (e *Engine) compile(expr string) (Program, error) {
	ast, iss := e.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: %s", ErrCompile, iss.Err())
	}
	switch out := ast.OutputType().String(); out {
	case "bool", "dyn":
	default:
		return nil, fmt.Errorf("%w: expression %q has type %s, want bool", ErrCompile, expr, out)
	}

	prg, err := e.env.Program(ast, cel.EvalOptions(cel.OptOptimize))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCompile, err)
	}
	return &program{expr: expr, prg: prg}, nil
}

// CachedPrograms returns the number of programs currently cached
func (e *Engine) CachedPrograms() int {
	return e.cache.Len()
}

type program struct {
	expr string
	prg  cel.Program
}

func (p *program) Eval(ctx Context) (bool, error) {
	out, _, err := p.prg.Eval(map[string]any{
		"this": ctx.This,
		"now":  ctx.Now,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrEval, err)
	}
	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("%w: got %s", ErrNonBool, out.Type())
	}
	return bool(b), nil
}

func formatFunctions() cel.EnvOption {
	unary := func(name string, check func(string) bool) cel.EnvOption {
		return cel.Function(name,
			cel.MemberOverload("string_"+name, []*cel.Type{cel.StringType}, cel.BoolType,
				cel.UnaryBinding(func(v ref.Val) ref.Val {
					s, ok := v.(types.String)
					if !ok {
						return types.MaybeNoSuchOverloadErr(v)
					}
					return types.Bool(check(string(s)))
				}),
			),
		)
	}
	return cel.Lib(&formatLib{opts: []cel.EnvOption{
		unary("isEmail", formats.IsEmail),
		unary("isHostname", formats.IsHostname),
		unary("isIp", func(s string) bool { return formats.IsIP(s, formats.AnyIP) }),
		unary("isUri", formats.IsURI),
		unary("isUriRef", formats.IsURIRef),
	}})
}

type formatLib struct {
	opts []cel.EnvOption
}

func (l *formatLib) CompileOptions() []cel.EnvOption {
	return l.opts
}

func (l *formatLib) ProgramOptions() []cel.ProgramOption {
	return nil
}
