package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/protoguard/pkg/celbridge"
	"github.com/platinummonkey/protoguard/pkg/config"
	"github.com/platinummonkey/protoguard/pkg/observability"
	"github.com/platinummonkey/protoguard/pkg/protosource"
	"github.com/platinummonkey/protoguard/pkg/validation"
)

// app holds the state shared by every command of one invocation
type app struct {
	configPath  string
	logLevel    string
	metricsAddr string
	importPaths []string

	cfg       *config.Config
	logger    *observability.Logger
	metrics   *observability.Metrics
	registry  *prometheus.Registry
	otel      *observability.OTelMetrics
	engine    *celbridge.Engine
	server    *http.Server
	providers *observability.OTelProviders
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "protoguard",
		Short: "protoguard - schema-driven protobuf validation",
		Long: `protoguard compiles .proto sources annotated with @protoguard
directives, checks the rules for consistency, validates documents against
them and assembles the schema.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.shutdown(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to config file (default: $"+config.EnvConfigFile+")")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.StringSliceVarP(&a.importPaths, "import-path", "I", []string{"."}, "Directories searched for .proto files")

	root.AddCommand(
		newCheckCommand(a),
		newValidateCommand(a),
		newSchemaCommand(a),
		newLintCommand(a),
		newWatchCommand(a),
		newServeCommand(a),
	)
	return root
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	path := a.configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigFile)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel()
	if a.logLevel != "" {
		if level, err = observability.ParseLevel(a.logLevel); err != nil {
			return err
		}
	}

	runID := uuid.NewString()
	a.logger = observability.NewLogger(level, cmd.ErrOrStderr()).WithField("run_id", runID)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = observability.WithRunID(ctx, runID)
	ctx = observability.WithLogger(ctx, a.logger)

	if cfg.Observability.OTel.Enabled {
		providers, err := observability.InitOTel(ctx, cfg.Observability.OTel, a.logger)
		if err != nil {
			return err
		}
		a.providers = providers
		if a.otel, err = observability.NewOTelMetrics(); err != nil {
			return err
		}
	}

	addr := a.metricsAddr
	if addr == "" {
		addr = cfg.Observability.MetricsAddr
	}
	if cfg.Observability.MetricsEnabled || addr != "" {
		a.registry = prometheus.NewRegistry()
		a.metrics = observability.NewMetrics(a.registry)
		if addr != "" {
			a.serveMetrics(addr, a.registry)
		}
	}

	cmd.SetContext(ctx)
	return nil
}

func (a *app) serveMetrics(addr string, registry *prometheus.Registry) {
	mux := http.NewServeMux()
	observability.RegisterMetricsEndpoint(mux, registry)
	a.server = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		a.logger.WithField("addr", addr).Info("Serving metrics")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("Metrics server failed")
		}
	}()
}

func (a *app) shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Shutdown(ctx))
	}
	if a.providers != nil {
		errs = append(errs, observability.ShutdownOTel(ctx, a.providers, a.logger))
	}
	return errors.Join(errs...)
}

func (a *app) recorder() observability.Recorder {
	var recorders observability.MultiRecorder
	if a.metrics != nil {
		recorders = append(recorders, a.metrics)
	}
	if a.otel != nil {
		recorders = append(recorders, a.otel)
	}
	switch len(recorders) {
	case 0:
		return observability.NopRecorder{}
	case 1:
		return recorders[0]
	default:
		return recorders
	}
}

// reportCacheSize publishes the number of compiled CEL programs
func (a *app) reportCacheSize() {
	if a.metrics != nil && a.engine != nil {
		a.metrics.SetCachedPrograms(a.engine.CachedPrograms())
	}
}

// compile compiles the named files, or every file under the first import
// path when none are named
func (a *app) compile(ctx context.Context, files []string) (*protosource.Result, error) {
	c := protosource.NewCompiler(
		protosource.WithImportPaths(a.importPaths...),
		protosource.WithLogger(a.logger),
	)
	if len(files) == 0 {
		return c.CompileAll(ctx)
	}
	return c.Compile(ctx, files...)
}

// validatorOptions builds validator options from the loaded config
func (a *app) validatorOptions(files []protoreflect.FileDescriptor) ([]validation.Option, error) {
	engine, err := celbridge.NewEngine(
		celbridge.WithCacheSize(a.cfg.CEL.CacheSize),
		celbridge.WithFileDescriptors(files...),
	)
	if err != nil {
		return nil, err
	}
	a.engine = engine
	return []validation.Option{
		validation.WithCompiler(engine),
		validation.WithLogger(a.logger),
		validation.WithRecorder(a.recorder()),
		validation.WithTolerance(a.cfg.Tolerance()),
		validation.WithMaxDepth(a.cfg.Validation.MaxDepth),
		validation.WithUniqueBudget(a.cfg.Validation.UniqueBudgetBytes),
		validation.WithConcurrency(a.cfg.Validation.BatchConcurrency),
	}, nil
}
