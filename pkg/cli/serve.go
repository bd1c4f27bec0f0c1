package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/platinummonkey/protoguard/pkg/config"
	"github.com/platinummonkey/protoguard/pkg/middleware"
	"github.com/platinummonkey/protoguard/pkg/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var (
		addr      string
		rateLimit int
		redisAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve [files...]",
		Short: "Serve validation over HTTP",
		Long: `Serve validation over HTTP. POST a protojson document to
/v1/validate/<message type> to validate it; GET /v1/types lists the types.`,
		RunE: func(cmd *cobra.Command, files []string) error {
			sc := a.cfg.Server
			if cmd.Flags().Changed("addr") {
				sc.Addr = addr
			}
			if cmd.Flags().Changed("rate-limit") {
				sc.RateLimit = rateLimit
			}
			if cmd.Flags().Changed("redis-addr") {
				sc.RedisAddr = redisAddr
			}
			return a.runServe(cmd, files, sc)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 0, "Requests per client per window; 0 disables limiting")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "Share rate limits through this Redis server")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, files []string, sc config.ServerConfig) error {
	ctx := cmd.Context()

	handler, closeFn, err := a.newServer(ctx, files, sc)
	if err != nil {
		return err
	}
	defer closeFn()

	ln, err := net.Listen("tcp", sc.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", sc.Addr, err)
	}

	srv := &http.Server{
		Handler:           handler,
		ReadTimeout:       sc.ReadTimeout,
		ReadHeaderTimeout: sc.ReadTimeout,
		WriteTimeout:      sc.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.logger.WithField("addr", ln.Addr().String()).Info("Serving validation")
	fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.logger.Info("Shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

// newServer compiles the files and builds the HTTP handler. The returned
// func releases the Redis client, if one was opened.
func (a *app) newServer(ctx context.Context, files []string, sc config.ServerConfig) (http.Handler, func(), error) {
	closeFn := func() {}

	res, err := a.compile(ctx, files)
	if err != nil {
		return nil, closeFn, err
	}
	vopts, err := a.validatorOptions(res.Files)
	if err != nil {
		return nil, closeFn, err
	}

	opts := []server.Option{
		server.WithLogger(a.logger),
		server.WithValidatorOptions(vopts...),
		server.WithCacheSize(sc.ValidatorCacheSize),
		server.WithMaxBodyBytes(sc.MaxBodyBytes),
	}
	if a.registry != nil {
		opts = append(opts, server.WithMetricsRegistry(a.registry))
	}

	if sc.RateLimit > 0 {
		limits := &middleware.RateLimitConfig{
			RequestsPerWindow: sc.RateLimit,
			WindowDuration:    sc.RateLimitWindow,
			BurstSize:         sc.RateLimitBurst,
		}
		if sc.RedisAddr != "" {
			client := redis.NewClient(&redis.Options{Addr: sc.RedisAddr})
			if err := client.Ping(ctx).Err(); err != nil {
				_ = client.Close()
				return nil, closeFn, fmt.Errorf("failed to connect to redis at %s: %w", sc.RedisAddr, err)
			}
			closeFn = func() { _ = client.Close() }
			opts = append(opts, server.WithRateLimiter(middleware.NewDistributedRateLimiter(client, limits, "protoguard:ratelimit")))
		} else {
			limiter := middleware.NewRateLimiter(limits)
			limiter.StartCleanup(ctx)
			opts = append(opts, server.WithRateLimiter(limiter))
		}
	}

	srv, err := server.New(res, opts...)
	if err != nil {
		closeFn()
		return nil, func() {}, err
	}
	return srv, closeFn, nil
}
