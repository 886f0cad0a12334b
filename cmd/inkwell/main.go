package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/inkwell/pkg/api"
	"github.com/platinummonkey/inkwell/pkg/apikeys"
	"github.com/platinummonkey/inkwell/pkg/async"
	"github.com/platinummonkey/inkwell/pkg/config"
	"github.com/platinummonkey/inkwell/pkg/content"
	"github.com/platinummonkey/inkwell/pkg/generate"
	"github.com/platinummonkey/inkwell/pkg/identity"
	"github.com/platinummonkey/inkwell/pkg/middleware"
	"github.com/platinummonkey/inkwell/pkg/notify"
	"github.com/platinummonkey/inkwell/pkg/observability"
	"github.com/platinummonkey/inkwell/pkg/quota"
	"github.com/platinummonkey/inkwell/pkg/rbac"
	"github.com/platinummonkey/inkwell/pkg/storage/postgres"
	"github.com/platinummonkey/inkwell/pkg/teams"
	"github.com/platinummonkey/inkwell/pkg/users"
	"github.com/platinummonkey/inkwell/pkg/workspaces"
)

const dbStatsInterval = 15 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("inkwell exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := observability.SignalContext(context.Background())
	defer stop()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	shutdown.Register("otel", providers.Shutdown)

	db, err := postgres.Open(ctx, cfg.Database.Connection())
	if err != nil {
		return err
	}
	shutdown.Register("database", func(context.Context) error { return db.Close() })

	if err := postgres.RunMigrations(ctx, db); err != nil {
		shutdown.Shutdown(context.Background())
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	store := postgres.NewStore(db)

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = postgres.NewRedisClient(ctx, cfg.Redis.Client())
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, using in-memory rate limiting")
		} else {
			shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	tasks := async.NewTracker()
	shutdown.Register("background tasks", tasks.Close)

	verifier, err := identity.NewOIDCVerifier(ctx, cfg.Identity)
	if err != nil {
		shutdown.Shutdown(context.Background())
		return err
	}
	resolver := identity.NewResolver(verifier, store, cfg.Identity)

	notifier, err := notify.New(cfg.Notify.Config, logger)
	if err != nil {
		shutdown.Shutdown(context.Background())
		return err
	}

	authz := rbac.NewEngine(store, metrics)
	quotas := quota.NewEngine(store, metrics)
	generator := generate.NewClient(cfg.Generation, store, metrics, tasks)
	if !generator.HasSystemKey() {
		logger.Info("No system OpenAI key configured; generation requires user API keys")
	}

	limitCfg := middleware.GenerateRateLimitConfig(cfg.Generation.RateLimitPerMinute)
	var limiter middleware.Limiter
	if redisClient != nil {
		limiter = middleware.NewDistributedRateLimiter(redisClient, limitCfg, "inkwell:ratelimit:generate")
	} else {
		memory := middleware.NewRateLimiter(limitCfg)
		memory.StartCleanup(ctx)
		limiter = memory
	}

	server := api.NewServer(api.Services{
		Workspaces: workspaces.NewService(store, authz, quotas),
		Teams:      teams.NewService(store, authz, quotas, notifier, metrics, cfg.Notify.ClientURL),
		Content:    content.NewService(store, authz, quotas, generator),
		APIKeys:    apikeys.NewService(store, generator),
		Users:      users.NewService(store),
	}, api.Options{
		Resolver:        resolver,
		GenerateLimiter: limiter,
		Logger:          logger,
		Metrics:         metrics,
		CORSOrigins:     cfg.Server.CORSOrigins,
	})

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	shutdown.Register("api server", apiServer.Shutdown)

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	shutdown.Register("health server", healthServer.Shutdown)

	if path := os.Getenv(config.EnvConfigFile); path != "" {
		err := config.Watch(ctx, path, logger, func(next *config.Config) {
			logger.SetLevel(next.Observability.Level())
			logger.WithField("level", next.Observability.LogLevel).Info("log level updated")
		})
		if err != nil {
			logger.WithError(err).Warn("config reload disabled")
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", apiServer.Addr).Info("Starting inkwell API server")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		recordDBStats(gctx, db.Stats, metrics)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

// recordDBStats publishes connection pool statistics until ctx is done
func recordDBStats(ctx context.Context, stats func() sql.DBStats, metrics *observability.Metrics) {
	ticker := time.NewTicker(dbStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.RecordDBStats(stats())
		}
	}
}
