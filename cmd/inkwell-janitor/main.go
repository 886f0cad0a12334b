package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/inkwell/pkg/observability"
	"github.com/platinummonkey/inkwell/pkg/quota"
	"github.com/platinummonkey/inkwell/pkg/rbac"
	"github.com/platinummonkey/inkwell/pkg/storage/postgres"
	"github.com/platinummonkey/inkwell/pkg/teams"
)

var (
	dbDriver = flag.String("db-driver", getEnv("INKWELL_DB_DRIVER", postgres.DriverPostgres), "Database driver (postgres or sqlite3)")
	dbURL    = flag.String("db-url", getEnv("INKWELL_DATABASE_URL", "postgres://localhost/inkwell?sslmode=disable"), "Database connection URL")
	schedule = flag.String("schedule", getEnv("INKWELL_JANITOR_SCHEDULE", "@hourly"), "Cron schedule for purging stale invitations")
	ttl      = flag.Duration("ttl", getEnvDuration("INKWELL_INVITE_TTL", 7*24*time.Hour), "Age after which pending invitations are purged")
	logLevel = flag.String("log-level", getEnv("INKWELL_LOG_LEVEL", "info"), "Log level")
	runOnce  = flag.Bool("run-once", false, "Purge once and exit")
)

func main() {
	flag.Parse()
	logger := setupLogger(*logLevel)

	if *ttl <= 0 {
		logger.Fatal("ttl must be positive")
	}

	ctx, stop := observability.SignalContext(context.Background())
	defer stop()

	db, err := postgres.Open(ctx, postgres.ConnectionConfig{Driver: *dbDriver, URL: *dbURL, MaxConns: 2})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	store := postgres.NewStore(db)
	service := teams.NewService(store, rbac.NewEngine(store, nil), quota.NewEngine(store, nil), nil, nil, "")

	if *runOnce {
		if err := purge(ctx, logger, service); err != nil {
			logger.WithError(err).Fatal("Purge failed")
		}
		return
	}

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(logger)))
	_, err = c.AddFunc(*schedule, func() {
		if err := purge(ctx, logger, service); err != nil {
			logger.WithError(err).Error("Purge failed")
		}
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to schedule purge")
	}

	c.Start()
	logger.WithFields(logrus.Fields{
		"schedule": *schedule,
		"ttl":      ttl.String(),
	}).Info("inkwell janitor started")

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	// Wait for a running purge to finish
	<-c.Stop().Done()
	logger.Info("Janitor stopped")
}

// purge deletes pending invitations that have not been touched within ttl
func purge(ctx context.Context, logger *logrus.Logger, service *teams.Service) error {
	start := time.Now()
	n, err := service.PurgeExpired(ctx, *ttl)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"purged":      n,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Stale invitations purged")
	return nil
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	logger.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
