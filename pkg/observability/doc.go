// Package observability provides structured logging, Prometheus metrics, and OpenTelemetry tracing.
//
// # Overview
//
// This package centralizes the ambient infrastructure every inkwell service
// uses: JSON logging, metrics for authorization and quota decisions, health
// probes, tracing and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("workspace_id", id).Info("Workspace created")
//	logger.SetLevel(observability.DebugLevel) // applies to derived loggers too
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordQuotaDenial("workspaces", "base")
//
// All Record* helpers accept a nil *Metrics so services can run without metrics in tests.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(mux, checker) // /healthz and /readyz
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "inkwell",
//	}, logger)
//	defer providers.Shutdown(ctx)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging middleware
package observability
