// Package observability provides structured logging, Prometheus and
// OpenTelemetry metrics, tracing setup, health checks and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	observability.SetDefaultLogger(logger)
//	observability.FromContext(ctx).WithError(err).Error("request failed")
//
// FromContext annotates the logger with the request id, authenticated user
// id and trace id carried by ctx.
//
// # Metrics
//
// Metrics and OTelMetrics both satisfy the authorization gate's decision
// recorder, so the gate can feed the Prometheus registry and the OTLP
// pipeline at once:
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	router.Handle("/metrics", observability.MetricsHandler(registry))
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(router, checker)
//
// # Shutdown
//
//	sm := observability.NewShutdownManager(logger, server, 30*time.Second)
//	sm.Register("database", func(context.Context) error { return db.Close() })
//	err := sm.WaitForShutdown(ctx)
package observability
