package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/glossa-dev/glossa/pkg/audit"
	"github.com/glossa-dev/glossa/pkg/auth"
	"github.com/glossa-dev/glossa/pkg/config"
	"github.com/glossa-dev/glossa/pkg/observability"
	"github.com/glossa-dev/glossa/pkg/rbac"
	"github.com/glossa-dev/glossa/pkg/storage/postgres"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(); err != nil {
		observability.DefaultLogger().WithError(err).Error("glossa exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	observability.SetDefaultLogger(logger)
	logger.WithField("version", version).Info("Starting glossa")

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return a.serve(ctx)
}

// openDatabase opens the primary pool. Tests swap it for sqlite.
var openDatabase = func(ctx context.Context, cfg config.DatabaseConfig, logger *observability.Logger) (*sql.DB, error) {
	return postgres.Open(ctx, postgres.ConnectionConfig{
		URL:         cfg.URL,
		MaxConns:    cfg.MaxOpenConns,
		MinConns:    cfg.MaxIdleConns,
		Timeout:     cfg.ConnectTimeout,
		MaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
}

// app is a fully wired server ready to listen
type app struct {
	server   *http.Server
	shutdown *observability.ShutdownManager
	logger   *observability.Logger
}

// newApp acquires everything the server needs. Each resource is registered
// for shutdown as soon as it is held, so a failing step releases the ones
// acquired before it. Shutdown runs them in reverse.
func newApp(ctx context.Context, cfg *config.Config, logger *observability.Logger) (a *app, err error) {
	shutdown := observability.NewShutdownManager(logger, nil, cfg.Server.ShutdownTimeout)
	defer func() {
		if err == nil {
			return
		}
		releaseCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()
		if releaseErr := shutdown.Shutdown(releaseCtx); releaseErr != nil {
			logger.WithError(releaseErr).Warn("failed to release resources after startup error")
		}
	}()

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	shutdown.Register("opentelemetry", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	db, err := openDatabase(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	shutdown.Register("database", func(ctx context.Context) error { return db.Close() })

	if cfg.Database.AutoMigrate {
		if err := migrateAndSeed(ctx, db, logger); err != nil {
			return nil, err
		}
	}

	var redisClient *redis.Client
	if cfg.Cache.Mode == rbac.CacheModeRedis {
		redisClient, err = postgres.NewRedisClient(ctx, postgres.RedisConfig{
			URL:        cfg.Cache.RedisURL,
			Password:   cfg.Cache.RedisPassword,
			DB:         cfg.Cache.RedisDB,
			MaxRetries: cfg.Cache.RedisMaxRetries,
			PoolSize:   cfg.Cache.RedisPoolSize,
		})
		if err != nil {
			return nil, err
		}
		shutdown.Register("redis", func(ctx context.Context) error { return redisClient.Close() })
	}

	cache, err := rbac.NewPermissionCache(cfg.Cache.RBACConfig(redisClient))
	if err != nil {
		return nil, err
	}
	logger.WithField("mode", cfg.Cache.Mode).Info("Permission cache configured")

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		return nil, err
	}

	auditLogger, auditReader, err := newAuditLogger(db, cfg.Audit, logger)
	if err != nil {
		return nil, err
	}
	shutdown.Register("audit logger", func(ctx context.Context) error { return auditLogger.Close() })

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	observability.RegisterDBStats(registry, db, "glossa")

	recorders := []rbac.DecisionRecorder{metrics}
	cleanupRecorders := []audit.CleanupRecorder{metrics}
	if providers != nil {
		otelMetrics, err := observability.NewOTelMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenTelemetry metrics: %w", err)
		}
		recorders = append(recorders, otelMetrics)
		cleanupRecorders = append(cleanupRecorders, otelMetrics)
	}

	service := rbac.NewService(db, rbac.ServiceConfig{
		Verifier:    verifier,
		Cache:       cache,
		Recorders:   recorders,
		AuditLogger: auditLogger,
	})

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	postgres.StartPoolMonitor(monitorCtx, db, 30*time.Second, logger)
	shutdown.Register("pool monitor", func(ctx context.Context) error {
		stopMonitor()
		return nil
	})

	if cfg.Audit.Enabled {
		job, err := startRetentionJob(db, cfg.Audit, logger, cleanupRecorders...)
		if err != nil {
			return nil, err
		}
		shutdown.Register("audit retention", job.Stop)
	}

	deps := routerDeps{
		service:      service,
		auditReader:  auditReader,
		health:       observability.NewHealthChecker(db, redisClient, version),
		logger:       logger,
		maxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	if cfg.Observability.MetricsEnabled {
		deps.metrics = metrics
		deps.registry = registry
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      newRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	shutdown.SetServer(server)

	return &app{server: server, shutdown: shutdown, logger: logger}, nil
}

// serve listens until a signal arrives or the listener fails, then shuts
// everything down
func (a *app) serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.WithField("addr", a.server.Addr).Info("HTTP server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.shutdown.WaitForShutdown(gctx)
	})

	return g.Wait()
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout <= 0 {
		return 30 * time.Second
	}
	return cfg.Server.ShutdownTimeout
}

// migrateAndSeed applies pending migrations and installs the permission
// vocabulary and system roles
func migrateAndSeed(ctx context.Context, db *sql.DB, logger *observability.Logger) error {
	if err := rbac.RunMigrations(ctx, db, rbac.DialectPostgres, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := rbac.Seed(observability.WithLogger(ctx, logger), rbac.NewStore(db), nil); err != nil {
		return fmt.Errorf("failed to seed roles and permissions: %w", err)
	}
	logger.Info("Database migrated and seeded")
	return nil
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (auth.IdentityVerifier, error) {
	switch cfg.Mode {
	case config.AuthModeOIDC:
		return auth.NewOIDCVerifier(ctx, cfg.OIDCConfig())
	default:
		return auth.NewJWTVerifier(cfg.JWTConfig())
	}
}

// newAuditLogger writes events to the database and mirrors them to the
// application log. A disabled trail records nothing and exposes no reader.
func newAuditLogger(db *sql.DB, cfg config.AuditConfig, logger *observability.Logger) (audit.Logger, audit.Reader, error) {
	if !cfg.Enabled {
		return audit.NoOpLogger{}, nil, nil
	}

	dbLogger, err := audit.NewDBLogger(db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create audit logger: %w", err)
	}
	multi := audit.NewMultiLogger(dbLogger, audit.NewLogLogger(logger))
	return multi, multi, nil
}

func startRetentionJob(db *sql.DB, cfg config.AuditConfig, logger *observability.Logger, recorders ...audit.CleanupRecorder) (*audit.RetentionJob, error) {
	dbLogger, err := audit.NewDBLogger(db)
	if err != nil {
		return nil, err
	}

	job, err := audit.NewRetentionJob(dbLogger, cfg.RetentionPolicy(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule audit retention: %w", err)
	}
	for _, r := range recorders {
		job.AddRecorder(r)
	}
	job.Start()

	logger.WithFields(map[string]interface{}{
		"retention_days": cfg.RetentionDays,
		"schedule":       cfg.CleanupSchedule,
	}).Info("Audit retention job started")
	return job, nil
}
