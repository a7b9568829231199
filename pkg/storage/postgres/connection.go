package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/glossa-dev/glossa/pkg/observability"
)

// driverName is swapped for sqlmock in tests
var driverName = "postgres"

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// Open connects to PostgreSQL, applies the pool settings and verifies the
// connection with a ping bounded by cfg.Timeout
func Open(ctx context.Context, cfg ConnectionConfig, logger *observability.Logger) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required")
	}
	if logger == nil {
		logger = observability.DefaultLogger()
	}

	db, err := sql.Open(driverName, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	}
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"max_conns": cfg.MaxConns,
		"min_conns": cfg.MinConns,
	}).Info("database connection established")

	return db, nil
}

// HealthCheck pings the database
func HealthCheck(ctx context.Context, db *sql.DB) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unhealthy: %w", err)
	}
	return nil
}

// StartPoolMonitor logs a warning whenever callers had to wait for a pooled
// connection since the previous tick. It stops when ctx is done.
func StartPoolMonitor(ctx context.Context, db *sql.DB, interval time.Duration, logger *observability.Logger) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = observability.DefaultLogger()
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		defer observability.RecoverPanic(logger, "database pool monitor")

		last := db.Stats()
		for {
			select {
			case <-ticker.C:
				last = checkPool(db.Stats(), last, logger)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func checkPool(current, last sql.DBStats, logger *observability.Logger) sql.DBStats {
	if waits := current.WaitCount - last.WaitCount; waits > 0 {
		logger.WithFields(map[string]interface{}{
			"waits":            waits,
			"wait_duration_ms": (current.WaitDuration - last.WaitDuration).Milliseconds(),
			"open_connections": current.OpenConnections,
			"in_use":           current.InUse,
			"max_open":         current.MaxOpenConnections,
		}).Warn("database connection pool saturated")
	}
	return current
}
