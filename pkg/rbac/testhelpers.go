package rbac

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/lib/pq"
)

// TestPostgresEnv names the variable holding a PostgreSQL URL for tests
const TestPostgresEnv = "GLOSSA_TEST_POSTGRES"

// SkipIfNoDatabase skips the test if GLOSSA_TEST_POSTGRES is not set.
func SkipIfNoDatabase(t *testing.T) string {
	t.Helper()

	dbURL := os.Getenv(TestPostgresEnv)
	if dbURL == "" {
		t.Skipf("Skipping test: %s environment variable not set (database not available)", TestPostgresEnv)
	}

	return dbURL
}

// SkipIfNoDatabaseOrShort skips the test if running in short mode OR if database is not available.
func SkipIfNoDatabaseOrShort(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping database test in short mode")
	}

	return SkipIfNoDatabase(t)
}

// RequireDatabase connects to the test PostgreSQL database, applies the
// RBAC migrations and empties the RBAC tables when the test ends. It skips
// the test if no database is configured or reachable.
func RequireDatabase(t *testing.T) *sql.DB {
	t.Helper()

	dbURL := SkipIfNoDatabase(t)

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Skipf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		t.Skipf("Database not reachable: %v", err)
	}

	ctx := context.Background()
	if err := RunMigrations(ctx, db, DialectPostgres, nil); err != nil {
		db.Close()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		db.ExecContext(ctx, `TRUNCATE user_roles, role_permissions, roles, permissions, audit_logs RESTART IDENTITY CASCADE`)
		db.Close()
	})
	return db
}

// IsDatabaseAvailable returns true if GLOSSA_TEST_POSTGRES is set (does not test connection).
func IsDatabaseAvailable() bool {
	return os.Getenv(TestPostgresEnv) != ""
}
