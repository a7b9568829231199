package rbac

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/glossa-dev/glossa/pkg/observability"
)

// Dialect selects the SQL variant a migration is written in
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Postgres    string
	SQLite      string
}

// statement returns the migration body for a dialect
func (m Migration) statement(dialect Dialect) string {
	if dialect == DialectSQLite {
		return m.SQLite
	}
	return m.Postgres
}

// GetMigrations returns all RBAC migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create permissions table",
			Postgres: `
				CREATE TABLE IF NOT EXISTS permissions (
					id BIGSERIAL PRIMARY KEY,
					code VARCHAR(255) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					module VARCHAR(100) NOT NULL,
					resource VARCHAR(100) NOT NULL,
					action VARCHAR(100) NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_permissions_module ON permissions(module);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS permissions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					code TEXT NOT NULL UNIQUE,
					name TEXT NOT NULL,
					module TEXT NOT NULL,
					resource TEXT NOT NULL,
					action TEXT NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_permissions_module ON permissions(module);
			`,
		},
		{
			Version:     2,
			Description: "Create roles table",
			Postgres: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					code VARCHAR(100) NOT NULL UNIQUE,
					name VARCHAR(255) NOT NULL,
					description TEXT,
					level INTEGER NOT NULL DEFAULT 0,
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_roles_level ON roles(level);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS roles (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					code TEXT NOT NULL UNIQUE,
					name TEXT NOT NULL,
					description TEXT,
					level INTEGER NOT NULL DEFAULT 0,
					is_system BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_roles_level ON roles(level);
			`,
		},
		{
			Version:     3,
			Description: "Create role_permissions table",
			Postgres: `
				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id BIGINT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, permission_id)
				);

				CREATE INDEX IF NOT EXISTS idx_role_permissions_permission_id ON role_permissions(permission_id);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS role_permissions (
					role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					permission_id INTEGER NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
					PRIMARY KEY (role_id, permission_id)
				);
			`,
		},
		{
			Version:     4,
			Description: "Create user_roles table",
			Postgres: `
				CREATE TABLE IF NOT EXISTS user_roles (
					user_id BIGINT NOT NULL,
					role_id BIGINT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					PRIMARY KEY (user_id, role_id)
				);

				CREATE INDEX IF NOT EXISTS idx_user_roles_role_id ON user_roles(role_id);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS user_roles (
					user_id INTEGER NOT NULL,
					role_id INTEGER NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
					PRIMARY KEY (user_id, role_id)
				);
			`,
		},
		{
			Version:     5,
			Description: "Create audit_logs table",
			Postgres: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id BIGSERIAL PRIMARY KEY,
					event_id VARCHAR(64) NOT NULL,
					timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					event_type VARCHAR(100) NOT NULL,
					status VARCHAR(20) NOT NULL,
					actor_id BIGINT,
					resource_type VARCHAR(50),
					resource_id VARCHAR(255),
					request_id VARCHAR(64),
					message TEXT,
					metadata JSONB
				);

				CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
			`,
			SQLite: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					event_id TEXT NOT NULL,
					timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					event_type TEXT NOT NULL,
					status TEXT NOT NULL,
					actor_id INTEGER,
					resource_type TEXT,
					resource_id TEXT,
					request_id TEXT,
					message TEXT,
					metadata TEXT
				);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect, logger *observability.Logger) error {
	if logger == nil {
		logger = observability.FromContext(ctx)
	}

	// Create migration tracking table
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS rbac_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := AppliedMigrations(ctx, db)
	if err != nil {
		return err
	}

	// Run pending migrations
	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		logger.WithField("version", migration.Version).Infof("running migration: %s", migration.Description)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.statement(dialect)); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		// Record migration
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rbac_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// AppliedMigrations returns the set of migration versions already applied
func AppliedMigrations(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM rbac_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
