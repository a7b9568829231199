package rbac

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// queryer is satisfied by both *sql.DB and *sql.Tx
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Store handles RBAC data persistence
type Store struct {
	db *sql.DB // nil when the store is bound to a transaction
	q  queryer

	// lockOwners serializes link-table replaces per owner with a
	// transaction-scoped advisory lock. Only PostgreSQL needs it; sqlite
	// already admits a single writer.
	lockOwners bool
}

// NewStore creates a new RBAC store
func NewStore(db *sql.DB) *Store {
	_, isPostgres := db.Driver().(*pq.Driver)
	return &Store{db: db, q: db, lockOwners: isPostgres}
}

// InTx runs fn against a store bound to a single transaction. The
// transaction commits only if fn returns nil. Calling InTx on a store
// that is already transactional runs fn inside the existing transaction.
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Store{q: tx, lockOwners: s.lockOwners}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const permissionColumns = `p.id, p.code, p.name, p.module, p.resource, p.action`

const roleColumns = `r.id, r.code, r.name, r.description, r.level, r.is_system, r.created_at, r.updated_at`

// ListPermissions returns the whole catalog ordered by module, resource, action
func (s *Store) ListPermissions(ctx context.Context) ([]Permission, error) {
	query := `
		SELECT ` + permissionColumns + `
		FROM permissions p
		ORDER BY p.module, p.resource, p.action
	`
	return s.queryPermissions(ctx, query)
}

// ListPermissionsByModule returns the permissions of one module
func (s *Store) ListPermissionsByModule(ctx context.Context, module string) ([]Permission, error) {
	query := `
		SELECT ` + permissionColumns + `
		FROM permissions p
		WHERE p.module = $1
		ORDER BY p.module, p.resource, p.action
	`
	return s.queryPermissions(ctx, query, module)
}

// ListModules returns the distinct module labels of the catalog
func (s *Store) ListModules(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT DISTINCT module FROM permissions ORDER BY module`)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	modules := []string{}
	for rows.Next() {
		var module string
		if err := rows.Scan(&module); err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, module)
	}
	return modules, rows.Err()
}

// ListRolePermissions returns the permissions granted by a role. The
// result is never nil.
func (s *Store) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	query := `
		SELECT ` + permissionColumns + `
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.module, p.resource, p.action
	`
	return s.queryPermissions(ctx, query, roleID)
}

// GetPermissionByCode retrieves a permission by code. Returns nil, nil
// when absent.
func (s *Store) GetPermissionByCode(ctx context.Context, code string) (*Permission, error) {
	query := `
		SELECT ` + permissionColumns + `
		FROM permissions p
		WHERE p.code = $1
	`
	var p Permission
	err := s.q.QueryRowContext(ctx, query, code).Scan(&p.ID, &p.Code, &p.Name, &p.Module, &p.Resource, &p.Action)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permission: %w", err)
	}
	return &p, nil
}

func (s *Store) queryPermissions(ctx context.Context, query string, args ...interface{}) ([]Permission, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	permissions := []Permission{}
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Module, &p.Resource, &p.Action); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, p)
	}
	return permissions, rows.Err()
}

// UpsertPermission inserts a catalog entry or refreshes its labels.
// Used by seeding only; the application never writes permissions.
func (s *Store) UpsertPermission(ctx context.Context, p *Permission) error {
	query := `
		INSERT INTO permissions (code, name, module, resource, action)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, module = EXCLUDED.module,
			resource = EXCLUDED.resource, action = EXCLUDED.action
		RETURNING id
	`
	if err := s.q.QueryRowContext(ctx, query, p.Code, p.Name, p.Module, p.Resource, p.Action).Scan(&p.ID); err != nil {
		return fmt.Errorf("failed to upsert permission %s: %w", p.Code, err)
	}
	return nil
}

// GetRoleByID retrieves a role by ID. Returns nil, nil when absent.
func (s *Store) GetRoleByID(ctx context.Context, roleID int64) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles r WHERE r.id = $1`

	role, err := scanRole(s.q.QueryRowContext(ctx, query, roleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// GetRoleByCode retrieves a role by code. Returns nil, nil when absent.
func (s *Store) GetRoleByCode(ctx context.Context, code string) (*Role, error) {
	query := `SELECT ` + roleColumns + ` FROM roles r WHERE r.code = $1`

	role, err := scanRole(s.q.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// ListRoles lists all roles, most privileged first
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles r
		ORDER BY r.level DESC, r.name ASC
	`
	return s.queryRoles(ctx, query)
}

// ListUserRoles lists the roles a user holds, highest level first. Equal
// levels are ordered by id so the first entry is the deterministic
// highest role.
func (s *Store) ListUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	query := `
		SELECT ` + roleColumns + `
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		ORDER BY r.level DESC, r.id ASC
	`
	return s.queryRoles(ctx, query, userID)
}

func (s *Store) queryRoles(ctx context.Context, query string, args ...interface{}) ([]Role, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, *role)
	}
	return roles, rows.Err()
}

// InsertRole creates a role and returns its id. A duplicate code is
// reported as ErrConflict; detection relies on the unique constraint so
// concurrent inserts cannot both succeed.
func (s *Store) InsertRole(ctx context.Context, role NewRole, isSystem bool) (int64, error) {
	query := `
		INSERT INTO roles (code, name, description, level, is_system, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (code) DO NOTHING
		RETURNING id
	`

	now := time.Now().UTC()
	var id int64
	err := s.q.QueryRowContext(ctx, query,
		role.Code,
		role.Name,
		nullString(role.Description),
		role.Level,
		isSystem,
		now,
		now,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
		return 0, fmt.Errorf("%w: %s", ErrConflict, role.Code)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create role: %w", err)
	}
	return id, nil
}

// UpdateRole applies a partial update to a non-system role and returns the
// number of rows changed. System roles are filtered out by the statement
// itself.
func (s *Store) UpdateRole(ctx context.Context, roleID int64, update RoleUpdate) (int64, error) {
	var sets []string
	var args []interface{}
	next := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if update.Name != nil {
		next("name", *update.Name)
	}
	if update.Description != nil {
		next("description", nullString(update.Description))
	}
	if update.Level != nil {
		next("level", *update.Level)
	}
	next("updated_at", time.Now().UTC())

	args = append(args, roleID)
	query := `UPDATE roles SET ` + strings.Join(sets, ", ") +
		` WHERE id = $` + strconv.Itoa(len(args)) + ` AND is_system = FALSE`

	result, err := s.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update role: %w", err)
	}
	return result.RowsAffected()
}

// DeleteRole deletes a non-system role together with its link rows and
// returns the number of roles removed. The is_system filter keeps system
// roles in place even when the caller skipped the lifecycle check.
func (s *Store) DeleteRole(ctx context.Context, roleID int64) (int64, error) {
	var deleted int64
	err := s.InTx(ctx, func(tx *Store) error {
		result, err := tx.q.ExecContext(ctx, `DELETE FROM roles WHERE id = $1 AND is_system = FALSE`, roleID)
		if err != nil {
			return fmt.Errorf("failed to delete role: %w", err)
		}
		if deleted, err = result.RowsAffected(); err != nil {
			return err
		}
		if deleted == 0 {
			return nil
		}

		if _, err := tx.q.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return fmt.Errorf("failed to delete role permissions: %w", err)
		}
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM user_roles WHERE role_id = $1`, roleID); err != nil {
			return fmt.Errorf("failed to delete user roles: %w", err)
		}
		return nil
	})
	return deleted, err
}

// ReplaceRolePermissions replaces the full permission set of a role in one
// transaction. Duplicate ids collapse; an empty list clears the role.
func (s *Store) ReplaceRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	return s.InTx(ctx, func(tx *Store) error {
		if err := tx.lockOwner(ctx, lockRolePermissions, roleID); err != nil {
			return err
		}
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return fmt.Errorf("failed to clear role permissions: %w", err)
		}
		return tx.insertLinks(ctx, "role_permissions", "role_id", "permission_id", roleID, permissionIDs)
	})
}

// ReplaceUserRoles replaces the full role set of a user in one transaction
func (s *Store) ReplaceUserRoles(ctx context.Context, userID int64, roleIDs []int64) error {
	return s.InTx(ctx, func(tx *Store) error {
		if err := tx.lockOwner(ctx, lockUserRoles, userID); err != nil {
			return err
		}
		if _, err := tx.q.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to clear user roles: %w", err)
		}
		return tx.insertLinks(ctx, "user_roles", "user_id", "role_id", userID, roleIDs)
	})
}

// Advisory lock namespaces, one per link table
const (
	lockRolePermissions = 7301
	lockUserRoles       = 7302
)

// lockOwner blocks until no other transaction is replacing the same
// owner's links. Under READ COMMITTED two concurrent replaces would
// otherwise each miss the other's uncommitted inserts and commit the
// union. The lock is released at commit or rollback.
func (s *Store) lockOwner(ctx context.Context, namespace int, ownerID int64) error {
	if !s.lockOwners {
		return nil
	}
	if _, err := s.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1::int, hashint8($2::bigint))`, namespace, ownerID); err != nil {
		return fmt.Errorf("failed to lock link owner: %w", err)
	}
	return nil
}

// insertLinks bulk-inserts (owner, id) pairs into a link table
func (s *Store) insertLinks(ctx context.Context, table, ownerColumn, targetColumn string, ownerID int64, ids []int64) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}

	values := make([]string, 0, len(ids))
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
		values = append(values, "($1, $"+strconv.Itoa(len(args))+")")
	}

	query := `INSERT INTO ` + table + ` (` + ownerColumn + `, ` + targetColumn + `) VALUES ` +
		strings.Join(values, ", ") + ` ON CONFLICT DO NOTHING`

	if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %s: %w", table, err)
	}
	return nil
}

// CountExisting returns how many of ids exist in table (roles or permissions)
func (s *Store) CountExisting(ctx context.Context, table string, ids []int64) (int, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	if table != "roles" && table != "permissions" {
		return 0, fmt.Errorf("unsupported table %q", table)
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = id
	}

	var count int
	query := `SELECT COUNT(*) FROM ` + table + ` WHERE id IN (` + strings.Join(placeholders, ", ") + `)`
	if err := s.q.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

// scanRole scans a role from a database row
func scanRole(scanner interface {
	Scan(dest ...interface{}) error
}) (*Role, error) {
	var role Role
	var description sql.NullString

	err := scanner.Scan(
		&role.ID,
		&role.Code,
		&role.Name,
		&description,
		&role.Level,
		&role.IsSystem,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if description.Valid {
		d := description.String
		role.Description = &d
	}
	return &role, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// uniqueIDs drops duplicates while keeping first-seen order
func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// isUniqueViolation reports whether err came from a unique constraint
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
