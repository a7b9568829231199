package rbac

import (
	"context"
	"fmt"

	"github.com/glossa-dev/glossa/pkg/audit"
)

// AssignmentManager replaces role grants and user role assignments. Each
// replacement is a single transaction: observers see the old set or the
// new one, never a mix.
type AssignmentManager struct {
	store       *Store
	guard       *LifecycleGuard
	invalidator Invalidator
	auditLog    audit.Logger
}

// NewAssignmentManager creates a new assignment manager
func NewAssignmentManager(store *Store, guard *LifecycleGuard, invalidator Invalidator, auditLog audit.Logger) *AssignmentManager {
	if guard == nil {
		guard = NewLifecycleGuard()
	}
	return &AssignmentManager{
		store:       store,
		guard:       guard,
		invalidator: invalidator,
		auditLog:    auditLog,
	}
}

// GetRolePermissions lists the permissions granted to a role
func (m *AssignmentManager) GetRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	return m.store.ListRolePermissions(ctx, roleID)
}

// AssignPermissionsToRole replaces the role's grants with permissionIDs.
// Duplicate ids collapse and an empty list clears every grant.
func (m *AssignmentManager) AssignPermissionsToRole(ctx context.Context, roleID int64, permissionIDs []int64) error {
	err := m.store.InTx(ctx, func(tx *Store) error {
		if _, err := m.guard.LoadMutable(ctx, tx, roleID); err != nil {
			return err
		}
		if err := m.guard.CheckPermissionsExist(ctx, tx, permissionIDs); err != nil {
			return err
		}
		return tx.ReplaceRolePermissions(ctx, roleID, permissionIDs)
	})
	if err != nil {
		return err
	}

	m.invalidate(ctx)
	recordMutation(ctx, m.auditLog, audit.EventTypeRolePermissionsAssign, audit.ResourceTypeRole, roleID, map[string]interface{}{
		"permission_ids": uniqueIDs(permissionIDs),
	})
	return nil
}

// AssignRolesToUser replaces the user's roles with roleIDs. Duplicate ids
// collapse and an empty list removes every role.
func (m *AssignmentManager) AssignRolesToUser(ctx context.Context, userID int64, roleIDs []int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id must be positive", ErrInvalidInput)
	}

	err := m.store.InTx(ctx, func(tx *Store) error {
		if err := m.guard.CheckRolesExist(ctx, tx, roleIDs); err != nil {
			return err
		}
		return tx.ReplaceUserRoles(ctx, userID, roleIDs)
	})
	if err != nil {
		return err
	}

	m.invalidate(ctx)
	recordMutation(ctx, m.auditLog, audit.EventTypeUserRolesAssign, audit.ResourceTypeUser, userID, map[string]interface{}{
		"role_ids": uniqueIDs(roleIDs),
	})
	return nil
}

func (m *AssignmentManager) invalidate(ctx context.Context) {
	if m.invalidator != nil {
		m.invalidator.Invalidate(ctx)
	}
}
