package rbac

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/glossa-dev/glossa/pkg/audit"
)

// Invalidator discards cached effective sets. *Gate implements it.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// RoleManager manages roles and their embedded permission lists
type RoleManager struct {
	store       *Store
	guard       *LifecycleGuard
	invalidator Invalidator
	auditLog    audit.Logger
}

// NewRoleManager creates a new role manager. invalidator and auditLog may
// be nil.
func NewRoleManager(store *Store, guard *LifecycleGuard, invalidator Invalidator, auditLog audit.Logger) *RoleManager {
	if guard == nil {
		guard = NewLifecycleGuard()
	}
	return &RoleManager{
		store:       store,
		guard:       guard,
		invalidator: invalidator,
		auditLog:    auditLog,
	}
}

// FindRoleByCode returns the role with code, or nil when none exists
func (m *RoleManager) FindRoleByCode(ctx context.Context, code string) (*Role, error) {
	return m.store.GetRoleByCode(ctx, code)
}

// FindRoleByID returns the role with id, or nil when none exists
func (m *RoleManager) FindRoleByID(ctx context.Context, roleID int64) (*Role, error) {
	return m.store.GetRoleByID(ctx, roleID)
}

// GetAllRoles lists every role ordered by level descending, then name
func (m *RoleManager) GetAllRoles(ctx context.Context) ([]Role, error) {
	return m.store.ListRoles(ctx)
}

// GetUserRoles lists the roles a user holds, highest level first
func (m *RoleManager) GetUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	return m.store.ListUserRoles(ctx, userID)
}

// GetUserHighestRole returns the user's role with the greatest level, or
// nil when the user holds none. Ties go to the lowest role id.
func (m *RoleManager) GetUserHighestRole(ctx context.Context, userID int64) (*Role, error) {
	roles, err := m.store.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, nil
	}
	highest := roles[0]
	return &highest, nil
}

// GetRoleWithPermissions returns a role with its granted permissions, or
// nil when no role has the id
func (m *RoleManager) GetRoleWithPermissions(ctx context.Context, roleID int64) (*RoleWithPermissions, error) {
	role, err := m.store.GetRoleByID(ctx, roleID)
	if err != nil || role == nil {
		return nil, err
	}

	permissions, err := m.store.ListRolePermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}

	return &RoleWithPermissions{Role: *role, Permissions: permissions}, nil
}

// GetAllRolesWithPermissions lists every role with its granted permissions
func (m *RoleManager) GetAllRolesWithPermissions(ctx context.Context) ([]RoleWithPermissions, error) {
	roles, err := m.store.ListRoles(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]RoleWithPermissions, 0, len(roles))
	for _, role := range roles {
		permissions, err := m.store.ListRolePermissions(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, RoleWithPermissions{Role: role, Permissions: permissions})
	}
	return result, nil
}

// CreateRole creates a non-system role and returns its id. A duplicate
// code fails with ErrConflict.
func (m *RoleManager) CreateRole(ctx context.Context, role NewRole) (int64, error) {
	return m.CreateRoleWithPermissions(ctx, role, nil)
}

// CreateRoleWithPermissions creates a role and grants permissionIDs in
// one transaction
func (m *RoleManager) CreateRoleWithPermissions(ctx context.Context, role NewRole, permissionIDs []int64) (int64, error) {
	role.Code = strings.TrimSpace(role.Code)
	role.Name = strings.TrimSpace(role.Name)
	if role.Code == "" || role.Name == "" {
		return 0, fmt.Errorf("%w: code and name are required", ErrInvalidInput)
	}

	var roleID int64
	err := m.store.InTx(ctx, func(tx *Store) error {
		id, err := tx.InsertRole(ctx, role, false)
		if err != nil {
			return err
		}
		roleID = id

		if len(permissionIDs) == 0 {
			return nil
		}
		if err := m.guard.CheckPermissionsExist(ctx, tx, permissionIDs); err != nil {
			return err
		}
		return tx.ReplaceRolePermissions(ctx, roleID, permissionIDs)
	})
	if err != nil {
		return 0, err
	}

	m.recordMutation(ctx, audit.EventTypeRoleCreate, audit.ResourceTypeRole, roleID, map[string]interface{}{
		"code":           role.Code,
		"level":          role.Level,
		"permission_ids": uniqueIDs(permissionIDs),
	})
	return roleID, nil
}

// UpdateRole applies a partial update to a non-system role
func (m *RoleManager) UpdateRole(ctx context.Context, roleID int64, update RoleUpdate) error {
	return m.UpdateRoleWithPermissions(ctx, roleID, update, nil)
}

// UpdateRoleWithPermissions applies a partial update and, when
// permissionIDs is non-nil, replaces the role's grants in the same
// transaction. An empty non-nil slice clears every grant.
func (m *RoleManager) UpdateRoleWithPermissions(ctx context.Context, roleID int64, update RoleUpdate, permissionIDs []int64) error {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		if name == "" {
			return fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		update.Name = &name
	}

	err := m.store.InTx(ctx, func(tx *Store) error {
		if _, err := m.guard.LoadMutable(ctx, tx, roleID); err != nil {
			return err
		}

		if !update.IsEmpty() {
			updated, err := tx.UpdateRole(ctx, roleID, update)
			if err != nil {
				return err
			}
			if updated == 0 {
				return fmt.Errorf("%w: role %d", ErrNotFound, roleID)
			}
		}

		if permissionIDs == nil {
			return nil
		}
		if err := m.guard.CheckPermissionsExist(ctx, tx, permissionIDs); err != nil {
			return err
		}
		return tx.ReplaceRolePermissions(ctx, roleID, permissionIDs)
	})
	if err != nil {
		return err
	}

	metadata := map[string]interface{}{}
	if update.Name != nil {
		metadata["name"] = *update.Name
	}
	if update.Description != nil {
		metadata["description"] = *update.Description
	}
	if update.Level != nil {
		metadata["level"] = *update.Level
	}
	if permissionIDs != nil {
		metadata["permission_ids"] = uniqueIDs(permissionIDs)
		m.invalidate(ctx)
	}
	m.recordMutation(ctx, audit.EventTypeRoleUpdate, audit.ResourceTypeRole, roleID, metadata)
	return nil
}

// DeleteRole deletes a non-system role along with its grants and
// assignments
func (m *RoleManager) DeleteRole(ctx context.Context, roleID int64) error {
	var code string
	err := m.store.InTx(ctx, func(tx *Store) error {
		role, err := m.guard.LoadMutable(ctx, tx, roleID)
		if err != nil {
			return err
		}
		code = role.Code

		deleted, err := tx.DeleteRole(ctx, roleID)
		if err != nil {
			return err
		}
		if deleted == 0 {
			return fmt.Errorf("%w: role %d", ErrNotFound, roleID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	m.invalidate(ctx)
	m.recordMutation(ctx, audit.EventTypeRoleDelete, audit.ResourceTypeRole, roleID, map[string]interface{}{
		"code": code,
	})
	return nil
}

func (m *RoleManager) invalidate(ctx context.Context) {
	if m.invalidator != nil {
		m.invalidator.Invalidate(ctx)
	}
}

func (m *RoleManager) recordMutation(ctx context.Context, eventType audit.EventType, resourceType audit.ResourceType, id int64, metadata map[string]interface{}) {
	recordMutation(ctx, m.auditLog, eventType, resourceType, id, metadata)
}

// recordMutation writes a success event attributed to the identity in ctx
func recordMutation(ctx context.Context, logger audit.Logger, eventType audit.EventType, resourceType audit.ResourceType, id int64, metadata map[string]interface{}) {
	if logger == nil {
		return
	}

	event := audit.NewEvent(ctx, eventType, audit.EventStatusSuccess)
	if identity, ok := IdentityFromContext(ctx); ok {
		actorID := identity.UserID
		event.ActorID = &actorID
	}
	event.ResourceType = resourceType
	event.ResourceID = strconv.FormatInt(id, 10)
	event.Metadata = metadata
	audit.Record(ctx, logger, event)
}
