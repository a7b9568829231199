package rbac

import "context"

// RoleStore is the read side of role storage. *Store implements it.
type RoleStore interface {
	GetRoleByID(ctx context.Context, roleID int64) (*Role, error)
	GetRoleByCode(ctx context.Context, code string) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	ListUserRoles(ctx context.Context, userID int64) ([]Role, error)
}

// PermissionStore is the read side of the permission catalog and of role
// grants. *Store implements it.
type PermissionStore interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListPermissionsByModule(ctx context.Context, module string) ([]Permission, error)
	ListModules(ctx context.Context) ([]string, error)
	ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
}

var (
	_ RoleStore       = (*Store)(nil)
	_ PermissionStore = (*Store)(nil)
)

// resolvePermissions computes a user's effective set: the union of the
// permissions granted by every role the user holds. Role level is not
// consulted.
func resolvePermissions(ctx context.Context, roles RoleStore, perms PermissionStore, userID int64) (PermissionSet, error) {
	held, err := roles.ListUserRoles(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := make(PermissionSet)
	for _, role := range held {
		granted, err := perms.ListRolePermissions(ctx, role.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range granted {
			set[p.Code] = struct{}{}
		}
	}
	return set, nil
}
