package rbac

import "context"

// Catalog answers read-only questions about the permission vocabulary
type Catalog struct {
	roles RoleStore
	perms PermissionStore
}

// NewCatalog creates a new permission catalog
func NewCatalog(roles RoleStore, perms PermissionStore) *Catalog {
	return &Catalog{roles: roles, perms: perms}
}

// GetAllPermissions returns every permission ordered by module, resource, action
func (c *Catalog) GetAllPermissions(ctx context.Context) ([]Permission, error) {
	return c.perms.ListPermissions(ctx)
}

// GetPermissionsByModule returns the permissions of one module. An unknown
// module yields an empty list.
func (c *Catalog) GetPermissionsByModule(ctx context.Context, module string) ([]Permission, error) {
	return c.perms.ListPermissionsByModule(ctx, module)
}

// Modules returns the distinct module labels
func (c *Catalog) Modules(ctx context.Context) ([]string, error) {
	return c.perms.ListModules(ctx)
}

// GetUserPermissionCodes returns the user's effective permission set. It
// performs the same computation as the gate and always reads storage.
func (c *Catalog) GetUserPermissionCodes(ctx context.Context, userID int64) (PermissionSet, error) {
	return resolvePermissions(ctx, c.roles, c.perms, userID)
}
