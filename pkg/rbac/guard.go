package rbac

import (
	"context"
	"fmt"
)

// roleLookup is the slice of the store the guard reads through. It is
// satisfied by a transactional *Store so checks see the same snapshot as
// the write that follows.
type roleLookup interface {
	GetRoleByID(ctx context.Context, roleID int64) (*Role, error)
}

// existenceCounter counts how many of a set of ids exist
type existenceCounter interface {
	CountExisting(ctx context.Context, table string, ids []int64) (int, error)
}

// LifecycleGuard rejects administrative mutations of system roles and of
// ids that do not exist
type LifecycleGuard struct{}

// NewLifecycleGuard creates a new lifecycle guard
func NewLifecycleGuard() *LifecycleGuard {
	return &LifecycleGuard{}
}

// CheckMutable returns ErrSystemRoleImmutable for system roles
func (g *LifecycleGuard) CheckMutable(role *Role) error {
	if role == nil {
		return ErrNotFound
	}
	if role.IsSystem {
		return fmt.Errorf("%w: %s", ErrSystemRoleImmutable, role.Code)
	}
	return nil
}

// LoadMutable loads a role and verifies it may be modified
func (g *LifecycleGuard) LoadMutable(ctx context.Context, q roleLookup, roleID int64) (*Role, error) {
	role, err := g.LoadExisting(ctx, q, roleID)
	if err != nil {
		return nil, err
	}
	if err := g.CheckMutable(role); err != nil {
		return nil, err
	}
	return role, nil
}

// LoadExisting loads a role, system or not, failing with ErrNotFound
func (g *LifecycleGuard) LoadExisting(ctx context.Context, q roleLookup, roleID int64) (*Role, error) {
	role, err := q.GetRoleByID(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("%w: role %d", ErrNotFound, roleID)
	}
	return role, nil
}

// CheckRolesExist fails with ErrNotFound unless every role id exists
func (g *LifecycleGuard) CheckRolesExist(ctx context.Context, q existenceCounter, roleIDs []int64) error {
	return checkExist(ctx, q, "roles", roleIDs)
}

// CheckPermissionsExist fails with ErrNotFound unless every permission id exists
func (g *LifecycleGuard) CheckPermissionsExist(ctx context.Context, q existenceCounter, permissionIDs []int64) error {
	return checkExist(ctx, q, "permissions", permissionIDs)
}

func checkExist(ctx context.Context, q existenceCounter, table string, ids []int64) error {
	want := len(uniqueIDs(ids))
	if want == 0 {
		return nil
	}
	got, err := q.CountExisting(ctx, table, ids)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("%w: %d of %d %s ids do not exist", ErrNotFound, want-got, want, table)
	}
	return nil
}
