package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	store := setupSeededStore(t)
	catalog := NewCatalog(store, store)
	ctx := context.Background()

	all, err := catalog.GetAllPermissions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 16)
	assert.Equal(t, PermAdsEdit, all[0].Code)

	admin, err := catalog.GetPermissionsByModule(ctx, "admin")
	require.NoError(t, err)
	assert.Len(t, admin, 16)

	none, err := catalog.GetPermissionsByModule(ctx, "billing")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	modules, err := catalog.Modules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, modules)
}

func TestCatalog_GetUserPermissionCodes(t *testing.T) {
	store := setupSeededStore(t)
	catalog := NewCatalog(store, store)
	ctx := context.Background()

	editor := createCustomRole(t, store, "editor", 30, PermTermsEdit, PermTermsView)
	moderator := mustRole(t, store, RoleModerator)
	require.NoError(t, store.ReplaceUserRoles(ctx, 11, []int64{editor, moderator.ID}))

	set, err := catalog.GetUserPermissionCodes(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, []string{
		PermCommentsModerate,
		PermTermsApprove,
		PermTermsEdit,
		PermTermsReject,
		PermTermsView,
	}, set.Codes(), "union of both roles, overlapping codes counted once")

	empty, err := catalog.GetUserPermissionCodes(ctx, 12)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestPermissionSet(t *testing.T) {
	set := NewPermissionSet(PermAdsView, PermAdsEdit)

	assert.True(t, set.Has(PermAdsView))
	assert.False(t, set.Has("admin.ads"), "codes match exactly, never by prefix")
	assert.True(t, set.HasAny(PermTermsView, PermAdsEdit))
	assert.False(t, set.HasAny())
	assert.True(t, set.HasAll(PermAdsView, PermAdsEdit))
	assert.True(t, set.HasAll())
	assert.False(t, set.HasAll(PermAdsView, PermTermsView))
	assert.Equal(t, []string{PermTermsView}, set.Missing(PermAdsView, PermTermsView))
}
