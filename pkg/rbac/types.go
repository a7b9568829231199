package rbac

import (
	"sort"
	"time"
)

// Permission represents a single capability identified by a dotted code
// of the form module.resource.action (e.g. "admin.roles.delete").
type Permission struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	Module   string `json:"module"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Role represents a named grouping of permissions
type Role struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	Level       int       `json:"level"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RoleWithPermissions is a role together with the permissions it grants
type RoleWithPermissions struct {
	Role
	Permissions []Permission `json:"permissions"`
}

// RolePermission links a role to a permission it grants
type RolePermission struct {
	RoleID       int64 `json:"role_id"`
	PermissionID int64 `json:"permission_id"`
}

// UserRole links a user to a role they hold
type UserRole struct {
	UserID int64 `json:"user_id"`
	RoleID int64 `json:"role_id"`
}

// NewRole holds the fields accepted when creating a role
type NewRole struct {
	Code        string
	Name        string
	Description *string
	Level       int
}

// RoleUpdate is a partial update; nil fields are left unchanged
type RoleUpdate struct {
	Name        *string
	Description *string
	Level       *int
}

// IsEmpty reports whether the update changes nothing
func (u RoleUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Level == nil
}

// Identity is a verified caller. UserID is the stable id yielded by the
// identity verifier.
type Identity struct {
	UserID int64 `json:"user_id"`
}

// PermissionSet is a user's effective permission set keyed by code
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from a list of codes
func NewPermissionSet(codes ...string) PermissionSet {
	set := make(PermissionSet, len(codes))
	for _, code := range codes {
		set[code] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the exact code
func (s PermissionSet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// HasAny reports whether the set contains at least one of codes
func (s PermissionSet) HasAny(codes ...string) bool {
	for _, code := range codes {
		if s.Has(code) {
			return true
		}
	}
	return false
}

// HasAll reports whether every code is in the set. An empty list is
// trivially contained.
func (s PermissionSet) HasAll(codes ...string) bool {
	for _, code := range codes {
		if !s.Has(code) {
			return false
		}
	}
	return true
}

// Missing returns the codes not present in the set, in input order
func (s PermissionSet) Missing(codes ...string) []string {
	var missing []string
	for _, code := range codes {
		if !s.Has(code) {
			missing = append(missing, code)
		}
	}
	return missing
}

// Codes returns the set's codes sorted
func (s PermissionSet) Codes() []string {
	codes := make([]string, 0, len(s))
	for code := range s {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Permission codes used by the administrative surface
const (
	PermRolesView        = "admin.roles.view"
	PermRolesCreate      = "admin.roles.create"
	PermRolesEdit        = "admin.roles.edit"
	PermRolesDelete      = "admin.roles.delete"
	PermUsersView        = "admin.users.view"
	PermUsersRoleAssign  = "admin.users.role.assign"
	PermPermissionsView  = "admin.permissions.view"
	PermTermsView        = "admin.terms.view"
	PermTermsEdit        = "admin.terms.edit"
	PermTermsApprove     = "admin.terms.approve"
	PermTermsReject      = "admin.terms.reject"
	PermTermsDelete      = "admin.terms.delete"
	PermCommentsModerate = "admin.comments.moderate"
	PermAdsView          = "admin.ads.view"
	PermAdsEdit          = "admin.ads.edit"
	PermAuditView        = "admin.audit.view"
)

// Seeded system role codes
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleModerator  = "moderator"
	RoleUser       = "user"
)
