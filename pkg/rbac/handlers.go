package rbac

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/glossa-dev/glossa/pkg/audit"
	"github.com/glossa-dev/glossa/pkg/httputil"
)

// Handlers provides HTTP handlers for RBAC administration
type Handlers struct {
	roles       *RoleManager
	assignments *AssignmentManager
	catalog     *Catalog
	middleware  *Middleware
	auditReader audit.Reader
}

// NewHandlers creates new RBAC handlers. auditReader may be nil, in which
// case the audit listing route is not registered.
func NewHandlers(service *Service, auditReader audit.Reader) *Handlers {
	return &Handlers{
		roles:       service.Roles,
		assignments: service.Assignments,
		catalog:     service.Catalog,
		middleware:  NewMiddleware(service.Gate),
		auditReader: auditReader,
	}
}

// RegisterRoutes registers all RBAC routes under router. Every route is
// gated; authentication runs before the permission lookup.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	mw := h.middleware
	handle := func(path string, method string, guard func(http.Handler) http.Handler, fn http.HandlerFunc) {
		router.Handle(path, guard(fn)).Methods(method)
	}

	// Role management
	handle("/admin/roles", "GET", mw.RequirePermission(PermRolesView), h.ListRoles)
	handle("/admin/roles", "POST", mw.RequirePermission(PermRolesCreate), h.CreateRole)
	handle("/admin/roles/{id}", "GET", mw.RequirePermission(PermRolesView), h.GetRole)
	handle("/admin/roles/{id}", "PUT", mw.RequirePermission(PermRolesEdit), h.UpdateRole)
	handle("/admin/roles/{id}", "DELETE", mw.RequirePermission(PermRolesDelete), h.DeleteRole)

	// Permission catalog
	handle("/admin/permissions", "GET", mw.RequireAny(PermPermissionsView, PermRolesView), h.ListPermissions)

	// User role assignments
	handle("/admin/users/{id}/roles", "GET", mw.RequireAny(PermUsersView, PermUsersRoleAssign), h.GetUserRoles)
	handle("/admin/users/{id}/roles", "PUT", mw.RequirePermission(PermUsersRoleAssign), h.AssignUserRoles)

	// Caller's own view
	handle("/me/permissions", "GET", mw.RequireAuth(), h.GetMyPermissions)

	if h.auditReader != nil {
		handle("/admin/audit", "GET", mw.RequirePermission(PermAuditView), h.ListAuditEvents)
	}
}

type createRoleRequest struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Description   *string `json:"description,omitempty"`
	Level         int     `json:"level"`
	PermissionIDs []int64 `json:"permission_ids,omitempty"`
}

type updateRoleRequest struct {
	Name          *string `json:"name,omitempty"`
	Description   *string `json:"description,omitempty"`
	Level         *int    `json:"level,omitempty"`
	PermissionIDs []int64 `json:"permission_ids"`
}

type assignRolesRequest struct {
	RoleIDs []int64 `json:"role_ids"`
}

// MyPermissionsResponse is the caller's effective authorization state
type MyPermissionsResponse struct {
	UserID      int64    `json:"user_id"`
	Permissions []string `json:"permissions"`
	Roles       []Role   `json:"roles"`
	HighestRole *Role    `json:"highest_role"`
}

// ListRoles lists every role with its permissions
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.GetAllRolesWithPermissions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// GetRole retrieves a role with its permissions
func (h *Handlers) GetRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	role, err := h.roleWithPermissions(r.Context(), roleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// roleWithPermissions loads a role for a response, turning a missing role
// into ErrNotFound
func (h *Handlers) roleWithPermissions(ctx context.Context, roleID int64) (*RoleWithPermissions, error) {
	role, err := h.roles.GetRoleWithPermissions(ctx, roleID)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, fmt.Errorf("%w: role %d", ErrNotFound, roleID)
	}
	return role, nil
}

// CreateRole creates a custom role, optionally with its grants
func (h *Handlers) CreateRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ctx := r.Context()
	roleID, err := h.roles.CreateRoleWithPermissions(ctx, NewRole{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		Level:       req.Level,
	}, req.PermissionIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}

	role, err := h.roleWithPermissions(ctx, roleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteCreated(w, role)
}

// UpdateRole applies a partial update to a custom role. A present
// permission_ids list replaces the role's grants.
func (h *Handlers) UpdateRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req updateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ctx := r.Context()
	update := RoleUpdate{Name: req.Name, Description: req.Description, Level: req.Level}
	if err := h.roles.UpdateRoleWithPermissions(ctx, roleID, update, req.PermissionIDs); err != nil {
		writeError(w, r, err)
		return
	}

	role, err := h.roleWithPermissions(ctx, roleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, role)
}

// DeleteRole deletes a custom role
func (h *Handlers) DeleteRole(w http.ResponseWriter, r *http.Request) {
	roleID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.roles.DeleteRole(r.Context(), roleID); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListPermissions lists the permission catalog, optionally for one module
func (h *Handlers) ListPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		permissions []Permission
		err         error
	)
	if module := httputil.ParseQueryString(r, "module", ""); module != "" {
		permissions, err = h.catalog.GetPermissionsByModule(ctx, module)
	} else {
		permissions, err = h.catalog.GetAllPermissions(ctx)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, permissions)
}

// GetUserRoles lists the roles held by a user
func (h *Handlers) GetUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	roles, err := h.roles.GetUserRoles(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// AssignUserRoles replaces a user's roles
func (h *Handlers) AssignUserRoles(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req assignRolesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	ctx := r.Context()
	if err := h.assignments.AssignRolesToUser(ctx, userID, req.RoleIDs); err != nil {
		writeError(w, r, err)
		return
	}

	roles, err := h.roles.GetUserRoles(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// GetMyPermissions returns the caller's effective permissions and roles
func (h *Handlers) GetMyPermissions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		writeError(w, r, ErrUnauthenticated)
		return
	}

	set, err := h.catalog.GetUserPermissionCodes(ctx, identity.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	roles, err := h.roles.GetUserRoles(ctx, identity.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := MyPermissionsResponse{
		UserID:      identity.UserID,
		Permissions: set.Codes(),
		Roles:       roles,
	}
	if len(roles) > 0 {
		resp.HighestRole = &roles[0]
	}
	httputil.WriteSuccess(w, resp)
}

// ListAuditEvents lists recent audit events, newest first
func (h *Handlers) ListAuditEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := httputil.ParseQueryInt(r, "limit", 100)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	filter := audit.SearchFilter{
		EventType:    audit.EventType(httputil.ParseQueryString(r, "event_type", "")),
		ResourceType: audit.ResourceType(httputil.ParseQueryString(r, "resource_type", "")),
		ResourceID:   httputil.ParseQueryString(r, "resource_id", ""),
		Limit:        limit,
		Offset:       offset,
	}
	if actor, err := httputil.ParseQueryInt64(r, "actor_id", 0); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	} else if actor > 0 {
		filter.ActorID = &actor
	}
	if since := httputil.ParseQueryString(r, "since", ""); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			httputil.WriteBadRequest(w, "since must be an RFC3339 timestamp")
			return
		}
		filter.StartTime = &t
	}

	events, err := h.auditReader.Search(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, events)
}
