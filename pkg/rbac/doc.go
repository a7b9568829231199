// Package rbac provides role-based access control for the Glossa administrative surface.
//
// # Overview
//
// Access is decided by a fixed vocabulary of dotted permission codes
// (admin.roles.view, admin.terms.approve, ...). Roles are named bundles of
// permissions; users hold any number of roles. A user's effective
// permission set is the union of the permissions granted by every role the
// user holds. Nothing else contributes: there is no inheritance between
// roles, no implication between codes, and a role's level is never
// consulted by a check.
//
// # Components
//
//	Store             - database/sql access to permissions, roles and link tables
//	Catalog           - read-only permission listings and effective sets
//	RoleManager       - role reads and create/update/delete of custom roles
//	AssignmentManager - atomic replacement of role grants and user roles
//	LifecycleGuard    - rejects mutation of system roles and unknown ids
//	Gate              - authentication followed by permission checks
//	Middleware        - net/http adapters over the Gate
//	Handlers          - the /admin and /me HTTP routes
//
// NewService wires all of them over one *sql.DB:
//
//	svc := rbac.NewService(db, rbac.ServiceConfig{
//		Verifier:    verifier,
//		Cache:       cache,
//		AuditLogger: auditLogger,
//	})
//	rbac.NewHandlers(svc, auditReader).RegisterRoutes(router.PathPrefix("/api/v1").Subrouter())
//
// # Checks
//
// A gated request is authenticated before any permission lookup, so an
// anonymous caller never touches RBAC storage:
//
//	mw := rbac.NewMiddleware(svc.Gate)
//	router.Handle("/terms/{id}/approve", mw.RequirePermission(rbac.PermTermsApprove)(h)).Methods("POST")
//
// RequireAny with no codes is always denied. RequireAll with no codes
// always succeeds.
//
// # System Roles
//
// Seed creates super_admin, admin, moderator and user with is_system set.
// System roles cannot be updated, deleted or have their grants replaced
// through the administrative operations; the guard rejects the request and
// the storage statements filter on is_system as a second line. super_admin
// is re-granted every seeded permission on each seed run.
//
// # Caching
//
// Effective sets may be cached (CacheConfig.Mode: none, memory, redis).
// Entries are keyed by a generation counter. Every successful mutation
// bumps the generation after its transaction commits, and a reader writes
// back under the generation it observed before reading storage, so a stale
// computation can never be served after a change. Concurrent misses for the
// same user share one storage read.
//
// # Database Schema
//
// Migrations create permissions, roles, role_permissions, user_roles and
// audit_logs, and record applied versions in rbac_migrations:
//
//	err := rbac.RunMigrations(ctx, db, rbac.DialectPostgres, logger)
//	err = rbac.Seed(ctx, rbac.NewStore(db), nil)
package rbac
