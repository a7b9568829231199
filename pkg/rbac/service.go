package rbac

import (
	"database/sql"

	"github.com/glossa-dev/glossa/pkg/audit"
	"github.com/glossa-dev/glossa/pkg/auth"
)

// ServiceConfig holds the collaborators a Service is built from
type ServiceConfig struct {
	Verifier    auth.IdentityVerifier
	Cache       PermissionCache
	Recorders   []DecisionRecorder
	AuditLogger audit.Logger
}

// Service bundles the RBAC components over one database handle. Every
// mutation path invalidates the gate's cache.
type Service struct {
	Store       *Store
	Gate        *Gate
	Catalog     *Catalog
	Roles       *RoleManager
	Assignments *AssignmentManager
}

// NewService wires the catalog, gate and managers over db
func NewService(db *sql.DB, cfg ServiceConfig) *Service {
	store := NewStore(db)
	guard := NewLifecycleGuard()

	gate := NewGate(cfg.Verifier, store, store,
		WithCache(cfg.Cache),
		WithDecisionRecorders(cfg.Recorders...),
		WithAuditLogger(cfg.AuditLogger),
	)

	return &Service{
		Store:       store,
		Gate:        gate,
		Catalog:     NewCatalog(store, store),
		Roles:       NewRoleManager(store, guard, gate, cfg.AuditLogger),
		Assignments: NewAssignmentManager(store, guard, gate, cfg.AuditLogger),
	}
}
