package rbac

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/glossa-dev/glossa/pkg/audit"
	"github.com/glossa-dev/glossa/pkg/auth"
	"github.com/glossa-dev/glossa/pkg/observability"
)

// Check modes reported in errors, metrics and audit events
const (
	CheckAuth = "auth"
	CheckOne  = "one"
	CheckAny  = "any"
	CheckAll  = "all"
)

// Decision results
const (
	ResultAllowed         = "allowed"
	ResultDenied          = "denied"
	ResultUnauthenticated = "unauthenticated"
	ResultError           = "error"
)

// DecisionRecorder receives one call per gate decision and cache lookup.
// observability.Metrics and observability.OTelMetrics implement it.
type DecisionRecorder interface {
	RecordDecision(check, result string)
	RecordCacheLookup(hit bool)
}

// Gate answers "is this caller allowed" for every privileged operation.
// It holds no per-request state and is safe for concurrent use.
type Gate struct {
	verifier  auth.IdentityVerifier
	roles     RoleStore
	perms     PermissionStore
	cache     PermissionCache
	group     singleflight.Group
	recorders []DecisionRecorder
	auditLog  audit.Logger
	tracer    trace.Tracer
}

// GateOption configures a Gate
type GateOption func(*Gate)

// WithCache enables effective-set caching
func WithCache(cache PermissionCache) GateOption {
	return func(g *Gate) {
		if cache != nil {
			g.cache = cache
		}
	}
}

// WithDecisionRecorders adds metric sinks
func WithDecisionRecorders(recorders ...DecisionRecorder) GateOption {
	return func(g *Gate) {
		for _, r := range recorders {
			if r != nil {
				g.recorders = append(g.recorders, r)
			}
		}
	}
}

// WithAuditLogger records denied checks
func WithAuditLogger(logger audit.Logger) GateOption {
	return func(g *Gate) {
		g.auditLog = logger
	}
}

// NewGate creates a new authorization gate
func NewGate(verifier auth.IdentityVerifier, roles RoleStore, perms PermissionStore, opts ...GateOption) *Gate {
	g := &Gate{
		verifier: verifier,
		roles:    roles,
		perms:    perms,
		cache:    NoopCache{},
		tracer:   otel.Tracer("github.com/glossa-dev/glossa/pkg/rbac"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RequireAuth verifies the request's credential. It touches no RBAC
// storage, so callers run it before any permission lookup.
func (g *Gate) RequireAuth(r *http.Request) (Identity, error) {
	if g.verifier == nil {
		g.record(CheckAuth, ResultUnauthenticated)
		return Identity{}, ErrUnauthenticated
	}

	principal, err := auth.VerifyRequest(r, g.verifier)
	if err != nil {
		g.record(CheckAuth, ResultUnauthenticated)
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	return Identity{UserID: principal.UserID}, nil
}

// RequirePermission succeeds when the caller's effective set contains code
func (g *Gate) RequirePermission(ctx context.Context, id Identity, code string) (Identity, error) {
	return g.check(ctx, id, CheckOne, []string{code})
}

// RequireAnyPermission succeeds when at least one code is held. An empty
// list is always denied.
func (g *Gate) RequireAnyPermission(ctx context.Context, id Identity, codes ...string) (Identity, error) {
	return g.check(ctx, id, CheckAny, codes)
}

// RequireAllPermissions succeeds when every code is held. An empty list
// always succeeds.
func (g *Gate) RequireAllPermissions(ctx context.Context, id Identity, codes ...string) (Identity, error) {
	return g.check(ctx, id, CheckAll, codes)
}

func (g *Gate) check(ctx context.Context, id Identity, mode string, required []string) (Identity, error) {
	ctx, span := g.tracer.Start(ctx, "rbac.check", trace.WithAttributes(
		attribute.String("rbac.mode", mode),
		attribute.Int64("rbac.user_id", id.UserID),
		attribute.StringSlice("rbac.required", required),
	))
	defer span.End()

	if id.UserID <= 0 {
		g.record(mode, ResultUnauthenticated)
		span.SetAttributes(attribute.String("rbac.result", ResultUnauthenticated))
		return Identity{}, ErrUnauthenticated
	}

	set, err := g.EffectivePermissions(ctx, id.UserID)
	if err != nil {
		g.record(mode, ResultError)
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, "permission lookup failed")
		return Identity{}, fmt.Errorf("failed to load permissions: %w", err)
	}

	var allowed bool
	switch mode {
	case CheckOne:
		allowed = len(required) == 1 && set.Has(required[0])
	case CheckAny:
		allowed = set.HasAny(required...)
	case CheckAll:
		allowed = set.HasAll(required...)
	}

	if !allowed {
		g.record(mode, ResultDenied)
		span.SetAttributes(attribute.String("rbac.result", ResultDenied))
		g.denied(ctx, id, mode, required)
		return Identity{}, &ForbiddenError{UserID: id.UserID, Required: required, Mode: mode}
	}

	g.record(mode, ResultAllowed)
	span.SetAttributes(attribute.String("rbac.result", ResultAllowed))
	return id, nil
}

// EffectivePermissions returns the union of the permissions granted by
// the user's roles. The returned set may be shared with other callers and
// must not be modified.
func (g *Gate) EffectivePermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	logger := observability.FromContext(ctx)

	generation, err := g.cache.Generation(ctx)
	if err != nil {
		logger.WithError(err).Warn("permission cache unavailable, reading storage")
		return resolvePermissions(ctx, g.roles, g.perms, userID)
	}

	set, ok, err := g.cache.Get(ctx, generation, userID)
	if err != nil {
		logger.WithError(err).Warn("permission cache read failed")
	}
	if ok {
		g.recordCache(true)
		return set, nil
	}
	g.recordCache(false)

	key := strconv.FormatUint(generation, 10) + ":" + strconv.FormatInt(userID, 10)
	result := g.group.DoChan(key, func() (interface{}, error) {
		// Shared by every waiter, so it must outlive the first caller's ctx
		loadCtx := context.WithoutCancel(ctx)

		set, err := resolvePermissions(loadCtx, g.roles, g.perms, userID)
		if err != nil {
			return nil, err
		}
		if err := g.cache.Set(loadCtx, generation, userID, set); err != nil {
			logger.WithError(err).Warn("permission cache write failed")
		}
		return set, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-result:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(PermissionSet), nil
	}
}

// Invalidate discards every cached effective set. Mutations call it after
// their transaction commits.
func (g *Gate) Invalidate(ctx context.Context) {
	if err := g.cache.Invalidate(ctx); err != nil {
		observability.FromContext(ctx).WithError(err).Error("failed to invalidate permission cache")
	}
}

func (g *Gate) record(check, result string) {
	for _, r := range g.recorders {
		r.RecordDecision(check, result)
	}
}

func (g *Gate) recordCache(hit bool) {
	for _, r := range g.recorders {
		r.RecordCacheLookup(hit)
	}
}

func (g *Gate) denied(ctx context.Context, id Identity, mode string, required []string) {
	observability.FromContext(ctx).
		WithField("user_id", id.UserID).
		WithField("mode", mode).
		WithField("required", required).
		Debug("permission denied")

	if g.auditLog == nil {
		return
	}

	actorID := id.UserID
	event := audit.NewEvent(ctx, audit.EventTypeAccessDenied, audit.EventStatusDenied)
	event.ActorID = &actorID
	event.ResourceType = audit.ResourceTypePermission
	event.ResourceID = strings.Join(required, ",")
	event.Message = "permission denied"
	event.Metadata = map[string]interface{}{"mode": mode}
	audit.Record(ctx, g.auditLog, event)
}
