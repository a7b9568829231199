package rbac

import (
	"context"
	"net/http"
	"strconv"

	"github.com/glossa-dev/glossa/pkg/contextkeys"
	"github.com/glossa-dev/glossa/pkg/httputil"
	"github.com/glossa-dev/glossa/pkg/observability"
)

// IdentityFromContext returns the identity placed in ctx by Middleware
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(contextkeys.IdentityKey).(Identity)
	return identity, ok
}

// WithIdentity returns a copy of ctx carrying identity
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	ctx = contextkeys.WithIdentity(ctx, identity)
	return observability.WithUserID(ctx, strconv.FormatInt(identity.UserID, 10))
}

// Middleware adapts Gate checks to net/http handlers
type Middleware struct {
	gate *Gate
}

// NewMiddleware creates a new permission middleware
func NewMiddleware(gate *Gate) *Middleware {
	return &Middleware{gate: gate}
}

// RequireAuth creates middleware that only requires a verified identity
func (m *Middleware) RequireAuth() func(http.Handler) http.Handler {
	return m.guard(nil)
}

// RequirePermission creates middleware that requires a specific permission
func (m *Middleware) RequirePermission(code string) func(http.Handler) http.Handler {
	return m.guard(func(ctx context.Context, id Identity) (Identity, error) {
		return m.gate.RequirePermission(ctx, id, code)
	})
}

// RequireAny creates middleware that requires any of the permissions
func (m *Middleware) RequireAny(codes ...string) func(http.Handler) http.Handler {
	return m.guard(func(ctx context.Context, id Identity) (Identity, error) {
		return m.gate.RequireAnyPermission(ctx, id, codes...)
	})
}

// RequireAll creates middleware that requires all of the permissions
func (m *Middleware) RequireAll(codes ...string) func(http.Handler) http.Handler {
	return m.guard(func(ctx context.Context, id Identity) (Identity, error) {
		return m.gate.RequireAllPermissions(ctx, id, codes...)
	})
}

type checkFunc func(ctx context.Context, id Identity) (Identity, error)

func (m *Middleware) guard(check checkFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := m.gate.RequireAuth(r)
			if err != nil {
				writeError(w, r, err)
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			if check != nil {
				if _, err := check(ctx, identity); err != nil {
					writeError(w, r.WithContext(ctx), err)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeError maps err to a status and writes a JSON error body. Server
// errors are logged and never exposed to the caller.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		observability.FromContext(r.Context()).
			WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
	}
	httputil.WriteErrorMessage(w, status, PublicMessage(err))
}
