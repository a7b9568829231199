package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/glossa-dev/glossa/pkg/audit"
	"github.com/glossa-dev/glossa/pkg/httputil"
	"github.com/glossa-dev/glossa/pkg/observability"
	"github.com/glossa-dev/glossa/pkg/rbac"
)

// routerDeps is everything the HTTP surface is built from
type routerDeps struct {
	service      *rbac.Service
	auditReader  audit.Reader
	health       *observability.HealthChecker
	metrics      *observability.Metrics
	registry     *prometheus.Registry
	logger       *observability.Logger
	maxBodyBytes int64
}

// newRouter mounts the API under /api/v1 next to the health and metrics
// endpoints and wraps everything in the outer middleware
func newRouter(deps routerDeps) http.Handler {
	router := mux.NewRouter()

	if deps.metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(deps.metrics))
	}

	if deps.health != nil {
		observability.RegisterHealthRoutes(router, deps.health)
	}
	if deps.registry != nil {
		router.Handle("/metrics", observability.MetricsHandler(deps.registry)).Methods("GET")
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	rbac.NewHandlers(deps.service, deps.auditReader).RegisterRoutes(api)

	// mux resolves method mismatches inside the subrouter, so both routers
	// need the JSON fallbacks
	for _, r := range []*mux.Router{router, api} {
		r.NotFoundHandler = http.HandlerFunc(notFound)
		r.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowed)
	}

	handler := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(deps.logger),
		httputil.RecoveryMiddleware,
		httputil.MaxBytesMiddleware(deps.maxBodyBytes),
	)(router)

	return otelhttp.NewHandler(handler, "glossa")
}

func notFound(w http.ResponseWriter, r *http.Request) {
	httputil.WriteErrorMessage(w, http.StatusNotFound, "not found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "method not allowed")
}
