package observability

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics.DecisionsTotal == nil || metrics.CacheLookupsTotal == nil {
		t.Fatal("authorization metrics not initialized")
	}

	t.Run("registering twice panics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("expected duplicate registration to panic")
			}
		}()
		NewMetrics(registry)
	})
}

func TestMetrics_RecordDecision(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordDecision("one", "allowed")
	metrics.RecordDecision("one", "allowed")
	metrics.RecordDecision("any", "denied")
	metrics.RecordDecision("auth", "unauthenticated")

	if got := testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("one", "allowed")); got != 2 {
		t.Errorf("allowed one = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("any", "denied")); got != 1 {
		t.Errorf("denied any = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(metrics.DecisionsTotal); got != 3 {
		t.Errorf("series = %d, want 3", got)
	}
}

func TestMetrics_RecordCacheLookup(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordCacheLookup(true)
	metrics.RecordCacheLookup(false)
	metrics.RecordCacheLookup(false)

	if got := testutil.ToFloat64(metrics.CacheLookupsTotal.WithLabelValues("hit")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.CacheLookupsTotal.WithLabelValues("miss")); got != 2 {
		t.Errorf("misses = %v, want 2", got)
	}
}

func TestMetrics_RecordAuditCleanup(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.RecordAuditCleanup(12, nil)
	metrics.RecordAuditCleanup(3, nil)
	metrics.RecordAuditCleanup(0, errors.New("db down"))

	if got := testutil.ToFloat64(metrics.AuditEventsPurgedTotal); got != 15 {
		t.Errorf("purged = %v, want 15", got)
	}
	if got := testutil.ToFloat64(metrics.AuditCleanupFailures); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/api/v1/admin/roles/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	}).Methods("GET")

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/v1/admin/roles/"+id, nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	counter := metrics.HTTPRequestsTotal.WithLabelValues("GET", "/api/v1/admin/roles/{id}", "404")
	if got := testutil.ToFloat64(counter); got != 3 {
		t.Errorf("requests = %v, want 3 under one route label", got)
	}
	if got := testutil.CollectAndCount(metrics.HTTPRequestsTotal); got != 1 {
		t.Errorf("series = %d, want 1", got)
	}
}

func TestRouteLabel_Unmatched(t *testing.T) {
	if got := routeLabel(httptest.NewRequest("GET", "/nowhere", nil)); got != "unmatched" {
		t.Errorf("routeLabel = %q", got)
	}
}

func TestResponseWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.WriteHeader(http.StatusCreated)
	n, err := rw.Write([]byte("hello"))
	if err != nil || n != 5 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	rw.Write([]byte(" world"))

	if rw.statusCode != http.StatusCreated {
		t.Errorf("statusCode = %d", rw.statusCode)
	}
	if rw.bytesWritten != 11 {
		t.Errorf("bytesWritten = %d, want 11", rw.bytesWritten)
	}
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.RecordDecision("all", "allowed")

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	RegisterDBStats(registry, db, "glossa")

	server := httptest.NewServer(MetricsHandler(registry))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`glossa_rbac_decisions_total{check="all",result="allowed"} 1`,
		`go_sql_open_connections{db_name="glossa"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
