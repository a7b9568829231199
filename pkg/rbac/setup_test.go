package rbac

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/glossa-dev/glossa/pkg/audit"
	"github.com/glossa-dev/glossa/pkg/auth"
	"github.com/glossa-dev/glossa/pkg/observability"
)

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func testContext() context.Context {
	return observability.WithLogger(context.Background(), quietLogger())
}

// setupTestDB opens a migrated in-memory sqlite database. A single
// connection keeps every statement on the same in-memory database.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	require.NoError(t, RunMigrations(context.Background(), db, DialectSQLite, quietLogger()))
	t.Cleanup(func() { db.Close() })
	return db
}

// setupSeededStore returns a store over a migrated and seeded database
func setupSeededStore(t *testing.T) *Store {
	t.Helper()

	store := NewStore(setupTestDB(t))
	require.NoError(t, Seed(testContext(), store, nil))
	return store
}

func mustRole(t *testing.T, store *Store, code string) *Role {
	t.Helper()
	role, err := store.GetRoleByCode(context.Background(), code)
	require.NoError(t, err)
	require.NotNil(t, role, "role %s", code)
	return role
}

func permissionIDs(t *testing.T, store *Store, codes ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(codes))
	for _, code := range codes {
		p, err := store.GetPermissionByCode(context.Background(), code)
		require.NoError(t, err)
		require.NotNil(t, p, "permission %s", code)
		ids = append(ids, p.ID)
	}
	return ids
}

// createCustomRole creates a non-system role granting codes
func createCustomRole(t *testing.T, store *Store, code string, level int, codes ...string) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := store.InsertRole(ctx, NewRole{Code: code, Name: code, Level: level}, false)
	require.NoError(t, err)
	require.NoError(t, store.ReplaceRolePermissions(ctx, id, permissionIDs(t, store, codes...)))
	return id
}

// recordingAuditLogger keeps audit events in memory
type recordingAuditLogger struct {
	mu     sync.Mutex
	events []*audit.Event
}

func (l *recordingAuditLogger) Log(ctx context.Context, event *audit.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *recordingAuditLogger) Close() error { return nil }

func (l *recordingAuditLogger) Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*audit.Event{}, l.events...), nil
}

func (l *recordingAuditLogger) eventTypes() []audit.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	types := make([]audit.EventType, 0, len(l.events))
	for _, e := range l.events {
		types = append(types, e.EventType)
	}
	return types
}

// staticVerifier maps bearer tokens to user ids
type staticVerifier map[string]int64

func (v staticVerifier) Verify(ctx context.Context, token string) (*auth.Principal, error) {
	userID, ok := v[token]
	if !ok {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Principal{UserID: userID}, nil
}

// countingStore wraps the read interfaces and counts storage calls
type countingStore struct {
	RoleStore
	PermissionStore

	userRoleReads atomic.Int64
	grantReads    atomic.Int64
	fail          error
}

func newCountingStore(store *Store) *countingStore {
	return &countingStore{RoleStore: store, PermissionStore: store}
}

func (c *countingStore) ListUserRoles(ctx context.Context, userID int64) ([]Role, error) {
	c.userRoleReads.Add(1)
	if c.fail != nil {
		return nil, c.fail
	}
	return c.RoleStore.ListUserRoles(ctx, userID)
}

func (c *countingStore) ListRolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	c.grantReads.Add(1)
	return c.PermissionStore.ListRolePermissions(ctx, roleID)
}

func (c *countingStore) reads() int64 {
	return c.userRoleReads.Load() + c.grantReads.Load()
}

var errStorageDown = errors.New("storage unavailable")

// countingRecorder counts gate decisions by check and result
type countingRecorder struct {
	mu        sync.Mutex
	decisions map[string]int
	hits      int
	misses    int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{decisions: map[string]int{}}
}

func (r *countingRecorder) RecordDecision(check, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions[check+"/"+result]++
}

func (r *countingRecorder) RecordCacheLookup(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func (r *countingRecorder) count(check, result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.decisions[check+"/"+result]
}
