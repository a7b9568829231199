package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *Logger {
	return NewLogger(ErrorLevel, io.Discard)
}

func TestNewShutdownManager(t *testing.T) {
	assert.Equal(t, 30*time.Second, NewShutdownManager(quietLogger(), nil, 0).shutdownTimeout)
	assert.Equal(t, time.Second, NewShutdownManager(quietLogger(), nil, time.Second).shutdownTimeout)
	assert.NotNil(t, NewShutdownManager(nil, nil, 0).logger)
}

func TestShutdownManager_ReverseOrder(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), nil, time.Second)

	var order []string
	for _, name := range []string{"database", "redis", "otel"} {
		name := name
		sm.Register(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}
	sm.Register("nil", nil)

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []string{"otel", "redis", "database"}, order)
}

func TestShutdownManager_ErrorsAreJoined(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), nil, time.Second)
	errRedis := errors.New("redis close failed")
	ran := false

	sm.Register("database", func(context.Context) error { ran = true; return nil })
	sm.Register("redis", func(context.Context) error { return errRedis })

	err := sm.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errRedis)
	assert.Contains(t, err.Error(), "redis")
	assert.True(t, ran, "later steps still run after a failure")
}

func TestShutdownManager_ExpiredContext(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), nil, time.Second)
	called := false
	sm.Register("database", func(context.Context) error { called = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sm.Shutdown(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestShutdownManager_StopsServer(t *testing.T) {
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server.Start()
	defer server.Close()

	sm := NewShutdownManager(quietLogger(), server.Config, time.Second)
	require.NoError(t, sm.Shutdown(context.Background()))

	_, err := http.Get(server.URL)
	assert.Error(t, err, "server no longer accepts connections")
}

func TestShutdownManager_SetServerAfterRegister(t *testing.T) {
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server.Start()
	defer server.Close()

	sm := NewShutdownManager(quietLogger(), nil, time.Second)
	released := false
	sm.Register("database", func(context.Context) error { released = true; return nil })
	sm.SetServer(server.Config)

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.True(t, released)
	_, err := http.Get(server.URL)
	assert.Error(t, err)
}

func TestShutdownManager_WaitForShutdown(t *testing.T) {
	sm := NewShutdownManager(quietLogger(), nil, time.Second)
	done := make(chan struct{})
	sm.Register("marker", func(context.Context) error { close(done); return nil })

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- sm.WaitForShutdown(ctx) }()

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForShutdown did not return after cancellation")
	}
	<-done
}
