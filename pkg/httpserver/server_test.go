package httpserver_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyrelay/pkg/httpserver"
)

func start(t *testing.T, ctx context.Context, srv *httpserver.Server, h http.Handler) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, h) }()
	select {
	case <-srv.Ready():
	case err := <-done:
		t.Fatalf("server failed to start: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	return done
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"), httpserver.WithShutdownTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := start(t, ctx, srv, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	resp, err := http.Get("http://" + srv.Addr())
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestShutdown(t *testing.T) {
	t.Parallel()

	srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"))
	// Before Run it is a no-op.
	require.NoError(t, srv.Shutdown(context.Background()))

	done := start(t, context.Background(), srv, nil)
	require.NoError(t, srv.Shutdown(context.Background()))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	t.Run("invalid address", func(t *testing.T) {
		t.Parallel()

		err := httpserver.New(httpserver.WithAddr(":invalid")).Run(context.Background(), nil)
		assert.ErrorIs(t, err, httpserver.ErrStart)
	})

	t.Run("already running", func(t *testing.T) {
		t.Parallel()

		srv := httpserver.New(httpserver.WithAddr("127.0.0.1:0"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		done := start(t, ctx, srv, nil)

		err := srv.Run(ctx, nil)
		assert.ErrorIs(t, err, httpserver.ErrRunning)

		cancel()
		require.NoError(t, <-done)
	})
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	srv := httpserver.NewFromConfig(httpserver.Config{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	done := start(t, ctx, srv, nil)
	assert.NotEqual(t, "127.0.0.1:0", srv.Addr())
	cancel()
	require.NoError(t, <-done)
}

func TestOptionsPanicOnInvalidInput(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { httpserver.WithAddr("") })
	assert.Panics(t, func() { httpserver.WithReadTimeout(0) })
	assert.Panics(t, func() { httpserver.WithWriteTimeout(-time.Second) })
	assert.Panics(t, func() { httpserver.WithIdleTimeout(0) })
	assert.Panics(t, func() { httpserver.WithShutdownTimeout(0) })
}

func TestHealthCheckHandler(t *testing.T) {
	t.Parallel()

	ok := httpserver.Check{Name: "postgres", Fn: func(context.Context) error { return nil }}
	down := httpserver.Check{Name: "redis", Fn: func(context.Context) error { return errors.New("connection refused") }}

	tests := []struct {
		name     string
		checks   []httpserver.Check
		wantCode int
		want     string
		wantAll  map[string]string
	}{
		{name: "liveness", wantCode: http.StatusOK, want: "alive"},
		{name: "ready", checks: []httpserver.Check{ok}, wantCode: http.StatusOK, want: "ready",
			wantAll: map[string]string{"postgres": "ok"}},
		{name: "not ready", checks: []httpserver.Check{ok, down}, wantCode: http.StatusServiceUnavailable, want: "not_ready",
			wantAll: map[string]string{"postgres": "ok", "redis": "fail"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			httpserver.HealthCheckHandler(nil, time.Second, tt.checks...).
				ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, tt.wantCode, rec.Code)
			var body struct {
				Status string            `json:"status"`
				Checks map[string]string `json:"checks"`
			}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.want, body.Status)
			if tt.wantAll != nil {
				assert.Equal(t, tt.wantAll, body.Checks)
			}
		})
	}
}
