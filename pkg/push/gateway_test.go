package push_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyrelay/pkg/delivery"
	"github.com/dmitrymomot/notifyrelay/pkg/push"
)

func TestNewGatewaySender_InvalidConfig(t *testing.T) {
	t.Parallel()

	for _, u := range []string{"ftp://gateway", "http://", "://bad"} {
		_, err := push.NewGatewaySender(push.Config{GatewayURL: u})
		assert.ErrorIs(t, err, push.ErrInvalidConfig, u)
	}
}

func TestGatewaySender_Send(t *testing.T) {
	t.Parallel()

	content := delivery.Content{Subject: "New message", Body: "You have a new message.", Data: map[string]string{"event_id": "e1"}}

	t.Run("posts JSON with bearer token", func(t *testing.T) {
		t.Parallel()

		var got map[string]any
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer srv.Close()

		s, err := push.NewGatewaySender(push.Config{GatewayURL: srv.URL, Token: "secret"})
		require.NoError(t, err)
		require.NoError(t, s.Send(context.Background(), "device-1", content))

		assert.Equal(t, "device-1", got["device_token"])
		assert.Equal(t, "New message", got["title"])
		assert.Equal(t, "You have a new message.", got["body"])
		assert.Equal(t, map[string]any{"event_id": "e1"}, got["data"])
	})

	t.Run("status classification", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			status    int
			permanent bool
		}{
			{http.StatusBadRequest, true},
			{http.StatusNotFound, true},
			{http.StatusGone, true},
			{http.StatusUnauthorized, false},
			{http.StatusTooManyRequests, false},
			{http.StatusRequestTimeout, false},
			{http.StatusInternalServerError, false},
			{http.StatusServiceUnavailable, false},
		}
		for _, tt := range tests {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))

			s, err := push.NewGatewaySender(push.Config{GatewayURL: srv.URL})
			require.NoError(t, err)
			err = s.Send(context.Background(), "device-1", content)
			srv.Close()

			require.ErrorIs(t, err, push.ErrSendFailed, tt.status)
			assert.Equal(t, tt.permanent, delivery.IsPermanent(err), tt.status)
		}
	})

	t.Run("missing device token", func(t *testing.T) {
		t.Parallel()

		s, err := push.NewGatewaySender(push.Config{GatewayURL: "http://localhost:1"})
		require.NoError(t, err)
		assert.ErrorIs(t, s.Send(context.Background(), "", content), delivery.ErrMissingTarget)
	})

	t.Run("unreachable gateway is transient", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		s, err := push.NewGatewaySender(push.Config{GatewayURL: srv.URL})
		require.NoError(t, err)
		err = s.Send(context.Background(), "device-1", content)
		require.ErrorIs(t, err, push.ErrSendFailed)
		assert.False(t, delivery.IsPermanent(err))
	})
}
