package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifyrelay/pkg/config"
	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/logger"
	"github.com/dmitrymomot/notifyrelay/pkg/status"
)

const preferencesYAML = `
- user_id: user-1
  contacts:
    email: user-1@example.com
    device_token: device-1
- user_id: user-2
  priority_only: true
  contacts:
    email: user-2@example.com
`

func loadTestConfig(t *testing.T, env map[string]string) Config {
	t.Helper()
	for k, v := range env {
		t.Setenv(k, v)
	}
	config.Reset()
	t.Cleanup(config.Reset)

	cfg, err := loadConfig()
	require.NoError(t, err)
	return cfg
}

func TestConfig_Defaults(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{
		"RELAY_SMS_RATE_PER_SECOND": "2.5",
		"RELAY_MAX_ATTEMPTS":        "7",
		"RELAY_BASE_DELAY":          "250ms",
	})

	assert.Equal(t, roleAll, cfg.Role)
	assert.Equal(t, []string{"email", "sms", "push"}, cfg.Channels)
	assert.Equal(t, backendMemory, cfg.LaneBackend)
	assert.Equal(t, 7, cfg.Consumer.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Consumer.Backoff.Base)
	assert.Equal(t, 30*time.Second, cfg.Lane.VisibilityTimeout)
	assert.Equal(t, "events", cfg.Ingest.Lane)

	assert.InDelta(t, 2.5, cfg.deliveryConfig(event.ChannelSMS).RatePerSecond, 0.001)
	assert.Zero(t, cfg.deliveryConfig(event.ChannelEmail).RatePerSecond)
	assert.EqualValues(t, 5, cfg.deliveryConfig(event.ChannelPush).BreakerThreshold)
	require.NoError(t, cfg.validate())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	valid := Config{
		Role:               roleAll,
		Channels:           []string{"email"},
		LaneBackend:        backendMemory,
		StatusBackend:      backendMemory,
		PreferencesBackend: backendMemory,
		EmailBackend:       backendDev,
	}
	require.NoError(t, valid.validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown role", func(c *Config) { c.Role = "worker" }, "RELAY_ROLE"},
		{"unknown lane backend", func(c *Config) { c.LaneBackend = "kafka" }, "RELAY_LANE_BACKEND"},
		{"unknown status backend", func(c *Config) { c.StatusBackend = "sqlite" }, "RELAY_STATUS_BACKEND"},
		{"unknown email backend", func(c *Config) { c.EmailBackend = "smtp" }, "RELAY_EMAIL_BACKEND"},
		{"split roles on memory lanes", func(c *Config) { c.Role = roleConsumer }, "shared lane and status backends"},
		{"no channels", func(c *Config) { c.Channels = nil }, "RELAY_CHANNELS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := valid
			tt.mutate(&cfg)
			err := cfg.validate()
			require.ErrorIs(t, err, errInvalidConfig)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestConfig_Channels(t *testing.T) {
	t.Parallel()

	chs, err := Config{Channels: []string{" Email", "push", "email"}}.channels()
	require.NoError(t, err)
	assert.Equal(t, []event.Channel{event.ChannelEmail, event.ChannelPush}, chs)

	_, err = Config{Channels: []string{"fax"}}.channels()
	assert.ErrorIs(t, err, event.ErrUnknownChannel)

	assert.True(t, Config{LaneBackend: backendSQS}.needsAWS(nil))
	assert.True(t, Config{Role: roleAll}.needsAWS([]event.Channel{event.ChannelSMS}))
	assert.False(t, Config{Role: roleRouter, LaneBackend: backendRedis}.needsAWS([]event.Channel{event.ChannelSMS}))
}

func TestApp_DeliversSubmittedEvents(t *testing.T) {
	dir := t.TempDir()
	prefsFile := filepath.Join(dir, "preferences.yaml")
	require.NoError(t, os.WriteFile(prefsFile, []byte(preferencesYAML), 0o600))

	var pushes atomic.Int32
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer push-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		pushes.Add(1)
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(gateway.Close)

	mailDir := filepath.Join(dir, "mail")
	cfg := loadTestConfig(t, map[string]string{
		"RELAY_CHANNELS":            "email,push",
		"RELAY_HTTP_ADDR":           "127.0.0.1:0",
		"RELAY_PREFERENCES_FILE":    prefsFile,
		"RELAY_EMAIL_DEV_DIR":       mailDir,
		"RELAY_PUSH_GATEWAY_URL":    gateway.URL,
		"RELAY_PUSH_TOKEN":          "push-secret",
		"RELAY_POLL_TIMEOUT":        "20ms",
		"RELAY_INGEST_POLL_TIMEOUT": "20ms",
		"RELAY_LANE_POLL_INTERVAL":  "5ms",
		"RELAY_RUNTIME_METRICS":     "false",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, a.close()) })
	assert.NotNil(t, a.listener)
	assert.Len(t, a.consumers, 2)

	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	select {
	case <-a.server.Ready():
	case <-time.After(5 * time.Second):
		t.Fatal("http server did not start")
	}
	base := "http://" + a.server.Addr()

	resp, err := http.Post(base+"/events", "application/json",
		strings.NewReader(`{"user_id":"user-1","event_type":"MESSAGE"}`))
	require.NoError(t, err)
	var submitted struct {
		Data struct {
			Accepted []string `json:"accepted"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&submitted))
	_ = resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, submitted.Data.Accepted, 1)
	id := submitted.Data.Accepted[0]

	delivered := func() map[event.Channel]status.Status {
		resp, err := http.Get(base + "/events/" + id)
		if err != nil {
			return nil
		}
		defer resp.Body.Close()
		var body struct {
			Data struct {
				Channels []status.Attempt `json:"channels"`
			} `json:"data"`
		}
		if json.NewDecoder(resp.Body).Decode(&body) != nil {
			return nil
		}
		out := make(map[event.Channel]status.Status)
		for _, att := range body.Data.Channels {
			out[att.Channel] = att.Status
		}
		return out
	}
	require.Eventually(t, func() bool {
		st := delivered()
		return st[event.ChannelEmail] == status.Success && st[event.ChannelPush] == status.Success
	}, 5*time.Second, 20*time.Millisecond)

	// No sms consumer runs in this process, so the sms record waits in its lane.
	assert.Equal(t, status.Pending, delivered()[event.ChannelSMS])
	assert.EqualValues(t, 1, pushes.Load())

	files, err := filepath.Glob(filepath.Join(mailDir, "*"+id+".txt"))
	require.NoError(t, err)
	assert.Len(t, files, 1)

	resp, err = http.Get(base + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	var metricsBody strings.Builder
	_, _ = io.Copy(&metricsBody, resp.Body)
	_ = resp.Body.Close()
	assert.Contains(t, metricsBody.String(), `notifyrelay_deliveries_total{channel="push",lane="push_critical",outcome="success"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestNewApp_RejectsBadPreferencesFile(t *testing.T) {
	cfg := loadTestConfig(t, map[string]string{
		"RELAY_CHANNELS":         "email",
		"RELAY_PREFERENCES_FILE": filepath.Join(t.TempDir(), "missing.yaml"),
		"RELAY_RUNTIME_METRICS":  "false",
	})

	_, err := newApp(context.Background(), cfg, logger.Discard())
	assert.ErrorIs(t, err, config.ErrReadingFile)
}

func TestRequestIDExtractor(t *testing.T) {
	t.Parallel()

	_, ok := requestID(context.Background())
	assert.False(t, ok)

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	attr, ok := requestID(ctx)
	require.True(t, ok)
	assert.Equal(t, "request_id", attr.Key)
	assert.Equal(t, "req-1", attr.Value.String())
}
