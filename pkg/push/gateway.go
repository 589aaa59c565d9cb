package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/notifyrelay/pkg/delivery"
)

// Config points the sender at an HTTP push gateway.
type Config struct {
	GatewayURL string        `env:"RELAY_PUSH_GATEWAY_URL" envDefault:"http://localhost:8090/push"`
	Token      string        `env:"RELAY_PUSH_TOKEN"`
	Timeout    time.Duration `env:"RELAY_PUSH_TIMEOUT" envDefault:"10s"`
}

// request is the JSON body accepted by the gateway.
type request struct {
	DeviceToken string            `json:"device_token"`
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Data        map[string]string `json:"data,omitempty"`
}

// GatewaySender posts push notifications to the gateway with a bearer token.
// The gateway fans them out to APNs/FCM.
type GatewaySender struct {
	client   *http.Client
	endpoint string
	token    string
}

// Option configures a GatewaySender.
type Option func(*GatewaySender)

// WithHTTPClient replaces the default pooled client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *GatewaySender) {
		if c != nil {
			s.client = c
		}
	}
}

// NewGatewaySender validates cfg and builds a sender.
func NewGatewaySender(cfg Config, opts ...Option) (*GatewaySender, error) {
	u, err := url.Parse(cfg.GatewayURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: only http and https gateways are supported", ErrInvalidConfig)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: gateway host is required", ErrInvalidConfig)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &GatewaySender{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		endpoint: u.String(),
		token:    cfg.Token,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Send implements delivery.Sender.
func (s *GatewaySender) Send(ctx context.Context, deviceToken string, c delivery.Content) error {
	if deviceToken == "" {
		return delivery.ErrMissingTarget
	}

	payload, err := json.Marshal(request{
		DeviceToken: deviceToken,
		Title:       c.Subject,
		Body:        c.Body,
		Data:        c.Data,
	})
	if err != nil {
		return delivery.Permanent(fmt.Errorf("%w: %w", ErrSendFailed, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "notifyrelay-push/1.0")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	// 64KB is plenty for an error description.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	msg := strings.ReplaceAll(string(body), "\n", " ")
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	err = fmt.Errorf("%w: gateway returned status %d: %s", ErrSendFailed, resp.StatusCode, msg)
	if isPermanentStatus(resp.StatusCode) {
		return delivery.Permanent(err)
	}
	return err
}

// isPermanentStatus reports whether the gateway rejected this particular
// notification for good. Auth failures are a relay misconfiguration, not a
// property of the recipient, so they stay retryable.
func isPermanentStatus(code int) bool {
	if code < 400 || code >= 500 {
		return false
	}
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden,
		http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return false
	}
	return true
}
