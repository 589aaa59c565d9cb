package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifyrelay/pkg/backoff"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
	"github.com/dmitrymomot/notifyrelay/pkg/metrics"
	"github.com/dmitrymomot/notifyrelay/pkg/status"
)

// DeadLetterHook observes every message moved to a dead-letter destination.
type DeadLetterHook func(ctx context.Context, msg lane.Message, a status.Attempt, reason string)

// Option configures a Consumer.
type Option func(*Consumer)

// WithConfig sets the consumer config. Zero fields take their defaults.
func WithConfig(cfg Config) Option {
	return func(c *Consumer) { c.cfg = cfg.withDefaults() }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Consumer) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the delivery metrics. Nil disables them.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Consumer) { c.metrics = m }
}

// WithBackoff overrides the retry delay strategy built from Config.Backoff.
func WithBackoff(s backoff.Strategy) Option {
	return func(c *Consumer) {
		if s != nil {
			c.backoff = s
		}
	}
}

// WithClock sets the time source for retry schedules and staleness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Consumer) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDeadLetterHook sets a hook called after every dead-letter move.
func WithDeadLetterHook(h DeadLetterHook) Option {
	return func(c *Consumer) { c.onDeadLetter = h }
}

// WithID names the instance in logs. Defaults to a random UUID.
func WithID(id string) Option {
	return func(c *Consumer) {
		if id != "" {
			c.id = id
		}
	}
}
