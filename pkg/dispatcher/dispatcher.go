package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/notifyrelay/pkg/lane"
	"github.com/dmitrymomot/notifyrelay/pkg/logger"
	"github.com/dmitrymomot/notifyrelay/pkg/metrics"
)

// Config bounds publish retries.
type Config struct {
	Retries   uint64        `env:"RELAY_DISPATCH_RETRIES" envDefault:"3"`
	RetryBase time.Duration `env:"RELAY_DISPATCH_RETRY_BASE" envDefault:"100ms"`
	// Timeout bounds each publish call.
	Timeout time.Duration `env:"RELAY_DISPATCH_TIMEOUT" envDefault:"5s"`
}

// Dispatcher publishes routed messages to their channel lane.
type Dispatcher struct {
	transport lane.Transport
	cfg       Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConfig sets the publish retry bounds.
func WithConfig(cfg Config) Option {
	return func(d *Dispatcher) {
		d.cfg.Retries = cfg.Retries
		if cfg.RetryBase > 0 {
			d.cfg.RetryBase = cfg.RetryBase
		}
		if cfg.Timeout > 0 {
			d.cfg.Timeout = cfg.Timeout
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithMetrics sets the dispatch failure counter. Nil disables it.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New builds a dispatcher publishing to transport.
func New(transport lane.Transport, opts ...Option) (*Dispatcher, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}
	d := &Dispatcher{
		transport: transport,
		cfg: Config{
			Retries:   3,
			RetryBase: 100 * time.Millisecond,
			Timeout:   5 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch publishes msg to its lane synchronously. Publish errors are
// retried with exponential backoff; after the last retry the error is
// returned wrapped with ErrDispatchFailed.
func (d *Dispatcher) Dispatch(ctx context.Context, msg lane.Message) error {
	if !msg.Channel.Valid() || !msg.Criticality.Valid() {
		return fmt.Errorf("%w: channel %q criticality %q", ErrInvalidMessage, msg.Channel, msg.Criticality)
	}

	body, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	name := msg.Lane()
	attempt := 0
	b := retry.WithMaxRetries(d.cfg.Retries, retry.NewExponential(d.cfg.RetryBase))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
		defer cancel()

		err := d.transport.Publish(callCtx, name, body)
		if err == nil {
			return nil
		}
		if errors.Is(err, lane.ErrUnknownLane) || errors.Is(err, lane.ErrTransportClosed) {
			return err
		}
		d.logger.LogAttrs(ctx, slog.LevelWarn, "lane publish failed",
			logger.EventID(msg.EventID),
			logger.Lane(name),
			logger.Attempt(attempt),
			logger.Error(err),
		)
		return retry.RetryableError(err)
	})
	if err != nil {
		d.metrics.Dispatch(name, false)
		return fmt.Errorf("%w: %s after %d attempt(s): %w", ErrDispatchFailed, name, attempt, err)
	}

	d.metrics.Dispatch(name, true)
	d.logger.LogAttrs(ctx, slog.LevelDebug, "message dispatched",
		logger.EventID(msg.EventID),
		logger.MessageID(msg.ID),
		logger.Lane(name),
	)
	return nil
}
