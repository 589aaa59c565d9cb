package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
	"github.com/dmitrymomot/notifyrelay/pkg/logger"
	"github.com/dmitrymomot/notifyrelay/pkg/router"
)

// Router routes one event to its channel lanes.
type Router interface {
	Route(ctx context.Context, evt event.Event) (router.Result, error)
}

// Listener feeds the inbound lane into a Router.
type Listener struct {
	transport lane.Transport
	router    Router
	cfg       Config
	logger    *slog.Logger
}

// Option configures a Listener.
type Option func(*Listener)

// WithConfig sets the listener config. Zero fields take their defaults.
func WithConfig(cfg Config) Option {
	return func(l *Listener) { l.cfg = cfg.withDefaults() }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(l *Listener) {
		if log != nil {
			l.logger = log
		}
	}
}

// NewListener builds a listener feeding r from the inbound lane.
func NewListener(transport lane.Transport, r Router, opts ...Option) (*Listener, error) {
	if transport == nil || r == nil {
		return nil, ErrNilDependency
	}
	l := &Listener{
		transport: transport,
		router:    r,
		cfg:       DefaultConfig(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(logger.Component("ingest"), logger.Lane(l.cfg.Lane))
	return l, nil
}

// Run returns a loop suitable for errgroup. It stops pulling once ctx is
// cancelled and returns nil.
func (l *Listener) Run(ctx context.Context) func() error {
	return func() error {
		l.logger.LogAttrs(ctx, slog.LevelInfo, "ingest listener started")
		defer l.logger.Info("ingest listener stopped")

		for ctx.Err() == nil {
			if _, err := l.PollOnce(ctx); err != nil {
				if ctx.Err() != nil {
					break
				}
				l.logger.LogAttrs(ctx, slog.LevelWarn, "event pull failed", logger.Error(err))
				select {
				case <-ctx.Done():
				case <-time.After(l.cfg.ErrorPause):
				}
			}
		}
		return nil
	}
}

// PollOnce pulls one batch and routes every event in it. It returns the
// number of deliveries pulled.
func (l *Listener) PollOnce(ctx context.Context) (int, error) {
	batch, err := l.transport.PullBatch(ctx, l.cfg.Lane, l.cfg.BatchSize, l.cfg.PollTimeout)
	if err != nil {
		return 0, fmt.Errorf("pull %s: %w", l.cfg.Lane, err)
	}
	for i, d := range batch {
		if ctx.Err() != nil {
			l.release(batch[i:])
			break
		}
		l.handle(ctx, d)
	}
	return len(batch), nil
}

func (l *Listener) handle(ctx context.Context, d lane.Delivery) {
	ctx = context.WithoutCancel(ctx)
	log := l.logger.With(logger.MessageID(d.ID))

	evt, err := event.Decode(d.Body)
	if err != nil {
		l.deadLetter(ctx, log, d, err)
		return
	}
	log = log.With(logger.EventID(evt.ID), logger.EventType(evt.Type))

	routeCtx, cancel := context.WithTimeout(ctx, l.cfg.RouteTimeout)
	res, err := l.router.Route(routeCtx, evt)
	cancel()

	switch {
	case err == nil:
		l.laneOp(ctx, log, "ack", func(ctx context.Context) error {
			return l.transport.Ack(ctx, d)
		})
		log.LogAttrs(ctx, slog.LevelDebug, "event routed",
			logger.Criticality(res.Criticality),
			slog.Bool("degraded", res.Degraded),
		)
	case errors.Is(err, router.ErrInvalidEvent):
		l.deadLetter(ctx, log, d, err)
	case d.ReceiveCount >= l.cfg.MaxReceives:
		l.deadLetter(ctx, log, d, fmt.Errorf("giving up after %d receives: %w", d.ReceiveCount, err))
	default:
		log.LogAttrs(ctx, slog.LevelWarn, "event routing incomplete, retry scheduled",
			logger.Attempt(d.ReceiveCount),
			logger.Delay(l.cfg.RetryDelay),
			logger.Error(err),
		)
		l.laneOp(ctx, log, "return", func(ctx context.Context) error {
			return l.transport.ReturnWithDelay(ctx, d, l.cfg.RetryDelay)
		})
	}
}

func (l *Listener) deadLetter(ctx context.Context, log *slog.Logger, d lane.Delivery, cause error) {
	log.LogAttrs(ctx, slog.LevelError, "inbound event dead-lettered",
		logger.Alert(),
		logger.Attempt(d.ReceiveCount),
		logger.Error(cause),
	)
	l.laneOp(ctx, log, "dead-letter", func(ctx context.Context) error {
		return l.transport.DeadLetter(ctx, d, cause.Error())
	})
}

func (l *Listener) release(rest []lane.Delivery) {
	ctx := context.Background()
	for _, d := range rest {
		l.laneOp(ctx, l.logger.With(logger.MessageID(d.ID)), "release", func(ctx context.Context) error {
			return l.transport.ReturnWithDelay(ctx, d, 0)
		})
	}
}

func (l *Listener) laneOp(ctx context.Context, log *slog.Logger, op string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.LaneTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.LogAttrs(ctx, slog.LevelWarn, "lane operation failed",
			slog.String("op", op),
			logger.Error(err),
		)
	}
}
