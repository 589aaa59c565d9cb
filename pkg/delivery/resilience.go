package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/dmitrymomot/notifyrelay/pkg/logger"
)

// Config tunes the wrappers placed around a channel transport. Fields are
// read with a per-channel prefix, e.g. RELAY_SMS_RATE_PER_SECOND.
type Config struct {
	// RatePerSecond limits outbound sends; 0 disables the limiter.
	RatePerSecond float64 `env:"RATE_PER_SECOND" envDefault:"0"`
	RateBurst     int     `env:"RATE_BURST" envDefault:"1"`
	// BreakerThreshold is the number of consecutive transient failures that
	// opens the circuit; 0 disables the breaker.
	BreakerThreshold        uint32        `env:"BREAKER_THRESHOLD" envDefault:"5"`
	BreakerTimeout          time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`
	BreakerHalfOpenRequests uint32        `env:"BREAKER_HALF_OPEN_REQUESTS" envDefault:"1"`
}

// Wrap applies the circuit breaker and then the rate limiter described by cfg.
func Wrap(name string, s Sender, cfg Config, log *slog.Logger) Sender {
	if cfg.BreakerThreshold > 0 {
		s = WithCircuitBreaker(name, s, cfg, log)
	}
	if cfg.RatePerSecond > 0 {
		s = RateLimited(s, rate.NewLimiter(rate.Limit(cfg.RatePerSecond), max(cfg.RateBurst, 1)))
	}
	return s
}

type rateLimited struct {
	next    Sender
	limiter *rate.Limiter
}

// RateLimited blocks each send until limiter grants a token. A wait that
// cannot finish before ctx ends fails with ErrRateLimited, which is
// transient.
func RateLimited(next Sender, limiter *rate.Limiter) Sender {
	return &rateLimited{next: next, limiter: limiter}
}

func (r *rateLimited) Send(ctx context.Context, target string, c Content) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return r.next.Send(ctx, target, c)
}

type breaker struct {
	next Sender
	cb   *gobreaker.CircuitBreaker
}

// WithCircuitBreaker stops calling next after cfg.BreakerThreshold
// consecutive transient failures. While open, sends fail fast with
// ErrCircuitOpen. Permanent rejections concern one recipient and do not count
// against the provider.
func WithCircuitBreaker(name string, next Sender, cfg Config, log *slog.Logger) Sender {
	if log == nil {
		log = slog.Default()
	}
	threshold := max(cfg.BreakerThreshold, 1)
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: max(cfg.BreakerHalfOpenRequests, 1),
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			level := slog.LevelInfo
			if to == gobreaker.StateOpen {
				level = slog.LevelWarn
			}
			log.LogAttrs(context.Background(), level, "delivery circuit state changed",
				logger.Component(name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &breaker{next: next, cb: cb}
}

func (b *breaker) Send(ctx context.Context, target string, c Content) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Send(ctx, target, c)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, b.cb.Name())
	}
	return err
}
