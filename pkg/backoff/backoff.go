package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before the next delivery attempt.
// Implementations must be safe for concurrent use.
type Strategy interface {
	// Delay returns the wait after the given failed attempt. Attempt 1 is the
	// first failure.
	Delay(attempt int) time.Duration
}

// Exponential doubles the delay on every failure: Base, 2*Base, 4*Base, ...
// Cap bounds the delay when positive. Jitter in [0, 1] spreads each delay
// uniformly over [d*(1-Jitter), d*(1+Jitter)] before capping.
type Exponential struct {
	Base   time.Duration
	Cap    time.Duration
	Jitter float64
}

// Delay returns Base * 2^(attempt-1), jittered and capped.
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt <= 0 || e.Base <= 0 {
		return 0
	}

	d := float64(e.Base) * math.Pow(2, float64(attempt-1))

	if j := min(max(e.Jitter, 0), 1); j > 0 {
		d *= 1 + (rand.Float64()*2-1)*j
	}

	if e.Cap > 0 && d > float64(e.Cap) {
		d = float64(e.Cap)
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Config is the env-driven form of Exponential.
type Config struct {
	Base   time.Duration `env:"RELAY_BASE_DELAY" envDefault:"1s"`
	Cap    time.Duration `env:"RELAY_BACKOFF_CAP" envDefault:"5m"`
	Jitter float64       `env:"RELAY_BACKOFF_JITTER" envDefault:"0"`
}

// New builds the strategy described by cfg.
func New(cfg Config) Exponential {
	return Exponential{Base: cfg.Base, Cap: cfg.Cap, Jitter: cfg.Jitter}
}
