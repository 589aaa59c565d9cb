package status

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/logger"
)

// Config tunes the tracker's store access.
type Config struct {
	Timeout   time.Duration `env:"RELAY_STATUS_TIMEOUT" envDefault:"5s"`
	Retries   uint64        `env:"RELAY_STATUS_RETRIES" envDefault:"3"`
	RetryBase time.Duration `env:"RELAY_STATUS_RETRY_BASE" envDefault:"50ms"`
}

// Tracker is the single writer of delivery status. It rejects transitions
// that leave the state graph and retries store failures before giving up.
type Tracker struct {
	store     Store
	timeout   time.Duration
	retries   uint64
	retryBase time.Duration
	logger    *slog.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithConfig sets the store timeout and retry policy.
func WithConfig(cfg Config) TrackerOption {
	return func(t *Tracker) {
		if cfg.Timeout > 0 {
			t.timeout = cfg.Timeout
		}
		t.retries = cfg.Retries
		if cfg.RetryBase > 0 {
			t.retryBase = cfg.RetryBase
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTracker builds a tracker writing to store.
func NewTracker(store Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		store:     store,
		timeout:   5 * time.Second,
		retries:   3,
		retryBase: 50 * time.Millisecond,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TransitionOption sets optional fields of a transition.
type TransitionOption func(*Transition)

// WithAttemptCount records the number of delivery attempts made so far.
func WithAttemptCount(n int) TransitionOption {
	return func(t *Transition) { t.AttemptCount = &n }
}

// WithError records the failure that caused the transition.
func WithError(err error) TransitionOption {
	return func(t *Transition) {
		if err != nil {
			t.Error = err.Error()
		}
	}
}

// WithNextRetryAt records when the message becomes visible again.
func WithNextRetryAt(at time.Time) TransitionOption {
	return func(t *Transition) {
		at = at.UTC()
		t.NextRetryAt = &at
	}
}

// IfDue restricts the transition to records whose scheduled retry is not
// after now. Records without a scheduled retry are always due.
func IfDue(now time.Time) TransitionOption {
	return func(t *Transition) {
		now = now.UTC()
		t.DueBy = &now
	}
}

// IfVersion restricts the transition to a record still at version v, so a
// decision taken on a read record cannot overwrite a newer change.
func IfVersion(v int64) TransitionOption {
	return func(t *Transition) { t.Version = &v }
}

// Begin writes the PENDING record for a routed (event, channel) pair. When a
// record already exists it is returned unchanged with created=false.
func (t *Tracker) Begin(ctx context.Context, a Attempt) (Attempt, bool, error) {
	a.Status = Pending
	a.AttemptCount = 0
	a.Version = 0

	var (
		stored  Attempt
		created bool
	)
	err := t.withRetry(ctx, "begin", func(ctx context.Context) error {
		var err error
		stored, created, err = t.store.Create(ctx, a)
		return err
	})
	if err != nil {
		return Attempt{}, false, err
	}
	return stored, created, nil
}

// Transition moves (eventID, channel) to `to` if its stored status is one of
// from. It reports whether the update applied and returns the stored record.
// A not-applied result is not an error: callers inspect the record's status.
func (t *Tracker) Transition(
	ctx context.Context,
	eventID string,
	channel event.Channel,
	from []Status,
	to Status,
	opts ...TransitionOption,
) (Attempt, bool, error) {
	if len(from) == 0 {
		return Attempt{}, false, fmt.Errorf("%w: empty source set for %s", ErrIllegalTransition, to)
	}
	for _, f := range from {
		if !CanTransition(f, to) {
			return Attempt{}, false, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, f, to)
		}
	}

	tr := Transition{EventID: eventID, Channel: channel, From: from, To: to}
	for _, opt := range opts {
		opt(&tr)
	}

	var (
		stored  Attempt
		applied bool
	)
	err := t.withRetry(ctx, "transition", func(ctx context.Context) error {
		var err error
		stored, applied, err = t.store.Transition(ctx, tr)
		return err
	})
	if err != nil {
		return Attempt{}, false, err
	}

	if !applied {
		t.logger.LogAttrs(ctx, slog.LevelDebug, "status transition not applied",
			logger.EventID(eventID),
			logger.Channel(channel),
			logger.Status(to),
			slog.String("current", string(stored.Status)),
		)
	}
	return stored, applied, nil
}

// Get returns the record of one (event, channel) pair.
func (t *Tracker) Get(ctx context.Context, eventID string, channel event.Channel) (Attempt, error) {
	var a Attempt
	err := t.withRetry(ctx, "get", func(ctx context.Context) error {
		var err error
		a, err = t.store.Get(ctx, eventID, channel)
		return err
	})
	return a, err
}

// List returns every channel record of an event.
func (t *Tracker) List(ctx context.Context, eventID string) ([]Attempt, error) {
	var out []Attempt
	err := t.withRetry(ctx, "list", func(ctx context.Context) error {
		var err error
		out, err = t.store.List(ctx, eventID)
		return err
	})
	return out, err
}

// withRetry runs op with a per-call timeout. Store errors other than
// ErrNotFound are retried with exponential backoff.
func (t *Tracker) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	b := retry.WithMaxRetries(t.retries, retry.NewExponential(t.retryBase))

	attempt := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		err := fn(callCtx)
		if err == nil || errors.Is(err, ErrNotFound) {
			return err
		}
		t.logger.LogAttrs(ctx, slog.LevelWarn, "status store call failed",
			slog.String("op", op),
			logger.Attempt(attempt),
			logger.Error(err),
		)
		return retry.RetryableError(err)
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return err
}
