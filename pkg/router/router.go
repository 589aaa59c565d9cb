package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
	"github.com/dmitrymomot/notifyrelay/pkg/logger"
	"github.com/dmitrymomot/notifyrelay/pkg/metrics"
	"github.com/dmitrymomot/notifyrelay/pkg/preferences"
	"github.com/dmitrymomot/notifyrelay/pkg/status"
)

// Classifier assigns an event its criticality.
type Classifier interface {
	Classify(ctx context.Context, evt event.Event) event.Criticality
}

// Tracker is the subset of *status.Tracker the router needs.
type Tracker interface {
	Begin(ctx context.Context, a status.Attempt) (status.Attempt, bool, error)
	Transition(ctx context.Context, eventID string, ch event.Channel, from []status.Status, to status.Status, opts ...status.TransitionOption) (status.Attempt, bool, error)
}

// Dispatcher publishes a lane message.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg lane.Message) error
}

// Config tunes the router.
type Config struct {
	PreferencesTimeout time.Duration `env:"RELAY_PREFERENCES_TIMEOUT" envDefault:"2s"`
}

// Outcome is what happened to one channel of a routed event.
type Outcome string

const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeSuppressed Outcome = "suppressed"
	// OutcomeDuplicate means a record for the (event, channel) pair already
	// exists and is being processed or is finished.
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// ChannelResult reports the routing of one channel.
type ChannelResult struct {
	ChannelDecision
	Outcome Outcome
	// Status is the stored delivery status after routing, if any.
	Status status.Status
	Err    error
}

// Result describes a routed event.
type Result struct {
	EventID     string
	Criticality event.Criticality
	// Degraded is set when preferences could not be read and defaults were used.
	Degraded bool
	Channels []ChannelResult
}

// Router turns an inbound event into per-channel lane messages.
type Router struct {
	classifier  Classifier
	preferences preferences.Store
	tracker     Tracker
	dispatcher  Dispatcher

	prefsTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures a Router.
type Option func(*Router)

// WithConfig sets the preference lookup timeout.
func WithConfig(cfg Config) Option {
	return func(r *Router) {
		if cfg.PreferencesTimeout > 0 {
			r.prefsTimeout = cfg.PreferencesTimeout
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics sets the routing metrics. Nil disables them.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithClock replaces time.Now for quiet-hours evaluation.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// New wires a router. Pass a preferences.CachedStore to bound lookup load.
func New(c Classifier, prefs preferences.Store, tracker Tracker, d Dispatcher, opts ...Option) (*Router, error) {
	if c == nil || prefs == nil || tracker == nil || d == nil {
		return nil, ErrNilDependency
	}
	r := &Router{
		classifier:   c,
		preferences:  prefs,
		tracker:      tracker,
		dispatcher:   d,
		prefsTimeout: 2 * time.Second,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Route classifies evt, applies the user's preferences and, for every
// channel that is not suppressed, records a PENDING delivery before
// publishing it to the channel lane.
//
// A record that already exists makes the call idempotent: PENDING is
// published again, FAILED is moved back to PENDING and published again, and
// anything else is left alone. When a publish keeps failing the record is
// marked FAILED. Route returns ErrIncomplete if any channel failed; the
// Result is populated either way.
func (r *Router) Route(ctx context.Context, evt event.Event) (Result, error) {
	if err := evt.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidEvent, err)
	}

	crit := r.classifier.Classify(ctx, evt)
	prefs, degraded := r.lookup(ctx, evt)

	now := r.now()
	if _, err := prefs.QuietHours.Active(now); err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "invalid quiet hours setting",
			logger.EventID(evt.ID),
			logger.UserID(evt.UserID),
			logger.Error(err),
		)
	}
	decision := Decide(crit, prefs, now)

	res := Result{
		EventID:     evt.ID,
		Criticality: crit,
		Degraded:    degraded,
		Channels:    make([]ChannelResult, 0, len(decision.Channels)),
	}

	var errs []error
	for _, cd := range decision.Channels {
		r.metrics.RoutingDecision(string(cd.Channel), string(cd.Action))

		if cd.Action == Suppress {
			res.Channels = append(res.Channels, ChannelResult{ChannelDecision: cd, Outcome: OutcomeSuppressed})
			r.logger.LogAttrs(ctx, slog.LevelDebug, "channel suppressed",
				logger.EventID(evt.ID),
				logger.Channel(cd.Channel),
				slog.String("reason", string(cd.Reason)),
			)
			continue
		}

		cr := r.routeChannel(ctx, evt, crit, cd, prefs.Target(cd.Channel))
		if cr.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", cd.Channel, cr.Err))
		}
		res.Channels = append(res.Channels, cr)
	}

	if len(errs) > 0 {
		return res, fmt.Errorf("%w: %w", ErrIncomplete, errors.Join(errs...))
	}
	return res, nil
}

// lookup never fails: a missing profile means defaults, and an unavailable
// store means defaults in degraded mode.
func (r *Router) lookup(ctx context.Context, evt event.Event) (preferences.Preferences, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.prefsTimeout)
	defer cancel()

	p, err := r.preferences.Get(ctx, evt.UserID)
	switch {
	case err == nil:
		return p, false
	case errors.Is(err, preferences.ErrNotFound):
		return preferences.Default(evt.UserID), false
	}

	r.metrics.DegradedLookup()
	r.logger.LogAttrs(ctx, slog.LevelWarn, "preference lookup failed, routing with defaults",
		logger.EventID(evt.ID),
		logger.UserID(evt.UserID),
		logger.Error(err),
	)
	return preferences.Default(evt.UserID), true
}

func (r *Router) routeChannel(ctx context.Context, evt event.Event, crit event.Criticality, cd ChannelDecision, target string) ChannelResult {
	cr := ChannelResult{ChannelDecision: cd}
	laneName := cd.Lane()

	stored, created, err := r.tracker.Begin(ctx, status.Attempt{
		EventID:   evt.ID,
		Channel:   cd.Channel,
		Lane:      laneName,
		UserID:    evt.UserID,
		EventType: evt.Type,
	})
	if err != nil {
		cr.Outcome, cr.Err = OutcomeFailed, err
		r.logger.LogAttrs(ctx, slog.LevelError, "cannot record delivery, not dispatching",
			logger.EventID(evt.ID),
			logger.Channel(cd.Channel),
			logger.Error(err),
		)
		return cr
	}
	cr.Status = stored.Status

	if !created {
		switch stored.Status {
		case status.Pending:
			// Published before, or lost between the write and the publish.
		case status.Failed:
			a, applied, err := r.tracker.Transition(ctx, evt.ID, cd.Channel, []status.Status{status.Failed}, status.Pending)
			if err != nil {
				cr.Outcome, cr.Err = OutcomeFailed, err
				return cr
			}
			if !applied {
				cr.Outcome, cr.Status = OutcomeDuplicate, a.Status
				return cr
			}
			cr.Status = a.Status
			stored = a
		default:
			cr.Outcome = OutcomeDuplicate
			r.logger.LogAttrs(ctx, slog.LevelInfo, "duplicate event, delivery already in progress or finished",
				logger.EventID(evt.ID),
				logger.Channel(cd.Channel),
				logger.Status(stored.Status),
			)
			return cr
		}
	}

	msg := lane.NewMessage(evt, cd.Channel, crit, target)
	msg.Attempt = stored.AttemptCount

	if err := r.dispatcher.Dispatch(ctx, msg); err != nil {
		a, _, terr := r.tracker.Transition(ctx, evt.ID, cd.Channel,
			[]status.Status{status.Pending}, status.Failed, status.WithError(err))
		if terr == nil {
			cr.Status = a.Status
		}
		cr.Outcome, cr.Err = OutcomeFailed, errors.Join(err, terr)
		r.logger.LogAttrs(ctx, slog.LevelError, "dispatch failed, delivery marked FAILED",
			logger.Alert(),
			logger.EventID(evt.ID),
			logger.Channel(cd.Channel),
			logger.Lane(laneName),
			logger.Errors(err, terr),
		)
		return cr
	}

	cr.Outcome = OutcomeDispatched
	r.logger.LogAttrs(ctx, slog.LevelInfo, "event routed",
		logger.EventID(evt.ID),
		logger.Channel(cd.Channel),
		logger.Lane(laneName),
		logger.Criticality(crit),
	)
	return cr
}
