package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/dmitrymomot/notifyrelay/pkg/config"
	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/logger"
)

// Map assigns a default criticality to each event type.
type Map map[event.Type]event.Criticality

// DefaultMap is used when no override is configured.
func DefaultMap() Map {
	return Map{
		event.TypeMessage:  event.Critical,
		event.TypeMention:  event.Critical,
		event.TypeComment:  event.Critical,
		event.TypeLike:     event.NonCritical,
		event.TypeShare:    event.NonCritical,
		event.TypeFollow:   event.NonCritical,
		event.TypeUnfollow: event.NonCritical,
		event.TypePost:     event.NonCritical,
	}
}

// ParseMap reads raw type→criticality pairs, as produced by an env var such as
// "MESSAGE:critical,LIKE:non_critical" or a YAML document. Keys must be known
// event types and values known criticalities.
func ParseMap(raw map[string]string) (Map, error) {
	m := make(Map, len(raw))
	for k, v := range raw {
		t, err := event.ParseType(k)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMap, err)
		}
		c, err := event.ParseCriticality(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidMap, k, err)
		}
		m[t] = c
	}
	return m, nil
}

// LoadMap builds the effective map: defaults, then the YAML file (if any),
// then inline overrides. Later sources win per event type.
func LoadMap(cfg Config) (Map, error) {
	m := DefaultMap()

	if cfg.File != "" {
		var raw map[string]string
		if err := config.LoadYAML(cfg.File, &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMap, err)
		}
		fromFile, err := ParseMap(raw)
		if err != nil {
			return nil, err
		}
		maps.Copy(m, fromFile)
	}

	if len(cfg.Overrides) > 0 {
		inline, err := ParseMap(cfg.Overrides)
		if err != nil {
			return nil, err
		}
		maps.Copy(m, inline)
	}

	return m, nil
}

// Classifier assigns a criticality to events. It is pure and safe for
// concurrent use; the map is copied at construction.
type Classifier struct {
	defaults Map
	logger   *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger used for classification anomalies.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a classifier over m. A nil map falls back to DefaultMap.
func New(m Map, opts ...Option) *Classifier {
	if m == nil {
		m = DefaultMap()
	}
	c := &Classifier{
		defaults: maps.Clone(m),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the event's criticality. An explicit payload priority of
// "critical" (or "high") always wins. Otherwise the type's default applies;
// types absent from the map are non-critical and logged as an anomaly.
func (c *Classifier) Classify(ctx context.Context, evt event.Event) event.Criticality {
	switch strings.ToLower(strings.TrimSpace(evt.Payload.Priority)) {
	case string(event.Critical), "high":
		return event.Critical
	}

	if crit, ok := c.defaults[evt.Type]; ok {
		return crit
	}

	c.logger.LogAttrs(ctx, slog.LevelWarn, "classification anomaly: unknown event type",
		logger.Component("classifier"),
		logger.EventID(evt.ID),
		logger.EventType(evt.Type),
	)
	return event.NonCritical
}
