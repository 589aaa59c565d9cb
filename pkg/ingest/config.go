package ingest

import "time"

// Config drives the inbound event listener.
type Config struct {
	// Lane is the inbound lane events are published to.
	Lane        string        `env:"RELAY_INGEST_LANE" envDefault:"events"`
	BatchSize   int           `env:"RELAY_INGEST_BATCH_SIZE" envDefault:"10"`
	PollTimeout time.Duration `env:"RELAY_INGEST_POLL_TIMEOUT" envDefault:"5s"`
	// MaxReceives dead-letters an event that failed to route this many times.
	MaxReceives int `env:"RELAY_INGEST_MAX_RECEIVES" envDefault:"5"`
	// RetryDelay is how long a failed event stays invisible before the next try.
	RetryDelay   time.Duration `env:"RELAY_INGEST_RETRY_DELAY" envDefault:"5s"`
	RouteTimeout time.Duration `env:"RELAY_INGEST_ROUTE_TIMEOUT" envDefault:"30s"`
	LaneTimeout  time.Duration `env:"RELAY_INGEST_LANE_TIMEOUT" envDefault:"5s"`
	ErrorPause   time.Duration `env:"RELAY_INGEST_ERROR_PAUSE" envDefault:"1s"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		Lane:         "events",
		BatchSize:    10,
		PollTimeout:  5 * time.Second,
		MaxReceives:  5,
		RetryDelay:   5 * time.Second,
		RouteTimeout: 30 * time.Second,
		LaneTimeout:  5 * time.Second,
		ErrorPause:   time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Lane == "" {
		c.Lane = d.Lane
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.PollTimeout < 0 {
		c.PollTimeout = 0
	}
	if c.MaxReceives <= 0 {
		c.MaxReceives = d.MaxReceives
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	if c.RouteTimeout <= 0 {
		c.RouteTimeout = d.RouteTimeout
	}
	if c.LaneTimeout <= 0 {
		c.LaneTimeout = d.LaneTimeout
	}
	if c.ErrorPause <= 0 {
		c.ErrorPause = d.ErrorPause
	}
	return c
}
