package consumer

import (
	"time"

	"github.com/dmitrymomot/notifyrelay/pkg/backoff"
)

// Config is shared by every consumer instance of a channel.
type Config struct {
	// MaxAttempts is the number of delivery attempts before dead-lettering.
	MaxAttempts int `env:"RELAY_MAX_ATTEMPTS" envDefault:"5"`
	// BatchSize bounds each pull.
	BatchSize int `env:"RELAY_BATCH_SIZE" envDefault:"10"`
	// PollTimeout is how long a pull waits for the first message.
	PollTimeout time.Duration `env:"RELAY_POLL_TIMEOUT" envDefault:"5s"`
	// SendTimeout bounds each transport call.
	SendTimeout time.Duration `env:"RELAY_SEND_TIMEOUT" envDefault:"10s"`
	// LaneTimeout bounds ack, return and dead-letter calls.
	LaneTimeout time.Duration `env:"RELAY_LANE_TIMEOUT" envDefault:"5s"`
	// ErrorPause is the wait after a failed pull.
	ErrorPause time.Duration `env:"RELAY_CONSUMER_ERROR_PAUSE" envDefault:"1s"`
	// StaleAfter is the age at which a PROCESSING record is considered
	// abandoned by a crashed consumer and may be claimed again. 0 disables it.
	StaleAfter time.Duration `env:"RELAY_STALE_PROCESSING" envDefault:"5m"`
	// Instances is the number of consumer loops per channel.
	Instances int `env:"RELAY_CONSUMER_INSTANCES" envDefault:"1"`

	Backoff backoff.Config
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BatchSize:   10,
		PollTimeout: 5 * time.Second,
		SendTimeout: 10 * time.Second,
		LaneTimeout: 5 * time.Second,
		ErrorPause:  time.Second,
		StaleAfter:  5 * time.Minute,
		Instances:   1,
		Backoff:     backoff.Config{Base: time.Second, Cap: 5 * time.Minute},
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.PollTimeout < 0 {
		c.PollTimeout = 0
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.LaneTimeout <= 0 {
		c.LaneTimeout = d.LaneTimeout
	}
	if c.ErrorPause <= 0 {
		c.ErrorPause = d.ErrorPause
	}
	if c.Instances <= 0 {
		c.Instances = d.Instances
	}
	if c.Backoff.Base <= 0 {
		c.Backoff = d.Backoff
	}
	return c
}
