package lane

import "time"

// Config is shared by the lane transports.
type Config struct {
	// VisibilityTimeout hides a pulled message from other consumers.
	VisibilityTimeout time.Duration `env:"RELAY_VISIBILITY_TIMEOUT" envDefault:"30s"`
	// PollInterval is how often the memory and Redis transports re-check an
	// empty lane while waiting.
	PollInterval time.Duration `env:"RELAY_LANE_POLL_INTERVAL" envDefault:"100ms"`
	// KeyPrefix namespaces Redis keys.
	KeyPrefix string `env:"RELAY_REDIS_KEY_PREFIX" envDefault:"notifyrelay"`
	// QueuePrefix is prepended to SQS queue names.
	QueuePrefix string `env:"RELAY_SQS_QUEUE_PREFIX"`
}
