package main

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dmitrymomot/notifyrelay/pkg/archive"
	"github.com/dmitrymomot/notifyrelay/pkg/awsconfig"
	"github.com/dmitrymomot/notifyrelay/pkg/classifier"
	"github.com/dmitrymomot/notifyrelay/pkg/consumer"
	"github.com/dmitrymomot/notifyrelay/pkg/delivery"
	"github.com/dmitrymomot/notifyrelay/pkg/dispatcher"
	"github.com/dmitrymomot/notifyrelay/pkg/email"
	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/httpserver"
	"github.com/dmitrymomot/notifyrelay/pkg/ingest"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
	"github.com/dmitrymomot/notifyrelay/pkg/mongo"
	"github.com/dmitrymomot/notifyrelay/pkg/opensearch"
	"github.com/dmitrymomot/notifyrelay/pkg/pg"
	"github.com/dmitrymomot/notifyrelay/pkg/push"
	"github.com/dmitrymomot/notifyrelay/pkg/redis"
	"github.com/dmitrymomot/notifyrelay/pkg/router"
	"github.com/dmitrymomot/notifyrelay/pkg/sms"
	"github.com/dmitrymomot/notifyrelay/pkg/status"
)

// Process roles.
const (
	roleAll      = "all"
	roleRouter   = "router"
	roleConsumer = "consumer"
)

// Backend names.
const (
	backendMemory   = "memory"
	backendRedis    = "redis"
	backendSQS      = "sqs"
	backendPostgres = "postgres"
	backendDynamoDB = "dynamodb"
	backendMongo    = "mongo"
	backendPostmark = "postmark"
	backendDev      = "dev"
)

var errInvalidConfig = errors.New("invalid relay configuration")

// Config is the whole process configuration, read from the environment.
type Config struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`

	// Role selects what this process runs: the inbound router, the channel
	// consumers, or both. The status API runs in every role.
	Role     string   `env:"RELAY_ROLE" envDefault:"all"`
	Channels []string `env:"RELAY_CHANNELS" envDefault:"email,sms,push" envSeparator:","`

	LaneBackend        string `env:"RELAY_LANE_BACKEND" envDefault:"memory"`
	StatusBackend      string `env:"RELAY_STATUS_BACKEND" envDefault:"memory"`
	PreferencesBackend string `env:"RELAY_PREFERENCES_BACKEND" envDefault:"memory"`
	EmailBackend       string `env:"RELAY_EMAIL_BACKEND" envDefault:"dev"`

	// PreferencesFile seeds the memory preferences backend from YAML.
	PreferencesFile      string        `env:"RELAY_PREFERENCES_FILE"`
	PreferencesCacheSize int           `env:"RELAY_PREFERENCES_CACHE_SIZE" envDefault:"10000"`
	PreferencesCacheTTL  time.Duration `env:"RELAY_PREFERENCES_CACHE_TTL" envDefault:"1m"`

	DynamoDBTable  string        `env:"RELAY_DYNAMODB_TABLE" envDefault:"notification_status"`
	ArchiveEnabled bool          `env:"RELAY_ARCHIVE_ENABLED" envDefault:"false"`
	RuntimeMetrics bool          `env:"RELAY_RUNTIME_METRICS" envDefault:"true"`
	ReadyTimeout   time.Duration `env:"RELAY_READY_TIMEOUT" envDefault:"3s"`

	Classifier classifier.Config
	Router     router.Config
	Dispatcher dispatcher.Config
	Consumer   consumer.Config
	Status     status.Config
	Lane       lane.Config
	Ingest     ingest.Config
	HTTP       httpserver.Config
	Archive    archive.Config

	Email email.Config
	SMS   sms.Config
	Push  push.Config

	EmailDelivery delivery.Config `envPrefix:"RELAY_EMAIL_"`
	SMSDelivery   delivery.Config `envPrefix:"RELAY_SMS_"`
	PushDelivery  delivery.Config `envPrefix:"RELAY_PUSH_"`

	PG         pg.Config
	Redis      redis.Config
	Mongo      mongo.Config
	AWS        awsconfig.Config
	OpenSearch opensearch.Config
}

// channels parses Channels, dropping duplicates.
func (c Config) channels() ([]event.Channel, error) {
	out := make([]event.Channel, 0, len(c.Channels))
	for _, raw := range c.Channels {
		ch, err := event.ParseChannel(raw)
		if err != nil {
			return nil, errors.Join(errInvalidConfig, err)
		}
		if !slices.Contains(out, ch) {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (c Config) runsRouter() bool   { return c.Role == roleAll || c.Role == roleRouter }
func (c Config) runsConsumer() bool { return c.Role == roleAll || c.Role == roleConsumer }

// deliveryConfig returns the wrapper settings of ch.
func (c Config) deliveryConfig(ch event.Channel) delivery.Config {
	switch ch {
	case event.ChannelSMS:
		return c.SMSDelivery
	case event.ChannelPush:
		return c.PushDelivery
	}
	return c.EmailDelivery
}

// needsAWS reports whether any selected backend talks to AWS.
func (c Config) needsAWS(channels []event.Channel) bool {
	return c.LaneBackend == backendSQS ||
		c.StatusBackend == backendDynamoDB ||
		(c.runsConsumer() && slices.Contains(channels, event.ChannelSMS))
}

func (c Config) validate() error {
	var errs []error
	check := func(name, value string, allowed ...string) {
		if !slices.Contains(allowed, value) {
			errs = append(errs, fmt.Errorf("%s must be one of %v, got %q", name, allowed, value))
		}
	}
	check("RELAY_ROLE", c.Role, roleAll, roleRouter, roleConsumer)
	check("RELAY_LANE_BACKEND", c.LaneBackend, backendMemory, backendRedis, backendSQS)
	check("RELAY_STATUS_BACKEND", c.StatusBackend, backendMemory, backendPostgres, backendDynamoDB)
	check("RELAY_PREFERENCES_BACKEND", c.PreferencesBackend, backendMemory, backendMongo)
	check("RELAY_EMAIL_BACKEND", c.EmailBackend, backendPostmark, backendDev)

	// In-process backends are invisible to other processes.
	if c.Role != roleAll && (c.LaneBackend == backendMemory || c.StatusBackend == backendMemory) {
		errs = append(errs, fmt.Errorf("RELAY_ROLE=%s needs shared lane and status backends", c.Role))
	}
	if len(c.Channels) == 0 {
		errs = append(errs, errors.New("RELAY_CHANNELS is empty"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{errInvalidConfig}, errs...)...)
	}
	return nil
}
