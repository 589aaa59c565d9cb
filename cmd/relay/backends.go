package main

import (
	"context"
	"fmt"

	"github.com/dmitrymomot/notifyrelay/pkg/config"
	"github.com/dmitrymomot/notifyrelay/pkg/delivery"
	"github.com/dmitrymomot/notifyrelay/pkg/email"
	"github.com/dmitrymomot/notifyrelay/pkg/event"
	"github.com/dmitrymomot/notifyrelay/pkg/httpserver"
	"github.com/dmitrymomot/notifyrelay/pkg/lane"
	"github.com/dmitrymomot/notifyrelay/pkg/logger"
	"github.com/dmitrymomot/notifyrelay/pkg/mongo"
	"github.com/dmitrymomot/notifyrelay/pkg/pg"
	"github.com/dmitrymomot/notifyrelay/pkg/preferences"
	"github.com/dmitrymomot/notifyrelay/pkg/push"
	"github.com/dmitrymomot/notifyrelay/pkg/redis"
	"github.com/dmitrymomot/notifyrelay/pkg/sms"
	"github.com/dmitrymomot/notifyrelay/pkg/status"
)

func (a *app) openLanes(ctx context.Context) (lane.Transport, error) {
	switch a.cfg.LaneBackend {
	case backendRedis:
		client, err := redis.Connect(ctx, a.cfg.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		a.checks = append(a.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
		return lane.NewRedisTransport(client, a.cfg.Lane), nil
	case backendSQS:
		return lane.NewSQSTransport(a.aws.SQS, a.cfg.Lane), nil
	default:
		t := lane.NewMemoryTransport(lane.WithMemoryConfig(a.cfg.Lane))
		a.closers = append(a.closers, t.Close)
		return t, nil
	}
}

func (a *app) openStatusStore(ctx context.Context) (status.Store, error) {
	switch a.cfg.StatusBackend {
	case backendPostgres:
		pool, err := pg.Connect(ctx, a.cfg.PG)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		a.checks = append(a.checks, httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)})

		migrateLog := a.log.With(logger.Component("migrations"))
		if err := pg.Migrate(ctx, pool, status.Migrations, status.MigrationsDir, a.cfg.PG, migrateLog); err != nil {
			return nil, err
		}
		return status.NewPostgresStore(pool), nil
	case backendDynamoDB:
		return status.NewDynamoStore(a.aws.DynamoDB, a.cfg.DynamoDBTable), nil
	default:
		return status.NewMemoryStore(), nil
	}
}

func (a *app) openPreferences(ctx context.Context) (preferences.Store, error) {
	if a.cfg.PreferencesBackend == backendMongo {
		db, err := mongo.NewWithDatabase(ctx, a.cfg.Mongo)
		if err != nil {
			return nil, err
		}
		client := db.Client()
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
		a.checks = append(a.checks, httpserver.Check{Name: "mongo", Fn: mongo.Healthcheck(client)})

		var store preferences.Store = preferences.NewMongoStore(db)
		if a.cfg.PreferencesCacheSize > 0 && a.cfg.PreferencesCacheTTL > 0 {
			store = preferences.NewCachedStore(store, a.cfg.PreferencesCacheSize, a.cfg.PreferencesCacheTTL)
		}
		return store, nil
	}

	var seed []preferences.Preferences
	if a.cfg.PreferencesFile != "" {
		if err := config.LoadYAML(a.cfg.PreferencesFile, &seed); err != nil {
			return nil, fmt.Errorf("preferences file: %w", err)
		}
	}
	return preferences.NewMemoryStore(seed...), nil
}

// sender builds the transport of ch wrapped in its breaker and rate limiter.
func (a *app) sender(ch event.Channel) (delivery.Sender, error) {
	var (
		s   delivery.Sender
		err error
	)
	switch ch {
	case event.ChannelEmail:
		if a.cfg.EmailBackend == backendPostmark {
			s, err = email.NewPostmarkSender(a.cfg.Email)
		} else {
			s = email.NewDevSender(a.cfg.Email.DevDir)
		}
	case event.ChannelSMS:
		s = sms.NewSNSSender(a.aws.SNS, a.cfg.SMS)
	case event.ChannelPush:
		s, err = push.NewGatewaySender(a.cfg.Push)
	default:
		return nil, fmt.Errorf("%w: %q", event.ErrUnknownChannel, ch)
	}
	if err != nil {
		return nil, err
	}
	return delivery.Wrap(string(ch), s, a.cfg.deliveryConfig(ch), a.log.With(logger.Channel(ch))), nil
}
