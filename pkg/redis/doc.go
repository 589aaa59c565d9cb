// Package redis connects the relay to the Redis server that backs the
// stream based lane transport.
//
// Connect retries the initial ping with exponential backoff, so a relay
// started alongside Redis waits for it. Healthcheck adapts a client into a
// readiness probe.
//
//	cfg := redis.Config{ConnectionURL: "redis://localhost:6379/0", RetryAttempts: 3}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	transport := lane.NewRedisTransport(client, laneCfg)
package redis
