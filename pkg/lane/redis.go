package lane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis layout per lane:
//
//	{prefix}:lane:{lane}      ZSET  message id -> visible-at (unix ms)
//	{prefix}:msg:{lane}:{id}  HASH  body, receive_count, receipt
//	{prefix}:dlq:{lane}       LIST  JSON encoded DeadLetter entries
//
// Claiming, acking and releasing run as Lua scripts so a message is never
// handed to two consumers inside its visibility window.

var claimScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
local out = {}
for i, id in ipairs(ids) do
	local key = ARGV[5] .. id
	if redis.call('EXISTS', key) == 1 then
		local receipt = ARGV[4] .. ':' .. i
		redis.call('ZADD', KEYS[1], ARGV[3], id)
		local count = redis.call('HINCRBY', key, 'receive_count', 1)
		redis.call('HSET', key, 'receipt', receipt)
		local body = redis.call('HGET', key, 'body')
		table.insert(out, {id, body, count, receipt})
	else
		redis.call('ZREM', KEYS[1], id)
	end
end
return out
`)

var ackScript = redis.NewScript(`
if redis.call('HGET', KEYS[2], 'receipt') ~= ARGV[1] then
	return 0
end
redis.call('ZREM', KEYS[1], ARGV[2])
redis.call('DEL', KEYS[2])
return 1
`)

var releaseScript = redis.NewScript(`
if redis.call('HGET', KEYS[2], 'receipt') ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[2], 'receipt', '')
redis.call('ZADD', KEYS[1], ARGV[3], ARGV[2])
return 1
`)

var deadLetterScript = redis.NewScript(`
if redis.call('HGET', KEYS[2], 'receipt') ~= ARGV[1] then
	return 0
end
redis.call('ZREM', KEYS[1], ARGV[2])
redis.call('DEL', KEYS[2])
redis.call('RPUSH', KEYS[3], ARGV[3])
return 1
`)

// RedisTransport implements Transport on Redis sorted sets.
type RedisTransport struct {
	client     redis.UniversalClient
	prefix     string
	visibility time.Duration
	poll       time.Duration
	now        func() time.Time
}

// RedisOption configures a RedisTransport.
type RedisOption func(*RedisTransport)

// WithRedisClock overrides the time source used for visibility scores.
func WithRedisClock(now func() time.Time) RedisOption {
	return func(t *RedisTransport) {
		if now != nil {
			t.now = now
		}
	}
}

// NewRedisTransport builds a transport on client. Zero config fields take their defaults.
func NewRedisTransport(client redis.UniversalClient, cfg Config, opts ...RedisOption) *RedisTransport {
	t := &RedisTransport{
		client:     client,
		prefix:     cfg.KeyPrefix,
		visibility: cfg.VisibilityTimeout,
		poll:       cfg.PollInterval,
		now:        time.Now,
	}
	if t.prefix == "" {
		t.prefix = "notifyrelay"
	}
	if t.visibility <= 0 {
		t.visibility = 30 * time.Second
	}
	if t.poll <= 0 {
		t.poll = 100 * time.Millisecond
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *RedisTransport) laneKey(lane string) string { return t.prefix + ":lane:" + lane }
func (t *RedisTransport) msgPrefix(lane string) string {
	return t.prefix + ":msg:" + lane + ":"
}
func (t *RedisTransport) msgKey(lane, id string) string { return t.msgPrefix(lane) + id }
func (t *RedisTransport) dlqKey(lane string) string     { return t.prefix + ":dlq:" + lane }

func (t *RedisTransport) Publish(ctx context.Context, lane string, body []byte) error {
	id := uuid.NewString()
	_, err := t.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, t.msgKey(lane, id), "body", body, "receive_count", 0, "receipt", "")
		p.ZAdd(ctx, t.laneKey(lane), redis.Z{Score: float64(t.now().UnixMilli()), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis publish to %s: %w", lane, err)
	}
	return nil
}

func (t *RedisTransport) PullBatch(ctx context.Context, lane string, limit int, wait time.Duration) ([]Delivery, error) {
	if limit <= 0 {
		limit = 1
	}
	deadline := time.Now().Add(wait)
	for {
		batch, err := t.claim(ctx, lane, limit)
		if err != nil || len(batch) > 0 {
			return batch, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		timer := time.NewTimer(min(t.poll, remaining))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *RedisTransport) claim(ctx context.Context, lane string, limit int) ([]Delivery, error) {
	now := t.now()
	res, err := claimScript.Run(ctx, t.client,
		[]string{t.laneKey(lane)},
		now.UnixMilli(),
		limit,
		now.Add(t.visibility).UnixMilli(),
		uuid.NewString(),
		t.msgPrefix(lane),
	).Slice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis claim from %s: %w", lane, err)
	}

	batch := make([]Delivery, 0, len(res))
	for _, raw := range res {
		row, ok := raw.([]any)
		if !ok || len(row) != 4 {
			continue
		}
		id, _ := row[0].(string)
		body, _ := row[1].(string)
		count, _ := row[2].(int64)
		receipt, _ := row[3].(string)
		batch = append(batch, Delivery{
			Lane:         lane,
			ID:           id,
			Receipt:      receipt,
			Body:         []byte(body),
			ReceiveCount: int(count),
		})
	}
	return batch, nil
}

func (t *RedisTransport) Ack(ctx context.Context, d Delivery) error {
	return t.guarded(ctx, ackScript, d,
		[]string{t.laneKey(d.Lane), t.msgKey(d.Lane, d.ID)},
		d.Receipt, d.ID,
	)
}

func (t *RedisTransport) ReturnWithDelay(ctx context.Context, d Delivery, delay time.Duration) error {
	visibleAt := t.now().Add(max(delay, 0)).UnixMilli()
	return t.guarded(ctx, releaseScript, d,
		[]string{t.laneKey(d.Lane), t.msgKey(d.Lane, d.ID)},
		d.Receipt, d.ID, strconv.FormatInt(visibleAt, 10),
	)
}

func (t *RedisTransport) DeadLetter(ctx context.Context, d Delivery, reason string) error {
	entry, err := json.Marshal(DeadLetter{
		ID:       d.ID,
		Lane:     d.Lane,
		Body:     d.Body,
		Reason:   reason,
		FailedAt: t.now().UTC(),
	})
	if err != nil {
		return err
	}
	return t.guarded(ctx, deadLetterScript, d,
		[]string{t.laneKey(d.Lane), t.msgKey(d.Lane, d.ID), t.dlqKey(d.Lane)},
		d.Receipt, d.ID, entry,
	)
}

// DeadLetters returns up to limit dead-letter entries of lane, oldest first.
func (t *RedisTransport) DeadLetters(ctx context.Context, lane string, limit int64) ([]DeadLetter, error) {
	raw, err := t.client.LRange(ctx, t.dlqKey(lane), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]DeadLetter, 0, len(raw))
	for _, r := range raw {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(r), &dl); err != nil {
			return nil, err
		}
		out = append(out, dl)
	}
	return out, nil
}

func (t *RedisTransport) guarded(ctx context.Context, s *redis.Script, d Delivery, keys []string, args ...any) error {
	n, err := s.Run(ctx, t.client, keys, args...).Int()
	if err != nil {
		return fmt.Errorf("redis %s: %w", d.Lane, err)
	}
	if n == 0 {
		return ErrStaleReceipt
	}
	return nil
}
