package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments and sets the expiry on first hit in one round trip.
var incrScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return c
`)

// RedisClient is the subset of go-redis used by RedisStore.
type RedisClient interface {
	redis.Scripter
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisStore keeps counters in Redis.
type RedisStore struct {
	client RedisClient
}

func NewRedisStore(client RedisClient) *RedisStore { return &RedisStore{client: client} }

// NewRedisStoreURL parses a redis:// URL and returns a store over a new
// client.
func NewRedisStoreURL(url string, dialTimeout time.Duration) (*RedisStore, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("redis url: %w", err)
	}
	if dialTimeout > 0 {
		opts.DialTimeout = dialTimeout
		opts.ReadTimeout = dialTimeout
		opts.WriteTimeout = dialTimeout
	}
	c := redis.NewClient(opts)
	return NewRedisStore(c), c, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	ms := ttl.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	n, err := incrScript.Run(ctx, s.client, []string{key}, ms).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	return n, nil
}

func (s *RedisStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisStore) Name() string { return "redis" }
