package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/crypto-backtest-lab/internal/errors"
)

// DefaultPrefix namespaces keys written by the engine
const DefaultPrefix = "backtest:"

// Redis is a Cache backed by a Redis server
type Redis struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

// NewRedis connects to addr
func NewRedis(addr string) *Redis {
	return NewRedisWithClient(redis.NewClient(&redis.Options{Addr: addr}))
}

// NewRedisWithClient wraps an existing client
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: DefaultPrefix, timeout: 500 * time.Millisecond}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewStorageError("redis_cache", "get", err)
	}
	return v, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+key, val, ttl).Err(); err != nil {
		return errors.NewStorageError("redis_cache", "set", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// New returns a Redis cache when addr is set and reachable, otherwise an
// in-memory cache.
func New(ctx context.Context, addr string) Cache {
	if addr == "" {
		return NewMemory()
	}
	r := NewRedis(addr)
	if err := r.Ping(ctx); err != nil {
		log.Warn().Err(err).Str("addr", addr).Msg("redis unreachable, falling back to in-memory cache")
		r.Close()
		return NewMemory()
	}
	log.Info().Str("addr", addr).Msg("using redis result cache")
	return r
}
