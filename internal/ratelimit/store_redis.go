package ratelimit

import (
	"context"
	"time"

	platformredis "govvault/internal/platform/redis"
)

const keyPrefix = "govvault:ratelimit:"

// RedisStore is a fixed-window counter shared across replicas. On redis
// failure it fails open: throttling protects the settlement path, it must
// never become the outage itself.
type RedisStore struct {
	client *platformredis.Client
}

// NewRedisStore wraps a redis client. Returns nil for a nil client so wiring
// can fall back to the in-memory store.
func NewRedisStore(client *platformredis.Client) *RedisStore {
	if client == nil {
		return nil
	}
	return &RedisStore{client: client}
}

func (s *RedisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	redisKey := keyPrefix + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return &Result{Allowed: true, Limit: limit, Remaining: limit}, nil
	}
	if count == 1 {
		s.client.Expire(ctx, redisKey, window)
	}

	resetAt := time.Now().Add(window)
	if count > int64(limit) {
		return &Result{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(false, resetAt),
		}, nil
	}
	return &Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - int(count),
		ResetAt:   resetAt,
	}, nil
}
