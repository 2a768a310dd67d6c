package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore handles Redis operations: the cross-instance event bridge uses
// its client for pub/sub, the rate limiter for counters and the auth
// middleware for short-lived identity caching.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client exposes the underlying client for pub/sub consumers.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// rateLimitKey returns the key for a caller's rate limit counter.
func rateLimitKey(callerID string) string {
	return fmt.Sprintf("ratelimit:%s", callerID)
}

// identityKey returns the cache key for a resolved bearer token.
func identityKey(tokenHash string) string {
	return fmt.Sprintf("identity:%s", tokenHash)
}

// CheckRateLimit reports whether the caller is still under the limit.
func (s *RedisStore) CheckRateLimit(ctx context.Context, callerID string, limit int) (bool, error) {
	count, err := s.client.Get(ctx, rateLimitKey(callerID)).Int()
	if err != nil && err != redis.Nil {
		return false, err
	}
	return count < limit, nil
}

// IncrementRateLimit increments the caller's counter within the window.
func (s *RedisStore) IncrementRateLimit(ctx context.Context, callerID string, window time.Duration) error {
	key := rateLimitKey(callerID)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	return err
}

// CacheIdentity stores a resolved identity payload for a token hash.
func (s *RedisStore) CacheIdentity(ctx context.Context, tokenHash string, payload []byte, ttl time.Duration) error {
	return s.client.Set(ctx, identityKey(tokenHash), payload, ttl).Err()
}

// CachedIdentity retrieves a cached identity payload, or nil on miss.
func (s *RedisStore) CachedIdentity(ctx context.Context, tokenHash string) ([]byte, error) {
	data, err := s.client.Get(ctx, identityKey(tokenHash)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}
