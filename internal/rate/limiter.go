package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds refresh throttle tuning parameters.
type Config struct {
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// Limiter admits or rejects one refresh attempt for a session.
type Limiter interface {
	CheckRefresh(ctx context.Context, sessionID string) error
}

// RedisLimiter enforces the refresh budget with Redis counters shared by every
// guard instance pointing at the same Redis.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// NewRedis creates a [RedisLimiter] backed by the given Redis client.
func NewRedis(redisClient redis.UniversalClient, prefix string, cfg Config) *RedisLimiter {
	if prefix == "" {
		prefix = "gg"
	}
	return &RedisLimiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

// CheckRefresh enforces the refresh limit by incrementing the counter and applying cooldown TTL.
func (l *RedisLimiter) CheckRefresh(ctx context.Context, sessionID string) error {
	count, err := l.incrementWithTTL(ctx, l.refreshKey(sessionID), l.config.RefreshCooldownDuration)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

// Reset clears the refresh counter for the session.
func (l *RedisLimiter) Reset(ctx context.Context, sessionID string) error {
	if err := l.redis.Del(ctx, l.refreshKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *RedisLimiter) refreshKey(sessionID string) string {
	return l.prefix + ":rr:" + sessionID
}

func (l *RedisLimiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
