package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/sherlock-center/internal/logger"
)

// RedisLimiter is a fixed-window limiter backed by Redis, so the limit
// holds across instances. Counters live under scan:ratelimit:<user_id>
// and expire with the window.
type RedisLimiter struct {
	client redis.UniversalClient
	log    logger.Logger

	maxRequests int
	window      time.Duration
}

// NewRedisLimiter creates a limiter allowing maxRequests per window
// per user.
func NewRedisLimiter(client redis.UniversalClient, maxRequests int, window time.Duration, log logger.Logger) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		log:         log,
		maxRequests: maxRequests,
		window:      window,
	}
}

// Allow implements Limiter. Redis failures log a warning and admit the
// request rather than blocking all scans on a cache outage.
func (l *RedisLimiter) Allow(ctx context.Context, userID int64) (bool, error) {
	key := fmt.Sprintf("scan:ratelimit:%d", userID)

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.log.Warn("Rate limit check failed, admitting request",
			logger.Int64("user_id", userID),
			logger.Error(err),
		)
		return true, nil
	}

	// First hit in a window starts its expiry clock.
	if count == 1 {
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			l.log.Warn("Failed to set rate limit window expiry",
				logger.String("redis_key", key),
				logger.Error(err),
			)
		}
	}

	return count <= int64(l.maxRequests), nil
}
