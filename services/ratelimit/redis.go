// Package ratelimit implements core.RateLimiter over redis and in process memory.
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/shule/core"
)

const keyPrefix = "ratelimit:"

// RedisLimiter is a sliding window limiter keeping one sorted set entry per hit.
type RedisLimiter struct {
	rdb *redis.Client
}

var _ core.RateLimiter = (*RedisLimiter)(nil)

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewRedisLimiter(rdb *redis.Client) *RedisLimiter {
	return &RedisLimiter{rdb: rdb}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, max int, window time.Duration) (core.RateLimit, error) {
	key = keyPrefix + key
	now := time.Now()
	windowStart := now.Add(-window).UnixMicro()

	var card *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(windowStart, 10))
		card = pipe.ZCard(ctx, key)
		return nil
	})
	if err != nil {
		return core.RateLimit{}, errors.Wrap(err, "counting hits")
	}

	count := int(card.Val())
	if count >= max {
		retryAfter := window
		oldest, err := l.rdb.ZRangeWithScores(ctx, key, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			retryAfter = time.UnixMicro(int64(oldest[0].Score)).Add(window).Sub(now)
		}
		return core.RateLimit{Limit: max, RetryAfter: retryAfter}, nil
	}

	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMicro()), Member: uuid.NewString()})
		pipe.Expire(ctx, key, window*2)
		return nil
	})
	if err != nil {
		return core.RateLimit{}, errors.Wrap(err, "recording hit")
	}
	return core.RateLimit{Allowed: true, Limit: max, Remaining: max - count - 1}, nil
}
