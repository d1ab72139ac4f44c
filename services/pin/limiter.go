package pin

import (
	"context"
	"errors"
	"time"

	"creator-ledger/pkg/config"
	"creator-ledger/pkg/rediskey"

	"github.com/redis/go-redis/v9"
)

const (
	defaultMaxAttempts   = 5
	defaultLockoutWindow = 15 * time.Minute
)

// Limiter counts failed PIN verifications per creator.
type Limiter interface {
	Locked(ctx context.Context, creatorID string) (bool, error)
	Fail(ctx context.Context, creatorID string) (int64, error)
	Reset(ctx context.Context, creatorID string) error
}

// RedisLimiter keeps a failure counter that expires lockoutWindow after the
// first failure of a streak.
type RedisLimiter struct {
	rdb         *redis.Client
	maxAttempts int64
	window      time.Duration
}

func NewRedisLimiter(rdb *redis.Client, cfg *config.Config) *RedisLimiter {
	l := &RedisLimiter{rdb: rdb, maxAttempts: defaultMaxAttempts, window: defaultLockoutWindow}
	if cfg != nil {
		if cfg.Ledger.PinMaxAttempts > 0 {
			l.maxAttempts = cfg.Ledger.PinMaxAttempts
		}
		if cfg.Ledger.PinLockoutWindow > 0 {
			l.window = cfg.Ledger.PinLockoutWindow
		}
	}
	return l
}

func (l *RedisLimiter) Locked(ctx context.Context, creatorID string) (bool, error) {
	n, err := l.rdb.Get(ctx, rediskey.BuildPinAttemptsKey(creatorID)).Int64()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n >= l.maxAttempts, nil
}

// Fail counts one failure. The key is created with its TTL in the same
// MULTI as the increment, so a counter never outlives the window.
func (l *RedisLimiter) Fail(ctx context.Context, creatorID string) (int64, error) {
	key := rediskey.BuildPinAttemptsKey(creatorID)
	var incr *redis.IntCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, l.window)
		incr = pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (l *RedisLimiter) Reset(ctx context.Context, creatorID string) error {
	return l.rdb.Del(ctx, rediskey.BuildPinAttemptsKey(creatorID)).Err()
}
