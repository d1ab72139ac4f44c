package pin

import (
	"context"
	"testing"
	"time"

	"creator-ledger/pkg/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{}
	cfg.Ledger.PinMaxAttempts = 3
	cfg.Ledger.PinLockoutWindow = 10 * time.Minute
	return NewRedisLimiter(rdb, cfg), mr
}

func TestRedisLimiterLocksAfterMaxAttempts(t *testing.T) {
	l, mr := newRedisLimiter(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		locked, err := l.Locked(ctx, "creator-1")
		require.NoError(t, err)
		require.False(t, locked)

		n, err := l.Fail(ctx, "creator-1")
		require.NoError(t, err)
		require.Equal(t, i, n)
	}

	locked, err := l.Locked(ctx, "creator-1")
	require.NoError(t, err)
	require.True(t, locked)
	require.Equal(t, 10*time.Minute, mr.TTL("pin:attempts:creator-1"))

	other, err := l.Locked(ctx, "creator-2")
	require.NoError(t, err)
	require.False(t, other)

	mr.FastForward(10 * time.Minute)
	locked, err = l.Locked(ctx, "creator-1")
	require.NoError(t, err)
	require.False(t, locked)
}

func TestRedisLimiterFailKeepsStreakWindow(t *testing.T) {
	l, mr := newRedisLimiter(t)
	ctx := context.Background()

	n, err := l.Fail(ctx, "creator-1")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
	require.Equal(t, 10*time.Minute, mr.TTL("pin:attempts:creator-1"))

	mr.FastForward(4 * time.Minute)
	n, err = l.Fail(ctx, "creator-1")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
	require.Equal(t, 6*time.Minute, mr.TTL("pin:attempts:creator-1"))

	mr.FastForward(6 * time.Minute)
	require.False(t, mr.Exists("pin:attempts:creator-1"))
}

func TestRedisLimiterReset(t *testing.T) {
	l, mr := newRedisLimiter(t)
	ctx := context.Background()

	_, err := l.Fail(ctx, "creator-1")
	require.NoError(t, err)
	require.NoError(t, l.Reset(ctx, "creator-1"))
	require.False(t, mr.Exists("pin:attempts:creator-1"))

	mr.Close()
	_, err = l.Locked(ctx, "creator-1")
	require.Error(t, err)
}
