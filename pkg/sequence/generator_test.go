package sequence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestGenerator(t *testing.T, now time.Time) (*RedisGenerator, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return &RedisGenerator{rdb: rdb, now: func() time.Time { return now }}, mr
}

func TestNextPayoutReference(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	g, mr := newTestGenerator(t, now)

	first, err := g.NextPayoutReference(context.Background())
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^PAY-261014-001[A-Z2-9]{2}$`), first)

	second, err := g.NextPayoutReference(context.Background())
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^PAY-261014-002[A-Z2-9]{2}$`), second)

	require.True(t, mr.TTL("seq:PAY:261014") > 0)
}

func TestChargebackReferenceUsesOwnCounter(t *testing.T) {
	g, _ := newTestGenerator(t, time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC))

	_, err := g.NextPayoutReference(context.Background())
	require.NoError(t, err)

	ref, err := g.NextChargebackReference(context.Background())
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`^CBK-261014-001`), ref)
}

func TestNextReferenceRedisDown(t *testing.T) {
	g, mr := newTestGenerator(t, time.Now())
	mr.Close()

	_, err := g.NextPayoutReference(context.Background())
	require.Error(t, err)
}
