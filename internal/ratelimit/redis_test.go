package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/filmbilling/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRedisGuard(t *testing.T, rate float64, burst int) (*PurchaseGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	guard := NewPurchaseGuard(client, config.Config{RedisCfg: config.RedisConfig{
		Addr:          mr.Addr(),
		LockTTLSec:    30,
		PurchaseRate:  rate,
		PurchaseBurst: burst,
	}}, zap.NewNop())
	require.True(t, guard.Enabled())
	return guard, mr
}

func TestLockPurchaseIsExclusivePerUserFilm(t *testing.T) {
	guard, _ := newRedisGuard(t, 1, 5)
	ctx := context.Background()
	userID, filmID := uuid.New(), uuid.New()

	release, err := guard.LockPurchase(ctx, userID, filmID)
	require.NoError(t, err)

	_, err = guard.LockPurchase(ctx, userID, filmID)
	assert.ErrorIs(t, err, ErrBusy)

	other, err := guard.LockPurchase(ctx, userID, uuid.New())
	require.NoError(t, err)
	other()

	release()
	again, err := guard.LockPurchase(ctx, userID, filmID)
	require.NoError(t, err)
	again()
}

func TestLockRefundIsExclusivePerTransaction(t *testing.T) {
	guard, _ := newRedisGuard(t, 1, 5)
	ctx := context.Background()

	release, err := guard.LockRefund(ctx, snowflake.ID(99))
	require.NoError(t, err)
	_, err = guard.LockRefund(ctx, snowflake.ID(99))
	assert.ErrorIs(t, err, ErrBusy)

	release()
	again, err := guard.LockRefund(ctx, snowflake.ID(99))
	require.NoError(t, err)
	again()
}

func TestExpiredLockReleaseKeepsNewHolder(t *testing.T) {
	guard, mr := newRedisGuard(t, 1, 5)
	ctx := context.Background()
	userID, filmID := uuid.New(), uuid.New()

	stale, err := guard.LockPurchase(ctx, userID, filmID)
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)
	current, err := guard.LockPurchase(ctx, userID, filmID)
	require.NoError(t, err)

	stale()
	_, err = guard.LockPurchase(ctx, userID, filmID)
	assert.ErrorIs(t, err, ErrBusy)
	current()
}

func TestAllowPurchaseDeniesOverBurst(t *testing.T) {
	guard, _ := newRedisGuard(t, 0.001, 1)
	ctx := context.Background()
	userID := uuid.New()

	assert.NoError(t, guard.AllowPurchase(ctx, userID))
	assert.ErrorIs(t, guard.AllowPurchase(ctx, userID), ErrRateLimited)
	assert.NoError(t, guard.AllowPurchase(ctx, uuid.New()))
}

func TestTokenBucketReportsRetryAfter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	bucket := NewTokenBucket(client)
	ctx := context.Background()

	res, err := bucket.Allow(ctx, "bucket", 1, 1)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = bucket.Allow(ctx, "bucket", 1, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, time.Second)
	assert.True(t, mr.Exists("bucket"))
}

func TestUnreachableRedisFailsOpen(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })
	guard := NewPurchaseGuard(client, config.Config{RedisCfg: config.RedisConfig{
		Addr:          "127.0.0.1:1",
		PurchaseRate:  0.001,
		PurchaseBurst: 1,
	}}, zap.NewNop())
	ctx := context.Background()
	userID, filmID := uuid.New(), uuid.New()

	assert.NoError(t, guard.AllowPurchase(ctx, userID))
	assert.NoError(t, guard.AllowPurchase(ctx, userID))

	release, err := guard.LockPurchase(ctx, userID, filmID)
	require.NoError(t, err)
	require.NotNil(t, release)
	release()
}
