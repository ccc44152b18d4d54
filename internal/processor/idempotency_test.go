package processor

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/btc-invoice-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return mr, adapter
}

func TestIdempotencyService_AcquireProcessingLock(t *testing.T) {
	_, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	pc, err := service.AcquireProcessingLock(ctx, "addr1")
	require.NoError(t, err)
	assert.Equal(t, "addr1", pc.Key)
	assert.Zero(t, pc.RetryCount)
	assert.False(t, pc.IsRetry)
	assert.True(t, pc.lockAcquired)

	_, err = service.AcquireProcessingLock(ctx, "addr1")
	assert.ErrorIs(t, err, ErrLockAcquireFailed)

	other, err := service.AcquireProcessingLock(ctx, "addr2")
	require.NoError(t, err)
	require.NoError(t, service.ReleaseLock(ctx, other))
}

func TestIdempotencyService_MarkSuccess(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	pc, err := service.AcquireProcessingLock(ctx, "addr1")
	require.NoError(t, err)
	require.NoError(t, service.MarkSuccess(ctx, pc))

	processed, err := service.IsProcessed(ctx, "addr1")
	require.NoError(t, err)
	assert.True(t, processed)
	assert.False(t, mr.Exists("hook:lock:addr1"))

	_, err = service.AcquireProcessingLock(ctx, "addr1")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestIdempotencyService_MarkFailureAndMaxRetries(t *testing.T) {
	_, adapter := setupTestRedis(t)
	cfg := DefaultIdempotencyConfig()
	cfg.MaxRetries = 2
	service := NewIdempotencyService(adapter, cfg)
	ctx := context.Background()

	for i := 0; i < cfg.MaxRetries; i++ {
		pc, err := service.AcquireProcessingLock(ctx, "addr1")
		require.NoError(t, err)
		assert.Equal(t, i, pc.RetryCount)
		assert.Equal(t, i > 0, pc.IsRetry)
		require.NoError(t, service.MarkFailure(ctx, pc, assert.AnError))
	}

	count, err := service.GetRetryCount(ctx, "addr1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	_, err = service.AcquireProcessingLock(ctx, "addr1")
	assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
}

func TestIdempotencyService_ReleaseLockKeepsForeignOwner(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	cfg := DefaultIdempotencyConfig()
	cfg.LockTTL = time.Second
	service := NewIdempotencyService(adapter, cfg)
	ctx := context.Background()

	pc, err := service.AcquireProcessingLock(ctx, "addr1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	next, err := service.AcquireProcessingLock(ctx, "addr1")
	require.NoError(t, err)

	require.NoError(t, service.ReleaseLock(ctx, pc))
	assert.True(t, mr.Exists("hook:lock:addr1"))

	require.NoError(t, service.ReleaseLock(ctx, next))
	assert.False(t, mr.Exists("hook:lock:addr1"))

	// Releasing twice is a no-op.
	assert.NoError(t, service.ReleaseLock(ctx, next))
}

func TestIdempotencyService_GetRetryCount(t *testing.T) {
	mr, adapter := setupTestRedis(t)
	service := NewIdempotencyService(adapter, DefaultIdempotencyConfig())
	ctx := context.Background()

	count, err := service.GetRetryCount(ctx, "addr1")
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, mr.Set("hook:retry:addr1", "garbage"))
	_, err = service.GetRetryCount(ctx, "addr1")
	assert.Error(t, err)
}
