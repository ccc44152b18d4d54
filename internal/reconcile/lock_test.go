package reconcile

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

func setupLocker(t *testing.T, wait time.Duration) (*miniredis.Miniredis, *RedisLocker) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return mr, NewRedisLocker(adapter, wait)
}

func TestRedisLocker_AcquireRelease(t *testing.T) {
	mr, locker := setupLocker(t, 50*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "tx1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("reconcile:lock:tx1"))

	_, err = locker.Acquire(ctx, "tx1", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotAcquired)

	other, err := locker.Acquire(ctx, "tx2", time.Minute)
	require.NoError(t, err)
	other()

	release()
	assert.False(t, mr.Exists("reconcile:lock:tx1"))

	again, err := locker.Acquire(ctx, "tx1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestRedisLocker_WaitsForRelease(t *testing.T) {
	_, locker := setupLocker(t, 2*time.Second)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "tx1", time.Minute)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		release()
	}()

	second, err := locker.Acquire(ctx, "tx1", time.Minute)
	require.NoError(t, err)
	second()
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	mr, locker := setupLocker(t, 50*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "tx1", time.Second)
	require.NoError(t, err)

	// The lock expired and someone else took it.
	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists("reconcile:lock:tx1"))
	require.NoError(t, mr.Set("reconcile:lock:tx1", "someone-else"))

	release()
	got, err := mr.Get("reconcile:lock:tx1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_ContextCancelled(t *testing.T) {
	_, locker := setupLocker(t, time.Minute)
	release, err := locker.Acquire(context.Background(), "tx1", time.Minute)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "tx1", time.Minute)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
