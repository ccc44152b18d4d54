package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
	"github.com/nimasrn/btc-invoice-gateway/pkg/redis"
)

var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker serializes work on one key across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// RedisLocker is a SET NX PX lock with a random token so only the holder can release it.
type RedisLocker struct {
	redis        redis.RedisAdapter
	prefix       string
	wait         time.Duration
	pollInterval time.Duration
}

func NewRedisLocker(adapter redis.RedisAdapter, wait time.Duration) *RedisLocker {
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &RedisLocker{
		redis:        adapter,
		prefix:       "reconcile:lock:",
		wait:         wait,
		pollInterval: 25 * time.Millisecond,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lockKey := l.prefix + key
	token := []byte(uuid.NewString())

	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.redis.SetNX(lockKey, token, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				if _, err := l.redis.DelIfEquals(lockKey, token); err != nil {
					logger.Warn("failed to release reconcile lock", "key", lockKey, "error", err)
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}
}
