package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nimasrn/btc-invoice-gateway/pkg/logger"
	"github.com/nimasrn/btc-invoice-gateway/pkg/redis"
)

var (
	ErrAlreadyProcessed   = errors.New("already processed")
	ErrLockAcquireFailed  = errors.New("failed to acquire processing lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// IdempotencyConfig controls the Redis markers kept per processing key.
type IdempotencyConfig struct {
	LockTTL      time.Duration
	ProcessedTTL time.Duration
	MaxRetries   int

	RetryKeyPrefix     string
	LockKeyPrefix      string
	ProcessedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		ProcessedTTL:       7 * 24 * time.Hour,
		MaxRetries:         5,
		RetryKeyPrefix:     "hook:retry:",
		LockKeyPrefix:      "hook:lock:",
		ProcessedKeyPrefix: "hook:registered:",
	}
}

type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

// ProcessingContext is held by the consumer that owns a key.
type ProcessingContext struct {
	Key          string
	RetryCount   int
	IsRetry      bool
	token        []byte
	lockAcquired bool
}

// AcquireProcessingLock claims key for this consumer unless it was already
// processed, has exhausted its retries, or is held by another consumer.
func (s *IdempotencyService) AcquireProcessingLock(ctx context.Context, key string) (*ProcessingContext, error) {
	processed, err := s.IsProcessed(ctx, key)
	if err != nil {
		// A duplicate registration is cheaper than a stuck one.
		logger.Warn("failed to check processed marker", "key", key, "error", err)
	} else if processed {
		return nil, ErrAlreadyProcessed
	}

	retryCount, err := s.GetRetryCount(ctx, key)
	if err != nil {
		logger.Warn("failed to read retry counter", "key", key, "error", err)
	}
	if retryCount >= s.config.MaxRetries {
		return nil, fmt.Errorf("%w: key=%s, retries=%d", ErrMaxRetriesExceeded, key, retryCount)
	}

	token := []byte(uuid.NewString())
	acquired, err := s.redis.SetNX(s.config.LockKeyPrefix+key, token, s.config.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}
	if !acquired {
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("processing lock acquired", "key", key, "retry_count", retryCount)

	return &ProcessingContext{
		Key:          key,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		token:        token,
		lockAcquired: true,
	}, nil
}

// MarkSuccess sets the long-lived processed marker and drops the lock and retry counter.
func (s *IdempotencyService) MarkSuccess(ctx context.Context, pc *ProcessingContext) error {
	if err := s.redis.Set(s.config.ProcessedKeyPrefix+pc.Key, []byte("1"), s.config.ProcessedTTL); err != nil {
		return fmt.Errorf("failed to mark as processed: %w", err)
	}

	if err := s.redis.Del(s.config.RetryKeyPrefix + pc.Key); err != nil {
		logger.Warn("failed to clear retry counter", "key", pc.Key, "error", err)
	}
	return s.ReleaseLock(ctx, pc)
}

// MarkFailure bumps the retry counter and frees the key for the next attempt.
func (s *IdempotencyService) MarkFailure(ctx context.Context, pc *ProcessingContext, reason error) error {
	next := pc.RetryCount + 1
	if err := s.redis.Set(s.config.RetryKeyPrefix+pc.Key, []byte(strconv.Itoa(next)), s.config.ProcessedTTL); err != nil {
		logger.Error("failed to increment retry counter", "key", pc.Key, "error", err)
	}

	logger.Warn("processing failed, will retry",
		"key", pc.Key,
		"retry_count", next,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return s.ReleaseLock(ctx, pc)
}

// ReleaseLock deletes the lock only while this consumer still owns it.
func (s *IdempotencyService) ReleaseLock(ctx context.Context, pc *ProcessingContext) error {
	if pc == nil || !pc.lockAcquired {
		return nil
	}
	pc.lockAcquired = false

	if _, err := s.redis.DelIfEquals(s.config.LockKeyPrefix+pc.Key, pc.token); err != nil {
		logger.Warn("failed to release lock", "key", pc.Key, "error", err)
		return err
	}
	return nil
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, key string) (int, error) {
	raw, err := s.redis.Get(s.config.RetryKeyPrefix + key)
	if err != nil {
		if errors.Is(err, redis.NilError) {
			return 0, nil
		}
		return 0, err
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("corrupt retry counter for %s: %w", key, err)
	}
	return n, nil
}

func (s *IdempotencyService) IsProcessed(ctx context.Context, key string) (bool, error) {
	exists, err := s.redis.Exist(s.config.ProcessedKeyPrefix + key)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
