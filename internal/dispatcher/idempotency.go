package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arcrm/engage/pkg/logger"
	"github.com/arcrm/engage/pkg/redis"
)

var (
	ErrAlreadyDelivered   = errors.New("notification already delivered")
	ErrLockAcquireFailed  = errors.New("failed to acquire delivery lock")
	ErrMaxRetriesExceeded = errors.New("maximum delivery retries exceeded")
)

// IdempotencyConfig tunes the Redis markers that keep a notification
// from being delivered to the customer twice.
type IdempotencyConfig struct {
	LockTTL      time.Duration
	DeliveredTTL time.Duration
	MaxRetries   int

	RetryKeyPrefix     string
	LockKeyPrefix      string
	DeliveredKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:            30 * time.Second,
		DeliveredTTL:       24 * time.Hour,
		MaxRetries:         3,
		RetryKeyPrefix:     "notify:retry:",
		LockKeyPrefix:      "notify:lock:",
		DeliveredKeyPrefix: "notify:delivered:",
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

// DeliveryContext tracks one in-flight delivery attempt while its lock
// is held.
type DeliveryContext struct {
	NotificationID string
	RetryCount     int
	IsRetry        bool
	lockAcquired   bool
	service        *IdempotencyService
}

// AcquireDeliveryLock claims a notification for this consumer. A
// delivered marker short-circuits the whole attempt; a held lock means
// another dispatcher instance is on it.
func (s *IdempotencyService) AcquireDeliveryLock(ctx context.Context, notificationID string) (*DeliveryContext, error) {
	deliveredKey := s.config.DeliveredKeyPrefix + notificationID
	exists, err := s.redis.Exist(deliveredKey)
	if err != nil {
		logger.Warn("failed to check delivered marker", "notification_id", notificationID, "error", err)
		// Continue even if the check fails. A duplicate send is less
		// harmful than never sending at all.
	} else if exists > 0 {
		logger.Info("notification already delivered, skipping", "notification_id", notificationID)
		return nil, ErrAlreadyDelivered
	}

	retryKey := s.config.RetryKeyPrefix + notificationID
	retryCountBytes, err := s.redis.Get(retryKey)
	retryCount := 0
	if err == nil && len(retryCountBytes) > 0 {
		fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	}

	if retryCount >= s.config.MaxRetries {
		logger.Error("max delivery retries exceeded", "notification_id", notificationID, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: notification_id=%s, retries=%d", ErrMaxRetriesExceeded, notificationID, retryCount)
	}

	lockKey := s.config.LockKeyPrefix + notificationID
	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := s.redis.SetNX(lockKey, lockValue, s.config.LockTTL)
	if err != nil {
		logger.Error("failed to acquire delivery lock", "notification_id", notificationID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}

	if !acquired {
		logger.Info("delivery lock held by another consumer", "notification_id", notificationID)
		return nil, ErrLockAcquireFailed
	}

	logger.Info("delivery lock acquired",
		"notification_id", notificationID,
		"retry_count", retryCount,
		"lock_ttl", s.config.LockTTL)

	return &DeliveryContext{
		NotificationID: notificationID,
		RetryCount:     retryCount,
		IsRetry:        retryCount > 0,
		lockAcquired:   true,
		service:        s,
	}, nil
}

// MarkDelivered sets the long-term delivered marker and cleans up the
// lock and retry counter.
func (s *IdempotencyService) MarkDelivered(ctx context.Context, dc *DeliveryContext) error {
	notificationID := dc.NotificationID

	deliveredKey := s.config.DeliveredKeyPrefix + notificationID
	err := s.redis.Set(deliveredKey, []byte("1"), s.config.DeliveredTTL)
	if err != nil {
		logger.Error("failed to set delivered marker", "notification_id", notificationID, "error", err)
		return fmt.Errorf("failed to mark as delivered: %w", err)
	}

	s.cleanup(ctx, dc)

	logger.Info("notification marked as delivered",
		"notification_id", notificationID,
		"retry_count", dc.RetryCount)

	return nil
}

// MarkFailure bumps the retry counter and releases the lock so a later
// reclaim can retry.
func (s *IdempotencyService) MarkFailure(ctx context.Context, dc *DeliveryContext, reason error) error {
	notificationID := dc.NotificationID

	retryKey := s.config.RetryKeyPrefix + notificationID
	newRetryCount := dc.RetryCount + 1
	retryValue := []byte(fmt.Sprintf("%d", newRetryCount))

	// Retry counter outlives the lock so the count survives across
	// reclaims.
	err := s.redis.Set(retryKey, retryValue, s.config.DeliveredTTL)
	if err != nil {
		logger.Error("failed to increment retry counter", "notification_id", notificationID, "error", err)
	}

	lockKey := s.config.LockKeyPrefix + notificationID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("failed to remove delivery lock", "notification_id", notificationID, "error", err)
	}

	logger.Warn("notification delivery failed, will retry",
		"notification_id", notificationID,
		"retry_count", newRetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return nil
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, dc *DeliveryContext) error {
	if dc == nil || !dc.lockAcquired {
		return nil
	}

	lockKey := s.config.LockKeyPrefix + dc.NotificationID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("failed to release delivery lock", "notification_id", dc.NotificationID, "error", err)
		return err
	}

	dc.lockAcquired = false
	logger.Debug("delivery lock released", "notification_id", dc.NotificationID)
	return nil
}

func (s *IdempotencyService) cleanup(ctx context.Context, dc *DeliveryContext) {
	notificationID := dc.NotificationID

	lockKey := s.config.LockKeyPrefix + notificationID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("failed to cleanup delivery lock", "notification_id", notificationID, "error", err)
	}

	retryKey := s.config.RetryKeyPrefix + notificationID
	if err := s.redis.Del(retryKey); err != nil {
		logger.Warn("failed to cleanup retry counter", "notification_id", notificationID, "error", err)
	}

	dc.lockAcquired = false
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, notificationID string) (int, error) {
	retryKey := s.config.RetryKeyPrefix + notificationID
	retryCountBytes, err := s.redis.Get(retryKey)
	if err != nil {
		if err == redis.NilError {
			return 0, nil
		}
		return 0, err
	}

	retryCount := 0
	fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	return retryCount, nil
}

func (s *IdempotencyService) IsDelivered(ctx context.Context, notificationID string) (bool, error) {
	deliveredKey := s.config.DeliveredKeyPrefix + notificationID
	exists, err := s.redis.Exist(deliveredKey)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
