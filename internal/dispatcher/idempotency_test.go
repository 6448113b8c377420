package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arcrm/engage/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

// Mock Redis adapter for testing
type mockRedisAdapter struct {
	data map[string][]byte
	ttls map[string]time.Time
}

func newMockRedisAdapter() *mockRedisAdapter {
	return &mockRedisAdapter{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Time),
	}
}

func (m *mockRedisAdapter) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	if _, exists := m.data[key]; exists {
		return false, nil
	}
	m.data[key] = value
	if ttl > 0 {
		m.ttls[key] = time.Now().Add(ttl)
	}
	return true, nil
}

func (m *mockRedisAdapter) Set(key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	if ttl > 0 {
		m.ttls[key] = time.Now().Add(ttl)
	}
	return nil
}

func (m *mockRedisAdapter) Get(key string) ([]byte, error) {
	if ttl, ok := m.ttls[key]; ok && time.Now().After(ttl) {
		delete(m.data, key)
		delete(m.ttls, key)
		return nil, redis.NilError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, redis.NilError
}

func (m *mockRedisAdapter) Del(key string) error {
	delete(m.data, key)
	delete(m.ttls, key)
	return nil
}

func (m *mockRedisAdapter) Exist(key string) (int64, error) {
	if ttl, ok := m.ttls[key]; ok && time.Now().After(ttl) {
		delete(m.data, key)
		delete(m.ttls, key)
		return 0, nil
	}
	if _, ok := m.data[key]; ok {
		return 1, nil
	}
	return 0, nil
}

// Stub implementations for unused methods
func (m *mockRedisAdapter) SMembers(key string) ([]string, error)         { return nil, nil }
func (m *mockRedisAdapter) SAdd(key string, value ...interface{}) error   { return nil }
func (m *mockRedisAdapter) HGet(key string, field string) ([]byte, error) { return nil, nil }
func (m *mockRedisAdapter) HGetAll(key string) (map[string]string, error) { return nil, nil }
func (m *mockRedisAdapter) HScan(key string, cursor uint64, match string, count int64) ([]string, uint64, error) {
	return nil, 0, nil
}
func (m *mockRedisAdapter) SScan(key string, cursor uint64, match string, count int64) ([]string, uint64, error) {
	return nil, 0, nil
}
func (m *mockRedisAdapter) HGetMultiple(keys ...string) (map[string]map[string]string, error) {
	return nil, nil
}
func (m *mockRedisAdapter) HSetIfNotExists(key string, field string, value interface{}) error {
	return nil
}
func (m *mockRedisAdapter) HSet(key string, field string, value interface{}) error { return nil }
func (m *mockRedisAdapter) HIncrement(key string, field string, value int64) error { return nil }
func (m *mockRedisAdapter) HIncrementBatch(coreName, keySuffix string, fieldAndValues map[string]int64, ttl time.Duration) error {
	return nil
}
func (m *mockRedisAdapter) TxPipelined(fn func(goredis.Pipeliner) error) ([]goredis.Cmder, error) {
	return nil, nil
}
func (m *mockRedisAdapter) Client() goredis.UniversalClient { return nil }
func (m *mockRedisAdapter) XAdd(key string, values map[string]interface{}) (string, error) {
	return "", nil
}
func (m *mockRedisAdapter) XAddWithID(key string, id string, values map[string]interface{}) (string, error) {
	return "", nil
}
func (m *mockRedisAdapter) XRead(key string, id string, count int64) ([]redis.StreamMessage, error) {
	return nil, nil
}
func (m *mockRedisAdapter) XReadGroup(group, consumer, key, id string, count int64) ([]redis.StreamMessage, error) {
	return nil, nil
}
func (m *mockRedisAdapter) XAck(key, group string, ids ...string) error           { return nil }
func (m *mockRedisAdapter) XGroupCreate(key, group, start string) error           { return nil }
func (m *mockRedisAdapter) XGroupCreateMkStream(key, group, start string) error   { return nil }
func (m *mockRedisAdapter) XLen(key string) (int64, error)                        { return 0, nil }
func (m *mockRedisAdapter) XDel(key string, ids ...string) error                  { return nil }
func (m *mockRedisAdapter) XTrim(key string, maxLen int64) error                  { return nil }
func (m *mockRedisAdapter) XTrimApprox(key string, maxLen int64) error            { return nil }
func (m *mockRedisAdapter) XPending(key, group string) (*goredis.XPending, error) { return nil, nil }
func (m *mockRedisAdapter) XPendingExt(key, group string, start, end string, count int64) ([]goredis.XPendingExt, error) {
	return nil, nil
}
func (m *mockRedisAdapter) XClaim(key, group, consumer string, minIdle time.Duration, ids ...string) ([]redis.StreamMessage, error) {
	return nil, nil
}

func TestIdempotencyService_AcquireDeliveryLock_FirstAttempt(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	notificationID := "notification-1"

	dc, err := service.AcquireDeliveryLock(ctx, notificationID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if dc == nil {
		t.Fatal("Expected delivery context, got nil")
	}

	if dc.NotificationID != notificationID {
		t.Errorf("Expected notification ID %s, got %s", notificationID, dc.NotificationID)
	}

	if dc.RetryCount != 0 {
		t.Errorf("Expected retry count 0, got %d", dc.RetryCount)
	}

	if dc.IsRetry {
		t.Error("Expected IsRetry to be false")
	}

	if !dc.lockAcquired {
		t.Error("Expected lock to be acquired")
	}
}

func TestIdempotencyService_AcquireDeliveryLock_Concurrent(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	notificationID := "notification-2"

	dc1, err := service.AcquireDeliveryLock(ctx, notificationID)
	if err != nil {
		t.Fatalf("First lock acquisition failed: %v", err)
	}

	dc2, err := service.AcquireDeliveryLock(ctx, notificationID)
	if err != ErrLockAcquireFailed {
		t.Errorf("Expected ErrLockAcquireFailed, got: %v", err)
	}

	if dc2 != nil {
		t.Error("Expected nil context for second consumer")
	}

	if !dc1.lockAcquired {
		t.Error("First consumer should still have lock")
	}
}

func TestIdempotencyService_MarkDelivered(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	notificationID := "notification-3"

	dc, err := service.AcquireDeliveryLock(ctx, notificationID)
	if err != nil {
		t.Fatalf("Lock acquisition failed: %v", err)
	}

	err = service.MarkDelivered(ctx, dc)
	if err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}

	delivered, err := service.IsDelivered(ctx, notificationID)
	if err != nil {
		t.Fatalf("IsDelivered check failed: %v", err)
	}

	if !delivered {
		t.Error("Notification should be marked as delivered")
	}

	dc2, err := service.AcquireDeliveryLock(ctx, notificationID)
	if err != ErrAlreadyDelivered {
		t.Errorf("Expected ErrAlreadyDelivered, got: %v", err)
	}

	if dc2 != nil {
		t.Error("Expected nil context for already delivered notification")
	}
}

func TestIdempotencyService_MarkFailure_WithRetry(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	config.MaxRetries = 3
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	notificationID := "notification-4"

	dc1, err := service.AcquireDeliveryLock(ctx, notificationID)
	if err != nil {
		t.Fatalf("First lock acquisition failed: %v", err)
	}

	if dc1.RetryCount != 0 {
		t.Errorf("Expected retry count 0, got %d", dc1.RetryCount)
	}

	err = service.MarkFailure(ctx, dc1, nil)
	if err != nil {
		t.Fatalf("MarkFailure failed: %v", err)
	}

	dc2, err := service.AcquireDeliveryLock(ctx, notificationID)
	if err != nil {
		t.Fatalf("Second lock acquisition failed: %v", err)
	}

	if dc2.RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", dc2.RetryCount)
	}

	if !dc2.IsRetry {
		t.Error("Expected IsRetry to be true")
	}
}

func TestIdempotencyService_MaxRetriesExceeded(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	config.MaxRetries = 2
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	notificationID := "notification-5"

	for i := 0; i < config.MaxRetries; i++ {
		dc, err := service.AcquireDeliveryLock(ctx, notificationID)
		if err != nil {
			t.Fatalf("Lock acquisition %d failed: %v", i, err)
		}
		err = service.MarkFailure(ctx, dc, nil)
		if err != nil {
			t.Fatalf("MarkFailure %d failed: %v", i, err)
		}
	}

	dc, err := service.AcquireDeliveryLock(ctx, notificationID)
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("Expected ErrMaxRetriesExceeded, got: %v", err)
	}

	if dc != nil {
		t.Error("Expected nil context after max retries")
	}
}

func TestIdempotencyService_ReleaseLock(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	notificationID := "notification-6"

	dc, err := service.AcquireDeliveryLock(ctx, notificationID)
	if err != nil {
		t.Fatalf("Lock acquisition failed: %v", err)
	}

	err = service.ReleaseLock(ctx, dc)
	if err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}

	if dc.lockAcquired {
		t.Error("Lock should be marked as released")
	}

	dc2, err := service.AcquireDeliveryLock(ctx, notificationID)
	if err != nil {
		t.Fatalf("Second lock acquisition failed: %v", err)
	}

	if dc2 == nil {
		t.Fatal("Expected delivery context, got nil")
	}
}

func TestIdempotencyService_GetRetryCount(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	notificationID := "notification-7"

	count, err := service.GetRetryCount(ctx, notificationID)
	if err != nil {
		t.Fatalf("GetRetryCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected retry count 0, got %d", count)
	}

	dc, _ := service.AcquireDeliveryLock(ctx, notificationID)
	service.MarkFailure(ctx, dc, nil)

	count, err = service.GetRetryCount(ctx, notificationID)
	if err != nil {
		t.Fatalf("GetRetryCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected retry count 1, got %d", count)
	}
}
