package helpers

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/arcrm/engage/internal/repository"
	"github.com/arcrm/engage/pkg/pg"
	"github.com/arcrm/engage/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.ContactEntity{},
		&repository.ConversationEntity{},
		&repository.MessageEntity{},
		&repository.ComplaintEntity{},
		&repository.EvaluationEntity{},
		&repository.DeliveryReportEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Unique connection name per call; the adapter registry caches by name.
	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestContact(t *testing.T, db *pg.DB, name, phone string) *repository.ContactEntity {
	ctx := context.Background()
	contact := &repository.ContactEntity{
		Name:  name,
		Phone: phone,
	}
	err := db.Write(ctx).Create(contact).Error
	require.NoError(t, err)
	return contact
}

func CreateTestComplaint(t *testing.T, db *pg.DB, contactID int64, number, details string) *repository.ComplaintEntity {
	ctx := context.Background()
	complaint := &repository.ComplaintEntity{
		ComplaintNumber: number,
		ContactID:       contactID,
		ContactName:     "عميل تجريبي",
		ContactPhone:    "966500000000",
		Category:        "شكوى عامة",
		Summary:         details,
		Details:         details,
		Status:          "PENDING",
	}
	err := db.Write(ctx).Create(complaint).Error
	require.NoError(t, err)
	return complaint
}

func CreateTestMessage(t *testing.T, db *pg.DB, threadType string, threadID int64, direction, text string) *repository.MessageEntity {
	ctx := context.Background()
	msg := &repository.MessageEntity{
		ThreadType: threadType,
		ThreadID:   threadID,
		Direction:  direction,
		Type:       "text",
		Text:       text,
		Status:     "delivered",
		Timestamp:  time.Now(),
	}
	err := db.Write(ctx).Create(msg).Error
	require.NoError(t, err)
	return msg
}

func CreateTestDeliveryReport(t *testing.T, db *pg.DB, messageID int64, status string) *repository.DeliveryReportEntity {
	ctx := context.Background()
	deliveredAt := time.Now()
	dr := &repository.DeliveryReportEntity{
		MessageID:   messageID,
		Status:      status,
		DeliveredAt: &deliveredAt,
	}
	err := db.Write(ctx).Create(dr).Error
	require.NoError(t, err)
	return dr
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
