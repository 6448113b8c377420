package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/pkg/logger"
	"github.com/arcrm/engage/pkg/redis"
)

// Delivery is one outbound notification pulled off the stream. The
// consumer group tracks it as pending until Ack; unacked deliveries are
// reclaimed after the visibility timeout and retried.
type Delivery struct {
	ID           string
	Notification model.OutboundNotification
	Metadata     map[string]string
	Timestamp    time.Time
	Attempts     int
	acked        bool
	queue        *Queue
}

// Ack marks the delivery as successfully processed.
func (d *Delivery) Ack() error {
	if d.acked {
		return fmt.Errorf("delivery already acknowledged")
	}
	d.acked = true
	return d.queue.ackDelivery(d.ID)
}

// DeliveryHandler processes one delivery.
// Return values:
//   - nil: success, the delivery is auto-acked
//   - error: failure, the delivery stays pending and will be retried
type DeliveryHandler func(ctx context.Context, d *Delivery) error

type Config struct {
	Name              string
	ConsumerGroup     string
	ConsumerName      string
	MaxRetries        int
	VisibilityTimeout time.Duration
	PollInterval      time.Duration
	BatchSize         int64
	MaxLen            int64
	EnableDLQ         bool
}

// Queue carries outbound customer notifications from the API process to
// the dispatcher over a Redis stream with a consumer group.
type Queue struct {
	adapter    redis.RedisAdapter
	config     Config
	handler    DeliveryHandler
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	processing map[string]*Delivery
}

type Stats struct {
	TotalMessages   int64
	PendingMessages int64
	ConsumerCount   int64
}

func New(adapter redis.RedisAdapter, config Config) (*Queue, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if config.ConsumerGroup == "" {
		config.ConsumerGroup = "dispatchers"
	}
	if config.ConsumerName == "" {
		config.ConsumerName = fmt.Sprintf("dispatcher-%d", time.Now().UnixNano())
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.VisibilityTimeout == 0 {
		config.VisibilityTimeout = 30 * time.Second
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.BatchSize == 0 {
		config.BatchSize = 10
	}

	ctx, cancel := context.WithCancel(context.Background())

	q := &Queue{
		adapter:    adapter,
		config:     config,
		ctx:        ctx,
		cancel:     cancel,
		processing: make(map[string]*Delivery),
	}

	// Group may already exist, which is fine.
	if err := q.initConsumerGroup(); err != nil {
		logger.Debug("consumer group init", "queue", config.Name, "error", err)
	}

	return q, nil
}

func (q *Queue) initConsumerGroup() error {
	return q.adapter.XGroupCreateMkStream(
		q.config.Name,
		q.config.ConsumerGroup,
		"0",
	)
}

// Publish enqueues one notification for the dispatcher.
func (q *Queue) Publish(ctx context.Context, n model.OutboundNotification, metadata map[string]string) (string, error) {
	if err := n.Validate(); err != nil {
		return "", fmt.Errorf("invalid notification: %w", err)
	}

	data, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("failed to marshal notification: %w", err)
	}

	values := map[string]interface{}{
		"data":      string(data),
		"timestamp": time.Now().Unix(),
		"attempts":  0,
	}
	for k, v := range metadata {
		values["meta_"+k] = v
	}

	id, err := q.adapter.XAdd(q.config.Name, values)
	if err != nil {
		return "", fmt.Errorf("failed to publish notification: %w", err)
	}

	if q.config.MaxLen > 0 {
		_ = q.adapter.XTrimApprox(q.config.Name, q.config.MaxLen)
	}

	return id, nil
}

// Consume starts the background consume loop. Deliveries are acked on
// handler success and left pending on handler error.
func (q *Queue) Consume(handler DeliveryHandler) error {
	if handler == nil {
		return fmt.Errorf("delivery handler is required")
	}

	q.handler = handler
	q.wg.Add(1)

	go q.consumeLoop()

	return nil
}

func (q *Queue) consumeLoop() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.processNew()
			q.claimStuck()
		}
	}
}

func (q *Queue) processNew() {
	messages, err := q.adapter.XReadGroup(
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.Name,
		">",
		q.config.BatchSize,
	)

	if err != nil {
		if err != redis.NilError {
			logger.Warn("queue read failed", "queue", q.config.Name, "error", err)
		}
		return
	}

	for _, streamMsg := range messages {
		d, err := q.toDelivery(streamMsg)
		if err != nil {
			logger.Error("dropping undecodable delivery", "id", streamMsg.ID, "error", err)
			_ = q.ackDelivery(streamMsg.ID)
			continue
		}
		q.handleDelivery(d)
	}
}

func (q *Queue) claimStuck() {
	pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup)
	if err != nil || pending == nil || pending.Count == 0 {
		return
	}

	pendingExt, err := q.adapter.XPendingExt(
		q.config.Name,
		q.config.ConsumerGroup,
		"-",
		"+",
		100,
	)
	if err != nil || len(pendingExt) == 0 {
		return
	}

	var idsToReclaim []string
	for _, msg := range pendingExt {
		if msg.Idle >= q.config.VisibilityTimeout {
			idsToReclaim = append(idsToReclaim, msg.ID)
		}
	}

	if len(idsToReclaim) == 0 {
		return
	}

	messages, err := q.adapter.XClaim(
		q.config.Name,
		q.config.ConsumerGroup,
		q.config.ConsumerName,
		q.config.VisibilityTimeout,
		idsToReclaim...,
	)
	if err != nil {
		return
	}

	for _, streamMsg := range messages {
		d, err := q.toDelivery(streamMsg)
		if err != nil {
			logger.Error("dropping undecodable delivery", "id", streamMsg.ID, "error", err)
			_ = q.ackDelivery(streamMsg.ID)
			continue
		}
		d.Attempts++
		q.handleDelivery(d)
	}
}

func (q *Queue) handleDelivery(d *Delivery) {
	q.mu.Lock()
	q.processing[d.ID] = d
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.processing, d.ID)
		q.mu.Unlock()
	}()

	if d.Attempts >= q.config.MaxRetries {
		q.moveToDeadLetterQueue(d)
		_ = q.ackDelivery(d.ID)
		return
	}

	ctx, cancel := context.WithTimeout(q.ctx, q.config.VisibilityTimeout)
	defer cancel()

	if err := q.handler(ctx, d); err != nil {
		// Leave pending; the delivery will be reclaimed and retried.
		return
	}

	_ = q.ackDelivery(d.ID)
}

func (q *Queue) ackDelivery(deliveryID string) error {
	return q.adapter.XAck(q.config.Name, q.config.ConsumerGroup, deliveryID)
}

func (q *Queue) moveToDeadLetterQueue(d *Delivery) {
	if !q.config.EnableDLQ {
		return
	}

	dlqName := q.config.Name + ":dlq"

	data, _ := json.Marshal(d.Notification)
	values := map[string]interface{}{
		"data":           string(data),
		"original_id":    d.ID,
		"attempts":       d.Attempts,
		"failed_at":      time.Now().Unix(),
		"original_queue": q.config.Name,
	}
	for k, v := range d.Metadata {
		values["meta_"+k] = v
	}

	logger.Warn("delivery moved to DLQ", "id", d.ID, "message_id", d.Notification.MessageID, "attempts", d.Attempts)

	_, _ = q.adapter.XAdd(dlqName, values)
}

func (q *Queue) toDelivery(streamMsg redis.StreamMessage) (*Delivery, error) {
	d := &Delivery{
		ID:       streamMsg.ID,
		Metadata: make(map[string]string),
		queue:    q,
	}

	for k, v := range streamMsg.Values {
		switch k {
		case "data":
			raw, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("data field has unexpected type %T", v)
			}
			if err := json.Unmarshal([]byte(raw), &d.Notification); err != nil {
				return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
			}
		case "attempts":
			if attempts, ok := v.(string); ok {
				fmt.Sscanf(attempts, "%d", &d.Attempts)
			}
		default:
			if len(k) > 5 && k[:5] == "meta_" {
				if val, ok := v.(string); ok {
					d.Metadata[k[5:]] = val
				}
			}
		}
	}

	if d.Notification.MessageID == 0 {
		return nil, fmt.Errorf("delivery %s has no notification payload", streamMsg.ID)
	}

	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now()
	}

	return d, nil
}

func (q *Queue) Stop(timeout time.Duration) error {
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("timeout waiting for queue to stop")
	}
}

func (q *Queue) GetStats() (*Stats, error) {
	totalMessages, err := q.adapter.XLen(q.config.Name)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalMessages: totalMessages,
	}

	pending, err := q.adapter.XPending(q.config.Name, q.config.ConsumerGroup)
	if err == nil && pending != nil {
		stats.PendingMessages = pending.Count
		stats.ConsumerCount = int64(len(pending.Consumers))
	}

	return stats, nil
}
