package dispatcher

import (
	"context"
	"errors"
	"strconv"
	"time"

	gateway "github.com/arcrm/engage/internal/gateways"
	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/internal/queue"
	"github.com/arcrm/engage/internal/repository"
	"github.com/arcrm/engage/pkg/logger"
	"github.com/arcrm/engage/pkg/prom"
)

type Sender interface {
	Send(ctx context.Context, req *gateway.SendRequest) (*gateway.SendResponse, error)
}

type MessageRepository interface {
	UpdateStatus(ctx context.Context, id int64, status model.MessageStatus) error
}

type DeliveryReportRepository interface {
	Create(ctx context.Context, dr *repository.DeliveryReport) (*repository.DeliveryReport, error)
}

// OutboundProcessor delivers one queued notification through the
// WhatsApp gateway and reports the verdict back onto the message row.
type OutboundProcessor struct {
	sender             Sender
	messageRepo        MessageRepository
	deliveryReportRepo DeliveryReportRepository
	idempotency        *IdempotencyService
}

func NewOutboundProcessor(sender Sender, messageRepo MessageRepository, deliveryReportRepo DeliveryReportRepository, idempotency *IdempotencyService) *OutboundProcessor {
	return &OutboundProcessor{
		sender:             sender,
		messageRepo:        messageRepo,
		deliveryReportRepo: deliveryReportRepo,
		idempotency:        idempotency,
	}
}

func (p *OutboundProcessor) GetType() string {
	return "outbound-notification"
}

// Process delivers the notification with idempotency guarantees.
// Returning nil acks the delivery; returning an error leaves it pending
// for a later retry.
func (p *OutboundProcessor) Process(ctx context.Context, d *queue.Delivery) error {
	n := d.Notification
	notificationID := strconv.FormatInt(n.MessageID, 10)

	dc, err := p.idempotency.AcquireDeliveryLock(ctx, notificationID)
	if err != nil {
		if errors.Is(err, ErrAlreadyDelivered) {
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			// Give up: mark the message failed, record the verdict and
			// ack so the queue can move it to the DLQ.
			p.recordFailure(ctx, n.MessageID)
			return nil
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			return errors.New("delivery lock held by another consumer")
		}
		logger.Error("failed to acquire delivery lock", "notification_id", notificationID, "error", err)
		return err
	}

	defer func() {
		if dc.lockAcquired {
			p.idempotency.ReleaseLock(ctx, dc)
		}
	}()

	logger.Info("delivering notification",
		"notification_id", notificationID,
		"phone", n.Phone,
		"retry_count", dc.RetryCount,
		"is_retry", dc.IsRetry)

	resp, err := p.sender.Send(ctx, &gateway.SendRequest{
		MessageID: n.MessageID,
		To:        n.Phone,
		Body:      n.Body,
		MediaRef:  n.MediaRef,
	})
	if err != nil || !resp.Accepted {
		if err == nil {
			err = errors.New("gateway did not accept the message")
		}
		logger.Error("failed to deliver notification", "notification_id", notificationID, "error", err)
		prom.IncNotificationDispatched(string(model.MessageStatusFailed))
		if markErr := p.idempotency.MarkFailure(ctx, dc, err); markErr != nil {
			logger.Error("failed to mark delivery failure", "notification_id", notificationID, "error", markErr)
		}
		return err
	}

	logger.Info("notification delivered",
		"notification_id", notificationID,
		"phone", n.Phone,
		"provider_message_id", resp.ProviderMessageID,
		"retry_count", dc.RetryCount)

	if err := p.messageRepo.UpdateStatus(ctx, n.MessageID, model.MessageStatusSent); err != nil {
		logger.Error("failed to update message status", "notification_id", notificationID, "error", err)
		// Delivery already happened; a status-write failure must not
		// trigger a second send.
	}

	deliveredAt := resp.ProcessedAt
	if _, err := p.deliveryReportRepo.Create(ctx, &repository.DeliveryReport{
		MessageID:         n.MessageID,
		Status:            model.MessageStatusSent,
		ProviderMessageID: resp.ProviderMessageID,
		DeliveredAt:       &deliveredAt,
	}); err != nil {
		logger.Error("failed to save delivery report", "notification_id", notificationID, "error", err)
	}

	prom.IncNotificationDispatched(string(model.MessageStatusSent))
	if !d.Timestamp.IsZero() {
		prom.ObserveNotificationDeliveryDuration(time.Since(d.Timestamp).Seconds(), string(model.MessageStatusSent))
	}

	if markErr := p.idempotency.MarkDelivered(ctx, dc); markErr != nil {
		logger.Error("failed to mark delivered", "notification_id", notificationID, "error", markErr)
	}

	return nil
}

func (p *OutboundProcessor) recordFailure(ctx context.Context, messageID int64) {
	if err := p.messageRepo.UpdateStatus(ctx, messageID, model.MessageStatusFailed); err != nil {
		logger.Error("failed to update message status", "message_id", messageID, "error", err)
	}
	if _, err := p.deliveryReportRepo.Create(ctx, &repository.DeliveryReport{
		MessageID: messageID,
		Status:    model.MessageStatusFailed,
	}); err != nil {
		logger.Error("failed to save delivery report", "message_id", messageID, "error", err)
	}
	prom.IncNotificationDispatched(string(model.MessageStatusFailed))
}
