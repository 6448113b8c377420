package repository

import (
	"context"
	"time"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/pkg/pg"
)

// DeliveryReport is the repository-level view of a gateway delivery verdict.
type DeliveryReport struct {
	ID                int64               `json:"id"`
	MessageID         int64               `json:"message_id"`
	Status            model.MessageStatus `json:"status"`
	ProviderMessageID string              `json:"provider_message_id,omitempty"`
	DeliveredAt       *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
}

type DeliveryReportRepository struct {
	*pg.DB
}

func NewDeliveryReportRepository(db *pg.DB) *DeliveryReportRepository {
	return &DeliveryReportRepository{db}
}

func (r *DeliveryReportRepository) Create(ctx context.Context, dr *DeliveryReport) (*DeliveryReport, error) {
	entity := &DeliveryReportEntity{
		MessageID:         dr.MessageID,
		Status:            string(dr.Status),
		ProviderMessageID: dr.ProviderMessageID,
		DeliveredAt:       dr.DeliveredAt,
	}

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	dr.ID = entity.ID
	dr.CreatedAt = entity.CreatedAt
	return dr, nil
}

func (r *DeliveryReportRepository) ListByMessage(ctx context.Context, messageID int64) ([]*DeliveryReport, error) {
	var entities []*DeliveryReportEntity
	err := r.Read(ctx).
		Where("message_id = ?", messageID).
		Order("id ASC").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}

	reports := make([]*DeliveryReport, len(entities))
	for i, e := range entities {
		reports[i] = &DeliveryReport{
			ID:                e.ID,
			MessageID:         e.MessageID,
			Status:            model.MessageStatus(e.Status),
			ProviderMessageID: e.ProviderMessageID,
			DeliveredAt:       e.DeliveredAt,
			CreatedAt:         e.CreatedAt,
		}
	}
	return reports, nil
}
