package repository

import (
	"time"
)

// DeliveryReportEntity records the gateway's verdict for an outbound
// message delivery attempt.
type DeliveryReportEntity struct {
	ID                int64      `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	MessageID         int64      `db:"message_id"          gorm:"column:message_id;not null;index"`
	Status            string     `db:"status"              gorm:"column:status;not null"`
	ProviderMessageID string     `db:"provider_message_id" gorm:"column:provider_message_id"`
	DeliveredAt       *time.Time `db:"delivered_at"        gorm:"column:delivered_at"`
	CreatedAt         time.Time  `db:"created_at"          gorm:"column:created_at;autoCreateTime"`
}

func (DeliveryReportEntity) TableName() string { return "delivery_reports" }
