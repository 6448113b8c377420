package repository

import (
	"time"

	"github.com/arcrm/engage/internal/model"
)

type MessageEntity struct {
	ID         int64     `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	ThreadType string    `db:"thread_type" gorm:"column:thread_type;not null;index:idx_messages_thread"`
	ThreadID   int64     `db:"thread_id"   gorm:"column:thread_id;not null;index:idx_messages_thread"`
	Direction  string    `db:"direction"   gorm:"column:direction;not null"`
	Type       string    `db:"type"        gorm:"column:type;not null"`
	Text       string    `db:"text"        gorm:"column:text"`
	MediaRef   string    `db:"media_ref"   gorm:"column:media_ref"`
	Status     string    `db:"status"      gorm:"column:status;not null;index"`
	Timestamp  time.Time `db:"timestamp"   gorm:"column:timestamp;autoCreateTime"`
}

func (MessageEntity) TableName() string { return "messages" }

func toMessageEntity(m *model.Message) *MessageEntity {
	if m == nil {
		return nil
	}
	return &MessageEntity{
		ID:         m.ID,
		ThreadType: string(m.ThreadType),
		ThreadID:   m.ThreadID,
		Direction:  string(m.Direction),
		Type:       string(m.Type),
		Text:       m.Text,
		MediaRef:   m.MediaRef,
		Status:     string(m.Status),
		Timestamp:  m.Timestamp,
	}
}

func toMessageModel(e *MessageEntity) *model.Message {
	if e == nil {
		return nil
	}
	return &model.Message{
		ID:         e.ID,
		ThreadType: model.ThreadType(e.ThreadType),
		ThreadID:   e.ThreadID,
		Direction:  model.MessageDirection(e.Direction),
		Type:       model.MessageType(e.Type),
		Text:       e.Text,
		MediaRef:   e.MediaRef,
		Status:     model.MessageStatus(e.Status),
		Timestamp:  e.Timestamp,
	}
}

func toMessageModels(entities []*MessageEntity) []*model.Message {
	if entities == nil {
		return nil
	}
	models := make([]*model.Message, len(entities))
	for i, e := range entities {
		models[i] = toMessageModel(e)
	}
	return models
}
