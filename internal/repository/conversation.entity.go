package repository

import (
	"time"

	"github.com/arcrm/engage/internal/model"
)

type ConversationEntity struct {
	ID            int64     `db:"id"              gorm:"primaryKey;autoIncrement;column:id"`
	ContactID     int64     `db:"contact_id"      gorm:"column:contact_id;not null;index"`
	ContactName   string    `db:"contact_name"    gorm:"column:contact_name;not null"`
	ContactPhone  string    `db:"contact_phone"   gorm:"column:contact_phone;not null;index"`
	Status        string    `db:"status"          gorm:"column:status;not null;index"`
	Priority      string    `db:"priority"        gorm:"column:priority;not null"`
	LastMessage   string    `db:"last_message"    gorm:"column:last_message"`
	LastMessageAt time.Time `db:"last_message_at" gorm:"column:last_message_at"`
	Tags          string    `db:"tags"            gorm:"column:tags"`
}

func (ConversationEntity) TableName() string { return "conversations" }

func toConversationEntity(c *model.Conversation) *ConversationEntity {
	if c == nil {
		return nil
	}
	return &ConversationEntity{
		ID:            c.ID,
		ContactID:     c.ContactID,
		ContactName:   c.ContactName,
		ContactPhone:  c.ContactPhone,
		Status:        string(c.Status),
		Priority:      string(c.Priority),
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt,
		Tags:          joinTags(c.Tags),
	}
}

func toConversationModel(e *ConversationEntity) *model.Conversation {
	if e == nil {
		return nil
	}
	return &model.Conversation{
		ID:            e.ID,
		ContactID:     e.ContactID,
		ContactName:   e.ContactName,
		ContactPhone:  e.ContactPhone,
		Status:        model.ConversationStatus(e.Status),
		Priority:      model.Priority(e.Priority),
		LastMessage:   e.LastMessage,
		LastMessageAt: e.LastMessageAt,
		Tags:          splitTags(e.Tags),
	}
}

func toConversationModels(entities []*ConversationEntity) []*model.Conversation {
	if entities == nil {
		return nil
	}
	models := make([]*model.Conversation, len(entities))
	for i, e := range entities {
		models[i] = toConversationModel(e)
	}
	return models
}
