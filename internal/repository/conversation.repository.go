package repository

import (
	"context"
	"errors"
	"time"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/pkg/pg"
	"gorm.io/gorm"
)

// ErrConversationNotFound is returned when a conversation does not exist.
var ErrConversationNotFound = errors.New("conversation not found")

type ConversationRepository struct {
	*pg.DB
}

func NewConversationRepository(db *pg.DB) *ConversationRepository {
	return &ConversationRepository{db}
}

func (r *ConversationRepository) Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error) {
	entity := toConversationEntity(c)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toConversationModel(entity), nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id int64) (*model.Conversation, error) {
	var entity ConversationEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return toConversationModel(&entity), nil
}

// GetOpenByContact returns the contact's most recent non-closed conversation.
func (r *ConversationRepository) GetOpenByContact(ctx context.Context, contactID int64) (*model.Conversation, error) {
	var entity ConversationEntity
	err := r.Read(ctx).
		Where("contact_id = ? AND status <> ?", contactID, string(model.ConversationStatusClosed)).
		Order("last_message_at DESC").
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return toConversationModel(&entity), nil
}

// TouchLastMessage updates the conversation preview after an append.
func (r *ConversationRepository) TouchLastMessage(ctx context.Context, id int64, preview string, at time.Time) error {
	result := r.Write(ctx).
		Model(&ConversationEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message":    preview,
			"last_message_at": at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepository) UpdateStatus(ctx context.Context, id int64, status model.ConversationStatus) error {
	result := r.Write(ctx).
		Model(&ConversationEntity{}).
		Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (r *ConversationRepository) List(ctx context.Context, f model.ConversationFilter) ([]*model.Conversation, int64, error) {
	q := r.Read(ctx).Model(&ConversationEntity{})

	if f.ContactID != nil {
		q = q.Where("contact_id = ?", *f.ContactID)
	}
	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "last_message_at"
	if f.Desc {
		order += " DESC"
	} else {
		order += " ASC"
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*ConversationEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toConversationModels(entities), total, nil
}
