package repository

import (
	"strings"
	"time"

	"github.com/arcrm/engage/internal/model"
)

type ContactEntity struct {
	ID        int64     `db:"id"         gorm:"primaryKey;autoIncrement;column:id"`
	Name      string    `db:"name"       gorm:"column:name;not null"`
	Phone     string    `db:"phone"      gorm:"column:phone;not null;uniqueIndex"`
	Tags      string    `db:"tags"       gorm:"column:tags"` // comma-separated
	GroupID   *int64    `db:"group_id"   gorm:"column:group_id"`
	Notes     string    `db:"notes"      gorm:"column:notes"`
	CreatedAt time.Time `db:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (ContactEntity) TableName() string { return "contacts" }

func toContactEntity(c *model.Contact) *ContactEntity {
	if c == nil {
		return nil
	}
	return &ContactEntity{
		ID:        c.ID,
		Name:      c.Name,
		Phone:     c.Phone,
		Tags:      joinTags(c.Tags),
		GroupID:   c.GroupID,
		Notes:     c.Notes,
		CreatedAt: c.CreatedAt,
	}
}

func toContactModel(e *ContactEntity) *model.Contact {
	if e == nil {
		return nil
	}
	return &model.Contact{
		ID:        e.ID,
		Name:      e.Name,
		Phone:     e.Phone,
		Tags:      splitTags(e.Tags),
		GroupID:   e.GroupID,
		Notes:     e.Notes,
		CreatedAt: e.CreatedAt,
	}
}

func toContactModels(entities []*ContactEntity) []*model.Contact {
	if entities == nil {
		return nil
	}
	models := make([]*model.Contact, len(entities))
	for i, e := range entities {
		models[i] = toContactModel(e)
	}
	return models
}

func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
