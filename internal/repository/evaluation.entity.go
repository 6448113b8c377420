package repository

import (
	"time"

	"github.com/arcrm/engage/internal/model"
)

type EvaluationEntity struct {
	ID           int64     `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	ContactName  string    `db:"contact_name"  gorm:"column:contact_name;not null"`
	ContactPhone string    `db:"contact_phone" gorm:"column:contact_phone;not null;index"`
	Rating       int       `db:"rating"        gorm:"column:rating;not null"`
	Comment      string    `db:"comment"       gorm:"column:comment"`
	Category     string    `db:"category"      gorm:"column:category"`
	Status       string    `db:"status"        gorm:"column:status;not null;index"`
	CreatedAt    time.Time `db:"created_at"    gorm:"column:created_at;autoCreateTime"`
}

func (EvaluationEntity) TableName() string { return "evaluations" }

func toEvaluationEntity(e *model.Evaluation) *EvaluationEntity {
	if e == nil {
		return nil
	}
	return &EvaluationEntity{
		ID:           e.ID,
		ContactName:  e.ContactName,
		ContactPhone: e.ContactPhone,
		Rating:       e.Rating,
		Comment:      e.Comment,
		Category:     e.Category,
		Status:       string(e.Status),
		CreatedAt:    e.CreatedAt,
	}
}

func toEvaluationModel(e *EvaluationEntity) *model.Evaluation {
	if e == nil {
		return nil
	}
	return &model.Evaluation{
		ID:           e.ID,
		ContactName:  e.ContactName,
		ContactPhone: e.ContactPhone,
		Rating:       e.Rating,
		Comment:      e.Comment,
		Category:     e.Category,
		Status:       model.EvaluationStatus(e.Status),
		CreatedAt:    e.CreatedAt,
	}
}

func toEvaluationModels(entities []*EvaluationEntity) []*model.Evaluation {
	if entities == nil {
		return nil
	}
	models := make([]*model.Evaluation, len(entities))
	for i, e := range entities {
		models[i] = toEvaluationModel(e)
	}
	return models
}
