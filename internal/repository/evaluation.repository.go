package repository

import (
	"context"
	"errors"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/pkg/pg"
	"gorm.io/gorm"
)

// ErrEvaluationNotFound is returned when an evaluation does not exist.
var ErrEvaluationNotFound = errors.New("evaluation not found")

type EvaluationRepository struct {
	*pg.DB
}

func NewEvaluationRepository(db *pg.DB) *EvaluationRepository {
	return &EvaluationRepository{db}
}

func (r *EvaluationRepository) Create(ctx context.Context, e *model.Evaluation) (*model.Evaluation, error) {
	entity := toEvaluationEntity(e)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		return nil, err
	}

	return toEvaluationModel(entity), nil
}

func (r *EvaluationRepository) GetByID(ctx context.Context, id int64) (*model.Evaluation, error) {
	var entity EvaluationEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEvaluationNotFound
		}
		return nil, err
	}
	return toEvaluationModel(&entity), nil
}

func (r *EvaluationRepository) UpdateStatus(ctx context.Context, id int64, status model.EvaluationStatus) error {
	result := r.Write(ctx).
		Model(&EvaluationEntity{}).
		Where("id = ?", id).
		Update("status", string(status))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrEvaluationNotFound
	}
	return nil
}

func (r *EvaluationRepository) List(ctx context.Context, f model.EvaluationFilter) ([]*model.Evaluation, int64, error) {
	q := r.Read(ctx).Model(&EvaluationEntity{})

	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.MinRating != nil {
		q = q.Where("rating >= ?", *f.MinRating)
	}
	if f.MaxRating != nil {
		q = q.Where("rating <= ?", *f.MaxRating)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "created_at"
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

	var entities []*EvaluationEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toEvaluationModels(entities), total, nil
}
