package repository

import (
	"context"
	"errors"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrContactNotFound is returned when a contact does not exist.
	ErrContactNotFound = errors.New("contact not found")
	// ErrDuplicatePhone is returned when a contact with the same phone exists.
	ErrDuplicatePhone = errors.New("contact phone already exists")
)

type ContactRepository struct {
	*pg.DB
}

func NewContactRepository(db *pg.DB) *ContactRepository {
	return &ContactRepository{db}
}

func (r *ContactRepository) Create(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	entity := toContactEntity(c)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicatePhone
		}
		return nil, err
	}

	return toContactModel(entity), nil
}

func (r *ContactRepository) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	var entity ContactEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return toContactModel(&entity), nil
}

func (r *ContactRepository) GetByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	var entity ContactEntity
	err := r.Read(ctx).Where("phone = ?", phone).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return toContactModel(&entity), nil
}

func (r *ContactRepository) List(ctx context.Context, f model.ContactFilter) ([]*model.Contact, int64, error) {
	q := r.Read(ctx).Model(&ContactEntity{})

	if f.Phone != nil && *f.Phone != "" {
		q = q.Where("phone = ?", *f.Phone)
	}
	if f.Tag != nil && *f.Tag != "" {
		q = q.Where("tags LIKE ?", "%"+*f.Tag+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*ContactEntity
	if err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toContactModels(entities), total, nil
}
