package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/pkg/pg"
	"gorm.io/gorm"
)

var (
	// ErrComplaintNotFound is returned when a complaint does not exist.
	ErrComplaintNotFound = errors.New("complaint not found")
	// ErrDuplicateComplaintNumber is returned when the unique index on
	// complaint_number rejects an insert. The allocator retries on it.
	ErrDuplicateComplaintNumber = errors.New("complaint number already exists")
)

type ComplaintRepository struct {
	*pg.DB
}

func NewComplaintRepository(db *pg.DB) *ComplaintRepository {
	return &ComplaintRepository{db}
}

func (r *ComplaintRepository) Create(ctx context.Context, c *model.Complaint) (*model.Complaint, error) {
	entity := toComplaintEntity(c)

	if err := r.Write(ctx).Create(entity).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateComplaintNumber
		}
		return nil, err
	}

	return toComplaintModel(entity), nil
}

func (r *ComplaintRepository) GetByID(ctx context.Context, id int64) (*model.Complaint, error) {
	var entity ComplaintEntity
	err := r.Read(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrComplaintNotFound
		}
		return nil, err
	}
	return toComplaintModel(&entity), nil
}

// ExistsByNumber reports whether a complaint number is already taken. The
// unique index remains the authority; this only pre-filters allocator
// candidates cheaply.
func (r *ComplaintRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	err := r.Read(ctx).
		Model(&ComplaintEntity{}).
		Where("complaint_number = ?", number).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update applies a partial update and bumps updated_at, even when the
// update itself is a no-op (enrichment fallback still counts as activity).
func (r *ComplaintRepository) Update(ctx context.Context, id int64, u model.ComplaintUpdate) (*model.Complaint, error) {
	values := map[string]interface{}{
		"updated_at": time.Now().UTC(),
	}
	if u.Status != nil {
		values["status"] = string(*u.Status)
	}
	if u.Category != nil {
		values["category"] = *u.Category
	}
	if u.AIAnalysis != nil {
		b, err := json.Marshal(u.AIAnalysis)
		if err != nil {
			return nil, err
		}
		values["ai_analysis"] = string(b)
	}

	result := r.Write(ctx).
		Model(&ComplaintEntity{}).
		Where("id = ?", id).
		Updates(values)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrComplaintNotFound
	}

	return r.GetByID(ctx, id)
}

func (r *ComplaintRepository) List(ctx context.Context, f model.ComplaintFilter) ([]*model.Complaint, int64, error) {
	q := r.Read(ctx).Model(&ComplaintEntity{})

	if f.Status != nil {
		q = q.Where("status = ?", string(*f.Status))
	}
	if f.Phone != nil && *f.Phone != "" {
		q = q.Where("contact_phone = ?", *f.Phone)
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

	var entities []*ComplaintEntity
	if err := q.Order(order).Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}

	return toComplaintModels(entities), total, nil
}
