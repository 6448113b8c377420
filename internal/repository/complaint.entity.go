package repository

import (
	"encoding/json"
	"time"

	"github.com/arcrm/engage/internal/model"
)

type ComplaintEntity struct {
	ID              int64     `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	ComplaintNumber string    `db:"complaint_number" gorm:"column:complaint_number;not null;uniqueIndex"`
	ContactID       int64     `db:"contact_id"       gorm:"column:contact_id;not null;index"`
	ContactName     string    `db:"contact_name"     gorm:"column:contact_name;not null"`
	ContactPhone    string    `db:"contact_phone"    gorm:"column:contact_phone;not null"`
	Category        string    `db:"category"         gorm:"column:category"`
	Summary         string    `db:"summary"          gorm:"column:summary"`
	Details         string    `db:"details"          gorm:"column:details;not null"`
	Status          string    `db:"status"           gorm:"column:status;not null;index"`
	AIAnalysis      string    `db:"ai_analysis"      gorm:"column:ai_analysis"` // JSON, empty until enriched
	CreatedAt       time.Time `db:"created_at"       gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time `db:"updated_at"       gorm:"column:updated_at;autoUpdateTime"`
}

func (ComplaintEntity) TableName() string { return "complaints" }

func toComplaintEntity(c *model.Complaint) *ComplaintEntity {
	if c == nil {
		return nil
	}
	analysis := ""
	if c.AIAnalysis != nil {
		if b, err := json.Marshal(c.AIAnalysis); err == nil {
			analysis = string(b)
		}
	}
	return &ComplaintEntity{
		ID:              c.ID,
		ComplaintNumber: c.ComplaintNumber,
		ContactID:       c.ContactID,
		ContactName:     c.ContactName,
		ContactPhone:    c.ContactPhone,
		Category:        c.Category,
		Summary:         c.Summary,
		Details:         c.Details,
		Status:          string(c.Status),
		AIAnalysis:      analysis,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func toComplaintModel(e *ComplaintEntity) *model.Complaint {
	if e == nil {
		return nil
	}
	var analysis *model.ComplaintAnalysis
	if e.AIAnalysis != "" {
		var a model.ComplaintAnalysis
		if err := json.Unmarshal([]byte(e.AIAnalysis), &a); err == nil {
			analysis = &a
		}
	}
	return &model.Complaint{
		ID:              e.ID,
		ComplaintNumber: e.ComplaintNumber,
		ContactID:       e.ContactID,
		ContactName:     e.ContactName,
		ContactPhone:    e.ContactPhone,
		Category:        e.Category,
		Summary:         e.Summary,
		Details:         e.Details,
		Status:          model.ComplaintStatus(e.Status),
		AIAnalysis:      analysis,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toComplaintModels(entities []*ComplaintEntity) []*model.Complaint {
	if entities == nil {
		return nil
	}
	models := make([]*model.Complaint, len(entities))
	for i, e := range entities {
		models[i] = toComplaintModel(e)
	}
	return models
}
