package model

import (
	"errors"
	"time"
)

type EvaluationStatus string

const (
	EvaluationStatusPending EvaluationStatus = "PENDING"
	EvaluationStatusReplied EvaluationStatus = "REPLIED"
)

type ImpactLevel string

const (
	ImpactLow      ImpactLevel = "LOW"
	ImpactMedium   ImpactLevel = "MEDIUM"
	ImpactHigh     ImpactLevel = "HIGH"
	ImpactCritical ImpactLevel = "CRITICAL"
)

// Evaluation is a stored satisfaction rating left by a customer.
type Evaluation struct {
	ID           int64            `json:"id"`
	ContactName  string           `json:"contact_name"`
	ContactPhone string           `json:"contact_phone"`
	Rating       int              `json:"rating"` // 1..5
	Comment      string           `json:"comment,omitempty"`
	Category     string           `json:"category"`
	Status       EvaluationStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

func (Evaluation) TableName() string { return "evaluations" }

// EvaluationStudy is the AI deep-dive produced on demand for an evaluation.
// It is returned to the caller and not persisted on the record.
type EvaluationStudy struct {
	Sentiment         string      `json:"sentiment"`
	Summary           string      `json:"summary"`
	Deficiencies      []string    `json:"deficiencies"`
	RootCauses        []string    `json:"root_causes"`
	ProposedSolutions []string    `json:"proposed_solutions"`
	ActionPlan        string      `json:"action_plan"`
	ImpactLevel       ImpactLevel `json:"impact_level"`
}

// EvaluationCreateRequest is the input for storing a rating.
type EvaluationCreateRequest struct {
	ContactName  string
	ContactPhone string
	Rating       int
	Comment      string
	Category     string
}

func (p EvaluationCreateRequest) Validate() error {
	if p.ContactName == "" {
		return errors.New("contact_name is required")
	}
	if p.ContactPhone == "" {
		return errors.New("contact_phone is required")
	}
	if p.Rating < 1 || p.Rating > 5 {
		return errors.New("rating must be between 1 and 5")
	}
	return nil
}

// EvaluationFilter controls List queries.
type EvaluationFilter struct {
	Status    *EvaluationStatus
	MinRating *int
	MaxRating *int
	Limit     int
	Offset    int
	Desc      bool // order by created_at
}
