package model

import "time"

// ComplaintStatus is the lifecycle state of a complaint.
//
//	PENDING -> IN_PROGRESS -> RESOLVED
//	PENDING -> RESOLVED
//
// RESOLVED and CLOSED are terminal for the notification pipeline. CLOSED is
// only ever set manually by an operator.
type ComplaintStatus string

const (
	ComplaintStatusPending    ComplaintStatus = "PENDING"
	ComplaintStatusInProgress ComplaintStatus = "IN_PROGRESS"
	ComplaintStatusResolved   ComplaintStatus = "RESOLVED"
	ComplaintStatusClosed     ComplaintStatus = "CLOSED"
)

// Terminal reports whether no further automated transitions or alerts
// may touch the complaint.
func (s ComplaintStatus) Terminal() bool {
	return s == ComplaintStatusResolved || s == ComplaintStatusClosed
}

// ComplaintAnalysis is the AI-derived enrichment attached to a complaint.
// SuggestedSolutions is guaranteed non-empty on every stored analysis; when
// the AI collaborator fails, a fixed fallback analysis is stored instead.
type ComplaintAnalysis struct {
	RootCause          string   `json:"root_cause"`
	CustomerSentiment  string   `json:"customer_sentiment"`
	SuggestedSolutions []string `json:"suggested_solutions"`
}

type Complaint struct {
	ID int64 `json:"id"`

	// ComplaintNumber is the human-facing identifier (CR-NNNN). Assigned
	// exactly once at creation and never regenerated.
	ComplaintNumber string `json:"complaint_number"`

	// Contact snapshot taken at creation time. Later renames of the
	// contact do not change historical complaints.
	ContactID    int64  `json:"contact_id"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`

	Category string `json:"category"`
	Summary  string `json:"summary"`
	Details  string `json:"details"` // triggering text, verbatim

	Status     ComplaintStatus    `json:"status"`
	AIAnalysis *ComplaintAnalysis `json:"ai_analysis,omitempty"`

	Messages []*Message `json:"messages,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Complaint) TableName() string { return "complaints" }

// ComplaintFilter controls List queries.
type ComplaintFilter struct {
	Status *ComplaintStatus
	Phone  *string
	Limit  int
	Offset int
	Desc   bool // order by created_at
}

// ComplaintUpdate is a partial update applied by the triage engine.
// Nil fields are left untouched. UpdatedAt is bumped on every apply.
type ComplaintUpdate struct {
	Status     *ComplaintStatus
	AIAnalysis *ComplaintAnalysis
	Category   *string
}
