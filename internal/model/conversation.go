package model

import "time"

// ConversationStatus is the lifecycle state of an inbox thread.
type ConversationStatus string

const (
	ConversationStatusOpen    ConversationStatus = "OPEN"
	ConversationStatusPending ConversationStatus = "PENDING"
	ConversationStatusClosed  ConversationStatus = "CLOSED"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Conversation is an ordinary inbox thread with a contact. Complaint threads
// live on the Complaint record instead.
type Conversation struct {
	ID            int64              `json:"id"`
	ContactID     int64              `json:"contact_id"`
	ContactName   string             `json:"contact_name"`
	ContactPhone  string             `json:"contact_phone"`
	Status        ConversationStatus `json:"status"`
	Priority      Priority           `json:"priority"`
	LastMessage   string             `json:"last_message"`
	LastMessageAt time.Time          `json:"last_message_at"`
	Tags          []string           `json:"tags"`
}

func (Conversation) TableName() string { return "conversations" }

// ConversationFilter controls List queries.
type ConversationFilter struct {
	ContactID *int64
	Status    *ConversationStatus
	Limit     int
	Offset    int
	Desc      bool // order by last_message_at
}
