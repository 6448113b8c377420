package model

import (
	"errors"
	"strings"
	"time"
)

type Contact struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"` // digits only, E.164 without the plus
	Tags      []string  `json:"tags"`
	GroupID   *int64    `json:"group_id,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (Contact) TableName() string { return "contacts" }

// ContactCreateRequest is the input for creating a contact.
type ContactCreateRequest struct {
	Name  string
	Phone string
	Tags  []string
	Notes string
}

func (p ContactCreateRequest) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(p.Phone) == "" {
		return errors.New("phone is required")
	}
	for _, r := range p.Phone {
		if r < '0' || r > '9' {
			return errors.New("phone must contain digits only")
		}
	}
	return nil
}

// ContactFilter controls List queries.
type ContactFilter struct {
	Phone  *string // equals
	Tag    *string // membership
	Limit  int     // default 50
	Offset int
}
