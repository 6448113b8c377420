package services

import (
	"context"
	"errors"
	"strings"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/internal/repository"
)

var ErrDuplicatePhone = errors.New("a contact with this phone already exists")

// ContactService manages the customer address book.
type ContactService struct {
	contactRepo ContactRepository
}

func NewContactService(contactRepo ContactRepository) *ContactService {
	return &ContactService{contactRepo: contactRepo}
}

func (s *ContactService) Create(ctx context.Context, p model.ContactCreateRequest) (*model.Contact, error) {
	p.Phone = strings.TrimSpace(p.Phone)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	created, err := s.contactRepo.Create(ctx, &model.Contact{
		Name:  strings.TrimSpace(p.Name),
		Phone: p.Phone,
		Tags:  p.Tags,
		Notes: p.Notes,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicatePhone) {
			return nil, ErrDuplicatePhone
		}
		return nil, err
	}
	return created, nil
}

func (s *ContactService) Get(ctx context.Context, id int64) (*model.Contact, error) {
	contact, err := s.contactRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return contact, nil
}

// GetOrCreateByPhone resolves the sender of an inbound message. Unknown
// numbers get a minimal contact named after the phone itself.
func (s *ContactService) GetOrCreateByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, errors.New("phone is required")
	}

	contact, err := s.contactRepo.GetByPhone(ctx, phone)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, repository.ErrContactNotFound) {
		return nil, err
	}

	created, err := s.contactRepo.Create(ctx, &model.Contact{
		Name:  phone,
		Phone: phone,
	})
	if err != nil {
		// A concurrent webhook for the same number can create it first.
		if errors.Is(err, repository.ErrDuplicatePhone) {
			return s.contactRepo.GetByPhone(ctx, phone)
		}
		return nil, err
	}
	return created, nil
}

func (s *ContactService) List(ctx context.Context, f model.ContactFilter) ([]*model.Contact, int64, error) {
	return s.contactRepo.List(ctx, f)
}
