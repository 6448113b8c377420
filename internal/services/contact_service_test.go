package services

import (
	"context"
	"testing"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestContactCreate_DuplicatePhone(t *testing.T) {
	repo := new(MockContactRepository)
	svc := NewContactService(repo)
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(nil, repository.ErrDuplicatePhone)

	_, err := svc.Create(ctx, model.ContactCreateRequest{Name: "محمد", Phone: "966501234567"})
	assert.ErrorIs(t, err, ErrDuplicatePhone)
}

func TestContactGetOrCreateByPhone_Existing(t *testing.T) {
	repo := new(MockContactRepository)
	svc := NewContactService(repo)
	ctx := context.Background()

	repo.On("GetByPhone", ctx, "966501234567").Return(&model.Contact{ID: 7, Phone: "966501234567"}, nil)

	c, err := svc.GetOrCreateByPhone(ctx, "966501234567")
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.ID)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestContactGetOrCreateByPhone_CreatesUnknownNumber(t *testing.T) {
	repo := new(MockContactRepository)
	svc := NewContactService(repo)
	ctx := context.Background()

	repo.On("GetByPhone", ctx, "966500000001").Return(nil, repository.ErrContactNotFound)
	repo.On("Create", ctx, mock.MatchedBy(func(c *model.Contact) bool {
		return c.Phone == "966500000001" && c.Name == "966500000001"
	})).Return(&model.Contact{ID: 8, Name: "966500000001", Phone: "966500000001"}, nil)

	c, err := svc.GetOrCreateByPhone(ctx, "966500000001")
	require.NoError(t, err)
	assert.Equal(t, int64(8), c.ID)
}

func TestContactGetOrCreateByPhone_LosesCreateRace(t *testing.T) {
	repo := new(MockContactRepository)
	svc := NewContactService(repo)
	ctx := context.Background()

	repo.On("GetByPhone", ctx, "966500000002").Return(nil, repository.ErrContactNotFound).Once()
	repo.On("Create", ctx, mock.Anything).Return(nil, repository.ErrDuplicatePhone)
	repo.On("GetByPhone", ctx, "966500000002").Return(&model.Contact{ID: 9, Phone: "966500000002"}, nil)

	c, err := svc.GetOrCreateByPhone(ctx, "966500000002")
	require.NoError(t, err)
	assert.Equal(t, int64(9), c.ID)
}
