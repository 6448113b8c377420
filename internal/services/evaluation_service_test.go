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

type MockEvaluationRepository struct {
	mock.Mock
}

func (m *MockEvaluationRepository) Create(ctx context.Context, e *model.Evaluation) (*model.Evaluation, error) {
	args := m.Called(ctx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Evaluation), args.Error(1)
}

func (m *MockEvaluationRepository) GetByID(ctx context.Context, id int64) (*model.Evaluation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Evaluation), args.Error(1)
}

func (m *MockEvaluationRepository) UpdateStatus(ctx context.Context, id int64, status model.EvaluationStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockEvaluationRepository) List(ctx context.Context, f model.EvaluationFilter) ([]*model.Evaluation, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Evaluation), args.Get(1).(int64), args.Error(2)
}

type MockEvaluationAnalyzer struct {
	mock.Mock
}

func (m *MockEvaluationAnalyzer) StudyEvaluation(ctx context.Context, ev *model.Evaluation) (*model.EvaluationStudy, bool) {
	args := m.Called(ctx, ev)
	return args.Get(0).(*model.EvaluationStudy), args.Bool(1)
}

func TestEvaluationCreate_Valid(t *testing.T) {
	repo := new(MockEvaluationRepository)
	svc := NewEvaluationService(repo, new(MockEvaluationAnalyzer))
	ctx := context.Background()

	repo.On("Create", ctx, mock.MatchedBy(func(e *model.Evaluation) bool {
		return e.Status == model.EvaluationStatusPending && e.Rating == 2
	})).Return(&model.Evaluation{ID: 1, Rating: 2, Status: model.EvaluationStatusPending}, nil)

	ev, err := svc.Create(ctx, model.EvaluationCreateRequest{
		ContactName:  "سارة",
		ContactPhone: "966501234567",
		Rating:       2,
		Comment:      "الخدمة بطيئة",
	})
	require.NoError(t, err)
	assert.Equal(t, model.EvaluationStatusPending, ev.Status)
}

func TestEvaluationCreate_RatingOutOfRange(t *testing.T) {
	repo := new(MockEvaluationRepository)
	svc := NewEvaluationService(repo, new(MockEvaluationAnalyzer))

	_, err := svc.Create(context.Background(), model.EvaluationCreateRequest{
		ContactName:  "سارة",
		ContactPhone: "966501234567",
		Rating:       6,
	})
	assert.Error(t, err)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEvaluationStudy_ReturnsWithoutPersisting(t *testing.T) {
	repo := new(MockEvaluationRepository)
	analyzer := new(MockEvaluationAnalyzer)
	svc := NewEvaluationService(repo, analyzer)
	ctx := context.Background()

	stored := &model.Evaluation{ID: 4, ContactName: "سارة", Rating: 1, Comment: "تجربة سيئة"}
	repo.On("GetByID", ctx, int64(4)).Return(stored, nil)
	analyzer.On("StudyEvaluation", mock.Anything, stored).Return(&model.EvaluationStudy{
		Sentiment:   "مستاء",
		ImpactLevel: model.ImpactHigh,
	}, true)

	study, err := svc.Study(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, model.ImpactHigh, study.ImpactLevel)

	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluationStudy_FallbackStillReturned(t *testing.T) {
	repo := new(MockEvaluationRepository)
	analyzer := new(MockEvaluationAnalyzer)
	svc := NewEvaluationService(repo, analyzer)
	ctx := context.Background()

	repo.On("GetByID", ctx, int64(4)).Return(&model.Evaluation{ID: 4, Rating: 3}, nil)
	analyzer.On("StudyEvaluation", mock.Anything, mock.Anything).Return(&model.EvaluationStudy{
		Sentiment:   "محايد",
		ImpactLevel: model.ImpactMedium,
	}, false)

	study, err := svc.Study(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, model.ImpactMedium, study.ImpactLevel)
}

func TestEvaluationStudy_NotFound(t *testing.T) {
	repo := new(MockEvaluationRepository)
	svc := NewEvaluationService(repo, new(MockEvaluationAnalyzer))
	ctx := context.Background()

	repo.On("GetByID", ctx, int64(404)).Return(nil, repository.ErrEvaluationNotFound)

	_, err := svc.Study(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEvaluationMarkReplied(t *testing.T) {
	repo := new(MockEvaluationRepository)
	svc := NewEvaluationService(repo, new(MockEvaluationAnalyzer))
	ctx := context.Background()

	repo.On("UpdateStatus", ctx, int64(4), model.EvaluationStatusReplied).Return(nil)
	repo.On("GetByID", ctx, int64(4)).Return(&model.Evaluation{ID: 4, Status: model.EvaluationStatusReplied}, nil)

	ev, err := svc.MarkReplied(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, model.EvaluationStatusReplied, ev.Status)
}
