package services

import (
	"context"
	"errors"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/internal/repository"
	"github.com/arcrm/engage/pkg/logger"
)

type EvaluationRepository interface {
	Create(ctx context.Context, e *model.Evaluation) (*model.Evaluation, error)
	GetByID(ctx context.Context, id int64) (*model.Evaluation, error)
	UpdateStatus(ctx context.Context, id int64, status model.EvaluationStatus) error
	List(ctx context.Context, f model.EvaluationFilter) ([]*model.Evaluation, int64, error)
}

// EvaluationAnalyzer runs the deep quality study. Same degradation
// contract as ComplaintAnalyzer.
type EvaluationAnalyzer interface {
	StudyEvaluation(ctx context.Context, ev *model.Evaluation) (*model.EvaluationStudy, bool)
}

// EvaluationService stores customer satisfaction ratings and produces
// on-demand AI case studies for them.
type EvaluationService struct {
	evaluationRepo EvaluationRepository
	analyzer       EvaluationAnalyzer
}

func NewEvaluationService(evaluationRepo EvaluationRepository, analyzer EvaluationAnalyzer) *EvaluationService {
	return &EvaluationService{
		evaluationRepo: evaluationRepo,
		analyzer:       analyzer,
	}
}

func (s *EvaluationService) Create(ctx context.Context, p model.EvaluationCreateRequest) (*model.Evaluation, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return s.evaluationRepo.Create(ctx, &model.Evaluation{
		ContactName:  p.ContactName,
		ContactPhone: p.ContactPhone,
		Rating:       p.Rating,
		Comment:      p.Comment,
		Category:     p.Category,
		Status:       model.EvaluationStatusPending,
	})
}

func (s *EvaluationService) Get(ctx context.Context, id int64) (*model.Evaluation, error) {
	ev, err := s.evaluationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ev, nil
}

func (s *EvaluationService) List(ctx context.Context, f model.EvaluationFilter) ([]*model.Evaluation, int64, error) {
	return s.evaluationRepo.List(ctx, f)
}

// Study runs the CX deep study for the evaluation. The result is
// returned to the caller and never stored on the record; repeated calls
// may produce different content.
func (s *EvaluationService) Study(ctx context.Context, id int64) (*model.EvaluationStudy, error) {
	ev, err := s.evaluationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	study, genuine := s.analyzer.StudyEvaluation(ctx, ev)
	if !genuine {
		logger.Warn("returning fallback study", "evaluation_id", id)
	}
	return study, nil
}

// MarkReplied records that an agent followed up on the rating.
func (s *EvaluationService) MarkReplied(ctx context.Context, id int64) (*model.Evaluation, error) {
	err := s.evaluationRepo.UpdateStatus(ctx, id, model.EvaluationStatusReplied)
	if err != nil {
		if errors.Is(err, repository.ErrEvaluationNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}
