package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/arcrm/engage/internal/model"
	xhttp "github.com/arcrm/engage/pkg/http"
	"github.com/fasthttp/router"
)

type EvaluationService interface {
	Create(ctx context.Context, p model.EvaluationCreateRequest) (*model.Evaluation, error)
	Get(ctx context.Context, id int64) (*model.Evaluation, error)
	List(ctx context.Context, f model.EvaluationFilter) ([]*model.Evaluation, int64, error)
	Study(ctx context.Context, id int64) (*model.EvaluationStudy, error)
	MarkReplied(ctx context.Context, id int64) (*model.Evaluation, error)
}

type EvaluationHandler struct {
	svc EvaluationService
}

func NewEvaluationHandler(svc EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{svc: svc}
}

func RegisterEvaluationRoutes(e *router.Group, h *EvaluationHandler) {
	e.POST("/evaluations", h.CreateEvaluation)
	e.GET("/evaluations", h.ListEvaluations)
	e.GET("/evaluations/{id}", h.GetEvaluation)
	e.POST("/evaluations/{id}/study", h.Study)
	e.POST("/evaluations/{id}/reply", h.MarkReplied)
}

type createEvaluationRequest struct {
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	Rating       int    `json:"rating"`
	Comment      string `json:"comment"`
	Category     string `json:"category"`
}

type evaluationListResponse struct {
	Items []*model.Evaluation `json:"items"`
	Total int64               `json:"total"`
}

func (h *EvaluationHandler) CreateEvaluation(ctx *xhttp.RequestCtx) {
	var req createEvaluationRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	ev, err := h.svc.Create(ctx, model.EvaluationCreateRequest{
		ContactName:  req.ContactName,
		ContactPhone: req.ContactPhone,
		Rating:       req.Rating,
		Comment:      req.Comment,
		Category:     req.Category,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, ev)
}

func (h *EvaluationHandler) GetEvaluation(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid evaluation id")
		return
	}

	ev, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, ev)
}

func (h *EvaluationHandler) ListEvaluations(ctx *xhttp.RequestCtx) {
	var f model.EvaluationFilter

	if v := query(ctx, "status"); v != "" {
		status := model.EvaluationStatus(strings.ToUpper(v))
		f.Status = &status
	}
	if v := query(ctx, "min_rating"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.MinRating = &n
		}
	}
	if v := query(ctx, "max_rating"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.MaxRating = &n
		}
	}
	queryInt(ctx, "limit", &f.Limit)
	queryInt(ctx, "offset", &f.Offset)
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, evaluationListResponse{Items: items, Total: total})
}

func (h *EvaluationHandler) Study(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid evaluation id")
		return
	}

	study, err := h.svc.Study(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, study)
}

func (h *EvaluationHandler) MarkReplied(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid evaluation id")
		return
	}

	ev, err := h.svc.MarkReplied(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, ev)
}
