package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/internal/services"
	xhttp "github.com/arcrm/engage/pkg/http"
	"github.com/fasthttp/router"
)

type ComplaintService interface {
	Get(ctx context.Context, complaintID int64) (*model.Complaint, error)
	List(ctx context.Context, f model.ComplaintFilter) ([]*model.Complaint, int64, error)
	AppendReply(ctx context.Context, complaintID int64, text string) (*model.Message, error)
	Reanalyze(ctx context.Context, complaintID int64) (*model.Complaint, error)
	Start(ctx context.Context, complaintID int64) (*model.Complaint, error)
	Resolve(ctx context.Context, complaintID int64) (*model.Complaint, error)
}

type ComplaintHandler struct {
	svc ComplaintService
}

func NewComplaintHandler(svc ComplaintService) *ComplaintHandler {
	return &ComplaintHandler{svc: svc}
}

func RegisterComplaintRoutes(e *router.Group, h *ComplaintHandler) {
	e.GET("/complaints", h.ListComplaints)
	e.GET("/complaints/{id}", h.GetComplaint)
	e.POST("/complaints/{id}/reply", h.Reply)
	e.POST("/complaints/{id}/reanalyze", h.Reanalyze)
	e.POST("/complaints/{id}/start", h.Start)
	e.POST("/complaints/{id}/resolve", h.Resolve)
}

type complaintListResponse struct {
	Items []*model.Complaint `json:"items"`
	Total int64              `json:"total"`
}

type replyRequest struct {
	Text string `json:"text"`
}

func (h *ComplaintHandler) ListComplaints(ctx *xhttp.RequestCtx) {
	var f model.ComplaintFilter

	if v := query(ctx, "status"); v != "" {
		status := model.ComplaintStatus(strings.ToUpper(v))
		f.Status = &status
	}
	if v := query(ctx, "phone"); v != "" {
		f.Phone = &v
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
	writeJSON(ctx, 200, complaintListResponse{Items: items, Total: total})
}

func (h *ComplaintHandler) GetComplaint(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid complaint id")
		return
	}

	complaint, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, complaint)
}

func (h *ComplaintHandler) Reply(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid complaint id")
		return
	}

	var req replyRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	msg, err := h.svc.AppendReply(ctx, id, req.Text)
	if err != nil {
		// The reply is stored; only its delivery is unconfirmed.
		if errors.Is(err, services.ErrNotificationQueued) {
			writeJSON(ctx, 202, msg)
			return
		}
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, msg)
}

func (h *ComplaintHandler) Reanalyze(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid complaint id")
		return
	}

	complaint, err := h.svc.Reanalyze(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, complaint)
}

func (h *ComplaintHandler) Start(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid complaint id")
		return
	}

	complaint, err := h.svc.Start(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, complaint)
}

func (h *ComplaintHandler) Resolve(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid complaint id")
		return
	}

	complaint, err := h.svc.Resolve(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, complaint)
}
