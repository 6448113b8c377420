package handlers

import (
	"context"

	"github.com/arcrm/engage/internal/model"
	xhttp "github.com/arcrm/engage/pkg/http"
	"github.com/fasthttp/router"
)

type ContactService interface {
	Create(ctx context.Context, p model.ContactCreateRequest) (*model.Contact, error)
	Get(ctx context.Context, id int64) (*model.Contact, error)
	List(ctx context.Context, f model.ContactFilter) ([]*model.Contact, int64, error)
}

type ContactHandler struct {
	svc ContactService
}

func NewContactHandler(svc ContactService) *ContactHandler {
	return &ContactHandler{svc: svc}
}

func RegisterContactRoutes(e *router.Group, h *ContactHandler) {
	e.POST("/contacts", h.CreateContact)
	e.GET("/contacts", h.ListContacts)
	e.GET("/contacts/{id}", h.GetContact)
}

type createContactRequest struct {
	Name  string   `json:"name"`
	Phone string   `json:"phone"`
	Tags  []string `json:"tags"`
	Notes string   `json:"notes"`
}

type contactListResponse struct {
	Items []*model.Contact `json:"items"`
	Total int64            `json:"total"`
}

func (h *ContactHandler) CreateContact(ctx *xhttp.RequestCtx) {
	var req createContactRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	contact, err := h.svc.Create(ctx, model.ContactCreateRequest{
		Name:  req.Name,
		Phone: req.Phone,
		Tags:  req.Tags,
		Notes: req.Notes,
	})
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, contact)
}

func (h *ContactHandler) GetContact(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid contact id")
		return
	}

	contact, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, contact)
}

func (h *ContactHandler) ListContacts(ctx *xhttp.RequestCtx) {
	var f model.ContactFilter

	if v := query(ctx, "phone"); v != "" {
		f.Phone = &v
	}
	if v := query(ctx, "tag"); v != "" {
		f.Tag = &v
	}
	queryInt(ctx, "limit", &f.Limit)
	queryInt(ctx, "offset", &f.Offset)

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, contactListResponse{Items: items, Total: total})
}
