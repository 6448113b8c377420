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

type ContactResolver interface {
	GetOrCreateByPhone(ctx context.Context, phone string) (*model.Contact, error)
}

type InboundTriage interface {
	SubmitInbound(ctx context.Context, contactID int64, text string) (*services.InboundResult, error)
}

// WebhookHandler receives inbound customer messages pushed by the
// WhatsApp provider.
type WebhookHandler struct {
	contacts ContactResolver
	triage   InboundTriage
}

func NewWebhookHandler(contacts ContactResolver, triage InboundTriage) *WebhookHandler {
	return &WebhookHandler{contacts: contacts, triage: triage}
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhook/inbound", h.ReceiveInbound)
}

type inboundWebhookRequest struct {
	Phone string `json:"phone"`
	Text  string `json:"text"`
}

func (h *WebhookHandler) ReceiveInbound(ctx *xhttp.RequestCtx) {
	var req inboundWebhookRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Phone) == "" {
		writeError(ctx, 400, "phone is required")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(ctx, 400, "text is required")
		return
	}

	contact, err := h.contacts.GetOrCreateByPhone(ctx, req.Phone)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	result, err := h.triage.SubmitInbound(ctx, contact.ID, req.Text)
	if err != nil {
		if errors.Is(err, services.ErrNotificationQueued) {
			writeJSON(ctx, 202, result)
			return
		}
		writeServiceError(ctx, err)
		return
	}

	status := 200
	if result.Complaint != nil {
		status = 201
	}
	writeJSON(ctx, status, result)
}
