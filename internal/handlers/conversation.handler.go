package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/internal/services"
	xhttp "github.com/arcrm/engage/pkg/http"
	"github.com/fasthttp/router"
)

type ConversationService interface {
	Get(ctx context.Context, id int64) (*model.Conversation, error)
	List(ctx context.Context, f model.ConversationFilter) ([]*model.Conversation, int64, error)
	Messages(ctx context.Context, conversationID int64, f model.MessageFilter) ([]*model.Message, int64, error)
	Reply(ctx context.Context, conversationID int64, text string) (*model.Message, error)
}

type ConversationHandler struct {
	svc ConversationService
}

func NewConversationHandler(svc ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

func RegisterConversationRoutes(e *router.Group, h *ConversationHandler) {
	e.GET("/conversations", h.ListConversations)
	e.GET("/conversations/{id}", h.GetConversation)
	e.GET("/conversations/{id}/messages", h.ListMessages)
	e.POST("/conversations/{id}/reply", h.Reply)
}

type conversationListResponse struct {
	Items []*model.Conversation `json:"items"`
	Total int64                 `json:"total"`
}

type messageListResponse struct {
	Items []*model.Message `json:"items"`
	Total int64            `json:"total"`
}

func (h *ConversationHandler) ListConversations(ctx *xhttp.RequestCtx) {
	var f model.ConversationFilter

	if v := query(ctx, "contact_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.ContactID = &id
		}
	}
	if v := query(ctx, "status"); v != "" {
		status := model.ConversationStatus(strings.ToUpper(v))
		f.Status = &status
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
	writeJSON(ctx, 200, conversationListResponse{Items: items, Total: total})
}

func (h *ConversationHandler) GetConversation(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid conversation id")
		return
	}

	conv, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, conv)
}

func (h *ConversationHandler) ListMessages(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid conversation id")
		return
	}

	var f model.MessageFilter
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	queryInt(ctx, "limit", &f.Limit)
	queryInt(ctx, "offset", &f.Offset)

	items, total, err := h.svc.Messages(ctx, id, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 200, messageListResponse{Items: items, Total: total})
}

func (h *ConversationHandler) Reply(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid conversation id")
		return
	}

	var req replyRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}

	msg, err := h.svc.Reply(ctx, id, req.Text)
	if err != nil {
		if errors.Is(err, services.ErrNotificationQueued) {
			writeJSON(ctx, 202, msg)
			return
		}
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, 201, msg)
}
