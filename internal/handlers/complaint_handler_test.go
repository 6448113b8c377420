package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/internal/services"
	xhttp "github.com/arcrm/engage/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockComplaintService struct {
	mock.Mock
}

func (m *MockComplaintService) Get(ctx context.Context, id int64) (*model.Complaint, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Complaint), args.Error(1)
}

func (m *MockComplaintService) List(ctx context.Context, f model.ComplaintFilter) ([]*model.Complaint, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Complaint), args.Get(1).(int64), args.Error(2)
}

func (m *MockComplaintService) AppendReply(ctx context.Context, id int64, text string) (*model.Message, error) {
	args := m.Called(ctx, id, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockComplaintService) Reanalyze(ctx context.Context, id int64) (*model.Complaint, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Complaint), args.Error(1)
}

func (m *MockComplaintService) Start(ctx context.Context, id int64) (*model.Complaint, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Complaint), args.Error(1)
}

func (m *MockComplaintService) Resolve(ctx context.Context, id int64) (*model.Complaint, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Complaint), args.Error(1)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestComplaintHandler_GetComplaint(t *testing.T) {
	t.Run("returns complaint with thread", func(t *testing.T) {
		svc := new(MockComplaintService)
		handler := NewComplaintHandler(svc)

		svc.On("Get", mock.Anything, int64(5)).Return(&model.Complaint{
			ID:              5,
			ComplaintNumber: "CR-0042",
			Status:          model.ComplaintStatusPending,
			Messages:        []*model.Message{{ID: 1}},
		}, nil)

		ctx := setupTestContext("GET", "/api/v1/complaints/5", nil)
		ctx.SetUserValue("id", "5")
		handler.GetComplaint(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var response model.Complaint
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, "CR-0042", response.ComplaintNumber)
		assert.Len(t, response.Messages, 1)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockComplaintService)
		handler := NewComplaintHandler(svc)

		svc.On("Get", mock.Anything, int64(404)).Return(nil, services.ErrNotFound)

		ctx := setupTestContext("GET", "/api/v1/complaints/404", nil)
		ctx.SetUserValue("id", "404")
		handler.GetComplaint(ctx)

		assert.Equal(t, 404, ctx.Response.StatusCode())
	})

	t.Run("invalid id", func(t *testing.T) {
		handler := NewComplaintHandler(new(MockComplaintService))

		ctx := setupTestContext("GET", "/api/v1/complaints/abc", nil)
		ctx.SetUserValue("id", "abc")
		handler.GetComplaint(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})
}

func TestComplaintHandler_ListComplaints(t *testing.T) {
	svc := new(MockComplaintService)
	handler := NewComplaintHandler(svc)

	svc.On("List", mock.Anything, mock.MatchedBy(func(f model.ComplaintFilter) bool {
		return f.Status != nil && *f.Status == model.ComplaintStatusPending && f.Limit == 10 && f.Desc
	})).Return([]*model.Complaint{{ID: 1}, {ID: 2}}, int64(2), nil)

	ctx := setupTestContext("GET", "/api/v1/complaints?status=pending&limit=10&order=desc", nil)
	handler.ListComplaints(ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var response complaintListResponse
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
	assert.Equal(t, int64(2), response.Total)
	assert.Len(t, response.Items, 2)
}

func TestComplaintHandler_Reply(t *testing.T) {
	t.Run("reply stored and queued", func(t *testing.T) {
		svc := new(MockComplaintService)
		handler := NewComplaintHandler(svc)

		svc.On("AppendReply", mock.Anything, int64(5), "سيتم الحل اليوم").
			Return(&model.Message{ID: 60, Status: model.MessageStatusQueued}, nil)

		body, _ := json.Marshal(replyRequest{Text: "سيتم الحل اليوم"})
		ctx := setupTestContext("POST", "/api/v1/complaints/5/reply", body)
		ctx.SetUserValue("id", "5")
		handler.Reply(ctx)

		assert.Equal(t, 201, ctx.Response.StatusCode())
	})

	t.Run("delivery unconfirmed returns 202", func(t *testing.T) {
		svc := new(MockComplaintService)
		handler := NewComplaintHandler(svc)

		svc.On("AppendReply", mock.Anything, int64(5), "رد").
			Return(&model.Message{ID: 61}, services.ErrNotificationQueued)

		body, _ := json.Marshal(replyRequest{Text: "رد"})
		ctx := setupTestContext("POST", "/api/v1/complaints/5/reply", body)
		ctx.SetUserValue("id", "5")
		handler.Reply(ctx)

		assert.Equal(t, 202, ctx.Response.StatusCode())

		var response model.Message
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, int64(61), response.ID)
	})
}

func TestComplaintHandler_Resolve_InvalidTransition(t *testing.T) {
	svc := new(MockComplaintService)
	handler := NewComplaintHandler(svc)

	svc.On("Start", mock.Anything, int64(5)).Return(nil, services.ErrInvalidTransition)

	ctx := setupTestContext("POST", "/api/v1/complaints/5/start", nil)
	ctx.SetUserValue("id", "5")
	handler.Start(ctx)

	assert.Equal(t, 409, ctx.Response.StatusCode())
}
