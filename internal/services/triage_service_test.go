package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockContactRepository struct {
	mock.Mock
}

func (m *MockContactRepository) GetByID(ctx context.Context, id int64) (*model.Contact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactRepository) GetByPhone(ctx context.Context, phone string) (*model.Contact, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactRepository) Create(ctx context.Context, c *model.Contact) (*model.Contact, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockContactRepository) List(ctx context.Context, f model.ContactFilter) ([]*model.Contact, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Contact), args.Get(1).(int64), args.Error(2)
}

type MockConversationRepository struct {
	mock.Mock
}

func (m *MockConversationRepository) Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *MockConversationRepository) GetByID(ctx context.Context, id int64) (*model.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *MockConversationRepository) GetOpenByContact(ctx context.Context, contactID int64) (*model.Conversation, error) {
	args := m.Called(ctx, contactID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *MockConversationRepository) TouchLastMessage(ctx context.Context, id int64, preview string, at time.Time) error {
	args := m.Called(ctx, id, preview, at)
	return args.Error(0)
}

func (m *MockConversationRepository) List(ctx context.Context, f model.ConversationFilter) ([]*model.Conversation, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Conversation), args.Get(1).(int64), args.Error(2)
}

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Append(ctx context.Context, msg *model.Message) (*model.Message, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageRepository) ListByThread(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Message), args.Get(1).(int64), args.Error(2)
}

type MockComplaintRepository struct {
	mock.Mock
}

func (m *MockComplaintRepository) Create(ctx context.Context, c *model.Complaint) (*model.Complaint, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Complaint), args.Error(1)
}

func (m *MockComplaintRepository) GetByID(ctx context.Context, id int64) (*model.Complaint, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Complaint), args.Error(1)
}

func (m *MockComplaintRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

func (m *MockComplaintRepository) Update(ctx context.Context, id int64, u model.ComplaintUpdate) (*model.Complaint, error) {
	args := m.Called(ctx, id, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Complaint), args.Error(1)
}

func (m *MockComplaintRepository) List(ctx context.Context, f model.ComplaintFilter) ([]*model.Complaint, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Complaint), args.Get(1).(int64), args.Error(2)
}

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) AnalyzeComplaint(ctx context.Context, details, contactName string) (*model.ComplaintAnalysis, bool) {
	args := m.Called(ctx, details, contactName)
	return args.Get(0).(*model.ComplaintAnalysis), args.Bool(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, n model.OutboundNotification, metadata map[string]string) (string, error) {
	args := m.Called(ctx, n, metadata)
	return args.String(0), args.Error(1)
}

var complaintNumberRe = regexp.MustCompile(`^CR-\d{4}$`)

func newTriageFixture() (*TriageService, *MockContactRepository, *MockConversationRepository, *MockMessageRepository, *MockComplaintRepository, *MockAnalyzer, *MockPublisher) {
	contactRepo := new(MockContactRepository)
	convRepo := new(MockConversationRepository)
	msgRepo := new(MockMessageRepository)
	complaintRepo := new(MockComplaintRepository)
	analyzer := new(MockAnalyzer)
	publisher := new(MockPublisher)
	svc := NewTriageService(contactRepo, convRepo, msgRepo, complaintRepo, analyzer, publisher)
	return svc, contactRepo, convRepo, msgRepo, complaintRepo, analyzer, publisher
}

func testContact() *model.Contact {
	return &model.Contact{ID: 7, Name: "محمد أحمد", Phone: "966501234567"}
}

func TestClassify(t *testing.T) {
	svc, _, _, _, _, _, _ := newTriageFixture()

	assert.True(t, svc.Classify("الخدمة سيئة جداً وتأخرتم في الرد"))
	assert.True(t, svc.Classify("لدي شكوى على الفاتورة"))
	assert.False(t, svc.Classify("متى موعد التسليم؟"))
	assert.False(t, svc.Classify("شكراً جزيلاً على الخدمة"))
}

func TestSummarize(t *testing.T) {
	short := "نص قصير"
	assert.Equal(t, short, Summarize(short))

	long := make([]rune, 0, 200)
	for i := 0; i < 200; i++ {
		long = append(long, 'م')
	}
	cut := Summarize(string(long))
	assert.Equal(t, 80, len([]rune(cut)))
}

func TestSubmitInbound_ComplaintPath(t *testing.T) {
	svc, contactRepo, _, msgRepo, complaintRepo, analyzer, publisher := newTriageFixture()
	ctx := context.Background()
	contact := testContact()

	contactRepo.On("GetByID", ctx, int64(7)).Return(contact, nil)
	complaintRepo.On("ExistsByNumber", ctx, mock.AnythingOfType("string")).Return(false, nil)

	var created *model.Complaint
	complaintRepo.On("Create", ctx, mock.MatchedBy(func(c *model.Complaint) bool {
		created = c
		return true
	})).Return(&model.Complaint{
		ID: 11, ComplaintNumber: "CR-0001",
		ContactName: contact.Name, ContactPhone: contact.Phone,
		Status: model.ComplaintStatusPending,
	}, nil)
	msgRepo.On("Append", ctx, mock.MatchedBy(func(m *model.Message) bool {
		return m.ThreadType == model.ThreadComplaint && m.Direction == model.DirectionInbound
	})).Return(&model.Message{ID: 100, ThreadType: model.ThreadComplaint, ThreadID: 11}, nil)

	enriched := &model.Complaint{
		ID: 11, ComplaintNumber: "CR-0001",
		ContactName: contact.Name, ContactPhone: contact.Phone,
		Status: model.ComplaintStatusPending,
		AIAnalysis: &model.ComplaintAnalysis{
			RootCause:          "تأخر التسليم",
			CustomerSentiment:  "غاضب",
			SuggestedSolutions: []string{"اعتذار"},
		},
	}
	complaintRepo.On("GetByID", ctx, int64(11)).Return(enriched, nil)
	analyzer.On("AnalyzeComplaint", mock.Anything, mock.AnythingOfType("string"), contact.Name).
		Return(enriched.AIAnalysis, true)
	complaintRepo.On("Update", ctx, int64(11), mock.AnythingOfType("model.ComplaintUpdate")).Return(enriched, nil)

	msgRepo.On("Append", ctx, mock.MatchedBy(func(m *model.Message) bool {
		return m.ThreadType == model.ThreadComplaint && m.Direction == model.DirectionOutbound
	})).Return(&model.Message{ID: 101}, nil)
	publisher.On("Publish", ctx, mock.AnythingOfType("model.OutboundNotification"), mock.Anything).Return("1-0", nil)

	result, err := svc.SubmitInbound(ctx, 7, "الخدمة سيئة جداً وتأخرتم في الرد")
	require.NoError(t, err)
	require.NotNil(t, result.Complaint)
	assert.NotNil(t, result.Message)
	assert.NotNil(t, result.Complaint.AIAnalysis)

	require.NotNil(t, created)
	assert.Regexp(t, complaintNumberRe, created.ComplaintNumber)
	assert.Equal(t, model.ComplaintStatusPending, created.Status)
	assert.Equal(t, contact.Phone, created.ContactPhone)

	publisher.AssertCalled(t, "Publish", ctx, mock.MatchedBy(func(n model.OutboundNotification) bool {
		return n.MessageID == 101 && n.Phone == contact.Phone
	}), mock.Anything)
}

func TestSubmitInbound_OrdinaryMessage(t *testing.T) {
	svc, contactRepo, convRepo, msgRepo, complaintRepo, _, _ := newTriageFixture()
	ctx := context.Background()
	contact := testContact()

	contactRepo.On("GetByID", ctx, int64(7)).Return(contact, nil)
	convRepo.On("GetOpenByContact", ctx, int64(7)).Return(&model.Conversation{ID: 3, ContactID: 7}, nil)
	msgRepo.On("Append", ctx, mock.MatchedBy(func(m *model.Message) bool {
		return m.ThreadType == model.ThreadConversation && m.ThreadID == 3 && m.Status == model.MessageStatusDelivered
	})).Return(&model.Message{ID: 50, ThreadType: model.ThreadConversation, ThreadID: 3}, nil)
	convRepo.On("TouchLastMessage", ctx, int64(3), "متى موعد التسليم؟", mock.AnythingOfType("time.Time")).Return(nil)

	result, err := svc.SubmitInbound(ctx, 7, "متى موعد التسليم؟")
	require.NoError(t, err)
	assert.Nil(t, result.Complaint)
	require.NotNil(t, result.Message)
	assert.Equal(t, int64(50), result.Message.ID)

	complaintRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestSubmitInbound_CreatesConversationWhenNoneOpen(t *testing.T) {
	svc, contactRepo, convRepo, msgRepo, _, _, _ := newTriageFixture()
	ctx := context.Background()
	contact := testContact()

	contactRepo.On("GetByID", ctx, int64(7)).Return(contact, nil)
	convRepo.On("GetOpenByContact", ctx, int64(7)).Return(nil, repository.ErrConversationNotFound)
	convRepo.On("Create", ctx, mock.MatchedBy(func(c *model.Conversation) bool {
		return c.ContactID == 7 && c.Status == model.ConversationStatusOpen && c.Priority == model.PriorityMedium
	})).Return(&model.Conversation{ID: 9, ContactID: 7, Status: model.ConversationStatusOpen}, nil)
	msgRepo.On("Append", ctx, mock.Anything).Return(&model.Message{ID: 51, ThreadID: 9}, nil)
	convRepo.On("TouchLastMessage", ctx, int64(9), mock.Anything, mock.Anything).Return(nil)

	result, err := svc.SubmitInbound(ctx, 7, "أريد الاستفسار عن الطلب")
	require.NoError(t, err)
	assert.Nil(t, result.Complaint)
	convRepo.AssertExpectations(t)
}

func TestSubmitInbound_EmptyText(t *testing.T) {
	svc, _, _, _, _, _, _ := newTriageFixture()

	_, err := svc.SubmitInbound(context.Background(), 7, "   ")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestSubmitInbound_ContactNotFound(t *testing.T) {
	svc, contactRepo, _, _, _, _, _ := newTriageFixture()
	ctx := context.Background()

	contactRepo.On("GetByID", ctx, int64(404)).Return(nil, repository.ErrContactNotFound)

	_, err := svc.SubmitInbound(ctx, 404, "مشكلة في الطلب")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateComplaint_RetriesOnCollision(t *testing.T) {
	svc, _, _, _, complaintRepo, _, _ := newTriageFixture()
	ctx := context.Background()
	contact := testContact()

	complaintRepo.On("ExistsByNumber", ctx, mock.AnythingOfType("string")).Return(true, nil).Once()
	complaintRepo.On("ExistsByNumber", ctx, mock.AnythingOfType("string")).Return(false, nil)
	complaintRepo.On("Create", ctx, mock.AnythingOfType("*model.Complaint")).Return(
		&model.Complaint{ID: 1, ComplaintNumber: "CR-0042"}, nil)

	created, err := svc.CreateComplaint(ctx, contact, "تأخرتم في تسليم الطلب")
	require.NoError(t, err)
	assert.Equal(t, "CR-0042", created.ComplaintNumber)
	complaintRepo.AssertNumberOfCalls(t, "ExistsByNumber", 2)
}

func TestCreateComplaint_InsertRaceRetries(t *testing.T) {
	svc, _, _, _, complaintRepo, _, _ := newTriageFixture()
	ctx := context.Background()

	complaintRepo.On("ExistsByNumber", ctx, mock.AnythingOfType("string")).Return(false, nil)
	complaintRepo.On("Create", ctx, mock.AnythingOfType("*model.Complaint")).
		Return(nil, repository.ErrDuplicateComplaintNumber).Once()
	complaintRepo.On("Create", ctx, mock.AnythingOfType("*model.Complaint")).
		Return(&model.Complaint{ID: 2, ComplaintNumber: "CR-0077"}, nil)

	created, err := svc.CreateComplaint(ctx, testContact(), "مشكلة في الفاتورة")
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ID)
}

func TestCreateComplaint_AllocationExhausted(t *testing.T) {
	svc, _, _, _, complaintRepo, _, _ := newTriageFixture()
	ctx := context.Background()

	complaintRepo.On("ExistsByNumber", ctx, mock.AnythingOfType("string")).Return(true, nil)

	_, err := svc.CreateComplaint(ctx, testContact(), "مشكلة")
	assert.ErrorIs(t, err, ErrAllocationExhausted)
	complaintRepo.AssertNumberOfCalls(t, "ExistsByNumber", 5)
	complaintRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEnrich_StoresFallbackOnDegradedAnalyzer(t *testing.T) {
	svc, _, _, _, complaintRepo, analyzer, _ := newTriageFixture()
	ctx := context.Background()

	fallback := &model.ComplaintAnalysis{
		RootCause:          "تعذر التحليل",
		CustomerSentiment:  "غير محدد",
		SuggestedSolutions: []string{"التواصل المباشر"},
	}
	stored := &model.Complaint{ID: 5, ComplaintNumber: "CR-0005", ContactName: "سارة", Details: "خطأ في الطلب"}
	complaintRepo.On("GetByID", ctx, int64(5)).Return(stored, nil)
	analyzer.On("AnalyzeComplaint", mock.Anything, "خطأ في الطلب", "سارة").Return(fallback, false)
	complaintRepo.On("Update", ctx, int64(5), mock.MatchedBy(func(u model.ComplaintUpdate) bool {
		return u.AIAnalysis == fallback && u.Status == nil
	})).Return(&model.Complaint{ID: 5, AIAnalysis: fallback}, nil)

	updated, err := svc.Enrich(ctx, 5)
	require.NoError(t, err)
	require.NotNil(t, updated.AIAnalysis)
	assert.NotEmpty(t, updated.AIAnalysis.SuggestedSolutions)
}

func TestEnrich_NotFound(t *testing.T) {
	svc, _, _, _, complaintRepo, _, _ := newTriageFixture()
	ctx := context.Background()

	complaintRepo.On("GetByID", ctx, int64(404)).Return(nil, repository.ErrComplaintNotFound)

	_, err := svc.Enrich(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendReply_PublishFailureKeepsLocalAppend(t *testing.T) {
	svc, _, _, msgRepo, complaintRepo, _, publisher := newTriageFixture()
	ctx := context.Background()

	complaintRepo.On("GetByID", ctx, int64(5)).Return(
		&model.Complaint{ID: 5, ContactPhone: "966501234567"}, nil)
	msgRepo.On("Append", ctx, mock.MatchedBy(func(m *model.Message) bool {
		return m.Direction == model.DirectionOutbound && m.Status == model.MessageStatusQueued
	})).Return(&model.Message{ID: 60, Status: model.MessageStatusQueued}, nil)
	publisher.On("Publish", ctx, mock.Anything, mock.Anything).Return("", errors.New("redis down"))

	msg, err := svc.AppendReply(ctx, 5, "سيتم حل المشكلة اليوم")
	assert.ErrorIs(t, err, ErrNotificationQueued)
	require.NotNil(t, msg)
	assert.Equal(t, int64(60), msg.ID)
}

func TestResolve_IdempotentOnTerminal(t *testing.T) {
	svc, _, _, _, complaintRepo, _, _ := newTriageFixture()
	ctx := context.Background()

	complaintRepo.On("GetByID", ctx, int64(5)).Return(
		&model.Complaint{ID: 5, Status: model.ComplaintStatusResolved}, nil)

	resolved, err := svc.Resolve(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, model.ComplaintStatusResolved, resolved.Status)
	complaintRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestResolve_TransitionsPending(t *testing.T) {
	svc, _, _, _, complaintRepo, _, _ := newTriageFixture()
	ctx := context.Background()

	complaintRepo.On("GetByID", ctx, int64(5)).Return(
		&model.Complaint{ID: 5, Status: model.ComplaintStatusPending}, nil)
	complaintRepo.On("Update", ctx, int64(5), mock.MatchedBy(func(u model.ComplaintUpdate) bool {
		return u.Status != nil && *u.Status == model.ComplaintStatusResolved
	})).Return(&model.Complaint{ID: 5, Status: model.ComplaintStatusResolved}, nil)

	resolved, err := svc.Resolve(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, model.ComplaintStatusResolved, resolved.Status)
}

func TestStart_InvalidFromTerminal(t *testing.T) {
	svc, _, _, _, complaintRepo, _, _ := newTriageFixture()
	ctx := context.Background()

	complaintRepo.On("GetByID", ctx, int64(5)).Return(
		&model.Complaint{ID: 5, Status: model.ComplaintStatusResolved}, nil)

	_, err := svc.Start(ctx, 5)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStart_NoopWhenInProgress(t *testing.T) {
	svc, _, _, _, complaintRepo, _, _ := newTriageFixture()
	ctx := context.Background()

	complaintRepo.On("GetByID", ctx, int64(5)).Return(
		&model.Complaint{ID: 5, Status: model.ComplaintStatusInProgress}, nil)

	c, err := svc.Start(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, model.ComplaintStatusInProgress, c.Status)
	complaintRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestGet_AttachesThreadMessages(t *testing.T) {
	svc, _, _, msgRepo, complaintRepo, _, _ := newTriageFixture()
	ctx := context.Background()

	complaintRepo.On("GetByID", ctx, int64(5)).Return(&model.Complaint{ID: 5}, nil)
	msgRepo.On("ListByThread", ctx, model.MessageFilter{
		ThreadType: model.ThreadComplaint,
		ThreadID:   5,
	}).Return([]*model.Message{{ID: 1}, {ID: 2}}, int64(2), nil)

	c, err := svc.Get(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, c.Messages, 2)
}
