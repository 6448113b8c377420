package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/internal/repository"
	"github.com/arcrm/engage/pkg/logger"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrEmptyText           = errors.New("message text cannot be empty")
	ErrAllocationExhausted = errors.New("complaint number allocation exhausted")
	ErrInvalidTransition   = errors.New("invalid complaint status transition")
	ErrNotificationQueued  = errors.New("message stored locally, delivery unconfirmed")
)

// complaintKeywords is the fixed classification set. Matching is a coarse
// substring heuristic over the lowered text; paraphrased complaints without
// these words are not caught.
var complaintKeywords = []string{
	"شكوى",
	"سيء",
	"سيئة",
	"تأخرتم",
	"تأخير",
	"مشكلة",
	"رديء",
	"غاضب",
	"محبط",
	"خطأ",
	"لم يصل",
	"إلغاء",
}

const summaryMaxRunes = 80
const allocationAttempts = 5
const defaultComplaintCategory = "شكوى عامة"

type ContactRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Contact, error)
	GetByPhone(ctx context.Context, phone string) (*model.Contact, error)
	Create(ctx context.Context, c *model.Contact) (*model.Contact, error)
	List(ctx context.Context, f model.ContactFilter) ([]*model.Contact, int64, error)
}

type ConversationRepository interface {
	Create(ctx context.Context, c *model.Conversation) (*model.Conversation, error)
	GetByID(ctx context.Context, id int64) (*model.Conversation, error)
	GetOpenByContact(ctx context.Context, contactID int64) (*model.Conversation, error)
	TouchLastMessage(ctx context.Context, id int64, preview string, at time.Time) error
	List(ctx context.Context, f model.ConversationFilter) ([]*model.Conversation, int64, error)
}

type MessageRepository interface {
	Append(ctx context.Context, m *model.Message) (*model.Message, error)
	ListByThread(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
}

type ComplaintRepository interface {
	Create(ctx context.Context, c *model.Complaint) (*model.Complaint, error)
	GetByID(ctx context.Context, id int64) (*model.Complaint, error)
	ExistsByNumber(ctx context.Context, number string) (bool, error)
	Update(ctx context.Context, id int64, u model.ComplaintUpdate) (*model.Complaint, error)
	List(ctx context.Context, f model.ComplaintFilter) ([]*model.Complaint, int64, error)
}

// ComplaintAnalyzer produces AI enrichment. Implementations never fail:
// the second return reports whether the result is genuine or the fallback.
type ComplaintAnalyzer interface {
	AnalyzeComplaint(ctx context.Context, details, contactName string) (*model.ComplaintAnalysis, bool)
}

// NotificationPublisher queues outbound messages for the dispatcher.
type NotificationPublisher interface {
	Publish(ctx context.Context, n model.OutboundNotification, metadata map[string]string) (string, error)
}

// InboundResult is what SubmitInbound produced for one inbound text.
// Complaint is nil when the text was classified as ordinary conversation.
type InboundResult struct {
	Message   *model.Message   `json:"message"`
	Complaint *model.Complaint `json:"complaint,omitempty"`
}

// TriageService classifies inbound customer texts and manages the
// complaint lifecycle: creation, AI enrichment, acknowledgement and
// status transitions.
type TriageService struct {
	contactRepo      ContactRepository
	conversationRepo ConversationRepository
	messageRepo      MessageRepository
	complaintRepo    ComplaintRepository
	analyzer         ComplaintAnalyzer
	publisher        NotificationPublisher
}

func NewTriageService(
	contactRepo ContactRepository,
	conversationRepo ConversationRepository,
	messageRepo MessageRepository,
	complaintRepo ComplaintRepository,
	analyzer ComplaintAnalyzer,
	publisher NotificationPublisher,
) *TriageService {
	return &TriageService{
		contactRepo:      contactRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		complaintRepo:    complaintRepo,
		analyzer:         analyzer,
		publisher:        publisher,
	}
}

// Classify reports whether the text reads as a complaint. Substring
// match over the fixed keyword set, case-insensitive, no side effects.
func (s *TriageService) Classify(text string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range complaintKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// Summarize cuts the headline shown in list views: the first 80 runes
// of the text. Deterministic; no AI involved.
func Summarize(text string) string {
	runes := []rune(text)
	if len(runes) <= summaryMaxRunes {
		return text
	}
	return string(runes[:summaryMaxRunes])
}

// SubmitInbound routes one inbound customer text. Non-complaints land
// in the contact's open conversation; complaints spawn a complaint
// record with best-effort enrichment and acknowledgement.
func (s *TriageService) SubmitInbound(ctx context.Context, contactID int64, text string) (*InboundResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	contact, err := s.contactRepo.GetByID(ctx, contactID)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !s.Classify(text) {
		msg, err := s.appendConversationMessage(ctx, contact, text)
		if err != nil {
			return nil, err
		}
		return &InboundResult{Message: msg}, nil
	}

	complaint, err := s.CreateComplaint(ctx, contact, text)
	if err != nil {
		return nil, err
	}

	inbound, err := s.messageRepo.Append(ctx, &model.Message{
		ThreadType: model.ThreadComplaint,
		ThreadID:   complaint.ID,
		Direction:  model.DirectionInbound,
		Type:       model.MessageTypeText,
		Text:       text,
		Status:     model.MessageStatusDelivered,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("append complaint message: %w", err)
	}

	// Enrichment and acknowledgement degrade, never block creation.
	if enriched, err := s.Enrich(ctx, complaint.ID); err != nil {
		logger.Warn("complaint enrichment failed", "complaint_id", complaint.ID, "error", err)
	} else {
		complaint = enriched
	}

	if _, err := s.Acknowledge(ctx, complaint); err != nil && !errors.Is(err, ErrNotificationQueued) {
		logger.Warn("complaint acknowledgement failed", "complaint_id", complaint.ID, "error", err)
	}

	return &InboundResult{Message: inbound, Complaint: complaint}, nil
}

func (s *TriageService) appendConversationMessage(ctx context.Context, contact *model.Contact, text string) (*model.Message, error) {
	conv, err := s.conversationRepo.GetOpenByContact(ctx, contact.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrConversationNotFound) {
			return nil, err
		}
		conv, err = s.conversationRepo.Create(ctx, &model.Conversation{
			ContactID:    contact.ID,
			ContactName:  contact.Name,
			ContactPhone: contact.Phone,
			Status:       model.ConversationStatusOpen,
			Priority:     model.PriorityMedium,
		})
		if err != nil {
			return nil, fmt.Errorf("create conversation: %w", err)
		}
	}

	now := time.Now().UTC()
	msg, err := s.messageRepo.Append(ctx, &model.Message{
		ThreadType: model.ThreadConversation,
		ThreadID:   conv.ID,
		Direction:  model.DirectionInbound,
		Type:       model.MessageTypeText,
		Text:       text,
		Status:     model.MessageStatusDelivered,
		Timestamp:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if err := s.conversationRepo.TouchLastMessage(ctx, conv.ID, Summarize(text), now); err != nil {
		logger.Warn("failed to update conversation preview", "conversation_id", conv.ID, "error", err)
	}

	return msg, nil
}

// CreateComplaint allocates a complaint number and persists the record.
// Allocation is collision-checked with a bounded retry; creation either
// fully succeeds or fails visibly.
func (s *TriageService) CreateComplaint(ctx context.Context, contact *model.Contact, text string) (*model.Complaint, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	var lastErr error
	for attempt := 0; attempt < allocationAttempts; attempt++ {
		number := fmt.Sprintf("CR-%04d", rand.Intn(10000))

		exists, err := s.complaintRepo.ExistsByNumber(ctx, number)
		if err != nil {
			return nil, fmt.Errorf("check complaint number: %w", err)
		}
		if exists {
			lastErr = repository.ErrDuplicateComplaintNumber
			continue
		}

		created, err := s.complaintRepo.Create(ctx, &model.Complaint{
			ComplaintNumber: number,
			ContactID:       contact.ID,
			ContactName:     contact.Name,
			ContactPhone:    contact.Phone,
			Category:        defaultComplaintCategory,
			Summary:         Summarize(text),
			Details:         text,
			Status:          model.ComplaintStatusPending,
		})
		if err != nil {
			// A concurrent allocation can win the number between the
			// existence check and the insert.
			if errors.Is(err, repository.ErrDuplicateComplaintNumber) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("create complaint: %w", err)
		}

		logger.Info("complaint created", "complaint_id", created.ID, "complaint_number", created.ComplaintNumber, "contact_id", contact.ID)
		return created, nil
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrAllocationExhausted, allocationAttempts, lastErr)
}

// Enrich attaches AI analysis to the complaint. The analyzer degrades
// to the fallback object on its own, so every successful Enrich leaves
// a non-nil analysis behind. Last write wins on repeated calls.
func (s *TriageService) Enrich(ctx context.Context, complaintID int64) (*model.Complaint, error) {
	complaint, err := s.complaintRepo.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, repository.ErrComplaintNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	analysis, genuine := s.analyzer.AnalyzeComplaint(ctx, complaint.Details, complaint.ContactName)
	if !genuine {
		logger.Warn("storing fallback analysis", "complaint_id", complaintID)
	}

	updated, err := s.complaintRepo.Update(ctx, complaintID, model.ComplaintUpdate{AIAnalysis: analysis})
	if err != nil {
		if errors.Is(err, repository.ErrComplaintNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store analysis: %w", err)
	}
	return updated, nil
}

// Reanalyze re-runs enrichment on operator demand.
func (s *TriageService) Reanalyze(ctx context.Context, complaintID int64) (*model.Complaint, error) {
	return s.Enrich(ctx, complaintID)
}

// Acknowledge appends the templated apology to the complaint thread and
// queues it for delivery. A publish failure returns the message with
// ErrNotificationQueued: the local append already succeeded.
func (s *TriageService) Acknowledge(ctx context.Context, complaint *model.Complaint) (*model.Message, error) {
	body := fmt.Sprintf(
		"عزيزنا %s، نعتذر عن التجربة غير المرضية. تم تسجيل شكواك برقم %s وسيتواصل معك فريقنا في أقرب وقت.",
		complaint.ContactName, complaint.ComplaintNumber,
	)
	return s.sendOutbound(ctx, complaint, body)
}

// AppendReply appends an agent reply to the complaint thread and queues
// it for delivery. Same non-fatal publish contract as Acknowledge.
func (s *TriageService) AppendReply(ctx context.Context, complaintID int64, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	complaint, err := s.complaintRepo.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, repository.ErrComplaintNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.sendOutbound(ctx, complaint, text)
}

func (s *TriageService) sendOutbound(ctx context.Context, complaint *model.Complaint, body string) (*model.Message, error) {
	msg, err := s.messageRepo.Append(ctx, &model.Message{
		ThreadType: model.ThreadComplaint,
		ThreadID:   complaint.ID,
		Direction:  model.DirectionOutbound,
		Type:       model.MessageTypeText,
		Text:       body,
		Status:     model.MessageStatusQueued,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("append outbound message: %w", err)
	}

	_, err = s.publisher.Publish(ctx, model.OutboundNotification{
		MessageID: msg.ID,
		Phone:     complaint.ContactPhone,
		Body:      body,
	}, map[string]string{"thread": string(model.ThreadComplaint)})
	if err != nil {
		logger.Warn("failed to queue outbound notification", "message_id", msg.ID, "error", err)
		return msg, ErrNotificationQueued
	}

	return msg, nil
}

// Resolve transitions the complaint to RESOLVED. Idempotent on already
// terminal complaints.
func (s *TriageService) Resolve(ctx context.Context, complaintID int64) (*model.Complaint, error) {
	complaint, err := s.complaintRepo.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, repository.ErrComplaintNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if complaint.Status.Terminal() {
		return complaint, nil
	}

	status := model.ComplaintStatusResolved
	updated, err := s.complaintRepo.Update(ctx, complaintID, model.ComplaintUpdate{Status: &status})
	if err != nil {
		if errors.Is(err, repository.ErrComplaintNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

// Start marks the complaint as being worked on. PENDING only; calling
// it again while IN_PROGRESS is a no-op.
func (s *TriageService) Start(ctx context.Context, complaintID int64) (*model.Complaint, error) {
	complaint, err := s.complaintRepo.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, repository.ErrComplaintNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	switch complaint.Status {
	case model.ComplaintStatusInProgress:
		return complaint, nil
	case model.ComplaintStatusPending:
	default:
		return nil, ErrInvalidTransition
	}

	status := model.ComplaintStatusInProgress
	updated, err := s.complaintRepo.Update(ctx, complaintID, model.ComplaintUpdate{Status: &status})
	if err != nil {
		if errors.Is(err, repository.ErrComplaintNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return updated, nil
}

func (s *TriageService) Get(ctx context.Context, complaintID int64) (*model.Complaint, error) {
	complaint, err := s.complaintRepo.GetByID(ctx, complaintID)
	if err != nil {
		if errors.Is(err, repository.ErrComplaintNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	messages, _, err := s.messageRepo.ListByThread(ctx, model.MessageFilter{
		ThreadType: model.ThreadComplaint,
		ThreadID:   complaintID,
	})
	if err != nil {
		return nil, err
	}
	complaint.Messages = messages

	return complaint, nil
}

func (s *TriageService) List(ctx context.Context, f model.ComplaintFilter) ([]*model.Complaint, int64, error) {
	return s.complaintRepo.List(ctx, f)
}
