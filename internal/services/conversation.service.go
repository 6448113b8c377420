package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/internal/repository"
	"github.com/arcrm/engage/pkg/logger"
)

// ConversationService exposes the ordinary inbox threads and lets an
// agent reply into them.
type ConversationService struct {
	conversationRepo ConversationRepository
	messageRepo      MessageRepository
	publisher        NotificationPublisher
}

func NewConversationService(conversationRepo ConversationRepository, messageRepo MessageRepository, publisher NotificationPublisher) *ConversationService {
	return &ConversationService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		publisher:        publisher,
	}
}

func (s *ConversationService) Get(ctx context.Context, id int64) (*model.Conversation, error) {
	conv, err := s.conversationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrConversationNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) List(ctx context.Context, f model.ConversationFilter) ([]*model.Conversation, int64, error) {
	return s.conversationRepo.List(ctx, f)
}

func (s *ConversationService) Messages(ctx context.Context, conversationID int64, f model.MessageFilter) ([]*model.Message, int64, error) {
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, 0, err
	}
	f.ThreadType = model.ThreadConversation
	f.ThreadID = conversationID
	return s.messageRepo.ListByThread(ctx, f)
}

// Reply appends an agent message to the conversation and queues it for
// delivery. A publish failure returns ErrNotificationQueued; the local
// append survives.
func (s *ConversationService) Reply(ctx context.Context, conversationID int64, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	conv, err := s.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	msg, err := s.messageRepo.Append(ctx, &model.Message{
		ThreadType: model.ThreadConversation,
		ThreadID:   conv.ID,
		Direction:  model.DirectionOutbound,
		Type:       model.MessageTypeText,
		Text:       text,
		Status:     model.MessageStatusQueued,
		Timestamp:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	if err := s.conversationRepo.TouchLastMessage(ctx, conv.ID, Summarize(text), now); err != nil {
		logger.Warn("failed to update conversation preview", "conversation_id", conv.ID, "error", err)
	}

	_, err = s.publisher.Publish(ctx, model.OutboundNotification{
		MessageID: msg.ID,
		Phone:     conv.ContactPhone,
		Body:      text,
	}, map[string]string{"thread": string(model.ThreadConversation)})
	if err != nil {
		logger.Warn("failed to queue outbound notification", "message_id", msg.ID, "error", err)
		return msg, ErrNotificationQueued
	}

	return msg, nil
}
