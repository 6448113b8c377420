package model

import (
	"errors"
	"time"
)

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "INBOUND"
	DirectionOutbound MessageDirection = "OUTBOUND"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeImage MessageType = "image"
	MessageTypeFile  MessageType = "file"
	MessageTypeAudio MessageType = "audio"
)

// MessageStatus is the delivery state of a message. Only outbound messages
// move past "queued"; inbound messages are stored as "delivered".
type MessageStatus string

const (
	MessageStatusQueued    MessageStatus = "queued"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusFailed    MessageStatus = "failed"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
)

// ThreadType tells which record a message belongs to.
type ThreadType string

const (
	ThreadConversation ThreadType = "conversation"
	ThreadComplaint    ThreadType = "complaint"
)

// Message is an entry in a conversation or complaint thread. Append-only:
// once created only Status changes, driven by delivery acknowledgements.
type Message struct {
	ID         int64            `json:"id"`
	ThreadType ThreadType       `json:"thread_type"`
	ThreadID   int64            `json:"thread_id"`
	Direction  MessageDirection `json:"direction"`
	Type       MessageType      `json:"type"`
	Text       string           `json:"text,omitempty"`
	MediaRef   string           `json:"media_ref,omitempty"`
	Status     MessageStatus    `json:"status"`
	Timestamp  time.Time        `json:"timestamp"`
}

func (Message) TableName() string { return "messages" }

// MessageFilter controls per-thread listing. Ordering is always by
// timestamp ascending within a thread.
type MessageFilter struct {
	ThreadType ThreadType
	ThreadID   int64
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// OutboundNotification is the payload queued for the dispatcher. The local
// message row already exists; the dispatcher only delivers and reports back.
type OutboundNotification struct {
	MessageID int64  `json:"message_id"`
	Phone     string `json:"phone"`
	Body      string `json:"body"`
	MediaRef  string `json:"media_ref,omitempty"`
}

func (n OutboundNotification) Validate() error {
	if n.MessageID == 0 {
		return errors.New("message_id is required")
	}
	if n.Phone == "" {
		return errors.New("phone is required")
	}
	if n.Body == "" && n.MediaRef == "" {
		return errors.New("body or media_ref is required")
	}
	return nil
}
