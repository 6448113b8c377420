package fixtures

import (
	"time"

	"github.com/arcrm/engage/internal/model"
)

var (
	TestContact1 = model.Contact{
		ID:    1,
		Name:  "محمد أحمد",
		Phone: "966501234567",
	}

	TestContact2 = model.Contact{
		ID:    2,
		Name:  "سارة خالد",
		Phone: "966507654321",
		Tags:  []string{"vip"},
	}
)

// ComplaintTexts trigger the keyword classifier.
var ComplaintTexts = []string{
	"الخدمة سيئة جداً وتأخرتم في الرد",
	"لدي شكوى على الفاتورة الأخيرة",
	"الطلب لم يصل حتى الآن",
	"أريد إلغاء الاشتراك بسبب التأخير",
}

// OrdinaryTexts must not trigger the classifier.
var OrdinaryTexts = []string{
	"متى موعد التسليم؟",
	"شكراً جزيلاً على المتابعة",
	"هل يمكن تغيير العنوان؟",
	"أريد الاستفسار عن الباقات المتاحة",
}

func NewTestComplaint(contactID int64, number, details string) *model.Complaint {
	return &model.Complaint{
		ComplaintNumber: number,
		ContactID:       contactID,
		ContactName:     TestContact1.Name,
		ContactPhone:    TestContact1.Phone,
		Category:        "شكوى عامة",
		Summary:         details,
		Details:         details,
		Status:          model.ComplaintStatusPending,
	}
}

func NewTestMessage(threadType model.ThreadType, threadID int64, direction model.MessageDirection, text string) *model.Message {
	return &model.Message{
		ThreadType: threadType,
		ThreadID:   threadID,
		Direction:  direction,
		Type:       model.MessageTypeText,
		Text:       text,
		Status:     model.MessageStatusDelivered,
		Timestamp:  time.Now(),
	}
}

func NewTestEvaluationCreateRequest(rating int, comment string) model.EvaluationCreateRequest {
	return model.EvaluationCreateRequest{
		ContactName:  TestContact1.Name,
		ContactPhone: TestContact1.Phone,
		Rating:       rating,
		Comment:      comment,
		Category:     "جودة الخدمة",
	}
}

func NewTestNotification(messageID int64, phone, body string) model.OutboundNotification {
	return model.OutboundNotification{
		MessageID: messageID,
		Phone:     phone,
		Body:      body,
	}
}

func ComplaintFilterByStatus(status model.ComplaintStatus) model.ComplaintFilter {
	return model.ComplaintFilter{
		Status: &status,
		Limit:  50,
		Offset: 0,
	}
}

func MessageFilterByThread(threadType model.ThreadType, threadID int64) model.MessageFilter {
	return model.MessageFilter{
		ThreadType: threadType,
		ThreadID:   threadID,
		Limit:      50,
		Offset:     0,
	}
}

func MessageFilterByTimeRange(threadType model.ThreadType, threadID int64, from, to time.Time) model.MessageFilter {
	return model.MessageFilter{
		ThreadType: threadType,
		ThreadID:   threadID,
		From:       &from,
		To:         &to,
		Limit:      50,
		Offset:     0,
	}
}
