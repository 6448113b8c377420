package repository

import (
	"context"
	"testing"
	"time"

	"github.com/arcrm/engage/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageRepository_AppendAndListByThread(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db.DB)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	texts := []string{"أهلاً", "نعتذر عن التأخير", "تم حل المشكلة"}
	for i, text := range texts {
		_, err := repo.Append(ctx, &model.Message{
			ThreadType: model.ThreadComplaint,
			ThreadID:   1,
			Direction:  model.DirectionOutbound,
			Type:       model.MessageTypeText,
			Text:       text,
			Status:     model.MessageStatusQueued,
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	// A message on another thread must not leak in.
	_, err := repo.Append(ctx, &model.Message{
		ThreadType: model.ThreadConversation,
		ThreadID:   1,
		Direction:  model.DirectionInbound,
		Type:       model.MessageTypeText,
		Text:       "رسالة عادية",
		Status:     model.MessageStatusDelivered,
		Timestamp:  base,
	})
	require.NoError(t, err)

	items, total, err := repo.ListByThread(ctx, model.MessageFilter{
		ThreadType: model.ThreadComplaint,
		ThreadID:   1,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, items, 3)
	for i, m := range items {
		assert.Equal(t, texts[i], m.Text)
	}
	// Timestamp ascending within the thread.
	assert.True(t, items[0].Timestamp.Before(items[2].Timestamp))
}

func TestMessageRepository_UpdateStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db.DB)
	ctx := context.Background()

	msg, err := repo.Append(ctx, &model.Message{
		ThreadType: model.ThreadComplaint,
		ThreadID:   7,
		Direction:  model.DirectionOutbound,
		Type:       model.MessageTypeText,
		Text:       "رد تجريبي",
		Status:     model.MessageStatusQueued,
		Timestamp:  time.Now().UTC(),
	})
	require.NoError(t, err)

	err = repo.UpdateStatus(ctx, msg.ID, model.MessageStatusSent)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MessageStatusSent, got.Status)
}

func TestMessageRepository_UpdateStatus_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMessageRepository(db.DB)

	err := repo.UpdateStatus(context.Background(), 424242, model.MessageStatusFailed)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}
