package repository

import (
	"context"
	"testing"
	"time"

	"github.com/arcrm/engage/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestComplaint(number string) *model.Complaint {
	return &model.Complaint{
		ComplaintNumber: number,
		ContactID:       1,
		ContactName:     "محمد عبد الله",
		ContactPhone:    "966500000001",
		Category:        "شكوى عامة",
		Summary:         "الخدمة سيئة",
		Details:         "الخدمة سيئة جداً وتأخرتم في الرد",
		Status:          model.ComplaintStatusPending,
	}
}

func TestComplaintRepository_Create(t *testing.T) {
	db := setupTestDB(t)
	repo := NewComplaintRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestComplaint("CR-1234"))
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "CR-1234", created.ComplaintNumber)
	assert.Equal(t, model.ComplaintStatusPending, created.Status)
	assert.Equal(t, "الخدمة سيئة جداً وتأخرتم في الرد", created.Details)
}

func TestComplaintRepository_Create_DuplicateNumber(t *testing.T) {
	db := setupTestDB(t)
	repo := NewComplaintRepository(db.DB)
	ctx := context.Background()

	_, err := repo.Create(ctx, newTestComplaint("CR-0001"))
	require.NoError(t, err)

	_, err = repo.Create(ctx, newTestComplaint("CR-0001"))
	assert.ErrorIs(t, err, ErrDuplicateComplaintNumber)
}

func TestComplaintRepository_ExistsByNumber(t *testing.T) {
	db := setupTestDB(t)
	repo := NewComplaintRepository(db.DB)
	ctx := context.Background()

	_, err := repo.Create(ctx, newTestComplaint("CR-4242"))
	require.NoError(t, err)

	exists, err := repo.ExistsByNumber(ctx, "CR-4242")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByNumber(ctx, "CR-9999")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestComplaintRepository_Update_AnalysisRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewComplaintRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestComplaint("CR-5555"))
	require.NoError(t, err)
	require.Nil(t, created.AIAnalysis)

	analysis := &model.ComplaintAnalysis{
		RootCause:          "تأخر في الاستجابة",
		CustomerSentiment:  "غاضب",
		SuggestedSolutions: []string{"اعتذار فوري", "متابعة الطلب"},
	}
	updated, err := repo.Update(ctx, created.ID, model.ComplaintUpdate{AIAnalysis: analysis})
	require.NoError(t, err)
	require.NotNil(t, updated.AIAnalysis)
	assert.Equal(t, analysis.RootCause, updated.AIAnalysis.RootCause)
	assert.Equal(t, analysis.SuggestedSolutions, updated.AIAnalysis.SuggestedSolutions)
}

func TestComplaintRepository_Update_BumpsUpdatedAt(t *testing.T) {
	db := setupTestDB(t)
	repo := NewComplaintRepository(db.DB)
	ctx := context.Background()

	created, err := repo.Create(ctx, newTestComplaint("CR-7777"))
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	updated, err := repo.Update(ctx, created.ID, model.ComplaintUpdate{})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestComplaintRepository_Update_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewComplaintRepository(db.DB)
	ctx := context.Background()

	status := model.ComplaintStatusResolved
	_, err := repo.Update(ctx, 98765, model.ComplaintUpdate{Status: &status})
	assert.ErrorIs(t, err, ErrComplaintNotFound)
}

func TestComplaintRepository_List_FilterByStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewComplaintRepository(db.DB)
	ctx := context.Background()

	_, err := repo.Create(ctx, newTestComplaint("CR-0010"))
	require.NoError(t, err)
	second, err := repo.Create(ctx, newTestComplaint("CR-0011"))
	require.NoError(t, err)

	resolved := model.ComplaintStatusResolved
	_, err = repo.Update(ctx, second.ID, model.ComplaintUpdate{Status: &resolved})
	require.NoError(t, err)

	pending := model.ComplaintStatusPending
	items, total, err := repo.List(ctx, model.ComplaintFilter{Status: &pending})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "CR-0010", items[0].ComplaintNumber)
}
