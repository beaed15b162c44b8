package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayoutRepository(t *testing.T) {
	db := OpenTestDB(t)
	repo := NewPayoutRepository(db)
	ctx := context.Background()

	p, err := repo.Create(ctx, &model.Payout{UserID: 1, Amount: 150, Status: model.PayoutStatusRequested})
	require.NoError(t, err)

	open, err := repo.HasOpen(ctx, 1)
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, repo.UpdateStatus(ctx, p.ID, model.PayoutStatusRequested, model.PayoutStatusApproved, "", time.Now()))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, p.ID, model.PayoutStatusRequested, model.PayoutStatusApproved, "", time.Now()), ErrPayoutNotFound)

	require.NoError(t, repo.UpdateStatus(ctx, p.ID, model.PayoutStatusApproved, model.PayoutStatusPaid, "sent via telebirr", time.Now()))
	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PayoutStatusPaid, got.Status)
	assert.NotNil(t, got.ReviewedAt)
	assert.NotNil(t, got.PaidAt)
	assert.Equal(t, "sent via telebirr", got.Note)

	open, err = repo.HasOpen(ctx, 1)
	require.NoError(t, err)
	assert.False(t, open)

	list, total, err := repo.List(ctx, model.PayoutFilter{Statuses: []model.PayoutStatus{model.PayoutStatusPaid}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, list, 1)

	_, err = repo.GetByID(ctx, 404)
	assert.ErrorIs(t, err, ErrPayoutNotFound)
}
