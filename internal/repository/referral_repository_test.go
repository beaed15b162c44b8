package repository

import (
	"context"
	"testing"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferralRepository_CreateIfAbsent(t *testing.T) {
	db := OpenTestDB(t)
	repo := NewReferralRepository(db)
	ctx := context.Background()

	ref := &model.Referral{ReferrerID: 1, ReferredUserID: 2, FormID: 3, RewardAmount: 50, RewardStatus: model.RewardStatusPending}

	first, created, err := repo.CreateIfAbsent(ctx, ref)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.ID)

	second, created, err := repo.CreateIfAbsent(ctx, ref)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	t.Run("different form is a new triple", func(t *testing.T) {
		other := *ref
		other.FormID = 4
		got, created, err := repo.CreateIfAbsent(ctx, &other)
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEqual(t, first.ID, got.ID)
	})
}

func TestReferralRepository_MarkRewarded(t *testing.T) {
	db := OpenTestDB(t)
	repo := NewReferralRepository(db)
	ctx := context.Background()

	ref, _, err := repo.CreateIfAbsent(ctx, &model.Referral{ReferrerID: 1, ReferredUserID: 2, FormID: 3, RewardAmount: 50, RewardStatus: model.RewardStatusPending})
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.MarkRewarded(ctx, ref.ID, 30, now))

	got, err := repo.FindByTriple(ctx, 1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, model.RewardStatusPaid, got.RewardStatus)
	assert.Equal(t, int64(30), got.RewardAmount)
	require.NotNil(t, got.RewardDate)

	t.Run("second transition is refused", func(t *testing.T) {
		assert.ErrorIs(t, repo.MarkRewarded(ctx, ref.ID, 30, now), ErrReferralNotFound)
	})
}

func TestReferralRepository_PayoutLifecycle(t *testing.T) {
	db := OpenTestDB(t)
	repo := NewReferralRepository(db)
	ctx := context.Background()

	for form := int64(1); form <= 3; form++ {
		_, _, err := repo.CreateIfAbsent(ctx, &model.Referral{ReferrerID: 1, ReferredUserID: 10 + form, FormID: form, RewardAmount: 50, RewardStatus: model.RewardStatusPaid})
		require.NoError(t, err)
	}
	_, _, err := repo.CreateIfAbsent(ctx, &model.Referral{ReferrerID: 1, ReferredUserID: 20, FormID: 9, RewardAmount: 50, RewardStatus: model.RewardStatusPending})
	require.NoError(t, err)

	payable, err := repo.ListPayable(ctx, 1)
	require.NoError(t, err)
	require.Len(t, payable, 3)

	ids := []int64{payable[0].ID, payable[1].ID, payable[2].ID}
	require.NoError(t, repo.AttachPayout(ctx, ids, 77))

	payable, err = repo.ListPayable(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, payable)

	require.NoError(t, repo.SetPayoutStatus(ctx, 77, model.PayoutStatusApproved))
	covered, err := repo.ListByPayout(ctx, 77)
	require.NoError(t, err)
	require.Len(t, covered, 3)
	for _, r := range covered {
		assert.Equal(t, model.PayoutStatusApproved, r.PayoutStatus)
	}

	require.NoError(t, repo.SetPayoutStatus(ctx, 77, model.PayoutStatusRejected))
	payable, err = repo.ListPayable(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, payable, 3)
	for _, r := range payable {
		assert.Nil(t, r.PayoutID)
	}

	paid := model.RewardStatusPaid
	list, total, err := repo.ListByReferrer(ctx, 1, model.ReferralFilter{RewardStatus: &paid})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, list, 3)
}
