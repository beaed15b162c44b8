package processor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDriftFinder struct {
	mock.Mock
}

func (m *MockDriftFinder) FindDrift(ctx context.Context) ([]*model.Drift, error) {
	args := m.Called(ctx)
	d, _ := args.Get(0).([]*model.Drift)
	return d, args.Error(1)
}

func TestLedgerReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()
	db := repository.OpenTestDB(t)
	ledger := repository.NewLedgerRepository(db)

	consistent := repository.SeedUser(t, db, &repository.UserEntity{FullName: "A", Phone: "+100", ReferralCode: "ZAAAAB", ReferralEarnings: 100})
	drifted := repository.SeedUser(t, db, &repository.UserEntity{FullName: "B", Phone: "+101", ReferralCode: "ZAAAAC", ReferralEarnings: 50})
	require.NoError(t, db.Write(ctx).Model(&repository.UserEntity{}).
		Where("id = ?", drifted.ID).Update("referral_earnings", 80).Error)

	r := NewLedgerReconciler(ledger, "")
	drift, err := r.Reconcile(ctx)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, drifted.ID, drift[0].UserID)
	assert.Equal(t, int64(80), drift[0].Cached)
	assert.Equal(t, int64(50), drift[0].LedgerSum)
	assert.NotEqual(t, consistent.ID, drift[0].UserID)

	var cached int64
	require.NoError(t, db.Read(ctx).Model(&repository.UserEntity{}).
		Where("id = ?", drifted.ID).Pluck("referral_earnings", &cached).Error)
	assert.Equal(t, int64(80), cached, "reconcile must not repair balances")
}

func TestLedgerReconciler_Schedule(t *testing.T) {
	t.Run("invalid schedule is rejected", func(t *testing.T) {
		r := NewLedgerReconciler(&MockDriftFinder{}, "every now and then")
		assert.Error(t, r.Start(context.Background()))
	})

	t.Run("runs on schedule until stopped", func(t *testing.T) {
		var runs atomic.Int32
		finder := &MockDriftFinder{}
		finder.On("FindDrift", mock.Anything).Return([]*model.Drift{}, nil).
			Run(func(mock.Arguments) { runs.Add(1) })

		r := NewLedgerReconciler(finder, "@every 1s")
		require.NoError(t, r.Start(context.Background()))

		assert.Eventually(t, func() bool {
			return runs.Load() > 0
		}, 3*time.Second, 50*time.Millisecond)
		r.Stop()
	})
}
