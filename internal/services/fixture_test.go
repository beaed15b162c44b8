package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/internal/repository"
	"github.com/nimasrn/dv-referral-ledger/pkg/pg"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db        *pg.DB
	users     *repository.UserRepository
	forms     *repository.FormRepository
	referrals *repository.ReferralRepository
	ledger    *repository.LedgerRepository
	payouts   *repository.PayoutRepository
	outbox    *repository.OutboxRepository

	referral *ReferralService
	seq      atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repository.OpenTestDB(t)
	f := &fixture{
		db:        db,
		users:     repository.NewUserRepository(db),
		forms:     repository.NewFormRepository(db),
		referrals: repository.NewReferralRepository(db),
		ledger:    repository.NewLedgerRepository(db),
		payouts:   repository.NewPayoutRepository(db),
		outbox:    repository.NewOutboxRepository(db),
	}
	f.referral = NewReferralService(db, f.users, f.referrals, f.forms, f.ledger)
	return f
}

// user seeds a user with a deterministic referral code and an optional
// referrer and starting balance.
func (f *fixture) user(t *testing.T, referredBy string, earnings int64) *model.User {
	t.Helper()
	n := f.seq.Add(1)
	e := &repository.UserEntity{
		FullName:         fmt.Sprintf("User %d", n),
		Phone:            fmt.Sprintf("+2519%08d", n),
		ReferralCode:     seedCode(n),
		ReferralEarnings: earnings,
	}
	if referredBy != "" {
		e.ReferredBy = &referredBy
	}
	repository.SeedUser(t, f.db, e)
	u, err := f.users.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	return u
}

func (f *fixture) form(t *testing.T, userID *int64) *model.Form {
	t.Helper()
	n := f.seq.Add(1)
	form, err := f.forms.Create(context.Background(), &model.Form{
		UserID:        userID,
		TrackingID:    fmt.Sprintf("DV-T%09d", n),
		ApplicantName: "Applicant",
		Status:        model.FormStatusSubmitted,
		PaymentStatus: model.PaymentStatusUnpaid,
	})
	require.NoError(t, err)
	return form
}

// verifiedForm creates a form whose payment is already verified.
func (f *fixture) verifiedForm(t *testing.T, userID *int64) *model.Form {
	t.Helper()
	form := f.form(t, userID)
	now := time.Now().UTC()
	form.PaymentStatus = model.PaymentStatusVerified
	form.PaymentReference = fmt.Sprintf("FT%08d", form.ID)
	form.PaymentAmount = 500
	form.PaymentDate = &now
	form.PaymentVerifiedAt = &now
	require.NoError(t, f.forms.UpdatePayment(context.Background(), form))
	return form
}

func (f *fixture) balance(t *testing.T, userID int64) int64 {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return u.ReferralEarnings
}

// requireLedgerConsistent checks the cached balance against the ledger sum.
func (f *fixture) requireLedgerConsistent(t *testing.T) {
	t.Helper()
	drift, err := f.ledger.FindDrift(context.Background())
	require.NoError(t, err)
	require.Empty(t, drift)
}

// seedCode spells n in the referral code alphabet, prefixed with Z.
func seedCode(n int64) string {
	a := model.ReferralCodeAlphabet
	b := []byte("ZAAAAA")
	for i := len(b) - 1; i > 0 && n > 0; i-- {
		b[i] = a[n%int64(len(a))]
		n /= int64(len(a))
	}
	return string(b)
}

func ptr[T any](v T) *T { return &v }
