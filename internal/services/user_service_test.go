package services

import (
	"context"
	"testing"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserService(f *fixture) *UserService {
	return NewUserService(f.db, f.users, f.forms, f.referral, f.ledger)
}

func TestUserService_Register(t *testing.T) {
	f := newFixture(t)
	svc := newUserService(f)
	ctx := context.Background()

	res, err := svc.Register(ctx, model.RegisterRequest{FullName: "Hana Tesfaye", Phone: "+251911000001"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, res.User.Role)
	assert.Len(t, res.User.ReferralCode, model.ReferralCodeLength)
	assert.Nil(t, res.User.ReferredBy)
	assert.Nil(t, res.Referral)

	t.Run("phone taken", func(t *testing.T) {
		_, err := svc.Register(ctx, model.RegisterRequest{FullName: "Other", Phone: "+251911000001"})
		assert.ErrorIs(t, err, ErrPhoneTaken)
	})

	t.Run("unknown referral code", func(t *testing.T) {
		_, err := svc.Register(ctx, model.RegisterRequest{FullName: "Other", Phone: "+251911000002", ReferralCode: "ZZZZZZ"})
		assert.ErrorIs(t, err, ErrInvalidReferralCode)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := svc.Register(ctx, model.RegisterRequest{FullName: "X", Phone: "0911"})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("referral code sets referred_by", func(t *testing.T) {
		got, err := svc.Register(ctx, model.RegisterRequest{FullName: "Referred", Phone: "+251911000003", ReferralCode: res.User.ReferralCode})
		require.NoError(t, err)
		require.NotNil(t, got.User.ReferredBy)
		assert.Equal(t, res.User.ReferralCode, *got.User.ReferredBy)
		assert.Nil(t, got.Referral)
	})

	t.Run("referral code collision is retried", func(t *testing.T) {
		codes := []string{res.User.ReferralCode, "QQQQQQ"}
		svc.newCode = func() (string, error) {
			c := codes[0]
			codes = codes[1:]
			return c, nil
		}
		defer func() { svc.newCode = generateReferralCode }()

		got, err := svc.Register(ctx, model.RegisterRequest{FullName: "Collider", Phone: "+251911000004"})
		require.NoError(t, err)
		assert.Equal(t, "QQQQQQ", got.User.ReferralCode)
	})
}

func TestUserService_RegisterWithForm(t *testing.T) {
	f := newFixture(t)
	svc := newUserService(f)
	ctx := context.Background()

	referrer := f.user(t, "", 0)
	form := f.form(t, nil)

	res, err := svc.Register(ctx, model.RegisterRequest{
		FullName:     "Applicant",
		Phone:        "+251911000010",
		ReferralCode: referrer.ReferralCode,
		FormID:       &form.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Referral)
	assert.True(t, res.Referral.Success)
	assert.Equal(t, model.MsgPendingCreated, res.Referral.Message)
	assert.Equal(t, res.User.ID, res.Referral.Referral.ReferredUserID)

	got, err := f.forms.GetByID(ctx, form.ID)
	require.NoError(t, err)
	require.NotNil(t, got.UserID)
	assert.Equal(t, res.User.ID, *got.UserID)

	t.Run("form already claimed", func(t *testing.T) {
		_, err := svc.Register(ctx, model.RegisterRequest{FullName: "Late", Phone: "+251911000011", FormID: &form.ID})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown form", func(t *testing.T) {
		_, err := svc.Register(ctx, model.RegisterRequest{FullName: "Late", Phone: "+251911000012", FormID: ptr(int64(999))})
		assert.ErrorIs(t, err, ErrFormNotFound)
	})

	t.Run("referrer at cap still registers", func(t *testing.T) {
		capped := f.user(t, "", model.MaxReferralEarnings)
		other := f.form(t, nil)
		res, err := svc.Register(ctx, model.RegisterRequest{
			FullName:     "Capped Referral",
			Phone:        "+251911000013",
			ReferralCode: capped.ReferralCode,
			FormID:       &other.ID,
		})
		require.NoError(t, err)
		require.NotNil(t, res.Referral)
		assert.False(t, res.Referral.Success)
		assert.Equal(t, model.MsgEarningsLimit, res.Referral.Message)
	})
}

func TestUserService_GetEarnings(t *testing.T) {
	f := newFixture(t)
	svc := newUserService(f)
	ctx := context.Background()

	referrer := f.user(t, "", 0)
	for i := 0; i < 2; i++ {
		referred := f.user(t, referrer.ReferralCode, 0)
		_, err := f.referral.ProcessReferralReward(ctx, f.verifiedForm(t, &referred.ID).ID)
		require.NoError(t, err)
	}

	e, err := svc.GetEarnings(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), e.ReferralEarnings)
	assert.Equal(t, 2, e.TotalReferrals)
	assert.Equal(t, model.MaxReferralEarnings-100, e.Remaining)
	assert.Len(t, e.Entries, 2)

	_, err = svc.GetEarnings(ctx, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
