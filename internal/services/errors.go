package services

import "errors"

var (
	ErrValidation          = errors.New("validation failed")
	ErrFormNotFound        = errors.New("form not found")
	ErrReferrerNotFound    = errors.New("referrer not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrPhoneTaken          = errors.New("phone number already registered")

	ErrInvalidPaymentState = errors.New("payment is not awaiting verification")
	ErrReceiptRejected     = errors.New("receipt rejected")

	ErrPayoutNotFound          = errors.New("payout not found")
	ErrInvalidPayoutTransition = errors.New("invalid payout status transition")
	ErrNothingToPayout         = errors.New("no rewarded referrals available for payout")
	ErrPayoutInProgress        = errors.New("user already has an open payout")
	ErrInsufficientBalance     = errors.New("insufficient referral balance")
	ErrEarningsCapExceeded     = errors.New("referral earnings cap exceeded")

	ErrCodeGeneration = errors.New("could not generate a unique code")
)
