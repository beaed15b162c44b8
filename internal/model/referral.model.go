package model

import "time"

type RewardStatus string

const (
	RewardStatusPending RewardStatus = "pending"
	RewardStatusPaid    RewardStatus = "paid"
)

// PayoutStatus is shared by payouts and by the referrals they cover. The
// empty value means the referral was never requested for cash-out.
type PayoutStatus string

const (
	PayoutStatusNone      PayoutStatus = ""
	PayoutStatusRequested PayoutStatus = "requested"
	PayoutStatusApproved  PayoutStatus = "approved"
	PayoutStatusPaid      PayoutStatus = "paid"
	PayoutStatusRejected  PayoutStatus = "rejected"

	// PayoutStatusReversed only applies to payouts: a paid payout that the
	// bank bounced and whose amount went back to the balance.
	PayoutStatusReversed PayoutStatus = "reversed"
)

type Referral struct {
	ID             int64        `json:"id"`
	ReferrerID     int64        `json:"referrer_id"`
	ReferredUserID int64        `json:"referred_user_id"`
	FormID         int64        `json:"form_id"`
	RewardAmount   int64        `json:"reward_amount"`
	RewardStatus   RewardStatus `json:"reward_status"`
	RewardDate     *time.Time   `json:"reward_date,omitempty"`
	PayoutStatus   PayoutStatus `json:"payout_status"`
	PayoutID       *int64       `json:"payout_id,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// ReferralResult reports a non-error outcome of reward processing or
// pending referral creation.
type ReferralResult struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Referral *Referral `json:"referral,omitempty"`
}

const (
	MsgNoReferral             = "No referral to process"
	MsgEarningsLimit          = "Referrer has reached earnings limit"
	MsgRewardProcessed        = "Referral reward processed"
	MsgAlreadyRewarded        = "Referral already rewarded"
	MsgCapExhausted           = "Referral reward cap exhausted"
	MsgInvalidCode            = "Invalid referral code"
	MsgSelfReferral           = "Self referral is not allowed"
	MsgPendingCreated         = "Pending referral created"
	MsgReferralAlreadyPending = "Referral already pending"
)

type ReferralFilter struct {
	RewardStatus *RewardStatus
	PayoutStatus *PayoutStatus
	Limit        int
	Offset       int
}
