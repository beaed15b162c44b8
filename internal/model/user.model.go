package model

import "time"

const (
	// MaxReferralEarnings is the hard ceiling on a referrer's balance, in ETB.
	MaxReferralEarnings int64 = 10000
	// ReferralRewardAmount is the credit granted per rewarded referral, before clamping.
	ReferralRewardAmount int64 = 50

	ReferralCodeLength   = 6
	ReferralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

type User struct {
	ID               int64     `json:"id"`
	FullName         string    `json:"full_name"`
	Phone            string    `json:"phone"`
	Role             Role      `json:"role"`
	ReferralCode     string    `json:"referral_code"`
	ReferredBy       *string   `json:"referred_by,omitempty"`
	ReferralEarnings int64     `json:"referral_earnings"`
	TotalReferrals   int       `json:"total_referrals"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Headroom is how much more the user may earn before hitting the cap.
func (u *User) Headroom() int64 {
	h := MaxReferralEarnings - u.ReferralEarnings
	if h < 0 {
		return 0
	}
	return h
}

func (u *User) AtEarningsCap() bool {
	return u.ReferralEarnings >= MaxReferralEarnings
}

type RegisterRequest struct {
	FullName     string `json:"full_name"     validate:"required,min=2,max=120"`
	Phone        string `json:"phone"         validate:"required,e164"`
	Role         Role   `json:"role"          validate:"role"`
	ReferralCode string `json:"referral_code" validate:"referral_code"`
	FormID       *int64 `json:"form_id,omitempty"`
}

// RegisterResult carries the created user and, when a referral code was
// redeemed against a form, the outcome of the pending referral creation.
type RegisterResult struct {
	User     *User           `json:"user"`
	Referral *ReferralResult `json:"referral,omitempty"`
}

// Earnings is the read model for a referrer's balance.
type Earnings struct {
	UserID           int64          `json:"user_id"`
	ReferralEarnings int64          `json:"referral_earnings"`
	TotalReferrals   int            `json:"total_referrals"`
	Remaining        int64          `json:"remaining"`
	Entries          []*LedgerEntry `json:"entries"`
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}
