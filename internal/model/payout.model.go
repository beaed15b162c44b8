package model

import "time"

type Payout struct {
	ID          int64        `json:"id"`
	UserID      int64        `json:"user_id"`
	Amount      int64        `json:"amount"`
	Status      PayoutStatus `json:"status"`
	Note        string       `json:"note,omitempty"`
	RequestedAt time.Time    `json:"requested_at"`
	ReviewedAt  *time.Time   `json:"reviewed_at,omitempty"`
	PaidAt      *time.Time   `json:"paid_at,omitempty"`
}

// CanTransition reports whether a payout may move from s to next.
func (s PayoutStatus) CanTransition(next PayoutStatus) bool {
	switch s {
	case PayoutStatusRequested:
		return next == PayoutStatusApproved || next == PayoutStatusRejected
	case PayoutStatusApproved:
		return next == PayoutStatusPaid || next == PayoutStatusRejected
	case PayoutStatusPaid:
		return next == PayoutStatusReversed
	}
	return false
}

type RejectPayoutRequest struct {
	Note string `json:"note" validate:"max=500"`
}

type PayoutFilter struct {
	UserID   *int64
	Statuses []PayoutStatus
	Limit    int
	Offset   int
}
