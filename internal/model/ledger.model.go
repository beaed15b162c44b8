package model

import (
	"fmt"
	"time"
)

type LedgerEntryType string

const (
	LedgerReferralReward LedgerEntryType = "referral_reward"
	LedgerPayout         LedgerEntryType = "payout"
	LedgerPayoutReversal LedgerEntryType = "payout_reversal"
)

// LedgerEntry is one append-only change to a user's referral balance.
// Amount is signed: credits are positive, payouts negative.
type LedgerEntry struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	Amount       int64           `json:"amount"`
	Type         LedgerEntryType `json:"type"`
	Reference    string          `json:"reference"`
	BalanceAfter int64           `json:"balance_after"`
	CreatedAt    time.Time       `json:"created_at"`
}

func FormReference(formID int64) string     { return fmt.Sprintf("form:%d", formID) }
func PayoutReference(payoutID int64) string { return fmt.Sprintf("payout:%d", payoutID) }

// Drift is a user whose cached balance disagrees with the ledger sum.
type Drift struct {
	UserID    int64 `json:"user_id"`
	Cached    int64 `json:"cached"`
	LedgerSum int64 `json:"ledger_sum"`
}
