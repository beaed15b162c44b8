package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/internal/repository"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
)

type PayoutRepository interface {
	Create(ctx context.Context, p *model.Payout) (*model.Payout, error)
	GetByID(ctx context.Context, id int64) (*model.Payout, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Payout, error)
	UpdateStatus(ctx context.Context, id int64, from, to model.PayoutStatus, note string, at time.Time) error
	HasOpen(ctx context.Context, userID int64) (bool, error)
	List(ctx context.Context, f model.PayoutFilter) ([]*model.Payout, int64, error)
}

type PayoutReferralRepository interface {
	ListPayable(ctx context.Context, referrerID int64) ([]*model.Referral, error)
	AttachPayout(ctx context.Context, ids []int64, payoutID int64) error
	SetPayoutStatus(ctx context.Context, payoutID int64, status model.PayoutStatus) error
}

type PayoutUserRepository interface {
	GetByIDForUpdate(ctx context.Context, id int64) (*model.User, error)
}

// PayoutService moves referral earnings to cash. The balance only changes
// when a payout is marked paid (debit) or reversed (credit back).
type PayoutService struct {
	tx        Transactor
	payouts   PayoutRepository
	referrals PayoutReferralRepository
	users     PayoutUserRepository
	ledger    LedgerRepository
	now       func() time.Time
}

func NewPayoutService(tx Transactor, payouts PayoutRepository, referrals PayoutReferralRepository, users PayoutUserRepository, ledger LedgerRepository) *PayoutService {
	return &PayoutService{
		tx:        tx,
		payouts:   payouts,
		referrals: referrals,
		users:     users,
		ledger:    ledger,
		now:       time.Now,
	}
}

// RequestPayout bundles the user's rewarded, not yet requested referrals into
// a new payout.
func (s *PayoutService) RequestPayout(ctx context.Context, userID int64) (*model.Payout, error) {
	var payout *model.Payout
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.GetByIDForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("lock user: %w", err)
		}

		open, err := s.payouts.HasOpen(ctx, userID)
		if err != nil {
			return fmt.Errorf("check open payouts: %w", err)
		}
		if open {
			return ErrPayoutInProgress
		}

		payable, err := s.referrals.ListPayable(ctx, userID)
		if err != nil {
			return fmt.Errorf("list payable referrals: %w", err)
		}
		var total int64
		ids := make([]int64, 0, len(payable))
		for _, r := range payable {
			total += r.RewardAmount
			ids = append(ids, r.ID)
		}
		if total <= 0 {
			return ErrNothingToPayout
		}
		if total > user.ReferralEarnings {
			return fmt.Errorf("%w: requested %d, balance %d", ErrInsufficientBalance, total, user.ReferralEarnings)
		}

		payout, err = s.payouts.Create(ctx, &model.Payout{
			UserID:      userID,
			Amount:      total,
			Status:      model.PayoutStatusRequested,
			RequestedAt: s.now(),
		})
		if err != nil {
			return fmt.Errorf("create payout: %w", err)
		}
		return s.referrals.AttachPayout(ctx, ids, payout.ID)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("payout requested", "payout_id", payout.ID, "user_id", userID, "amount", payout.Amount)
	return payout, nil
}

func (s *PayoutService) ApprovePayout(ctx context.Context, payoutID int64) (*model.Payout, error) {
	return s.transition(ctx, payoutID, model.PayoutStatusApproved, "", nil)
}

// MarkPaid debits the ledger by the payout amount. The balance can never go
// negative: the ledger refuses the debit and the payout stays approved.
func (s *PayoutService) MarkPaid(ctx context.Context, payoutID int64) (*model.Payout, error) {
	return s.transition(ctx, payoutID, model.PayoutStatusPaid, "", func(ctx context.Context, p *model.Payout) error {
		_, err := s.ledger.Apply(ctx, p.UserID, -p.Amount, model.LedgerPayout, model.PayoutReference(p.ID))
		if errors.Is(err, repository.ErrInsufficientBalance) {
			return fmt.Errorf("%w: payout %d", ErrInsufficientBalance, p.ID)
		}
		return err
	})
}

// RejectPayout releases the payout's referrals so they can be requested again.
func (s *PayoutService) RejectPayout(ctx context.Context, payoutID int64, note string) (*model.Payout, error) {
	return s.transition(ctx, payoutID, model.PayoutStatusRejected, strings.TrimSpace(note), nil)
}

// ReversePayout undoes a paid payout: the amount is credited back and the
// referrals become payable again.
func (s *PayoutService) ReversePayout(ctx context.Context, payoutID int64, note string) (*model.Payout, error) {
	return s.transition(ctx, payoutID, model.PayoutStatusReversed, strings.TrimSpace(note), func(ctx context.Context, p *model.Payout) error {
		_, err := s.ledger.Apply(ctx, p.UserID, p.Amount, model.LedgerPayoutReversal, model.PayoutReference(p.ID))
		if errors.Is(err, repository.ErrEarningsCapExceeded) {
			return fmt.Errorf("%w: reversing payout %d", ErrEarningsCapExceeded, p.ID)
		}
		return err
	})
}

func (s *PayoutService) transition(ctx context.Context, payoutID int64, to model.PayoutStatus, note string, apply func(ctx context.Context, p *model.Payout) error) (*model.Payout, error) {
	var payout *model.Payout
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		p, err := s.payouts.GetByIDForUpdate(ctx, payoutID)
		if err != nil {
			if errors.Is(err, repository.ErrPayoutNotFound) {
				return ErrPayoutNotFound
			}
			return fmt.Errorf("lock payout: %w", err)
		}
		if !p.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s to %s", ErrInvalidPayoutTransition, p.Status, to)
		}

		if apply != nil {
			if err := apply(ctx, p); err != nil {
				return err
			}
		}

		now := s.now()
		if err := s.payouts.UpdateStatus(ctx, p.ID, p.Status, to, note, now); err != nil {
			if errors.Is(err, repository.ErrPayoutNotFound) {
				return fmt.Errorf("%w: %s to %s", ErrInvalidPayoutTransition, p.Status, to)
			}
			return fmt.Errorf("update payout: %w", err)
		}

		referralStatus := to
		if to == model.PayoutStatusReversed {
			referralStatus = model.PayoutStatusRejected
		}
		if err := s.referrals.SetPayoutStatus(ctx, p.ID, referralStatus); err != nil {
			return fmt.Errorf("update referrals: %w", err)
		}

		p.Status = to
		if note != "" {
			p.Note = note
		}
		if to == model.PayoutStatusPaid {
			p.PaidAt = &now
		} else {
			p.ReviewedAt = &now
		}
		payout = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("payout status changed", "payout_id", payoutID, "status", to)
	return payout, nil
}

func (s *PayoutService) Get(ctx context.Context, id int64) (*model.Payout, error) {
	p, err := s.payouts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrPayoutNotFound) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *PayoutService) ListPayouts(ctx context.Context, f model.PayoutFilter) ([]*model.Payout, int64, error) {
	return s.payouts.List(ctx, f)
}
