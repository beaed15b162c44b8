package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/internal/repository"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/nimasrn/dv-referral-ledger/pkg/prom"
)

// errAlreadyCredited rolls back a reward whose ledger entry already exists.
var errAlreadyCredited = errors.New("referral already credited")

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type ReferralUserRepository interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.User, error)
	GetByReferralCode(ctx context.Context, code string) (*model.User, error)
	IncrementTotalReferrals(ctx context.Context, id int64) error
}

type ReferralRepository interface {
	FindByTriple(ctx context.Context, referrerID, referredUserID, formID int64) (*model.Referral, error)
	CreateIfAbsent(ctx context.Context, ref *model.Referral) (*model.Referral, bool, error)
	MarkRewarded(ctx context.Context, id, amount int64, at time.Time) error
	ListByReferrer(ctx context.Context, referrerID int64, f model.ReferralFilter) ([]*model.Referral, int64, error)
}

type FormReader interface {
	GetByID(ctx context.Context, id int64) (*model.Form, error)
}

type LedgerRepository interface {
	Apply(ctx context.Context, userID, amount int64, typ model.LedgerEntryType, reference string) (*model.LedgerEntry, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error)
}

// ReferralService credits referrers for verified form payments. All balance
// changes go through the ledger so the earnings cap and one-credit-per-form
// hold under concurrent calls.
type ReferralService struct {
	tx        Transactor
	users     ReferralUserRepository
	referrals ReferralRepository
	forms     FormReader
	ledger    LedgerRepository
	now       func() time.Time
}

func NewReferralService(tx Transactor, users ReferralUserRepository, referrals ReferralRepository, forms FormReader, ledger LedgerRepository) *ReferralService {
	return &ReferralService{
		tx:        tx,
		users:     users,
		referrals: referrals,
		forms:     forms,
		ledger:    ledger,
		now:       time.Now,
	}
}

// ProcessReferralReward credits the referrer of the form's user at most once.
// ErrFormNotFound and ErrReferrerNotFound abort the transaction; reaching the
// cap, a missing referral and a repeat call are successful no-ops.
// total_referrals counts rewarded referrals, so it is incremented whenever a
// credit lands, including when a pending referral turns paid.
func (s *ReferralService) ProcessReferralReward(ctx context.Context, formID int64) (*model.ReferralResult, error) {
	var result *model.ReferralResult
	var credited int64

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		form, err := s.forms.GetByID(ctx, formID)
		if err != nil {
			if errors.Is(err, repository.ErrFormNotFound) {
				return fmt.Errorf("%w: id %d", ErrFormNotFound, formID)
			}
			return fmt.Errorf("load form: %w", err)
		}

		if form.UserID == nil {
			result = &model.ReferralResult{Success: true, Message: model.MsgNoReferral}
			return nil
		}
		referred, err := s.users.GetByID(ctx, *form.UserID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				result = &model.ReferralResult{Success: true, Message: model.MsgNoReferral}
				return nil
			}
			return fmt.Errorf("load referred user: %w", err)
		}
		if referred.ReferredBy == nil || *referred.ReferredBy == "" {
			result = &model.ReferralResult{Success: true, Message: model.MsgNoReferral}
			return nil
		}

		referrer, err := s.lockReferrer(ctx, *referred.ReferredBy)
		if err != nil {
			return err
		}
		if referrer.AtEarningsCap() {
			result = &model.ReferralResult{Success: true, Message: model.MsgEarningsLimit}
			return nil
		}

		existing, err := s.referrals.FindByTriple(ctx, referrer.ID, referred.ID, form.ID)
		switch {
		case err == nil && existing.RewardStatus == model.RewardStatusPaid:
			result = &model.ReferralResult{Success: true, Message: model.MsgAlreadyRewarded, Referral: existing}
			return nil

		case err == nil:
			amount := min(existing.RewardAmount, referrer.Headroom())
			if amount <= 0 {
				result = &model.ReferralResult{Success: true, Message: model.MsgCapExhausted, Referral: existing}
				return nil
			}
			now := s.now()
			if err := s.credit(ctx, referrer.ID, form.ID, amount); err != nil {
				return err
			}
			if err := s.referrals.MarkRewarded(ctx, existing.ID, amount, now); err != nil {
				return fmt.Errorf("mark referral rewarded: %w", err)
			}
			if err := s.users.IncrementTotalReferrals(ctx, referrer.ID); err != nil {
				return fmt.Errorf("increment total referrals: %w", err)
			}
			existing.RewardStatus = model.RewardStatusPaid
			existing.RewardAmount = amount
			existing.RewardDate = &now
			credited = amount
			result = &model.ReferralResult{Success: true, Message: model.MsgRewardProcessed, Referral: existing}
			return nil

		case errors.Is(err, repository.ErrReferralNotFound):
			amount := min(model.ReferralRewardAmount, referrer.Headroom())
			if amount <= 0 {
				result = &model.ReferralResult{Success: true, Message: model.MsgCapExhausted}
				return nil
			}
			now := s.now()
			ref, created, err := s.referrals.CreateIfAbsent(ctx, &model.Referral{
				ReferrerID:     referrer.ID,
				ReferredUserID: referred.ID,
				FormID:         form.ID,
				RewardAmount:   amount,
				RewardStatus:   model.RewardStatusPaid,
				RewardDate:     &now,
			})
			if err != nil {
				return fmt.Errorf("create referral: %w", err)
			}
			if !created {
				result = &model.ReferralResult{Success: true, Message: model.MsgAlreadyRewarded, Referral: ref}
				return nil
			}
			if err := s.credit(ctx, referrer.ID, form.ID, amount); err != nil {
				return err
			}
			if err := s.users.IncrementTotalReferrals(ctx, referrer.ID); err != nil {
				return fmt.Errorf("increment total referrals: %w", err)
			}
			credited = amount
			result = &model.ReferralResult{Success: true, Message: model.MsgRewardProcessed, Referral: ref}
			return nil

		default:
			return fmt.Errorf("find referral: %w", err)
		}
	})
	if errors.Is(err, errAlreadyCredited) {
		return &model.ReferralResult{Success: true, Message: model.MsgAlreadyRewarded}, nil
	}
	if err != nil {
		return nil, err
	}

	if credited > 0 {
		prom.AddRewardCredited(credited)
		logger.Info("referral reward credited", "form_id", formID, "referrer_id", result.Referral.ReferrerID, "amount", credited)
	}
	return result, nil
}

func (s *ReferralService) lockReferrer(ctx context.Context, code string) (*model.User, error) {
	byCode, err := s.users.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: code %s", ErrReferrerNotFound, code)
		}
		return nil, fmt.Errorf("resolve referrer: %w", err)
	}
	referrer, err := s.users.GetByIDForUpdate(ctx, byCode.ID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: code %s", ErrReferrerNotFound, code)
		}
		return nil, fmt.Errorf("lock referrer: %w", err)
	}
	return referrer, nil
}

func (s *ReferralService) credit(ctx context.Context, referrerID, formID, amount int64) error {
	_, err := s.ledger.Apply(ctx, referrerID, amount, model.LedgerReferralReward, model.FormReference(formID))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrDuplicateLedgerRef):
		return errAlreadyCredited
	case errors.Is(err, repository.ErrEarningsCapExceeded):
		return fmt.Errorf("%w: referrer %d", ErrEarningsCapExceeded, referrerID)
	default:
		return fmt.Errorf("credit referrer: %w", err)
	}
}

// CreatePendingReferral records a referral at registration time so it can be
// rewarded once the form's payment is verified. Failures that are the user's
// doing come back as an unsuccessful result, not an error.
func (s *ReferralService) CreatePendingReferral(ctx context.Context, code string, referredUserID, formID int64) (*model.ReferralResult, error) {
	referrer, err := s.users.GetByReferralCode(ctx, NormalizeReferralCode(code))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return &model.ReferralResult{Success: false, Message: model.MsgInvalidCode}, nil
		}
		return nil, fmt.Errorf("resolve referrer: %w", err)
	}
	if referrer.ID == referredUserID {
		return &model.ReferralResult{Success: false, Message: model.MsgSelfReferral}, nil
	}
	if referrer.AtEarningsCap() {
		return &model.ReferralResult{Success: false, Message: model.MsgEarningsLimit}, nil
	}

	ref, created, err := s.referrals.CreateIfAbsent(ctx, &model.Referral{
		ReferrerID:     referrer.ID,
		ReferredUserID: referredUserID,
		FormID:         formID,
		RewardAmount:   model.ReferralRewardAmount,
		RewardStatus:   model.RewardStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("create pending referral: %w", err)
	}
	if !created {
		if ref.RewardStatus == model.RewardStatusPaid {
			return &model.ReferralResult{Success: true, Message: model.MsgAlreadyRewarded, Referral: ref}, nil
		}
		return &model.ReferralResult{Success: true, Message: model.MsgReferralAlreadyPending, Referral: ref}, nil
	}
	return &model.ReferralResult{Success: true, Message: model.MsgPendingCreated, Referral: ref}, nil
}

func (s *ReferralService) ListReferrals(ctx context.Context, referrerID int64, f model.ReferralFilter) ([]*model.Referral, int64, error) {
	if _, err := s.users.GetByID(ctx, referrerID); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, 0, ErrUserNotFound
		}
		return nil, 0, err
	}
	return s.referrals.ListByReferrer(ctx, referrerID, f)
}
