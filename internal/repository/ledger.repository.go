package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrEarningsCapExceeded = errors.New("referral earnings cap exceeded")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrDuplicateLedgerRef  = errors.New("ledger entry already recorded for reference")
	ErrMaxRetriesExceeded  = errors.New("max retries exceeded")
)

// LedgerRepository is the only writer of users.referral_earnings. Every
// balance change appends a ledger entry and updates the cached balance under
// the user's row lock.
type LedgerRepository struct {
	*pg.DB
}

func NewLedgerRepository(db *pg.DB) *LedgerRepository {
	return &LedgerRepository{
		db,
	}
}

// Apply adds amount (signed) to the user's balance and records it under
// (userID, typ, reference). It joins the transaction carried by ctx, or runs
// its own with retry on transient errors when there is none.
func (r *LedgerRepository) Apply(ctx context.Context, userID, amount int64, typ model.LedgerEntryType, reference string) (*model.LedgerEntry, error) {
	if pg.InTransaction(ctx) {
		return r.applyAttempt(ctx, userID, amount, typ, reference)
	}

	const maxRetries = 3
	const baseDelay = 2 * time.Millisecond

	for attempt := 0; attempt <= maxRetries; attempt++ {
		var entry *model.LedgerEntry
		err := r.WithinTransaction(ctx, func(txCtx context.Context) error {
			var err error
			entry, err = r.applyAttempt(txCtx, userID, amount, typ, reference)
			return err
		})
		if err == nil {
			return entry, nil
		}

		if errors.Is(err, ErrUserNotFound) ||
			errors.Is(err, ErrEarningsCapExceeded) ||
			errors.Is(err, ErrInsufficientBalance) ||
			errors.Is(err, ErrDuplicateLedgerRef) {
			return nil, err
		}

		if attempt < maxRetries {
			delay := baseDelay * time.Duration(1<<attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
				continue
			}
		}
	}

	return nil, fmt.Errorf("%w: failed after %d attempts", ErrMaxRetriesExceeded, maxRetries+1)
}

func (r *LedgerRepository) applyAttempt(ctx context.Context, userID, amount int64, typ model.LedgerEntryType, reference string) (*model.LedgerEntry, error) {
	var user UserEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", userID).
		First(&user).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	var existing int64
	err = r.Write(ctx).WithContext(ctx).
		Model(&LedgerEntryEntity{}).
		Where("user_id = ? AND type = ? AND reference = ?", userID, string(typ), reference).
		Count(&existing).
		Error
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrDuplicateLedgerRef
	}

	balance := user.ReferralEarnings + amount
	if balance > model.MaxReferralEarnings {
		return nil, ErrEarningsCapExceeded
	}
	if balance < 0 {
		return nil, ErrInsufficientBalance
	}

	entry := &LedgerEntryEntity{
		UserID:       userID,
		Amount:       amount,
		Type:         string(typ),
		Reference:    reference,
		BalanceAfter: balance,
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entry).Error; err != nil {
		if pg.IsUniqueViolation(err) {
			return nil, ErrDuplicateLedgerRef
		}
		return nil, err
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&UserEntity{}).
		Where("id = ?", userID).
		Update("referral_earnings", balance)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}

	return toLedgerEntryModel(entry), nil
}

func (r *LedgerRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	var entities []*LedgerEntryEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toLedgerEntryModels(entities), nil
}

func (r *LedgerRepository) Sum(ctx context.Context, userID int64) (int64, error) {
	var sum int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&LedgerEntryEntity{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).
		Error
	return sum, err
}

// FindDrift lists users whose cached balance differs from their ledger sum.
func (r *LedgerRepository) FindDrift(ctx context.Context) ([]*model.Drift, error) {
	var rows []struct {
		UserID    int64
		Cached    int64
		LedgerSum int64
	}
	err := r.Read(ctx).WithContext(ctx).
		Table("users AS u").
		Select("u.id AS user_id, u.referral_earnings AS cached, COALESCE(SUM(l.amount), 0) AS ledger_sum").
		Joins("LEFT JOIN ledger_entries AS l ON l.user_id = u.id").
		Group("u.id, u.referral_earnings").
		Having("u.referral_earnings <> COALESCE(SUM(l.amount), 0)").
		Order("u.id").
		Scan(&rows).
		Error
	if err != nil {
		return nil, err
	}

	drift := make([]*model.Drift, 0, len(rows))
	for _, row := range rows {
		drift = append(drift, &model.Drift{UserID: row.UserID, Cached: row.Cached, LedgerSum: row.LedgerSum})
	}
	return drift, nil
}
