package repository

import (
	"context"
	"errors"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrReferralNotFound = errors.New("referral not found")
)

type ReferralRepository struct {
	*pg.DB
}

func NewReferralRepository(db *pg.DB) *ReferralRepository {
	return &ReferralRepository{
		db,
	}
}

// FindByTriple returns the referral for (referrer, referred user, form).
func (r *ReferralRepository) FindByTriple(ctx context.Context, referrerID, referredUserID, formID int64) (*model.Referral, error) {
	var entity ReferralEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("referrer_id = ? AND referred_user_id = ? AND form_id = ?", referrerID, referredUserID, formID).
		First(&entity).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}
	return toReferralModel(&entity), nil
}

// CreateIfAbsent inserts ref unless a record for the same triple exists. It
// returns the stored record and whether this call created it.
func (r *ReferralRepository) CreateIfAbsent(ctx context.Context, ref *model.Referral) (*model.Referral, bool, error) {
	entity := toReferralEntity(ref)

	result := r.Write(ctx).WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entity)
	if result.Error != nil {
		return nil, false, result.Error
	}
	if result.RowsAffected == 1 {
		return toReferralModel(entity), true, nil
	}

	existing, err := r.FindByTriple(ctx, ref.ReferrerID, ref.ReferredUserID, ref.FormID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// MarkRewarded moves a pending referral to paid with the final amount.
func (r *ReferralRepository) MarkRewarded(ctx context.Context, id, amount int64, at time.Time) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&ReferralEntity{}).
		Where("id = ? AND reward_status = ?", id, string(model.RewardStatusPending)).
		Updates(map[string]interface{}{
			"reward_status": string(model.RewardStatusPaid),
			"reward_amount": amount,
			"reward_date":   at,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReferralNotFound
	}
	return nil
}

func (r *ReferralRepository) ListByReferrer(ctx context.Context, referrerID int64, f model.ReferralFilter) ([]*model.Referral, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&ReferralEntity{}).Where("referrer_id = ?", referrerID)
	if f.RewardStatus != nil {
		q = q.Where("reward_status = ?", string(*f.RewardStatus))
	}
	if f.PayoutStatus != nil {
		q = q.Where("payout_status = ?", string(*f.PayoutStatus))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var entities []*ReferralEntity
	if err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}
	return toReferralModels(entities), total, nil
}

// ListPayable returns the referrer's rewarded referrals that are not part of
// any open or settled payout.
func (r *ReferralRepository) ListPayable(ctx context.Context, referrerID int64) ([]*model.Referral, error) {
	var entities []*ReferralEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("referrer_id = ? AND reward_status = ? AND payout_status = ?",
			referrerID, string(model.RewardStatusPaid), string(model.PayoutStatusNone)).
		Order("id").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toReferralModels(entities), nil
}

func (r *ReferralRepository) AttachPayout(ctx context.Context, ids []int64, payoutID int64) error {
	if len(ids) == 0 {
		return nil
	}
	return r.Write(ctx).WithContext(ctx).
		Model(&ReferralEntity{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"payout_status": string(model.PayoutStatusRequested),
			"payout_id":     payoutID,
		}).
		Error
}

// SetPayoutStatus updates every referral covered by the payout. Rejected
// payouts release their referrals so they can be requested again.
func (r *ReferralRepository) SetPayoutStatus(ctx context.Context, payoutID int64, status model.PayoutStatus) error {
	updates := map[string]interface{}{"payout_status": string(status)}
	if status == model.PayoutStatusRejected {
		updates = map[string]interface{}{
			"payout_status": string(model.PayoutStatusNone),
			"payout_id":     nil,
		}
	}
	return r.Write(ctx).WithContext(ctx).
		Model(&ReferralEntity{}).
		Where("payout_id = ?", payoutID).
		Updates(updates).
		Error
}

func (r *ReferralRepository) ListByPayout(ctx context.Context, payoutID int64) ([]*model.Referral, error) {
	var entities []*ReferralEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("payout_id = ?", payoutID).
		Order("id").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toReferralModels(entities), nil
}
