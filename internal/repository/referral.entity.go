package repository

import (
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
)

type ReferralEntity struct {
	ID             int64      `db:"id"               gorm:"primaryKey;autoIncrement;column:id"`
	ReferrerID     int64      `db:"referrer_id"      gorm:"column:referrer_id;not null;uniqueIndex:idx_referrals_triple,priority:1"`
	ReferredUserID int64      `db:"referred_user_id" gorm:"column:referred_user_id;not null;uniqueIndex:idx_referrals_triple,priority:2"`
	FormID         int64      `db:"form_id"          gorm:"column:form_id;not null;uniqueIndex:idx_referrals_triple,priority:3"`
	RewardAmount   int64      `db:"reward_amount"    gorm:"column:reward_amount;not null"`
	RewardStatus   string     `db:"reward_status"    gorm:"column:reward_status;not null;default:pending"`
	RewardDate     *time.Time `db:"reward_date"      gorm:"column:reward_date"`
	PayoutStatus   string     `db:"payout_status"    gorm:"column:payout_status;not null;default:''"`
	PayoutID       *int64     `db:"payout_id"        gorm:"column:payout_id;index"`
	CreatedAt      time.Time  `db:"created_at"       gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `db:"updated_at"       gorm:"column:updated_at;autoUpdateTime"`
}

func (ReferralEntity) TableName() string {
	return "referrals"
}

func toReferralEntity(m *model.Referral) *ReferralEntity {
	if m == nil {
		return nil
	}
	return &ReferralEntity{
		ID:             m.ID,
		ReferrerID:     m.ReferrerID,
		ReferredUserID: m.ReferredUserID,
		FormID:         m.FormID,
		RewardAmount:   m.RewardAmount,
		RewardStatus:   string(m.RewardStatus),
		RewardDate:     m.RewardDate,
		PayoutStatus:   string(m.PayoutStatus),
		PayoutID:       m.PayoutID,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func toReferralModel(e *ReferralEntity) *model.Referral {
	if e == nil {
		return nil
	}
	return &model.Referral{
		ID:             e.ID,
		ReferrerID:     e.ReferrerID,
		ReferredUserID: e.ReferredUserID,
		FormID:         e.FormID,
		RewardAmount:   e.RewardAmount,
		RewardStatus:   model.RewardStatus(e.RewardStatus),
		RewardDate:     e.RewardDate,
		PayoutStatus:   model.PayoutStatus(e.PayoutStatus),
		PayoutID:       e.PayoutID,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}
}

func toReferralModels(entities []*ReferralEntity) []*model.Referral {
	if entities == nil {
		return nil
	}
	models := make([]*model.Referral, len(entities))
	for i, e := range entities {
		models[i] = toReferralModel(e)
	}
	return models
}
