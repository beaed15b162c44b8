package repository

import (
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
)

type PayoutEntity struct {
	ID          int64      `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	UserID      int64      `db:"user_id"      gorm:"column:user_id;not null;index"`
	Amount      int64      `db:"amount"       gorm:"column:amount;not null"`
	Status      string     `db:"status"       gorm:"column:status;not null;default:requested;index"`
	Note        string     `db:"note"         gorm:"column:note;not null;default:''"`
	RequestedAt time.Time  `db:"requested_at" gorm:"column:requested_at;autoCreateTime"`
	ReviewedAt  *time.Time `db:"reviewed_at"  gorm:"column:reviewed_at"`
	PaidAt      *time.Time `db:"paid_at"      gorm:"column:paid_at"`
}

func (PayoutEntity) TableName() string {
	return "payouts"
}

func toPayoutEntity(m *model.Payout) *PayoutEntity {
	if m == nil {
		return nil
	}
	return &PayoutEntity{
		ID:          m.ID,
		UserID:      m.UserID,
		Amount:      m.Amount,
		Status:      string(m.Status),
		Note:        m.Note,
		RequestedAt: m.RequestedAt,
		ReviewedAt:  m.ReviewedAt,
		PaidAt:      m.PaidAt,
	}
}

func toPayoutModel(e *PayoutEntity) *model.Payout {
	if e == nil {
		return nil
	}
	return &model.Payout{
		ID:          e.ID,
		UserID:      e.UserID,
		Amount:      e.Amount,
		Status:      model.PayoutStatus(e.Status),
		Note:        e.Note,
		RequestedAt: e.RequestedAt,
		ReviewedAt:  e.ReviewedAt,
		PaidAt:      e.PaidAt,
	}
}

func toPayoutModels(entities []*PayoutEntity) []*model.Payout {
	if entities == nil {
		return nil
	}
	models := make([]*model.Payout, len(entities))
	for i, e := range entities {
		models[i] = toPayoutModel(e)
	}
	return models
}
