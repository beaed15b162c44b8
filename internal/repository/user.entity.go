package repository

import (
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
)

type UserEntity struct {
	ID               int64     `db:"id"                gorm:"primaryKey;autoIncrement;column:id"`
	FullName         string    `db:"full_name"         gorm:"column:full_name;not null"`
	Phone            string    `db:"phone"             gorm:"column:phone;not null;uniqueIndex:idx_users_phone"`
	Role             string    `db:"role"              gorm:"column:role;not null;default:user"`
	ReferralCode     string    `db:"referral_code"     gorm:"column:referral_code;not null;uniqueIndex:idx_users_referral_code"`
	ReferredBy       *string   `db:"referred_by"       gorm:"column:referred_by;index"`
	ReferralEarnings int64     `db:"referral_earnings" gorm:"column:referral_earnings;not null;default:0"`
	TotalReferrals   int       `db:"total_referrals"   gorm:"column:total_referrals;not null;default:0"`
	CreatedAt        time.Time `db:"created_at"        gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time `db:"updated_at"        gorm:"column:updated_at;autoUpdateTime"`
}

func (UserEntity) TableName() string {
	return "users"
}

func toUserEntity(m *model.User) *UserEntity {
	if m == nil {
		return nil
	}
	return &UserEntity{
		ID:               m.ID,
		FullName:         m.FullName,
		Phone:            m.Phone,
		Role:             string(m.Role),
		ReferralCode:     m.ReferralCode,
		ReferredBy:       m.ReferredBy,
		ReferralEarnings: m.ReferralEarnings,
		TotalReferrals:   m.TotalReferrals,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

func toUserModel(e *UserEntity) *model.User {
	if e == nil {
		return nil
	}
	return &model.User{
		ID:               e.ID,
		FullName:         e.FullName,
		Phone:            e.Phone,
		Role:             model.Role(e.Role),
		ReferralCode:     e.ReferralCode,
		ReferredBy:       e.ReferredBy,
		ReferralEarnings: e.ReferralEarnings,
		TotalReferrals:   e.TotalReferrals,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
	}
}
