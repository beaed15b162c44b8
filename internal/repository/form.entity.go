package repository

import (
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
)

type FormEntity struct {
	ID                int64      `db:"id"                  gorm:"primaryKey;autoIncrement;column:id"`
	UserID            *int64     `db:"user_id"             gorm:"column:user_id;index"`
	TrackingID        string     `db:"tracking_id"         gorm:"column:tracking_id;not null;uniqueIndex:idx_forms_tracking_id"`
	ApplicantName     string     `db:"applicant_name"      gorm:"column:applicant_name;not null"`
	Status            string     `db:"status"              gorm:"column:status;not null;default:submitted;index"`
	PaymentStatus     string     `db:"payment_status"      gorm:"column:payment_status;not null;default:unpaid;index"`
	PaymentReference  string     `db:"payment_reference"   gorm:"column:payment_reference;not null;default:'';index"`
	PaymentAmount     int64      `db:"payment_amount"      gorm:"column:payment_amount;not null;default:0"`
	PaymentPayerName  string     `db:"payment_payer_name"  gorm:"column:payment_payer_name;not null;default:''"`
	PaymentDate       *time.Time `db:"payment_date"        gorm:"column:payment_date"`
	PaymentVerifiedAt *time.Time `db:"payment_verified_at" gorm:"column:payment_verified_at"`
	PaymentNote       string     `db:"payment_note"        gorm:"column:payment_note;not null;default:''"`
	CreatedAt         time.Time  `db:"created_at"          gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time  `db:"updated_at"          gorm:"column:updated_at;autoUpdateTime"`
}

func (FormEntity) TableName() string {
	return "forms"
}

func toFormEntity(m *model.Form) *FormEntity {
	if m == nil {
		return nil
	}
	return &FormEntity{
		ID:                m.ID,
		UserID:            m.UserID,
		TrackingID:        m.TrackingID,
		ApplicantName:     m.ApplicantName,
		Status:            string(m.Status),
		PaymentStatus:     string(m.PaymentStatus),
		PaymentReference:  m.PaymentReference,
		PaymentAmount:     m.PaymentAmount,
		PaymentPayerName:  m.PaymentPayerName,
		PaymentDate:       m.PaymentDate,
		PaymentVerifiedAt: m.PaymentVerifiedAt,
		PaymentNote:       m.PaymentNote,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func toFormModel(e *FormEntity) *model.Form {
	if e == nil {
		return nil
	}
	return &model.Form{
		ID:                e.ID,
		UserID:            e.UserID,
		TrackingID:        e.TrackingID,
		ApplicantName:     e.ApplicantName,
		Status:            model.FormStatus(e.Status),
		PaymentStatus:     model.PaymentStatus(e.PaymentStatus),
		PaymentReference:  e.PaymentReference,
		PaymentAmount:     e.PaymentAmount,
		PaymentPayerName:  e.PaymentPayerName,
		PaymentDate:       e.PaymentDate,
		PaymentVerifiedAt: e.PaymentVerifiedAt,
		PaymentNote:       e.PaymentNote,
		CreatedAt:         e.CreatedAt,
		UpdatedAt:         e.UpdatedAt,
	}
}

func toFormModels(entities []*FormEntity) []*model.Form {
	if entities == nil {
		return nil
	}
	models := make([]*model.Form, len(entities))
	for i, e := range entities {
		models[i] = toFormModel(e)
	}
	return models
}
