package model

import "time"

type FormStatus string

const (
	FormStatusSubmitted FormStatus = "submitted"
	FormStatusApproved  FormStatus = "approved"
	FormStatusRejected  FormStatus = "rejected"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid              PaymentStatus = "unpaid"
	PaymentStatusPendingVerification PaymentStatus = "pending_verification"
	PaymentStatusVerified            PaymentStatus = "verified"
	PaymentStatusRejected            PaymentStatus = "rejected"
)

const (
	TrackingIDPrefix   = "DV-"
	TrackingIDLength   = 10
	TrackingIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

type Form struct {
	ID                int64         `json:"id"`
	UserID            *int64        `json:"user_id,omitempty"`
	TrackingID        string        `json:"tracking_id"`
	ApplicantName     string        `json:"applicant_name"`
	Status            FormStatus    `json:"status"`
	PaymentStatus     PaymentStatus `json:"payment_status"`
	PaymentReference  string        `json:"payment_reference,omitempty"`
	PaymentAmount     int64         `json:"payment_amount,omitempty"`
	PaymentPayerName  string        `json:"payment_payer_name,omitempty"`
	PaymentDate       *time.Time    `json:"payment_date,omitempty"`
	PaymentVerifiedAt *time.Time    `json:"payment_verified_at,omitempty"`
	PaymentNote       string        `json:"payment_note,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`
}

type FormCreateRequest struct {
	UserID        *int64 `json:"user_id,omitempty"`
	ApplicantName string `json:"applicant_name" validate:"required,min=2,max=120"`
}

// FormTracking is the public view returned by tracking-ID lookups.
type FormTracking struct {
	TrackingID    string        `json:"tracking_id"`
	ApplicantName string        `json:"applicant_name"`
	Status        FormStatus    `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (f *Form) Tracking() *FormTracking {
	return &FormTracking{
		TrackingID:    f.TrackingID,
		ApplicantName: f.ApplicantName,
		Status:        f.Status,
		PaymentStatus: f.PaymentStatus,
		UpdatedAt:     f.UpdatedAt,
	}
}

// Receipt is what an applicant submits as proof of payment.
type Receipt struct {
	Reference string    `json:"reference"  validate:"required"`
	Amount    int64     `json:"amount"     validate:"gt=0"`
	PaidAt    time.Time `json:"paid_at"    validate:"required"`
	PayerName string    `json:"payer_name"`
}

type VerifyRequest struct {
	Force bool   `json:"force"`
	Note  string `json:"note"`
}

type BulkApproveRequest struct {
	FormIDs []int64 `json:"form_ids" validate:"required,min=1,max=500"`
}

type ApproveOutcome struct {
	FormID   int64  `json:"form_id"`
	Approved bool   `json:"approved"`
	Reason   string `json:"reason,omitempty"`
}

// FormFilter controls List queries.
type FormFilter struct {
	UserID        *int64
	Statuses      []FormStatus
	PaymentStatus []PaymentStatus
	Limit         int // default 50
	Offset        int
}

// BankRecord is a statement line returned by a bank lookup.
type BankRecord struct {
	Reference string    `json:"reference"`
	Amount    int64     `json:"amount"`
	PaidAt    time.Time `json:"paid_at"`
	PayerName string    `json:"payer_name,omitempty"`
	Bank      string    `json:"bank,omitempty"`
}
