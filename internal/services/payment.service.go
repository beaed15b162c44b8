package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/internal/repository"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/nimasrn/dv-referral-ledger/pkg/validator"
)

type PaymentFormRepository interface {
	GetByID(ctx context.Context, id int64) (*model.Form, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Form, error)
	UpdatePayment(ctx context.Context, f *model.Form) error
	ReferenceUsedByOtherForm(ctx context.Context, reference string, formID int64) (bool, error)
}

type OutboxWriter interface {
	Create(ctx context.Context, e *model.OutboxEvent) (*model.OutboxEvent, error)
}

// PaymentService verifies application fee receipts. A verified payment is
// announced through the outbox; referral crediting never runs inline.
type PaymentService struct {
	tx       Transactor
	forms    PaymentFormRepository
	outbox   OutboxWriter
	verifier *ReceiptVerifier
	now      func() time.Time
}

func NewPaymentService(tx Transactor, forms PaymentFormRepository, outbox OutboxWriter, verifier *ReceiptVerifier) *PaymentService {
	return &PaymentService{
		tx:       tx,
		forms:    forms,
		outbox:   outbox,
		verifier: verifier,
		now:      time.Now,
	}
}

// SubmitReceipt records the applicant's proof of payment. Unpaid and
// previously rejected forms accept a receipt.
func (s *PaymentService) SubmitReceipt(ctx context.Context, formID int64, r model.Receipt) (*model.Form, error) {
	if errs := validator.Validate(r); errs != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, validator.Message(errs))
	}

	var form *model.Form
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		form, err = s.lockForm(ctx, formID)
		if err != nil {
			return err
		}
		if form.PaymentStatus != model.PaymentStatusUnpaid && form.PaymentStatus != model.PaymentStatusRejected {
			return fmt.Errorf("%w: form %d is %s", ErrInvalidPaymentState, formID, form.PaymentStatus)
		}

		paidAt := r.PaidAt.UTC()
		form.PaymentStatus = model.PaymentStatusPendingVerification
		form.PaymentReference = NormalizeReference(r.Reference)
		form.PaymentAmount = r.Amount
		form.PaymentPayerName = r.PayerName
		form.PaymentDate = &paidAt
		form.PaymentVerifiedAt = nil
		form.PaymentNote = ""
		return s.forms.UpdatePayment(ctx, form)
	})
	if err != nil {
		return nil, err
	}
	return form, nil
}

// VerifyPayment checks the pending receipt and, on success, marks the form
// verified and writes a payment.verified outbox event in the same
// transaction. A failed check moves the payment to rejected and returns
// ErrReceiptRejected with the reason.
func (s *PaymentService) VerifyPayment(ctx context.Context, formID int64, req model.VerifyRequest) (*model.Form, error) {
	form, err := s.forms.GetByID(ctx, formID)
	if err != nil {
		if errors.Is(err, repository.ErrFormNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	if form.PaymentStatus != model.PaymentStatusPendingVerification {
		return nil, fmt.Errorf("%w: form %d is %s", ErrInvalidPaymentState, formID, form.PaymentStatus)
	}

	if !req.Force {
		if verr := s.verifier.Verify(ctx, form); verr != nil {
			if !errors.Is(verr, ErrReceiptRejected) {
				return nil, verr
			}
			if err := s.reject(ctx, formID, verr.Error()); err != nil {
				return nil, err
			}
			logger.Info("payment rejected", "form_id", formID, "reason", verr.Error())
			return nil, verr
		}
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		form, err = s.lockForm(ctx, formID)
		if err != nil {
			return err
		}
		if form.PaymentStatus != model.PaymentStatusPendingVerification {
			return fmt.Errorf("%w: form %d is %s", ErrInvalidPaymentState, formID, form.PaymentStatus)
		}
		if !req.Force {
			used, err := s.forms.ReferenceUsedByOtherForm(ctx, form.PaymentReference, form.ID)
			if err != nil {
				return fmt.Errorf("check reference reuse: %w", err)
			}
			if used {
				return rejectReceipt("reference %s was already used", form.PaymentReference)
			}
		}

		now := s.now()
		form.PaymentStatus = model.PaymentStatusVerified
		form.PaymentVerifiedAt = &now
		form.PaymentNote = req.Note
		if err := s.forms.UpdatePayment(ctx, form); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}
		if _, err := s.outbox.Create(ctx, model.NewFormEvent(model.EventPaymentVerified, form.ID)); err != nil {
			return fmt.Errorf("write outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrReceiptRejected) {
			if rerr := s.reject(ctx, formID, err.Error()); rerr != nil {
				return nil, rerr
			}
		}
		return nil, err
	}

	logger.Info("payment verified", "form_id", formID, "forced", req.Force)
	return form, nil
}

func (s *PaymentService) reject(ctx context.Context, formID int64, reason string) error {
	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		form, err := s.lockForm(ctx, formID)
		if err != nil {
			return err
		}
		if form.PaymentStatus != model.PaymentStatusPendingVerification {
			return nil
		}
		form.PaymentStatus = model.PaymentStatusRejected
		form.PaymentNote = reason
		return s.forms.UpdatePayment(ctx, form)
	})
}

func (s *PaymentService) lockForm(ctx context.Context, formID int64) (*model.Form, error) {
	form, err := s.forms.GetByIDForUpdate(ctx, formID)
	if err != nil {
		if errors.Is(err, repository.ErrFormNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, fmt.Errorf("lock form: %w", err)
	}
	return form, nil
}
