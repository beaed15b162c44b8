package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/internal/repository"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/nimasrn/dv-referral-ledger/pkg/validator"
)

const (
	reasonNotFound          = "form not found"
	reasonNotSubmitted      = "form is not in submitted status"
	reasonPaymentUnverified = "payment is not verified"
)

type FormRepository interface {
	Create(ctx context.Context, f *model.Form) (*model.Form, error)
	GetByID(ctx context.Context, id int64) (*model.Form, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*model.Form, error)
	GetByTrackingID(ctx context.Context, trackingID string) (*model.Form, error)
	TransitionStatus(ctx context.Context, id int64, from, to model.FormStatus) (bool, error)
	List(ctx context.Context, f model.FormFilter) ([]*model.Form, int64, error)
}

type FormService struct {
	tx            Transactor
	forms         FormRepository
	outbox        OutboxWriter
	newTrackingID func() (string, error)
}

func NewFormService(tx Transactor, forms FormRepository, outbox OutboxWriter) *FormService {
	return &FormService{
		tx:            tx,
		forms:         forms,
		outbox:        outbox,
		newTrackingID: generateTrackingID,
	}
}

func (s *FormService) Create(ctx context.Context, req model.FormCreateRequest) (*model.Form, error) {
	req.ApplicantName = strings.TrimSpace(req.ApplicantName)
	if errs := validator.Validate(req); errs != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, validator.Message(errs))
	}

	for i := 0; i < maxCodeAttempts; i++ {
		trackingID, err := s.newTrackingID()
		if err != nil {
			return nil, fmt.Errorf("generate tracking id: %w", err)
		}
		form, err := s.forms.Create(ctx, &model.Form{
			UserID:        req.UserID,
			TrackingID:    trackingID,
			ApplicantName: req.ApplicantName,
			Status:        model.FormStatusSubmitted,
			PaymentStatus: model.PaymentStatusUnpaid,
		})
		if errors.Is(err, repository.ErrDuplicateTrackingID) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create form: %w", err)
		}
		return form, nil
	}
	return nil, fmt.Errorf("%w: tracking id after %d attempts", ErrCodeGeneration, maxCodeAttempts)
}

func (s *FormService) GetByID(ctx context.Context, id int64) (*model.Form, error) {
	f, err := s.forms.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrFormNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	return f, nil
}

func (s *FormService) GetByTrackingID(ctx context.Context, trackingID string) (*model.FormTracking, error) {
	f, err := s.forms.GetByTrackingID(ctx, strings.ToUpper(strings.TrimSpace(trackingID)))
	if err != nil {
		if errors.Is(err, repository.ErrFormNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	return f.Tracking(), nil
}

// BulkApprove approves every listed form that is submitted with a verified
// payment. Each form is handled in its own transaction together with its
// form.approved outbox event, so one bad ID never blocks the rest.
func (s *FormService) BulkApprove(ctx context.Context, req model.BulkApproveRequest) ([]model.ApproveOutcome, error) {
	if errs := validator.Validate(req); errs != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, validator.Message(errs))
	}

	outcomes := make([]model.ApproveOutcome, 0, len(req.FormIDs))
	seen := make(map[int64]struct{}, len(req.FormIDs))
	for _, id := range req.FormIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		reason, err := s.approveOne(ctx, id)
		if err != nil {
			return outcomes, fmt.Errorf("approve form %d: %w", id, err)
		}
		outcomes = append(outcomes, model.ApproveOutcome{FormID: id, Approved: reason == "", Reason: reason})
	}

	logger.Info("bulk approval finished", "requested", len(req.FormIDs), "processed", len(outcomes))
	return outcomes, nil
}

func (s *FormService) approveOne(ctx context.Context, id int64) (string, error) {
	var reason string
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		form, err := s.forms.GetByIDForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrFormNotFound) {
				reason = reasonNotFound
				return nil
			}
			return err
		}
		if form.Status != model.FormStatusSubmitted {
			reason = reasonNotSubmitted
			return nil
		}
		if form.PaymentStatus != model.PaymentStatusVerified {
			reason = reasonPaymentUnverified
			return nil
		}

		ok, err := s.forms.TransitionStatus(ctx, id, model.FormStatusSubmitted, model.FormStatusApproved)
		if err != nil {
			return err
		}
		if !ok {
			reason = reasonNotSubmitted
			return nil
		}
		_, err = s.outbox.Create(ctx, model.NewFormEvent(model.EventFormApproved, id))
		return err
	})
	return reason, err
}

func (s *FormService) List(ctx context.Context, f model.FormFilter) ([]*model.Form, int64, error) {
	return s.forms.List(ctx, f)
}
