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

const earningsEntriesLimit = 50

type UserRepository interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByPhone(ctx context.Context, phone string) (*model.User, error)
	GetByReferralCode(ctx context.Context, code string) (*model.User, error)
	ReferralCodeExists(ctx context.Context, code string) (bool, error)
}

type FormAssigner interface {
	GetByID(ctx context.Context, id int64) (*model.Form, error)
	AssignUser(ctx context.Context, formID, userID int64) (bool, error)
}

type PendingReferralCreator interface {
	CreatePendingReferral(ctx context.Context, code string, referredUserID, formID int64) (*model.ReferralResult, error)
}

type LedgerReader interface {
	ListByUser(ctx context.Context, userID int64, limit int) ([]*model.LedgerEntry, error)
}

type UserService struct {
	tx        Transactor
	users     UserRepository
	forms     FormAssigner
	referrals PendingReferralCreator
	ledger    LedgerReader
	newCode   func() (string, error)
}

func NewUserService(tx Transactor, users UserRepository, forms FormAssigner, referrals PendingReferralCreator, ledger LedgerReader) *UserService {
	return &UserService{
		tx:        tx,
		users:     users,
		forms:     forms,
		referrals: referrals,
		ledger:    ledger,
		newCode:   generateReferralCode,
	}
}

// Register creates a user with a fresh referral code. A supplied referral
// code must resolve; when a form is supplied with it, a pending referral is
// recorded and its outcome attached to the result.
func (s *UserService) Register(ctx context.Context, req model.RegisterRequest) (*model.RegisterResult, error) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.ReferralCode = NormalizeReferralCode(req.ReferralCode)
	if req.Role == "" {
		req.Role = model.RoleUser
	}
	if errs := validator.Validate(req); errs != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, validator.Message(errs))
	}

	if _, err := s.users.GetByPhone(ctx, req.Phone); err == nil {
		return nil, ErrPhoneTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("check phone: %w", err)
	}

	var referredBy *string
	if req.ReferralCode != "" {
		if _, err := s.users.GetByReferralCode(ctx, req.ReferralCode); err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return nil, ErrInvalidReferralCode
			}
			return nil, fmt.Errorf("resolve referral code: %w", err)
		}
		code := req.ReferralCode
		referredBy = &code
	}

	if req.FormID != nil {
		form, err := s.forms.GetByID(ctx, *req.FormID)
		if err != nil {
			if errors.Is(err, repository.ErrFormNotFound) {
				return nil, ErrFormNotFound
			}
			return nil, fmt.Errorf("load form: %w", err)
		}
		if form.UserID != nil {
			return nil, fmt.Errorf("%w: form %d already belongs to a user", ErrValidation, form.ID)
		}
	}

	var user *model.User
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		code, err := s.uniqueReferralCode(ctx)
		if err != nil {
			return err
		}
		user, err = s.users.Create(ctx, &model.User{
			FullName:     req.FullName,
			Phone:        req.Phone,
			Role:         req.Role,
			ReferralCode: code,
			ReferredBy:   referredBy,
		})
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateUser) {
				return ErrPhoneTaken
			}
			return fmt.Errorf("create user: %w", err)
		}
		if req.FormID != nil {
			ok, err := s.forms.AssignUser(ctx, *req.FormID, user.ID)
			if err != nil {
				return fmt.Errorf("assign form: %w", err)
			}
			if !ok {
				return fmt.Errorf("%w: form %d already belongs to a user", ErrValidation, *req.FormID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &model.RegisterResult{User: user}
	if referredBy != nil && req.FormID != nil {
		ref, err := s.referrals.CreatePendingReferral(ctx, *referredBy, user.ID, *req.FormID)
		if err != nil {
			logger.Warn("pending referral creation failed", "user_id", user.ID, "form_id", *req.FormID, "err", err)
		} else {
			result.Referral = ref
		}
	}

	logger.Info("user registered", "user_id", user.ID, "referred", referredBy != nil)
	return result, nil
}

func (s *UserService) uniqueReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := s.newCode()
		if err != nil {
			return "", fmt.Errorf("generate referral code: %w", err)
		}
		exists, err := s.users.ReferralCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check referral code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: referral code after %d attempts", ErrCodeGeneration, maxCodeAttempts)
}

func (s *UserService) Get(ctx context.Context, id int64) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (s *UserService) GetEarnings(ctx context.Context, id int64) (*model.Earnings, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.ListByUser(ctx, id, earningsEntriesLimit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return &model.Earnings{
		UserID:           u.ID,
		ReferralEarnings: u.ReferralEarnings,
		TotalReferrals:   u.TotalReferrals,
		Remaining:        u.Headroom(),
		Entries:          entries,
	}, nil
}
