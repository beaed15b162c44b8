package repository

import (
	"context"
	"errors"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrFormNotFound        = errors.New("form not found")
	ErrDuplicateTrackingID = errors.New("tracking id already exists")
)

type FormRepository struct {
	*pg.DB
}

func NewFormRepository(db *pg.DB) *FormRepository {
	return &FormRepository{
		db,
	}
}

func (r *FormRepository) Create(ctx context.Context, f *model.Form) (*model.Form, error) {
	entity := toFormEntity(f)

	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		if pg.IsUniqueViolation(err) {
			return nil, ErrDuplicateTrackingID
		}
		return nil, err
	}

	return toFormModel(entity), nil
}

func (r *FormRepository) GetByID(ctx context.Context, id int64) (*model.Form, error) {
	return r.first(r.Read(ctx).WithContext(ctx).Where("id = ?", id))
}

func (r *FormRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Form, error) {
	return r.first(r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *FormRepository) GetByTrackingID(ctx context.Context, trackingID string) (*model.Form, error) {
	return r.first(r.Read(ctx).WithContext(ctx).Where("tracking_id = ?", trackingID))
}

// UpdatePayment persists the payment fields of f.
func (r *FormRepository) UpdatePayment(ctx context.Context, f *model.Form) error {
	result := r.Write(ctx).WithContext(ctx).
		Model(&FormEntity{}).
		Where("id = ?", f.ID).
		Updates(map[string]interface{}{
			"payment_status":      string(f.PaymentStatus),
			"payment_reference":   f.PaymentReference,
			"payment_amount":      f.PaymentAmount,
			"payment_payer_name":  f.PaymentPayerName,
			"payment_date":        f.PaymentDate,
			"payment_verified_at": f.PaymentVerifiedAt,
			"payment_note":        f.PaymentNote,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrFormNotFound
	}
	return nil
}

// AssignUser links an anonymous form to the user who registered with it.
// It reports false when the form already belongs to someone.
func (r *FormRepository) AssignUser(ctx context.Context, formID, userID int64) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&FormEntity{}).
		Where("id = ? AND user_id IS NULL", formID).
		Update("user_id", userID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// TransitionStatus moves a form from one status to another and reports
// whether the row was in the expected state.
func (r *FormRepository) TransitionStatus(ctx context.Context, id int64, from, to model.FormStatus) (bool, error) {
	result := r.Write(ctx).WithContext(ctx).
		Model(&FormEntity{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ReferenceUsedByOtherForm reports whether a verified form other than
// formID already claimed the payment reference.
func (r *FormRepository) ReferenceUsedByOtherForm(ctx context.Context, reference string, formID int64) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&FormEntity{}).
		Where("payment_reference = ? AND payment_status = ? AND id <> ?",
			reference, string(model.PaymentStatusVerified), formID).
		Count(&count).
		Error
	return count > 0, err
}

func (r *FormRepository) List(ctx context.Context, f model.FormFilter) ([]*model.Form, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&FormEntity{})

	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", stringsOf(f.Statuses))
	}
	if len(f.PaymentStatus) > 0 {
		q = q.Where("payment_status IN ?", stringsOf(f.PaymentStatus))
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

	var entities []*FormEntity
	if err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}
	return toFormModels(entities), total, nil
}

func (r *FormRepository) first(q *gorm.DB) (*model.Form, error) {
	var entity FormEntity
	if err := q.First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFormNotFound
		}
		return nil, err
	}
	return toFormModel(&entity), nil
}

func stringsOf[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
