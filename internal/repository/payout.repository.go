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
	ErrPayoutNotFound = errors.New("payout not found")
)

type PayoutRepository struct {
	*pg.DB
}

func NewPayoutRepository(db *pg.DB) *PayoutRepository {
	return &PayoutRepository{
		db,
	}
}

func (r *PayoutRepository) Create(ctx context.Context, p *model.Payout) (*model.Payout, error) {
	entity := toPayoutEntity(p)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toPayoutModel(entity), nil
}

func (r *PayoutRepository) GetByID(ctx context.Context, id int64) (*model.Payout, error) {
	return r.first(r.Read(ctx).WithContext(ctx).Where("id = ?", id))
}

func (r *PayoutRepository) GetByIDForUpdate(ctx context.Context, id int64) (*model.Payout, error) {
	return r.first(r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

// UpdateStatus moves the payout from one status to another. The stamp
// column is set to at: reviewed_at for approve/reject, paid_at for paid.
func (r *PayoutRepository) UpdateStatus(ctx context.Context, id int64, from, to model.PayoutStatus, note string, at time.Time) error {
	updates := map[string]interface{}{"status": string(to)}
	switch to {
	case model.PayoutStatusPaid:
		updates["paid_at"] = at
	default:
		updates["reviewed_at"] = at
	}
	if note != "" {
		updates["note"] = note
	}

	result := r.Write(ctx).WithContext(ctx).
		Model(&PayoutEntity{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPayoutNotFound
	}
	return nil
}

// HasOpen reports whether the user has a payout that is requested or approved.
func (r *PayoutRepository) HasOpen(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&PayoutEntity{}).
		Where("user_id = ? AND status IN ?", userID,
			[]string{string(model.PayoutStatusRequested), string(model.PayoutStatusApproved)}).
		Count(&count).
		Error
	return count > 0, err
}

func (r *PayoutRepository) List(ctx context.Context, f model.PayoutFilter) ([]*model.Payout, int64, error) {
	q := r.Read(ctx).WithContext(ctx).Model(&PayoutEntity{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", stringsOf(f.Statuses))
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

	var entities []*PayoutEntity
	if err := q.Order("id DESC").Limit(limit).Offset(offset).Find(&entities).Error; err != nil {
		return nil, 0, err
	}
	return toPayoutModels(entities), total, nil
}

func (r *PayoutRepository) first(q *gorm.DB) (*model.Payout, error) {
	var entity PayoutEntity
	if err := q.First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return toPayoutModel(&entity), nil
}
