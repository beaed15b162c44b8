package repository

import (
	"context"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OutboxRepository struct {
	*pg.DB
}

func NewOutboxRepository(db *pg.DB) *OutboxRepository {
	return &OutboxRepository{
		db,
	}
}

func (r *OutboxRepository) Create(ctx context.Context, e *model.OutboxEvent) (*model.OutboxEvent, error) {
	entity := toOutboxEventEntity(e)
	if entity.Status == "" {
		entity.Status = string(model.OutboxStatusPending)
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toOutboxEventModel(entity), nil
}

// ClaimPending locks up to limit pending events, oldest first. Rows locked by
// another relay are skipped.
func (r *OutboxRepository) ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	var entities []*OutboxEventEntity
	err := r.Write(ctx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ?", string(model.OutboxStatusPending)).
		Order("id").
		Limit(limit).
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toOutboxEventModels(entities), nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.Write(ctx).WithContext(ctx).
		Model(&OutboxEventEntity{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":       string(model.OutboxStatusPublished),
			"published_at": at,
			"attempts":     gorm.Expr("attempts + 1"),
		}).
		Error
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, cause error) error {
	msg := cause.Error()
	if len(msg) > 500 {
		msg = msg[:500]
	}
	return r.Write(ctx).WithContext(ctx).
		Model(&OutboxEventEntity{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
		}).
		Error
}

func (r *OutboxRepository) ListByAggregate(ctx context.Context, aggregateID int64) ([]*model.OutboxEvent, error) {
	var entities []*OutboxEventEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("id").
		Find(&entities).
		Error
	if err != nil {
		return nil, err
	}
	return toOutboxEventModels(entities), nil
}

func (r *OutboxRepository) CountPending(ctx context.Context) (int64, error) {
	var count int64
	err := r.Read(ctx).WithContext(ctx).
		Model(&OutboxEventEntity{}).
		Where("status = ?", string(model.OutboxStatusPending)).
		Count(&count).
		Error
	return count, err
}
