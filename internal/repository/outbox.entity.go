package repository

import (
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
)

type OutboxEventEntity struct {
	ID          int64      `db:"id"           gorm:"primaryKey;autoIncrement;column:id"`
	EventType   string     `db:"event_type"   gorm:"column:event_type;not null"`
	AggregateID int64      `db:"aggregate_id" gorm:"column:aggregate_id;not null;index"`
	Payload     []byte     `db:"payload"      gorm:"column:payload"`
	Status      string     `db:"status"       gorm:"column:status;not null;default:pending;index"`
	Attempts    int        `db:"attempts"     gorm:"column:attempts;not null;default:0"`
	LastError   string     `db:"last_error"   gorm:"column:last_error;not null;default:''"`
	CreatedAt   time.Time  `db:"created_at"   gorm:"column:created_at;autoCreateTime"`
	PublishedAt *time.Time `db:"published_at" gorm:"column:published_at"`
}

func (OutboxEventEntity) TableName() string {
	return "outbox_events"
}

func toOutboxEventEntity(m *model.OutboxEvent) *OutboxEventEntity {
	if m == nil {
		return nil
	}
	return &OutboxEventEntity{
		ID:          m.ID,
		EventType:   string(m.EventType),
		AggregateID: m.AggregateID,
		Payload:     m.Payload,
		Status:      string(m.Status),
		Attempts:    m.Attempts,
		LastError:   m.LastError,
		CreatedAt:   m.CreatedAt,
		PublishedAt: m.PublishedAt,
	}
}

func toOutboxEventModel(e *OutboxEventEntity) *model.OutboxEvent {
	if e == nil {
		return nil
	}
	return &model.OutboxEvent{
		ID:          e.ID,
		EventType:   model.EventType(e.EventType),
		AggregateID: e.AggregateID,
		Payload:     e.Payload,
		Status:      model.OutboxStatus(e.Status),
		Attempts:    e.Attempts,
		LastError:   e.LastError,
		CreatedAt:   e.CreatedAt,
		PublishedAt: e.PublishedAt,
	}
}

func toOutboxEventModels(entities []*OutboxEventEntity) []*model.OutboxEvent {
	if entities == nil {
		return nil
	}
	models := make([]*model.OutboxEvent, len(entities))
	for i, e := range entities {
		models[i] = toOutboxEventModel(e)
	}
	return models
}
