package processor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/nimasrn/dv-referral-ledger/pkg/prom"
)

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type OutboxStore interface {
	ClaimPending(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
	MarkPublished(ctx context.Context, ids []int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64, cause error) error
}

type Publisher interface {
	PublishJSON(ctx context.Context, data interface{}, metadata map[string]string) (string, error)
}

// OutboxRelay moves committed outbox events onto the reward queue. Delivery
// is at least once: an event published right before a failed commit is
// published again, and the processor's idempotency absorbs the repeat.
type OutboxRelay struct {
	tx        Transactor
	outbox    OutboxStore
	publisher Publisher
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewOutboxRelay(tx Transactor, outbox OutboxStore, publisher Publisher, interval time.Duration, batchSize int) *OutboxRelay {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		tx:        tx,
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// RelayOnce publishes one batch and returns how many events made it out.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	var published int
	err := r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		events, err := r.outbox.ClaimPending(ctx, r.batchSize)
		if err != nil {
			return fmt.Errorf("claim outbox events: %w", err)
		}

		ids := make([]int64, 0, len(events))
		for _, e := range events {
			msg := model.RewardEvent{EventID: e.ID, EventType: e.EventType, FormID: e.AggregateID}
			meta := map[string]string{
				"event_type": string(e.EventType),
				"event_id":   strconv.FormatInt(e.ID, 10),
			}
			if _, err := r.publisher.PublishJSON(ctx, msg, meta); err != nil {
				prom.IncOutboxPublishError()
				logger.Warn("outbox publish failed", "event_id", e.ID, "attempts", e.Attempts+1, "error", err)
				if markErr := r.outbox.MarkFailed(ctx, e.ID, err); markErr != nil {
					return fmt.Errorf("mark outbox event failed: %w", markErr)
				}
				continue
			}
			ids = append(ids, e.ID)
		}

		if len(ids) == 0 {
			return nil
		}
		if err := r.outbox.MarkPublished(ctx, ids, r.now()); err != nil {
			return fmt.Errorf("mark outbox events published: %w", err)
		}
		published = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}
	if published > 0 {
		prom.IncOutboxPublished(published)
		logger.Debug("outbox batch relayed", "published", published)
	}
	return published, nil
}

// Run relays on every tick until ctx is done. A full batch is followed by
// another pass right away.
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		for {
			n, err := r.RelayOnce(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error("outbox relay failed", "error", err)
				}
				break
			}
			if n < r.batchSize {
				break
			}
		}
	}
}
