package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/internal/queue"
	"github.com/nimasrn/dv-referral-ledger/internal/services"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/nimasrn/dv-referral-ledger/pkg/prom"
)

const (
	outcomeCredited  = "credited"
	outcomeNoop      = "noop"
	outcomeDuplicate = "duplicate"
	outcomePermanent = "permanent_failure"
	outcomeRetry     = "retry"
)

type RewardProcessor interface {
	ProcessReferralReward(ctx context.Context, formID int64) (*model.ReferralResult, error)
}

// ReferralEventProcessor turns reward queue messages into
// ProcessReferralReward calls. Returning nil ACKs the message; an error
// leaves it pending for redelivery until the queue dead-letters it.
type ReferralEventProcessor struct {
	rewards     RewardProcessor
	idempotency *IdempotencyService
}

func NewReferralEventProcessor(rewards RewardProcessor, idempotency *IdempotencyService) *ReferralEventProcessor {
	return &ReferralEventProcessor{
		rewards:     rewards,
		idempotency: idempotency,
	}
}

func (p *ReferralEventProcessor) GetType() string {
	return "referral_reward"
}

func (p *ReferralEventProcessor) Process(ctx context.Context, msg *queue.Message) error {
	start := time.Now()

	var event model.RewardEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil || event.EventID <= 0 || event.FormID <= 0 {
		logger.Error("dropping malformed reward event", "queue_id", msg.ID, "error", err)
		prom.ObserveRewardEvent("unknown", outcomePermanent, time.Since(start).Seconds())
		return nil
	}
	eventID := strconv.FormatInt(event.EventID, 10)
	eventType := string(event.EventType)

	pc, err := p.idempotency.AcquireProcessingLock(ctx, eventID)
	switch {
	case errors.Is(err, ErrAlreadyProcessed):
		prom.ObserveRewardEvent(eventType, outcomeDuplicate, time.Since(start).Seconds())
		return nil
	case errors.Is(err, ErrMaxRetriesExceeded):
		prom.ObserveRewardEvent(eventType, outcomeRetry, time.Since(start).Seconds())
		return err
	case errors.Is(err, ErrLockAcquireFailed):
		return fmt.Errorf("event %s is being processed by another consumer", eventID)
	case err != nil:
		return err
	}
	defer func() { _ = p.idempotency.ReleaseLock(context.WithoutCancel(ctx), pc) }()

	res, err := p.rewards.ProcessReferralReward(ctx, event.FormID)
	if err != nil {
		if errors.Is(err, services.ErrFormNotFound) || errors.Is(err, services.ErrReferrerNotFound) {
			logger.Error("reward event cannot succeed, acknowledging",
				"event_id", eventID, "form_id", event.FormID, "error", err)
			if markErr := p.idempotency.MarkSuccess(ctx, pc); markErr != nil {
				logger.Warn("failed to mark event processed", "event_id", eventID, "error", markErr)
			}
			prom.ObserveRewardEvent(eventType, outcomePermanent, time.Since(start).Seconds())
			return nil
		}

		if markErr := p.idempotency.MarkFailure(ctx, pc, err); markErr != nil {
			logger.Warn("failed to record retry", "event_id", eventID, "error", markErr)
		}
		prom.ObserveRewardEvent(eventType, outcomeRetry, time.Since(start).Seconds())
		return fmt.Errorf("process reward for form %d: %w", event.FormID, err)
	}

	if markErr := p.idempotency.MarkSuccess(ctx, pc); markErr != nil {
		logger.Warn("failed to mark event processed", "event_id", eventID, "error", markErr)
	}

	outcome := outcomeNoop
	if res.Message == model.MsgRewardProcessed {
		outcome = outcomeCredited
	}
	prom.ObserveRewardEvent(eventType, outcome, time.Since(start).Seconds())
	logger.Info("reward event processed",
		"event_id", eventID,
		"event_type", eventType,
		"form_id", event.FormID,
		"attempt", msg.Attempts,
		"result", res.Message)
	return nil
}
