package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/nimasrn/dv-referral-ledger/pkg/prom"
	"github.com/robfig/cron/v3"
)

type DriftFinder interface {
	FindDrift(ctx context.Context) ([]*model.Drift, error)
}

// LedgerReconciler compares each user's cached earnings against the sum of
// their ledger entries on a cron schedule. It only reports; it never repairs.
type LedgerReconciler struct {
	ledger   DriftFinder
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
}

func NewLedgerReconciler(ledger DriftFinder, schedule string) *LedgerReconciler {
	if schedule == "" {
		schedule = "@every 1h"
	}
	return &LedgerReconciler{
		ledger:   ledger,
		schedule: schedule,
		timeout:  time.Minute,
		cron:     cron.New(),
	}
}

func (r *LedgerReconciler) Reconcile(ctx context.Context) ([]*model.Drift, error) {
	drift, err := r.ledger.FindDrift(ctx)
	if err != nil {
		return nil, fmt.Errorf("find ledger drift: %w", err)
	}

	prom.SetLedgerDrift(r.schedule, len(drift))
	for _, d := range drift {
		logger.Error("ledger drift detected",
			"user_id", d.UserID, "cached", d.Cached, "ledger_sum", d.LedgerSum)
	}
	if len(drift) == 0 {
		logger.Info("ledger reconciled", "schedule", r.schedule)
	}
	return drift, nil
}

// Start registers the job and starts the scheduler in its own goroutine.
func (r *LedgerReconciler) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		if _, err := r.Reconcile(runCtx); err != nil {
			logger.Error("ledger reconcile failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid reconcile schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	logger.Info("ledger reconciler scheduled", "schedule", r.schedule)
	return nil
}

// Stop waits for a running reconcile to finish.
func (r *LedgerReconciler) Stop() {
	<-r.cron.Stop().Done()
}
