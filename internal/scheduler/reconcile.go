package scheduler

import (
	"context"
	"errors"

	obslogger "github.com/smallbiznis/filmbilling/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/filmbilling/internal/observability/metrics"
	"go.uber.org/zap"
)

// ReconcilePendingJob re-reads stale non-final payments from the gateway.
// Reconciling touches updated_at, so a payment that stays pending is
// retried once per StaleAfter rather than on every tick.
func (s *Scheduler) ReconcilePendingJob(ctx context.Context) error {
	now := s.clock.Now()
	items, err := s.ledger.ListStalePayments(ctx, s.db, now.Add(-s.cfg.StaleAfter), now.Add(-s.cfg.MaxAge), s.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	var (
		errs      error
		processed int
	)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			errs = errors.Join(errs, err)
			break
		}
		if item.ExtID == nil {
			continue
		}
		if err := s.billingSvc.ReconcilePayment(ctx, *item.ExtID); err != nil {
			obslogger.WithContext(ctx, s.log).Warn("reconcile pending payment failed",
				zap.String("transaction_id", item.ID.String()),
				zap.String("ext_id", *item.ExtID),
				zap.Error(err),
			)
			errs = errors.Join(errs, err)
			continue
		}
		processed++
	}

	obsmetrics.Scheduler().AddBatchProcessed(jobReconcilePending, "transactions", processed)
	s.log.Debug("pending payments reconciled",
		zap.Int("found", len(items)),
		zap.Int("processed", processed),
	)
	return errs
}
