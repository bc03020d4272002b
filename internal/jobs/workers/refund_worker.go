package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"crowdfund-server/internal/contributions/processor"
	"crowdfund-server/internal/jobs"
	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/store"

	"github.com/hibiken/asynq"
)

// RefundWorker issues compensating refunds for contributions whose payment
// settled after a cancellation was queued.
type RefundWorker struct {
	store         *store.Store
	contributions *processor.Processor
	logger        *observability.Logger
}

// NewRefundWorker creates a new refund worker
func NewRefundWorker(store *store.Store, contributions *processor.Processor, logger *observability.Logger) *RefundWorker {
	return &RefundWorker{
		store:         store,
		contributions: contributions,
		logger:        logger,
	}
}

// ProcessCompensatingRefundTask processes a compensating refund task
func (w *RefundWorker) ProcessCompensatingRefundTask(ctx context.Context, task *asynq.Task) error {
	var payload jobs.CompensatingRefundPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		w.logger.Error(ctx, "failed to unmarshal compensating refund payload", err)
		return fmt.Errorf("failed to unmarshal compensating refund payload: %w", err)
	}
	return w.processCompensatingRefund(ctx, payload)
}

func (w *RefundWorker) processCompensatingRefund(ctx context.Context, payload jobs.CompensatingRefundPayload) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "contribution_id", Value: payload.ContributionID.String()},
	)

	contribution, err := w.store.GetContributionByID(ctx, payload.ContributionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.logger.Warn(ctx, "contribution no longer exists, dropping compensating refund")
			return nil
		}
		return fmt.Errorf("failed to load contribution: %w", err)
	}

	remaining := contribution.GrossAmount() - contribution.RefundedAmount
	if remaining <= 0 {
		w.logger.Info(ctx, "contribution already fully refunded, nothing to do")
		return nil
	}

	if _, err := w.contributions.Refund(ctx, contribution.ID, remaining); err != nil {
		// A refund webhook may have landed between the lookup and the
		// gateway call. The rule rejecting it makes the retry a no-op.
		if errors.Is(err, processor.ErrInvalidTransition) ||
			errors.Is(err, processor.ErrRefundExceedsAmount) {
			w.logger.Warn(ctx, "compensating refund no longer applicable, dropping")
			return nil
		}
		return fmt.Errorf("failed to issue compensating refund: %w", err)
	}

	w.logger.Info(ctx, "compensating refund issued")
	return nil
}
