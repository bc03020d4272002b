package processor

import (
	"context"
	"errors"
	"fmt"

	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/payments/gateway"
	"crowdfund-server/internal/store"

	"github.com/google/uuid"
)

// Cancel cancels an unsettled contribution. When a charge is already in
// flight the cancel is queued: the flag is set and the eventual gateway
// outcome resolves it, with a compensating refund if the charge won.
func (p *Processor) Cancel(ctx context.Context, id uuid.UUID, actor uuid.UUID) (store.Contribution, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "contribution_id", Value: id})

	contribution, err := p.store.GetContributionByID(ctx, id)
	if err != nil {
		return store.Contribution{}, err
	}

	if contribution.PaymentStatus == store.PaymentStatusPending {
		result, err := p.store.ApplyContributionTransition(ctx, contribution.CampaignID, store.TransitionWrite{
			ContributionID:  contribution.ID,
			ExpectedVersion: contribution.Version,
			Status:          contribution.Status,
			PaymentStatus:   contribution.PaymentStatus,
			RefundedAmount:  contribution.RefundedAmount,
			ProcessingFee:   contribution.ProcessingFee,
			CancelRequested: true,
			UpdatedBy:       &actor,
		})
		if err != nil {
			return store.Contribution{}, err
		}
		p.logger.Info(ctx, "cancel queued behind in-flight payment")
		return result.Contribution, nil
	}

	change, err := OnAdminCancel(contribution)
	if err != nil {
		if p.ignoreInvalidCommand(ctx, err, "cancel") {
			return contribution, nil
		}
		return store.Contribution{}, err
	}
	if change.NoChange {
		return contribution, nil
	}

	result, err := p.apply(ctx, contribution, change, &actor)
	if err != nil {
		return store.Contribution{}, err
	}
	return result.Contribution, nil
}

// MarkDelivered completes a backed pledge once its reward has shipped
func (p *Processor) MarkDelivered(ctx context.Context, id uuid.UUID, actor uuid.UUID) (store.Contribution, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "contribution_id", Value: id})

	contribution, err := p.store.GetContributionByID(ctx, id)
	if err != nil {
		return store.Contribution{}, err
	}

	change, err := OnMarkDelivered(contribution)
	if err != nil {
		if p.ignoreInvalidCommand(ctx, err, "mark delivered") {
			return contribution, nil
		}
		return store.Contribution{}, err
	}

	result, err := p.apply(ctx, contribution, change, &actor)
	if err != nil {
		return store.Contribution{}, err
	}
	return result.Contribution, nil
}

// RetryFailedPayment returns a failed contribution to pending and starts a
// fresh charge under the same order id, so the gateway outcome lands on the
// same contribution.
func (p *Processor) RetryFailedPayment(ctx context.Context, id uuid.UUID, actor uuid.UUID, successURL, cancelURL string) (CheckoutResult, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "contribution_id", Value: id})

	contribution, err := p.store.GetContributionByID(ctx, id)
	if err != nil {
		return CheckoutResult{}, err
	}

	change, err := OnRetryPayment(contribution)
	if err != nil {
		if p.ignoreInvalidCommand(ctx, err, "retry payment") {
			return CheckoutResult{Contribution: contribution}, nil
		}
		return CheckoutResult{}, err
	}

	result, err := p.apply(ctx, contribution, change, &actor)
	if err != nil {
		return CheckoutResult{}, err
	}
	contribution = result.Contribution

	gw, err := p.registry.Get(contribution.Gateway)
	if err != nil {
		return CheckoutResult{}, err
	}

	contributor, err := p.store.GetContributorByID(ctx, contribution.ContributorID)
	if err != nil {
		return CheckoutResult{}, err
	}

	resp, err := gw.Charge(ctx, gateway.PaymentPayload{
		OrderID:       contribution.UID,
		Amount:        contribution.GrossAmount(),
		Currency:      contribution.Currency,
		Description:   fmt.Sprintf("Retry payment for contribution %s", contribution.UID),
		CustomerEmail: contributor.Email,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to start retry charge", err)
		return CheckoutResult{}, err
	}

	return CheckoutResult{
		Contribution: contribution,
		IsRedirect:   resp.IsRedirect,
		RedirectURL:  resp.RedirectURL,
		ClientData:   resp.Raw,
	}, nil
}

// ignoreInvalidCommand applies the strict-transitions toggle to an admin
// command that is not in the transition table for the current status: strict
// deployments surface the error, others log a warning and leave the
// contribution untouched.
func (p *Processor) ignoreInvalidCommand(ctx context.Context, err error, command string) bool {
	if !errors.Is(err, ErrInvalidTransition) || p.strictTransitions {
		return false
	}
	p.logger.Warn(ctx, fmt.Sprintf("ignoring %s: not applicable to current status", command))
	return true
}

// Refund asks the gateway to return money. Bookkeeping is applied when the
// gateway's refund notification arrives, so a webhook and a command never
// double-count the same refund. Refund validation errors always surface
// regardless of the strict-transitions toggle: acknowledging a refund that
// was never issued would mislead the operator, and the compensating refund
// worker relies on the error to drop tasks that became inapplicable.
func (p *Processor) Refund(ctx context.Context, id uuid.UUID, amount int64) (gateway.RefundResponse, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "contribution_id", Value: id})

	contribution, err := p.store.GetContributionByID(ctx, id)
	if err != nil {
		return gateway.RefundResponse{}, err
	}

	// Dry-run the bookkeeping rule so obviously bad requests never reach
	// the gateway.
	if _, err := OnRefund(contribution, amount); err != nil {
		return gateway.RefundResponse{}, err
	}
	if contribution.TransactionID == nil {
		return gateway.RefundResponse{}, fmt.Errorf("%w: contribution has no gateway transaction", ErrInvalidTransition)
	}

	gw, err := p.registry.Get(contribution.Gateway)
	if err != nil {
		return gateway.RefundResponse{}, err
	}

	resp, err := gw.Refund(ctx, *contribution.TransactionID, amount, contribution.Currency)
	if err != nil {
		p.logger.Error(ctx, "gateway refund failed", err)
		return gateway.RefundResponse{}, err
	}

	p.logger.Info(ctx, fmt.Sprintf("refund %s requested at gateway", resp.RefundID))
	return resp, nil
}

// Trash soft-deletes a contribution. A counted contribution leaving the
// counted set triggers an aggregate recount.
func (p *Processor) Trash(ctx context.Context, id uuid.UUID, actor uuid.UUID) (store.Contribution, error) {
	return p.setTrashed(ctx, id, actor, true)
}

// Restore brings a trashed contribution back
func (p *Processor) Restore(ctx context.Context, id uuid.UUID, actor uuid.UUID) (store.Contribution, error) {
	return p.setTrashed(ctx, id, actor, false)
}

func (p *Processor) setTrashed(ctx context.Context, id uuid.UUID, actor uuid.UUID, trashed bool) (store.Contribution, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "contribution_id", Value: id})

	contribution, err := p.store.SetContributionTrashed(ctx, id, trashed, &actor)
	if err != nil {
		return store.Contribution{}, err
	}

	if contribution.Status == store.ContributionStatusCompleted ||
		contribution.Status == store.ContributionStatusBacked {
		if _, err := p.store.RecountCampaignAggregates(ctx, contribution.CampaignID); err != nil {
			p.logger.Error(ctx, "failed to recount aggregates after trash change", err)
		}
	}
	return contribution, nil
}

// Purge permanently deletes a trashed contribution. Activity rows survive
// with their contribution reference cleared.
func (p *Processor) Purge(ctx context.Context, id uuid.UUID) error {
	ctx = observability.WithFields(ctx, observability.Field{Key: "contribution_id", Value: id})

	contribution, err := p.store.GetContributionByID(ctx, id)
	if err != nil {
		return err
	}
	if contribution.DeletedAt == nil {
		return ErrNotTrashed
	}

	if err := p.store.PurgeContribution(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotTrashed
		}
		return err
	}
	return nil
}

// apply runs a computed change through the transactional transition and
// publishes the outcome.
func (p *Processor) apply(ctx context.Context, contribution store.Contribution, change Change, actor *uuid.UUID) (store.TransitionResult, error) {
	write := store.TransitionWrite{
		ContributionID:  contribution.ID,
		ExpectedVersion: contribution.Version,
		Status:          change.Status,
		PaymentStatus:   change.PaymentStatus,
		RefundedAmount:  change.RefundedAmount,
		ProcessingFee:   contribution.ProcessingFee,
		RecountCampaign: change.Recount || contribution.Counted() != (change.Status == store.ContributionStatusCompleted || change.Status == store.ContributionStatusBacked),
		UpdatedBy:       actor,
	}
	if change.ActivityType != "" {
		write.Activities = append(write.Activities, store.InsertActivityParams{
			Type:           change.ActivityType,
			CampaignID:     &contribution.CampaignID,
			ContributionID: &contribution.ID,
			UserID:         actor,
			Data: store.JSONB{
				"amount":   contribution.GrossAmount(),
				"currency": contribution.Currency,
				"gateway":  contribution.Gateway,
			},
		})
	}

	result, err := p.store.ApplyContributionTransition(ctx, contribution.CampaignID, write)
	if err != nil {
		return store.TransitionResult{}, err
	}

	p.publishTransitionOutcome(ctx, result)
	return result, nil
}
