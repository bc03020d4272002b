package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"crowdfund-server/internal/money"
	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/payments/gateway"
	"crowdfund-server/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Processor owns the contribution lifecycle: checkout, webhook-driven
// transitions and admin commands.
type Processor struct {
	store             ContributionStore
	registry          *gateway.Registry
	publisher         ActivityPublisher
	jobs              JobEnqueuer
	feePercent        decimal.Decimal
	strictTransitions bool
	logger            *observability.Logger
}

func New(store ContributionStore, registry *gateway.Registry, publisher ActivityPublisher,
	jobs JobEnqueuer, feePercent decimal.Decimal, strictTransitions bool,
	logger *observability.Logger) *Processor {
	return &Processor{
		store:             store,
		registry:          registry,
		publisher:         publisher,
		jobs:              jobs,
		feePercent:        feePercent,
		strictTransitions: strictTransitions,
		logger:            logger,
	}
}

// CreateContributionParams carries a checkout request for either kind
type CreateContributionParams struct {
	CampaignID     uuid.UUID
	ContributorID  uuid.UUID
	Kind           string
	RewardID       *uuid.UUID
	Amount         int64
	BonusAmount    int64
	ShippingAmount int64
	CoverFees      bool
	Gateway        string
	PaymentMethod  string
	SuccessURL     string
	CancelURL      string
}

// CheckoutResult is what the contributor needs to finish paying
type CheckoutResult struct {
	Contribution store.Contribution
	IsRedirect   bool
	RedirectURL  string
	ClientData   json.RawMessage
}

// CreateContribution creates a contribution in pending and starts its payment
// with the chosen gateway. Pledges on gateways with stored payment methods
// save the method first and are charged later; everything else is charged
// immediately.
func (p *Processor) CreateContribution(ctx context.Context, params CreateContributionParams) (CheckoutResult, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "campaign_id", Value: params.CampaignID},
		observability.Field{Key: "gateway", Value: params.Gateway},
	)

	campaign, err := p.store.GetCampaignByID(ctx, params.CampaignID)
	if err != nil {
		return CheckoutResult{}, err
	}
	if campaign.Status != store.CampaignStatusPublished || campaign.EndedAt != nil {
		return CheckoutResult{}, ErrCampaignNotAcceptingContributions
	}

	gw, err := p.registry.Get(params.Gateway)
	if err != nil {
		return CheckoutResult{}, err
	}

	contributor, err := p.store.GetContributorByID(ctx, params.ContributorID)
	if err != nil {
		return CheckoutResult{}, err
	}

	var recoveryFee int64
	if params.CoverFees {
		recoveryFee = money.RecoveryFee(params.Amount+params.BonusAmount+params.ShippingAmount, p.feePercent)
	}

	contribution, err := p.store.CreateContribution(ctx, store.CreateContributionParams{
		UID:            newContributionUID(),
		CampaignID:     params.CampaignID,
		ContributorID:  params.ContributorID,
		Kind:           params.Kind,
		RewardID:       params.RewardID,
		Amount:         params.Amount,
		BonusAmount:    params.BonusAmount,
		ShippingAmount: params.ShippingAmount,
		RecoveryFee:    recoveryFee,
		Currency:       campaign.Currency,
		Gateway:        params.Gateway,
		PaymentMethod:  params.PaymentMethod,
		CreatedBy:      &params.ContributorID,
	})
	if err != nil {
		return CheckoutResult{}, err
	}

	payload := gateway.PaymentPayload{
		OrderID:       contribution.UID,
		Amount:        contribution.GrossAmount(),
		Currency:      contribution.Currency,
		Description:   fmt.Sprintf("Contribution to %s", campaign.Title),
		CustomerEmail: contributor.Email,
		SuccessURL:    params.SuccessURL,
		CancelURL:     params.CancelURL,
	}

	var resp gateway.PaymentResponse
	if params.Kind == store.ContributionKindPledge {
		resp, err = gw.SavePaymentMethod(ctx, payload)
		if errors.Is(err, gateway.ErrNotSupported) {
			resp, err = gw.Charge(ctx, payload)
		}
	} else {
		resp, err = gw.Charge(ctx, payload)
	}
	if err != nil {
		p.logger.Error(ctx, "failed to start payment for contribution", err)
		return CheckoutResult{}, err
	}

	return CheckoutResult{
		Contribution: contribution,
		IsRedirect:   resp.IsRedirect,
		RedirectURL:  resp.RedirectURL,
		ClientData:   resp.Raw,
	}, nil
}

// GetContribution retrieves a single contribution
func (p *Processor) GetContribution(ctx context.Context, id uuid.UUID) (store.Contribution, error) {
	return p.store.GetContributionByID(ctx, id)
}

// ContributionStatus is the public view of a contribution, safe to show on a
// return-from-redirect page without authentication.
type ContributionStatus struct {
	UID           string `json:"uid"`
	Kind          string `json:"kind"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
}

// GetContributionStatusByUID looks a contribution up by its public uid
func (p *Processor) GetContributionStatusByUID(ctx context.Context, uid string) (ContributionStatus, error) {
	contribution, err := p.store.GetContributionByUID(ctx, uid)
	if err != nil {
		return ContributionStatus{}, err
	}
	return ContributionStatus{
		UID:           contribution.UID,
		Kind:          contribution.Kind,
		Status:        contribution.Status,
		PaymentStatus: contribution.PaymentStatus,
		Amount:        contribution.GrossAmount(),
		Currency:      contribution.Currency,
	}, nil
}

// ApplyGatewayEvent applies a verified, mapped webhook event to the
// contribution it references. Events for unknown orders and duplicates are
// acknowledged and dropped so gateways stop retrying them.
func (p *Processor) ApplyGatewayEvent(ctx context.Context, event gateway.WebhookEvent) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "gateway", Value: event.Gateway},
		observability.Field{Key: "order_id", Value: event.OrderID},
		observability.Field{Key: "event_type", Value: string(event.Type)},
		observability.Field{Key: "event_status", Value: string(event.Status)},
	)

	if event.Type == gateway.EventTypeUnknown {
		p.logger.Info(ctx, "ignoring unrecognized gateway event")
		return nil
	}
	if event.OrderID == "" {
		p.logger.Info(ctx, "ignoring gateway event without order id")
		return nil
	}

	contribution, err := p.store.GetContributionByUID(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Info(ctx, "ignoring gateway event for unknown order")
			return nil
		}
		return err
	}

	if event.Metadata[gateway.MetaRequiresVerification] == "true" {
		event, err = p.verifyEvent(ctx, event)
		if err != nil {
			return err
		}
	}

	return p.applyWithRetry(ctx, contribution, event)
}

// verifyEvent resolves an ambiguous event against the gateway's
// authoritative status endpoint.
func (p *Processor) verifyEvent(ctx context.Context, event gateway.WebhookEvent) (gateway.WebhookEvent, error) {
	gw, err := p.registry.Get(event.Gateway)
	if err != nil {
		return gateway.WebhookEvent{}, err
	}

	status, err := gw.Verify(ctx, event.TransactionID)
	if err != nil {
		p.logger.Error(ctx, "failed to verify ambiguous gateway event", err)
		return gateway.WebhookEvent{}, err
	}

	event.Status = status.Status
	if status.Amount > 0 {
		event.Amount = status.Amount
	}
	delete(event.Metadata, gateway.MetaRequiresVerification)
	return event, nil
}

// applyWithRetry computes and applies the transition, retrying once when a
// concurrent writer advanced the contribution version.
func (p *Processor) applyWithRetry(ctx context.Context, contribution store.Contribution, event gateway.WebhookEvent) error {
	err := p.applyEvent(ctx, contribution, event)
	if !errors.Is(err, store.ErrVersionConflict) {
		return err
	}

	p.logger.Warn(ctx, "contribution version conflict, retrying transition")
	contribution, err = p.store.GetContributionByUID(ctx, event.OrderID)
	if err != nil {
		return err
	}
	return p.applyEvent(ctx, contribution, event)
}

func (p *Processor) applyEvent(ctx context.Context, contribution store.Contribution, event gateway.WebhookEvent) error {
	change, compensate, err := p.changeForEvent(ctx, contribution, event)
	if err != nil {
		// Gateways retry on non-2xx. A stale or inapplicable event is
		// acknowledged and dropped; only transport and store failures
		// propagate.
		if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrRefundExceedsAmount) {
			p.logger.Warn(ctx, fmt.Sprintf("dropping gateway event: %s/%s not applicable to status %s",
				event.Type, event.Status, contribution.Status))
			return nil
		}
		return err
	}
	if change.NoChange {
		p.logger.Info(ctx, "gateway event already applied, dropping duplicate")
		return nil
	}

	write := store.TransitionWrite{
		ContributionID:  contribution.ID,
		ExpectedVersion: contribution.Version,
		Status:          change.Status,
		PaymentStatus:   change.PaymentStatus,
		RefundedAmount:  change.RefundedAmount,
		ProcessingFee:   contribution.ProcessingFee,
		CancelRequested: contribution.CancelRequested && change.Status != store.ContributionStatusCancelled,
		RecountCampaign: change.Recount,
	}
	if event.TransactionID != "" {
		transactionID := event.TransactionID
		write.TransactionID = &transactionID
	}
	if change.ActivityType != "" {
		write.Activities = append(write.Activities, store.InsertActivityParams{
			Type:           change.ActivityType,
			CampaignID:     &contribution.CampaignID,
			ContributionID: &contribution.ID,
			UserID:         &contribution.ContributorID,
			Data: store.JSONB{
				"amount":   contribution.GrossAmount(),
				"currency": contribution.Currency,
				"gateway":  contribution.Gateway,
			},
		})
	}

	result, err := p.store.ApplyContributionTransition(ctx, contribution.CampaignID, write)
	if err != nil {
		return err
	}

	if compensate {
		if err := p.jobs.EnqueueCompensatingRefund(ctx, contribution.ID); err != nil {
			p.logger.Error(ctx, "failed to enqueue compensating refund", err)
		}
	}

	p.publishTransitionOutcome(ctx, result)
	return nil
}

// changeForEvent picks the lifecycle rule for an event. The second return
// reports whether a compensating refund must be enqueued: a queued cancel
// races the payment, so a success landing after the cancel request settles
// as cancelled and the captured money is returned.
func (p *Processor) changeForEvent(ctx context.Context, contribution store.Contribution, event gateway.WebhookEvent) (Change, bool, error) {
	switch event.Type {
	case gateway.EventTypePayment:
		switch event.Status {
		case gateway.EventStatusSuccess:
			if contribution.CancelRequested {
				change, err := OnCancelAfterCapture(contribution)
				return change, err == nil && !change.NoChange, err
			}
			change, err := OnPaymentSuccess(contribution)
			return change, false, err
		case gateway.EventStatusPending:
			change, err := OnPaymentPending(contribution)
			return change, false, err
		case gateway.EventStatusFailed:
			change, err := OnPaymentFailed(contribution)
			return change, false, err
		case gateway.EventStatusCancelled:
			change, err := OnPaymentCancelled(contribution)
			return change, false, err
		}
	case gateway.EventTypeSetup:
		if event.Status == gateway.EventStatusSuccess {
			change, err := OnSetupSuccess(contribution)
			return change, false, err
		}
		change, err := OnPaymentFailed(contribution)
		return change, false, err
	case gateway.EventTypeRefund:
		if event.Status == gateway.EventStatusSuccess {
			change, err := OnRefundTotal(contribution, event.Amount)
			return change, false, err
		}
		p.logger.Info(ctx, "ignoring unsuccessful refund event")
		return Change{NoChange: true}, false, nil
	}
	return Change{NoChange: true}, false, nil
}

// publishTransitionOutcome persists milestone activities claimed by the
// transition and fans everything out to the notification topic. Publish
// failures are logged, not returned: the transition is already committed.
func (p *Processor) publishTransitionOutcome(ctx context.Context, result store.TransitionResult) {
	activities := result.Activities

	if result.HalfMilestone {
		activity, err := p.store.InsertActivity(ctx, store.InsertActivityParams{
			Type:       store.ActivityCampaignHalfMilestoneReached,
			CampaignID: &result.Campaign.ID,
			Data:       store.JSONB{"raised_amount": result.Campaign.RaisedAmount},
		})
		if err != nil {
			p.logger.Error(ctx, "failed to record half milestone activity", err)
		} else {
			activities = append(activities, activity)
		}
	}
	if result.GoalReached {
		activity, err := p.store.InsertActivity(ctx, store.InsertActivityParams{
			Type:       store.ActivityCampaignGoalReached,
			CampaignID: &result.Campaign.ID,
			Data:       store.JSONB{"raised_amount": result.Campaign.RaisedAmount},
		})
		if err != nil {
			p.logger.Error(ctx, "failed to record goal reached activity", err)
		} else {
			activities = append(activities, activity)
		}
	}

	for _, activity := range activities {
		if err := p.publisher.PublishActivity(ctx, activity); err != nil {
			p.logger.Error(ctx, "failed to publish activity event", err)
		}
	}
}

func newContributionUID() string {
	return "ctb-" + uuid.New().String()
}
