package email

import (
	"context"
	"errors"
	"fmt"

	"crowdfund-server/internal/money"
	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/store"
	"crowdfund-server/internal/workers"

	"github.com/google/uuid"
)

// NotificationStore is the store surface the email processor needs.
type NotificationStore interface {
	GetContributionByID(ctx context.Context, id uuid.UUID) (store.Contribution, error)
	GetContributorByID(ctx context.Context, id uuid.UUID) (store.Contributor, error)
	GetCampaignByID(ctx context.Context, id uuid.UUID) (store.Campaign, error)
}

// EmailEventProcessor implements workers.EventProcessor for contribution and
// campaign events, sending the matching notification email.
type EmailEventProcessor struct {
	emailService *EmailService
	store        NotificationStore
	logger       *observability.Logger
}

// NewEmailEventProcessor creates a new email event processor.
func NewEmailEventProcessor(
	emailService *EmailService,
	store NotificationStore,
	logger *observability.Logger,
) workers.EventProcessor {
	return &EmailEventProcessor{
		emailService: emailService,
		store:        store,
		logger:       logger,
	}
}

func (p *EmailEventProcessor) Name() string {
	return "email"
}

// Process routes an event to the matching email. Events the processor does
// not handle are acknowledged so the offset commits.
func (p *EmailEventProcessor) Process(ctx context.Context, event workers.EventMessage) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "event_id", Value: event.ID},
		observability.Field{Key: "event_type", Value: event.Type},
		observability.Field{Key: "campaign_id", Value: event.CampaignID},
	)

	switch event.Type {
	case store.ActivityDonationCompleted, store.ActivityPledgeBacked:
		return p.notifyContributor(ctx, event, func(ctx context.Context, c store.Contributor, cp store.Campaign, ct store.Contribution) error {
			return p.emailService.SendContributionReceiptEmail(ctx, c.Email, c.Name, cp.Title,
				money.FormatDisplay(ct.GrossAmount(), ct.Currency))
		})

	case store.ActivityDonationFailed, store.ActivityPledgeFailed:
		return p.notifyContributor(ctx, event, func(ctx context.Context, c store.Contributor, cp store.Campaign, ct store.Contribution) error {
			return p.emailService.SendPaymentFailedEmail(ctx, c.Email, c.Name, cp.Title,
				money.FormatDisplay(ct.GrossAmount(), ct.Currency), "")
		})

	case store.ActivityDonationCancelled, store.ActivityPledgeCancelled:
		return p.notifyContributor(ctx, event, func(ctx context.Context, c store.Contributor, cp store.Campaign, ct store.Contribution) error {
			return p.emailService.SendContributionCancelledEmail(ctx, c.Email, c.Name, cp.Title,
				money.FormatDisplay(ct.GrossAmount(), ct.Currency))
		})

	case store.ActivityDonationRefunded, store.ActivityDonationPartiallyRefunded,
		store.ActivityPledgeRefunded, store.ActivityPledgePartiallyRefunded:
		return p.notifyContributor(ctx, event, func(ctx context.Context, c store.Contributor, cp store.Campaign, ct store.Contribution) error {
			return p.emailService.SendRefundIssuedEmail(ctx, c.Email, c.Name, cp.Title,
				money.FormatDisplay(ct.RefundedAmount, ct.Currency))
		})

	case store.ActivityPledgeCompleted:
		return p.notifyContributor(ctx, event, func(ctx context.Context, c store.Contributor, cp store.Campaign, ct store.Contribution) error {
			return p.emailService.SendRewardDeliveredEmail(ctx, c.Email, c.Name, cp.Title)
		})

	case store.ActivityCampaignGoalReached:
		return p.notifyCreator(ctx, event, func(ctx context.Context, creator store.Contributor, cp store.Campaign) error {
			return p.emailService.SendGoalReachedEmail(ctx, creator.Email, creator.Name, cp.Title,
				money.FormatDisplay(cp.GoalAmount, cp.Currency))
		})

	case store.ActivityCampaignEnded:
		return p.notifyCreator(ctx, event, func(ctx context.Context, creator store.Contributor, cp store.Campaign) error {
			return p.emailService.SendCampaignEndedEmail(ctx, creator.Email, creator.Name, cp.Title,
				money.FormatDisplay(cp.RaisedAmount, cp.Currency))
		})

	default:
		return nil
	}
}

func (p *EmailEventProcessor) notifyContributor(
	ctx context.Context,
	event workers.EventMessage,
	send func(ctx context.Context, contributor store.Contributor, campaign store.Campaign, contribution store.Contribution) error,
) error {
	if event.ContributionID == nil {
		p.logger.Warn(ctx, "event has no contribution id, skipping")
		return nil
	}
	contributionID, err := uuid.Parse(*event.ContributionID)
	if err != nil {
		p.logger.Warn(ctx, "event carries an invalid contribution id, skipping")
		return nil
	}

	contribution, err := p.store.GetContributionByID(ctx, contributionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn(ctx, "contribution no longer exists, skipping")
			return nil
		}
		return fmt.Errorf("failed to load contribution: %w", err)
	}

	contributor, err := p.store.GetContributorByID(ctx, contribution.ContributorID)
	if err != nil {
		return fmt.Errorf("failed to load contributor: %w", err)
	}

	campaign, err := p.store.GetCampaignByID(ctx, contribution.CampaignID)
	if err != nil {
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	return send(ctx, contributor, campaign, contribution)
}

func (p *EmailEventProcessor) notifyCreator(
	ctx context.Context,
	event workers.EventMessage,
	send func(ctx context.Context, creator store.Contributor, campaign store.Campaign) error,
) error {
	campaignID, err := uuid.Parse(event.CampaignID)
	if err != nil {
		p.logger.Warn(ctx, "event carries an invalid campaign id, skipping")
		return nil
	}

	campaign, err := p.store.GetCampaignByID(ctx, campaignID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			p.logger.Warn(ctx, "campaign no longer exists, skipping")
			return nil
		}
		return fmt.Errorf("failed to load campaign: %w", err)
	}

	creator, err := p.store.GetContributorByID(ctx, campaign.CreatorID)
	if err != nil {
		return fmt.Errorf("failed to load campaign creator: %w", err)
	}

	return send(ctx, creator, campaign)
}
