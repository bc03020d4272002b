package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/store"

	"github.com/google/uuid"
)

var ErrInvalidStatusChange = errors.New("invalid campaign status change")

// CampaignStore is the store surface the campaign processor needs
type CampaignStore interface {
	GetCampaignByID(ctx context.Context, id uuid.UUID) (store.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status string) (store.Campaign, error)
	UpdateCampaignDeadline(ctx context.Context, id uuid.UUID, endDate *time.Time) (store.Campaign, error)
	ListCampaignsPastDeadline(ctx context.Context, now time.Time, limit int) ([]store.Campaign, error)
	MarkCampaignEnded(ctx context.Context, id uuid.UUID) (store.Campaign, error)
	InsertActivity(ctx context.Context, params store.InsertActivityParams) (store.Activity, error)
	ListActivitiesByCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]store.Activity, error)
}

// ActivityPublisher fans persisted activities out to the notification topic
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, activity store.Activity) error
}

// Processor owns campaign moderation and deadline administration
type Processor struct {
	store     CampaignStore
	publisher ActivityPublisher
	logger    *observability.Logger
}

func New(store CampaignStore, publisher ActivityPublisher, logger *observability.Logger) *Processor {
	return &Processor{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// GetCampaign retrieves a single campaign
func (p *Processor) GetCampaign(ctx context.Context, id uuid.UUID) (store.Campaign, error) {
	return p.store.GetCampaignByID(ctx, id)
}

// ListActivities returns a campaign's activity feed
func (p *Processor) ListActivities(ctx context.Context, id uuid.UUID, limit int) ([]store.Activity, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return p.store.ListActivitiesByCampaign(ctx, id, limit)
}

// ChangeStatus moves a campaign through the moderation flow and records the
// derived activity.
func (p *Processor) ChangeStatus(ctx context.Context, id uuid.UUID, target string, actor uuid.UUID) (store.Campaign, error) {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "campaign_id", Value: id},
		observability.Field{Key: "target_status", Value: target},
	)

	campaign, err := p.store.GetCampaignByID(ctx, id)
	if err != nil {
		return store.Campaign{}, err
	}

	if !ValidStatusChange(campaign.Status, target) {
		return store.Campaign{}, fmt.Errorf("%w: %s to %s", ErrInvalidStatusChange, campaign.Status, target)
	}
	if campaign.Status == target {
		// already there, nothing to record
		return campaign, nil
	}
	activityType := DeriveStatusActivity(campaign.Status, target)

	updated, err := p.store.UpdateCampaignStatus(ctx, id, target)
	if err != nil {
		return store.Campaign{}, err
	}

	if activityType != "" {
		p.recordActivity(ctx, store.InsertActivityParams{
			Type:       activityType,
			CampaignID: &updated.ID,
			UserID:     &actor,
		})
	}
	return updated, nil
}

// SetDeadline sets, removes or moves the campaign's end date. Shortening the
// deadline is applied silently.
func (p *Processor) SetDeadline(ctx context.Context, id uuid.UUID, endDate *time.Time, actor uuid.UUID) (store.Campaign, error) {
	ctx = observability.WithFields(ctx, observability.Field{Key: "campaign_id", Value: id})

	campaign, err := p.store.GetCampaignByID(ctx, id)
	if err != nil {
		return store.Campaign{}, err
	}

	activityType, data := DeriveDeadlineActivity(campaign.EndDate, endDate)

	updated, err := p.store.UpdateCampaignDeadline(ctx, id, endDate)
	if err != nil {
		return store.Campaign{}, err
	}

	if activityType != "" {
		p.recordActivity(ctx, store.InsertActivityParams{
			Type:       activityType,
			CampaignID: &updated.ID,
			UserID:     &actor,
			Data:       data,
		})
	}
	return updated, nil
}

// EndDueCampaigns closes out published campaigns whose deadline has passed.
// Each campaign ends at most once; the sweep is safe to run concurrently.
func (p *Processor) EndDueCampaigns(ctx context.Context, now time.Time, limit int) (int, error) {
	campaigns, err := p.store.ListCampaignsPastDeadline(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	ended := 0
	for _, campaign := range campaigns {
		campaignCtx := observability.WithFields(ctx,
			observability.Field{Key: "campaign_id", Value: campaign.ID})

		updated, err := p.store.MarkCampaignEnded(campaignCtx, campaign.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// another sweep got here first
				continue
			}
			p.logger.Error(campaignCtx, "failed to end campaign", err)
			continue
		}

		p.recordActivity(campaignCtx, store.InsertActivityParams{
			Type:       store.ActivityCampaignEnded,
			CampaignID: &updated.ID,
			Data:       store.JSONB{"raised_amount": updated.RaisedAmount},
		})
		ended++
	}
	return ended, nil
}

// recordActivity persists and publishes one activity. Failures are logged,
// not returned: the primary state change has already committed.
func (p *Processor) recordActivity(ctx context.Context, params store.InsertActivityParams) {
	activity, err := p.store.InsertActivity(ctx, params)
	if err != nil {
		p.logger.Error(ctx, "failed to record campaign activity", err)
		return
	}
	if err := p.publisher.PublishActivity(ctx, activity); err != nil {
		p.logger.Error(ctx, "failed to publish campaign activity", err)
	}
}
