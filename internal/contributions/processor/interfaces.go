package processor

import (
	"context"

	"crowdfund-server/internal/store"

	"github.com/google/uuid"
)

// ContributionStore is the store surface the contribution processor needs
type ContributionStore interface {
	CreateContribution(ctx context.Context, params store.CreateContributionParams) (store.Contribution, error)
	GetContributionByID(ctx context.Context, id uuid.UUID) (store.Contribution, error)
	GetContributionByUID(ctx context.Context, uid string) (store.Contribution, error)
	ApplyContributionTransition(ctx context.Context, campaignID uuid.UUID, write store.TransitionWrite) (store.TransitionResult, error)
	SetContributionTrashed(ctx context.Context, id uuid.UUID, trashed bool, updatedBy *uuid.UUID) (store.Contribution, error)
	PurgeContribution(ctx context.Context, id uuid.UUID) error
	GetCampaignByID(ctx context.Context, id uuid.UUID) (store.Campaign, error)
	RecountCampaignAggregates(ctx context.Context, id uuid.UUID) (store.Campaign, error)
	GetContributorByID(ctx context.Context, id uuid.UUID) (store.Contributor, error)
	InsertActivity(ctx context.Context, params store.InsertActivityParams) (store.Activity, error)
}

// ActivityPublisher fans persisted activities out to the notification topic
type ActivityPublisher interface {
	PublishActivity(ctx context.Context, activity store.Activity) error
}

// JobEnqueuer schedules background work produced by transitions
type JobEnqueuer interface {
	EnqueueCompensatingRefund(ctx context.Context, contributionID uuid.UUID) error
}
