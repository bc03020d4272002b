package events

import (
	"context"
	"time"

	"crowdfund-server/internal/clients/kafka"
	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/store"

	"github.com/google/uuid"
)

// Publisher fans activity records out to the notification topic
type Publisher struct {
	kafkaProducer *kafka.Producer
	logger        *observability.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(kafkaProducer *kafka.Producer, logger *observability.Logger) *Publisher {
	return &Publisher{
		kafkaProducer: kafkaProducer,
		logger:        logger,
	}
}

// PublishActivity publishes an activity as a notification event. The payload
// carries ids only; the notification worker rehydrates from the store so
// stale snapshots never reach contributors.
func (p *Publisher) PublishActivity(ctx context.Context, activity store.Activity) error {
	event := kafka.EventMessage{
		ID:        uuid.New().String(),
		Type:      activity.Type,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      map[string]interface{}{},
	}

	activityID := activity.ID.String()
	event.ActivityID = &activityID

	if activity.CampaignID != nil {
		event.CampaignID = activity.CampaignID.String()
	}
	if activity.ContributionID != nil {
		contributionID := activity.ContributionID.String()
		event.ContributionID = &contributionID
	}
	if activity.UserID != nil {
		event.Data["user_id"] = activity.UserID.String()
	}

	return p.kafkaProducer.PublishEvent(ctx, event)
}
