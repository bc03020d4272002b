package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// InsertActivityParams represents parameters for recording an activity
type InsertActivityParams struct {
	Type           string
	CampaignID     *uuid.UUID
	ContributionID *uuid.UUID
	UserID         *uuid.UUID
	Data           JSONB
}

const sqlInsertActivity = `
INSERT INTO activities (type, campaign_id, contribution_id, user_id, data)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, type, campaign_id, contribution_id, user_id, data, created_at
`

// InsertActivity records a single activity row
func (s *Store) InsertActivity(ctx context.Context, params InsertActivityParams) (Activity, error) {
	var activity Activity
	err := s.db.GetContext(ctx, &activity, sqlInsertActivity,
		params.Type,
		params.CampaignID,
		params.ContributionID,
		params.UserID,
		params.Data)
	if err != nil {
		s.logger.Error(ctx, "failed to insert activity", err)
		return Activity{}, fmt.Errorf("failed to insert activity: %w", err)
	}
	return activity, nil
}

func insertActivityTx(ctx context.Context, tx *sqlx.Tx, params InsertActivityParams) (Activity, error) {
	var activity Activity
	err := tx.GetContext(ctx, &activity, sqlInsertActivity,
		params.Type,
		params.CampaignID,
		params.ContributionID,
		params.UserID,
		params.Data)
	return activity, err
}

const sqlListActivitiesByCampaign = `
SELECT id, type, campaign_id, contribution_id, user_id, data, created_at
FROM activities
WHERE campaign_id = $1
ORDER BY created_at DESC
LIMIT $2
`

// ListActivitiesByCampaign returns a campaign's activity feed, newest first
func (s *Store) ListActivitiesByCampaign(ctx context.Context, campaignID uuid.UUID, limit int) ([]Activity, error) {
	activities := make([]Activity, 0)
	err := s.db.SelectContext(ctx, &activities, sqlListActivitiesByCampaign, campaignID, limit)
	if err != nil {
		s.logger.Error(ctx, "failed to list activities by campaign", err)
		return nil, fmt.Errorf("failed to list activities by campaign: %w", err)
	}
	return activities, nil
}

const sqlGetActivityByID = `
SELECT id, type, campaign_id, contribution_id, user_id, data, created_at
FROM activities
WHERE id = $1
`

// GetActivityByID retrieves a single activity, used by the notification
// worker to rehydrate ID-only job payloads.
func (s *Store) GetActivityByID(ctx context.Context, id uuid.UUID) (Activity, error) {
	var activity Activity
	err := s.db.GetContext(ctx, &activity, sqlGetActivityByID, id)
	if err != nil {
		s.logger.Error(ctx, "failed to get activity by id", err)
		return Activity{}, fmt.Errorf("failed to get activity by id: %w", err)
	}
	return activity, nil
}
