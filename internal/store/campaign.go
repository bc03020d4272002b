package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sqlGetCampaignByID = `
SELECT id, creator_id, title, slug, mode, status, currency, goal_type, goal_amount, raised_amount,
    contribution_count, contributor_count, end_date, half_milestone_at, goal_reached_at, ended_at,
    created_at, updated_at, deleted_at
FROM campaigns
WHERE id = $1
`

// GetCampaignByID retrieves a campaign by primary key
func (s *Store) GetCampaignByID(ctx context.Context, id uuid.UUID) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlGetCampaignByID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get campaign by id", err)
		return Campaign{}, fmt.Errorf("failed to get campaign by id: %w", err)
	}
	return campaign, nil
}

// CreateCampaignParams represents parameters for creating a campaign
type CreateCampaignParams struct {
	CreatorID  uuid.UUID
	Title      string
	Slug       string
	Mode       string
	Currency   string
	GoalType   string
	GoalAmount int64
	EndDate    *time.Time
}

const sqlCreateCampaign = `
INSERT INTO campaigns (creator_id, title, slug, mode, status, currency, goal_type, goal_amount, end_date)
VALUES ($1, $2, $3, $4, 'draft', $5, $6, $7, $8)
RETURNING id, creator_id, title, slug, mode, status, currency, goal_type, goal_amount, raised_amount,
    contribution_count, contributor_count, end_date, half_milestone_at, goal_reached_at, ended_at,
    created_at, updated_at, deleted_at
`

// CreateCampaign creates a new campaign in draft
func (s *Store) CreateCampaign(ctx context.Context, params CreateCampaignParams) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlCreateCampaign,
		params.CreatorID,
		params.Title,
		params.Slug,
		params.Mode,
		params.Currency,
		params.GoalType,
		params.GoalAmount,
		params.EndDate)
	if err != nil {
		s.logger.Error(ctx, "failed to create campaign", err)
		return Campaign{}, fmt.Errorf("failed to create campaign: %w", err)
	}
	return campaign, nil
}

const sqlUpdateCampaignStatus = `
UPDATE campaigns SET status = $2, updated_at = now()
WHERE id = $1
RETURNING id, creator_id, title, slug, mode, status, currency, goal_type, goal_amount, raised_amount,
    contribution_count, contributor_count, end_date, half_milestone_at, goal_reached_at, ended_at,
    created_at, updated_at, deleted_at
`

// UpdateCampaignStatus sets the campaign's moderation status
func (s *Store) UpdateCampaignStatus(ctx context.Context, id uuid.UUID, status string) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlUpdateCampaignStatus, id, status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to update campaign status", err)
		return Campaign{}, fmt.Errorf("failed to update campaign status: %w", err)
	}
	return campaign, nil
}

const sqlUpdateCampaignDeadline = `
UPDATE campaigns SET end_date = $2, updated_at = now()
WHERE id = $1
RETURNING id, creator_id, title, slug, mode, status, currency, goal_type, goal_amount, raised_amount,
    contribution_count, contributor_count, end_date, half_milestone_at, goal_reached_at, ended_at,
    created_at, updated_at, deleted_at
`

// UpdateCampaignDeadline sets or clears the campaign's end date
func (s *Store) UpdateCampaignDeadline(ctx context.Context, id uuid.UUID, endDate *time.Time) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlUpdateCampaignDeadline, id, endDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to update campaign deadline", err)
		return Campaign{}, fmt.Errorf("failed to update campaign deadline: %w", err)
	}
	return campaign, nil
}

// RecountCampaignAggregates recomputes the campaign's raised amount and
// contribution counters from the counted set. Used after trash, restore and
// purge, which change counted-set membership without a lifecycle transition.
func (s *Store) RecountCampaignAggregates(ctx context.Context, id uuid.UUID) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlRecountCampaignAggregates, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to recount campaign aggregates", err)
		return Campaign{}, fmt.Errorf("failed to recount campaign aggregates: %w", err)
	}
	return campaign, nil
}

const sqlListCampaignsPastDeadline = `
SELECT id, creator_id, title, slug, mode, status, currency, goal_type, goal_amount, raised_amount,
    contribution_count, contributor_count, end_date, half_milestone_at, goal_reached_at, ended_at,
    created_at, updated_at, deleted_at
FROM campaigns
WHERE status = 'published' AND end_date IS NOT NULL AND end_date <= $1 AND ended_at IS NULL
    AND deleted_at IS NULL
ORDER BY end_date
LIMIT $2
`

// ListCampaignsPastDeadline returns published campaigns whose deadline has
// passed and that the end-of-campaign sweep has not processed yet.
func (s *Store) ListCampaignsPastDeadline(ctx context.Context, now time.Time, limit int) ([]Campaign, error) {
	campaigns := make([]Campaign, 0)
	err := s.db.SelectContext(ctx, &campaigns, sqlListCampaignsPastDeadline, now, limit)
	if err != nil {
		s.logger.Error(ctx, "failed to list campaigns past deadline", err)
		return nil, fmt.Errorf("failed to list campaigns past deadline: %w", err)
	}
	return campaigns, nil
}

const sqlMarkCampaignEnded = `
UPDATE campaigns SET status = 'completed', ended_at = now(), updated_at = now()
WHERE id = $1 AND ended_at IS NULL
RETURNING id, creator_id, title, slug, mode, status, currency, goal_type, goal_amount, raised_amount,
    contribution_count, contributor_count, end_date, half_milestone_at, goal_reached_at, ended_at,
    created_at, updated_at, deleted_at
`

// MarkCampaignEnded closes out a campaign whose deadline passed. The ended_at
// guard makes the sweep idempotent; a second sweep sees ErrNotFound.
func (s *Store) MarkCampaignEnded(ctx context.Context, id uuid.UUID) (Campaign, error) {
	var campaign Campaign
	err := s.db.GetContext(ctx, &campaign, sqlMarkCampaignEnded, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Campaign{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to mark campaign ended", err)
		return Campaign{}, fmt.Errorf("failed to mark campaign ended: %w", err)
	}
	return campaign, nil
}
