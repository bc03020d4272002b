package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CreateContributionParams represents parameters for creating a contribution
type CreateContributionParams struct {
	UID            string
	CampaignID     uuid.UUID
	ContributorID  uuid.UUID
	Kind           string
	RewardID       *uuid.UUID
	Amount         int64
	BonusAmount    int64
	ShippingAmount int64
	RecoveryFee    int64
	Currency       string
	Gateway        string
	PaymentMethod  string
	CreatedBy      *uuid.UUID
}

const sqlCreateContribution = `
INSERT INTO contributions (uid, campaign_id, contributor_id, kind, reward_id, amount, bonus_amount,
    shipping_amount, recovery_fee, currency, gateway, payment_method, status, payment_status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'pending', 'unpaid')
RETURNING id, uid, campaign_id, contributor_id, kind, reward_id, amount, bonus_amount, shipping_amount,
    recovery_fee, processing_fee, refunded_amount, currency, gateway, payment_method, transaction_id,
    status, payment_status, cancel_requested, version, created_by, updated_by, created_at, updated_at, deleted_at
`

// CreateContribution creates a new contribution in its initial state
func (s *Store) CreateContribution(ctx context.Context, params CreateContributionParams) (Contribution, error) {
	var contribution Contribution
	err := s.db.GetContext(ctx, &contribution, sqlCreateContribution,
		params.UID,
		params.CampaignID,
		params.ContributorID,
		params.Kind,
		params.RewardID,
		params.Amount,
		params.BonusAmount,
		params.ShippingAmount,
		params.RecoveryFee,
		params.Currency,
		params.Gateway,
		params.PaymentMethod)
	if err != nil {
		s.logger.Error(ctx, "failed to create contribution", err)
		return Contribution{}, fmt.Errorf("failed to create contribution: %w", err)
	}
	return contribution, nil
}

const sqlGetContributionByID = `
SELECT id, uid, campaign_id, contributor_id, kind, reward_id, amount, bonus_amount, shipping_amount,
    recovery_fee, processing_fee, refunded_amount, currency, gateway, payment_method, transaction_id,
    status, payment_status, cancel_requested, version, created_by, updated_by, created_at, updated_at, deleted_at
FROM contributions
WHERE id = $1
`

// GetContributionByID retrieves a contribution by primary key
func (s *Store) GetContributionByID(ctx context.Context, id uuid.UUID) (Contribution, error) {
	var contribution Contribution
	err := s.db.GetContext(ctx, &contribution, sqlGetContributionByID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contribution{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get contribution by id", err)
		return Contribution{}, fmt.Errorf("failed to get contribution by id: %w", err)
	}
	return contribution, nil
}

const sqlGetContributionByUID = `
SELECT id, uid, campaign_id, contributor_id, kind, reward_id, amount, bonus_amount, shipping_amount,
    recovery_fee, processing_fee, refunded_amount, currency, gateway, payment_method, transaction_id,
    status, payment_status, cancel_requested, version, created_by, updated_by, created_at, updated_at, deleted_at
FROM contributions
WHERE uid = $1
`

// GetContributionByUID retrieves a contribution by its public uid, which also
// serves as the gateway order id.
func (s *Store) GetContributionByUID(ctx context.Context, uid string) (Contribution, error) {
	var contribution Contribution
	err := s.db.GetContext(ctx, &contribution, sqlGetContributionByUID, uid)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contribution{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to get contribution by uid", err)
		return Contribution{}, fmt.Errorf("failed to get contribution by uid: %w", err)
	}
	return contribution, nil
}

// TransitionWrite is the single atomic write a lifecycle transition produces:
// the contribution's status pair, any money bookkeeping, campaign aggregate
// recount and derived activity rows all land in one transaction.
type TransitionWrite struct {
	ContributionID  uuid.UUID
	ExpectedVersion int
	Status          string
	PaymentStatus   string
	RefundedAmount  int64
	ProcessingFee   int64
	TransactionID   *string
	CancelRequested bool
	UpdatedBy       *uuid.UUID

	// RecountCampaign is set when the transition moves the contribution
	// into or out of the counted set.
	RecountCampaign bool

	Activities []InsertActivityParams
}

// TransitionResult reports the post-transition state plus which campaign
// milestones this transition claimed (each claimable at most once).
type TransitionResult struct {
	Contribution  Contribution
	Campaign      Campaign
	Activities    []Activity
	HalfMilestone bool
	GoalReached   bool
}

const sqlTransitionContribution = `
UPDATE contributions
SET status = $1, payment_status = $2, refunded_amount = $3, processing_fee = $4,
    transaction_id = COALESCE($5, transaction_id), cancel_requested = $6,
    updated_by = COALESCE($7, updated_by), version = version + 1, updated_at = now()
WHERE id = $8 AND version = $9
RETURNING id, uid, campaign_id, contributor_id, kind, reward_id, amount, bonus_amount, shipping_amount,
    recovery_fee, processing_fee, refunded_amount, currency, gateway, payment_method, transaction_id,
    status, payment_status, cancel_requested, version, created_by, updated_by, created_at, updated_at, deleted_at
`

const sqlRecountCampaignAggregates = `
UPDATE campaigns c
SET raised_amount = agg.raised, contribution_count = agg.contributions,
    contributor_count = agg.contributors, updated_at = now()
FROM (
    SELECT COALESCE(SUM(amount + bonus_amount + shipping_amount), 0)::bigint AS raised,
           COUNT(*)::int AS contributions,
           COUNT(DISTINCT contributor_id)::int AS contributors
    FROM contributions
    WHERE campaign_id = $1 AND status IN ('completed', 'backed')
      AND payment_status <> 'refunded' AND deleted_at IS NULL
) agg
WHERE c.id = $1
RETURNING c.id, c.creator_id, c.title, c.slug, c.mode, c.status, c.currency, c.goal_type, c.goal_amount,
    c.raised_amount, c.contribution_count, c.contributor_count, c.end_date, c.half_milestone_at,
    c.goal_reached_at, c.ended_at, c.created_at, c.updated_at, c.deleted_at
`

const sqlGetCampaignForUpdate = `
SELECT id, creator_id, title, slug, mode, status, currency, goal_type, goal_amount, raised_amount,
    contribution_count, contributor_count, end_date, half_milestone_at, goal_reached_at, ended_at,
    created_at, updated_at, deleted_at
FROM campaigns
WHERE id = $1
FOR UPDATE
`

// Milestone claims guard on the flag column being unset, so each fires at
// most once per campaign no matter how many qualifying transitions race.
const sqlClaimHalfMilestone = `
UPDATE campaigns SET half_milestone_at = now(), updated_at = now()
WHERE id = $1 AND half_milestone_at IS NULL
`

const sqlClaimGoalReached = `
UPDATE campaigns SET goal_reached_at = now(), updated_at = now()
WHERE id = $1 AND goal_reached_at IS NULL
`

// ApplyContributionTransition applies one lifecycle transition as a single
// transaction: lock the campaign row, CAS-update the contribution, recount
// aggregates when counted-set membership changed, claim goal milestones, and
// append the derived activity rows. Returns ErrVersionConflict when a
// concurrent writer advanced the contribution first.
func (s *Store) ApplyContributionTransition(ctx context.Context, campaignID uuid.UUID, write TransitionWrite) (TransitionResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error(ctx, "failed to begin transition transaction", err)
		return TransitionResult{}, fmt.Errorf("failed to begin transition transaction: %w", err)
	}
	defer tx.Rollback()

	var result TransitionResult

	// Lock the campaign row first so concurrent transitions for the same
	// campaign serialize and aggregates cannot drift.
	err = tx.GetContext(ctx, &result.Campaign, sqlGetCampaignForUpdate, campaignID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TransitionResult{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to lock campaign", err)
		return TransitionResult{}, fmt.Errorf("failed to lock campaign: %w", err)
	}

	err = tx.GetContext(ctx, &result.Contribution, sqlTransitionContribution,
		write.Status,
		write.PaymentStatus,
		write.RefundedAmount,
		write.ProcessingFee,
		write.TransactionID,
		write.CancelRequested,
		write.UpdatedBy,
		write.ContributionID,
		write.ExpectedVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return TransitionResult{}, ErrVersionConflict
		}
		s.logger.Error(ctx, "failed to write contribution transition", err)
		return TransitionResult{}, fmt.Errorf("failed to write contribution transition: %w", err)
	}

	if write.RecountCampaign {
		err = tx.GetContext(ctx, &result.Campaign, sqlRecountCampaignAggregates, campaignID)
		if err != nil {
			s.logger.Error(ctx, "failed to recount campaign aggregates", err)
			return TransitionResult{}, fmt.Errorf("failed to recount campaign aggregates: %w", err)
		}

		progress := campaignProgress(result.Campaign)
		if progress >= 0.5 && result.Campaign.HalfMilestoneAt == nil {
			res, err := tx.ExecContext(ctx, sqlClaimHalfMilestone, campaignID)
			if err != nil {
				s.logger.Error(ctx, "failed to claim half milestone", err)
				return TransitionResult{}, fmt.Errorf("failed to claim half milestone: %w", err)
			}
			if rows, _ := res.RowsAffected(); rows == 1 {
				result.HalfMilestone = true
			}
		}
		if progress >= 1.0 && result.Campaign.GoalReachedAt == nil {
			res, err := tx.ExecContext(ctx, sqlClaimGoalReached, campaignID)
			if err != nil {
				s.logger.Error(ctx, "failed to claim goal reached", err)
				return TransitionResult{}, fmt.Errorf("failed to claim goal reached: %w", err)
			}
			if rows, _ := res.RowsAffected(); rows == 1 {
				result.GoalReached = true
			}
		}
	}

	for _, params := range write.Activities {
		activity, err := insertActivityTx(ctx, tx, params)
		if err != nil {
			s.logger.Error(ctx, "failed to insert transition activity", err)
			return TransitionResult{}, fmt.Errorf("failed to insert transition activity: %w", err)
		}
		result.Activities = append(result.Activities, activity)
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error(ctx, "failed to commit transition", err)
		return TransitionResult{}, fmt.Errorf("failed to commit transition: %w", err)
	}

	return result, nil
}

// campaignProgress returns goal completion in [0, +inf) for the campaign's
// goal type, or 0 when the campaign has no goal.
func campaignProgress(c Campaign) float64 {
	if c.GoalAmount <= 0 {
		return 0
	}
	switch c.GoalType {
	case GoalTypeRaisedAmount:
		return float64(c.RaisedAmount) / float64(c.GoalAmount)
	case GoalTypeContributionCount:
		return float64(c.ContributionCount) / float64(c.GoalAmount)
	case GoalTypeContributorCount:
		return float64(c.ContributorCount) / float64(c.GoalAmount)
	default:
		return 0
	}
}

const sqlSetContributionTrashed = `
UPDATE contributions
SET deleted_at = CASE WHEN $2 THEN now() ELSE NULL END, updated_by = COALESCE($3, updated_by),
    version = version + 1, updated_at = now()
WHERE id = $1
RETURNING id, uid, campaign_id, contributor_id, kind, reward_id, amount, bonus_amount, shipping_amount,
    recovery_fee, processing_fee, refunded_amount, currency, gateway, payment_method, transaction_id,
    status, payment_status, cancel_requested, version, created_by, updated_by, created_at, updated_at, deleted_at
`

// SetContributionTrashed soft-deletes or restores a contribution. Trash is a
// housekeeping dimension orthogonal to payment outcome.
func (s *Store) SetContributionTrashed(ctx context.Context, id uuid.UUID, trashed bool, updatedBy *uuid.UUID) (Contribution, error) {
	var contribution Contribution
	err := s.db.GetContext(ctx, &contribution, sqlSetContributionTrashed, id, trashed, updatedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Contribution{}, ErrNotFound
		}
		s.logger.Error(ctx, "failed to set contribution trashed", err)
		return Contribution{}, fmt.Errorf("failed to set contribution trashed: %w", err)
	}
	return contribution, nil
}

const sqlDetachContributionActivities = `
UPDATE activities SET contribution_id = NULL WHERE contribution_id = $1
`

const sqlPurgeContribution = `
DELETE FROM contributions WHERE id = $1 AND deleted_at IS NOT NULL
`

// PurgeContribution hard-deletes a trashed contribution. Activity rows keep
// the audit trail but lose their reference, in the same transaction.
func (s *Store) PurgeContribution(ctx context.Context, id uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error(ctx, "failed to begin purge transaction", err)
		return fmt.Errorf("failed to begin purge transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, sqlDetachContributionActivities, id); err != nil {
		s.logger.Error(ctx, "failed to detach contribution activities", err)
		return fmt.Errorf("failed to detach contribution activities: %w", err)
	}

	res, err := tx.ExecContext(ctx, sqlPurgeContribution, id)
	if err != nil {
		s.logger.Error(ctx, "failed to purge contribution", err)
		return fmt.Errorf("failed to purge contribution: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error(ctx, "failed to commit purge", err)
		return fmt.Errorf("failed to commit purge: %w", err)
	}
	return nil
}
