package store

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JSONB is a custom type for JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("incompatible type for JSONB")
	}

	// Handle empty or null JSON
	if len(bytes) == 0 || string(bytes) == "null" {
		*j = make(JSONB)
		return nil
	}

	result := make(JSONB)
	err := json.Unmarshal(bytes, &result)
	if err != nil {
		return err
	}
	*j = result
	return nil
}

// Campaign is a fundraising unit. Aggregates (raised amount, contribution and
// contributor counts) are derived only from counted contributions and written
// only inside contribution transitions.
type Campaign struct {
	ID                uuid.UUID  `db:"id"`
	CreatorID         uuid.UUID  `db:"creator_id"`
	Title             string     `db:"title"`
	Slug              string     `db:"slug"`
	Mode              string     `db:"mode"`
	Status            string     `db:"status"`
	Currency          string     `db:"currency"`
	GoalType          string     `db:"goal_type"`
	GoalAmount        int64      `db:"goal_amount"`
	RaisedAmount      int64      `db:"raised_amount"`
	ContributionCount int        `db:"contribution_count"`
	ContributorCount  int        `db:"contributor_count"`
	EndDate           *time.Time `db:"end_date"`
	HalfMilestoneAt   *time.Time `db:"half_milestone_at"`
	GoalReachedAt     *time.Time `db:"goal_reached_at"`
	EndedAt           *time.Time `db:"ended_at"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
	DeletedAt         *time.Time `db:"deleted_at"`
}

// Contribution is a Donation or a Pledge; same shape, two lifecycles. Status
// and payment status are owned exclusively by the contribution processor and
// always written together.
type Contribution struct {
	ID              uuid.UUID  `db:"id"`
	UID             string     `db:"uid"`
	CampaignID      uuid.UUID  `db:"campaign_id"`
	ContributorID   uuid.UUID  `db:"contributor_id"`
	Kind            string     `db:"kind"`
	RewardID        *uuid.UUID `db:"reward_id"`
	Amount          int64      `db:"amount"`
	BonusAmount     int64      `db:"bonus_amount"`
	ShippingAmount  int64      `db:"shipping_amount"`
	RecoveryFee     int64      `db:"recovery_fee"`
	ProcessingFee   int64      `db:"processing_fee"`
	RefundedAmount  int64      `db:"refunded_amount"`
	Currency        string     `db:"currency"`
	Gateway         string     `db:"gateway"`
	PaymentMethod   string     `db:"payment_method"`
	TransactionID   *string    `db:"transaction_id"`
	Status          string     `db:"status"`
	PaymentStatus   string     `db:"payment_status"`
	CancelRequested bool       `db:"cancel_requested"`
	Version         int        `db:"version"`
	CreatedBy       *uuid.UUID `db:"created_by"`
	UpdatedBy       *uuid.UUID `db:"updated_by"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	DeletedAt       *time.Time `db:"deleted_at"`
}

// GrossAmount is the full charge amount including pledge extras and the
// recovery-fee surcharge.
func (c Contribution) GrossAmount() int64 {
	return c.Amount + c.BonusAmount + c.ShippingAmount + c.RecoveryFee
}

// Counted reports whether this contribution participates in campaign
// aggregates. Fully refunded contributions leave the counted set; partial
// refunds keep it counted at its full gross amount.
func (c Contribution) Counted() bool {
	if c.DeletedAt != nil || c.PaymentStatus == PaymentStatusRefunded {
		return false
	}
	return c.Status == ContributionStatusCompleted || c.Status == ContributionStatusBacked
}

// Activity is an append-only log row. Never updated or deleted by the engine;
// purging a parent contribution nulls the reference instead of cascading.
type Activity struct {
	ID             uuid.UUID  `db:"id"`
	Type           string     `db:"type"`
	CampaignID     *uuid.UUID `db:"campaign_id"`
	ContributionID *uuid.UUID `db:"contribution_id"`
	UserID         *uuid.UUID `db:"user_id"`
	Data           JSONB      `db:"data"`
	CreatedAt      time.Time  `db:"created_at"`
}

// Contributor is the minimal contact surface the engine needs for
// notification resolution; account management lives elsewhere.
type Contributor struct {
	ID        uuid.UUID `db:"id"`
	Email     string    `db:"email"`
	Name      string    `db:"name"`
	IsAdmin   bool      `db:"is_admin"`
	CreatedAt time.Time `db:"created_at"`
}
