package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Job type constants
const (
	TypeCompensatingRefund = "payment:compensating_refund"
)

// Queue names
const (
	QueueHigh = "high"
	QueueLow  = "low"
)

// CompensatingRefundPayload identifies a contribution whose settled payment
// must be returned because a cancellation was queued before settlement.
type CompensatingRefundPayload struct {
	ContributionID uuid.UUID `json:"contribution_id"`
}

// NewCompensatingRefundTask creates a new compensating refund task. Refunding
// through the gateway is idempotent at the gateway side, so generous retries
// are safe.
func NewCompensatingRefundTask(payload CompensatingRefundPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCompensatingRefund, data, asynq.Queue(QueueHigh), asynq.MaxRetry(10)), nil
}
