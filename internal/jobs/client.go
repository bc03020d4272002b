package jobs

import (
	"context"
	"fmt"

	"crowdfund-server/internal/observability"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Client handles enqueueing background jobs
type Client struct {
	client *asynq.Client
	logger *observability.Logger
}

// NewClient creates a new job client
func NewClient(redisAddr string, logger *observability.Logger) *Client {
	client := asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})
	return &Client{
		client: client,
		logger: logger,
	}
}

// Close closes the client connection
func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueCompensatingRefund enqueues a refund for a contribution whose
// payment settled after a cancellation was requested.
func (c *Client) EnqueueCompensatingRefund(ctx context.Context, contributionID uuid.UUID) error {
	task, err := NewCompensatingRefundTask(CompensatingRefundPayload{ContributionID: contributionID})
	if err != nil {
		c.logger.Error(ctx, "failed to create compensating refund task", err)
		return fmt.Errorf("failed to create compensating refund task: %w", err)
	}

	info, err := c.client.EnqueueContext(ctx, task)
	if err != nil {
		c.logger.Error(ctx, "failed to enqueue compensating refund task", err)
		return fmt.Errorf("failed to enqueue compensating refund task: %w", err)
	}

	c.logger.Info(ctx, fmt.Sprintf("enqueued compensating refund task: %s (queue: %s)", info.ID, info.Queue))
	return nil
}
