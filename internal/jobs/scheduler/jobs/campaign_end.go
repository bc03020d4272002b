package jobs

import (
	"context"
	"fmt"
	"time"

	"crowdfund-server/internal/campaign/processor"
	"crowdfund-server/internal/observability"
)

const campaignEndBatchSize = 100

// CampaignEndSweep closes published campaigns whose deadline has passed.
type CampaignEndSweep struct {
	campaigns *processor.Processor
	interval  time.Duration
	logger    *observability.Logger
}

// NewCampaignEndSweep creates the deadline sweep job
func NewCampaignEndSweep(campaigns *processor.Processor, interval time.Duration, logger *observability.Logger) *CampaignEndSweep {
	if interval <= 0 {
		interval = time.Minute
	}
	return &CampaignEndSweep{
		campaigns: campaigns,
		interval:  interval,
		logger:    logger,
	}
}

func (j *CampaignEndSweep) Name() string {
	return "campaign_end_sweep"
}

func (j *CampaignEndSweep) Schedule() time.Duration {
	return j.interval
}

// Run ends due campaigns in batches until none remain
func (j *CampaignEndSweep) Run(ctx context.Context) error {
	total := 0
	for {
		ended, err := j.campaigns.EndDueCampaigns(ctx, time.Now().UTC(), campaignEndBatchSize)
		if err != nil {
			return fmt.Errorf("failed to end due campaigns: %w", err)
		}
		total += ended
		if ended < campaignEndBatchSize {
			break
		}
	}

	if total > 0 {
		j.logger.Info(ctx, fmt.Sprintf("ended %d campaigns past their deadline", total))
	}
	return nil
}
