package processor

import (
	"context"
	"net/http"

	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/payments/gateway"
)

// EventApplier applies a verified gateway event to the contribution it
// references
type EventApplier interface {
	ApplyGatewayEvent(ctx context.Context, event gateway.WebhookEvent) error
}

// Processor runs the webhook ingestion pipeline: resolve the gateway, verify
// and map the payload, then hand the neutral event to the lifecycle engine.
type Processor struct {
	registry      *gateway.Registry
	contributions EventApplier
	logger        *observability.Logger
}

func New(registry *gateway.Registry, contributions EventApplier, logger *observability.Logger) *Processor {
	return &Processor{
		registry:      registry,
		contributions: contributions,
		logger:        logger,
	}
}

// Ingest processes one raw webhook delivery. Signature failures surface as
// gateway.ErrInvalidSignature and must reach the gateway as a non-2xx so it
// retries; everything past verification is acknowledged.
func (p *Processor) Ingest(ctx context.Context, gatewayName string, body []byte, headers http.Header) error {
	ctx = observability.WithFields(ctx, observability.Field{Key: "gateway", Value: gatewayName})

	gw, err := p.registry.Get(gatewayName)
	if err != nil {
		return err
	}

	event, err := gw.HandleWebhook(ctx, body, headers)
	if err != nil {
		return err
	}

	return p.contributions.ApplyGatewayEvent(ctx, event)
}
