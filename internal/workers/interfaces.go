package workers

import (
	"context"

	kafka "crowdfund-server/internal/clients/kafka"
)

// EventMessage is an alias for the Kafka event message type so worker
// packages do not need to import the kafka client directly.
type EventMessage = kafka.EventMessage

// EventProcessor handles a single event from Kafka. Implementations must be
// idempotent because events are redelivered when processing fails.
type EventProcessor interface {
	Process(ctx context.Context, event EventMessage) error

	// Name identifies the processor in logs.
	Name() string
}

// EventConsumer consumes events from Kafka and fans them out to workers.
type EventConsumer interface {
	// Start blocks until the context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop shuts the consumer down, draining in-flight events.
	Stop()
}
