package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"crowdfund-server/internal/observability"

	"github.com/segmentio/kafka-go"
)

// Producer handles publishing notification events to Kafka
type Producer struct {
	writer *kafka.Writer
	logger *observability.Logger
}

// ProducerConfig contains configuration for Kafka producer
type ProducerConfig struct {
	Brokers []string
	Topic   string
}

// NewProducer creates a new Kafka producer
func NewProducer(config ProducerConfig, logger *observability.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:        kafka.TCP(config.Brokers...),
		Topic:       config.Topic,
		Balancer:    &kafka.LeastBytes{},
		Async:       false,
		Compression: kafka.Snappy,
		BatchSize:   100,
	}

	return &Producer{
		writer: writer,
		logger: logger,
	}
}

// EventMessage is the notification event envelope. Payloads carry ids, not
// snapshots; consumers rehydrate from the store.
type EventMessage struct {
	ID             string                 `json:"id"`
	Type           string                 `json:"type"`
	CampaignID     string                 `json:"campaign_id"`
	ActivityID     *string                `json:"activity_id,omitempty"`
	ContributionID *string                `json:"contribution_id,omitempty"`
	Data           map[string]interface{} `json:"data"`
	Timestamp      string                 `json:"timestamp"`
}

// PublishEvent publishes an event to Kafka. Messages are keyed by campaign
// so each campaign's notifications stay ordered.
func (p *Producer) PublishEvent(ctx context.Context, event EventMessage) error {
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "event_type", Value: event.Type},
		observability.Field{Key: "event_id", Value: event.ID},
	)

	eventBytes, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal event", err)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.CampaignID),
		Value: eventBytes,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "campaign_id", Value: []byte(event.CampaignID)},
		},
	}

	err = p.writer.WriteMessages(ctx, msg)
	if err != nil {
		p.logger.Error(ctx, "failed to write message to kafka", err)
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	p.logger.Info(ctx, fmt.Sprintf("published event %s to kafka", event.Type))
	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
