package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"crowdfund-server/internal/observability"

	kafkago "github.com/segmentio/kafka-go"
)

// ConsumerConfig holds configuration for the Kafka event consumer.
type ConsumerConfig struct {
	Brokers       []string
	ConsumerGroup string
	Topic         string

	// NumWorkers is the number of concurrent workers.
	NumWorkers int

	// QueueSize is the buffer size for the event channel.
	QueueSize int

	// DrainTimeout bounds the wait for in-flight events during shutdown.
	DrainTimeout time.Duration
}

// DefaultConsumerConfig returns sensible defaults for a consumer.
func DefaultConsumerConfig(brokers []string, consumerGroup, topic string) ConsumerConfig {
	return ConsumerConfig{
		Brokers:       brokers,
		ConsumerGroup: consumerGroup,
		Topic:         topic,
		NumWorkers:    10,
		QueueSize:     100,
		DrainTimeout:  30 * time.Second,
	}
}

// eventWithMsg pairs an event with its Kafka message for offset tracking.
type eventWithMsg struct {
	event EventMessage
	msg   kafkago.Message
}

type consumer struct {
	config    ConsumerConfig
	reader    *kafkago.Reader
	processor EventProcessor
	logger    *observability.Logger

	eventCh chan eventWithMsg

	cancelFetch context.CancelFunc
	doneCh      chan struct{}
	stopping    atomic.Bool
	stopOnce    sync.Once
}

// NewConsumer creates a new Kafka event consumer.
func NewConsumer(
	config ConsumerConfig,
	processor EventProcessor,
	logger *observability.Logger,
) EventConsumer {
	if config.NumWorkers <= 0 {
		config.NumWorkers = 10
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 100
	}
	if config.DrainTimeout <= 0 {
		config.DrainTimeout = 30 * time.Second
	}

	c := &consumer{
		config:    config,
		processor: processor,
		logger:    logger,
		eventCh:   make(chan eventWithMsg, config.QueueSize),
		doneCh:    make(chan struct{}),
	}

	c.reader = kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        config.Brokers,
		Topic:          config.Topic,
		GroupID:        config.ConsumerGroup,
		MinBytes:       10e3,
		MaxBytes:       10e6,
		StartOffset:    kafkago.FirstOffset,
		CommitInterval: 0, // manual commit
	})

	return c
}

// Start begins consuming events and blocks until Stop is called.
func (c *consumer) Start(ctx context.Context) error {
	defer close(c.doneCh)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelFetch = cancel
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "consumer_group", Value: c.config.ConsumerGroup},
		observability.Field{Key: "topic", Value: c.config.Topic},
		observability.Field{Key: "processor", Value: c.processor.Name()},
	)

	c.logger.Info(ctx, fmt.Sprintf("Starting consumer for %s with %d workers",
		c.processor.Name(), c.config.NumWorkers))

	var workerWg sync.WaitGroup
	for i := 0; i < c.config.NumWorkers; i++ {
		workerWg.Add(1)
		go c.worker(ctx, &workerWg, i)
	}

	c.fetchLoop(ctx)

	close(c.eventCh)

	done := make(chan struct{})
	go func() {
		workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info(ctx, "All workers finished processing")
	case <-time.After(c.config.DrainTimeout):
		c.logger.Warn(ctx, "Drain timeout, some events may not have completed")
	}

	if err := c.reader.Close(); err != nil {
		c.logger.Error(ctx, "Failed to close Kafka reader", err)
	}

	return nil
}

// Stop requests shutdown and waits for Start to return.
func (c *consumer) Stop() {
	c.stopOnce.Do(func() {
		c.stopping.Store(true)
		if c.cancelFetch != nil {
			c.cancelFetch()
		}
	})
	<-c.doneCh
}

func (c *consumer) fetchLoop(ctx context.Context) {
	for {
		if c.stopping.Load() {
			return
		}

		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if c.stopping.Load() || ctx.Err() != nil {
				return
			}
			c.logger.Error(ctx, "Failed to fetch message from Kafka", err)
			time.Sleep(1 * time.Second)
			continue
		}

		var event EventMessage
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Error(ctx, "Failed to unmarshal event, skipping", err)
			_ = c.reader.CommitMessages(ctx, msg)
			continue
		}

		select {
		case c.eventCh <- eventWithMsg{event: event, msg: msg}:
		case <-ctx.Done():
			return
		}
	}
}

func (c *consumer) worker(ctx context.Context, wg *sync.WaitGroup, id int) {
	defer wg.Done()

	ctx = observability.WithFields(ctx,
		observability.Field{Key: "worker_id", Value: id},
	)

	for e := range c.eventCh {
		eventCtx := observability.WithFields(ctx,
			observability.Field{Key: "event_id", Value: e.event.ID},
			observability.Field{Key: "event_type", Value: e.event.Type},
			observability.Field{Key: "campaign_id", Value: e.event.CampaignID},
		)

		// Events are processed to completion even during shutdown so the
		// offset commit matches what actually ran.
		if err := c.processor.Process(context.WithoutCancel(eventCtx), e.event); err != nil {
			c.logger.Error(eventCtx, "Failed to process event, offset not committed", err)
			continue
		}

		if err := c.reader.CommitMessages(context.WithoutCancel(eventCtx), e.msg); err != nil {
			c.logger.Error(eventCtx, "Failed to commit offset", err)
		}
	}
}
