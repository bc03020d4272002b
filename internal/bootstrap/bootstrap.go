package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"crowdfund-server/internal/auth"
	"crowdfund-server/internal/config"
	"crowdfund-server/internal/observability"
	"crowdfund-server/internal/store"

	campaignHandler "crowdfund-server/internal/campaign/handler"
	campaignProcessor "crowdfund-server/internal/campaign/processor"
	kafkaClient "crowdfund-server/internal/clients/kafka"
	"crowdfund-server/internal/clients/mail"
	redisClient "crowdfund-server/internal/clients/redis"
	contributionHandler "crowdfund-server/internal/contributions/handler"
	contributionProcessor "crowdfund-server/internal/contributions/processor"
	"crowdfund-server/internal/email"
	"crowdfund-server/internal/events"
	"crowdfund-server/internal/jobs"
	"crowdfund-server/internal/payments/gateway"
	"crowdfund-server/internal/payments/midtransgw"
	"crowdfund-server/internal/payments/paypalgw"
	"crowdfund-server/internal/payments/stripegw"
	"crowdfund-server/internal/ratelimit"
	webhookHandler "crowdfund-server/internal/webhooks/handler"
	webhookProcessor "crowdfund-server/internal/webhooks/processor"

	"github.com/shopspring/decimal"
)

// Dependencies holds all initialized application dependencies
type Dependencies struct {
	// Core
	Store  store.Store
	Logger *observability.Logger
	Auth   auth.Auth

	// Processors
	ContributionProcessor *contributionProcessor.Processor
	CampaignProcessor     *campaignProcessor.Processor

	// Handlers
	ContributionHandler contributionHandler.Handler
	CampaignHandler     campaignHandler.Handler
	WebhookHandler      *webhookHandler.Handler

	// Services
	EmailService *email.EmailService
	Registry     *gateway.Registry
	RateLimit    *ratelimit.Service

	// Clients (for cleanup)
	KafkaProducer *kafkaClient.Producer
	JobClient     *jobs.Client
	RedisClient   *redisClient.Client
}

// Initialize sets up all application dependencies
func Initialize(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Logger: logger,
	}

	var err error
	deps.Store, err = store.New(cfg.Database.ConnectionString(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	deps.Auth = auth.New(cfg.Auth.JWTSecret, logger)

	mailClient, err := mail.NewResendClient(cfg.Services.ResendAPIKey, cfg.Services.DefaultEmailSender, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create resend client: %w", err)
	}
	deps.EmailService = email.New(mailClient, logger)

	brokerList := strings.Split(cfg.Kafka.Brokers, ",")
	deps.KafkaProducer = kafkaClient.NewProducer(kafkaClient.ProducerConfig{
		Brokers: brokerList,
		Topic:   cfg.Kafka.Topic,
	}, logger)
	publisher := events.NewPublisher(deps.KafkaProducer, logger)

	deps.JobClient = jobs.NewClient(cfg.Redis.Addr, logger)

	deps.RedisClient, err = redisClient.NewClient(cfg.Redis.Addr, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	deps.RateLimit = ratelimit.NewService(deps.RedisClient, cfg.Engine.CheckoutRateLimitRPM, logger)

	deps.Registry, err = buildGatewayRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	feePercent, err := decimal.NewFromString(cfg.Engine.FeeRecoveryPercent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse FEE_RECOVERY_PERCENT: %w", err)
	}

	deps.ContributionProcessor = contributionProcessor.New(
		&deps.Store,
		deps.Registry,
		publisher,
		deps.JobClient,
		feePercent,
		cfg.Engine.StrictTransitionErrors,
		logger,
	)
	deps.CampaignProcessor = campaignProcessor.New(&deps.Store, publisher, logger)

	deps.ContributionHandler = contributionHandler.New(deps.ContributionProcessor, logger)
	deps.CampaignHandler = campaignHandler.New(deps.CampaignProcessor, logger)

	webhookProc := webhookProcessor.New(deps.Registry, deps.ContributionProcessor, logger)
	deps.WebhookHandler = webhookHandler.New(webhookProc, logger)

	return deps, nil
}

func buildGatewayRegistry(cfg *config.Config, logger *observability.Logger) (*gateway.Registry, error) {
	registry := gateway.NewRegistry()

	stripeGateway := stripegw.New(cfg.Gateways.StripeSecretKey, cfg.Gateways.StripeWebhookSecret, logger)
	if err := registry.Register(stripeGateway); err != nil {
		return nil, fmt.Errorf("failed to register stripe gateway: %w", err)
	}

	paypalGateway, err := paypalgw.New(
		cfg.Gateways.PayPalClientID,
		cfg.Gateways.PayPalClientSecret,
		cfg.Gateways.PayPalWebhookID,
		cfg.Gateways.PayPalLive,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create paypal gateway: %w", err)
	}
	if err := registry.Register(paypalGateway); err != nil {
		return nil, fmt.Errorf("failed to register paypal gateway: %w", err)
	}

	midtransGateway := midtransgw.New(cfg.Gateways.MidtransServerKey, cfg.Gateways.MidtransProduction, logger)
	if err := registry.Register(midtransGateway); err != nil {
		return nil, fmt.Errorf("failed to register midtrans gateway: %w", err)
	}

	return registry, nil
}

// Cleanup closes all resources that need cleanup
func (d *Dependencies) Cleanup() {
	if d.KafkaProducer != nil {
		d.KafkaProducer.Close()
	}
	if d.JobClient != nil {
		d.JobClient.Close()
	}
	if d.RedisClient != nil {
		d.RedisClient.Close()
	}
}
