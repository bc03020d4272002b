package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

var ErrEmptyEnvironmentVariable = errors.New("empty environment variable")

// Config holds all application configuration
type Config struct {
	Database    DatabaseConfig
	Auth        AuthConfig
	Gateways    GatewaysConfig
	Services    ServicesConfig
	Kafka       KafkaConfig
	Redis       RedisConfig
	WorkerPool  WorkerPoolConfig
	Server      ServerConfig
	Engine      EngineConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host     string
	Username string
	Password string
	Name     string
}

// AuthConfig holds authentication-related configuration
type AuthConfig struct {
	JWTSecret string
}

// GatewaysConfig holds per-gateway credentials
type GatewaysConfig struct {
	StripeSecretKey     string
	StripeWebhookSecret string

	PayPalClientID     string
	PayPalClientSecret string
	PayPalWebhookID    string
	PayPalLive         bool

	MidtransServerKey  string
	MidtransProduction bool
}

// ServicesConfig holds external service API keys and configuration
type ServicesConfig struct {
	ResendAPIKey       string
	DefaultEmailSender string
	WebAppURI          string
}

// KafkaConfig holds Kafka/event streaming configuration
type KafkaConfig struct {
	Brokers       string
	Topic         string
	ConsumerGroup string
}

// RedisConfig holds Redis configuration for the job queue
type RedisConfig struct {
	Addr string
}

// WorkerPoolConfig holds worker pool configuration for event processing
type WorkerPoolConfig struct {
	NotificationWorkers int // Number of workers for notification event processing
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int
}

// EngineConfig holds contribution engine behavior toggles
type EngineConfig struct {
	// StrictTransitionErrors surfaces invalid administrative transitions as
	// 409 responses instead of logging and returning success.
	StrictTransitionErrors bool

	// FeeRecoveryPercent is the gateway fee percentage grossed up onto
	// contributions that opt into covering fees, e.g. "5" for 5%.
	FeeRecoveryPercent string

	// CheckoutRateLimitRPM caps checkout starts per user per minute.
	CheckoutRateLimitRPM int
}

// Load reads and validates all required environment variables
func Load() (*Config, error) {
	// Load env.local in non-production environments
	if os.Getenv("GO_ENV") != "production" {
		if err := godotenv.Load("env.local"); err != nil {
			return nil, fmt.Errorf("failed to load env.local: %w", err)
		}
	}

	cfg := &Config{}

	// Database configuration
	var err error
	if cfg.Database.Host, err = requireEnv("DB_HOST"); err != nil {
		return nil, err
	}
	if cfg.Database.Username, err = requireEnv("DB_USERNAME"); err != nil {
		return nil, err
	}
	if cfg.Database.Password, err = requireEnv("DB_PASSWORD"); err != nil {
		return nil, err
	}
	if cfg.Database.Name, err = requireEnv("DB_NAME"); err != nil {
		return nil, err
	}

	// Auth configuration
	if cfg.Auth.JWTSecret, err = requireEnv("JWT_SECRET"); err != nil {
		return nil, err
	}

	// Gateway configuration
	if cfg.Gateways.StripeSecretKey, err = requireEnv("STRIPE_SECRET_KEY"); err != nil {
		return nil, err
	}
	if cfg.Gateways.StripeWebhookSecret, err = requireEnv("STRIPE_WEBHOOK_SECRET"); err != nil {
		return nil, err
	}
	if cfg.Gateways.PayPalClientID, err = requireEnv("PAYPAL_CLIENT_ID"); err != nil {
		return nil, err
	}
	if cfg.Gateways.PayPalClientSecret, err = requireEnv("PAYPAL_CLIENT_SECRET"); err != nil {
		return nil, err
	}
	if cfg.Gateways.PayPalWebhookID, err = requireEnv("PAYPAL_WEBHOOK_ID"); err != nil {
		return nil, err
	}
	cfg.Gateways.PayPalLive = getEnvWithDefault("PAYPAL_LIVE", "false") == "true"
	if cfg.Gateways.MidtransServerKey, err = requireEnv("MIDTRANS_SERVER_KEY"); err != nil {
		return nil, err
	}
	cfg.Gateways.MidtransProduction = getEnvWithDefault("MIDTRANS_IS_PRODUCTION", "false") == "true"

	// Services configuration
	if cfg.Services.ResendAPIKey, err = requireEnv("RESEND_API_KEY"); err != nil {
		return nil, err
	}
	if cfg.Services.DefaultEmailSender, err = requireEnv("DEFAULT_EMAIL_SENDER_ADDRESS"); err != nil {
		return nil, err
	}
	if cfg.Services.WebAppURI, err = requireEnv("WEBAPP_URI"); err != nil {
		return nil, err
	}

	// Kafka configuration
	if cfg.Kafka.Brokers, err = requireEnv("KAFKA_BROKERS"); err != nil {
		return nil, err
	}
	cfg.Kafka.Topic = getEnvWithDefault("KAFKA_TOPIC", "notification-events")
	cfg.Kafka.ConsumerGroup = getEnvWithDefault("KAFKA_CONSUMER_GROUP", "notification-consumers")

	// Redis configuration
	cfg.Redis.Addr = getEnvWithDefault("REDIS_HOST", "localhost:6379")

	// Worker pool configuration
	notificationWorkers := getEnvWithDefault("NOTIFICATION_WORKERS", "5")
	cfg.WorkerPool.NotificationWorkers, err = strconv.Atoi(notificationWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to parse NOTIFICATION_WORKERS: %w", err)
	}

	// Server configuration
	serverPort, err := requireEnv("SERVER_PORT")
	if err != nil {
		return nil, err
	}
	cfg.Server.Port, err = strconv.Atoi(serverPort)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SERVER_PORT: %w", err)
	}

	// Engine configuration
	cfg.Engine.StrictTransitionErrors = getEnvWithDefault("STRICT_TRANSITION_ERRORS", "false") == "true"
	cfg.Engine.FeeRecoveryPercent = getEnvWithDefault("FEE_RECOVERY_PERCENT", "5")
	cfg.Engine.CheckoutRateLimitRPM, err = strconv.Atoi(getEnvWithDefault("CHECKOUT_RATE_LIMIT_RPM", "10"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse CHECKOUT_RATE_LIMIT_RPM: %w", err)
	}

	return cfg, nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s",
		c.Username, c.Password, c.Host, c.Name)
}

// requireEnv retrieves an environment variable or returns an error if empty
func requireEnv(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set: %w", key, ErrEmptyEnvironmentVariable)
	}
	return value, nil
}

// getEnvWithDefault retrieves an environment variable or returns a default value
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
