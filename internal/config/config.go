package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort uint16 `env:"REDIS_PORT" envDefault:"6379"   validate:"min=1000,max=65535"`

	PostgresHost     string `env:"POSTGRES_HOST"     envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT"     envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER"     envDefault:"auction_user"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"auction_password"`
	PostgresDb       string `env:"POSTGRES_DB"       envDefault:"auction_db"`

	// Sweep cadences. These are configuration, not behaviour: the
	// scheduler only knows "run task T every D seconds, non-overlapping".
	StatusSweepSeconds      uint32 `env:"STATUS_SWEEP_SECONDS"      envDefault:"60"    validate:"min=5"`
	FulfillmentSweepSeconds uint32 `env:"FULFILLMENT_SWEEP_SECONDS" envDefault:"300"   validate:"min=30"`
	CleanupSweepSeconds     uint32 `env:"CLEANUP_SWEEP_SECONDS"     envDefault:"86400" validate:"min=3600"`
	RetentionDays           uint32 `env:"RETENTION_DAYS"            envDefault:"30"    validate:"min=1"`

	// Upper bound for a single auction's fulfillment run, so one slow
	// platform call cannot stall the whole sweep.
	FulfillTimeoutSeconds uint32 `env:"FULFILL_TIMEOUT_SECONDS" envDefault:"30" validate:"min=5,max=300"`

	PlatformAPIVersion string `env:"PLATFORM_API_VERSION" envDefault:"2024-10"`

	// Shared fallback transport for winner/outbid mail. Empty means
	// notification sends degrade to log-only.
	NotifyWebhookURL   string `env:"NOTIFY_WEBHOOK_URL"`
	NotifyWebhookToken string `env:"NOTIFY_WEBHOOK_TOKEN"`

	HttpServerPort uint16 `env:"HTTP_SERVER_PORT" envDefault:"8085" validate:"min=1000,max=65535"`
}

func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	err := godotenv.Load(".env")
	if err != nil {
		zap.L().Debug(".env file not found", zap.Error(err))
	}

	cfg := &Config{}
	// Parse config from environment variables
	if err = env.Parse(cfg); err != nil {
		zap.L().Error("config_load_failed", zap.Error(err))
		return nil, err
	}

	// Validate the config
	validate := validator.New()
	err = validate.Struct(cfg)
	if err != nil {
		zap.L().Error("config_validation_failed", zap.Error(err))
		return nil, err
	}
	return cfg, nil
}
