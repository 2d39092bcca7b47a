package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"cerberus/pkg/errors"
)

type Config struct {
	App           AppConfig
	Postgres      PostgresConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	Telegram      TelegramConfig
	Settlement    SettlementConfig
	Liquidity     LiquidityConfig
	Signer        SignerConfig
	Liquidator    LiquidatorConfig
	Exposure      ExposureConfig
	ErrorTracking ErrorTrackingConfig
	HTTP          HTTPConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"cerberus"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"false"`
	Brokers []string `envconfig:"KAFKA_BROKERS"`
}

type TelegramConfig struct {
	Enabled  bool   `envconfig:"TELEGRAM_ALERTS_ENABLED" default:"false"`
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   int64  `envconfig:"TELEGRAM_ALERT_CHAT_ID"`
}

// SettlementConfig points at the transaction executor sidecar that builds,
// signs and submits the on-chain liquidation.
type SettlementConfig struct {
	ExecutorURL string        `envconfig:"SETTLEMENT_EXECUTOR_URL" required:"true"`
	Timeout     time.Duration `envconfig:"SETTLEMENT_TIMEOUT" default:"30s"`
}

type LiquidityConfig struct {
	IndexerURL string        `envconfig:"LIQUIDITY_INDEXER_URL" required:"true"`
	Timeout    time.Duration `envconfig:"LIQUIDITY_TIMEOUT" default:"10s"`
}

type SignerConfig struct {
	KeypairPath string `envconfig:"LIQUIDATOR_KEYPAIR_PATH"`
}

// LiquidatorConfig carries policy values for the liquidation engine.
// Thresholds are configuration, not mechanism: production values are set
// per deployment and never inferred in code.
type LiquidatorConfig struct {
	ScanInterval     time.Duration `envconfig:"LIQUIDATOR_SCAN_INTERVAL" default:"1m"`
	LockTTL          time.Duration `envconfig:"LIQUIDATOR_LOCK_TTL" default:"15s"`
	InterLoanDelay   time.Duration `envconfig:"LIQUIDATOR_INTER_LOAN_DELAY" default:"2s"`
	Loss1hLimit      int64         `envconfig:"LIQUIDATOR_LOSS_1H_LIMIT_LAMPORTS" default:"2000000000"`
	Loss24hLimit     int64         `envconfig:"LIQUIDATOR_LOSS_24H_LIMIT_LAMPORTS" default:"10000000000"`
	Count1hLimit     int           `envconfig:"LIQUIDATOR_COUNT_1H_LIMIT" default:"20"`
	AutoBlacklistBps int64         `envconfig:"LIQUIDATOR_AUTO_BLACKLIST_BPS" default:"3000"`

	// Health verdict policy
	FailureAlertThreshold int `envconfig:"LIQUIDATOR_FAILURE_ALERT_THRESHOLD" default:"3"`
	StalenessMultiple     int `envconfig:"LIQUIDATOR_STALENESS_MULTIPLE" default:"3"`
}

// ExposureConfig defines the ascending warning bands in basis points of
// pool liquidity.
type ExposureConfig struct {
	RefreshInterval time.Duration `envconfig:"EXPOSURE_REFRESH_INTERVAL" default:"5m"`
	WatchBps        int64         `envconfig:"EXPOSURE_WATCH_BPS" default:"1000"`
	WarningBps      int64         `envconfig:"EXPOSURE_WARNING_BPS" default:"2500"`
	CriticalBps     int64         `envconfig:"EXPOSURE_CRITICAL_BPS" default:"5000"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"true"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

type HTTPConfig struct {
	ListenAddr string `envconfig:"HTTP_LISTEN_ADDR" default:":8080"`
}

// Load reads configuration from environment variables
// It first tries to load .env file (useful for local development)
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}

	if cfg.Exposure.WatchBps > cfg.Exposure.WarningBps || cfg.Exposure.WarningBps > cfg.Exposure.CriticalBps {
		return nil, errors.Wrap(errors.ErrInvalidInput, "exposure warning bands must be ascending")
	}

	return &cfg, nil
}
