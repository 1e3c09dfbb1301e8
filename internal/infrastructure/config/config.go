// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the server and the worker.
type Config struct {
	AppEnv          string        `envconfig:"APP_ENV" default:"development"`
	AppPort         string        `envconfig:"APP_PORT" default:"8080"`
	AppVersion      string        `envconfig:"APP_VERSION" default:"dev"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"20"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	// RedisAddr enables the batch snapshot cache when set.
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	BatchCacheTTL time.Duration `envconfig:"BATCH_CACHE_TTL" default:"30s"`

	JWTSecret string `envconfig:"JWT_SECRET" required:"true"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"pharmadesk"`

	// PaymentRoles is a comma separated list; empty lets every authenticated user pay.
	PaymentRoles []string `envconfig:"PAYMENT_ROLES"`

	IdempotencyEnabled bool          `envconfig:"IDEMPOTENCY_ENABLED" default:"true"`
	IdempotencyTTL     time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	OutboxPollInterval time.Duration `envconfig:"OUTBOX_POLL_INTERVAL" default:"1s"`
	OutboxBatchSize    int           `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL must be provided")
	}
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET must be at least 32 characters")
	}
	if cfg.DBMinConns > cfg.DBMaxConns {
		return nil, errors.New("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	return &cfg, nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
}

// CacheEnabled reports whether a Redis address is configured.
func (c *Config) CacheEnabled() bool {
	return c != nil && c.RedisAddr != ""
}
