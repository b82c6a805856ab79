package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"b2b-charge-service"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"charge_service"`
	}

	Server struct {
		Timeout time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
	}

	Ledger struct {
		LockTimeout       time.Duration `envconfig:"LOCK_TIMEOUT" default:"5s"`
		LockLease         time.Duration `envconfig:"LOCK_LEASE" default:"30s"`
		CommitAttempts    int           `envconfig:"COMMIT_ATTEMPTS" default:"5"`
		RetryBackoff      time.Duration `envconfig:"RETRY_BACKOFF" default:"25ms"`
		IdempotencyTTL    time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
		InflightTTL       time.Duration `envconfig:"IDEMPOTENCY_INFLIGHT_TTL" default:"2m"`
		DoubleSpendTTL    time.Duration `envconfig:"DOUBLE_SPEND_TTL" default:"5m"`
		MinorThreshold    string        `envconfig:"MINOR_DISCREPANCY_THRESHOLD" default:"100"`
		EnforceDailyLimit bool          `envconfig:"ENFORCE_DAILY_LIMIT" default:"true"`
		SweepInterval     time.Duration `envconfig:"KV_SWEEP_INTERVAL" default:"1m"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

// MinorThreshold parses the discrepancy threshold at or below which
// reconciliation may auto-correct a stored balance.
func (c *Config) MinorThreshold() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.Ledger.MinorThreshold)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid minor discrepancy threshold %q: %w", c.Ledger.MinorThreshold, err)
	}

	return d, nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
