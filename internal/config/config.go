package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	DatabaseURL           string `env:"DATABASE_URL,required"`
	RedisURL              string `env:"REDIS_URL,required"`
	CredentialTTLMinutes  int    `env:"CREDENTIAL_TTL_MINUTES" envDefault:"120"`
	AlertThresholdMinutes int    `env:"ALERT_THRESHOLD_MINUTES" envDefault:"480"`
	SweepIntervalSeconds  int    `env:"SWEEP_INTERVAL_SECONDS" envDefault:"60"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
}

// CredentialTTL is how long a visitor credential stays valid after issue
// or reactivation.
func (c *Config) CredentialTTL() time.Duration {
	return time.Duration(c.CredentialTTLMinutes) * time.Minute
}

// AlertThreshold is the default dwell time after which an open session
// raises a pending alert.
func (c *Config) AlertThreshold() time.Duration {
	return time.Duration(c.AlertThresholdMinutes) * time.Minute
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate() error {
	if c.CredentialTTLMinutes <= 0 {
		return fmt.Errorf("CREDENTIAL_TTL_MINUTES must be positive")
	}
	if c.AlertThresholdMinutes <= 0 {
		return fmt.Errorf("ALERT_THRESHOLD_MINUTES must be positive")
	}
	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be positive")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
