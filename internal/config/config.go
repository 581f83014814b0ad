package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port              int    `env:"PORT" envDefault:"8080"`
	DatabaseURL       string `env:"DATABASE_URL,required"`
	RedisURL          string `env:"REDIS_URL,required"`
	StaffKeyHash      string `env:"STAFF_KEY_HASH"`
	InviteTTLDays     int    `env:"INVITE_TTL_DAYS" envDefault:"7"`
	SessionTTLHours   int    `env:"SESSION_TTL_HOURS" envDefault:"72"`
	ConsentVersion    string `env:"CONSENT_VERSION" envDefault:"v1"`
	PreviewSeedURL    string `env:"PREVIEW_SEED_URL" envDefault:""`
	PreviewSeedSecret string `env:"PREVIEW_SEED_SECRET" envDefault:""`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) InviteTTL() time.Duration {
	return time.Duration(c.InviteTTLDays) * 24 * time.Hour
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.StaffKeyHash != "" {
		if !strings.HasPrefix(c.StaffKeyHash, "$2a$") &&
			!strings.HasPrefix(c.StaffKeyHash, "$2b$") &&
			!strings.HasPrefix(c.StaffKeyHash, "$2y$") {
			return fmt.Errorf("STAFF_KEY_HASH must be a bcrypt hash")
		}
	}

	if c.InviteTTLDays <= 0 {
		return fmt.Errorf("INVITE_TTL_DAYS must be positive")
	}
	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive")
	}

	if isProduction {
		if c.StaffKeyHash == "" {
			return fmt.Errorf("STAFF_KEY_HASH is required in production")
		}
		if c.PreviewSeedURL != "" {
			if err := validateSecret("PREVIEW_SEED_SECRET", c.PreviewSeedSecret); err != nil {
				return err
			}
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
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
