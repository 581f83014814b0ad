package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/portal")
	t.Setenv("REDIS_URL", "redis://localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 7, cfg.InviteTTLDays)
	assert.Equal(t, 72, cfg.SessionTTLHours)
	assert.Equal(t, "v1", cfg.ConsentVersion)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 7*24*time.Hour, cfg.InviteTTL())
	assert.Equal(t, 72*time.Hour, cfg.SessionTTL())
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_StaffKeyHash(t *testing.T) {
	cfg := &Config{
		DatabaseURL:     "postgres://localhost/portal",
		RedisURL:        "redis://localhost:6379",
		StaffKeyHash:    "not-a-bcrypt-hash",
		InviteTTLDays:   7,
		SessionTTLHours: 72,
	}
	assert.Error(t, cfg.Validate(false))

	cfg.StaffKeyHash = "$2b$12$abcdefghijklmnopqrstuvwxyz012345678901234567890123456"
	assert.NoError(t, cfg.Validate(false))
}

func TestValidate_Production(t *testing.T) {
	cfg := &Config{
		DatabaseURL:     "postgres://localhost/portal",
		RedisURL:        "rediss://localhost:6379",
		InviteTTLDays:   7,
		SessionTTLHours: 72,
	}

	// Staff key is mandatory in production
	assert.Error(t, cfg.Validate(true))

	cfg.StaffKeyHash = "$2b$12$abcdefghijklmnopqrstuvwxyz012345678901234567890123456"
	assert.NoError(t, cfg.Validate(true))

	// Preview seeding requires a strong shared secret
	cfg.PreviewSeedURL = "https://preview.example.com/seed"
	cfg.PreviewSeedSecret = "secret"
	assert.Error(t, cfg.Validate(true))

	cfg.PreviewSeedSecret = "a-long-random-secret-value-0123456789abcdef"
	assert.NoError(t, cfg.Validate(true))
}

func TestValidate_TTLBounds(t *testing.T) {
	cfg := &Config{InviteTTLDays: 0, SessionTTLHours: 72}
	assert.Error(t, cfg.Validate(false))

	cfg = &Config{InviteTTLDays: 7, SessionTTLHours: 0}
	assert.Error(t, cfg.Validate(false))
}
