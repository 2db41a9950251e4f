package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                     8080,
		Environment:              "development",
		StoreBackend:             StoreBackendMemory,
		JWTSecret:                "test-secret",
		PairingCodeTTL:           24 * time.Hour,
		RateLimitPerHour:         300,
		RegistrationLimitPerHour: 5,
		GatewaySendBuffer:        64,
		GatewayOverflowPolicy:    OverflowDropOldest,
	}
}

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("IsProduction checks environment", func(t *testing.T) {
		assert.True(t, (&Config{Environment: "production"}).IsProduction())
		assert.False(t, (&Config{Environment: "development"}).IsProduction())
	})
}

func TestLoad(t *testing.T) {
	t.Run("loads config with defaults", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "test-secret")
		t.Setenv("DATABASE_URL", "postgres://localhost/test")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, StoreBackendPostgres, cfg.StoreBackend)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Empty(t, cfg.RedisURL)
		assert.Equal(t, 24*time.Hour, cfg.PairingCodeTTL)
		assert.Equal(t, 5*time.Second, cfg.PartnerCacheTTL)
		assert.Equal(t, 300, cfg.RateLimitPerHour)
		assert.Equal(t, 5, cfg.RegistrationLimitPerHour)
		assert.True(t, cfg.RateLimitEnabled)
		assert.Equal(t, 64, cfg.GatewaySendBuffer)
		assert.Equal(t, OverflowDropOldest, cfg.GatewayOverflowPolicy)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "test-secret")
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("PORT", "3000")
		t.Setenv("PAIRING_CODE_TTL", "90m")
		t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
		t.Setenv("RATE_LIMIT_ENABLED", "false")
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, StoreBackendMemory, cfg.StoreBackend)
		assert.Equal(t, 90*time.Minute, cfg.PairingCodeTTL)
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
		assert.False(t, cfg.RateLimitEnabled)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("fails without required JWT_SECRET", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("accepts valid memory config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	t.Run("postgres requires DATABASE_URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.StoreBackend = StoreBackendPostgres
		assert.Error(t, cfg.Validate())

		cfg.DatabaseURL = "postgres://localhost/test"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("rejects unknown store backend", func(t *testing.T) {
		cfg := validConfig()
		cfg.StoreBackend = "sqlite"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects unknown overflow policy", func(t *testing.T) {
		cfg := validConfig()
		cfg.GatewayOverflowPolicy = "block"
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non positive limits", func(t *testing.T) {
		cfg := validConfig()
		cfg.RateLimitPerHour = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("production requires strong jwt secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.Environment = "production"
		cfg.JWTSecret = "secret"
		assert.Error(t, cfg.Validate())

		cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
		assert.NoError(t, cfg.Validate())
	})
}
