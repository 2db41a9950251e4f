package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"

	OverflowDropOldest = "drop_oldest"
	OverflowDisconnect = "disconnect"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                     int           `env:"PORT" envDefault:"8080"`
	Environment              string        `env:"APP_ENV" envDefault:"development"`
	StoreBackend             string        `env:"STORE_BACKEND" envDefault:"postgres"`
	DatabaseURL              string        `env:"DATABASE_URL"`
	RunMigrations            bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
	RedisURL                 string        `env:"REDIS_URL"`
	JWTSecret                string        `env:"JWT_SECRET,required,notEmpty"`
	AccessTokenTTL           time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
	PairingCodeTTL           time.Duration `env:"PAIRING_CODE_TTL" envDefault:"24h"`
	PartnerCacheTTL          time.Duration `env:"PARTNER_CACHE_TTL" envDefault:"5s"`
	PartnerCacheSize         int           `env:"PARTNER_CACHE_SIZE" envDefault:"10000"`
	RateLimitEnabled         bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitPerHour         int           `env:"RATE_LIMIT_PER_HOUR" envDefault:"300"`
	RegistrationLimitPerHour int           `env:"REGISTRATION_LIMIT_PER_HOUR" envDefault:"5"`
	RateLimitMaxKeys         int           `env:"RATE_LIMIT_MAX_KEYS" envDefault:"100000"`
	TrustProxyHeaders        bool          `env:"TRUST_PROXY_HEADERS" envDefault:"true"`
	AllowedOrigins           []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	GatewaySendBuffer        int           `env:"GATEWAY_SEND_BUFFER" envDefault:"64"`
	GatewayOverflowPolicy    string        `env:"GATEWAY_OVERFLOW_POLICY" envDefault:"drop_oldest"`
	LogLevel                 string        `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=%s", StoreBackendPostgres)
		}
	case StoreBackendMemory:
		if c.IsProduction() {
			log.Warn().Msg("STORE_BACKEND=memory in production: pairs are lost on restart and not shared between instances")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreBackendPostgres, StoreBackendMemory, c.StoreBackend)
	}

	switch c.GatewayOverflowPolicy {
	case OverflowDropOldest, OverflowDisconnect:
	default:
		return fmt.Errorf("GATEWAY_OVERFLOW_POLICY must be %q or %q", OverflowDropOldest, OverflowDisconnect)
	}

	if c.GatewaySendBuffer <= 0 {
		return fmt.Errorf("GATEWAY_SEND_BUFFER must be positive")
	}
	if c.RateLimitPerHour <= 0 || c.RegistrationLimitPerHour <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if c.PairingCodeTTL <= 0 {
		return fmt.Errorf("PAIRING_CODE_TTL must be positive")
	}

	if c.IsProduction() {
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if len(c.AllowedOrigins) == 0 {
			log.Warn().Msg("ALLOWED_ORIGINS is empty in production: websocket handshakes accepted from any origin")
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
