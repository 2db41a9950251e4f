package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Background job intervals
const CleanupJobInterval = 15 * time.Minute

// Rate limit windows
const (
	GeneralRateLimitWindow      = time.Hour
	RegistrationRateLimitWindow = time.Hour
	RegistrationIPRateLimit     = 20
	AuthRateLimit               = 10
	AuthRateLimitWindow         = 5 * time.Minute
	AccountDeletionRateLimit    = 1
	AccountDeletionWindow       = 24 * time.Hour
	AuthenticatedRateMultiplier = 2
)

// Gateway connection tuning
const (
	GatewayWriteTimeout = 10 * time.Second
	GatewayPongTimeout  = 60 * time.Second
	GatewayPingInterval = 30 * time.Second
	GatewayCloseTimeout = 5 * time.Second
	GatewayReadLimit    = 4096
)

// Maximum accepted request body
const MaxRequestBodyBytes = 1 << 20
