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

// Rate limits for the unauthenticated invite-exchange endpoint
const (
	CodeExchangeLimitPerIP   = 5
	CodeExchangeWindow       = 1 * time.Minute
	InviteIssueLimitPerHour  = 10
	PreviewSeedCallTimeout   = 10 * time.Second
)

// Signature payload ceiling for drawn images
const MaxSignatureImageBytes = 2 << 20 // 2MB
