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

// TransitionMaxRetries bounds the retry loop around storage conflicts on
// concurrent transitions for the same identity.
const TransitionMaxRetries = 3

// CredentialRetention is how long expired credential rows are kept before
// the sweeper reclaims them. Retention is bookkeeping only; expires_at
// decides validity.
const CredentialRetention = 24 * time.Hour

// Default rate limiting
const DefaultRateLimitPerMin = 60
