package model

import (
	"time"
)

// Operator is a gate attendant recording scans. Authenticates with an
// opaque bearer token; only the sha256 hash is stored.
type Operator struct {
	ID              string     `db:"id" json:"id"`
	Name            string     `db:"name" json:"name"`
	TokenHash       string     `db:"token_hash" json:"-"`
	RateLimitPerMin int        `db:"rate_limit_per_minute" json:"rateLimitPerMinute"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	DisabledAt      *time.Time `db:"disabled_at" json:"disabledAt,omitempty"`
}
