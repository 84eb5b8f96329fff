package model

import (
	"time"
)

// GateCredential is a short-lived visitor access token. ExpiresAt is the
// source of truth for validity; the sweeper only reclaims space.
type GateCredential struct {
	ID         string    `db:"id" json:"id"`
	IdentityID string    `db:"identity_id" json:"identityId"`
	Token      string    `db:"token" json:"-"`
	ExpiresAt  time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

func (c *GateCredential) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

type CreateCredentialParams struct {
	IdentityID string
	Token      string
	ExpiresAt  time.Time
}
