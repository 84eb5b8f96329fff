package model

import (
	"time"
)

type Identity struct {
	ID        string        `db:"id" json:"id"`
	Document  string        `db:"document" json:"document"`
	FullName  string        `db:"full_name" json:"fullName"`
	Role      IdentityRole  `db:"role" json:"role"`
	Presence  PresenceState `db:"presence" json:"presence"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `db:"updated_at" json:"updatedAt"`
}

// Blocked identities are rejected before any transition.
func (i *Identity) Blocked() bool {
	return i.Presence == PresenceBlocked
}

func (i *Identity) Present() bool {
	return i.Presence == PresencePresent
}
