package model

import (
	"time"
)

type Vehicle struct {
	ID        string        `db:"id" json:"id"`
	OwnerID   string        `db:"owner_id" json:"ownerId"`
	Plate     string        `db:"plate" json:"plate"`
	Presence  PresenceState `db:"presence" json:"presence"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time     `db:"updated_at" json:"updatedAt"`
}
