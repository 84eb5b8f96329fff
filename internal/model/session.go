package model

import (
	"time"
)

// AccessSession is one entry-to-exit presence record for an identity.
// ExitedAt == nil means the session is open.
type AccessSession struct {
	ID                string      `db:"id" json:"id"`
	IdentityID        string      `db:"identity_id" json:"identityId"`
	OperatorID        string      `db:"operator_id" json:"operatorId"`
	VehicleID         *string     `db:"vehicle_id" json:"vehicleId,omitempty"`
	EnteredAt         time.Time   `db:"entered_at" json:"enteredAt"`
	ExitedAt          *time.Time  `db:"exited_at" json:"exitedAt,omitempty"`
	EnteredTimeOfDay  string      `db:"entered_time_of_day" json:"enteredTimeOfDay"`
	ExitedTimeOfDay   *string     `db:"exited_time_of_day" json:"exitedTimeOfDay,omitempty"`
	DurationLabel     *string     `db:"duration_label" json:"durationLabel,omitempty"`
	ForcedClose       bool        `db:"forced_close" json:"forcedClose"`
	ForcedCloseReason *string     `db:"forced_close_reason" json:"forcedCloseReason,omitempty"`
	AlertStatus       AlertStatus `db:"alert_status" json:"alertStatus"`
	AlertResolvedAt   *time.Time  `db:"alert_resolved_at" json:"alertResolvedAt,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updatedAt"`
}

func (s *AccessSession) Open() bool {
	return s.ExitedAt == nil
}

type CreateSessionParams struct {
	IdentityID       string
	OperatorID       string
	VehicleID        *string
	EnteredAt        time.Time
	EnteredTimeOfDay string
}

// CloseSessionParams carries every field a close (scanned or forced)
// mutates in place on the open session row.
type CloseSessionParams struct {
	SessionID         string
	ExitedAt          time.Time
	ExitedTimeOfDay   string
	DurationLabel     string
	ForcedClose       bool
	ForcedCloseReason *string
	AlertStatus       *AlertStatus
	AlertResolvedAt   *time.Time
}

// OpenSessionRow is an open session joined with identity and operator
// display fields for the dwell alert listing.
type OpenSessionRow struct {
	AccessSession
	IdentityDocument string `db:"identity_document" json:"identityDocument"`
	IdentityName     string `db:"identity_name" json:"identityName"`
	OperatorName     string `db:"operator_name" json:"operatorName"`
}
