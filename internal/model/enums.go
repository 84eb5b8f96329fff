package model

type PresenceState string

const (
	PresencePresent PresenceState = "present"
	PresenceAbsent  PresenceState = "absent"
	PresenceBlocked PresenceState = "blocked"
)

type IdentityRole string

const (
	RoleStudent IdentityRole = "student"
	RoleStaff   IdentityRole = "staff"
	RoleVisitor IdentityRole = "visitor"
)

// RequiresCredential reports whether entry for this role is gated on an
// active temporary credential.
func (r IdentityRole) RequiresCredential() bool {
	return r == RoleVisitor
}

// Direction is resolved exactly once at the transition entry point.
// DirectionInferred means "derive from the identity's current presence".
type Direction string

const (
	DirectionEntry    Direction = "entry"
	DirectionExit     Direction = "exit"
	DirectionInferred Direction = "inferred"
)

func (d Direction) Valid() bool {
	switch d {
	case DirectionEntry, DirectionExit, DirectionInferred:
		return true
	}
	return false
}

type AlertStatus string

const (
	AlertNone         AlertStatus = "none"
	AlertPending      AlertStatus = "pending"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
)
