package models

import "strings"

// Role of an authenticated actor, as issued by the identity service.
type Role string

const (
	RoleCommunity Role = "community"
	RoleVolunteer Role = "volunteer"
	RoleDonor     Role = "donor"
	RoleAdmin     Role = "admin"
)

// Volunteer approval status. Only meaningful for volunteers; other roles
// are implicitly approved by the identity service.
const (
	ApprovalApproved = "approved"
	ApprovalPending  = "pending"
	ApprovalRejected = "rejected"
)

// Actor is the caller identity resolved from the auth token. Every core
// operation takes an explicit Actor; nothing reads ambient session state.
type Actor struct {
	UID            string `json:"uid"`
	Role           Role   `json:"role"`
	ApprovalStatus string `json:"approval_status,omitempty"`
	LocationKey    string `json:"location_key,omitempty"`
}

// IsApprovedVolunteer reports whether the actor may pick up open work.
func (a Actor) IsApprovedVolunteer() bool {
	return a.Role == RoleVolunteer && a.ApprovalStatus == ApprovalApproved
}

// NormalizeLocationKey derives the matching key from a display location.
// It is the only place the normalization rule lives; every producer and
// consumer of location_key goes through it.
func NormalizeLocationKey(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}
