package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// RequestStatus is the lifecycle state of a support request.
type RequestStatus string

const (
	RequestPending      RequestStatus = "pending"
	RequestAccepted     RequestStatus = "VOLUNTEER_ACCEPTED"
	RequestReached      RequestStatus = "REACHED_COMMUNITY"
	RequestApproved     RequestStatus = "APPROVED_BY_VOLUNTEER"
	RequestRejected     RequestStatus = "REJECTED_BY_VOLUNTEER"
	RequestDonorClaimed RequestStatus = "DONOR_CLAIMED"
)

// Initiatives is the fixed catalog of support categories.
var Initiatives = []string{
	"education",
	"healthcare",
	"food",
	"clothing",
	"shelter",
	"disaster-relief",
}

// ValidInitiative reports whether s is one of the catalog categories.
func ValidInitiative(s string) bool {
	for _, i := range Initiatives {
		if s == i {
			return true
		}
	}
	return false
}

// ValidUrgency reports whether s is a known urgency level.
func ValidUrgency(s string) bool {
	return s == "low" || s == "medium" || s == "high"
}

type Request struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RequesterID string             `bson:"requester_id" json:"requester_id"`

	Initiative string `bson:"initiative" json:"initiative"`
	Urgency    string `bson:"urgency" json:"urgency"` // low, medium, high

	Location    string `bson:"location" json:"location"`
	LocationKey string `bson:"location_key" json:"location_key"`

	BeneficiaryName    string         `bson:"beneficiary_name" json:"beneficiary_name"`
	BeneficiaryContact string         `bson:"beneficiary_contact,omitempty" json:"beneficiary_contact,omitempty"`
	BeneficiaryAddress string         `bson:"beneficiary_address,omitempty" json:"beneficiary_address,omitempty"`
	Description        string         `bson:"description,omitempty" json:"description,omitempty"`
	Extra              map[string]any `bson:"extra,omitempty" json:"extra,omitempty"` // initiative-specific payload, stored verbatim

	Status RequestStatus `bson:"status" json:"status"`

	AcceptedByVolunteerID string `bson:"accepted_by_volunteer_id,omitempty" json:"accepted_by_volunteer_id,omitempty"`
	DecisionNotes         string `bson:"decision_notes,omitempty" json:"decision_notes,omitempty"`
	RejectReason          string `bson:"reject_reason,omitempty" json:"reject_reason,omitempty"`

	ClaimedByDonorID string             `bson:"claimed_by_donor_id,omitempty" json:"claimed_by_donor_id,omitempty"`
	DonorAddress     string             `bson:"donor_address,omitempty" json:"donor_address,omitempty"`
	DonorNotes       string             `bson:"donor_notes,omitempty" json:"donor_notes,omitempty"`
	LinkedDonationID primitive.ObjectID `bson:"linked_donation_id,omitempty" json:"linked_donation_id,omitempty"`

	// Volunteers who passed on this request while it was pending. A pass
	// hides the request from that volunteer only; it never changes status.
	DismissedBy []string `bson:"dismissed_by,omitempty" json:"-"`

	CreatedAt  time.Time  `bson:"created_at" json:"created_at"`
	AcceptedAt *time.Time `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`
	ReachedAt  *time.Time `bson:"reached_at,omitempty" json:"reached_at,omitempty"`
	DecisionAt *time.Time `bson:"decision_at,omitempty" json:"decision_at,omitempty"`
	ClaimedAt  *time.Time `bson:"claimed_at,omitempty" json:"claimed_at,omitempty"`
	UpdatedAt  time.Time  `bson:"updated_at" json:"updated_at"`
}

// DismissedByVolunteer reports whether uid has passed on this request.
func (r *Request) DismissedByVolunteer(uid string) bool {
	for _, v := range r.DismissedBy {
		if v == uid {
			return true
		}
	}
	return false
}
