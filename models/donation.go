package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DonationStatus is the lifecycle state of a donation.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationAccepted  DonationStatus = "accepted"
	DonationPicked    DonationStatus = "picked"
	DonationDelivered DonationStatus = "delivered"
	DonationCompleted DonationStatus = "completed"
)

type Donation struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	DonorID string             `bson:"donor_id" json:"donor_id"`

	Initiative  string `bson:"initiative" json:"initiative"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	ProofURL    string `bson:"proof_url,omitempty" json:"proof_url,omitempty"` // opaque hosted-image URL

	Location    string `bson:"location" json:"location"`
	LocationKey string `bson:"location_key" json:"location_key"`

	Status DonationStatus `bson:"status" json:"status"`

	// Set when this donation was spawned by a donor claiming a request.
	// Zero for direct donations.
	SourceRequestID primitive.ObjectID `bson:"source_request_id,omitempty" json:"source_request_id,omitempty"`

	AssignedVolunteerID string `bson:"assigned_volunteer_id,omitempty" json:"assigned_volunteer_id,omitempty"`

	Feedback string `bson:"feedback,omitempty" json:"feedback,omitempty"`

	DismissedBy []string `bson:"dismissed_by,omitempty" json:"-"`

	CreatedAt   time.Time  `bson:"created_at" json:"created_at"`
	AcceptedAt  *time.Time `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`
	PickedAt    *time.Time `bson:"picked_at,omitempty" json:"picked_at,omitempty"`
	DeliveredAt *time.Time `bson:"delivered_at,omitempty" json:"delivered_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `bson:"updated_at" json:"updated_at"`
}

// DismissedByVolunteer reports whether uid has passed on this donation.
func (d *Donation) DismissedByVolunteer(uid string) bool {
	for _, v := range d.DismissedBy {
		if v == uid {
			return true
		}
	}
	return false
}

// WorkItem is the tagged union a volunteer's unified queue is built from:
// exactly one of Request or Donation is set, indicated by Kind.
type WorkItem struct {
	Kind     string    `json:"kind"` // "request" or "donation"
	Request  *Request  `json:"request,omitempty"`
	Donation *Donation `json:"donation,omitempty"`
}
