package core

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/karunya/aid-bridge-go/models"
)

// RequestFilter selects requests. Zero-valued fields are ignored; a set
// LocationKey matches by equality, never as a prefix or wildcard.
type RequestFilter struct {
	Status         models.RequestStatus
	LocationKey    string
	RequesterID    string
	AcceptedBy     string
	ClaimedBy      string
	NotDismissedBy string
}

// DonationFilter selects donations; same zero-value semantics as
// RequestFilter.
type DonationFilter struct {
	Status         models.DonationStatus
	LocationKey    string
	DonorID        string
	AssignedTo     string
	SourceRequest  primitive.ObjectID
	NotDismissedBy string
}

// Store is the persistence contract the engine runs against. Two flat
// collections keyed by generated id; all queries are filters over status,
// location key, and owner/assignee ids.
//
// The ReplaceIf methods are the concurrency primitive: each writes the
// given record over the stored one only if the stored status still equals
// expect, as one indivisible operation, and returns ErrConflict otherwise.
// The engine never holds locks across calls; every transition is a single
// conditional write.
type Store interface {
	InsertRequest(ctx context.Context, r *models.Request) error
	GetRequest(ctx context.Context, id primitive.ObjectID) (*models.Request, error)
	ReplaceRequestIf(ctx context.Context, r *models.Request, expect models.RequestStatus) error
	DismissRequest(ctx context.Context, id primitive.ObjectID, volunteerUID string) error
	ListRequests(ctx context.Context, f RequestFilter) ([]models.Request, error)

	InsertDonation(ctx context.Context, d *models.Donation) error
	GetDonation(ctx context.Context, id primitive.ObjectID) (*models.Donation, error)
	ReplaceDonationIf(ctx context.Context, d *models.Donation, expect models.DonationStatus) error
	DismissDonation(ctx context.Context, id primitive.ObjectID, volunteerUID string) error
	ListDonations(ctx context.Context, f DonationFilter) ([]models.Donation, error)
}
