package store

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/karunya/aid-bridge-go/models"
)

func TestTransitionSetLeavesDismissalsAlone(t *testing.T) {
	now := time.Now()
	r := &models.Request{
		ID:                    primitive.NewObjectID(),
		RequesterID:           "req-1",
		Status:                models.RequestAccepted,
		AcceptedByVolunteerID: "vol-a",
		DismissedBy:           []string{"vol-b"},
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	set, err := transitionSet(r)
	if err != nil {
		t.Fatalf("transitionSet: %v", err)
	}
	if _, ok := set["_id"]; ok {
		t.Fatal("_id must not be rewritten")
	}
	// Dismissals added by other volunteers after the caller's read would be
	// overwritten by a full replace; only $addToSet may touch that field.
	if _, ok := set["dismissed_by"]; ok {
		t.Fatal("dismissed_by must not be part of a transition write")
	}
	if got, ok := set["status"].(string); !ok || got != string(models.RequestAccepted) {
		t.Fatalf("status = %v, want %s", set["status"], models.RequestAccepted)
	}
	if _, ok := set["accepted_by_volunteer_id"]; !ok {
		t.Fatal("stamped fields missing from the write")
	}
}

func TestTransitionSetDonation(t *testing.T) {
	d := &models.Donation{
		ID:                  primitive.NewObjectID(),
		DonorID:             "don-1",
		Status:              models.DonationAccepted,
		AssignedVolunteerID: "vol-a",
		DismissedBy:         []string{"vol-b"},
	}
	set, err := transitionSet(d)
	if err != nil {
		t.Fatalf("transitionSet: %v", err)
	}
	if _, ok := set["_id"]; ok {
		t.Fatal("_id must not be rewritten")
	}
	if _, ok := set["dismissed_by"]; ok {
		t.Fatal("dismissed_by must not be part of a transition write")
	}
}
