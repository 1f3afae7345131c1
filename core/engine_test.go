package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	core "github.com/karunya/aid-bridge-go/core"
	models "github.com/karunya/aid-bridge-go/models"
	store "github.com/karunya/aid-bridge-go/store"
)

var (
	requester = models.Actor{UID: "req-1", Role: models.RoleCommunity}
	volA      = models.Actor{UID: "vol-a", Role: models.RoleVolunteer, ApprovalStatus: models.ApprovalApproved, LocationKey: "guntur"}
	volB      = models.Actor{UID: "vol-b", Role: models.RoleVolunteer, ApprovalStatus: models.ApprovalApproved, LocationKey: "guntur"}
	volFar    = models.Actor{UID: "vol-c", Role: models.RoleVolunteer, ApprovalStatus: models.ApprovalApproved, LocationKey: "tirupati"}
	volUnappr = models.Actor{UID: "vol-u", Role: models.RoleVolunteer, ApprovalStatus: models.ApprovalPending, LocationKey: "guntur"}
	donor     = models.Actor{UID: "don-1", Role: models.RoleDonor}
	donor2    = models.Actor{UID: "don-2", Role: models.RoleDonor}
)

func newEngine(t *testing.T) *core.Engine {
	t.Helper()
	return &core.Engine{
		Store: store.NewMemory(),
		Now:   func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func seedRequest(t *testing.T, eng *core.Engine) *models.Request {
	t.Helper()
	r, err := eng.CreateRequest(context.Background(), requester, core.CreateRequestInput{
		Initiative:      "food",
		Urgency:         "high",
		Location:        "  Guntur ",
		BeneficiaryName: "Lakshmi",
	})
	if err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return r
}

func seedDonation(t *testing.T, eng *core.Engine) *models.Donation {
	t.Helper()
	d, err := eng.CreateDonation(context.Background(), donor, core.CreateDonationInput{
		Initiative: "clothing",
		Location:   "Guntur",
	})
	if err != nil {
		t.Fatalf("seed donation: %v", err)
	}
	return d
}

func TestCreateRequest_NormalizesLocationKey(t *testing.T) {
	eng := newEngine(t)
	r := seedRequest(t, eng)

	if r.Status != models.RequestPending {
		t.Fatalf("status = %s, want pending", r.Status)
	}
	if r.LocationKey != "guntur" {
		t.Fatalf("location key = %q, want guntur", r.LocationKey)
	}
	if r.Location != "Guntur" {
		t.Fatalf("display location = %q, want Guntur", r.Location)
	}
}

func TestCreateRequest_Validation(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   core.CreateRequestInput
	}{
		{"unknown initiative", core.CreateRequestInput{Initiative: "yachts", Urgency: "low", Location: "Guntur", BeneficiaryName: "x"}},
		{"bad urgency", core.CreateRequestInput{Initiative: "food", Urgency: "urgent", Location: "Guntur", BeneficiaryName: "x"}},
		{"empty location", core.CreateRequestInput{Initiative: "food", Urgency: "low", Location: "   ", BeneficiaryName: "x"}},
		{"empty beneficiary", core.CreateRequestInput{Initiative: "food", Urgency: "low", Location: "Guntur", BeneficiaryName: " "}},
	}
	for _, tc := range cases {
		if _, err := eng.CreateRequest(ctx, requester, tc.in); !errors.Is(err, core.ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", tc.name, err)
		}
	}

	if _, err := eng.CreateRequest(ctx, volA, core.CreateRequestInput{Initiative: "food", Urgency: "low", Location: "Guntur", BeneficiaryName: "x"}); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("volunteer create: err = %v, want ErrForbidden", err)
	}
	if _, err := eng.CreateRequest(ctx, models.Actor{}, core.CreateRequestInput{}); !errors.Is(err, core.ErrUnauthenticated) {
		t.Errorf("anonymous create: err = %v, want ErrUnauthenticated", err)
	}
}

func TestRequestAccept(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	r := seedRequest(t, eng)

	got, err := eng.TransitionRequest(ctx, volA, r.ID, core.RequestAccept, core.TransitionData{})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != models.RequestAccepted {
		t.Fatalf("status = %s, want VOLUNTEER_ACCEPTED", got.Status)
	}
	if got.AcceptedByVolunteerID != volA.UID {
		t.Fatalf("accepted by = %q, want %q", got.AcceptedByVolunteerID, volA.UID)
	}
	if got.AcceptedAt == nil {
		t.Fatal("accepted_at not stamped")
	}

	// Loser of the race observes a conflict, never a silent overwrite.
	if _, err := eng.TransitionRequest(ctx, volB, r.ID, core.RequestAccept, core.TransitionData{}); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("second accept: err = %v, want ErrConflict", err)
	}
	cur, err := eng.Store.GetRequest(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cur.AcceptedByVolunteerID != volA.UID {
		t.Fatalf("accepted by overwritten to %q", cur.AcceptedByVolunteerID)
	}

	// Retry by the winner is a no-op success.
	again, err := eng.TransitionRequest(ctx, volA, r.ID, core.RequestAccept, core.TransitionData{})
	if err != nil {
		t.Fatalf("idempotent retry: %v", err)
	}
	if !again.AcceptedAt.Equal(*got.AcceptedAt) {
		t.Fatal("retry restamped accepted_at")
	}
}

func TestRequestAccept_Gates(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	r := seedRequest(t, eng)

	if _, err := eng.TransitionRequest(ctx, volFar, r.ID, core.RequestAccept, core.TransitionData{}); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("wrong location: err = %v, want ErrForbidden", err)
	}
	if _, err := eng.TransitionRequest(ctx, volUnappr, r.ID, core.RequestAccept, core.TransitionData{}); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("unapproved: err = %v, want ErrForbidden", err)
	}
	if _, err := eng.TransitionRequest(ctx, donor, r.ID, core.RequestAccept, core.TransitionData{}); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("donor accept: err = %v, want ErrForbidden", err)
	}

	noLoc := models.Actor{UID: "vol-x", Role: models.RoleVolunteer, ApprovalStatus: models.ApprovalApproved}
	if _, err := eng.TransitionRequest(ctx, noLoc, r.ID, core.RequestAccept, core.TransitionData{}); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("empty location key: err = %v, want ErrForbidden", err)
	}
}

func TestRequestAccept_Concurrent(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	r := seedRequest(t, eng)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, v := range []models.Actor{volA, volB} {
		wg.Add(1)
		go func(i int, v models.Actor) {
			defer wg.Done()
			_, errs[i] = eng.TransitionRequest(ctx, v, r.ID, core.RequestAccept, core.TransitionData{})
		}(i, v)
	}
	wg.Wait()

	var ok, conflict int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, core.ErrConflict):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || conflict != 1 {
		t.Fatalf("ok=%d conflict=%d, want exactly one of each", ok, conflict)
	}
}

func TestRequestDeny_IsPerVolunteer(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	r := seedRequest(t, eng)

	got, err := eng.TransitionRequest(ctx, volB, r.ID, core.RequestDeny, core.TransitionData{})
	if err != nil {
		t.Fatalf("deny: %v", err)
	}
	if got.Status != models.RequestPending {
		t.Fatalf("deny changed status to %s", got.Status)
	}

	// Still available to another volunteer in the same city.
	if _, err := eng.TransitionRequest(ctx, volA, r.ID, core.RequestAccept, core.TransitionData{}); err != nil {
		t.Fatalf("accept after other volunteer's deny: %v", err)
	}

	// Deny after leaving pending is illegal.
	if _, err := eng.TransitionRequest(ctx, volB, r.ID, core.RequestDeny, core.TransitionData{}); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("deny accepted request: err = %v, want ErrInvalidTransition", err)
	}
}

func TestRequestDeny_Repeatable(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	r := seedRequest(t, eng)

	for i := 0; i < 2; i++ {
		if _, err := eng.TransitionRequest(ctx, volB, r.ID, core.RequestDeny, core.TransitionData{}); err != nil {
			t.Fatalf("deny #%d: %v", i+1, err)
		}
	}
}

func TestRequestReview(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	r := seedRequest(t, eng)

	if _, err := eng.TransitionRequest(ctx, volA, r.ID, core.RequestAccept, core.TransitionData{}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	// Only the accepting volunteer may progress the request.
	if _, err := eng.TransitionRequest(ctx, volB, r.ID, core.RequestReached, core.TransitionData{}); !errors.Is(err, core.ErrForbidden) {
		t.Fatalf("reached by non-acceptor: err = %v, want ErrForbidden", err)
	}

	got, err := eng.TransitionRequest(ctx, volA, r.ID, core.RequestReached, core.TransitionData{})
	if err != nil {
		t.Fatalf("mark-reached: %v", err)
	}
	if got.Status != models.RequestReached || got.ReachedAt == nil {
		t.Fatalf("status = %s reached_at = %v", got.Status, got.ReachedAt)
	}

	// Retrying an applied transition is a no-op success for the acceptor.
	if _, err := eng.TransitionRequest(ctx, volA, r.ID, core.RequestReached, core.TransitionData{}); err != nil {
		t.Fatalf("idempotent mark-reached: %v", err)
	}

	// Reject requires a reason.
	if _, err := eng.TransitionRequest(ctx, volA, r.ID, core.RequestReject, core.TransitionData{}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("reject without reason: err = %v, want ErrValidation", err)
	}

	got, err = eng.TransitionRequest(ctx, volA, r.ID, core.RequestReject, core.TransitionData{Reason: "unable to verify"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got.Status != models.RequestRejected || got.RejectReason != "unable to verify" {
		t.Fatalf("status = %s reason = %q", got.Status, got.RejectReason)
	}

	// Rejection is terminal; approve can no longer run.
	if _, err := eng.TransitionRequest(ctx, volA, r.ID, core.RequestApprove, core.TransitionData{}); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("approve after reject: err = %v, want ErrInvalidTransition", err)
	}
}

func TestRequestApprove_KeepsNotes(t *testing.T) {
	eng := newEngine(t)
	r := seedRequest(t, eng)

	mustTransition(t, eng, volA, r.ID, core.RequestAccept, core.TransitionData{})
	mustTransition(t, eng, volA, r.ID, core.RequestReached, core.TransitionData{})
	got := mustTransition(t, eng, volA, r.ID, core.RequestApprove, core.TransitionData{Notes: "verified in person"})

	if got.Status != models.RequestApproved {
		t.Fatalf("status = %s", got.Status)
	}
	if got.DecisionNotes != "verified in person" || got.DecisionAt == nil {
		t.Fatalf("notes = %q decision_at = %v", got.DecisionNotes, got.DecisionAt)
	}
}

func TestRequestClaim(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	r := seedRequest(t, eng)

	mustTransition(t, eng, volA, r.ID, core.RequestAccept, core.TransitionData{})
	mustTransition(t, eng, volA, r.ID, core.RequestReached, core.TransitionData{})
	mustTransition(t, eng, volA, r.ID, core.RequestApprove, core.TransitionData{})

	// Address is required.
	if _, err := eng.TransitionRequest(ctx, donor, r.ID, core.RequestClaim, core.TransitionData{}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("claim without address: err = %v, want ErrValidation", err)
	}

	got, err := eng.TransitionRequest(ctx, donor, r.ID, core.RequestClaim, core.TransitionData{DonorAddress: "12 Main St"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got.Status != models.RequestDonorClaimed || got.ClaimedByDonorID != donor.UID {
		t.Fatalf("status = %s claimed by = %q", got.Status, got.ClaimedByDonorID)
	}
	if got.LinkedDonationID.IsZero() {
		t.Fatal("linked_donation_id not stamped")
	}

	// Exactly one spawned donation, pending, traceable to the request.
	spawned, err := eng.Store.ListDonations(ctx, core.DonationFilter{SourceRequest: r.ID})
	if err != nil {
		t.Fatalf("list spawned: %v", err)
	}
	if len(spawned) != 1 {
		t.Fatalf("spawned %d donations, want 1", len(spawned))
	}
	d := spawned[0]
	if d.Status != models.DonationPending || d.DonorID != donor.UID || d.LocationKey != "guntur" || d.Initiative != "food" {
		t.Fatalf("spawned donation = %+v", d)
	}

	// A second donor loses cleanly.
	if _, err := eng.TransitionRequest(ctx, donor2, r.ID, core.RequestClaim, core.TransitionData{DonorAddress: "9 Oak Rd"}); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("second claim: err = %v, want ErrConflict", err)
	}

	// Retry by the same donor spawns nothing new.
	if _, err := eng.TransitionRequest(ctx, donor, r.ID, core.RequestClaim, core.TransitionData{DonorAddress: "12 Main St"}); err != nil {
		t.Fatalf("claim retry: %v", err)
	}
	spawned, _ = eng.Store.ListDonations(ctx, core.DonationFilter{SourceRequest: r.ID})
	if len(spawned) != 1 {
		t.Fatalf("claim retry spawned a duplicate donation (%d total)", len(spawned))
	}
}

func TestRequestClaim_OnlyWhenApproved(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()
	r := seedRequest(t, eng)

	if _, err := eng.TransitionRequest(ctx, donor, r.ID, core.RequestClaim, core.TransitionData{DonorAddress: "12 Main St"}); !errors.Is(err, core.ErrInvalidTransition) {
		t.Fatalf("claim pending request: err = %v, want ErrInvalidTransition", err)
	}
}

func TestTransitionRequest_NotFound(t *testing.T) {
	eng := newEngine(t)
	if _, err := eng.TransitionRequest(context.Background(), volA, primitive.NewObjectID(), core.RequestAccept, core.TransitionData{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTransitionRequest_UnknownAction(t *testing.T) {
	eng := newEngine(t)
	r := seedRequest(t, eng)
	if _, err := eng.TransitionRequest(context.Background(), volA, r.ID, core.RequestAction("promote"), core.TransitionData{}); !errors.Is(err, core.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func mustTransition(t *testing.T, eng *core.Engine, a models.Actor, id primitive.ObjectID, action core.RequestAction, data core.TransitionData) *models.Request {
	t.Helper()
	r, err := eng.TransitionRequest(context.Background(), a, id, action, data)
	if err != nil {
		t.Fatalf("%s: %v", action, err)
	}
	return r
}
