package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/karunya/aid-bridge-go/models"
)

// RequestAction is a caller-requested transition on a support request.
type RequestAction string

const (
	RequestAccept  RequestAction = "accept"
	RequestDeny    RequestAction = "deny"
	RequestReached RequestAction = "mark-reached"
	RequestApprove RequestAction = "approve"
	RequestReject  RequestAction = "reject"
	RequestClaim   RequestAction = "donor-claim"
)

// DonationAction is a caller-requested transition on a donation.
type DonationAction string

const (
	DonationAccept    DonationAction = "accept"
	DonationPass      DonationAction = "pass"
	DonationPicked    DonationAction = "picked"
	DonationDelivered DonationAction = "delivered"
	DonationComplete  DonationAction = "complete"
)

// TransitionData carries the action-specific payload. Unused fields are
// ignored by actions that do not require them.
type TransitionData struct {
	Reason       string `json:"reason,omitempty"`        // reject: required
	Notes        string `json:"notes,omitempty"`         // approve: optional decision notes
	DonorAddress string `json:"donor_address,omitempty"` // donor-claim: required
	DonorNotes   string `json:"donor_notes,omitempty"`   // donor-claim: optional
	Feedback     string `json:"feedback,omitempty"`      // complete: required
	ProofURL     string `json:"proof_url,omitempty"`     // complete: optional
}

// Engine validates and applies lifecycle transitions. Every operation takes
// an explicit Actor; the engine never consults ambient session state.
type Engine struct {
	Store Store
	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

// ---------------- CREATE ----------------

type CreateRequestInput struct {
	Initiative         string         `json:"initiative"`
	Urgency            string         `json:"urgency"`
	Location           string         `json:"location"`
	BeneficiaryName    string         `json:"beneficiary_name"`
	BeneficiaryContact string         `json:"beneficiary_contact"`
	BeneficiaryAddress string         `json:"beneficiary_address"`
	Description        string         `json:"description"`
	Extra              map[string]any `json:"extra"`
}

// CreateRequest records a new support request in state pending.
func (e *Engine) CreateRequest(ctx context.Context, actor models.Actor, in CreateRequestInput) (*models.Request, error) {
	if actor.UID == "" {
		return nil, ErrUnauthenticated
	}
	if actor.Role != models.RoleCommunity {
		return nil, fmt.Errorf("%w: only community members can raise requests", ErrForbidden)
	}
	if !models.ValidInitiative(in.Initiative) {
		return nil, fmt.Errorf("%w: unknown initiative %q", ErrValidation, in.Initiative)
	}
	if !models.ValidUrgency(in.Urgency) {
		return nil, fmt.Errorf("%w: urgency must be low, medium or high", ErrValidation)
	}
	locKey := models.NormalizeLocationKey(in.Location)
	if locKey == "" {
		return nil, fmt.Errorf("%w: location is required", ErrValidation)
	}
	if strings.TrimSpace(in.BeneficiaryName) == "" {
		return nil, fmt.Errorf("%w: beneficiary_name is required", ErrValidation)
	}

	now := e.now()
	r := &models.Request{
		RequesterID:        actor.UID,
		Initiative:         in.Initiative,
		Urgency:            in.Urgency,
		Location:           strings.TrimSpace(in.Location),
		LocationKey:        locKey,
		BeneficiaryName:    strings.TrimSpace(in.BeneficiaryName),
		BeneficiaryContact: strings.TrimSpace(in.BeneficiaryContact),
		BeneficiaryAddress: strings.TrimSpace(in.BeneficiaryAddress),
		Description:        in.Description,
		Extra:              in.Extra,
		Status:             models.RequestPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := e.Store.InsertRequest(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

type CreateDonationInput struct {
	Initiative  string `json:"initiative"`
	Location    string `json:"location"`
	Description string `json:"description"`
	ProofURL    string `json:"proof_url"`
}

// CreateDonation records a direct (unsolicited) donation in state pending.
func (e *Engine) CreateDonation(ctx context.Context, actor models.Actor, in CreateDonationInput) (*models.Donation, error) {
	if actor.UID == "" {
		return nil, ErrUnauthenticated
	}
	if actor.Role != models.RoleDonor {
		return nil, fmt.Errorf("%w: only donors can create donations", ErrForbidden)
	}
	if !models.ValidInitiative(in.Initiative) {
		return nil, fmt.Errorf("%w: unknown initiative %q", ErrValidation, in.Initiative)
	}
	locKey := models.NormalizeLocationKey(in.Location)
	if locKey == "" {
		return nil, fmt.Errorf("%w: location is required", ErrValidation)
	}

	now := e.now()
	d := &models.Donation{
		DonorID:     actor.UID,
		Initiative:  in.Initiative,
		Description: in.Description,
		ProofURL:    strings.TrimSpace(in.ProofURL),
		Location:    strings.TrimSpace(in.Location),
		LocationKey: locKey,
		Status:      models.DonationPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Store.InsertDonation(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ---------------- REQUEST TRANSITIONS ----------------

// requestRule is one row of the request transition table: legality, role
// and ownership gates, required payload, and the stamp applied on success.
type requestRule struct {
	from models.RequestStatus
	to   models.RequestStatus
	// contended transitions stamp a competing actor id into the target
	// state (accept, donor-claim); a wrong-state retry against an occupied
	// target maps to Conflict rather than InvalidTransition.
	contended bool
	// stampedBy returns the actor uid this transition stamped, used for
	// idempotent retry detection against a record already in `to`.
	stampedBy func(*models.Request) string
	authorize func(models.Actor, *models.Request) error
	validate  func(TransitionData) error
	apply     func(*models.Request, models.Actor, TransitionData, time.Time)
}

func volunteerLocationGate(a models.Actor, locationKey string) error {
	if a.Role != models.RoleVolunteer {
		return fmt.Errorf("%w: volunteer role required", ErrForbidden)
	}
	if !a.IsApprovedVolunteer() {
		return fmt.Errorf("%w: volunteer not approved", ErrForbidden)
	}
	if a.LocationKey == "" || locationKey == "" {
		return fmt.Errorf("%w: location not set", ErrForbidden)
	}
	if a.LocationKey != locationKey {
		return fmt.Errorf("%w: request is outside your location", ErrForbidden)
	}
	return nil
}

func acceptingVolunteerGate(a models.Actor, r *models.Request) error {
	if a.Role != models.RoleVolunteer || a.UID != r.AcceptedByVolunteerID {
		return fmt.Errorf("%w: only the accepting volunteer may do this", ErrForbidden)
	}
	return nil
}

var requestRules = map[RequestAction]requestRule{
	RequestAccept: {
		from:      models.RequestPending,
		to:        models.RequestAccepted,
		contended: true,
		stampedBy: func(r *models.Request) string { return r.AcceptedByVolunteerID },
		authorize: func(a models.Actor, r *models.Request) error {
			return volunteerLocationGate(a, r.LocationKey)
		},
		apply: func(r *models.Request, a models.Actor, _ TransitionData, now time.Time) {
			r.Status = models.RequestAccepted
			r.AcceptedByVolunteerID = a.UID
			r.AcceptedAt = &now
		},
	},
	RequestReached: {
		from:      models.RequestAccepted,
		to:        models.RequestReached,
		stampedBy: func(r *models.Request) string { return r.AcceptedByVolunteerID },
		authorize: acceptingVolunteerGate,
		apply: func(r *models.Request, _ models.Actor, _ TransitionData, now time.Time) {
			r.Status = models.RequestReached
			r.ReachedAt = &now
		},
	},
	RequestApprove: {
		from:      models.RequestReached,
		to:        models.RequestApproved,
		stampedBy: func(r *models.Request) string { return r.AcceptedByVolunteerID },
		authorize: acceptingVolunteerGate,
		apply: func(r *models.Request, _ models.Actor, d TransitionData, now time.Time) {
			r.Status = models.RequestApproved
			r.DecisionNotes = strings.TrimSpace(d.Notes)
			r.DecisionAt = &now
		},
	},
	RequestReject: {
		from:      models.RequestReached,
		to:        models.RequestRejected,
		stampedBy: func(r *models.Request) string { return r.AcceptedByVolunteerID },
		authorize: acceptingVolunteerGate,
		validate: func(d TransitionData) error {
			if strings.TrimSpace(d.Reason) == "" {
				return fmt.Errorf("%w: reason is required", ErrValidation)
			}
			return nil
		},
		apply: func(r *models.Request, _ models.Actor, d TransitionData, now time.Time) {
			r.Status = models.RequestRejected
			r.RejectReason = strings.TrimSpace(d.Reason)
			r.DecisionAt = &now
		},
	},
	RequestClaim: {
		from:      models.RequestApproved,
		to:        models.RequestDonorClaimed,
		contended: true,
		stampedBy: func(r *models.Request) string { return r.ClaimedByDonorID },
		authorize: func(a models.Actor, _ *models.Request) error {
			if a.Role != models.RoleDonor {
				return fmt.Errorf("%w: donor role required", ErrForbidden)
			}
			return nil
		},
		validate: func(d TransitionData) error {
			if strings.TrimSpace(d.DonorAddress) == "" {
				return fmt.Errorf("%w: donor_address is required", ErrValidation)
			}
			return nil
		},
		apply: func(r *models.Request, a models.Actor, d TransitionData, now time.Time) {
			r.Status = models.RequestDonorClaimed
			r.ClaimedByDonorID = a.UID
			r.DonorAddress = strings.TrimSpace(d.DonorAddress)
			r.DonorNotes = strings.TrimSpace(d.DonorNotes)
			r.ClaimedAt = &now
		},
	},
}

// TransitionRequest validates and applies action against the request's
// current state as one atomic conditional write. A deny is not a status
// transition: it hides the request from the denying volunteer only and the
// record stays pending for everyone else.
func (e *Engine) TransitionRequest(ctx context.Context, actor models.Actor, id primitive.ObjectID, action RequestAction, data TransitionData) (*models.Request, error) {
	if actor.UID == "" {
		return nil, ErrUnauthenticated
	}

	if action == RequestDeny {
		return e.denyRequest(ctx, actor, id)
	}

	rule, ok := requestRules[action]
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}

	r, err := e.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	if r.Status != rule.from {
		// Retrying an already-applied transition is a no-op success for the
		// actor who applied it; anyone else gets the real failure.
		if r.Status == rule.to && rule.stampedBy(r) == actor.UID {
			if action == RequestClaim {
				return e.resumeLinkedDonation(ctx, actor, r)
			}
			return r, nil
		}
		if r.Status == rule.to && rule.contended {
			return nil, fmt.Errorf("%w: already %s, refresh and retry", ErrConflict, r.Status)
		}
		return nil, fmt.Errorf("%w: cannot %s a request in state %s", ErrInvalidTransition, action, r.Status)
	}
	if err := rule.authorize(actor, r); err != nil {
		return nil, err
	}
	if rule.validate != nil {
		if err := rule.validate(data); err != nil {
			return nil, err
		}
	}

	now := e.now()
	next := *r
	rule.apply(&next, actor, data, now)
	next.UpdatedAt = now

	if err := e.Store.ReplaceRequestIf(ctx, &next, rule.from); err != nil {
		if action == RequestAccept || action == RequestClaim {
			return nil, fmt.Errorf("%w: another actor got there first, refresh and retry", ErrConflict)
		}
		return nil, err
	}

	if action == RequestClaim {
		return e.spawnLinkedDonation(ctx, actor, &next)
	}
	return &next, nil
}

func (e *Engine) denyRequest(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Request, error) {
	r, err := e.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != models.RequestPending {
		return nil, fmt.Errorf("%w: cannot deny a request in state %s", ErrInvalidTransition, r.Status)
	}
	if err := volunteerLocationGate(actor, r.LocationKey); err != nil {
		return nil, err
	}
	if r.DismissedByVolunteer(actor.UID) {
		return r, nil
	}
	if err := e.Store.DismissRequest(ctx, id, actor.UID); err != nil {
		return nil, err
	}
	return e.Store.GetRequest(ctx, id)
}

// ---------------- DONATION TRANSITIONS ----------------

type donationRule struct {
	from      models.DonationStatus
	to        models.DonationStatus
	contended bool
	stampedBy func(*models.Donation) string
	authorize func(models.Actor, *models.Donation) error
	validate  func(TransitionData) error
	apply     func(*models.Donation, models.Actor, TransitionData, time.Time)
}

func assignedVolunteerGate(a models.Actor, d *models.Donation) error {
	if a.Role != models.RoleVolunteer || a.UID != d.AssignedVolunteerID {
		return fmt.Errorf("%w: only the assigned volunteer may do this", ErrForbidden)
	}
	return nil
}

var donationRules = map[DonationAction]donationRule{
	DonationAccept: {
		from:      models.DonationPending,
		to:        models.DonationAccepted,
		contended: true,
		stampedBy: func(d *models.Donation) string { return d.AssignedVolunteerID },
		authorize: func(a models.Actor, d *models.Donation) error {
			return volunteerLocationGate(a, d.LocationKey)
		},
		apply: func(d *models.Donation, a models.Actor, _ TransitionData, now time.Time) {
			d.Status = models.DonationAccepted
			d.AssignedVolunteerID = a.UID
			d.AcceptedAt = &now
		},
	},
	DonationPicked: {
		from:      models.DonationAccepted,
		to:        models.DonationPicked,
		stampedBy: func(d *models.Donation) string { return d.AssignedVolunteerID },
		authorize: assignedVolunteerGate,
		apply: func(d *models.Donation, _ models.Actor, _ TransitionData, now time.Time) {
			d.Status = models.DonationPicked
			d.PickedAt = &now
		},
	},
	DonationDelivered: {
		from:      models.DonationPicked,
		to:        models.DonationDelivered,
		stampedBy: func(d *models.Donation) string { return d.AssignedVolunteerID },
		authorize: assignedVolunteerGate,
		apply: func(d *models.Donation, _ models.Actor, _ TransitionData, now time.Time) {
			d.Status = models.DonationDelivered
			d.DeliveredAt = &now
		},
	},
	DonationComplete: {
		from:      models.DonationDelivered,
		to:        models.DonationCompleted,
		stampedBy: func(d *models.Donation) string { return d.AssignedVolunteerID },
		authorize: assignedVolunteerGate,
		validate: func(d TransitionData) error {
			if strings.TrimSpace(d.Feedback) == "" {
				return fmt.Errorf("%w: feedback is required", ErrValidation)
			}
			return nil
		},
		apply: func(d *models.Donation, _ models.Actor, t TransitionData, now time.Time) {
			d.Status = models.DonationCompleted
			d.Feedback = strings.TrimSpace(t.Feedback)
			if p := strings.TrimSpace(t.ProofURL); p != "" {
				d.ProofURL = p
			}
			d.CompletedAt = &now
		},
	},
}

// TransitionDonation is the donation counterpart of TransitionRequest. A
// pass mirrors request deny: per-volunteer, never a status write.
func (e *Engine) TransitionDonation(ctx context.Context, actor models.Actor, id primitive.ObjectID, action DonationAction, data TransitionData) (*models.Donation, error) {
	if actor.UID == "" {
		return nil, ErrUnauthenticated
	}

	if action == DonationPass {
		return e.passDonation(ctx, actor, id)
	}

	rule, ok := donationRules[action]
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}

	d, err := e.Store.GetDonation(ctx, id)
	if err != nil {
		return nil, err
	}

	if d.Status != rule.from {
		if d.Status == rule.to && rule.stampedBy(d) == actor.UID {
			return d, nil
		}
		if d.Status == rule.to && rule.contended {
			return nil, fmt.Errorf("%w: already %s, refresh and retry", ErrConflict, d.Status)
		}
		return nil, fmt.Errorf("%w: cannot %s a donation in state %s", ErrInvalidTransition, action, d.Status)
	}
	if err := rule.authorize(actor, d); err != nil {
		return nil, err
	}
	if rule.validate != nil {
		if err := rule.validate(data); err != nil {
			return nil, err
		}
	}

	now := e.now()
	next := *d
	rule.apply(&next, actor, data, now)
	next.UpdatedAt = now

	if err := e.Store.ReplaceDonationIf(ctx, &next, rule.from); err != nil {
		if action == DonationAccept {
			return nil, fmt.Errorf("%w: another volunteer got there first, refresh and retry", ErrConflict)
		}
		return nil, err
	}
	return &next, nil
}

func (e *Engine) passDonation(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Donation, error) {
	d, err := e.Store.GetDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Status != models.DonationPending {
		return nil, fmt.Errorf("%w: cannot pass a donation in state %s", ErrInvalidTransition, d.Status)
	}
	if err := volunteerLocationGate(actor, d.LocationKey); err != nil {
		return nil, err
	}
	if d.DismissedByVolunteer(actor.UID) {
		return d, nil
	}
	if err := e.Store.DismissDonation(ctx, id, actor.UID); err != nil {
		return nil, err
	}
	return e.Store.GetDonation(ctx, id)
}
