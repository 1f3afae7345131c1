package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	models "github.com/karunya/aid-bridge-go/models"
)

// View names a visibility scope an actor can list.
type View string

const (
	// ViewOpenRequests: pending requests in the volunteer's location, minus
	// the ones they passed on.
	ViewOpenRequests View = "open-requests"
	// ViewOpenDonations: pending donations, same rules.
	ViewOpenDonations View = "open-donations"
	// ViewTasks: the volunteer's unified open queue over both collections.
	ViewTasks View = "tasks"
	// ViewMyWork: records the volunteer accepted, regardless of location
	// (their profile location may have changed since).
	ViewMyWork View = "my-work"
	// ViewClaimable: volunteer-approved requests; donors are not
	// location-scoped.
	ViewClaimable View = "claimable"
	// ViewMine: the actor's own history, any status.
	ViewMine View = "mine"
)

// ListVisible returns the records the actor may see in the given view.
// Admins read everything; everyone else is scoped by role, ownership and
// location. An empty location key on either side never matches.
func (e *Engine) ListVisible(ctx context.Context, actor models.Actor, view View) ([]models.WorkItem, error) {
	if actor.UID == "" {
		return nil, ErrUnauthenticated
	}
	if actor.Role == models.RoleAdmin {
		return e.listAll(ctx, view)
	}

	switch view {
	case ViewOpenRequests:
		if err := e.openWorkGate(actor); err != nil {
			return nil, err
		}
		rs, err := e.Store.ListRequests(ctx, RequestFilter{
			Status:         models.RequestPending,
			LocationKey:    actor.LocationKey,
			NotDismissedBy: actor.UID,
		})
		if err != nil {
			return nil, err
		}
		return wrapItems(rs, nil), nil

	case ViewOpenDonations:
		if err := e.openWorkGate(actor); err != nil {
			return nil, err
		}
		ds, err := e.Store.ListDonations(ctx, DonationFilter{
			Status:         models.DonationPending,
			LocationKey:    actor.LocationKey,
			NotDismissedBy: actor.UID,
		})
		if err != nil {
			return nil, err
		}
		return wrapItems(nil, ds), nil

	case ViewTasks:
		if err := e.openWorkGate(actor); err != nil {
			return nil, err
		}
		rs, err := e.Store.ListRequests(ctx, RequestFilter{
			Status:         models.RequestPending,
			LocationKey:    actor.LocationKey,
			NotDismissedBy: actor.UID,
		})
		if err != nil {
			return nil, err
		}
		ds, err := e.Store.ListDonations(ctx, DonationFilter{
			Status:         models.DonationPending,
			LocationKey:    actor.LocationKey,
			NotDismissedBy: actor.UID,
		})
		if err != nil {
			return nil, err
		}
		return wrapItems(rs, ds), nil

	case ViewMyWork:
		if actor.Role != models.RoleVolunteer {
			return nil, fmt.Errorf("%w: volunteer role required", ErrForbidden)
		}
		rs, err := e.Store.ListRequests(ctx, RequestFilter{AcceptedBy: actor.UID})
		if err != nil {
			return nil, err
		}
		ds, err := e.Store.ListDonations(ctx, DonationFilter{AssignedTo: actor.UID})
		if err != nil {
			return nil, err
		}
		return wrapItems(rs, ds), nil

	case ViewClaimable:
		if actor.Role != models.RoleDonor {
			return nil, fmt.Errorf("%w: donor role required", ErrForbidden)
		}
		rs, err := e.Store.ListRequests(ctx, RequestFilter{Status: models.RequestApproved})
		if err != nil {
			return nil, err
		}
		return wrapItems(rs, nil), nil

	case ViewMine:
		switch actor.Role {
		case models.RoleCommunity:
			rs, err := e.Store.ListRequests(ctx, RequestFilter{RequesterID: actor.UID})
			if err != nil {
				return nil, err
			}
			return wrapItems(rs, nil), nil
		case models.RoleDonor:
			ds, err := e.Store.ListDonations(ctx, DonationFilter{DonorID: actor.UID})
			if err != nil {
				return nil, err
			}
			rs, err := e.Store.ListRequests(ctx, RequestFilter{ClaimedBy: actor.UID})
			if err != nil {
				return nil, err
			}
			return wrapItems(rs, ds), nil
		default:
			return nil, fmt.Errorf("%w: no personal history for role %s", ErrForbidden, actor.Role)
		}
	}

	return nil, fmt.Errorf("%w: unknown view %q", ErrValidation, view)
}

// GetRequest fetches a single request the actor is allowed to see.
func (e *Engine) GetRequest(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Request, error) {
	if actor.UID == "" {
		return nil, ErrUnauthenticated
	}
	r, err := e.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.CanReadRequest(actor, r) {
		return nil, fmt.Errorf("%w: not visible to this actor", ErrForbidden)
	}
	return r, nil
}

// GetDonation fetches a single donation the actor is allowed to see.
func (e *Engine) GetDonation(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Donation, error) {
	if actor.UID == "" {
		return nil, ErrUnauthenticated
	}
	d, err := e.Store.GetDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.CanReadDonation(actor, d) {
		return nil, fmt.Errorf("%w: not visible to this actor", ErrForbidden)
	}
	return d, nil
}

// CanReadRequest reports whether the actor may fetch a single request: owner,
// participants and admin, plus the scopes that would surface it in a list.
func (e *Engine) CanReadRequest(actor models.Actor, r *models.Request) bool {
	switch {
	case actor.Role == models.RoleAdmin:
		return true
	case actor.UID == r.RequesterID:
		return true
	case actor.UID != "" && actor.UID == r.AcceptedByVolunteerID:
		return true
	case actor.UID != "" && actor.UID == r.ClaimedByDonorID:
		return true
	case actor.Role == models.RoleDonor && r.Status == models.RequestApproved:
		return true
	case actor.IsApprovedVolunteer() && r.Status == models.RequestPending &&
		actor.LocationKey != "" && actor.LocationKey == r.LocationKey:
		return true
	}
	return false
}

// CanReadDonation is the donation counterpart of CanReadRequest.
func (e *Engine) CanReadDonation(actor models.Actor, d *models.Donation) bool {
	switch {
	case actor.Role == models.RoleAdmin:
		return true
	case actor.UID == d.DonorID:
		return true
	case actor.UID != "" && actor.UID == d.AssignedVolunteerID:
		return true
	case actor.IsApprovedVolunteer() && d.Status == models.DonationPending &&
		actor.LocationKey != "" && actor.LocationKey == d.LocationKey:
		return true
	}
	return false
}

func (e *Engine) openWorkGate(actor models.Actor) error {
	if actor.Role != models.RoleVolunteer {
		return fmt.Errorf("%w: volunteer role required", ErrForbidden)
	}
	if !actor.IsApprovedVolunteer() {
		return fmt.Errorf("%w: volunteer not approved", ErrForbidden)
	}
	if actor.LocationKey == "" {
		return fmt.Errorf("%w: location not set", ErrForbidden)
	}
	return nil
}

func (e *Engine) listAll(ctx context.Context, view View) ([]models.WorkItem, error) {
	switch view {
	case ViewOpenRequests, ViewClaimable, ViewMine:
		rs, err := e.Store.ListRequests(ctx, RequestFilter{})
		if err != nil {
			return nil, err
		}
		return wrapItems(rs, nil), nil
	case ViewOpenDonations:
		ds, err := e.Store.ListDonations(ctx, DonationFilter{})
		if err != nil {
			return nil, err
		}
		return wrapItems(nil, ds), nil
	default:
		rs, err := e.Store.ListRequests(ctx, RequestFilter{})
		if err != nil {
			return nil, err
		}
		ds, err := e.Store.ListDonations(ctx, DonationFilter{})
		if err != nil {
			return nil, err
		}
		return wrapItems(rs, ds), nil
	}
}

// wrapItems folds both collections into the WorkItem union, newest
// first so polled queues stay stable for the caller.
func wrapItems(rs []models.Request, ds []models.Donation) []models.WorkItem {
	items := make([]models.WorkItem, 0, len(rs)+len(ds))
	for i := range rs {
		items = append(items, models.WorkItem{Kind: "request", Request: &rs[i]})
	}
	for i := range ds {
		items = append(items, models.WorkItem{Kind: "donation", Donation: &ds[i]})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return createdAt(items[i]).After(createdAt(items[j]))
	})
	return items
}

func createdAt(w models.WorkItem) time.Time {
	if w.Request != nil {
		return w.Request.CreatedAt
	}
	return w.Donation.CreatedAt
}
