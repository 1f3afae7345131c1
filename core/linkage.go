package core

import (
	"context"

	models "github.com/karunya/aid-bridge-go/models"
)

// spawnLinkedDonation runs after a claim has been written: it creates the
// donation the claim promised, seeded from the request, and best-effort
// stamps the back-reference on the request. From here on the two records
// evolve independently; traceability is one-directional via
// source_request_id.
func (e *Engine) spawnLinkedDonation(ctx context.Context, donor models.Actor, r *models.Request) (*models.Request, error) {
	now := e.now()
	d := &models.Donation{
		DonorID:         donor.UID,
		Initiative:      r.Initiative,
		Description:     r.Description,
		Location:        r.Location,
		LocationKey:     r.LocationKey,
		Status:          models.DonationPending,
		SourceRequestID: r.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := e.Store.InsertDonation(ctx, d); err != nil {
		return nil, err
	}

	// The claim already succeeded; losing this write only costs the
	// forward pointer, never the donation itself.
	next := *r
	next.LinkedDonationID = d.ID
	next.UpdatedAt = now
	if err := e.Store.ReplaceRequestIf(ctx, &next, models.RequestDonorClaimed); err != nil {
		return r, nil
	}
	return &next, nil
}

// resumeLinkedDonation covers a claim retried after an unknown outcome: the
// status write went through but the donation may not have been created yet.
func (e *Engine) resumeLinkedDonation(ctx context.Context, donor models.Actor, r *models.Request) (*models.Request, error) {
	if !r.LinkedDonationID.IsZero() {
		return r, nil
	}
	existing, err := e.Store.ListDonations(ctx, DonationFilter{SourceRequest: r.ID})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		next := *r
		next.LinkedDonationID = existing[0].ID
		next.UpdatedAt = e.now()
		if err := e.Store.ReplaceRequestIf(ctx, &next, models.RequestDonorClaimed); err != nil {
			return r, nil
		}
		return &next, nil
	}
	return e.spawnLinkedDonation(ctx, donor, r)
}
