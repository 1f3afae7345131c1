package store

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	core "github.com/karunya/aid-bridge-go/core"
	models "github.com/karunya/aid-bridge-go/models"
)

// Memory is a mutex-guarded in-memory core.Store with the same conditional
// write contract as the Mongo store. Used by tests and STORE=memory runs.
type Memory struct {
	mu        sync.Mutex
	requests  map[primitive.ObjectID]models.Request
	donations map[primitive.ObjectID]models.Donation
}

func NewMemory() *Memory {
	return &Memory{
		requests:  make(map[primitive.ObjectID]models.Request),
		donations: make(map[primitive.ObjectID]models.Donation),
	}
}

// ---------------- requests ----------------

func (s *Memory) InsertRequest(_ context.Context, r *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	s.requests[r.ID] = cloneRequest(*r)
	return nil
}

func (s *Memory) GetRequest(_ context.Context, id primitive.ObjectID) (*models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := cloneRequest(r)
	return &out, nil
}

func (s *Memory) ReplaceRequestIf(_ context.Context, r *models.Request, expect models.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.requests[r.ID]
	if !ok || cur.Status != expect {
		return core.ErrConflict
	}
	// Dismissals can land between the caller's read and this write; keep
	// the union so a pass is never silently dropped.
	next := cloneRequest(*r)
	next.DismissedBy = mergeUIDs(cur.DismissedBy, next.DismissedBy)
	s.requests[r.ID] = next
	return nil
}

func (s *Memory) DismissRequest(_ context.Context, id primitive.ObjectID, volunteerUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return core.ErrNotFound
	}
	r.DismissedBy = mergeUIDs(r.DismissedBy, []string{volunteerUID})
	s.requests[id] = r
	return nil
}

func (s *Memory) ListRequests(_ context.Context, f core.RequestFilter) ([]models.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Request
	for _, r := range s.requests {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.LocationKey != "" && r.LocationKey != f.LocationKey {
			continue
		}
		if f.RequesterID != "" && r.RequesterID != f.RequesterID {
			continue
		}
		if f.AcceptedBy != "" && r.AcceptedByVolunteerID != f.AcceptedBy {
			continue
		}
		if f.ClaimedBy != "" && r.ClaimedByDonorID != f.ClaimedBy {
			continue
		}
		if f.NotDismissedBy != "" && r.DismissedByVolunteer(f.NotDismissedBy) {
			continue
		}
		out = append(out, cloneRequest(r))
	}
	return out, nil
}

// ---------------- donations ----------------

func (s *Memory) InsertDonation(_ context.Context, d *models.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	s.donations[d.ID] = cloneDonation(*d)
	return nil
}

func (s *Memory) GetDonation(_ context.Context, id primitive.ObjectID) (*models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	out := cloneDonation(d)
	return &out, nil
}

func (s *Memory) ReplaceDonationIf(_ context.Context, d *models.Donation, expect models.DonationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.donations[d.ID]
	if !ok || cur.Status != expect {
		return core.ErrConflict
	}
	next := cloneDonation(*d)
	next.DismissedBy = mergeUIDs(cur.DismissedBy, next.DismissedBy)
	s.donations[d.ID] = next
	return nil
}

func (s *Memory) DismissDonation(_ context.Context, id primitive.ObjectID, volunteerUID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[id]
	if !ok {
		return core.ErrNotFound
	}
	d.DismissedBy = mergeUIDs(d.DismissedBy, []string{volunteerUID})
	s.donations[id] = d
	return nil
}

func (s *Memory) ListDonations(_ context.Context, f core.DonationFilter) ([]models.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Donation
	for _, d := range s.donations {
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.LocationKey != "" && d.LocationKey != f.LocationKey {
			continue
		}
		if f.DonorID != "" && d.DonorID != f.DonorID {
			continue
		}
		if f.AssignedTo != "" && d.AssignedVolunteerID != f.AssignedTo {
			continue
		}
		if !f.SourceRequest.IsZero() && d.SourceRequestID != f.SourceRequest {
			continue
		}
		if f.NotDismissedBy != "" && d.DismissedByVolunteer(f.NotDismissedBy) {
			continue
		}
		out = append(out, cloneDonation(d))
	}
	return out, nil
}

// ---------------- helpers ----------------

func cloneRequest(r models.Request) models.Request {
	r.DismissedBy = append([]string(nil), r.DismissedBy...)
	if r.Extra != nil {
		extra := make(map[string]any, len(r.Extra))
		for k, v := range r.Extra {
			extra[k] = v
		}
		r.Extra = extra
	}
	return r
}

func cloneDonation(d models.Donation) models.Donation {
	d.DismissedBy = append([]string(nil), d.DismissedBy...)
	return d
}

func mergeUIDs(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string(nil), a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
