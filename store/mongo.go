// Package store provides the persistence implementations behind
// core.Store: MongoDB for deployments and an in-memory store for tests and
// local runs.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	core "github.com/karunya/aid-bridge-go/core"
	models "github.com/karunya/aid-bridge-go/models"
)

// Mongo implements core.Store over two flat collections, requests and
// donations. Conditional writes filter on {_id, status} so a lost race
// surfaces as core.ErrConflict instead of a silent overwrite.
type Mongo struct {
	requests  *mongo.Collection
	donations *mongo.Collection
}

func NewMongo(client *mongo.Client, dbName string) *Mongo {
	db := client.Database(dbName)
	return &Mongo{
		requests:  db.Collection("requests"),
		donations: db.Collection("donations"),
	}
}

// EnsureIndexes creates the query indexes the visibility filter relies on.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.requests.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "location_key", Value: 1}}},
		{Keys: bson.D{{Key: "requester_id", Value: 1}}},
		{Keys: bson.D{{Key: "accepted_by_volunteer_id", Value: 1}}},
		{Keys: bson.D{{Key: "claimed_by_donor_id", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.donations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "location_key", Value: 1}}},
		{Keys: bson.D{{Key: "donor_id", Value: 1}}},
		{Keys: bson.D{{Key: "assigned_volunteer_id", Value: 1}}},
		{Keys: bson.D{{Key: "source_request_id", Value: 1}}},
	})
	return err
}

// transitionSet builds the $set document for a conditional transition write.
// _id is immutable and dismissed_by is excluded so dismissals added by other
// volunteers after the caller's read are never overwritten; only DismissRequest
// and DismissDonation ($addToSet) touch that field.
func transitionSet(record any) (bson.M, error) {
	raw, err := bson.Marshal(record)
	if err != nil {
		return nil, err
	}
	var set bson.M
	if err := bson.Unmarshal(raw, &set); err != nil {
		return nil, err
	}
	delete(set, "_id")
	delete(set, "dismissed_by")
	return set, nil
}

// ---------------- requests ----------------

func (s *Mongo) InsertRequest(ctx context.Context, r *models.Request) error {
	if r.ID.IsZero() {
		r.ID = primitive.NewObjectID()
	}
	_, err := s.requests.InsertOne(ctx, r)
	return err
}

func (s *Mongo) GetRequest(ctx context.Context, id primitive.ObjectID) (*models.Request, error) {
	var r models.Request
	err := s.requests.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Mongo) ReplaceRequestIf(ctx context.Context, r *models.Request, expect models.RequestStatus) error {
	set, err := transitionSet(r)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": r.ID, "status": expect}
	res := s.requests.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	if errors.Is(res.Err(), mongo.ErrNoDocuments) {
		// Either the id is gone or the status moved under us; both mean the
		// caller's read is stale.
		return core.ErrConflict
	}
	return res.Err()
}

func (s *Mongo) DismissRequest(ctx context.Context, id primitive.ObjectID, volunteerUID string) error {
	res, err := s.requests.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"dismissed_by": volunteerUID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Mongo) ListRequests(ctx context.Context, f core.RequestFilter) ([]models.Request, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.LocationKey != "" {
		filter["location_key"] = f.LocationKey
	}
	if f.RequesterID != "" {
		filter["requester_id"] = f.RequesterID
	}
	if f.AcceptedBy != "" {
		filter["accepted_by_volunteer_id"] = f.AcceptedBy
	}
	if f.ClaimedBy != "" {
		filter["claimed_by_donor_id"] = f.ClaimedBy
	}
	if f.NotDismissedBy != "" {
		filter["dismissed_by"] = bson.M{"$ne": f.NotDismissedBy}
	}

	cursor, err := s.requests.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var out []models.Request
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ---------------- donations ----------------

func (s *Mongo) InsertDonation(ctx context.Context, d *models.Donation) error {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	_, err := s.donations.InsertOne(ctx, d)
	return err
}

func (s *Mongo) GetDonation(ctx context.Context, id primitive.ObjectID) (*models.Donation, error) {
	var d models.Donation
	err := s.donations.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Mongo) ReplaceDonationIf(ctx context.Context, d *models.Donation, expect models.DonationStatus) error {
	set, err := transitionSet(d)
	if err != nil {
		return err
	}
	filter := bson.M{"_id": d.ID, "status": expect}
	res := s.donations.FindOneAndUpdate(ctx, filter, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After))
	if errors.Is(res.Err(), mongo.ErrNoDocuments) {
		return core.ErrConflict
	}
	return res.Err()
}

func (s *Mongo) DismissDonation(ctx context.Context, id primitive.ObjectID, volunteerUID string) error {
	res, err := s.donations.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"dismissed_by": volunteerUID}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Mongo) ListDonations(ctx context.Context, f core.DonationFilter) ([]models.Donation, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.LocationKey != "" {
		filter["location_key"] = f.LocationKey
	}
	if f.DonorID != "" {
		filter["donor_id"] = f.DonorID
	}
	if f.AssignedTo != "" {
		filter["assigned_volunteer_id"] = f.AssignedTo
	}
	if !f.SourceRequest.IsZero() {
		filter["source_request_id"] = f.SourceRequest
	}
	if f.NotDismissedBy != "" {
		filter["dismissed_by"] = bson.M{"$ne": f.NotDismissedBy}
	}

	cursor, err := s.donations.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var out []models.Donation
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
