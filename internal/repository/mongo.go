package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// EventsCollection holds one document per event with its bookings embedded.
const EventsCollection = "events"

// MongoStore stores events as documents with an embedded bookings array.
// Admission uses FindOneAndUpdate with the predicate in the filter; a
// single-document update is atomic, so filter and $push cannot interleave
// with another writer.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore returns a store over db's events collection.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(EventsCollection)}
}

type eventDoc struct {
	ID          string       `bson:"_id"`
	Title       string       `bson:"title"`
	Description string       `bson:"description"`
	Location    string       `bson:"location,omitempty"`
	StartsAt    *time.Time   `bson:"startsAt,omitempty"`
	Capacity    int          `bson:"capacity"`
	Bookings    []bookingDoc `bson:"bookings"`
	CreatedBy   string       `bson:"createdBy,omitempty"`
	CreatedAt   time.Time    `bson:"createdAt"`
	UpdatedAt   time.Time    `bson:"updatedAt"`
}

type bookingDoc struct {
	ID        string    `bson:"id"`
	User      string    `bson:"user"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// EnsureIndexes creates the indexes the listing query relies on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "bookings.user", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create event indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) CreateEvent(ctx context.Context, ev *model.Event) error {
	if _, err := s.coll.InsertOne(ctx, toEventDoc(ev)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEventExists
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *MongoStore) ListEvents(ctx context.Context, p model.Page) ([]model.Event, int, error) {
	total, err := s.coll.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64(p.Offset()))
	if p.Limit > 0 {
		opts.SetLimit(int64(p.Limit))
	}

	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	var docs []eventDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode events: %w", err)
	}

	events := make([]model.Event, 0, len(docs))
	for i := range docs {
		events = append(events, *docs[i].toModel())
	}
	return events, int(total), nil
}

func (s *MongoStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	var doc eventDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return doc.toModel(), nil
}

// bookedCountExpr counts bookings with status booked inside an aggregation
// expression.
var bookedCountExpr = bson.M{"$size": bson.M{"$filter": bson.M{
	"input": bson.M{"$ifNull": bson.A{"$bookings", bson.A{}}},
	"as":    "b",
	"cond":  bson.M{"$eq": bson.A{"$$b.status", string(model.BookingStatusBooked)}},
}}}

func seatAvailable() bson.A {
	return bson.A{
		bson.M{"capacity": 0},
		bson.M{"$expr": bson.M{"$lt": bson.A{bookedCountExpr, "$capacity"}}},
	}
}

// InsertBookingIf pushes a new booking when the user has no record, or
// revives the user's cancelled record. The two filters are mutually
// exclusive, so at most one of the updates can apply.
func (s *MongoStore) InsertBookingIf(ctx context.Context, adm model.Admission) (*model.Event, error) {
	after := options.FindOneAndUpdate().SetReturnDocument(options.After)

	filter := bson.M{
		"_id":           adm.EventID,
		"capacity":      adm.Capacity,
		"bookings.user": bson.M{"$ne": adm.UserID},
		"$or":           seatAvailable(),
	}
	update := bson.M{
		"$push": bson.M{"bookings": bookingDoc{
			ID:        adm.BookingID,
			User:      adm.UserID,
			Status:    string(model.BookingStatusBooked),
			CreatedAt: adm.At,
			UpdatedAt: adm.At,
		}},
		"$set": bson.M{"updatedAt": adm.At},
	}

	var doc eventDoc
	err := s.coll.FindOneAndUpdate(ctx, filter, update, after).Decode(&doc)
	if err == nil {
		return doc.toModel(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("push booking: %w", err)
	}

	filter = bson.M{
		"_id":      adm.EventID,
		"capacity": adm.Capacity,
		"bookings": bson.M{"$elemMatch": bson.M{
			"user":   adm.UserID,
			"status": string(model.BookingStatusCancelled),
		}},
		"$or": seatAvailable(),
	}
	update = bson.M{"$set": bson.M{
		"bookings.$.status":    string(model.BookingStatusBooked),
		"bookings.$.updatedAt": adm.At,
		"updatedAt":            adm.At,
	}}

	err = s.coll.FindOneAndUpdate(ctx, filter, update, after).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoMatch
		}
		return nil, fmt.Errorf("revive booking: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) CancelBooking(ctx context.Context, eventID, userID string, at time.Time) (*model.Event, error) {
	filter := bson.M{
		"_id": eventID,
		"bookings": bson.M{"$elemMatch": bson.M{
			"user":   userID,
			"status": string(model.BookingStatusBooked),
		}},
	}
	update := bson.M{"$set": bson.M{
		"bookings.$.status":    string(model.BookingStatusCancelled),
		"bookings.$.updatedAt": at,
		"updatedAt":            at,
	}}

	var doc eventDoc
	err := s.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.toModel(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	n, err := s.coll.CountDocuments(ctx, bson.M{"_id": eventID})
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if n == 0 {
		return nil, ErrNotFound
	}
	return nil, ErrBookingNotFound
}

func toEventDoc(ev *model.Event) eventDoc {
	doc := eventDoc{
		ID:          ev.ID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		StartsAt:    ev.StartsAt,
		Capacity:    ev.Capacity,
		Bookings:    make([]bookingDoc, 0, len(ev.Bookings)),
		CreatedBy:   ev.CreatedBy,
		CreatedAt:   ev.CreatedAt,
		UpdatedAt:   ev.UpdatedAt,
	}
	for _, b := range ev.Bookings {
		doc.Bookings = append(doc.Bookings, bookingDoc{
			ID:        b.ID,
			User:      b.UserID,
			Status:    string(b.Status),
			CreatedAt: b.CreatedAt,
			UpdatedAt: b.UpdatedAt,
		})
	}
	return doc
}

func (d *eventDoc) toModel() *model.Event {
	ev := &model.Event{
		ID:          d.ID,
		Title:       d.Title,
		Description: d.Description,
		Location:    d.Location,
		StartsAt:    d.StartsAt,
		Capacity:    d.Capacity,
		Bookings:    make([]model.Booking, 0, len(d.Bookings)),
		CreatedBy:   d.CreatedBy,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	for _, b := range d.Bookings {
		ev.Bookings = append(ev.Bookings, model.Booking{
			ID:        b.ID,
			UserID:    b.User,
			Status:    model.BookingStatus(b.Status),
			CreatedAt: b.CreatedAt.UTC(),
			UpdatedAt: b.UpdatedAt.UTC(),
		})
	}
	return ev
}
