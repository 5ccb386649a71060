// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the event store.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/event-booking/internal/clock"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
)

// ErrInvalidID is returned for identifiers that are not well-formed.
var ErrInvalidID = errors.New("invalid id")

// ErrValidation wraps request validation failures.
var ErrValidation = errors.New("validation failed")

const (
	maxCapacity  = 100_000
	maxTitleLen  = 200
	defaultLimit = 10
	maxPageLimit = 100
	auditKey     = "audit"
)

// EventStore is the persistence contract the service depends on.
// InsertBookingIf must evaluate the admission predicate and apply the
// booking as one indivisible step, returning repository.ErrNoMatch when the
// predicate does not hold.
type EventStore interface {
	CreateEvent(ctx context.Context, ev *model.Event) error
	ListEvents(ctx context.Context, p model.Page) ([]model.Event, int, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	InsertBookingIf(ctx context.Context, adm model.Admission) (*model.Event, error)
	CancelBooking(ctx context.Context, eventID, userID string, at time.Time) (*model.Event, error)
}

// Notifier tells collaborators about booking state changes.
type Notifier interface {
	Notify(ctx context.Context, notice model.BookingNotice) error
}

// EventService orchestrates event-related business operations.
type EventService struct {
	store    EventStore
	notifier Notifier
	clock    clock.Clock
	log      zerolog.Logger
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(store EventStore, notifier Notifier, clk clock.Clock, log zerolog.Logger) *EventService {
	return &EventService{
		store:    store,
		notifier: notifier,
		clock:    clk,
		log:      log.With().Str("component", "event_service").Logger(),
	}
}

// CreateEvent validates the request and stores a new event owned by createdBy.
func (s *EventService) CreateEvent(ctx context.Context, req model.CreateEventRequest, createdBy string) (*model.Event, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	req.Location = strings.TrimSpace(req.Location)

	switch {
	case req.Title == "":
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	case len(req.Title) > maxTitleLen:
		return nil, fmt.Errorf("%w: title cannot exceed %d characters", ErrValidation, maxTitleLen)
	case req.Capacity < 0:
		return nil, fmt.Errorf("%w: capacity cannot be negative", ErrValidation)
	case req.Capacity > maxCapacity:
		return nil, fmt.Errorf("%w: capacity cannot exceed 100,000", ErrValidation)
	}

	now := s.clock.Now()
	ev := &model.Event{
		ID:          uuid.NewString(),
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		StartsAt:    req.StartsAt,
		Capacity:    req.Capacity,
		Bookings:    []model.Booking{},
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.CreateEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.log.Info().
		Bool(auditKey, true).
		Str("action", "event.create").
		Str("event_id", ev.ID).
		Str("user_id", createdBy).
		Int("capacity", ev.Capacity).
		Msg("event created")
	return ev, nil
}

// ListEvents returns one page of events. Out-of-range paging values are
// clamped to defaults.
func (s *EventService) ListEvents(ctx context.Context, page, limit int) (model.PageResult[model.Event], error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	p := model.Page{Page: page, Limit: limit}

	events, total, err := s.store.ListEvents(ctx, p)
	if err != nil {
		return model.PageResult[model.Event]{}, fmt.Errorf("list events: %w", err)
	}
	return model.NewPageResult(events, p, total), nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	id, err := canonicalEventID(id)
	if err != nil {
		return nil, err
	}
	ev, err := s.store.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// ListBookings returns all bookings of an event, oldest first.
func (s *EventService) ListBookings(ctx context.Context, eventID string) ([]model.Booking, error) {
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return ev.Bookings, nil
}

// CancelBooking cancels userID's active booking on an event, freeing its seat.
func (s *EventService) CancelBooking(ctx context.Context, eventID, userID string) (*model.Event, error) {
	eventID, err := canonicalEventID(eventID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidID)
	}

	at := s.clock.Now()
	ev, err := s.store.CancelBooking(ctx, eventID, userID, at)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) || errors.Is(err, repository.ErrBookingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	s.log.Info().
		Bool(auditKey, true).
		Str("action", "booking.cancel").
		Str("event_id", eventID).
		Str("user_id", userID).
		Msg("booking cancelled")

	bookingID := ""
	if b, ok := ev.BookingFor(userID); ok {
		bookingID = b.ID
	}
	s.notify(ctx, model.BookingNotice{
		EventID:   eventID,
		UserID:    userID,
		BookingID: bookingID,
		Status:    model.BookingStatusCancelled,
		At:        at,
	})
	return ev, nil
}

// notify is best-effort: the state change is already committed, so a
// delivery failure is logged and never reported to the caller.
func (s *EventService) notify(ctx context.Context, notice model.BookingNotice) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), notice); err != nil {
		s.log.Warn().
			Err(err).
			Str("event_id", notice.EventID).
			Str("user_id", notice.UserID).
			Str("status", string(notice.Status)).
			Msg("booking notification failed")
	}
}

// canonicalEventID parses id in any form uuid.Parse accepts and returns the
// lowercase hyphenated form the stores key on.
func canonicalEventID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: event id %q", ErrInvalidID, id)
	}
	return u.String(), nil
}
