package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
)

// AttemptBooking admits userID to eventID if a seat is free and the user
// holds no active booking. Rejections are reported through the result's
// Outcome; the error is reserved for malformed ids and store failures.
//
// The read in step 1 only serves the not-found fast path and the capacity
// snapshot. Admission itself is decided by the store's conditional insert,
// and the re-read after a rejection only explains it.
func (s *EventService) AttemptBooking(ctx context.Context, eventID, userID string) (model.BookingResult, error) {
	eventID, err := canonicalEventID(eventID)
	if err != nil {
		return model.BookingResult{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return model.BookingResult{}, fmt.Errorf("%w: user id is required", ErrInvalidID)
	}

	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return rejected(userID, model.OutcomeNotFound, model.ReasonNotFound), nil
		}
		return model.BookingResult{}, fmt.Errorf("load event: %w", err)
	}

	adm := model.Admission{
		EventID:   eventID,
		UserID:    userID,
		Capacity:  ev.Capacity,
		BookingID: uuid.NewString(),
		At:        s.clock.Now(),
	}

	updated, err := s.store.InsertBookingIf(ctx, adm)
	if err == nil {
		s.admitted(ctx, adm, updated)
		return model.BookingResult{
			UserID:  userID,
			Outcome: model.OutcomeBooked,
			Reason:  model.ReasonBooked,
			Event:   updated,
		}, nil
	}
	if !errors.Is(err, repository.ErrNoMatch) {
		return model.BookingResult{}, fmt.Errorf("book event: %w", err)
	}

	current, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return rejected(userID, model.OutcomeNotFound, model.ReasonNotFound), nil
		}
		return model.BookingResult{}, fmt.Errorf("reload event: %w", err)
	}

	res := classifyRejection(current, userID)
	s.log.Info().
		Str("event_id", eventID).
		Str("user_id", userID).
		Str("outcome", res.Outcome.String()).
		Int("capacity", current.Capacity).
		Int("booked", current.BookedCount()).
		Msg("booking rejected")
	return res, nil
}

// classifyRejection explains why the conditional insert matched nothing,
// given a fresh read of the event. When nothing in the current state
// accounts for it, another request changed the event in between.
func classifyRejection(ev *model.Event, userID string) model.BookingResult {
	switch {
	case ev.HasActiveBooking(userID):
		return rejected(userID, model.OutcomeConflict, model.ReasonAlreadyBooked)
	case ev.IsFull():
		return rejected(userID, model.OutcomeCapacityExceeded, model.ReasonCapacityReached)
	default:
		return rejected(userID, model.OutcomeConflict, model.ReasonCannotBook)
	}
}

func rejected(userID string, outcome model.Outcome, reason string) model.BookingResult {
	return model.BookingResult{UserID: userID, Outcome: outcome, Reason: reason}
}

func (s *EventService) admitted(ctx context.Context, adm model.Admission, ev *model.Event) {
	bookingID := adm.BookingID
	if b, ok := ev.BookingFor(adm.UserID); ok {
		bookingID = b.ID
	}

	s.log.Info().
		Bool(auditKey, true).
		Str("action", "event.book").
		Str("event_id", adm.EventID).
		Str("user_id", adm.UserID).
		Str("booking_id", bookingID).
		Int("capacity", ev.Capacity).
		Int("booked", ev.BookedCount()).
		Msg("event booked")

	s.notify(ctx, model.BookingNotice{
		EventID:   adm.EventID,
		UserID:    adm.UserID,
		BookingID: bookingID,
		Status:    model.BookingStatusBooked,
		At:        adm.At,
	})
}
