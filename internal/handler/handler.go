// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/Shivanand-hulikatti/event-booking/internal/auth"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
)

// EventService is the service surface the handlers depend on.
type EventService interface {
	CreateEvent(ctx context.Context, req model.CreateEventRequest, createdBy string) (*model.Event, error)
	ListEvents(ctx context.Context, page, limit int) (model.PageResult[model.Event], error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListBookings(ctx context.Context, eventID string) ([]model.Booking, error)
	AttemptBooking(ctx context.Context, eventID, userID string) (model.BookingResult, error)
	CancelBooking(ctx context.Context, eventID, userID string) (*model.Event, error)
}

// EventHandler holds all HTTP handlers for the event booking API.
type EventHandler struct {
	svc EventService
	log zerolog.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc EventService, log zerolog.Logger) *EventHandler {
	return &EventHandler{svc: svc, log: log}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, model.Envelope{Success: true, Message: msg, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.Envelope{Success: false, Message: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// internalError logs err and writes a generic 500.
func (h *EventHandler) internalError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	h.log.Error().
		Err(err).
		Str("request_id", requestID(r)).
		Str("path", r.URL.Path).
		Msg(msg)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

func queryInt(r *http.Request, key string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return 0
	}
	return n
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
// Creates a new event owned by the authenticated organizer.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	user, _ := auth.UserFromContext(r.Context())
	event, err := h.svc.CreateEvent(r.Context(), req, user.ID)
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, r, err, "create event failed")
		return
	}

	writeOK(w, http.StatusCreated, "Event created", event)
}

// ListEvents handles GET /events?page=&limit=
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListEvents(r.Context(), queryInt(r, "page"), queryInt(r, "limit"))
	if err != nil {
		h.internalError(w, r, err, "list events failed")
		return
	}

	writeOK(w, http.StatusOK, "Events", res)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLookupError(w, r, err, "get event failed")
		return
	}

	writeOK(w, http.StatusOK, "Event", event)
}

// Book handles POST /events/{id}/book
// The outcome of the admission decision maps onto the status code; none of
// the rejections is a server error.
func (h *EventHandler) Book(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authorized")
		return
	}

	res, err := h.svc.AttemptBooking(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.internalError(w, r, err, "book event failed")
		return
	}

	switch res.Outcome {
	case model.OutcomeBooked:
		writeOK(w, http.StatusOK, res.Reason, res.Event)
	case model.OutcomeNotFound:
		writeError(w, http.StatusNotFound, res.Reason)
	case model.OutcomeConflict:
		writeError(w, http.StatusConflict, res.Reason)
	case model.OutcomeCapacityExceeded:
		writeError(w, http.StatusBadRequest, res.Reason)
	default:
		h.internalError(w, r, errors.New("unknown booking outcome "+res.Outcome.String()), "book event failed")
	}
}

// ListBookings handles GET /events/{id}/bookings
func (h *EventHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := h.svc.ListBookings(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeLookupError(w, r, err, "list bookings failed")
		return
	}

	if bookings == nil {
		bookings = []model.Booking{}
	}
	writeOK(w, http.StatusOK, "Bookings", bookings)
}

// CancelBooking handles DELETE /events/{id}/bookings/{userId}
func (h *EventHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	event, err := h.svc.CancelBooking(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		if errors.Is(err, repository.ErrBookingNotFound) {
			writeError(w, http.StatusNotFound, "Booking not found")
			return
		}
		h.writeLookupError(w, r, err, "cancel booking failed")
		return
	}

	writeOK(w, http.StatusOK, "Booking cancelled", event)
}

func (h *EventHandler) writeLookupError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	switch {
	case errors.Is(err, service.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, model.ReasonNotFound)
	default:
		h.internalError(w, r, err, msg)
	}
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "OK", map[string]string{"status": "ok"})
}
