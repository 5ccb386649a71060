// Package model defines the core domain types for the event booking system.
package model

import "time"

// BookingStatus is the lifecycle state of a single booking.
type BookingStatus string

const (
	BookingStatusBooked    BookingStatus = "booked"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Event represents a bookable event created by an organizer.
// Capacity 0 means unlimited.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	Capacity    int        `json:"capacity"`
	Bookings    []Booking  `json:"bookings"`
	CreatedBy   string     `json:"created_by,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// BookedCount returns the number of bookings that currently hold a seat.
func (e *Event) BookedCount() int {
	n := 0
	for _, b := range e.Bookings {
		if b.Status == BookingStatusBooked {
			n++
		}
	}
	return n
}

// Unlimited reports whether the event has no capacity limit.
func (e *Event) Unlimited() bool {
	return e.Capacity == 0
}

// IsFull returns true when no seats remain. Unlimited events are never full.
func (e *Event) IsFull() bool {
	return !e.Unlimited() && e.BookedCount() >= e.Capacity
}

// BookingFor returns the booking record held by userID, if any.
func (e *Event) BookingFor(userID string) (*Booking, bool) {
	for i := range e.Bookings {
		if e.Bookings[i].UserID == userID {
			return &e.Bookings[i], true
		}
	}
	return nil, false
}

// HasActiveBooking reports whether userID holds a booking with status booked.
func (e *Event) HasActiveBooking(userID string) bool {
	b, ok := e.BookingFor(userID)
	return ok && b.Status == BookingStatusBooked
}

// Booking is a user's seat on an event. It is embedded in Event and is
// unique per user within one event.
type Booking struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Admission is the predicate handed to the store's conditional mutation.
// The store appends a booking only if, against its live state, the event
// still has Capacity, UserID holds no active booking, and a seat is free.
type Admission struct {
	EventID   string
	UserID    string
	Capacity  int
	BookingID string
	At        time.Time
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Location    string     `json:"location"`
	StartsAt    *time.Time `json:"starts_at"`
	Capacity    int        `json:"capacity"`
}

// Page selects a window of a listing. Page is 1-based.
type Page struct {
	Page  int
	Limit int
}

// Offset returns the number of records to skip.
func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// PageResult is a paginated listing.
type PageResult[T any] struct {
	Records      []T `json:"records"`
	Page         int `json:"page"`
	Limit        int `json:"limit"`
	TotalPages   int `json:"total_pages"`
	TotalRecords int `json:"total_records"`
}

// NewPageResult wraps records with paging metadata.
func NewPageResult[T any](records []T, p Page, total int) PageResult[T] {
	if records == nil {
		records = []T{}
	}
	pages := 0
	if p.Limit > 0 {
		pages = (total + p.Limit - 1) / p.Limit
	}
	return PageResult[T]{
		Records:      records,
		Page:         p.Page,
		Limit:        p.Limit,
		TotalPages:   pages,
		TotalRecords: total,
	}
}

// Envelope is the JSON body shape of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// BookingNotice is published to collaborators after a booking state change.
type BookingNotice struct {
	EventID   string        `json:"event_id"`
	UserID    string        `json:"user_id"`
	BookingID string        `json:"booking_id"`
	Status    BookingStatus `json:"status"`
	At        time.Time     `json:"at"`
}
