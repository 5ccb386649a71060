// Package repository implements the event store backends. Every backend
// offers the same atomic "insert booking if the admission predicate holds"
// primitive; none of them decides admission with a read followed by a
// separate write.
package repository

import "errors"

// ErrNotFound is returned when a requested event does not exist.
var ErrNotFound = errors.New("not found")

// ErrEventExists is returned when an event with the same id is already stored.
var ErrEventExists = errors.New("event already exists")

// ErrNoMatch is returned by InsertBookingIf when the admission predicate
// did not hold against the stored state. Nothing was written.
var ErrNoMatch = errors.New("admission predicate did not match")

// ErrBookingNotFound is returned when a user holds no active booking to cancel.
var ErrBookingNotFound = errors.New("booking not found")
