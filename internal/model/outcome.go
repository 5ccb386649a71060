package model

// Outcome classifies the result of a single booking attempt.
type Outcome int

const (
	OutcomeBooked Outcome = iota
	OutcomeNotFound
	OutcomeConflict
	OutcomeCapacityExceeded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBooked:
		return "booked"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeConflict:
		return "conflict"
	case OutcomeCapacityExceeded:
		return "capacity_exceeded"
	default:
		return "unknown"
	}
}

// Rejection reasons surfaced to callers.
const (
	ReasonBooked          = "Event booked"
	ReasonNotFound        = "Event not found"
	ReasonAlreadyBooked   = "Already booked"
	ReasonCannotBook      = "Cannot book event"
	ReasonCapacityReached = "Event full"
)

// BookingResult summarises the outcome of a single booking attempt.
// Event is set only when Outcome is OutcomeBooked.
type BookingResult struct {
	UserID  string
	Outcome Outcome
	Reason  string
	Event   *Event
}

// Booked reports whether the attempt admitted a booking.
func (r BookingResult) Booked() bool {
	return r.Outcome == OutcomeBooked
}
