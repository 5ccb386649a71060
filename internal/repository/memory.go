package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// MemoryStore is an in-process event store. Each event carries its own
// mutex; predicate evaluation and the append happen under it, which gives
// the same indivisibility as the database conditional update.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]*memoryEvent
}

type memoryEvent struct {
	mu sync.Mutex
	ev model.Event
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]*memoryEvent)}
}

func (s *MemoryStore) CreateEvent(_ context.Context, ev *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[ev.ID]; ok {
		return ErrEventExists
	}
	stored := cloneEvent(ev)
	if stored.Bookings == nil {
		stored.Bookings = []model.Booking{}
	}
	s.events[ev.ID] = &memoryEvent{ev: *stored}
	return nil
}

func (s *MemoryStore) ListEvents(_ context.Context, p model.Page) ([]model.Event, int, error) {
	s.mu.RLock()
	records := make([]*memoryEvent, 0, len(s.events))
	for _, rec := range s.events {
		records = append(records, rec)
	}
	s.mu.RUnlock()

	all := make([]model.Event, 0, len(records))
	for _, rec := range records {
		rec.mu.Lock()
		all = append(all, *cloneEvent(&rec.ev))
		rec.mu.Unlock()
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := len(all)
	start := min(p.Offset(), total)
	end := total
	if p.Limit > 0 {
		end = min(start+p.Limit, total)
	}
	return all[start:end], total, nil
}

func (s *MemoryStore) GetEvent(_ context.Context, id string) (*model.Event, error) {
	rec, ok := s.lookup(id)
	if !ok {
		return nil, ErrNotFound
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return cloneEvent(&rec.ev), nil
}

func (s *MemoryStore) InsertBookingIf(ctx context.Context, adm model.Admission) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, ok := s.lookup(adm.EventID)
	if !ok {
		return nil, ErrNoMatch
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	ev := &rec.ev
	if ev.Capacity != adm.Capacity || ev.HasActiveBooking(adm.UserID) || ev.IsFull() {
		return nil, ErrNoMatch
	}

	if b, ok := ev.BookingFor(adm.UserID); ok {
		b.Status = model.BookingStatusBooked
		b.UpdatedAt = adm.At
	} else {
		ev.Bookings = append(ev.Bookings, model.Booking{
			ID:        adm.BookingID,
			UserID:    adm.UserID,
			Status:    model.BookingStatusBooked,
			CreatedAt: adm.At,
			UpdatedAt: adm.At,
		})
	}
	ev.UpdatedAt = adm.At
	return cloneEvent(ev), nil
}

func (s *MemoryStore) CancelBooking(_ context.Context, eventID, userID string, at time.Time) (*model.Event, error) {
	rec, ok := s.lookup(eventID)
	if !ok {
		return nil, ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	b, ok := rec.ev.BookingFor(userID)
	if !ok || b.Status != model.BookingStatusBooked {
		return nil, ErrBookingNotFound
	}
	b.Status = model.BookingStatusCancelled
	b.UpdatedAt = at
	rec.ev.UpdatedAt = at
	return cloneEvent(&rec.ev), nil
}

func (s *MemoryStore) lookup(id string) (*memoryEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.events[id]
	return rec, ok
}

func cloneEvent(ev *model.Event) *model.Event {
	out := *ev
	out.Bookings = append([]model.Booking(nil), ev.Bookings...)
	if out.Bookings == nil {
		out.Bookings = []model.Booking{}
	}
	if ev.StartsAt != nil {
		t := *ev.StartsAt
		out.StartsAt = &t
	}
	return &out
}
