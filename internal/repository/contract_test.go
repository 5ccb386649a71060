package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

type eventStore interface {
	CreateEvent(ctx context.Context, ev *model.Event) error
	ListEvents(ctx context.Context, p model.Page) ([]model.Event, int, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	InsertBookingIf(ctx context.Context, adm model.Admission) (*model.Event, error)
	CancelBooking(ctx context.Context, eventID, userID string, at time.Time) (*model.Event, error)
}

var (
	_ eventStore = (*EventRepository)(nil)
	_ eventStore = (*MongoStore)(nil)
	_ eventStore = (*MemoryStore)(nil)
)

func seedEvent(t *testing.T, store eventStore, capacity int) *model.Event {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	ev := &model.Event{
		ID:        uuid.NewString(),
		Title:     "Meetup",
		Capacity:  capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.CreateEvent(context.Background(), ev))
	return ev
}

func admission(ev *model.Event, userID string) model.Admission {
	return model.Admission{
		EventID:   ev.ID,
		UserID:    userID,
		Capacity:  ev.Capacity,
		BookingID: uuid.NewString(),
		At:        time.Now().UTC().Truncate(time.Millisecond),
	}
}

// runStoreContract exercises the behaviour every event store must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) eventStore) {
	t.Run("admits until capacity then rejects", func(t *testing.T) {
		store := newStore(t)
		ev := seedEvent(t, store, 2)
		ctx := context.Background()

		got, err := store.InsertBookingIf(ctx, admission(ev, "user-a"))
		require.NoError(t, err)
		assert.Equal(t, 1, got.BookedCount())
		assert.True(t, got.HasActiveBooking("user-a"))

		_, err = store.InsertBookingIf(ctx, admission(ev, "user-b"))
		require.NoError(t, err)

		_, err = store.InsertBookingIf(ctx, admission(ev, "user-c"))
		assert.ErrorIs(t, err, ErrNoMatch)

		stored, err := store.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.BookedCount())
		assert.Len(t, stored.Bookings, 2)
	})

	t.Run("rejects duplicate user", func(t *testing.T) {
		store := newStore(t)
		ev := seedEvent(t, store, 5)
		ctx := context.Background()

		_, err := store.InsertBookingIf(ctx, admission(ev, "user-a"))
		require.NoError(t, err)
		_, err = store.InsertBookingIf(ctx, admission(ev, "user-a"))
		assert.ErrorIs(t, err, ErrNoMatch)

		stored, err := store.GetEvent(ctx, ev.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Bookings, 1)
	})

	t.Run("stale capacity snapshot does not match", func(t *testing.T) {
		store := newStore(t)
		ev := seedEvent(t, store, 3)

		adm := admission(ev, "user-a")
		adm.Capacity = 4
		_, err := store.InsertBookingIf(context.Background(), adm)
		assert.ErrorIs(t, err, ErrNoMatch)
	})

	t.Run("missing event does not match", func(t *testing.T) {
		store := newStore(t)
		ghost := &model.Event{ID: uuid.NewString(), Capacity: 1}

		_, err := store.InsertBookingIf(context.Background(), admission(ghost, "user-a"))
		assert.ErrorIs(t, err, ErrNoMatch)

		_, err = store.GetEvent(context.Background(), ghost.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cancel frees the seat and the same user can rebook", func(t *testing.T) {
		store := newStore(t)
		ev := seedEvent(t, store, 1)
		ctx := context.Background()

		first, err := store.InsertBookingIf(ctx, admission(ev, "user-a"))
		require.NoError(t, err)
		bookingID := first.Bookings[0].ID

		cancelled, err := store.CancelBooking(ctx, ev.ID, "user-a", time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, 0, cancelled.BookedCount())

		_, err = store.CancelBooking(ctx, ev.ID, "user-a", time.Now().UTC())
		assert.ErrorIs(t, err, ErrBookingNotFound)

		again, err := store.InsertBookingIf(ctx, admission(ev, "user-a"))
		require.NoError(t, err)
		require.Len(t, again.Bookings, 1, "rebooking reuses the user's record")
		assert.Equal(t, bookingID, again.Bookings[0].ID)
		assert.Equal(t, model.BookingStatusBooked, again.Bookings[0].Status)

		_, err = store.InsertBookingIf(ctx, admission(ev, "user-b"))
		assert.ErrorIs(t, err, ErrNoMatch)
	})

	t.Run("cancel on missing event", func(t *testing.T) {
		store := newStore(t)
		_, err := store.CancelBooking(context.Background(), uuid.NewString(), "user-a", time.Now())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent admissions never oversell", func(t *testing.T) {
		store := newStore(t)
		const capacity, users = 5, 40
		ev := seedEvent(t, store, capacity)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			admitted int
			failures []error
		)
		for i := 0; i < users; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.InsertBookingIf(context.Background(), admission(ev, fmt.Sprintf("user-%d", i)))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					admitted++
				case !errors.Is(err, ErrNoMatch):
					failures = append(failures, err)
				}
			}(i)
		}
		wg.Wait()

		require.Empty(t, failures)
		assert.Equal(t, capacity, admitted)

		stored, err := store.GetEvent(context.Background(), ev.ID)
		require.NoError(t, err)
		assert.Equal(t, capacity, stored.BookedCount())
	})

	t.Run("concurrent duplicates admit once", func(t *testing.T) {
		store := newStore(t)
		ev := seedEvent(t, store, 0)

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			admitted int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.InsertBookingIf(context.Background(), admission(ev, "same-user")); err == nil {
					mu.Lock()
					admitted++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, admitted)
		stored, err := store.GetEvent(context.Background(), ev.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Bookings, 1)
	})

	t.Run("list pages newest first", func(t *testing.T) {
		store := newStore(t)
		older := seedEvent(t, store, 1)
		time.Sleep(5 * time.Millisecond)
		newer := seedEvent(t, store, 1)

		page, total, err := store.ListEvents(context.Background(), model.Page{Page: 1, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, page, 1)
		assert.Equal(t, newer.ID, page[0].ID)

		page, _, err = store.ListEvents(context.Background(), model.Page{Page: 2, Limit: 1})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, older.ID, page[0].ID)
	})

	t.Run("duplicate id keeps the stored event", func(t *testing.T) {
		store := newStore(t)
		ev := seedEvent(t, store, 1)
		_, err := store.InsertBookingIf(context.Background(), admission(ev, "user-a"))
		require.NoError(t, err)

		dup := *ev
		dup.Title = "Overwrite"
		dup.Bookings = nil
		assert.ErrorIs(t, store.CreateEvent(context.Background(), &dup), ErrEventExists)

		stored, err := store.GetEvent(context.Background(), ev.ID)
		require.NoError(t, err)
		assert.Equal(t, "Meetup", stored.Title)
		assert.True(t, stored.HasActiveBooking("user-a"))
	})
}
