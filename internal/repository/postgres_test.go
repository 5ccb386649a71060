package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

const (
	testEventID   = "8f0c2a8e-2b5c-4a52-9a55-0d5e0f6f1a01"
	testBookingID = "4b7d9c1e-6a1f-4c3b-8d2e-9f0a1b2c3d4e"
)

// bookingsByEventQuery matches the bookings read only when it filters on the
// uuid column directly, so the (event_id, user_id) index stays usable.
const bookingsByEventQuery = `FROM bookings\s+WHERE event_id = ANY\(\$1::uuid\[\]\)`

var testNow = time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

func newMockRepo(t *testing.T) (*EventRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewEventRepository(mock), mock
}

func eventRows(capacity int) *pgxmock.Rows {
	startsAt := testNow.Add(24 * time.Hour)
	return pgxmock.NewRows([]string{
		"id", "title", "description", "location", "starts_at", "capacity", "created_by", "created_at", "updated_at",
	}).AddRow(testEventID, "Go meetup", "talks", "Hall A", &startsAt, capacity, "organizer-1", testNow, testNow)
}

func bookingRows(users ...string) *pgxmock.Rows {
	rows := pgxmock.NewRows([]string{"id", "event_id", "user_id", "status", "created_at", "updated_at"})
	for _, u := range users {
		rows.AddRow(testBookingID, testEventID, u, model.BookingStatusBooked, testNow, testNow)
	}
	return rows
}

func testAdmission() model.Admission {
	return model.Admission{
		EventID:   testEventID,
		UserID:    "user-a",
		Capacity:  2,
		BookingID: testBookingID,
		At:        testNow,
	}
}

func TestEventRepository_InsertBookingIf(t *testing.T) {
	t.Run("commits claim and insert", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SET booked_count = booked_count").
			WithArgs(testEventID, 2, testNow).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(testEventID))
		mock.ExpectQuery("INSERT INTO bookings").
			WithArgs(testBookingID, testEventID, "user-a", testNow).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(testBookingID))
		mock.ExpectQuery("FROM events WHERE id").
			WithArgs(testEventID).
			WillReturnRows(eventRows(2))
		mock.ExpectQuery(bookingsByEventQuery).
			WithArgs(pgxmock.AnyArg()).
			WillReturnRows(bookingRows("user-a"))
		mock.ExpectCommit()

		ev, err := repo.InsertBookingIf(context.Background(), testAdmission())
		require.NoError(t, err)
		assert.Equal(t, testEventID, ev.ID)
		assert.True(t, ev.HasActiveBooking("user-a"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no seat rolls back", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SET booked_count = booked_count").
			WithArgs(testEventID, 2, testNow).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.InsertBookingIf(context.Background(), testAdmission())
		assert.ErrorIs(t, err, ErrNoMatch)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("existing active booking rolls back the claimed seat", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery("SET booked_count = booked_count").
			WithArgs(testEventID, 2, testNow).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(testEventID))
		mock.ExpectQuery("INSERT INTO bookings").
			WithArgs(testBookingID, testEventID, "user-a", testNow).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.InsertBookingIf(context.Background(), testAdmission())
		assert.ErrorIs(t, err, ErrNoMatch)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed id does not match", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		adm := testAdmission()
		adm.EventID = "not-a-uuid"
		mock.ExpectBegin()
		mock.ExpectQuery("SET booked_count = booked_count").
			WithArgs("not-a-uuid", 2, testNow).
			WillReturnError(&pgconn.PgError{Code: "22P02"})
		mock.ExpectRollback()

		_, err := repo.InsertBookingIf(context.Background(), adm)
		assert.ErrorIs(t, err, ErrNoMatch)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("store failure is surfaced", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		boom := errors.New("connection reset")
		mock.ExpectBegin()
		mock.ExpectQuery("SET booked_count = booked_count").
			WithArgs(testEventID, 2, testNow).
			WillReturnError(boom)
		mock.ExpectRollback()

		_, err := repo.InsertBookingIf(context.Background(), testAdmission())
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrNoMatch)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin().WillReturnError(errors.New("pool closed"))

		_, err := repo.InsertBookingIf(context.Background(), testAdmission())
		assert.ErrorContains(t, err, "begin transaction")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEventRepository_CancelBooking(t *testing.T) {
	t.Run("cancels and releases seat", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE events SET updated_at").
			WithArgs(testEventID, testNow).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(testEventID))
		mock.ExpectExec("UPDATE bookings").
			WithArgs(testEventID, "user-a", testNow).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectExec("SET booked_count = booked_count").
			WithArgs(testEventID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectQuery("FROM events WHERE id").
			WithArgs(testEventID).
			WillReturnRows(eventRows(2))
		mock.ExpectQuery(bookingsByEventQuery).
			WithArgs(pgxmock.AnyArg()).
			WillReturnRows(bookingRows())
		mock.ExpectCommit()

		ev, err := repo.CancelBooking(context.Background(), testEventID, "user-a", testNow)
		require.NoError(t, err)
		assert.Equal(t, 0, ev.BookedCount())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no active booking", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE events SET updated_at").
			WithArgs(testEventID, testNow).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(testEventID))
		mock.ExpectExec("UPDATE bookings").
			WithArgs(testEventID, "user-a", testNow).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		_, err := repo.CancelBooking(context.Background(), testEventID, "user-a", testNow)
		assert.ErrorIs(t, err, ErrBookingNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing event", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE events SET updated_at").
			WithArgs(testEventID, testNow).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		_, err := repo.CancelBooking(context.Background(), testEventID, "user-a", testNow)
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEventRepository_GetEvent(t *testing.T) {
	t.Run("loads bookings", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery("FROM events WHERE id").
			WithArgs(testEventID).
			WillReturnRows(eventRows(0))
		mock.ExpectQuery(bookingsByEventQuery).
			WithArgs(pgxmock.AnyArg()).
			WillReturnRows(bookingRows("user-a"))

		ev, err := repo.GetEvent(context.Background(), testEventID)
		require.NoError(t, err)
		assert.True(t, ev.Unlimited())
		assert.Len(t, ev.Bookings, 1)
		require.NotNil(t, ev.StartsAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectQuery("FROM events WHERE id").
			WithArgs(testEventID).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetEvent(context.Background(), testEventID)
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestEventRepository_CreateEvent(t *testing.T) {
	repo, mock := newMockRepo(t)

	ev := &model.Event{
		ID:        testEventID,
		Title:     "Go meetup",
		Capacity:  10,
		CreatedBy: "organizer-1",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	mock.ExpectExec("INSERT INTO events").
		WithArgs(ev.ID, ev.Title, ev.Description, ev.Location, ev.StartsAt, ev.Capacity, ev.CreatedBy, ev.CreatedAt, ev.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.CreateEvent(context.Background(), ev))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_CreateEvent_DuplicateID(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO events").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "events_pkey"})

	err := repo.CreateEvent(context.Background(), &model.Event{ID: testEventID, Title: "Go meetup"})
	assert.ErrorIs(t, err, ErrEventExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_ListEvents(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("ORDER BY created_at DESC").
		WithArgs(10, 0).
		WillReturnRows(eventRows(5))
	mock.ExpectQuery(bookingsByEventQuery).
		WithArgs([]string{testEventID}).
		WillReturnRows(bookingRows("user-a", "user-b"))

	events, total, err := repo.ListEvents(context.Background(), model.Page{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, 2, events[0].BookedCount())
	require.NoError(t, mock.ExpectationsWereMet())
}
