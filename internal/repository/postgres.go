package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// DB is the subset of *pgxpool.Pool used by EventRepository.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EventRepository stores events and their bookings in PostgreSQL.
type EventRepository struct {
	db DB
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `id, title, description, location, starts_at, capacity, created_by, created_at, updated_at`

// CreateEvent inserts a new event. The caller assigns ID and timestamps.
func (r *EventRepository) CreateEvent(ctx context.Context, ev *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, title, description, location, starts_at, capacity, booked_count, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9)`,
		ev.ID, ev.Title, ev.Description, ev.Location, ev.StartsAt, ev.Capacity, ev.CreatedBy, ev.CreatedAt, ev.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEventExists
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns one page of events, newest first, and the total count.
func (r *EventRepository) ListEvents(ctx context.Context, p model.Page) ([]model.Event, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events
		 ORDER BY created_at DESC
		 LIMIT $1 OFFSET $2`,
		p.Limit, p.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}

	if err := r.attachBookings(ctx, r.db, events); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

// GetEvent returns a single event with its bookings or ErrNotFound.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	return r.loadEvent(ctx, r.db, id)
}

// InsertBookingIf admits a booking only if the admission predicate holds
// against live state, and returns the updated event.
//
// ─────────────────────────────────────────────────────────────────────────────
// WHY NOT READ-THEN-WRITE
// ─────────────────────────────────────────────────────────────────────────────
//
//	request A: read booked=1 capacity=2 → ok
//	request B: read booked=1 capacity=2 → ok
//	request A: insert booking          → booked=2
//	request B: insert booking          → booked=3   OVERBOOKED
//
// The capacity check is pushed into the WHERE clause of the first statement:
//
//	UPDATE events SET booked_count = booked_count + 1
//	WHERE id = $1 AND capacity = $2 AND (capacity = 0 OR booked_count < capacity)
//
// The UPDATE takes the event row lock. A concurrent request blocks on that
// lock and, once it is released, PostgreSQL re-evaluates the WHERE clause
// against the committed row, so the counter can never pass capacity.
//
// The duplicate check runs second, while the lock is held, as an
// INSERT ... ON CONFLICT that only revives a cancelled record. Every path that
// touches bookings locks the event row first, so this statement always sees
// the latest committed bookings for the event.
//
// Either statement matching no row rolls the transaction back: a rejection
// leaves nothing behind.
// ─────────────────────────────────────────────────────────────────────────────
func (r *EventRepository) InsertBookingIf(ctx context.Context, adm model.Admission) (*model.Event, error) {
	var ev *model.Event
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx,
			`UPDATE events
			 SET booked_count = booked_count + 1, updated_at = $3
			 WHERE id = $1 AND capacity = $2 AND (capacity = 0 OR booked_count < capacity)
			 RETURNING id`,
			adm.EventID, adm.Capacity, adm.At,
		).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
				return ErrNoMatch
			}
			return fmt.Errorf("claim seat: %w", err)
		}

		var bookingID string
		err = tx.QueryRow(ctx,
			`INSERT INTO bookings (id, event_id, user_id, status, created_at, updated_at)
			 VALUES ($1, $2, $3, 'booked', $4, $4)
			 ON CONFLICT (event_id, user_id) DO UPDATE
			 SET status = 'booked', updated_at = EXCLUDED.updated_at
			 WHERE bookings.status = 'cancelled'
			 RETURNING id`,
			adm.BookingID, adm.EventID, adm.UserID, adm.At,
		).Scan(&bookingID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNoMatch
			}
			return fmt.Errorf("insert booking: %w", err)
		}

		ev, err = r.loadEvent(ctx, tx, adm.EventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

// CancelBooking moves userID's active booking to cancelled and frees its seat.
// Like InsertBookingIf it locks the event row before touching bookings.
func (r *EventRepository) CancelBooking(ctx context.Context, eventID, userID string, at time.Time) (*model.Event, error) {
	var ev *model.Event
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx,
			`UPDATE events SET updated_at = $2 WHERE id = $1 RETURNING id`,
			eventID, at,
		).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
				return ErrNotFound
			}
			return fmt.Errorf("lock event: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE bookings
			 SET status = 'cancelled', updated_at = $3
			 WHERE event_id = $1 AND user_id = $2 AND status = 'booked'`,
			eventID, userID, at,
		)
		if err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrBookingNotFound
		}

		if _, err := tx.Exec(ctx,
			`UPDATE events SET booked_count = booked_count - 1 WHERE id = $1`,
			eventID,
		); err != nil {
			return fmt.Errorf("release seat: %w", err)
		}

		ev, err = r.loadEvent(ctx, tx, eventID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ev, nil
}

func (r *EventRepository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (r *EventRepository) loadEvent(ctx context.Context, q querier, id string) (*model.Event, error) {
	row := q.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id)
	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidUUID(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}

	events := []model.Event{*ev}
	if err := r.attachBookings(ctx, q, events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

// attachBookings fills Bookings for every event in one query.
func (r *EventRepository) attachBookings(ctx context.Context, q querier, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]string, len(events))
	index := make(map[string]int, len(events))
	for i := range events {
		ids[i] = events[i].ID
		index[events[i].ID] = i
		events[i].Bookings = []model.Booking{}
	}

	rows, err := q.Query(ctx,
		`SELECT id, event_id, user_id, status, created_at, updated_at
		 FROM bookings
		 WHERE event_id = ANY($1::uuid[])
		 ORDER BY created_at ASC, id ASC`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b       model.Booking
			eventID string
		)
		if err := rows.Scan(&b.ID, &eventID, &b.UserID, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return fmt.Errorf("scan booking: %w", err)
		}
		if i, ok := index[eventID]; ok {
			events[i].Bookings = append(events[i].Bookings, b)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	return nil
}

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.StartsAt, &e.Capacity, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isInvalidUUID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}
