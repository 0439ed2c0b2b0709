package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/reservation"
)

// SQLSTATE codes the store reacts to.
const (
	pgForeignKeyViolation  = "23503"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func isPgRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgDeadlockDetected || pgErr.Code == pgSerializationFailure
}

// pgQuerier is the subset shared by *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists events, claims and bookings in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    pgQuerier
	inTx bool
}

// NewPostgresStore returns a store backed by pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

// WithinTx runs fn inside one READ COMMITTED transaction. The conditional
// updates take row locks, so nothing stronger is needed. A unit aborted
// as a deadlock victim is run again, up to txAttempts times.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(reservation.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	var err error
	for attempt := 0; attempt < txAttempts; attempt++ {
		if err = s.runTx(ctx, fn); !isPgRetryable(err) {
			return err
		}
	}
	return err
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(reservation.Store) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(context.WithoutCancel(ctx))
		}
	}()

	if err := fn(&PostgresStore{pool: s.pool, q: tx, inTx: true}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

func (s *PostgresStore) CreateEvent(ctx context.Context, name string, totalSeats int) (*model.Event, error) {
	if err := validateEvent(name, totalSeats); err != nil {
		return nil, err
	}
	ev := model.Event{Name: strings.TrimSpace(name), TotalSeats: totalSeats}
	err := s.q.QueryRow(ctx,
		`INSERT INTO events (name, total_seats, confirmed_count, created_at, updated_at)
		 VALUES ($1, $2, 0, now(), now())
		 RETURNING id, created_at, updated_at`,
		ev.Name, ev.TotalSeats,
	).Scan(&ev.ID, &ev.CreatedAt, &ev.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return &ev, nil
}

const pgEventColumns = `id, name, total_seats, confirmed_count, created_at, updated_at`

func scanPgEvent(row pgx.Row) (model.Event, error) {
	var ev model.Event
	err := row.Scan(&ev.ID, &ev.Name, &ev.TotalSeats, &ev.ConfirmedCount, &ev.CreatedAt, &ev.UpdatedAt)
	return ev, err
}

func (s *PostgresStore) GetEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	ev, err := scanPgEvent(s.q.QueryRow(ctx, `SELECT `+pgEventColumns+` FROM events WHERE id = $1`, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &ev, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := s.q.Query(ctx, `SELECT `+pgEventColumns+` FROM events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Event, error) {
		return scanPgEvent(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) AtomicAdmit(ctx context.Context, eventID int64) (bool, error) {
	tag, err := s.q.Exec(ctx,
		`UPDATE events
		 SET confirmed_count = confirmed_count + 1, updated_at = now()
		 WHERE id = $1 AND confirmed_count < total_seats`,
		eventID,
	)
	if err != nil {
		return false, fmt.Errorf("admit: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if err := s.eventExists(ctx, eventID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PostgresStore) AtomicRelease(ctx context.Context, eventID int64) error {
	tag, err := s.q.Exec(ctx,
		`UPDATE events
		 SET confirmed_count = confirmed_count - 1, updated_at = now()
		 WHERE id = $1 AND confirmed_count > 0`,
		eventID,
	)
	if err != nil {
		return fmt.Errorf("release: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if err := s.eventExists(ctx, eventID); err != nil {
		return err
	}
	return reservation.ErrLedgerUnderflow
}

func (s *PostgresStore) eventExists(ctx context.Context, eventID int64) error {
	var exists bool
	if err := s.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, eventID).Scan(&exists); err != nil {
		return fmt.Errorf("check event: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AtomicRegisterPair(ctx context.Context, eventID int64, userID string) (bool, error) {
	tag, err := s.q.Exec(ctx,
		`INSERT INTO booking_claims (event_id, user_id, created_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (event_id, user_id) DO NOTHING`,
		eventID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("register pair: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) AtomicUnregisterPair(ctx context.Context, eventID int64, userID string) error {
	if _, err := s.q.Exec(ctx, `DELETE FROM booking_claims WHERE event_id = $1 AND user_id = $2`, eventID, userID); err != nil {
		return fmt.Errorf("unregister pair: %w", err)
	}
	return nil
}

// InsertBooking uses ON CONFLICT so a taken pair does not abort the
// surrounding transaction.
func (s *PostgresStore) InsertBooking(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	b := model.Booking{EventID: eventID, UserID: userID}
	err := s.q.QueryRow(ctx,
		`INSERT INTO bookings (event_id, user_id, created_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (event_id, user_id) DO NOTHING
		 RETURNING id, created_at`,
		eventID, userID,
	).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConflict
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	return &b, nil
}

const pgBookingColumns = `id, event_id, user_id, created_at`

func scanPgBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.EventID, &b.UserID, &b.CreatedAt)
	return b, err
}

func (s *PostgresStore) findBooking(ctx context.Context, where string, args ...any) (*model.Booking, error) {
	b, err := scanPgBooking(s.q.QueryRow(ctx, `SELECT `+pgBookingColumns+` FROM bookings WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find booking: %w", err)
	}
	return &b, nil
}

func (s *PostgresStore) FindBooking(ctx context.Context, bookingID int64) (*model.Booking, error) {
	return s.findBooking(ctx, `id = $1`, bookingID)
}

func (s *PostgresStore) FindBookingByPair(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	return s.findBooking(ctx, `event_id = $1 AND user_id = $2`, eventID, userID)
}

func (s *PostgresStore) DeleteBooking(ctx context.Context, bookingID int64) (bool, error) {
	tag, err := s.q.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		return false, fmt.Errorf("delete booking: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	q := `SELECT ` + pgBookingColumns + ` FROM bookings`
	var (
		where []string
		args  []any
	)
	if filter.EventID > 0 {
		args = append(args, filter.EventID)
		where = append(where, "event_id = $"+strconv.Itoa(len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where = append(where, "user_id = $"+strconv.Itoa(len(args)))
	}
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id`

	rows, err := s.q.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	bookings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Booking, error) {
		return scanPgBooking(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan bookings: %w", err)
	}
	return bookings, nil
}
