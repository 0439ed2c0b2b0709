package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/reservation"
)

// MySQL server error numbers the store reacts to.
const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrDeadlock        = 1213
	mysqlErrNoReferencedRow = 1452
)

// txAttempts bounds how often WithinTx reruns a unit the server chose as
// a deadlock victim.
const txAttempts = 3

// querier is satisfied by both *sql.DB and *sql.Tx so every statement can
// run either standalone or inside WithinTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQLStore persists events, claims and bookings in MySQL. The capacity
// check is a conditional UPDATE and uniqueness comes from the primary key
// of booking_claims, so each primitive is atomic on its own; WithinTx lets
// the engine run them as one unit.
type MySQLStore struct {
	db  *sql.DB
	q   querier
	now func() time.Time
}

// NewMySQLStore returns a store bound to db.
func NewMySQLStore(db *sql.DB) *MySQLStore {
	return &MySQLStore{db: db, q: db, now: func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }}
}

// WithinTx runs fn against a copy of the store bound to one transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
// A unit rolled back as a deadlock victim is run again.
func (s *MySQLStore) WithinTx(ctx context.Context, fn func(reservation.Store) error) error {
	if _, inTx := s.q.(*sql.Tx); inTx {
		return fn(s)
	}
	var err error
	for attempt := 0; attempt < txAttempts; attempt++ {
		if err = s.runTx(ctx, fn); !isMySQLError(err, mysqlErrDeadlock) {
			return err
		}
	}
	return err
}

func (s *MySQLStore) runTx(ctx context.Context, fn func(reservation.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	txStore := &MySQLStore{db: s.db, q: tx, now: s.now}
	if err := fn(txStore); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

func (s *MySQLStore) CreateEvent(ctx context.Context, name string, totalSeats int) (*model.Event, error) {
	if err := validateEvent(name, totalSeats); err != nil {
		return nil, err
	}
	ev := model.Event{
		Name:       strings.TrimSpace(name),
		TotalSeats: totalSeats,
		CreatedAt:  s.now(),
	}
	ev.UpdatedAt = ev.CreatedAt
	const q = `INSERT INTO events (name, total_seats, confirmed_count, created_at, updated_at) VALUES (?, ?, 0, ?, ?)`
	res, err := s.q.ExecContext(ctx, q, ev.Name, ev.TotalSeats, ev.CreatedAt, ev.UpdatedAt)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	ev.ID = id
	return &ev, nil
}

const mysqlEventColumns = `id, name, total_seats, confirmed_count, created_at, updated_at`

func (s *MySQLStore) GetEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	q := `SELECT ` + mysqlEventColumns + ` FROM events WHERE id = ?`
	var ev model.Event
	err := s.q.QueryRowContext(ctx, q, eventID).Scan(
		&ev.ID, &ev.Name, &ev.TotalSeats, &ev.ConfirmedCount, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *MySQLStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	q := `SELECT ` + mysqlEventColumns + ` FROM events ORDER BY id`
	rows, err := s.q.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Event, 0)
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.ID, &ev.Name, &ev.TotalSeats, &ev.ConfirmedCount, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *MySQLStore) AtomicAdmit(ctx context.Context, eventID int64) (bool, error) {
	const q = `UPDATE events
	           SET confirmed_count = confirmed_count + 1, updated_at = UTC_TIMESTAMP(6)
	           WHERE id = ? AND confirmed_count < total_seats`
	res, err := s.q.ExecContext(ctx, q, eventID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	// Nothing changed: either the event is full or it does not exist.
	if err := s.eventExists(ctx, eventID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *MySQLStore) AtomicRelease(ctx context.Context, eventID int64) error {
	const q = `UPDATE events
	           SET confirmed_count = confirmed_count - 1, updated_at = UTC_TIMESTAMP(6)
	           WHERE id = ? AND confirmed_count > 0`
	res, err := s.q.ExecContext(ctx, q, eventID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	if err := s.eventExists(ctx, eventID); err != nil {
		return err
	}
	return reservation.ErrLedgerUnderflow
}

func (s *MySQLStore) eventExists(ctx context.Context, eventID int64) error {
	var one int
	err := s.q.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, eventID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *MySQLStore) AtomicRegisterPair(ctx context.Context, eventID int64, userID string) (bool, error) {
	const q = `INSERT IGNORE INTO booking_claims (event_id, user_id, created_at) VALUES (?, ?, ?)`
	res, err := s.q.ExecContext(ctx, q, eventID, userID, s.now())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *MySQLStore) AtomicUnregisterPair(ctx context.Context, eventID int64, userID string) error {
	_, err := s.q.ExecContext(ctx, `DELETE FROM booking_claims WHERE event_id = ? AND user_id = ?`, eventID, userID)
	return err
}

func isMySQLError(err error, number uint16) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == number
}

func (s *MySQLStore) InsertBooking(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	b := model.Booking{EventID: eventID, UserID: userID, CreatedAt: s.now()}
	const q = `INSERT INTO bookings (event_id, user_id, created_at) VALUES (?, ?, ?)`
	res, err := s.q.ExecContext(ctx, q, eventID, userID, b.CreatedAt)
	if err != nil {
		var myErr *mysql.MySQLError
		if errors.As(err, &myErr) {
			switch myErr.Number {
			case mysqlErrDuplicateEntry:
				return nil, ErrConflict
			case mysqlErrNoReferencedRow:
				return nil, ErrNotFound
			}
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	b.ID = id
	return &b, nil
}

const mysqlBookingColumns = `id, event_id, user_id, created_at`

func (s *MySQLStore) FindBooking(ctx context.Context, bookingID int64) (*model.Booking, error) {
	q := `SELECT ` + mysqlBookingColumns + ` FROM bookings WHERE id = ?`
	return s.scanBooking(s.q.QueryRowContext(ctx, q, bookingID))
}

func (s *MySQLStore) FindBookingByPair(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	q := `SELECT ` + mysqlBookingColumns + ` FROM bookings WHERE event_id = ? AND user_id = ?`
	return s.scanBooking(s.q.QueryRowContext(ctx, q, eventID, userID))
}

func (s *MySQLStore) scanBooking(row *sql.Row) (*model.Booking, error) {
	var b model.Booking
	err := row.Scan(&b.ID, &b.EventID, &b.UserID, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *MySQLStore) DeleteBooking(ctx context.Context, bookingID int64) (bool, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, bookingID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *MySQLStore) ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	q := `SELECT ` + mysqlBookingColumns + ` FROM bookings`
	var (
		where []string
		args  []any
	)
	if filter.EventID > 0 {
		where = append(where, "event_id = ?")
		args = append(args, filter.EventID)
	}
	if filter.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY id`

	rows, err := s.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.EventID, &b.UserID, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
