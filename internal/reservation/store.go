// Package reservation implements the reservation engine: the capacity
// ledger, the per-user uniqueness guard, the reservation transaction that
// composes them and the resolver that classifies every failure into a
// closed set of outcomes.
package reservation

import (
	"context"
	"errors"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// Errors a Store returns. Backends wrap driver errors with %w and use
// these sentinels for the conditions the engine must tell apart.
var (
	// ErrNotFound is returned when an event or booking does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned by InsertBooking when a live booking for
	// the same (event, user) pair already exists.
	ErrConflict = errors.New("conflict")

	// ErrLedgerUnderflow is returned by AtomicRelease when the event's
	// confirmed count is already zero. It signals a programming error:
	// a release without a matching admission.
	ErrLedgerUnderflow = errors.New("ledger underflow")

	// ErrCapacityExhausted is returned by AtomicStore.AtomicReserve when
	// the event has no seat left.
	ErrCapacityExhausted = errors.New("capacity exhausted")
)

// Store is the persistence collaborator of the engine. Every method is a
// single atomic step with respect to concurrent callers; none of them
// composes with another one unless the store also implements TxStore.
type Store interface {
	// GetEvent returns the event or ErrNotFound.
	GetEvent(ctx context.Context, eventID int64) (*model.Event, error)

	// AtomicAdmit increments the confirmed count when it is below the
	// total seats. It reports false when the event is full and
	// ErrNotFound when the event does not exist.
	AtomicAdmit(ctx context.Context, eventID int64) (bool, error)

	// AtomicRelease decrements the confirmed count. It returns
	// ErrLedgerUnderflow instead of going below zero.
	AtomicRelease(ctx context.Context, eventID int64) error

	// AtomicRegisterPair inserts the (event, user) key if absent and
	// reports whether this call inserted it.
	AtomicRegisterPair(ctx context.Context, eventID int64, userID string) (bool, error)

	// AtomicUnregisterPair removes the (event, user) key. Removing an
	// absent key is not an error.
	AtomicUnregisterPair(ctx context.Context, eventID int64, userID string) error

	// InsertBooking persists a booking row and assigns its ID and
	// creation time. It returns ErrConflict when the pair is taken.
	InsertBooking(ctx context.Context, eventID int64, userID string) (*model.Booking, error)

	// FindBooking returns the booking or ErrNotFound.
	FindBooking(ctx context.Context, bookingID int64) (*model.Booking, error)

	// FindBookingByPair returns the live booking of userID at eventID
	// or ErrNotFound.
	FindBookingByPair(ctx context.Context, eventID int64, userID string) (*model.Booking, error)

	// DeleteBooking removes the booking and reports whether a row was
	// removed by this call.
	DeleteBooking(ctx context.Context, bookingID int64) (bool, error)
}

// TxStore is a Store that can run several primitives as one
// all-or-nothing unit. The Store passed to fn is bound to the open
// transaction; returning a non-nil error from fn rolls it back.
type TxStore interface {
	Store
	WithinTx(ctx context.Context, fn func(Store) error) error
}

// AtomicStore is a Store that runs a whole reservation or cancellation as
// one server-side step. The engine uses it in preference to both the
// transaction and the compensation chain.
type AtomicStore interface {
	Store

	// AtomicReserve admits, registers and inserts in one step, checking
	// capacity before the pair. It returns ErrNotFound for a missing
	// event, ErrCapacityExhausted when the event is full and ErrConflict
	// when the pair is taken. Nothing changes unless it succeeds.
	AtomicReserve(ctx context.Context, eventID int64, userID string) (*model.Booking, error)

	// AtomicCancel deletes the booking, frees its pair and releases its
	// seat in one step. It returns ErrNotFound when the booking is gone
	// and ErrLedgerUnderflow, changing nothing, when the count is zero.
	AtomicCancel(ctx context.Context, bookingID int64) (*model.Booking, error)
}

// BookingRestorer puts a deleted booking back under its original id. The
// engine uses it to undo a cancellation whose later steps failed; stores
// without it get the booking re-inserted under a new id.
type BookingRestorer interface {
	RestoreBooking(ctx context.Context, b model.Booking) error
}
