package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// Engine turns reservation and cancellation requests into bookings or
// well-defined rejections. It is safe for concurrent use; all shared
// state lives behind the Store primitives.
//
// An AtomicStore does each request in one server-side step. On a TxStore
// the steps run in one transaction and an abort is a rollback. Otherwise
// every primitive that already took effect is compensated before the
// error is returned.
type Engine struct {
	store Store
}

// NewEngine returns an engine backed by st.
func NewEngine(st Store) *Engine {
	if st == nil {
		panic("nil store passed to NewEngine")
	}
	return &Engine{store: st}
}

// Reserve books one seat of eventID for userID. The returned error is
// one of ErrEventNotFound, ErrNoSeats, ErrDuplicateBooking or wraps
// ErrStorageFailure.
func (e *Engine) Reserve(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	if as, ok := e.store.(AtomicStore); ok {
		return reserveAtomic(ctx, as, eventID, userID)
	}

	if _, err := e.store.GetEvent(ctx, eventID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, storageFailure(err)
	}

	tx, ok := e.store.(TxStore)
	if !ok {
		return e.reserve(ctx, e.store, eventID, userID, true)
	}
	var booking *model.Booking
	err := tx.WithinTx(ctx, func(st Store) error {
		b, err := e.reserve(ctx, st, eventID, userID, false)
		booking = b
		return err
	})
	if err != nil {
		return nil, engineError(err)
	}
	return booking, nil
}

func reserveAtomic(ctx context.Context, st AtomicStore, eventID int64, userID string) (*model.Booking, error) {
	b, err := st.AtomicReserve(ctx, eventID, userID)
	switch {
	case err == nil:
		return b, nil
	case errors.Is(err, ErrNotFound):
		return nil, ErrEventNotFound
	case errors.Is(err, ErrCapacityExhausted):
		return nil, ErrNoSeats
	case errors.Is(err, ErrConflict):
		return nil, ErrDuplicateBooking
	}
	return nil, storageFailure(fmt.Errorf("reserve user %q for event %d: %w", userID, eventID, err))
}

// reserve runs admission, registration and insertion against st. With
// compensate set, a failed step undoes the steps before it.
func (e *Engine) reserve(ctx context.Context, st Store, eventID int64, userID string, compensate bool) (*model.Booking, error) {
	ledger, guard := NewLedger(st), NewGuard(st)

	adm, err := ledger.TryAdmit(ctx, eventID)
	if err != nil {
		return nil, storageFailure(err)
	}
	switch adm {
	case AdmitEventNotFound:
		return nil, ErrEventNotFound
	case AdmitCapacityExhausted:
		return nil, ErrNoSeats
	}

	reg, err := guard.TryRegister(ctx, eventID, userID)
	if err != nil || reg == AlreadyBooked {
		if compensate {
			e.undoAdmit(ctx, ledger, eventID)
		}
		if err != nil {
			return nil, storageFailure(err)
		}
		return nil, ErrDuplicateBooking
	}

	booking, err := st.InsertBooking(ctx, eventID, userID)
	if err != nil {
		if compensate {
			e.undoRegister(ctx, guard, eventID, userID)
			e.undoAdmit(ctx, ledger, eventID)
		}
		if errors.Is(err, ErrConflict) {
			return nil, ErrDuplicateBooking
		}
		return nil, storageFailure(fmt.Errorf("insert booking: %w", err))
	}
	return booking, nil
}

// Cancel deletes the booking, frees its pair and releases its seat. It
// returns the cancelled booking or ErrBookingNotFound.
func (e *Engine) Cancel(ctx context.Context, bookingID int64) (*model.Booking, error) {
	return e.cancel(ctx, func(st Store) (*model.Booking, error) {
		return st.FindBooking(ctx, bookingID)
	})
}

// CancelByPair cancels the booking userID holds at eventID.
func (e *Engine) CancelByPair(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	return e.cancel(ctx, func(st Store) (*model.Booking, error) {
		return st.FindBookingByPair(ctx, eventID, userID)
	})
}

func (e *Engine) cancel(ctx context.Context, find func(Store) (*model.Booking, error)) (*model.Booking, error) {
	switch st := e.store.(type) {
	case AtomicStore:
		return cancelAtomic(ctx, st, find)
	case TxStore:
		var booking *model.Booking
		err := st.WithinTx(ctx, func(tx Store) error {
			b, err := cancelInTx(ctx, tx, find)
			booking = b
			return err
		})
		if err != nil {
			return nil, engineError(err)
		}
		return booking, nil
	default:
		return e.cancelSteps(ctx, st, find)
	}
}

func lookup(st Store, find func(Store) (*model.Booking, error)) (*model.Booking, error) {
	b, err := find(st)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, storageFailure(err)
	}
	return b, nil
}

func cancelAtomic(ctx context.Context, st AtomicStore, find func(Store) (*model.Booking, error)) (*model.Booking, error) {
	found, err := lookup(st, find)
	if err != nil {
		return nil, err
	}
	b, err := st.AtomicCancel(context.WithoutCancel(ctx), found.ID)
	switch {
	case err == nil:
		return b, nil
	case errors.Is(err, ErrNotFound):
		return nil, ErrBookingNotFound
	case errors.Is(err, ErrLedgerUnderflow):
		log.Printf("reservation: release below zero on event %d", found.EventID)
	}
	return nil, storageFailure(fmt.Errorf("cancel booking %d: %w", found.ID, err))
}

// cancelInTx releases the seat before touching the booking and claim
// rows, so it locks the event row first, in the same order as a
// reservation. A concurrent cancel that lost the race finds nothing to
// delete and its rollback gives the seat back.
func cancelInTx(ctx context.Context, st Store, find func(Store) (*model.Booking, error)) (*model.Booking, error) {
	booking, err := lookup(st, find)
	if err != nil {
		return nil, err
	}
	relErr := st.AtomicRelease(ctx, booking.EventID)
	if relErr != nil && !errors.Is(relErr, ErrLedgerUnderflow) {
		return nil, storageFailure(fmt.Errorf("release event %d: %w", booking.EventID, relErr))
	}
	deleted, err := st.DeleteBooking(ctx, booking.ID)
	if err != nil {
		return nil, storageFailure(fmt.Errorf("delete booking %d: %w", booking.ID, err))
	}
	if !deleted {
		return nil, ErrBookingNotFound
	}
	if relErr != nil {
		log.Printf("reservation: release below zero on event %d", booking.EventID)
		return nil, storageFailure(fmt.Errorf("release event %d: %w", booking.EventID, relErr))
	}
	if err := NewGuard(st).Unregister(ctx, booking.EventID, booking.UserID); err != nil {
		return nil, storageFailure(err)
	}
	return booking, nil
}

// cancelSteps deletes first so that of several concurrent cancels of the
// same booking only one goes on to release the seat. A failure after the
// delete puts the booking back, so a seat or pair is never held without
// a visible booking and the cancel can be retried.
func (e *Engine) cancelSteps(ctx context.Context, st Store, find func(Store) (*model.Booking, error)) (*model.Booking, error) {
	booking, err := lookup(st, find)
	if err != nil {
		return nil, err
	}
	deleted, err := st.DeleteBooking(ctx, booking.ID)
	if err != nil {
		return nil, storageFailure(fmt.Errorf("delete booking %d: %w", booking.ID, err))
	}
	if !deleted {
		return nil, ErrBookingNotFound
	}

	// The booking is gone; finish the unit even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	ledger := NewLedger(st)
	if err := ledger.Release(ctx, booking.EventID); err != nil {
		e.restoreBooking(ctx, st, *booking)
		return nil, storageFailure(err)
	}
	if err := NewGuard(st).Unregister(ctx, booking.EventID, booking.UserID); err != nil {
		e.undoRelease(ctx, st, *booking)
		return nil, storageFailure(err)
	}
	return booking, nil
}

// restoreBooking undoes the delete of a cancellation. The seat and the
// pair must still be held when it is called.
func (e *Engine) restoreBooking(ctx context.Context, st Store, b model.Booking) bool {
	var err error
	if r, ok := st.(BookingRestorer); ok {
		err = r.RestoreBooking(ctx, b)
	} else {
		_, err = st.InsertBooking(ctx, b.EventID, b.UserID)
	}
	if err != nil {
		log.Printf("reservation: compensation failed, booking %d of event %d not restored: %v", b.ID, b.EventID, err)
		return false
	}
	return true
}

// undoRelease takes the released seat back and restores the booking
// after the pair could not be freed.
func (e *Engine) undoRelease(ctx context.Context, st Store, b model.Booking) {
	ledger := NewLedger(st)
	adm, err := ledger.TryAdmit(ctx, b.EventID)
	if err != nil || adm != Admitted {
		log.Printf("reservation: compensation failed, pair (%d, %q) held without a booking: admission %d: %v",
			b.EventID, b.UserID, adm, err)
		return
	}
	if !e.restoreBooking(ctx, st, b) {
		e.undoAdmit(ctx, ledger, b.EventID)
	}
}

func (e *Engine) undoAdmit(ctx context.Context, ledger Ledger, eventID int64) {
	if err := ledger.Release(context.WithoutCancel(ctx), eventID); err != nil {
		log.Printf("reservation: compensation failed, seat of event %d not released: %v", eventID, err)
	}
}

func (e *Engine) undoRegister(ctx context.Context, guard Guard, eventID int64, userID string) {
	if err := guard.Unregister(context.WithoutCancel(ctx), eventID, userID); err != nil {
		log.Printf("reservation: compensation failed, pair (%d, %q) not freed: %v", eventID, userID, err)
	}
}

func storageFailure(err error) error {
	if errors.Is(err, ErrStorageFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}

// engineError keeps the engine's own sentinels and folds anything else a
// transaction returned (begin or commit failures) into ErrStorageFailure.
func engineError(err error) error {
	if Resolve(err) != OutcomeStorageFailure {
		return err
	}
	return storageFailure(err)
}
