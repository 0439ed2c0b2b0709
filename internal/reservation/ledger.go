package reservation

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Admission is the result of asking the ledger for one more seat.
type Admission int

const (
	Admitted Admission = iota
	AdmitEventNotFound
	AdmitCapacityExhausted
)

// Ledger owns the per-event confirmed counter. It never reads and then
// writes the counter; both directions go through a single atomic store
// primitive so concurrent admissions for the last seat cannot both win.
type Ledger struct {
	store Store
}

// NewLedger binds a ledger to st.
func NewLedger(st Store) Ledger { return Ledger{store: st} }

// TryAdmit claims one seat of eventID if any is left.
func (l Ledger) TryAdmit(ctx context.Context, eventID int64) (Admission, error) {
	ok, err := l.store.AtomicAdmit(ctx, eventID)
	switch {
	case errors.Is(err, ErrNotFound):
		return AdmitEventNotFound, nil
	case err != nil:
		return 0, fmt.Errorf("admit event %d: %w", eventID, err)
	case !ok:
		return AdmitCapacityExhausted, nil
	}
	return Admitted, nil
}

// Release gives one seat of eventID back. An underflow is logged and
// returned; it is never clamped.
func (l Ledger) Release(ctx context.Context, eventID int64) error {
	err := l.store.AtomicRelease(ctx, eventID)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrLedgerUnderflow) {
		log.Printf("reservation: release below zero on event %d", eventID)
	}
	return fmt.Errorf("release event %d: %w", eventID, err)
}
