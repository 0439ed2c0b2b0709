package reservation

import (
	"context"
	"fmt"
)

// Registration is the result of claiming the (event, user) key.
type Registration int

const (
	Registered Registration = iota
	AlreadyBooked
)

// Guard enforces one booking per user per event. It does not touch
// capacity.
type Guard struct {
	store Store
}

// NewGuard binds a guard to st.
func NewGuard(st Store) Guard { return Guard{store: st} }

// TryRegister inserts the pair if it is absent.
func (g Guard) TryRegister(ctx context.Context, eventID int64, userID string) (Registration, error) {
	ok, err := g.store.AtomicRegisterPair(ctx, eventID, userID)
	if err != nil {
		return 0, fmt.Errorf("register user %q for event %d: %w", userID, eventID, err)
	}
	if !ok {
		return AlreadyBooked, nil
	}
	return Registered, nil
}

// Unregister frees the pair so the user may book the event again.
func (g Guard) Unregister(ctx context.Context, eventID int64, userID string) error {
	if err := g.store.AtomicUnregisterPair(ctx, eventID, userID); err != nil {
		return fmt.Errorf("unregister user %q for event %d: %w", userID, eventID, err)
	}
	return nil
}
