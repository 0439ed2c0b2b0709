package repository

import (
	"context"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/reservation"
)

// Store is implemented by every backend: the engine primitives plus the
// catalog reads and writes used by the request layer.
type Store interface {
	reservation.Store

	// CreateEvent inserts an event with a zero confirmed count.
	CreateEvent(ctx context.Context, name string, totalSeats int) (*model.Event, error)

	// ListEvents returns all events ordered by id.
	ListEvents(ctx context.Context) ([]model.Event, error)

	// ListBookings returns the bookings matching filter ordered by id.
	ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
}

var (
	_ reservation.TxStore = (*MySQLStore)(nil)
	_ reservation.TxStore = (*PostgresStore)(nil)

	_ reservation.AtomicStore     = (*RedisStore)(nil)
	_ reservation.BookingRestorer = (*MemoryStore)(nil)

	_ Store = (*MemoryStore)(nil)
	_ Store = (*RedisStore)(nil)
	_ Store = (*MySQLStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
