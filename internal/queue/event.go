// Package queue carries booking notifications over RabbitMQ: the payload,
// the publisher used by the booking service and the audit consumer that
// writes them to a log file.
package queue

import (
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

// Routing keys on the bookings exchange.
const (
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
)

// BookingEvent is published after a booking is committed or cancelled.
// It carries enough for downstream consumers to log or notify without
// querying the store.
type BookingEvent struct {
	Type       string    `json:"type"`
	BookingID  int64     `json:"booking_id"`
	EventID    int64     `json:"event_id"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewBookingEvent builds the notification for b.
func NewBookingEvent(typ string, b model.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:       typ,
		BookingID:  b.ID,
		EventID:    b.EventID,
		UserID:     b.UserID,
		OccurredAt: at.UTC(),
	}
}
