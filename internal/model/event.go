package model

import "time"

// Event is a bookable occasion with a fixed number of seats.
//
// Fields:
//
//	ID             – primary key identifier.
//	Name           – display name.
//	TotalSeats     – capacity; positive and never changed by the engine.
//	ConfirmedCount – seats currently held by live bookings. Only the
//	                 capacity ledger writes it and it never exceeds
//	                 TotalSeats.
//	CreatedAt      – creation timestamp (UTC).
//	UpdatedAt      – last write timestamp (UTC).
type Event struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	TotalSeats     int       `json:"total_seats"`
	ConfirmedCount int       `json:"confirmed_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// AvailableSeats returns how many seats can still be admitted.
func (e Event) AvailableSeats() int {
	if n := e.TotalSeats - e.ConfirmedCount; n > 0 {
		return n
	}
	return 0
}
