package model

import "time"

// Booking records that a user holds one seat at an event. The pair
// (EventID, UserID) is unique across live bookings.
type Booking struct {
	ID        int64     `json:"id"`
	EventID   int64     `json:"event_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// BookingFilter narrows booking listings. Zero values mean "any".
type BookingFilter struct {
	EventID int64
	UserID  string
}

// Matches reports whether b satisfies the filter.
func (f BookingFilter) Matches(b Booking) bool {
	if f.EventID != 0 && b.EventID != f.EventID {
		return false
	}
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	return true
}
