package handler

import "github.com/iliyamo/event-seat-reservation/internal/model"

type CreateEventRequest struct {
	Name       string `json:"name" validate:"required,max=255"`
	TotalSeats int    `json:"total_seats" validate:"required,gt=0"`
}

type ReserveRequest struct {
	EventID int64  `json:"event_id" validate:"required,gt=0"`
	UserID  string `json:"user_id" validate:"required,max=191"`
}

// EventResponse is an event plus its derived seat availability.
type EventResponse struct {
	model.Event
	AvailableSeats int `json:"available_seats"`
}

func toEventResponse(ev model.Event) EventResponse {
	return EventResponse{Event: ev, AvailableSeats: ev.AvailableSeats()}
}

type AvailableSeatsResponse struct {
	EventID        int64 `json:"event_id"`
	AvailableSeats int   `json:"available_seats"`
}
