package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/service"
)

// EventHandler serves the event catalog.
type EventHandler struct {
	svc service.EventService
}

func NewEventHandler(svc service.EventService) *EventHandler {
	if svc == nil {
		panic("nil service passed to NewEventHandler")
	}
	return &EventHandler{svc: svc}
}

// CreateEvent handles POST /v1/events.
func (h *EventHandler) CreateEvent(c echo.Context) error {
	var req CreateEventRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ev, err := h.svc.CreateEvent(c.Request().Context(), req.Name, req.TotalSeats)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, toEventResponse(*ev))
}

// ListEvents handles GET /v1/events.
func (h *EventHandler) ListEvents(c echo.Context) error {
	events, err := h.svc.ListEvents(c.Request().Context())
	if err != nil {
		return err
	}
	out := make([]EventResponse, len(events))
	for i, ev := range events {
		out[i] = toEventResponse(ev)
	}
	return respond(c, http.StatusOK, out)
}

// GetEvent handles GET /v1/events/:id.
func (h *EventHandler) GetEvent(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ev, err := h.svc.GetEvent(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, toEventResponse(*ev))
}

// AvailableSeats handles GET /v1/events/:id/available-seats.
func (h *EventHandler) AvailableSeats(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	n, err := h.svc.AvailableSeats(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, AvailableSeatsResponse{EventID: id, AvailableSeats: n})
}
