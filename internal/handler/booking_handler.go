package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

// BookingHandler serves reservations and cancellations. Writes run on a
// context detached from the request so a client that disconnects after
// the commit point does not roll the booking back.
type BookingHandler struct {
	svc service.BookingService
}

func NewBookingHandler(svc service.BookingService) *BookingHandler {
	if svc == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{svc: svc}
}

// Reserve handles POST /v1/bookings/reserve.
func (h *BookingHandler) Reserve(c echo.Context) error {
	var req ReserveRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	ctx := context.WithoutCancel(c.Request().Context())
	b, err := h.svc.Reserve(ctx, req.EventID, userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, b)
}

// List handles GET /v1/bookings with optional user_id and event_id
// query filters.
func (h *BookingHandler) List(c echo.Context) error {
	var filter model.BookingFilter
	if raw := c.QueryParam("event_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid event_id")
		}
		filter.EventID = id
	}
	filter.UserID = strings.TrimSpace(c.QueryParam("user_id"))

	bookings, err := h.svc.ListBookings(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, bookings)
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	b, err := h.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, b)
}

// Cancel handles DELETE /v1/bookings/:id.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	b, err := h.svc.Cancel(context.WithoutCancel(c.Request().Context()), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, b)
}

// CancelByPair handles DELETE /v1/bookings/event/:eventId/user/:userId.
func (h *BookingHandler) CancelByPair(c echo.Context) error {
	eventID, err := pathID(c, "eventId")
	if err != nil {
		return err
	}
	userID := strings.TrimSpace(c.Param("userId"))
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid userId")
	}
	b, err := h.svc.CancelByPair(context.WithoutCancel(c.Request().Context()), eventID, userID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, b)
}
