package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/model"
)

type mockEventService struct {
	CreateEventFunc    func(ctx context.Context, name string, totalSeats int) (*model.Event, error)
	GetEventFunc       func(ctx context.Context, eventID int64) (*model.Event, error)
	ListEventsFunc     func(ctx context.Context) ([]model.Event, error)
	AvailableSeatsFunc func(ctx context.Context, eventID int64) (int, error)
}

func (m *mockEventService) CreateEvent(ctx context.Context, name string, totalSeats int) (*model.Event, error) {
	return m.CreateEventFunc(ctx, name, totalSeats)
}

func (m *mockEventService) GetEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	return m.GetEventFunc(ctx, eventID)
}

func (m *mockEventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	return m.ListEventsFunc(ctx)
}

func (m *mockEventService) AvailableSeats(ctx context.Context, eventID int64) (int, error) {
	return m.AvailableSeatsFunc(ctx, eventID)
}

type mockBookingService struct {
	ReserveFunc      func(ctx context.Context, eventID int64, userID string) (*model.Booking, error)
	CancelFunc       func(ctx context.Context, bookingID int64) (*model.Booking, error)
	CancelByPairFunc func(ctx context.Context, eventID int64, userID string) (*model.Booking, error)
	GetBookingFunc   func(ctx context.Context, bookingID int64) (*model.Booking, error)
	ListBookingsFunc func(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
}

func (m *mockBookingService) Reserve(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	return m.ReserveFunc(ctx, eventID, userID)
}

func (m *mockBookingService) Cancel(ctx context.Context, bookingID int64) (*model.Booking, error) {
	return m.CancelFunc(ctx, bookingID)
}

func (m *mockBookingService) CancelByPair(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	return m.CancelByPairFunc(ctx, eventID, userID)
}

func (m *mockBookingService) GetBooking(ctx context.Context, bookingID int64) (*model.Booking, error) {
	return m.GetBookingFunc(ctx, bookingID)
}

func (m *mockBookingService) ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	return m.ListBookingsFunc(ctx, filter)
}

// newTestEcho wires the handlers the same way the router does.
func newTestEcho(events *EventHandler, bookings *BookingHandler) *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = HTTPErrorHandler
	if events != nil {
		e.POST("/v1/events", events.CreateEvent)
		e.GET("/v1/events", events.ListEvents)
		e.GET("/v1/events/:id", events.GetEvent)
		e.GET("/v1/events/:id/available-seats", events.AvailableSeats)
	}
	if bookings != nil {
		e.POST("/v1/bookings/reserve", bookings.Reserve)
		e.GET("/v1/bookings", bookings.List)
		e.GET("/v1/bookings/:id", bookings.Get)
		e.DELETE("/v1/bookings/:id", bookings.Cancel)
		e.DELETE("/v1/bookings/event/:eventId/user/:userId", bookings.CancelByPair)
	}
	return e
}

func doRequest(t *testing.T, e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
