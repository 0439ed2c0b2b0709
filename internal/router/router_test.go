package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-reservation/internal/config"
	"github.com/iliyamo/event-seat-reservation/internal/handler"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/service"
)

func newServer() *echo.Echo {
	store := repository.NewMemoryStore()
	e := echo.New()
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	RegisterRoutes(e, Deps{
		Events:   handler.NewEventHandler(service.NewEventService(store)),
		Bookings: handler.NewBookingHandler(service.NewBookingService(store, nil)),
	})
	return e
}

func call(t *testing.T, e *echo.Echo, method, target, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "data is not an object: %v", body)
	return d
}

func TestHealth(t *testing.T) {
	e := newServer()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestBookingFlow(t *testing.T) {
	e := newServer()

	code, body := call(t, e, http.MethodPost, "/v1/events", `{"name":"Gala","total_seats":1}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, float64(1), data(t, body)["id"])

	code, body = call(t, e, http.MethodPost, "/v1/bookings/reserve", `{"event_id":1,"user_id":"alice"}`)
	require.Equal(t, http.StatusCreated, code)
	bookingID := data(t, body)["id"].(float64)

	code, body = call(t, e, http.MethodPost, "/v1/bookings/reserve", `{"event_id":1,"user_id":"alice"}`)
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "no_seats", data(t, body)["code"])

	code, body = call(t, e, http.MethodGet, "/v1/events/1/available-seats", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(0), data(t, body)["available_seats"])

	code, _ = call(t, e, http.MethodDelete, "/v1/bookings/event/1/user/alice", "")
	require.Equal(t, http.StatusOK, code)

	code, body = call(t, e, http.MethodGet, "/v1/bookings/"+jsonInt(bookingID), "")
	require.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "booking_not_found", data(t, body)["code"])

	code, body = call(t, e, http.MethodGet, "/v1/events/1", "")
	require.Equal(t, http.StatusOK, code)
	ev := data(t, body)
	assert.Equal(t, float64(0), ev["confirmed_count"])
	assert.Equal(t, float64(1), ev["available_seats"])
}

func TestDuplicateWhileSeatsRemain(t *testing.T) {
	e := newServer()

	code, _ := call(t, e, http.MethodPost, "/v1/events", `{"name":"Expo","total_seats":5}`)
	require.Equal(t, http.StatusCreated, code)
	code, _ = call(t, e, http.MethodPost, "/v1/bookings/reserve", `{"event_id":1,"user_id":"bob"}`)
	require.Equal(t, http.StatusCreated, code)

	code, body := call(t, e, http.MethodPost, "/v1/bookings/reserve", `{"event_id":1,"user_id":"bob"}`)
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "duplicate_booking", data(t, body)["code"])

	code, body = call(t, e, http.MethodGet, "/v1/events/1/available-seats", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(4), data(t, body)["available_seats"])
}

func TestUnknownEvent(t *testing.T) {
	e := newServer()

	code, body := call(t, e, http.MethodPost, "/v1/bookings/reserve", `{"event_id":77,"user_id":"x"}`)
	require.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "event_not_found", data(t, body)["code"])
}

func TestBookingWritesPurgeCatalogCache(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	defer rdb.Close()
	store := repository.NewMemoryStore()
	e := echo.New()
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	RegisterRoutes(e, Deps{
		Events:   handler.NewEventHandler(service.NewEventService(store)),
		Bookings: handler.NewBookingHandler(service.NewBookingService(store, nil)),
		Redis:    rdb,
		Cache:    config.CacheConfig{Enabled: true, Prefix: "cache", KeyStrategy: "route_query"},
	})

	cached := "cache:GET:/v1/events/1"
	for i := 0; i < 4; i++ {
		mock.ExpectSMembers("cache:index").SetVal([]string{cached})
		mock.ExpectDel(cached, "cache:index").SetVal(2)
	}

	code, _ := call(t, e, http.MethodPost, "/v1/events", `{"name":"Gala","total_seats":2}`)
	require.Equal(t, http.StatusCreated, code)
	code, body := call(t, e, http.MethodPost, "/v1/bookings/reserve", `{"event_id":1,"user_id":"alice"}`)
	require.Equal(t, http.StatusCreated, code)
	bookingID := data(t, body)["id"].(float64)
	code, _ = call(t, e, http.MethodPost, "/v1/bookings/reserve", `{"event_id":1,"user_id":"bob"}`)
	require.Equal(t, http.StatusCreated, code)

	code, _ = call(t, e, http.MethodDelete, "/v1/bookings/"+jsonInt(bookingID), "")
	require.Equal(t, http.StatusOK, code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func jsonInt(f float64) string {
	b, _ := json.Marshal(int64(f))
	return string(b)
}
