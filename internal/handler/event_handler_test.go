package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/reservation"
)

type eventEnvelope struct {
	Success bool          `json:"success"`
	Data    EventResponse `json:"data"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Data    ErrorBody `json:"data"`
}

func decodeError(t *testing.T, body []byte) ErrorBody {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(body, &env))
	assert.False(t, env.Success)
	return env.Data
}

func TestCreateEvent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockEventService{
		CreateEventFunc: func(_ context.Context, name string, totalSeats int) (*model.Event, error) {
			assert.Equal(t, "Concert", name)
			assert.Equal(t, 100, totalSeats)
			return &model.Event{ID: 7, Name: name, TotalSeats: totalSeats, CreatedAt: now, UpdatedAt: now}, nil
		},
	}
	e := newTestEcho(NewEventHandler(svc), nil)

	rec := doRequest(t, e, http.MethodPost, "/v1/events", `{"name":"Concert","total_seats":100}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var env eventEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, int64(7), env.Data.ID)
	assert.Equal(t, 100, env.Data.AvailableSeats)
	assert.Equal(t, 0, env.Data.ConfirmedCount)
}

func TestCreateEvent_Validation(t *testing.T) {
	svc := &mockEventService{
		CreateEventFunc: func(context.Context, string, int) (*model.Event, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	e := newTestEcho(NewEventHandler(svc), nil)

	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"missing name", `{"total_seats":10}`, "name is required"},
		{"zero seats", `{"name":"x","total_seats":0}`, "total_seats is required"},
		{"negative seats", `{"name":"x","total_seats":-3}`, "total_seats must be greater than 0"},
		{"malformed json", `{"name":`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, e, http.MethodPost, "/v1/events", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeError(t, rec.Body.Bytes())
			assert.Equal(t, "validation_error", body.Code)
			assert.Contains(t, body.Message, tt.msg)
			assert.Equal(t, "/v1/events", body.Path)
		})
	}
}

func TestCreateEvent_StoreRejectsEvent(t *testing.T) {
	svc := &mockEventService{
		CreateEventFunc: func(context.Context, string, int) (*model.Event, error) {
			return nil, repository.ErrInvalidEvent
		},
	}
	e := newTestEcho(NewEventHandler(svc), nil)

	rec := doRequest(t, e, http.MethodPost, "/v1/events", `{"name":"  x ","total_seats":1}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec.Body.Bytes()).Code)
}

func TestListEvents(t *testing.T) {
	svc := &mockEventService{
		ListEventsFunc: func(context.Context) ([]model.Event, error) {
			return []model.Event{
				{ID: 1, Name: "a", TotalSeats: 2, ConfirmedCount: 2},
				{ID: 2, Name: "b", TotalSeats: 5, ConfirmedCount: 1},
			}, nil
		},
	}
	e := newTestEcho(NewEventHandler(svc), nil)

	rec := doRequest(t, e, http.MethodGet, "/v1/events", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Data []EventResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data, 2)
	assert.Equal(t, 0, env.Data[0].AvailableSeats)
	assert.Equal(t, 4, env.Data[1].AvailableSeats)
}

func TestListEvents_EmptyIsArray(t *testing.T) {
	svc := &mockEventService{
		ListEventsFunc: func(context.Context) ([]model.Event, error) { return nil, nil },
	}
	e := newTestEcho(NewEventHandler(svc), nil)

	rec := doRequest(t, e, http.MethodGet, "/v1/events", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, rec.Body.String())
}

func TestGetEvent(t *testing.T) {
	svc := &mockEventService{
		GetEventFunc: func(_ context.Context, id int64) (*model.Event, error) {
			if id == 3 {
				return &model.Event{ID: 3, Name: "c", TotalSeats: 10, ConfirmedCount: 4}, nil
			}
			return nil, reservation.ErrEventNotFound
		},
	}
	e := newTestEcho(NewEventHandler(svc), nil)

	t.Run("found", func(t *testing.T) {
		rec := doRequest(t, e, http.MethodGet, "/v1/events/3", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var env eventEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.Equal(t, 6, env.Data.AvailableSeats)
	})

	t.Run("not found", func(t *testing.T) {
		rec := doRequest(t, e, http.MethodGet, "/v1/events/99", "")
		require.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "event_not_found", decodeError(t, rec.Body.Bytes()).Code)
	})

	t.Run("bad id", func(t *testing.T) {
		for _, id := range []string{"abc", "0", "-1"} {
			rec := doRequest(t, e, http.MethodGet, "/v1/events/"+id, "")
			require.Equal(t, http.StatusBadRequest, rec.Code, id)
			assert.Equal(t, "invalid id", decodeError(t, rec.Body.Bytes()).Message)
		}
	})
}

func TestAvailableSeats(t *testing.T) {
	svc := &mockEventService{
		AvailableSeatsFunc: func(_ context.Context, id int64) (int, error) {
			assert.Equal(t, int64(5), id)
			return 12, nil
		},
	}
	e := newTestEcho(NewEventHandler(svc), nil)

	rec := doRequest(t, e, http.MethodGet, "/v1/events/5/available-seats", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"event_id":5,"available_seats":12}}`, rec.Body.String())
}

func TestEventHandler_StorageFailureHidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.3:3306: connection refused")
	svc := &mockEventService{
		ListEventsFunc: func(context.Context) ([]model.Event, error) {
			return nil, errors.Join(reservation.ErrStorageFailure, cause)
		},
	}
	e := newTestEcho(NewEventHandler(svc), nil)

	rec := doRequest(t, e, http.MethodGet, "/v1/events", "")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeError(t, rec.Body.Bytes())
	assert.Equal(t, "storage_failure", body.Code)
	assert.NotContains(t, body.Message, "10.0.0.3")
}

func TestNewEventHandler_PanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewEventHandler(nil) })
}
