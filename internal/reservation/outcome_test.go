package reservation_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/event-seat-reservation/internal/reservation"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		want   reservation.Outcome
		code   string
		status int
	}{
		{"nil", nil, reservation.OutcomeOK, "ok", http.StatusOK},
		{"event not found", reservation.ErrEventNotFound, reservation.OutcomeEventNotFound, "event_not_found", http.StatusNotFound},
		{"no seats", reservation.ErrNoSeats, reservation.OutcomeNoSeats, "no_seats", http.StatusConflict},
		{"duplicate", reservation.ErrDuplicateBooking, reservation.OutcomeDuplicateBooking, "duplicate_booking", http.StatusConflict},
		{"booking not found", reservation.ErrBookingNotFound, reservation.OutcomeBookingNotFound, "booking_not_found", http.StatusNotFound},
		{"wrapped sentinel", fmt.Errorf("reserve: %w", reservation.ErrNoSeats), reservation.OutcomeNoSeats, "no_seats", http.StatusConflict},
		{"storage failure", fmt.Errorf("%w: boom", reservation.ErrStorageFailure), reservation.OutcomeStorageFailure, "storage_failure", http.StatusServiceUnavailable},
		{"unknown", errors.New("something else"), reservation.OutcomeStorageFailure, "storage_failure", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reservation.Resolve(tt.err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.code, got.Code())
			assert.Equal(t, tt.status, got.HTTPStatus())
		})
	}
}

func TestOutcome_Retryable(t *testing.T) {
	assert.True(t, reservation.OutcomeStorageFailure.Retryable())
	assert.False(t, reservation.OutcomeNoSeats.Retryable())
	assert.False(t, reservation.OutcomeDuplicateBooking.Retryable())
}
