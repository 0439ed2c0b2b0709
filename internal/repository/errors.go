// Package repository holds the storage backends of the service. Each
// backend implements the reservation engine's primitives and the catalog
// queries the HTTP layer needs. The sentinels below are shared by every
// backend so that higher layers can tell failure scenarios apart without
// knowing which one is configured.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/event-seat-reservation/internal/reservation"
)

// ErrNotFound is returned when an event or booking does not exist.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = reservation.ErrNotFound

// ErrConflict is returned when a write would create a second live
// booking for the same event and user. Handlers translate it into an
// HTTP 409 response.
var ErrConflict = reservation.ErrConflict

// ErrInvalidEvent is returned by CreateEvent for a blank name or a
// non-positive seat count.
var ErrInvalidEvent = errors.New("invalid event")

func validateEvent(name string, totalSeats int) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidEvent)
	}
	if totalSeats < 1 {
		return fmt.Errorf("%w: total_seats must be at least 1", ErrInvalidEvent)
	}
	return nil
}
