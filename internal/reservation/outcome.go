package reservation

import (
	"errors"
	"net/http"
)

// Errors returned by the Engine. Callers classify them with Resolve or
// errors.Is; every other failure is wrapped in ErrStorageFailure.
var (
	ErrEventNotFound    = errors.New("event not found")
	ErrNoSeats          = errors.New("no seats available for this event")
	ErrDuplicateBooking = errors.New("user already holds a booking for this event")
	ErrBookingNotFound  = errors.New("booking not found")
	ErrStorageFailure   = errors.New("storage failure")
)

// Outcome is the closed set of results the engine reports.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeEventNotFound
	OutcomeNoSeats
	OutcomeDuplicateBooking
	OutcomeBookingNotFound
	// OutcomeStorageFailure is transient; the whole request may be
	// retried because an aborted reservation leaves no partial state.
	OutcomeStorageFailure
)

// Resolve maps an engine error to its outcome. A nil error is OutcomeOK
// and anything unrecognised is OutcomeStorageFailure.
func Resolve(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrEventNotFound):
		return OutcomeEventNotFound
	case errors.Is(err, ErrNoSeats):
		return OutcomeNoSeats
	case errors.Is(err, ErrDuplicateBooking):
		return OutcomeDuplicateBooking
	case errors.Is(err, ErrBookingNotFound):
		return OutcomeBookingNotFound
	default:
		return OutcomeStorageFailure
	}
}

// Code is the stable machine-readable name of the outcome.
func (o Outcome) Code() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeEventNotFound:
		return "event_not_found"
	case OutcomeNoSeats:
		return "no_seats"
	case OutcomeDuplicateBooking:
		return "duplicate_booking"
	case OutcomeBookingNotFound:
		return "booking_not_found"
	default:
		return "storage_failure"
	}
}

// HTTPStatus is the status code the request layer reports for o.
func (o Outcome) HTTPStatus() int {
	switch o {
	case OutcomeOK:
		return http.StatusOK
	case OutcomeEventNotFound, OutcomeBookingNotFound:
		return http.StatusNotFound
	case OutcomeNoSeats, OutcomeDuplicateBooking:
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

// Retryable reports whether repeating the same request may succeed.
func (o Outcome) Retryable() bool { return o == OutcomeStorageFailure }

func (o Outcome) String() string { return o.Code() }
