package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/reservation"
)

const storageFailureMessage = "storage temporarily unavailable, please retry"

// HTTPErrorHandler renders every error as the failure envelope. Engine
// errors keep their outcome code; echo errors get a code derived from
// their status.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	body := errorBody(err)
	body.Path = c.Request().URL.Path
	body.Timestamp = time.Now().UTC()

	if body.StatusCode >= http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, body.Path, err)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(body.StatusCode)
	} else {
		werr = c.JSON(body.StatusCode, envelope{Success: false, Data: body})
	}
	if werr != nil {
		c.Logger().Error(werr)
	}
}

func errorBody(err error) ErrorBody {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return ErrorBody{StatusCode: he.Code, Code: codeForStatus(he.Code), Message: msg}
	}
	if errors.Is(err, repository.ErrInvalidEvent) {
		return ErrorBody{StatusCode: http.StatusBadRequest, Code: "validation_error", Message: err.Error()}
	}

	switch o := reservation.Resolve(err); o {
	case reservation.OutcomeStorageFailure:
		if !errors.Is(err, reservation.ErrStorageFailure) {
			return ErrorBody{StatusCode: http.StatusInternalServerError, Code: "internal_error", Message: "internal server error"}
		}
		return ErrorBody{StatusCode: o.HTTPStatus(), Code: o.Code(), Message: storageFailureMessage}
	default:
		return ErrorBody{StatusCode: o.HTTPStatus(), Code: o.Code(), Message: err.Error()}
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation_error"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "payload_too_large"
	case http.StatusUnsupportedMediaType:
		return "unsupported_media_type"
	case http.StatusTooManyRequests:
		return "too_many_requests"
	case http.StatusServiceUnavailable:
		return "storage_failure"
	}
	if status >= http.StatusInternalServerError {
		return "internal_error"
	}
	return "request_error"
}
