package handler

import (
	"time"

	"github.com/labstack/echo/v4"
)

// envelope wraps every JSON body the API returns.
type envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorBody is the data of an unsuccessful response.
type ErrorBody struct {
	StatusCode int       `json:"status_code"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Path       string    `json:"path"`
	Timestamp  time.Time `json:"timestamp"`
}

func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, envelope{Success: true, Data: data})
}
