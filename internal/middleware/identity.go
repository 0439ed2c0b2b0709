package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

// HeaderUserID lets clients identify themselves for per-user rate limits.
// It is a keying hint only; the API performs no authentication.
const HeaderUserID = "X-User-ID"

// userID returns the caller's id or "anon" when none was sent.
func userID(c echo.Context) string {
	if v := strings.TrimSpace(c.Request().Header.Get(HeaderUserID)); v != "" {
		return v
	}
	return "anon"
}
