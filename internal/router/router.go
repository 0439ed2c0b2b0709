// Package router wires handlers and edge middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-seat-reservation/internal/config"
	"github.com/iliyamo/event-seat-reservation/internal/handler"
	"github.com/iliyamo/event-seat-reservation/internal/middleware"
)

// Deps are the collaborators the routes need. Redis may be nil, which
// disables rate limiting and caching.
type Deps struct {
	Events    *handler.EventHandler
	Bookings  *handler.BookingHandler
	Redis     *redis.Client
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// RegisterRoutes maps the health check and the /v1 API.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	v1 := e.Group("/v1", middleware.NewTokenBucket(d.RateLimit, d.Redis))
	registerEvents(v1, d)
	registerBookings(v1, d)
}

// Catalog reads are cached. Every successful write that changes an
// event's confirmed count purges the cache so a cached event never shows
// a stale count for longer than the write takes. Available seats are
// always read live.
func registerEvents(g *echo.Group, d Deps) {
	cache := middleware.NewRedisCache(d.Cache, d.Redis)
	invalidate := middleware.NewCacheInvalidator(d.Cache, d.Redis)

	g.POST("/events", d.Events.CreateEvent, invalidate)
	g.GET("/events", d.Events.ListEvents, cache)
	g.GET("/events/:id", d.Events.GetEvent, cache)
	g.GET("/events/:id/available-seats", d.Events.AvailableSeats)
}

func registerBookings(g *echo.Group, d Deps) {
	invalidate := middleware.NewCacheInvalidator(d.Cache, d.Redis)

	g.POST("/bookings/reserve", d.Bookings.Reserve, invalidate)
	g.GET("/bookings", d.Bookings.List)
	g.GET("/bookings/:id", d.Bookings.Get)
	g.DELETE("/bookings/:id", d.Bookings.Cancel, invalidate)
	g.DELETE("/bookings/event/:eventId/user/:userId", d.Bookings.CancelByPair, invalidate)
}
