// Package service sits between the HTTP handlers and the storage layer.
// Booking writes go through the reservation engine; confirmed and
// cancelled bookings are announced on the message broker.
package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/queue"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/reservation"
)

// Notifier publishes booking notifications. *queue.Publisher implements it.
type Notifier interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

const publishTimeout = 3 * time.Second

type BookingService interface {
	Reserve(ctx context.Context, eventID int64, userID string) (*model.Booking, error)
	Cancel(ctx context.Context, bookingID int64) (*model.Booking, error)
	CancelByPair(ctx context.Context, eventID int64, userID string) (*model.Booking, error)
	GetBooking(ctx context.Context, bookingID int64) (*model.Booking, error)
	ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error)
}

type bookingService struct {
	store    repository.Store
	engine   *reservation.Engine
	notifier Notifier
	now      func() time.Time
}

// NewBookingService returns a BookingService over store. notifier may be
// nil, in which case nothing is published.
func NewBookingService(store repository.Store, notifier Notifier) BookingService {
	if store == nil {
		panic("nil store passed to NewBookingService")
	}
	return &bookingService{
		store:    store,
		engine:   reservation.NewEngine(store),
		notifier: notifier,
		now:      time.Now,
	}
}

func (s *bookingService) Reserve(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	b, err := s.engine.Reserve(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, queue.TypeBookingConfirmed, *b)
	return b, nil
}

func (s *bookingService) Cancel(ctx context.Context, bookingID int64) (*model.Booking, error) {
	b, err := s.engine.Cancel(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, queue.TypeBookingCancelled, *b)
	return b, nil
}

func (s *bookingService) CancelByPair(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	b, err := s.engine.CancelByPair(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, queue.TypeBookingCancelled, *b)
	return b, nil
}

func (s *bookingService) GetBooking(ctx context.Context, bookingID int64) (*model.Booking, error) {
	b, err := s.store.FindBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, reservation.ErrBookingNotFound
		}
		return nil, storageError(err)
	}
	return b, nil
}

func (s *bookingService) ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	bookings, err := s.store.ListBookings(ctx, filter)
	if err != nil {
		return nil, storageError(err)
	}
	return bookings, nil
}

// notify never fails the request; the booking is already committed.
func (s *bookingService) notify(ctx context.Context, typ string, b model.Booking) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.notifier.Publish(ctx, queue.NewBookingEvent(typ, b, s.now())); err != nil {
		log.Printf("booking-service: %s for booking %d not published: %v", typ, b.ID, err)
	}
}
