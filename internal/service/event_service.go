package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/reservation"
)

type EventService interface {
	CreateEvent(ctx context.Context, name string, totalSeats int) (*model.Event, error)
	GetEvent(ctx context.Context, eventID int64) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	AvailableSeats(ctx context.Context, eventID int64) (int, error)
}

type eventService struct {
	store repository.Store
}

func NewEventService(store repository.Store) EventService {
	if store == nil {
		panic("nil store passed to NewEventService")
	}
	return &eventService{store: store}
}

func (s *eventService) CreateEvent(ctx context.Context, name string, totalSeats int) (*model.Event, error) {
	ev, err := s.store.CreateEvent(ctx, name, totalSeats)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidEvent) {
			return nil, err
		}
		return nil, storageError(err)
	}
	return ev, nil
}

func (s *eventService) GetEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, reservation.ErrEventNotFound
		}
		return nil, storageError(err)
	}
	return ev, nil
}

func (s *eventService) ListEvents(ctx context.Context) ([]model.Event, error) {
	events, err := s.store.ListEvents(ctx)
	if err != nil {
		return nil, storageError(err)
	}
	return events, nil
}

// AvailableSeats reads the live count; it is never served from cache.
func (s *eventService) AvailableSeats(ctx context.Context, eventID int64) (int, error) {
	ev, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return ev.AvailableSeats(), nil
}

func storageError(err error) error {
	return fmt.Errorf("%w: %w", reservation.ErrStorageFailure, err)
}
