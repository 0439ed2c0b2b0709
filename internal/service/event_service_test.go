package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/repository"
	"github.com/iliyamo/event-seat-reservation/internal/reservation"
)

// brokenStore fails every call that reaches the embedded nil store.
type brokenStore struct {
	repository.Store
	err error
}

func (s brokenStore) CreateEvent(context.Context, string, int) (*model.Event, error) {
	return nil, s.err
}

func (s brokenStore) GetEvent(context.Context, int64) (*model.Event, error) {
	return nil, s.err
}

func (s brokenStore) ListEvents(context.Context) ([]model.Event, error) {
	return nil, s.err
}

func TestEventService_CreateAndGet(t *testing.T) {
	svc := NewEventService(repository.NewMemoryStore())
	ctx := context.Background()

	ev, err := svc.CreateEvent(ctx, "  Opera  ", 40)
	require.NoError(t, err)
	assert.Equal(t, "Opera", ev.Name)
	assert.Equal(t, 0, ev.ConfirmedCount)

	got, err := svc.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.ID, got.ID)

	n, err := svc.AvailableSeats(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 40, n)

	list, err := svc.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEventService_AvailableSeatsTracksBookings(t *testing.T) {
	store := repository.NewMemoryStore()
	events := NewEventService(store)
	bookings := NewBookingService(store, nil)
	ctx := context.Background()

	ev, err := events.CreateEvent(ctx, "match", 2)
	require.NoError(t, err)
	b, err := bookings.Reserve(ctx, ev.ID, "u1")
	require.NoError(t, err)

	n, err := events.AvailableSeats(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = bookings.Cancel(ctx, b.ID)
	require.NoError(t, err)
	n, err = events.AvailableSeats(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEventService_Errors(t *testing.T) {
	ctx := context.Background()
	svc := NewEventService(repository.NewMemoryStore())

	_, err := svc.CreateEvent(ctx, "", 10)
	assert.ErrorIs(t, err, repository.ErrInvalidEvent)
	assert.NotErrorIs(t, err, reservation.ErrStorageFailure)

	_, err = svc.GetEvent(ctx, 42)
	assert.ErrorIs(t, err, reservation.ErrEventNotFound)

	_, err = svc.AvailableSeats(ctx, 42)
	assert.ErrorIs(t, err, reservation.ErrEventNotFound)
}

func TestEventService_StorageFailures(t *testing.T) {
	cause := errors.New("connection reset")
	svc := NewEventService(brokenStore{err: cause})
	ctx := context.Background()

	_, err := svc.CreateEvent(ctx, "x", 1)
	assert.ErrorIs(t, err, reservation.ErrStorageFailure)
	assert.ErrorIs(t, err, cause)

	_, err = svc.GetEvent(ctx, 1)
	assert.ErrorIs(t, err, reservation.ErrStorageFailure)

	_, err = svc.ListEvents(ctx)
	assert.Equal(t, reservation.OutcomeStorageFailure, reservation.Resolve(err))
}
