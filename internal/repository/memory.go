package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/reservation"
)

// pairKey addresses the uniqueness key space.
type pairKey struct {
	eventID int64
	userID  string
}

// eventSlot is one entry of the event arena. Its mutex is the
// serialisation point for the event's confirmed count.
type eventSlot struct {
	mu    sync.Mutex
	event model.Event
}

// MemoryStore keeps events, claims and bookings in process memory. Each
// primitive takes exactly one lock, so every primitive is atomic but no
// two of them compose; the engine compensates instead.
type MemoryStore struct {
	eventsMu    sync.RWMutex // guards events and lastEventID, not slot contents
	events      map[int64]*eventSlot
	lastEventID int64

	claimsMu sync.Mutex
	claims   map[pairKey]struct{}

	bookingsMu    sync.RWMutex
	bookings      map[int64]model.Booking
	byPair        map[pairKey]int64
	lastBookingID int64

	now func() time.Time
}

// NewMemoryStore returns an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:   make(map[int64]*eventSlot),
		claims:   make(map[pairKey]struct{}),
		bookings: make(map[int64]model.Booking),
		byPair:   make(map[pairKey]int64),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) slot(eventID int64) (*eventSlot, bool) {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()
	sl, ok := s.events[eventID]
	return sl, ok
}

func (s *MemoryStore) CreateEvent(ctx context.Context, name string, totalSeats int) (*model.Event, error) {
	if err := validateEvent(name, totalSeats); err != nil {
		return nil, err
	}
	now := s.now()
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()
	s.lastEventID++
	ev := model.Event{
		ID:         s.lastEventID,
		Name:       strings.TrimSpace(name),
		TotalSeats: totalSeats,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.events[ev.ID] = &eventSlot{event: ev}
	return &ev, nil
}

func (s *MemoryStore) GetEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	sl, ok := s.slot(eventID)
	if !ok {
		return nil, ErrNotFound
	}
	sl.mu.Lock()
	ev := sl.event
	sl.mu.Unlock()
	return &ev, nil
}

func (s *MemoryStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	s.eventsMu.RLock()
	slots := make([]*eventSlot, 0, len(s.events))
	for _, sl := range s.events {
		slots = append(slots, sl)
	}
	s.eventsMu.RUnlock()

	out := make([]model.Event, 0, len(slots))
	for _, sl := range slots {
		sl.mu.Lock()
		out = append(out, sl.event)
		sl.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) AtomicAdmit(ctx context.Context, eventID int64) (bool, error) {
	sl, ok := s.slot(eventID)
	if !ok {
		return false, ErrNotFound
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.event.ConfirmedCount >= sl.event.TotalSeats {
		return false, nil
	}
	sl.event.ConfirmedCount++
	sl.event.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) AtomicRelease(ctx context.Context, eventID int64) error {
	sl, ok := s.slot(eventID)
	if !ok {
		return ErrNotFound
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	if sl.event.ConfirmedCount == 0 {
		return reservation.ErrLedgerUnderflow
	}
	sl.event.ConfirmedCount--
	sl.event.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) AtomicRegisterPair(ctx context.Context, eventID int64, userID string) (bool, error) {
	k := pairKey{eventID, userID}
	s.claimsMu.Lock()
	defer s.claimsMu.Unlock()
	if _, taken := s.claims[k]; taken {
		return false, nil
	}
	s.claims[k] = struct{}{}
	return true, nil
}

func (s *MemoryStore) AtomicUnregisterPair(ctx context.Context, eventID int64, userID string) error {
	s.claimsMu.Lock()
	delete(s.claims, pairKey{eventID, userID})
	s.claimsMu.Unlock()
	return nil
}

func (s *MemoryStore) InsertBooking(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	if _, ok := s.slot(eventID); !ok {
		return nil, ErrNotFound
	}
	k := pairKey{eventID, userID}
	s.bookingsMu.Lock()
	defer s.bookingsMu.Unlock()
	if _, taken := s.byPair[k]; taken {
		return nil, ErrConflict
	}
	s.lastBookingID++
	b := model.Booking{
		ID:        s.lastBookingID,
		EventID:   eventID,
		UserID:    userID,
		CreatedAt: s.now(),
	}
	s.bookings[b.ID] = b
	s.byPair[k] = b.ID
	return &b, nil
}

func (s *MemoryStore) FindBooking(ctx context.Context, bookingID int64) (*model.Booking, error) {
	s.bookingsMu.RLock()
	defer s.bookingsMu.RUnlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (s *MemoryStore) FindBookingByPair(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	s.bookingsMu.RLock()
	defer s.bookingsMu.RUnlock()
	id, ok := s.byPair[pairKey{eventID, userID}]
	if !ok {
		return nil, ErrNotFound
	}
	b := s.bookings[id]
	return &b, nil
}

func (s *MemoryStore) DeleteBooking(ctx context.Context, bookingID int64) (bool, error) {
	s.bookingsMu.Lock()
	defer s.bookingsMu.Unlock()
	b, ok := s.bookings[bookingID]
	if !ok {
		return false, nil
	}
	delete(s.bookings, bookingID)
	delete(s.byPair, pairKey{b.EventID, b.UserID})
	return true, nil
}

// RestoreBooking puts b back under its original id. It returns
// ErrConflict when the id or the pair has been taken since.
func (s *MemoryStore) RestoreBooking(ctx context.Context, b model.Booking) error {
	k := pairKey{b.EventID, b.UserID}
	s.bookingsMu.Lock()
	defer s.bookingsMu.Unlock()
	if _, taken := s.bookings[b.ID]; taken {
		return ErrConflict
	}
	if _, taken := s.byPair[k]; taken {
		return ErrConflict
	}
	s.bookings[b.ID] = b
	s.byPair[k] = b.ID
	return nil
}

func (s *MemoryStore) ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	s.bookingsMu.RLock()
	out := make([]model.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		if filter.Matches(b) {
			out = append(out, b)
		}
	}
	s.bookingsMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
