package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/event-seat-reservation/internal/model"
	"github.com/iliyamo/event-seat-reservation/internal/reservation"
)

// admitScript returns -1 for a missing event, 0 when it is full and 1
// after taking a seat.
var admitScript = redis.NewScript(`
	local total = redis.call('HGET', KEYS[1], 'total_seats')
	if not total then
		return -1
	end
	local confirmed = tonumber(redis.call('HGET', KEYS[1], 'confirmed_count') or '0')
	if confirmed >= tonumber(total) then
		return 0
	end
	redis.call('HINCRBY', KEYS[1], 'confirmed_count', 1)
	redis.call('HSET', KEYS[1], 'updated_at', ARGV[1])
	return 1
`)

// releaseScript returns -1 for a missing event, 0 when the count is
// already zero and 1 after giving a seat back.
var releaseScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -1
	end
	local confirmed = tonumber(redis.call('HGET', KEYS[1], 'confirmed_count') or '0')
	if confirmed <= 0 then
		return 0
	end
	redis.call('HINCRBY', KEYS[1], 'confirmed_count', -1)
	redis.call('HSET', KEYS[1], 'updated_at', ARGV[1])
	return 1
`)

// insertBookingScript writes the booking hash, its pair pointer and its
// index entry, or returns -1 / 0 for a missing event / taken pair.
var insertBookingScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -1
	end
	if redis.call('SET', KEYS[3], ARGV[1], 'NX') == false then
		return 0
	end
	redis.call('HSET', KEYS[2], 'id', ARGV[1], 'event_id', ARGV[2], 'user_id', ARGV[3], 'created_at', ARGV[4])
	redis.call('ZADD', KEYS[4], ARGV[1], ARGV[1])
	return 1
`)

// deleteBookingScript removes a booking and reports 1 only to the caller
// that actually deleted it.
var deleteBookingScript = redis.NewScript(`
	if redis.call('DEL', KEYS[1]) == 0 then
		return 0
	end
	if redis.call('GET', KEYS[2]) == ARGV[1] then
		redis.call('DEL', KEYS[2])
	end
	redis.call('ZREM', KEYS[3], ARGV[1])
	return 1
`)

// reserveScript takes a seat, claims the pair and writes the booking in
// one step. It returns -1 for a missing event, 0 when it is full, -2 when
// the pair is taken and 1 on success. Capacity is checked first.
var reserveScript = redis.NewScript(`
	local total = redis.call('HGET', KEYS[1], 'total_seats')
	if not total then
		return -1
	end
	local confirmed = tonumber(redis.call('HGET', KEYS[1], 'confirmed_count') or '0')
	if confirmed >= tonumber(total) then
		return 0
	end
	if redis.call('EXISTS', KEYS[2]) == 1 or redis.call('EXISTS', KEYS[3]) == 1 then
		return -2
	end
	redis.call('HINCRBY', KEYS[1], 'confirmed_count', 1)
	redis.call('HSET', KEYS[1], 'updated_at', ARGV[5])
	redis.call('SET', KEYS[2], 1)
	redis.call('SET', KEYS[3], ARGV[1])
	redis.call('HSET', KEYS[4], 'id', ARGV[1], 'event_id', ARGV[2], 'user_id', ARGV[3], 'created_at', ARGV[4])
	redis.call('ZADD', KEYS[5], ARGV[1], ARGV[1])
	return 1
`)

// cancelScript deletes a booking, its pair and claim and gives its seat
// back. It returns 0 when the booking is gone, -1 without changing
// anything when the count is already zero and 1 on success.
var cancelScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return 0
	end
	if redis.call('EXISTS', KEYS[4]) == 1 then
		local confirmed = tonumber(redis.call('HGET', KEYS[4], 'confirmed_count') or '0')
		if confirmed <= 0 then
			return -1
		end
		redis.call('HINCRBY', KEYS[4], 'confirmed_count', -1)
		redis.call('HSET', KEYS[4], 'updated_at', ARGV[2])
	end
	redis.call('DEL', KEYS[1])
	if redis.call('GET', KEYS[2]) == ARGV[1] then
		redis.call('DEL', KEYS[2])
	end
	redis.call('DEL', KEYS[3])
	redis.call('ZREM', KEYS[5], ARGV[1])
	return 1
`)

// RedisStore keeps events in hashes and enforces capacity with Lua
// scripts. Redis has no rollback across scripts, so a whole reservation
// or cancellation runs as a single script instead.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore returns a store using rdb. Every key starts with prefix.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix != "" && !strings.HasSuffix(prefix, ":") {
		prefix += ":"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: func() time.Time { return time.Now().UTC() }}
}

func (s *RedisStore) eventKey(id int64) string   { return s.prefix + "event:" + strconv.FormatInt(id, 10) }
func (s *RedisStore) bookingKey(id int64) string { return s.prefix + "booking:" + strconv.FormatInt(id, 10) }
func (s *RedisStore) eventsKey() string          { return s.prefix + "events" }
func (s *RedisStore) bookingsKey() string        { return s.prefix + "bookings" }
func (s *RedisStore) eventSeqKey() string        { return s.prefix + "seq:event" }
func (s *RedisStore) bookingSeqKey() string      { return s.prefix + "seq:booking" }

func (s *RedisStore) claimKey(eventID int64, userID string) string {
	return s.prefix + "claim:" + strconv.FormatInt(eventID, 10) + ":" + userID
}

func (s *RedisStore) pairKey(eventID int64, userID string) string {
	return s.prefix + "pair:" + strconv.FormatInt(eventID, 10) + ":" + userID
}

func (s *RedisStore) stamp() string { return s.now().Format(time.RFC3339Nano) }

func (s *RedisStore) CreateEvent(ctx context.Context, name string, totalSeats int) (*model.Event, error) {
	if err := validateEvent(name, totalSeats); err != nil {
		return nil, err
	}
	id, err := s.rdb.Incr(ctx, s.eventSeqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("next event id: %w", err)
	}
	now := s.now()
	ev := model.Event{
		ID:         id,
		Name:       strings.TrimSpace(name),
		TotalSeats: totalSeats,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.eventKey(id),
			"id", id,
			"name", ev.Name,
			"total_seats", ev.TotalSeats,
			"confirmed_count", 0,
			"created_at", now.Format(time.RFC3339Nano),
			"updated_at", now.Format(time.RFC3339Nano),
		)
		p.ZAdd(ctx, s.eventsKey(), redis.Z{Score: float64(id), Member: id})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store event %d: %w", id, err)
	}
	return &ev, nil
}

func (s *RedisStore) GetEvent(ctx context.Context, eventID int64) (*model.Event, error) {
	fields, err := s.rdb.HGetAll(ctx, s.eventKey(eventID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", eventID, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	ev, err := eventFromHash(eventID, fields)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (s *RedisStore) ListEvents(ctx context.Context) ([]model.Event, error) {
	ids, err := s.indexedIDs(ctx, s.eventsKey())
	if err != nil {
		return nil, err
	}
	hashes, err := s.loadHashes(ctx, ids, s.eventKey)
	if err != nil {
		return nil, err
	}
	out := make([]model.Event, 0, len(ids))
	for i, fields := range hashes {
		if len(fields) == 0 {
			continue
		}
		ev, err := eventFromHash(ids[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *RedisStore) AtomicAdmit(ctx context.Context, eventID int64) (bool, error) {
	res, err := admitScript.Run(ctx, s.rdb, []string{s.eventKey(eventID)}, s.stamp()).Int()
	if err != nil {
		return false, fmt.Errorf("admit event %d: %w", eventID, err)
	}
	switch res {
	case -1:
		return false, ErrNotFound
	case 0:
		return false, nil
	}
	return true, nil
}

func (s *RedisStore) AtomicRelease(ctx context.Context, eventID int64) error {
	res, err := releaseScript.Run(ctx, s.rdb, []string{s.eventKey(eventID)}, s.stamp()).Int()
	if err != nil {
		return fmt.Errorf("release event %d: %w", eventID, err)
	}
	switch res {
	case -1:
		return ErrNotFound
	case 0:
		return reservation.ErrLedgerUnderflow
	}
	return nil
}

func (s *RedisStore) AtomicRegisterPair(ctx context.Context, eventID int64, userID string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, s.claimKey(eventID, userID), 1, 0).Result()
	if err != nil {
		return false, fmt.Errorf("register pair: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) AtomicUnregisterPair(ctx context.Context, eventID int64, userID string) error {
	if err := s.rdb.Del(ctx, s.claimKey(eventID, userID)).Err(); err != nil {
		return fmt.Errorf("unregister pair: %w", err)
	}
	return nil
}

func (s *RedisStore) InsertBooking(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	id, err := s.rdb.Incr(ctx, s.bookingSeqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("next booking id: %w", err)
	}
	b := model.Booking{ID: id, EventID: eventID, UserID: userID, CreatedAt: s.now()}
	keys := []string{s.eventKey(eventID), s.bookingKey(id), s.pairKey(eventID, userID), s.bookingsKey()}
	res, err := insertBookingScript.Run(ctx, s.rdb, keys,
		id, eventID, userID, b.CreatedAt.Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	switch res {
	case -1:
		return nil, ErrNotFound
	case 0:
		return nil, ErrConflict
	}
	return &b, nil
}

func (s *RedisStore) FindBooking(ctx context.Context, bookingID int64) (*model.Booking, error) {
	fields, err := s.rdb.HGetAll(ctx, s.bookingKey(bookingID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get booking %d: %w", bookingID, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	b, err := bookingFromHash(bookingID, fields)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *RedisStore) FindBookingByPair(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	id, err := s.rdb.Get(ctx, s.pairKey(eventID, userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get booking pair: %w", err)
	}
	return s.FindBooking(ctx, id)
}

func (s *RedisStore) DeleteBooking(ctx context.Context, bookingID int64) (bool, error) {
	b, err := s.FindBooking(ctx, bookingID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	keys := []string{s.bookingKey(bookingID), s.pairKey(b.EventID, b.UserID), s.bookingsKey()}
	res, err := deleteBookingScript.Run(ctx, s.rdb, keys, strconv.FormatInt(bookingID, 10)).Int()
	if err != nil {
		return false, fmt.Errorf("delete booking %d: %w", bookingID, err)
	}
	return res == 1, nil
}

// AtomicReserve runs a whole reservation in one script. The booking id
// is drawn before the script, so a rejected request leaves a gap.
func (s *RedisStore) AtomicReserve(ctx context.Context, eventID int64, userID string) (*model.Booking, error) {
	id, err := s.rdb.Incr(ctx, s.bookingSeqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("next booking id: %w", err)
	}
	b := model.Booking{ID: id, EventID: eventID, UserID: userID, CreatedAt: s.now()}
	keys := []string{
		s.eventKey(eventID), s.claimKey(eventID, userID), s.pairKey(eventID, userID),
		s.bookingKey(id), s.bookingsKey(),
	}
	created := b.CreatedAt.Format(time.RFC3339Nano)
	res, err := reserveScript.Run(ctx, s.rdb, keys, id, eventID, userID, created, created).Int()
	if err != nil {
		return nil, fmt.Errorf("reserve event %d: %w", eventID, err)
	}
	switch res {
	case -1:
		return nil, ErrNotFound
	case 0:
		return nil, reservation.ErrCapacityExhausted
	case -2:
		return nil, ErrConflict
	}
	return &b, nil
}

// AtomicCancel runs a whole cancellation in one script.
func (s *RedisStore) AtomicCancel(ctx context.Context, bookingID int64) (*model.Booking, error) {
	b, err := s.FindBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	keys := []string{
		s.bookingKey(bookingID), s.pairKey(b.EventID, b.UserID), s.claimKey(b.EventID, b.UserID),
		s.eventKey(b.EventID), s.bookingsKey(),
	}
	res, err := cancelScript.Run(ctx, s.rdb, keys, strconv.FormatInt(bookingID, 10), s.stamp()).Int()
	if err != nil {
		return nil, fmt.Errorf("cancel booking %d: %w", bookingID, err)
	}
	switch res {
	case 0:
		return nil, ErrNotFound
	case -1:
		return nil, reservation.ErrLedgerUnderflow
	}
	return b, nil
}

func (s *RedisStore) ListBookings(ctx context.Context, filter model.BookingFilter) ([]model.Booking, error) {
	ids, err := s.indexedIDs(ctx, s.bookingsKey())
	if err != nil {
		return nil, err
	}
	hashes, err := s.loadHashes(ctx, ids, s.bookingKey)
	if err != nil {
		return nil, err
	}
	out := make([]model.Booking, 0)
	for i, fields := range hashes {
		if len(fields) == 0 {
			continue
		}
		b, err := bookingFromHash(ids[i], fields)
		if err != nil {
			return nil, err
		}
		if filter.Matches(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

// indexedIDs reads a sorted-set index in ascending id order.
func (s *RedisStore) indexedIDs(ctx context.Context, key string) ([]int64, error) {
	members, err := s.rdb.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", key, err)
	}
	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad member %q in %s: %w", m, key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// loadHashes fetches one hash per id in a single round trip.
func (s *RedisStore) loadHashes(ctx context.Context, ids []int64, key func(int64) string) ([]map[string]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, key(id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load hashes: %w", err)
	}
	out := make([]map[string]string, len(cmds))
	for i, cmd := range cmds {
		out[i] = cmd.Val()
	}
	return out, nil
}

func eventFromHash(id int64, f map[string]string) (model.Event, error) {
	ev := model.Event{ID: id, Name: f["name"]}
	var err error
	if ev.TotalSeats, err = strconv.Atoi(f["total_seats"]); err != nil {
		return ev, fmt.Errorf("event %d total_seats: %w", id, err)
	}
	if ev.ConfirmedCount, err = strconv.Atoi(f["confirmed_count"]); err != nil {
		return ev, fmt.Errorf("event %d confirmed_count: %w", id, err)
	}
	ev.CreatedAt, _ = time.Parse(time.RFC3339Nano, f["created_at"])
	ev.UpdatedAt, _ = time.Parse(time.RFC3339Nano, f["updated_at"])
	return ev, nil
}

func bookingFromHash(id int64, f map[string]string) (model.Booking, error) {
	b := model.Booking{ID: id, UserID: f["user_id"]}
	var err error
	if b.EventID, err = strconv.ParseInt(f["event_id"], 10, 64); err != nil {
		return b, fmt.Errorf("booking %d event_id: %w", id, err)
	}
	b.CreatedAt, _ = time.Parse(time.RFC3339Nano, f["created_at"])
	return b, nil
}
