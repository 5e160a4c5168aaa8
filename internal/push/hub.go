package push

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caredesk/clinic-booking/internal/metrics"
	redisclient "github.com/caredesk/clinic-booking/internal/redis"
	"github.com/caredesk/clinic-booking/internal/schedule"
)

var (
	ErrNotInRoom   = errors.New("session has not joined this room")
	ErrSlotUnknown = errors.New("slot is not on this day's schedule")
)

type roomKey struct {
	DoctorID uuid.UUID
	Date     string
}

type member struct {
	session  string
	send     func(ServerMessage)
	heldSlot string // at most one advisory lock per room member
}

type room struct {
	members map[string]*member
	unsub   func()
	slots   map[string]struct{} // valid start times for the day
}

// Hub tracks which connections sit in which doctor+date room, arbitrates
// their advisory slot locks through redis, and relays room events arriving
// over the bus. It also implements the appointment service's publisher so
// confirmed bookings surface in rooms immediately.
type Hub struct {
	locker    *redisclient.AdvisoryLocker
	bus       *Bus
	schedules schedule.Repository
	metrics   *metrics.Metrics
	log       zerolog.Logger

	mu    sync.Mutex
	rooms map[roomKey]*room
}

func NewHub(locker *redisclient.AdvisoryLocker, bus *Bus, schedules schedule.Repository, m *metrics.Metrics, log zerolog.Logger) *Hub {
	return &Hub{
		locker:    locker,
		bus:       bus,
		schedules: schedules,
		metrics:   m,
		log:       log,
		rooms:     make(map[roomKey]*room),
	}
}

// Join adds a session to a room and returns the snapshot to send it: every
// slot on the day's schedule with live capacity, overlaid with the advisory
// locks currently held. A session sits in at most one room; the caller leaves
// the previous room first.
func (h *Hub) Join(ctx context.Context, doctorID uuid.UUID, date, session string, send func(ServerMessage)) (ServerMessage, error) {
	sched, err := h.schedules.GetDoctorSchedule(ctx, doctorID, date)
	if err != nil {
		return ServerMessage{}, err
	}
	held, err := h.locker.Snapshot(ctx, doctorID, date)
	if err != nil {
		return ServerMessage{}, err
	}

	states := make([]SlotState, 0, len(sched.Slots))
	valid := make(map[string]struct{}, len(sched.Slots))
	for _, slot := range sched.Slots {
		valid[slot.StartTime] = struct{}{}
		owner, locked := held[slot.StartTime]
		states = append(states, SlotState{
			Slot:         slot.StartTime,
			BookedCount:  slot.BookedCount,
			MaxBookings:  slot.MaxBookings,
			Locked:       locked,
			LockedBySelf: locked && owner == session,
		})
	}

	key := roomKey{DoctorID: doctorID, Date: date}
	h.mu.Lock()
	rm, ok := h.rooms[key]
	if !ok {
		unsub, err := h.bus.Subscribe(doctorID, date, func(ev roomEvent) {
			h.relay(key, ev)
		})
		if err != nil {
			h.mu.Unlock()
			return ServerMessage{}, err
		}
		rm = &room{members: make(map[string]*member), unsub: unsub}
		h.rooms[key] = rm
	}
	rm.slots = valid
	rm.members[session] = &member{session: session, send: send}
	h.mu.Unlock()

	h.log.Debug().
		Str("doctor_id", doctorID.String()).
		Str("date", date).
		Str("session", session).
		Msg("joined room")

	return ServerMessage{Type: TypeRoomSnapshot, Slots: states}, nil
}

// relay delivers a bus event to local room members, skipping the session
// that originated it when one is named.
func (h *Hub) relay(key roomKey, ev roomEvent) {
	h.mu.Lock()
	rm, ok := h.rooms[key]
	var sends []func(ServerMessage)
	if ok {
		for _, m := range rm.members {
			if ev.Origin != "" && m.session == ev.Origin {
				continue
			}
			sends = append(sends, m.send)
		}
	}
	h.mu.Unlock()

	msg := ev.serverMessage()
	for _, send := range sends {
		send(msg)
	}
}

// Lock claims a slot for the session. Holding members switching slots get
// their old claim released first, so the room sees one unlock then one lock.
// The caller sends lock-confirmed or lock-rejected to the requester itself.
func (h *Hub) Lock(ctx context.Context, doctorID uuid.UUID, date, session, slot string) error {
	key := roomKey{DoctorID: doctorID, Date: date}

	h.mu.Lock()
	rm, ok := h.rooms[key]
	var m *member
	if ok {
		m = rm.members[session]
	}
	if m == nil {
		h.mu.Unlock()
		return ErrNotInRoom
	}
	if _, valid := rm.slots[slot]; !valid {
		h.mu.Unlock()
		return ErrSlotUnknown
	}
	previous := m.heldSlot
	h.mu.Unlock()

	if previous != "" && previous != slot {
		if err := h.release(ctx, key, session, previous); err != nil {
			h.log.Warn().Err(err).Str("slot", previous).Msg("stale claim release failed")
		}
	}

	if err := h.locker.Acquire(ctx, doctorID, date, slot, session); err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			h.metrics.LockRejected()
		}
		return err
	}
	h.metrics.LockAcquired()

	h.mu.Lock()
	if rm, ok := h.rooms[key]; ok {
		if m := rm.members[session]; m != nil {
			m.heldSlot = slot
		}
	}
	h.mu.Unlock()

	h.publish(ctx, key, roomEvent{Type: TypeSlotLocked, Slot: slot, Origin: session})
	return nil
}

// Unlock drops the session's claim on a slot.
func (h *Hub) Unlock(ctx context.Context, doctorID uuid.UUID, date, session, slot string) error {
	key := roomKey{DoctorID: doctorID, Date: date}

	h.mu.Lock()
	rm, ok := h.rooms[key]
	if !ok || rm.members[session] == nil {
		h.mu.Unlock()
		return ErrNotInRoom
	}
	h.mu.Unlock()

	return h.release(ctx, key, session, slot)
}

func (h *Hub) release(ctx context.Context, key roomKey, session, slot string) error {
	err := h.locker.Release(ctx, key.DoctorID, key.Date, slot, session)
	if err != nil && !errors.Is(err, redisclient.ErrNotLockOwner) {
		return err
	}

	h.mu.Lock()
	if rm, ok := h.rooms[key]; ok {
		if m := rm.members[session]; m != nil && m.heldSlot == slot {
			m.heldSlot = ""
		}
	}
	h.mu.Unlock()

	if err == nil {
		h.metrics.LockReleased()
		h.publish(ctx, key, roomEvent{Type: TypeSlotUnlocked, Slot: slot, Origin: session})
	}
	return err
}

// Leave removes a session from its room and releases every advisory lock it
// still holds, broadcasting the unlocks. The lock TTL is only the backstop
// for crashed servers; the normal path is this explicit cleanup.
func (h *Hub) Leave(ctx context.Context, doctorID uuid.UUID, date, session string) {
	key := roomKey{DoctorID: doctorID, Date: date}

	h.mu.Lock()
	rm, ok := h.rooms[key]
	if ok {
		delete(rm.members, session)
		if len(rm.members) == 0 {
			rm.unsub()
			delete(h.rooms, key)
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	released, err := h.locker.ReleaseAll(ctx, doctorID, date, session)
	if err != nil {
		h.log.Error().Err(err).Str("session", session).Msg("disconnect lock cleanup failed")
	}
	for _, slot := range released {
		h.metrics.LockReleased()
		h.publish(ctx, key, roomEvent{Type: TypeSlotUnlocked, Slot: slot, Origin: session})
	}
}

func (h *Hub) publish(ctx context.Context, key roomKey, ev roomEvent) {
	if err := h.bus.Publish(ctx, key.DoctorID, key.Date, ev); err != nil {
		h.log.Error().Err(err).
			Str("doctor_id", key.DoctorID.String()).
			Str("date", key.Date).
			Str("type", ev.Type).
			Msg("room publish failed")
	}
}
