// Package push runs the websocket side of slot booking: clients join a
// doctor+date room, raise advisory locks on slots while they fill the booking
// form, and hear about everyone else's locks and bookings as they happen.
package push

// Client-to-server message types.
const (
	TypeJoinRoom      = "join-room"
	TypeLockRequest   = "lock-request"
	TypeUnlockRequest = "unlock-request"
	TypePing          = "ping"
)

// Server-to-client message types.
const (
	TypeRoomSnapshot      = "room-snapshot"
	TypeLockConfirmed     = "lock-confirmed"
	TypeLockRejected      = "lock-rejected"
	TypeSlotLocked        = "slot-locked"
	TypeSlotUnlocked      = "slot-unlocked"
	TypeSlotStatusChanged = "slot-status-changed"
	TypePong              = "pong"
	TypeError             = "error"
)

// ClientMessage is the envelope for everything a browser sends. Slot is the
// slot's start time in "15:04" form, scoped by the room's doctor and date.
type ClientMessage struct {
	Type     string `json:"type"`
	DoctorID string `json:"doctorId,omitempty"`
	Date     string `json:"date,omitempty"`
	Slot     string `json:"slot,omitempty"`
}

// SlotState is one slot's standing in a room snapshot.
type SlotState struct {
	Slot         string `json:"slot"`
	BookedCount  int    `json:"bookedCount"`
	MaxBookings  int    `json:"maxBookings"`
	Locked       bool   `json:"locked"`
	LockedBySelf bool   `json:"lockedBySelf"`
}

// ServerMessage is the envelope for everything the server sends.
type ServerMessage struct {
	Type        string      `json:"type"`
	Slot        string      `json:"slot,omitempty"`
	BookedCount int         `json:"bookedCount,omitempty"`
	MaxBookings int         `json:"maxBookings,omitempty"`
	Slots       []SlotState `json:"slots,omitempty"`
	Message     string      `json:"message,omitempty"`
}

// roomEvent is what travels over the redis bus between instances. Origin
// carries the session that caused the event so relays can skip echoing a
// lock back to the client that raised it.
type roomEvent struct {
	Type        string `json:"type"`
	Slot        string `json:"slot,omitempty"`
	BookedCount int    `json:"bookedCount,omitempty"`
	MaxBookings int    `json:"maxBookings,omitempty"`
	Origin      string `json:"origin,omitempty"`
}

func (ev roomEvent) serverMessage() ServerMessage {
	return ServerMessage{
		Type:        ev.Type,
		Slot:        ev.Slot,
		BookedCount: ev.BookedCount,
		MaxBookings: ev.MaxBookings,
	}
}
