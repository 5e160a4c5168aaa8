// Package slotwatch keeps a client's view of a doctor+date slot room. It
// consumes the push channel's event stream and answers, per slot, whether
// the user can select it and what to emit back to the server when they do.
// The table is pure bookkeeping with no transport or rendering attached, so
// the selection rules are testable on their own.
package slotwatch

import "fmt"

// State is one slot's standing from this client's point of view.
type State int

const (
	// Available slots can be selected.
	Available State = iota
	// Booked slots are at capacity.
	Booked
	// LockedByOther slots are being booked by someone else right now.
	LockedByOther
	// LockedBySelf slots are held by this client but not the active selection,
	// a transient state while the server confirms a switch.
	LockedBySelf
	// Selected is the slot this client is actively booking.
	Selected
)

func (s State) String() string {
	switch s {
	case Available:
		return "available"
	case Booked:
		return "booked"
	case LockedByOther:
		return "locked"
	case LockedBySelf:
		return "held"
	case Selected:
		return "selected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event mirrors the server's room messages. Exactly one constructor-shaped
// Type is meaningful per event; unused fields are ignored.
type Event struct {
	Type        string
	Slot        string
	BookedCount int
	MaxBookings int
	Slots       []SnapshotSlot
}

// SnapshotSlot is one entry of a room-snapshot event.
type SnapshotSlot struct {
	Slot         string
	BookedCount  int
	MaxBookings  int
	Locked       bool
	LockedBySelf bool
}

// Event types consumed by Apply, matching the push channel's wire names.
const (
	EventRoomSnapshot      = "room-snapshot"
	EventSlotLocked        = "slot-locked"
	EventSlotUnlocked      = "slot-unlocked"
	EventSlotStatusChanged = "slot-status-changed"
	EventLockConfirmed     = "lock-confirmed"
	EventLockRejected      = "lock-rejected"
)

// Emit is a message the client owes the server, produced by Select/Clear.
type Emit struct {
	Type string // "lock-request" or "unlock-request"
	Slot string
}

const (
	EmitLock   = "lock-request"
	EmitUnlock = "unlock-request"
)

// Slot is the table's record for one time slot.
type Slot struct {
	Start       string
	BookedCount int
	MaxBookings int
	State       State
}

// Remaining is how many seats are left, for "2/3 left" style labels.
func (s Slot) Remaining() int {
	r := s.MaxBookings - s.BookedCount
	if r < 0 {
		return 0
	}
	return r
}

// Result reports what an Apply did. Warning is non-empty when the client's
// selection was forcibly cleared and the user should be told.
type Result struct {
	Changed bool
	Warning string
}

// Table tracks every slot in the joined room plus this client's selection.
type Table struct {
	slots     map[string]*Slot
	order     []string
	selection string // start time of the Selected slot, "" when none
}

func NewTable() *Table {
	return &Table{slots: make(map[string]*Slot)}
}

// Selection returns the currently selected slot start, or "" when none.
func (t *Table) Selection() string {
	return t.selection
}

// Get returns a copy of one slot's record.
func (t *Table) Get(start string) (Slot, bool) {
	s, ok := t.slots[start]
	if !ok {
		return Slot{}, false
	}
	return *s, true
}

// Slots returns the table in snapshot order.
func (t *Table) Slots() []Slot {
	out := make([]Slot, 0, len(t.order))
	for _, start := range t.order {
		out = append(out, *t.slots[start])
	}
	return out
}

// Apply folds one server event into the table. It is the only mutation path
// for inbound traffic; Select and Clear are the only paths for user intent.
func (t *Table) Apply(ev Event) Result {
	switch ev.Type {
	case EventRoomSnapshot:
		return t.applySnapshot(ev.Slots)

	case EventSlotLocked:
		s, ok := t.slots[ev.Slot]
		if !ok {
			return Result{}
		}
		if t.selection == ev.Slot {
			// someone else won the slot we thought we held
			t.selection = ""
			s.State = LockedByOther
			return Result{Changed: true, Warning: "your slot was claimed by another user"}
		}
		if s.State == Available {
			s.State = LockedByOther
			return Result{Changed: true}
		}
		return Result{}

	case EventSlotUnlocked:
		s, ok := t.slots[ev.Slot]
		if !ok {
			return Result{}
		}
		if s.State == LockedByOther {
			s.State = t.baseState(s)
			return Result{Changed: true}
		}
		return Result{}

	case EventSlotStatusChanged:
		s, ok := t.slots[ev.Slot]
		if !ok {
			return Result{}
		}
		s.BookedCount = ev.BookedCount
		s.MaxBookings = ev.MaxBookings
		if s.Remaining() == 0 {
			if t.selection == ev.Slot {
				t.selection = ""
				s.State = Booked
				return Result{Changed: true, Warning: "the slot you selected just filled up"}
			}
			s.State = Booked
		} else if s.State == Booked {
			s.State = Available
		}
		return Result{Changed: true}

	case EventLockConfirmed:
		s, ok := t.slots[ev.Slot]
		if !ok {
			return Result{}
		}
		if t.selection == ev.Slot {
			s.State = Selected
		} else {
			s.State = LockedBySelf
		}
		return Result{Changed: true}

	case EventLockRejected:
		s, ok := t.slots[ev.Slot]
		if !ok {
			return Result{}
		}
		if t.selection == ev.Slot {
			t.selection = ""
			s.State = LockedByOther
			return Result{Changed: true, Warning: "that slot is being booked by another user"}
		}
		if s.State == LockedBySelf || s.State == Selected {
			s.State = t.baseState(s)
			return Result{Changed: true}
		}
		return Result{}
	}
	return Result{}
}

func (t *Table) applySnapshot(slots []SnapshotSlot) Result {
	t.slots = make(map[string]*Slot, len(slots))
	t.order = t.order[:0]
	t.selection = ""
	for _, ss := range slots {
		s := &Slot{
			Start:       ss.Slot,
			BookedCount: ss.BookedCount,
			MaxBookings: ss.MaxBookings,
		}
		switch {
		case ss.LockedBySelf:
			s.State = LockedBySelf
		case ss.Locked:
			s.State = LockedByOther
		default:
			s.State = t.baseState(s)
		}
		t.slots[ss.Slot] = s
		t.order = append(t.order, ss.Slot)
	}
	return Result{Changed: true}
}

// baseState is a slot's state with no locks in play.
func (t *Table) baseState(s *Slot) State {
	if s.Remaining() == 0 {
		return Booked
	}
	return Available
}

// Select marks a slot as the active selection and returns the emits owed to
// the server: an unlock for the previous selection, if any, then a lock for
// the new one. Booked and locked-by-other slots refuse selection with a
// reason and leave the table untouched.
func (t *Table) Select(start string) ([]Emit, string) {
	s, ok := t.slots[start]
	if !ok {
		return nil, "unknown slot"
	}
	switch s.State {
	case Booked:
		return nil, "slot is fully booked"
	case LockedByOther:
		return nil, "slot is being booked by another user"
	case Selected:
		return nil, ""
	}

	var emits []Emit
	if prev := t.selection; prev != "" && prev != start {
		if ps, ok := t.slots[prev]; ok {
			ps.State = t.baseState(ps)
		}
		emits = append(emits, Emit{Type: EmitUnlock, Slot: prev})
	}

	// optimistic: the server answers with lock-confirmed or lock-rejected
	t.selection = start
	s.State = Selected
	emits = append(emits, Emit{Type: EmitLock, Slot: start})
	return emits, ""
}

// Clear drops the active selection, returning the unlock owed to the server.
// Safe to call repeatedly; only the first call after a selection emits.
func (t *Table) Clear() []Emit {
	if t.selection == "" {
		return nil
	}
	start := t.selection
	t.selection = ""
	if s, ok := t.slots[start]; ok {
		s.State = t.baseState(s)
	}
	return []Emit{{Type: EmitUnlock, Slot: start}}
}
