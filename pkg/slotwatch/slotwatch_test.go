package slotwatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot() Event {
	return Event{
		Type: EventRoomSnapshot,
		Slots: []SnapshotSlot{
			{Slot: "09:00", BookedCount: 2, MaxBookings: 3},
			{Slot: "09:30", BookedCount: 3, MaxBookings: 3},
			{Slot: "10:00", BookedCount: 0, MaxBookings: 3, Locked: true},
			{Slot: "10:30", BookedCount: 1, MaxBookings: 3},
		},
	}
}

func newLoadedTable(t *testing.T) *Table {
	t.Helper()
	table := NewTable()
	res := table.Apply(snapshot())
	require.True(t, res.Changed)
	return table
}

func TestSnapshot_MapsStates(t *testing.T) {
	table := newLoadedTable(t)

	s, ok := table.Get("09:00")
	require.True(t, ok)
	assert.Equal(t, Available, s.State)
	assert.Equal(t, 1, s.Remaining())

	s, _ = table.Get("09:30")
	assert.Equal(t, Booked, s.State)

	s, _ = table.Get("10:00")
	assert.Equal(t, LockedByOther, s.State)

	assert.Len(t, table.Slots(), 4)
	assert.Empty(t, table.Selection())
}

func TestSelect_BookedOrLockedNeverChangesSelection(t *testing.T) {
	table := newLoadedTable(t)

	emits, reason := table.Select("09:30")
	assert.Nil(t, emits)
	assert.Equal(t, "slot is fully booked", reason)
	assert.Empty(t, table.Selection())

	emits, reason = table.Select("10:00")
	assert.Nil(t, emits)
	assert.Equal(t, "slot is being booked by another user", reason)
	assert.Empty(t, table.Selection())

	emits, reason = table.Select("23:00")
	assert.Nil(t, emits)
	assert.Equal(t, "unknown slot", reason)
}

func TestSelect_ThenSwitch_EmitsOneUnlockThenOneLock(t *testing.T) {
	table := newLoadedTable(t)

	emits, reason := table.Select("09:00")
	require.Empty(t, reason)
	require.Equal(t, []Emit{{Type: EmitLock, Slot: "09:00"}}, emits)
	assert.Equal(t, "09:00", table.Selection())

	emits, reason = table.Select("10:30")
	require.Empty(t, reason)
	require.Equal(t, []Emit{
		{Type: EmitUnlock, Slot: "09:00"},
		{Type: EmitLock, Slot: "10:30"},
	}, emits)
	assert.Equal(t, "10:30", table.Selection())

	s, _ := table.Get("09:00")
	assert.Equal(t, Available, s.State)
	s, _ = table.Get("10:30")
	assert.Equal(t, Selected, s.State)
}

func TestSelect_SameSlotIsIdempotent(t *testing.T) {
	table := newLoadedTable(t)

	_, reason := table.Select("09:00")
	require.Empty(t, reason)

	emits, reason := table.Select("09:00")
	assert.Nil(t, emits)
	assert.Empty(t, reason)
	assert.Equal(t, "09:00", table.Selection())
}

func TestLockRejected_ClearsSelectionWithWarning(t *testing.T) {
	table := newLoadedTable(t)

	_, reason := table.Select("09:00")
	require.Empty(t, reason)

	res := table.Apply(Event{Type: EventLockRejected, Slot: "09:00"})
	assert.True(t, res.Changed)
	assert.NotEmpty(t, res.Warning)
	assert.Empty(t, table.Selection())

	s, _ := table.Get("09:00")
	assert.Equal(t, LockedByOther, s.State)
}

func TestLockRejected_ForOtherSlotKeepsSelection(t *testing.T) {
	table := newLoadedTable(t)

	_, reason := table.Select("09:00")
	require.Empty(t, reason)

	res := table.Apply(Event{Type: EventLockRejected, Slot: "10:30"})
	assert.Empty(t, res.Warning)
	assert.Equal(t, "09:00", table.Selection())
}

func TestLockConfirmed_SettlesSelection(t *testing.T) {
	table := newLoadedTable(t)

	_, reason := table.Select("09:00")
	require.Empty(t, reason)

	res := table.Apply(Event{Type: EventLockConfirmed, Slot: "09:00"})
	assert.True(t, res.Changed)
	s, _ := table.Get("09:00")
	assert.Equal(t, Selected, s.State)
}

func TestSlotLocked_OverOwnSelectionForcesReset(t *testing.T) {
	table := newLoadedTable(t)

	_, reason := table.Select("09:00")
	require.Empty(t, reason)

	res := table.Apply(Event{Type: EventSlotLocked, Slot: "09:00"})
	assert.NotEmpty(t, res.Warning)
	assert.Empty(t, table.Selection())

	s, _ := table.Get("09:00")
	assert.Equal(t, LockedByOther, s.State)
}

func TestStatusChange_CapacityReachedOnSelectionWarns(t *testing.T) {
	table := newLoadedTable(t)

	_, reason := table.Select("09:00")
	require.Empty(t, reason)

	// the last seat goes to someone else mid-selection
	res := table.Apply(Event{Type: EventSlotStatusChanged, Slot: "09:00", BookedCount: 3, MaxBookings: 3})
	assert.NotEmpty(t, res.Warning)
	assert.Empty(t, table.Selection())

	s, _ := table.Get("09:00")
	assert.Equal(t, Booked, s.State)
	assert.Equal(t, 0, s.Remaining())
}

func TestStatusChange_CancellationReopensBookedSlot(t *testing.T) {
	table := newLoadedTable(t)

	res := table.Apply(Event{Type: EventSlotStatusChanged, Slot: "09:30", BookedCount: 2, MaxBookings: 3})
	assert.True(t, res.Changed)

	s, _ := table.Get("09:30")
	assert.Equal(t, Available, s.State)
	assert.Equal(t, 1, s.Remaining())
}

func TestSlotUnlocked_FreesLockedSlot(t *testing.T) {
	table := newLoadedTable(t)

	res := table.Apply(Event{Type: EventSlotUnlocked, Slot: "10:00"})
	assert.True(t, res.Changed)

	s, _ := table.Get("10:00")
	assert.Equal(t, Available, s.State)

	_, reason := table.Select("10:00")
	assert.Empty(t, reason)
}

func TestClear_EmitsUnlockExactlyOnce(t *testing.T) {
	table := newLoadedTable(t)

	_, reason := table.Select("09:00")
	require.Empty(t, reason)

	emits := table.Clear()
	require.Equal(t, []Emit{{Type: EmitUnlock, Slot: "09:00"}}, emits)
	assert.Empty(t, table.Selection())

	// unmount cleanup may run again; nothing more is owed
	assert.Nil(t, table.Clear())
}

func TestRemaining_LabelCounts(t *testing.T) {
	table := newLoadedTable(t)

	s, _ := table.Get("09:00")
	assert.Equal(t, 1, s.Remaining()) // "1/3 left"
	s, _ = table.Get("09:30")
	assert.Equal(t, 0, s.Remaining())
	s, _ = table.Get("10:30")
	assert.Equal(t, 2, s.Remaining())
}

func TestReconnect_SnapshotOverridesLocalState(t *testing.T) {
	table := newLoadedTable(t)

	_, reason := table.Select("09:00")
	require.Empty(t, reason)

	// fresh snapshot after reconnect: server is the source of truth
	table.Apply(snapshot())
	assert.Empty(t, table.Selection())
	s, _ := table.Get("09:00")
	assert.Equal(t, Available, s.State)
}
