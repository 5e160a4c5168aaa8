package push

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/caredesk/clinic-booking/internal/redis"
	"github.com/caredesk/clinic-booking/internal/schedule"
)

// roomSchedules serves GetDoctorSchedule; everything else is unused here.
type roomSchedules struct {
	schedule.Repository
	byKey map[string]*schedule.Schedule
}

func (r *roomSchedules) GetDoctorSchedule(_ context.Context, doctorID uuid.UUID, date string) (*schedule.Schedule, error) {
	sched, ok := r.byKey[doctorID.String()+"/"+date]
	if !ok {
		return nil, schedule.ErrScheduleNotFound
	}
	return sched, nil
}

type hubFixture struct {
	hub      *Hub
	bus      *Bus
	doctorID uuid.UUID
	date     string
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	doctorID := uuid.New()
	date := "2026-09-01"
	schedules := &roomSchedules{byKey: map[string]*schedule.Schedule{
		doctorID.String() + "/" + date: {
			ID:       uuid.New(),
			DoctorID: doctorID,
			Date:     date,
			Slots: []schedule.TimeSlot{
				{ID: uuid.New(), StartTime: "09:00", EndTime: "09:30", BookedCount: 1, MaxBookings: 3},
				{ID: uuid.New(), StartTime: "09:30", EndTime: "10:00", MaxBookings: 3},
			},
		},
	}}

	bus := NewBus(client, zerolog.Nop())
	t.Cleanup(bus.Close)
	locker := redisclient.NewAdvisoryLocker(client, 90*time.Second)
	hub := NewHub(locker, bus, schedules, nil, zerolog.Nop())

	return &hubFixture{hub: hub, bus: bus, doctorID: doctorID, date: date}
}

func joinMember(t *testing.T, f *hubFixture, session string) (chan ServerMessage, ServerMessage) {
	t.Helper()
	inbox := make(chan ServerMessage, 32)
	snapshot, err := f.hub.Join(context.Background(), f.doctorID, f.date, session, func(msg ServerMessage) {
		inbox <- msg
	})
	require.NoError(t, err)
	return inbox, snapshot
}

func waitMsg(t *testing.T, inbox chan ServerMessage) ServerMessage {
	t.Helper()
	select {
	case msg := <-inbox:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for room event")
		return ServerMessage{}
	}
}

func assertQuiet(t *testing.T, inbox chan ServerMessage) {
	t.Helper()
	select {
	case msg := <-inbox:
		t.Fatalf("unexpected room event: %+v", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestJoin_SnapshotShowsCapacityAndLocks(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	_, err := f.hub.Join(ctx, f.doctorID, f.date, "alice", func(ServerMessage) {})
	require.NoError(t, err)
	require.NoError(t, f.hub.Lock(ctx, f.doctorID, f.date, "alice", "09:00"))

	_, snapshot := joinMember(t, f, "bob")
	require.Equal(t, TypeRoomSnapshot, snapshot.Type)
	require.Len(t, snapshot.Slots, 2)

	first := snapshot.Slots[0]
	assert.Equal(t, "09:00", first.Slot)
	assert.Equal(t, 1, first.BookedCount)
	assert.Equal(t, 3, first.MaxBookings)
	assert.True(t, first.Locked)
	assert.False(t, first.LockedBySelf)

	assert.False(t, snapshot.Slots[1].Locked)
}

func TestJoin_UnknownRoom(t *testing.T) {
	f := newHubFixture(t)
	_, err := f.hub.Join(context.Background(), uuid.New(), f.date, "alice", func(ServerMessage) {})
	assert.ErrorIs(t, err, schedule.ErrScheduleNotFound)
}

func TestLock_BroadcastsToOthersOnly(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	aliceInbox, _ := joinMember(t, f, "alice")
	bobInbox, _ := joinMember(t, f, "bob")

	require.NoError(t, f.hub.Lock(ctx, f.doctorID, f.date, "alice", "09:00"))

	msg := waitMsg(t, bobInbox)
	assert.Equal(t, TypeSlotLocked, msg.Type)
	assert.Equal(t, "09:00", msg.Slot)

	assertQuiet(t, aliceInbox)
}

func TestLock_ContendedSlotRejected(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	joinMember(t, f, "alice")
	joinMember(t, f, "bob")

	require.NoError(t, f.hub.Lock(ctx, f.doctorID, f.date, "alice", "09:00"))
	err := f.hub.Lock(ctx, f.doctorID, f.date, "bob", "09:00")
	assert.ErrorIs(t, err, redisclient.ErrLockNotAcquired)
}

func TestLock_RequiresJoinAndKnownSlot(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	err := f.hub.Lock(ctx, f.doctorID, f.date, "ghost", "09:00")
	assert.ErrorIs(t, err, ErrNotInRoom)

	joinMember(t, f, "alice")
	err = f.hub.Lock(ctx, f.doctorID, f.date, "alice", "23:45")
	assert.ErrorIs(t, err, ErrSlotUnknown)
}

func TestLock_SwitchingSlotsUnlocksOldFirst(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	joinMember(t, f, "alice")
	bobInbox, _ := joinMember(t, f, "bob")

	require.NoError(t, f.hub.Lock(ctx, f.doctorID, f.date, "alice", "09:00"))
	msg := waitMsg(t, bobInbox)
	require.Equal(t, TypeSlotLocked, msg.Type)

	require.NoError(t, f.hub.Lock(ctx, f.doctorID, f.date, "alice", "09:30"))

	unlock := waitMsg(t, bobInbox)
	assert.Equal(t, TypeSlotUnlocked, unlock.Type)
	assert.Equal(t, "09:00", unlock.Slot)

	lock := waitMsg(t, bobInbox)
	assert.Equal(t, TypeSlotLocked, lock.Type)
	assert.Equal(t, "09:30", lock.Slot)

	// the freed slot is claimable again
	assert.NoError(t, f.hub.Lock(ctx, f.doctorID, f.date, "bob", "09:00"))
}

func TestUnlock_OnlyOwnerReleases(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	joinMember(t, f, "alice")
	bobInbox, _ := joinMember(t, f, "bob")

	require.NoError(t, f.hub.Lock(ctx, f.doctorID, f.date, "alice", "09:00"))
	waitMsg(t, bobInbox)

	err := f.hub.Unlock(ctx, f.doctorID, f.date, "bob", "09:00")
	assert.ErrorIs(t, err, redisclient.ErrNotLockOwner)

	require.NoError(t, f.hub.Unlock(ctx, f.doctorID, f.date, "alice", "09:00"))
	msg := waitMsg(t, bobInbox)
	assert.Equal(t, TypeSlotUnlocked, msg.Type)
}

func TestLeave_ReleasesHeldLocks(t *testing.T) {
	f := newHubFixture(t)
	ctx := context.Background()

	joinMember(t, f, "alice")
	bobInbox, _ := joinMember(t, f, "bob")

	require.NoError(t, f.hub.Lock(ctx, f.doctorID, f.date, "alice", "09:00"))
	waitMsg(t, bobInbox)

	f.hub.Leave(ctx, f.doctorID, f.date, "alice")

	msg := waitMsg(t, bobInbox)
	assert.Equal(t, TypeSlotUnlocked, msg.Type)
	assert.Equal(t, "09:00", msg.Slot)

	assert.NoError(t, f.hub.Lock(ctx, f.doctorID, f.date, "bob", "09:00"))
}

func TestSlotStatusChanged_ReachesRoom(t *testing.T) {
	f := newHubFixture(t)

	bobInbox, _ := joinMember(t, f, "bob")

	ref := schedule.SlotRef{SlotID: uuid.New(), DoctorID: f.doctorID, Date: f.date, Start: "09:00"}
	require.NoError(t, f.bus.SlotStatusChanged(context.Background(), ref, 3, 3))

	msg := waitMsg(t, bobInbox)
	assert.Equal(t, TypeSlotStatusChanged, msg.Type)
	assert.Equal(t, "09:00", msg.Slot)
	assert.Equal(t, 3, msg.BookedCount)
	assert.Equal(t, 3, msg.MaxBookings)
}
