package schedule

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory Repository for service tests.
type memRepo struct {
	schedules map[uuid.UUID]*Schedule
	slots     map[uuid.UUID]*TimeSlot
}

func newMemRepo() *memRepo {
	return &memRepo{
		schedules: make(map[uuid.UUID]*Schedule),
		slots:     make(map[uuid.UUID]*TimeSlot),
	}
}

func (m *memRepo) CreateSchedule(_ context.Context, sched *Schedule) (*Schedule, error) {
	for _, existing := range m.schedules {
		if existing.DoctorID == sched.DoctorID && existing.Date == sched.Date {
			return nil, ErrScheduleExists
		}
	}
	created := *sched
	created.ID = uuid.New()
	created.Slots = nil
	m.schedules[created.ID] = &created
	for _, slot := range sched.Slots {
		added, _ := m.AddSlot(context.Background(), created.ID, slot)
		created.Slots = append(created.Slots, *added)
	}
	return &created, nil
}

func (m *memRepo) GetScheduleByID(_ context.Context, id uuid.UUID) (*Schedule, error) {
	sched, ok := m.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	out := *sched
	out.Slots = nil
	for _, slot := range m.slots {
		if slot.ScheduleID == id {
			out.Slots = append(out.Slots, *slot)
		}
	}
	return &out, nil
}

func (m *memRepo) GetDoctorSchedule(ctx context.Context, doctorID uuid.UUID, date string) (*Schedule, error) {
	for id, sched := range m.schedules {
		if sched.DoctorID == doctorID && sched.Date == date {
			return m.GetScheduleByID(ctx, id)
		}
	}
	return nil, ErrScheduleNotFound
}

func (m *memRepo) ListSchedulesByDoctor(ctx context.Context, doctorID uuid.UUID, from, to string) ([]Schedule, error) {
	var out []Schedule
	for id, sched := range m.schedules {
		if sched.DoctorID == doctorID && sched.Date >= from && sched.Date <= to {
			full, _ := m.GetScheduleByID(ctx, id)
			out = append(out, *full)
		}
	}
	return out, nil
}

func (m *memRepo) DeleteSchedule(_ context.Context, id uuid.UUID) error {
	if _, ok := m.schedules[id]; !ok {
		return ErrScheduleNotFound
	}
	for slotID, slot := range m.slots {
		if slot.ScheduleID == id {
			if slot.BookedCount > 0 {
				return ErrSlotHasBookings
			}
			delete(m.slots, slotID)
		}
	}
	delete(m.schedules, id)
	return nil
}

func (m *memRepo) AddSlot(_ context.Context, scheduleID uuid.UUID, slot TimeSlot) (*TimeSlot, error) {
	added := slot
	added.ID = uuid.New()
	added.ScheduleID = scheduleID
	m.slots[added.ID] = &added
	return &added, nil
}

func (m *memRepo) UpdateSlot(_ context.Context, slot TimeSlot) (*TimeSlot, error) {
	current, ok := m.slots[slot.ID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	current.StartTime = slot.StartTime
	current.EndTime = slot.EndTime
	current.MaxBookings = slot.MaxBookings
	current.RoomID = slot.RoomID
	out := *current
	return &out, nil
}

func (m *memRepo) DeleteSlot(_ context.Context, id uuid.UUID) error {
	slot, ok := m.slots[id]
	if !ok {
		return ErrSlotNotFound
	}
	if slot.BookedCount > 0 {
		return ErrSlotHasBookings
	}
	delete(m.slots, id)
	return nil
}

func (m *memRepo) GetSlotByID(_ context.Context, id uuid.UUID) (*TimeSlot, error) {
	slot, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	out := *slot
	return &out, nil
}

func (m *memRepo) GetSlotRef(_ context.Context, id uuid.UUID) (*SlotRef, error) {
	slot, ok := m.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	sched := m.schedules[slot.ScheduleID]
	return &SlotRef{SlotID: id, DoctorID: sched.DoctorID, Date: sched.Date, Start: slot.StartTime}, nil
}

func (m *memRepo) IncrementBooked(_ context.Context, slotID uuid.UUID) (*TimeSlot, error) {
	slot, ok := m.slots[slotID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if slot.BookedCount >= slot.MaxBookings {
		return nil, ErrSlotFull
	}
	slot.BookedCount++
	out := *slot
	return &out, nil
}

func (m *memRepo) DecrementBooked(_ context.Context, slotID uuid.UUID) (*TimeSlot, error) {
	slot, ok := m.slots[slotID]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if slot.BookedCount > 0 {
		slot.BookedCount--
	}
	out := *slot
	return &out, nil
}

func testSlot(start, end string, capacity int) TimeSlot {
	return TimeSlot{StartTime: start, EndTime: end, MaxBookings: capacity}
}

func TestCreateSchedule_Validation(t *testing.T) {
	svc := NewService(newMemRepo())
	doctorID := uuid.New()
	hospitalID := uuid.New()

	tests := []struct {
		name    string
		date    string
		slots   []TimeSlot
		wantErr error
	}{
		{"bad date", "10-06-2024", []TimeSlot{testSlot("09:00", "09:30", 3)}, ErrInvalidDate},
		{"inverted window", "2024-06-10", []TimeSlot{testSlot("09:30", "09:00", 3)}, ErrInvalidSlot},
		{"zero capacity", "2024-06-10", []TimeSlot{testSlot("09:00", "09:30", 0)}, ErrInvalidSlot},
		{"overlap", "2024-06-10", []TimeSlot{testSlot("09:00", "10:00", 3), testSlot("09:30", "10:30", 3)}, ErrOverlappingSlot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateSchedule(context.Background(), doctorID, hospitalID, tt.date, tt.slots)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreateSchedule_OnePerDoctorDate(t *testing.T) {
	svc := NewService(newMemRepo())
	doctorID := uuid.New()
	hospitalID := uuid.New()
	slots := []TimeSlot{testSlot("09:00", "09:30", 3)}

	_, err := svc.CreateSchedule(context.Background(), doctorID, hospitalID, "2024-06-10", slots)
	require.NoError(t, err)

	_, err = svc.CreateSchedule(context.Background(), doctorID, hospitalID, "2024-06-10", slots)
	assert.ErrorIs(t, err, ErrScheduleExists)
}

func TestUpdateSlot_OwnershipAndCapacityFloor(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	doctorID := uuid.New()

	sched, err := svc.CreateSchedule(context.Background(), doctorID, uuid.New(), "2024-06-10", []TimeSlot{testSlot("09:00", "09:30", 3)})
	require.NoError(t, err)
	slot := sched.Slots[0]

	// Another doctor cannot edit.
	_, err = svc.UpdateSlot(context.Background(), uuid.New(), slot)
	assert.ErrorIs(t, err, ErrNotScheduleOwner)

	// Capacity cannot fall below existing bookings.
	_, err = repo.IncrementBooked(context.Background(), slot.ID)
	require.NoError(t, err)
	_, err = repo.IncrementBooked(context.Background(), slot.ID)
	require.NoError(t, err)

	slot.MaxBookings = 1
	_, err = svc.UpdateSlot(context.Background(), doctorID, slot)
	assert.ErrorIs(t, err, ErrSlotHasBookings)

	slot.MaxBookings = 2
	updated, err := svc.UpdateSlot(context.Background(), doctorID, slot)
	require.NoError(t, err)
	assert.True(t, updated.IsBooked())
}

func TestDeleteSlot_BlockedWhileBooked(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)
	doctorID := uuid.New()

	sched, err := svc.CreateSchedule(context.Background(), doctorID, uuid.New(), "2024-06-10", []TimeSlot{testSlot("09:00", "09:30", 1)})
	require.NoError(t, err)
	slot := sched.Slots[0]

	_, err = repo.IncrementBooked(context.Background(), slot.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteSlot(context.Background(), doctorID, slot.ID), ErrSlotHasBookings)

	_, err = repo.DecrementBooked(context.Background(), slot.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteSlot(context.Background(), doctorID, slot.ID))
}

func TestIncrementBooked_StopsAtCapacity(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	sched, err := svc.CreateSchedule(context.Background(), uuid.New(), uuid.New(), "2024-06-10", []TimeSlot{testSlot("09:00", "09:30", 2)})
	require.NoError(t, err)
	slot := sched.Slots[0]

	_, err = repo.IncrementBooked(context.Background(), slot.ID)
	require.NoError(t, err)
	updated, err := repo.IncrementBooked(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.Remaining())

	_, err = repo.IncrementBooked(context.Background(), slot.ID)
	assert.ErrorIs(t, err, ErrSlotFull)
}
