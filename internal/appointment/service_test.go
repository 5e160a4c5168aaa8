package appointment

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

	"github.com/caredesk/clinic-booking/internal/config"
	redisclient "github.com/caredesk/clinic-booking/internal/redis"
	"github.com/caredesk/clinic-booking/internal/schedule"
)

// memRepo is an in-memory appointment Repository.
type memRepo struct {
	appointments map[uuid.UUID]*Appointment
	events       []EventLog
}

func newMemRepo() *memRepo {
	return &memRepo{appointments: make(map[uuid.UUID]*Appointment)}
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (m *memRepo) GetDetail(_ context.Context, id uuid.UUID) (*Detail, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &Detail{Appointment: *a}, nil
}

func (m *memRepo) List(_ context.Context, f Filter) ([]Detail, error) {
	var out []Detail
	for _, a := range m.appointments {
		if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
			continue
		}
		if f.SlotID != uuid.Nil && a.SlotID != f.SlotID {
			continue
		}
		out = append(out, Detail{Appointment: *a})
	}
	return out, nil
}

func (m *memRepo) CreatePending(_ context.Context, appt *Appointment, expiresAt time.Time) (*Appointment, error) {
	created := *appt
	created.ID = uuid.New()
	created.Status = StatusPending
	created.ExpiresAt = &expiresAt
	m.appointments[created.ID] = &created
	out := created
	return &out, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = to
	out := *a
	return &out, nil
}

func (m *memRepo) Cancel(_ context.Context, id uuid.UUID, from Status, reason string) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return nil, ErrAppointmentNotFound
	}
	a.Status = StatusCancelled
	a.CancelReason = &reason
	out := *a
	return &out, nil
}

func (m *memRepo) MoveToSlot(_ context.Context, id uuid.UUID, newSlotID uuid.UUID) (*Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.SlotID = newSlotID
	a.Status = StatusRescheduled
	a.RescheduleCount++
	out := *a
	return &out, nil
}

func (m *memRepo) HasCompletedAppointment(_ context.Context, patientID, doctorID uuid.UUID) (bool, error) {
	for _, a := range m.appointments {
		if a.PatientID == patientID && a.DoctorID == doctorID && a.Status == StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) HasCompletedHospitalAppointment(_ context.Context, patientID, hospitalID uuid.UUID) (bool, error) {
	for _, a := range m.appointments {
		if a.PatientID == patientID && a.HospitalID == hospitalID && a.Status == StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) FindExpiredPending(_ context.Context, now time.Time) ([]Appointment, error) {
	var out []Appointment
	for _, a := range m.appointments {
		if a.Status == StatusPending && a.ExpiresAt != nil && a.ExpiresAt.Before(now) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (m *memRepo) InsertEvent(_ context.Context, ev EventLog) error {
	m.events = append(m.events, ev)
	return nil
}

// memSchedules is an in-memory schedule.Repository with just what the
// appointment service touches.
type memSchedules struct {
	schedules map[uuid.UUID]*schedule.Schedule
	slots     map[uuid.UUID]*schedule.TimeSlot
}

func newMemSchedules() *memSchedules {
	return &memSchedules{
		schedules: make(map[uuid.UUID]*schedule.Schedule),
		slots:     make(map[uuid.UUID]*schedule.TimeSlot),
	}
}

func (m *memSchedules) addDay(doctorID uuid.UUID, date, start string, capacity int) *schedule.TimeSlot {
	sched := &schedule.Schedule{ID: uuid.New(), DoctorID: doctorID, HospitalID: uuid.New(), Date: date}
	m.schedules[sched.ID] = sched
	slot := &schedule.TimeSlot{
		ID:          uuid.New(),
		ScheduleID:  sched.ID,
		StartTime:   start,
		EndTime:     start, // end unused by the service
		MaxBookings: capacity,
	}
	m.slots[slot.ID] = slot
	return slot
}

func (m *memSchedules) CreateSchedule(context.Context, *schedule.Schedule) (*schedule.Schedule, error) {
	panic("not used")
}

func (m *memSchedules) GetScheduleByID(_ context.Context, id uuid.UUID) (*schedule.Schedule, error) {
	s, ok := m.schedules[id]
	if !ok {
		return nil, schedule.ErrScheduleNotFound
	}
	out := *s
	return &out, nil
}

func (m *memSchedules) GetDoctorSchedule(context.Context, uuid.UUID, string) (*schedule.Schedule, error) {
	panic("not used")
}

func (m *memSchedules) ListSchedulesByDoctor(context.Context, uuid.UUID, string, string) ([]schedule.Schedule, error) {
	panic("not used")
}

func (m *memSchedules) DeleteSchedule(context.Context, uuid.UUID) error { panic("not used") }

func (m *memSchedules) AddSlot(context.Context, uuid.UUID, schedule.TimeSlot) (*schedule.TimeSlot, error) {
	panic("not used")
}

func (m *memSchedules) UpdateSlot(context.Context, schedule.TimeSlot) (*schedule.TimeSlot, error) {
	panic("not used")
}

func (m *memSchedules) DeleteSlot(context.Context, uuid.UUID) error { panic("not used") }

func (m *memSchedules) GetSlotByID(_ context.Context, id uuid.UUID) (*schedule.TimeSlot, error) {
	s, ok := m.slots[id]
	if !ok {
		return nil, schedule.ErrSlotNotFound
	}
	out := *s
	return &out, nil
}

func (m *memSchedules) GetSlotRef(_ context.Context, id uuid.UUID) (*schedule.SlotRef, error) {
	s, ok := m.slots[id]
	if !ok {
		return nil, schedule.ErrSlotNotFound
	}
	sched := m.schedules[s.ScheduleID]
	return &schedule.SlotRef{SlotID: id, DoctorID: sched.DoctorID, Date: sched.Date, Start: s.StartTime}, nil
}

func (m *memSchedules) IncrementBooked(_ context.Context, slotID uuid.UUID) (*schedule.TimeSlot, error) {
	s, ok := m.slots[slotID]
	if !ok {
		return nil, schedule.ErrSlotNotFound
	}
	if s.BookedCount >= s.MaxBookings {
		return nil, schedule.ErrSlotFull
	}
	s.BookedCount++
	out := *s
	return &out, nil
}

func (m *memSchedules) DecrementBooked(_ context.Context, slotID uuid.UUID) (*schedule.TimeSlot, error) {
	s, ok := m.slots[slotID]
	if !ok {
		return nil, schedule.ErrSlotNotFound
	}
	if s.BookedCount > 0 {
		s.BookedCount--
	}
	out := *s
	return &out, nil
}

// recordingPublisher captures pushed slot status events in order.
type recordingPublisher struct {
	events []struct {
		Ref         schedule.SlotRef
		BookedCount int
	}
}

func (p *recordingPublisher) SlotStatusChanged(_ context.Context, ref schedule.SlotRef, bookedCount, _ int) error {
	p.events = append(p.events, struct {
		Ref         schedule.SlotRef
		BookedCount int
	}{ref, bookedCount})
	return nil
}

type fixture struct {
	svc       *Service
	repo      *memRepo
	schedules *memSchedules
	publisher *recordingPublisher
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := newMemRepo()
	schedules := newMemSchedules()
	publisher := &recordingPublisher{}

	cfg := config.Config{
		AppointmentTTL:    10 * time.Minute,
		LockTTL:           5 * time.Second,
		MaxReschedules:    2,
		MinRescheduleLead: 24 * time.Hour,
	}

	svc := NewService(repo, schedules, redisclient.NewRedisSlotLocker(client, cfg.LockTTL), publisher, cfg, zerolog.Nop())

	f := &fixture{svc: svc, repo: repo, schedules: schedules, publisher: publisher, now: time.Now()}
	svc.now = func() time.Time { return f.now }
	return f
}

func futureDate(days int) string {
	return time.Now().AddDate(0, 0, days).Format(schedule.DateLayout)
}

func TestBook_HappyPath(t *testing.T) {
	f := newFixture(t)
	doctorID := uuid.New()
	slot := f.schedules.addDay(doctorID, futureDate(7), "09:00", 3)

	appt, err := f.svc.Book(context.Background(), BookRequest{
		PatientID: uuid.New(),
		ServiceID: uuid.New(),
		SlotID:    slot.ID,
		Symptoms:  "persistent cough",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, appt.Status)
	assert.Equal(t, doctorID, appt.DoctorID)
	require.NotNil(t, appt.ExpiresAt)

	updated, _ := f.schedules.GetSlotByID(context.Background(), slot.ID)
	assert.Equal(t, 1, updated.BookedCount)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, 1, f.publisher.events[0].BookedCount)

	require.Len(t, f.repo.events, 1)
	assert.Equal(t, EventAppointmentCreated, f.repo.events[0].EventType)
}

func TestBook_FullSlotConflicts(t *testing.T) {
	f := newFixture(t)
	slot := f.schedules.addDay(uuid.New(), futureDate(7), "09:00", 1)

	_, err := f.svc.Book(context.Background(), BookRequest{PatientID: uuid.New(), ServiceID: uuid.New(), SlotID: slot.ID})
	require.NoError(t, err)

	_, err = f.svc.Book(context.Background(), BookRequest{PatientID: uuid.New(), ServiceID: uuid.New(), SlotID: slot.ID})
	assert.ErrorIs(t, err, ErrSlotConflict)
}

func TestBook_PastSlotRejected(t *testing.T) {
	f := newFixture(t)
	slot := f.schedules.addDay(uuid.New(), futureDate(-1), "09:00", 3)

	_, err := f.svc.Book(context.Background(), BookRequest{PatientID: uuid.New(), ServiceID: uuid.New(), SlotID: slot.ID})
	assert.ErrorIs(t, err, ErrSlotInPast)
}

func TestConfirm_AfterExpiryReleasesSeat(t *testing.T) {
	f := newFixture(t)
	slot := f.schedules.addDay(uuid.New(), futureDate(7), "09:00", 3)

	appt, err := f.svc.Book(context.Background(), BookRequest{PatientID: uuid.New(), ServiceID: uuid.New(), SlotID: slot.ID})
	require.NoError(t, err)

	f.now = f.now.Add(11 * time.Minute)

	_, err = f.svc.Confirm(context.Background(), appt.ID)
	assert.ErrorIs(t, err, ErrAppointmentExpiredState)

	stored, _ := f.repo.GetByID(context.Background(), appt.ID)
	assert.Equal(t, StatusExpired, stored.Status)

	updated, _ := f.schedules.GetSlotByID(context.Background(), slot.ID)
	assert.Equal(t, 0, updated.BookedCount)
}

func TestCancel_ReleasesSeatAndRecordsReason(t *testing.T) {
	f := newFixture(t)
	slot := f.schedules.addDay(uuid.New(), futureDate(7), "09:00", 3)
	patientID := uuid.New()

	appt, err := f.svc.Book(context.Background(), BookRequest{PatientID: patientID, ServiceID: uuid.New(), SlotID: slot.ID})
	require.NoError(t, err)

	// Someone else cannot cancel.
	_, err = f.svc.Cancel(context.Background(), appt.ID, uuid.New(), "no longer needed")
	assert.ErrorIs(t, err, ErrNotAppointmentOwner)

	cancelled, err := f.svc.Cancel(context.Background(), appt.ID, patientID, "no longer needed")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelReason)
	assert.Equal(t, "no longer needed", *cancelled.CancelReason)

	updated, _ := f.schedules.GetSlotByID(context.Background(), slot.ID)
	assert.Equal(t, 0, updated.BookedCount)
}

func TestReschedule_MovesSeatBetweenSlots(t *testing.T) {
	f := newFixture(t)
	doctorID := uuid.New()
	oldSlot := f.schedules.addDay(doctorID, futureDate(7), "09:00", 3)
	newSlot := f.schedules.addDay(doctorID, futureDate(8), "10:00", 3)
	patientID := uuid.New()

	appt, err := f.svc.Book(context.Background(), BookRequest{PatientID: patientID, ServiceID: uuid.New(), SlotID: oldSlot.ID})
	require.NoError(t, err)

	moved, err := f.svc.Reschedule(context.Background(), appt.ID, patientID, newSlot.ID)
	require.NoError(t, err)

	assert.Equal(t, StatusRescheduled, moved.Status)
	assert.Equal(t, 1, moved.RescheduleCount)
	assert.Equal(t, newSlot.ID, moved.SlotID)

	oldUpdated, _ := f.schedules.GetSlotByID(context.Background(), oldSlot.ID)
	newUpdated, _ := f.schedules.GetSlotByID(context.Background(), newSlot.ID)
	assert.Equal(t, 0, oldUpdated.BookedCount)
	assert.Equal(t, 1, newUpdated.BookedCount)

	// Status events: book(old=1), reschedule new=1, then old=0.
	require.Len(t, f.publisher.events, 3)
	assert.Equal(t, newSlot.ID, f.publisher.events[1].Ref.SlotID)
	assert.Equal(t, oldSlot.ID, f.publisher.events[2].Ref.SlotID)
	assert.Equal(t, 0, f.publisher.events[2].BookedCount)
}

func TestReschedule_BudgetExhausted(t *testing.T) {
	f := newFixture(t)
	doctorID := uuid.New()
	patientID := uuid.New()

	slots := []*schedule.TimeSlot{
		f.schedules.addDay(doctorID, futureDate(7), "09:00", 3),
		f.schedules.addDay(doctorID, futureDate(8), "09:00", 3),
		f.schedules.addDay(doctorID, futureDate(9), "09:00", 3),
		f.schedules.addDay(doctorID, futureDate(10), "09:00", 3),
	}

	appt, err := f.svc.Book(context.Background(), BookRequest{PatientID: patientID, ServiceID: uuid.New(), SlotID: slots[0].ID})
	require.NoError(t, err)

	for _, next := range slots[1:3] {
		_, err = f.svc.Reschedule(context.Background(), appt.ID, patientID, next.ID)
		require.NoError(t, err)
	}

	_, err = f.svc.Reschedule(context.Background(), appt.ID, patientID, slots[3].ID)
	assert.ErrorIs(t, err, ErrRescheduleLimit)
}

func TestReschedule_LeadTimeEnforced(t *testing.T) {
	f := newFixture(t)
	doctorID := uuid.New()
	patientID := uuid.New()
	oldSlot := f.schedules.addDay(doctorID, futureDate(7), "09:00", 3)
	soonSlot := f.schedules.addDay(doctorID, time.Now().Format(schedule.DateLayout), "23:59", 3)

	appt, err := f.svc.Book(context.Background(), BookRequest{PatientID: patientID, ServiceID: uuid.New(), SlotID: oldSlot.ID})
	require.NoError(t, err)

	_, err = f.svc.Reschedule(context.Background(), appt.ID, patientID, soonSlot.ID)
	assert.ErrorIs(t, err, ErrRescheduleLeadTime)
}

func TestReschedule_FullTargetLeavesAppointmentIntact(t *testing.T) {
	f := newFixture(t)
	doctorID := uuid.New()
	patientID := uuid.New()
	oldSlot := f.schedules.addDay(doctorID, futureDate(7), "09:00", 3)
	fullSlot := f.schedules.addDay(doctorID, futureDate(8), "10:00", 1)

	_, err := f.svc.Book(context.Background(), BookRequest{PatientID: uuid.New(), ServiceID: uuid.New(), SlotID: fullSlot.ID})
	require.NoError(t, err)

	appt, err := f.svc.Book(context.Background(), BookRequest{PatientID: patientID, ServiceID: uuid.New(), SlotID: oldSlot.ID})
	require.NoError(t, err)

	_, err = f.svc.Reschedule(context.Background(), appt.ID, patientID, fullSlot.ID)
	assert.ErrorIs(t, err, ErrSlotConflict)

	stored, _ := f.repo.GetByID(context.Background(), appt.ID)
	assert.Equal(t, oldSlot.ID, stored.SlotID)
	assert.Equal(t, StatusPending, stored.Status)

	oldUpdated, _ := f.schedules.GetSlotByID(context.Background(), oldSlot.ID)
	assert.Equal(t, 1, oldUpdated.BookedCount)
}

func TestExpirePending_Worker(t *testing.T) {
	f := newFixture(t)
	slot := f.schedules.addDay(uuid.New(), futureDate(7), "09:00", 3)

	appt, err := f.svc.Book(context.Background(), BookRequest{PatientID: uuid.New(), ServiceID: uuid.New(), SlotID: slot.ID})
	require.NoError(t, err)

	f.now = f.now.Add(time.Hour)
	require.NoError(t, f.svc.ExpirePending(context.Background()))

	stored, _ := f.repo.GetByID(context.Background(), appt.ID)
	assert.Equal(t, StatusExpired, stored.Status)

	updated, _ := f.schedules.GetSlotByID(context.Background(), slot.ID)
	assert.Equal(t, 0, updated.BookedCount)
}
