package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidDate      = errors.New("date must be formatted YYYY-MM-DD")
	ErrInvalidSlot      = errors.New("slot start must precede end and capacity must be positive")
	ErrOverlappingSlot  = errors.New("slot overlaps an existing slot")
	ErrNotScheduleOwner = errors.New("schedule belongs to another doctor")
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateSchedule opens a doctor's day with an initial set of slots. One
// schedule per doctor and date.
func (s *Service) CreateSchedule(ctx context.Context, doctorID, hospitalID uuid.UUID, date string, slots []TimeSlot) (*Schedule, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, ErrInvalidDate
	}

	for i, slot := range slots {
		if err := validateSlot(slot); err != nil {
			return nil, err
		}
		for _, other := range slots[:i] {
			if overlaps(slot, other) {
				return nil, ErrOverlappingSlot
			}
		}
	}

	created, err := s.repo.CreateSchedule(ctx, &Schedule{
		DoctorID:   doctorID,
		HospitalID: hospitalID,
		Date:       date,
		Slots:      slots,
	})
	if err != nil {
		return nil, fmt.Errorf("create schedule: %w", err)
	}
	return created, nil
}

// GetDoctorDay returns the schedule (with per-slot remaining capacity) for a
// doctor on a specific date; this backs the reschedule picker.
func (s *Service) GetDoctorDay(ctx context.Context, doctorID uuid.UUID, date string) (*Schedule, error) {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return nil, ErrInvalidDate
	}
	sched, err := s.repo.GetDoctorSchedule(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("get doctor schedule: %w", err)
	}
	return sched, nil
}

func (s *Service) ListDoctorRange(ctx context.Context, doctorID uuid.UUID, from, to string) ([]Schedule, error) {
	for _, d := range []string{from, to} {
		if _, err := time.Parse(DateLayout, d); err != nil {
			return nil, ErrInvalidDate
		}
	}
	scheds, err := s.repo.ListSchedulesByDoctor(ctx, doctorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return scheds, nil
}

// AddSlot appends a slot to an existing schedule owned by doctorID.
func (s *Service) AddSlot(ctx context.Context, doctorID, scheduleID uuid.UUID, slot TimeSlot) (*TimeSlot, error) {
	if err := validateSlot(slot); err != nil {
		return nil, err
	}

	sched, err := s.ownedSchedule(ctx, doctorID, scheduleID)
	if err != nil {
		return nil, err
	}
	for _, other := range sched.Slots {
		if overlaps(slot, other) {
			return nil, ErrOverlappingSlot
		}
	}

	added, err := s.repo.AddSlot(ctx, scheduleID, slot)
	if err != nil {
		return nil, fmt.Errorf("add slot: %w", err)
	}
	return added, nil
}

// UpdateSlot edits a slot's window or capacity. Shrinking capacity below the
// current booked count is rejected.
func (s *Service) UpdateSlot(ctx context.Context, doctorID uuid.UUID, slot TimeSlot) (*TimeSlot, error) {
	if err := validateSlot(slot); err != nil {
		return nil, err
	}

	current, err := s.repo.GetSlotByID(ctx, slot.ID)
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}
	if _, err := s.ownedSchedule(ctx, doctorID, current.ScheduleID); err != nil {
		return nil, err
	}
	if slot.MaxBookings < current.BookedCount {
		return nil, ErrSlotHasBookings
	}

	updated, err := s.repo.UpdateSlot(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("update slot: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteSlot(ctx context.Context, doctorID, slotID uuid.UUID) error {
	current, err := s.repo.GetSlotByID(ctx, slotID)
	if err != nil {
		return fmt.Errorf("load slot: %w", err)
	}
	if _, err := s.ownedSchedule(ctx, doctorID, current.ScheduleID); err != nil {
		return err
	}
	return s.repo.DeleteSlot(ctx, slotID)
}

func (s *Service) DeleteSchedule(ctx context.Context, doctorID, scheduleID uuid.UUID) error {
	if _, err := s.ownedSchedule(ctx, doctorID, scheduleID); err != nil {
		return err
	}
	return s.repo.DeleteSchedule(ctx, scheduleID)
}

func (s *Service) ownedSchedule(ctx context.Context, doctorID, scheduleID uuid.UUID) (*Schedule, error) {
	sched, err := s.repo.GetScheduleByID(ctx, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}
	if sched.DoctorID != doctorID {
		return nil, ErrNotScheduleOwner
	}
	return sched, nil
}

func validateSlot(slot TimeSlot) error {
	start, errStart := time.Parse("15:04", slot.StartTime)
	end, errEnd := time.Parse("15:04", slot.EndTime)
	if errStart != nil || errEnd != nil || !start.Before(end) || slot.MaxBookings <= 0 {
		return ErrInvalidSlot
	}
	return nil
}

func overlaps(a, b TimeSlot) bool {
	return a.StartTime < b.EndTime && b.StartTime < a.EndTime
}
