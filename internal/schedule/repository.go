package schedule

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrSlotNotFound     = errors.New("slot not found")
	ErrSlotFull         = errors.New("slot has no remaining capacity")
	ErrScheduleExists   = errors.New("schedule already exists for doctor and date")
	ErrSlotHasBookings  = errors.New("slot has active bookings")
)

// Repository contains all DB interactions needed by the schedule and
// appointment services.
type Repository interface {
	CreateSchedule(ctx context.Context, sched *Schedule) (*Schedule, error)
	GetScheduleByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	GetDoctorSchedule(ctx context.Context, doctorID uuid.UUID, date string) (*Schedule, error)
	ListSchedulesByDoctor(ctx context.Context, doctorID uuid.UUID, from, to string) ([]Schedule, error)
	DeleteSchedule(ctx context.Context, id uuid.UUID) error

	AddSlot(ctx context.Context, scheduleID uuid.UUID, slot TimeSlot) (*TimeSlot, error)
	UpdateSlot(ctx context.Context, slot TimeSlot) (*TimeSlot, error)
	DeleteSlot(ctx context.Context, id uuid.UUID) error

	// GetSlotRef resolves a slot to its doctor+date room coordinates.
	GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error)
	GetSlotRef(ctx context.Context, id uuid.UUID) (*SlotRef, error)

	// Capacity mutations used by the booking flow, conditional on remaining
	// capacity so the count can never overshoot max_bookings.
	IncrementBooked(ctx context.Context, slotID uuid.UUID) (*TimeSlot, error)
	DecrementBooked(ctx context.Context, slotID uuid.UUID) (*TimeSlot, error)
}
