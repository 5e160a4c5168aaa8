package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

// Filter narrows appointment listings; zero values mean "any".
type Filter struct {
	PatientID uuid.UUID
	DoctorID  uuid.UUID
	SlotID    uuid.UUID
	Status    Status
	Limit     int
	Offset    int
}

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error)
	List(ctx context.Context, f Filter) ([]Detail, error)

	CreatePending(ctx context.Context, appt *Appointment, expiresAt time.Time) (*Appointment, error)

	// UpdateStatus is a compare-and-set on status so concurrent transitions
	// cannot race each other.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, from Status, reason string) (*Appointment, error)
	MoveToSlot(ctx context.Context, id uuid.UUID, newSlotID uuid.UUID) (*Appointment, error)

	// HasCompletedAppointment and HasCompletedHospitalAppointment back the
	// review-eligibility checks.
	HasCompletedAppointment(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error)
	HasCompletedHospitalAppointment(ctx context.Context, patientID, hospitalID uuid.UUID) (bool, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
