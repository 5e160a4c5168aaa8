package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusRescheduled Status = "rescheduled"
	StatusExpired     Status = "expired"
)

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

type Appointment struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patientId"`
	DoctorID        uuid.UUID  `json:"doctorId"`
	HospitalID      uuid.UUID  `json:"hospitalId"`
	ServiceID       uuid.UUID  `json:"serviceId"`
	SlotID          uuid.UUID  `json:"slotId"`
	Status          Status     `json:"status"`
	Symptoms        string     `json:"symptoms"`
	CancelReason    *string    `json:"cancelReason"`
	RescheduleCount int        `json:"rescheduleCount"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
	ExpiresAt       *time.Time `json:"expiresAt"`
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Detail is an appointment hydrated with its slot coordinates for display.
type Detail struct {
	Appointment
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}
