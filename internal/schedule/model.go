package schedule

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire and room-key format for schedule dates.
const DateLayout = "2006-01-02"

// Schedule is one doctor's bookable day at a hospital.
type Schedule struct {
	ID         uuid.UUID  `json:"id"`
	DoctorID   uuid.UUID  `json:"doctorId"`
	HospitalID uuid.UUID  `json:"hospitalId"`
	Date       string     `json:"date"` // DateLayout
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Slots      []TimeSlot `json:"slots"`
}

// TimeSlot is a bookable window inside a schedule. Capacity is soft: a slot
// stays open until booked_count reaches max_bookings.
type TimeSlot struct {
	ID          uuid.UUID  `json:"id"`
	ScheduleID  uuid.UUID  `json:"scheduleId"`
	StartTime   string     `json:"startTime"` // "15:04"
	EndTime     string     `json:"endTime"`
	BookedCount int        `json:"bookedCount"`
	MaxBookings int        `json:"maxBookings"`
	RoomID      *uuid.UUID `json:"roomId"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// IsBooked reports whether the slot has no remaining capacity.
func (s TimeSlot) IsBooked() bool {
	return s.BookedCount >= s.MaxBookings
}

// Remaining is the number of bookings the slot can still take.
func (s TimeSlot) Remaining() int {
	if r := s.MaxBookings - s.BookedCount; r > 0 {
		return r
	}
	return 0
}

// SlotRef locates a slot inside its push-channel room.
type SlotRef struct {
	SlotID   uuid.UUID `json:"slotId"`
	DoctorID uuid.UUID `json:"doctorId"`
	Date     string    `json:"date"`
	Start    string    `json:"start"`
}

// StartsAt combines the schedule date and slot start into a point in time,
// interpreted in loc.
func (s TimeSlot) StartsAt(date string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" 15:04", date+" "+s.StartTime, loc)
}
