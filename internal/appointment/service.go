package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caredesk/clinic-booking/internal/config"
	redisclient "github.com/caredesk/clinic-booking/internal/redis"
	"github.com/caredesk/clinic-booking/internal/schedule"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed   = "APPOINTMENT_CONFIRMED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentExpired     = "APPOINTMENT_EXPIRED"
)

var (
	ErrSlotConflict            = errors.New("slot filled before the booking completed")
	ErrSlotBeingBooked         = errors.New("slot is currently being booked, please retry")
	ErrSlotInPast              = errors.New("slot start time is in the past")
	ErrNotAppointmentOwner     = errors.New("appointment belongs to another patient")
	ErrNotAppointmentDoctor    = errors.New("appointment belongs to another doctor")
	ErrAppointmentExpiredState = errors.New("appointment is already expired")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrRescheduleLimit         = errors.New("reschedule limit reached")
	ErrRescheduleLeadTime      = errors.New("new slot starts too soon to reschedule")
)

// SlotEventPublisher pushes live capacity changes into the doctor+date rooms
// on the push channel. Publishing is advisory; booking never depends on it.
type SlotEventPublisher interface {
	SlotStatusChanged(ctx context.Context, ref schedule.SlotRef, bookedCount, maxBookings int) error
}

type Service struct {
	repo      Repository
	schedules schedule.Repository
	locker    redisclient.Locker
	publisher SlotEventPublisher
	cfg       config.Config
	log       zerolog.Logger

	now func() time.Time
}

func NewService(repo Repository, schedules schedule.Repository, locker redisclient.Locker, publisher SlotEventPublisher, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		schedules: schedules,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// BookRequest carries the patient's booking intent; doctor and hospital are
// derived from the slot's schedule.
type BookRequest struct {
	PatientID uuid.UUID
	ServiceID uuid.UUID
	SlotID    uuid.UUID
	Symptoms  string
}

// Book reserves a slot seat for a patient. A distributed lock per slot keeps
// concurrent requests from racing the capacity check; the reservation stays
// pending until confirmed or expired.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	slot, err := s.schedules.GetSlotByID(ctx, req.SlotID)
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}

	sched, err := s.schedules.GetScheduleByID(ctx, slot.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("load schedule: %w", err)
	}

	startsAt, err := slot.StartsAt(sched.Date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("parse slot start: %w", err)
	}
	if startsAt.Before(s.now()) {
		return nil, ErrSlotInPast
	}

	var created *Appointment

	err = s.locker.WithSlotLock(ctx, req.SlotID, func(lockCtx context.Context) error {
		updated, err := s.schedules.IncrementBooked(lockCtx, req.SlotID)
		if err != nil {
			if errors.Is(err, schedule.ErrSlotFull) {
				return ErrSlotConflict
			}
			return fmt.Errorf("reserve slot capacity: %w", err)
		}

		expiresAt := s.now().Add(s.cfg.AppointmentTTL)
		appt, err := s.repo.CreatePending(lockCtx, &Appointment{
			PatientID:  req.PatientID,
			DoctorID:   sched.DoctorID,
			HospitalID: sched.HospitalID,
			ServiceID:  req.ServiceID,
			SlotID:     req.SlotID,
			Symptoms:   req.Symptoms,
		}, expiresAt)
		if err != nil {
			// Give the seat back so the failed insert does not leak capacity.
			if _, decErr := s.schedules.DecrementBooked(lockCtx, req.SlotID); decErr != nil {
				s.log.Error().Err(decErr).Stringer("slot_id", req.SlotID).Msg("capacity compensation failed")
			}
			return fmt.Errorf("create pending appointment: %w", err)
		}

		created = appt
		s.publishSlotStatus(lockCtx, req.SlotID, updated.BookedCount, updated.MaxBookings)
		s.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"slot_id":    req.SlotID.String(),
			"patient_id": req.PatientID.String(),
			"expires_at": expiresAt,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// Confirm moves a pending or rescheduled appointment to confirmed, expiring
// it instead when its hold has lapsed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status == StatusExpired {
		return nil, ErrAppointmentExpiredState
	}

	if appt.Status == StatusPending && appt.ExpiresAt != nil && appt.ExpiresAt.Before(s.now()) {
		s.expireOne(ctx, *appt, "confirm_after_expiry")
		return nil, ErrAppointmentExpiredState
	}

	if appt.Status != StatusPending && appt.Status != StatusRescheduled {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, appt.Status, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{})
	return updated, nil
}

// Complete marks a confirmed appointment done; only the treating doctor may.
func (s *Service) Complete(ctx context.Context, id, doctorID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.DoctorID != doctorID {
		return nil, ErrNotAppointmentDoctor
	}
	if appt.Status != StatusConfirmed {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.UpdateStatus(ctx, appt.ID, StatusConfirmed, StatusCompleted)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("complete appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentCompleted, map[string]any{})
	return updated, nil
}

// Cancel releases the slot seat and records the patient's reason.
func (s *Service) Cancel(ctx context.Context, id, patientID uuid.UUID, reason string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.PatientID != patientID {
		return nil, ErrNotAppointmentOwner
	}
	if appt.Status.Terminal() {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.Cancel(ctx, appt.ID, appt.Status, reason)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	s.releaseSeat(ctx, updated.SlotID)
	s.logEvent(ctx, updated.ID, EventAppointmentCancelled, map[string]any{"reason": reason})
	return updated, nil
}

// Reschedule moves an appointment to a new slot, keeping the record and
// bumping its reschedule count. Business limits: a per-appointment budget and
// a minimum lead time on the new slot. Capacity on the new slot is re-checked
// inside the slot lock; a full slot surfaces as ErrSlotConflict for the
// client to retry with a different slot.
func (s *Service) Reschedule(ctx context.Context, id, patientID, newSlotID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.PatientID != patientID {
		return nil, ErrNotAppointmentOwner
	}
	if appt.Status.Terminal() {
		return nil, ErrInvalidStatusTransition
	}
	if appt.RescheduleCount >= s.cfg.MaxReschedules {
		return nil, ErrRescheduleLimit
	}
	if newSlotID == appt.SlotID {
		return nil, ErrInvalidStatusTransition
	}

	newSlot, err := s.schedules.GetSlotByID(ctx, newSlotID)
	if err != nil {
		return nil, fmt.Errorf("load new slot: %w", err)
	}
	newSched, err := s.schedules.GetScheduleByID(ctx, newSlot.ScheduleID)
	if err != nil {
		return nil, fmt.Errorf("load new schedule: %w", err)
	}
	startsAt, err := newSlot.StartsAt(newSched.Date, time.Local)
	if err != nil {
		return nil, fmt.Errorf("parse slot start: %w", err)
	}
	if startsAt.Before(s.now().Add(s.cfg.MinRescheduleLead)) {
		return nil, ErrRescheduleLeadTime
	}

	oldSlotID := appt.SlotID
	var moved *Appointment

	err = s.locker.WithSlotLock(ctx, newSlotID, func(lockCtx context.Context) error {
		updated, err := s.schedules.IncrementBooked(lockCtx, newSlotID)
		if err != nil {
			if errors.Is(err, schedule.ErrSlotFull) {
				return ErrSlotConflict
			}
			return fmt.Errorf("reserve new slot capacity: %w", err)
		}

		moved, err = s.repo.MoveToSlot(lockCtx, appt.ID, newSlotID)
		if err != nil {
			if _, decErr := s.schedules.DecrementBooked(lockCtx, newSlotID); decErr != nil {
				s.log.Error().Err(decErr).Stringer("slot_id", newSlotID).Msg("capacity compensation failed")
			}
			return fmt.Errorf("move appointment: %w", err)
		}

		s.publishSlotStatus(lockCtx, newSlotID, updated.BookedCount, updated.MaxBookings)
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	s.releaseSeat(ctx, oldSlotID)
	s.logEvent(ctx, moved.ID, EventAppointmentRescheduled, map[string]any{
		"from_slot_id": oldSlotID.String(),
		"to_slot_id":   newSlotID.String(),
		"count":        moved.RescheduleCount,
	})

	return moved, nil
}

// ExpirePending is called by the worker periodically.
func (s *Service) ExpirePending(ctx context.Context) error {
	expiredCandidates, err := s.repo.FindExpiredPending(ctx, s.now())
	if err != nil {
		return fmt.Errorf("find expired pending appointments: %w", err)
	}

	for _, appt := range expiredCandidates {
		s.expireOne(ctx, appt, "worker")
	}

	return nil
}

func (s *Service) expireOne(ctx context.Context, appt Appointment, reason string) {
	_, err := s.repo.UpdateStatus(ctx, appt.ID, StatusPending, StatusExpired)
	if err != nil {
		// Already transitioned by a concurrent actor; nothing to release.
		if !errors.Is(err, ErrAppointmentNotFound) {
			s.log.Error().Err(err).Stringer("appointment_id", appt.ID).Msg("expire appointment failed")
		}
		return
	}

	s.releaseSeat(ctx, appt.SlotID)
	s.logEvent(ctx, appt.ID, EventAppointmentExpired, map[string]any{"reason": reason})
}

// Get retrieves a fully hydrated appointment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	detail, err := s.repo.GetDetail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return detail, nil
}

// List retrieves appointments matching the filter with clamped paging.
func (s *Service) List(ctx context.Context, f Filter) ([]Detail, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	details, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return details, nil
}

// releaseSeat decrements a slot's booked count and pushes the change to the
// room. Failures are logged, not propagated: the appointment transition
// already committed.
func (s *Service) releaseSeat(ctx context.Context, slotID uuid.UUID) {
	slot, err := s.schedules.DecrementBooked(ctx, slotID)
	if err != nil {
		s.log.Error().Err(err).Stringer("slot_id", slotID).Msg("release slot seat failed")
		return
	}
	s.publishSlotStatus(ctx, slotID, slot.BookedCount, slot.MaxBookings)
}

func (s *Service) publishSlotStatus(ctx context.Context, slotID uuid.UUID, bookedCount, maxBookings int) {
	if s.publisher == nil {
		return
	}

	ref, err := s.schedules.GetSlotRef(ctx, slotID)
	if err != nil {
		s.log.Warn().Err(err).Stringer("slot_id", slotID).Msg("resolve slot room failed")
		return
	}
	if err := s.publisher.SlotStatusChanged(ctx, *ref, bookedCount, maxBookings); err != nil {
		s.log.Warn().Err(err).Stringer("slot_id", slotID).Msg("publish slot status failed")
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Msg("marshal event payload failed")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).Str("event_type", eventType).Stringer("appointment_id", appointmentID).Msg("insert event log failed")
	}
}
