package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const appointmentColumns = `id, patient_id, doctor_id, hospital_id, service_id, slot_id,
	status, symptoms, cancel_reason, reschedule_count, created_at, updated_at, expires_at`

// Querier is the subset of pgxpool.Pool the repository uses; pgxmock
// satisfies it in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PgRepository struct {
	pool Querier
}

func NewPgRepository(pool Querier) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var cancelReason *string
	var expiresAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.HospitalID,
		&a.ServiceID,
		&a.SlotID,
		&a.Status,
		&a.Symptoms,
		&cancelReason,
		&a.RescheduleCount,
		&a.CreatedAt,
		&a.UpdatedAt,
		&expiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.CancelReason = cancelReason
	a.ExpiresAt = expiresAt
	return &a, nil
}

func scanDetail(row pgx.Row) (*Detail, error) {
	var d Detail
	var cancelReason *string
	var expiresAt *time.Time
	var date time.Time

	err := row.Scan(
		&d.ID,
		&d.PatientID,
		&d.DoctorID,
		&d.HospitalID,
		&d.ServiceID,
		&d.SlotID,
		&d.Status,
		&d.Symptoms,
		&cancelReason,
		&d.RescheduleCount,
		&d.CreatedAt,
		&d.UpdatedAt,
		&expiresAt,
		&date,
		&d.StartTime,
		&d.EndTime,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	d.CancelReason = cancelReason
	d.ExpiresAt = expiresAt
	d.Date = date.Format("2006-01-02")
	return &d, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

const detailQuery = `
	SELECT a.id, a.patient_id, a.doctor_id, a.hospital_id, a.service_id, a.slot_id,
	       a.status, a.symptoms, a.cancel_reason, a.reschedule_count,
	       a.created_at, a.updated_at, a.expires_at,
	       s.date, ts.start_time, ts.end_time
	FROM appointments a
	JOIN time_slots ts ON ts.id = a.slot_id
	JOIN schedules s ON s.id = ts.schedule_id`

func (r *PgRepository) GetDetail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	row := r.pool.QueryRow(ctx, detailQuery+`
	WHERE a.id = $1
	`, id)
	return scanDetail(row)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Detail, error) {
	query := detailQuery + `
	WHERE ($1::uuid IS NULL OR a.patient_id = $1)
	  AND ($2::uuid IS NULL OR a.doctor_id = $2)
	  AND ($3::uuid IS NULL OR a.slot_id = $3)
	  AND ($4::text IS NULL OR a.status = $4)
	ORDER BY a.created_at DESC
	LIMIT $5 OFFSET $6`

	rows, err := r.pool.Query(ctx, query,
		nilIfZero(f.PatientID),
		nilIfZero(f.DoctorID),
		nilIfZero(f.SlotID),
		nilIfEmpty(string(f.Status)),
		f.Limit,
		f.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Detail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) CreatePending(ctx context.Context, appt *Appointment, expiresAt time.Time) (*Appointment, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, hospital_id, service_id, slot_id,
			status, symptoms, reschedule_count, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, 0, now(), now(), $8)
		RETURNING `+appointmentColumns+`
	`, id, appt.PatientID, appt.DoctorID, appt.HospitalID, appt.ServiceID, appt.SlotID,
		appt.Symptoms, expiresAt)

	return scanAppointment(row)
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) Cancel(ctx context.Context, id uuid.UUID, from Status, reason string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = 'cancelled',
		    cancel_reason = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = $2
		RETURNING `+appointmentColumns+`
	`, id, from, reason)

	return scanAppointment(row)
}

func (r *PgRepository) MoveToSlot(ctx context.Context, id uuid.UUID, newSlotID uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET slot_id = $2,
		    status = 'rescheduled',
		    reschedule_count = reschedule_count + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns+`
	`, id, newSlotID)

	return scanAppointment(row)
}

func (r *PgRepository) HasCompletedAppointment(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1 AND doctor_id = $2 AND status = 'completed'
		)
	`, patientID, doctorID)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) HasCompletedHospitalAppointment(ctx context.Context, patientID, hospitalID uuid.UUID) (bool, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1 AND hospital_id = $2 AND status = 'completed'
		)
	`, patientID, hospitalID)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
		RETURNING id
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))

	var id int64
	if err := row.Scan(&id); err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nilIfZero(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
