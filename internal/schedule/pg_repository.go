package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

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

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var s Schedule
	var date time.Time

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.HospitalID,
		&date,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrScheduleNotFound
		}
		return nil, err
	}

	s.Date = date.Format(DateLayout)
	return &s, nil
}

func scanSlot(row pgx.Row) (*TimeSlot, error) {
	var s TimeSlot
	var roomID *uuid.UUID

	err := row.Scan(
		&s.ID,
		&s.ScheduleID,
		&s.StartTime,
		&s.EndTime,
		&s.BookedCount,
		&s.MaxBookings,
		&roomID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.RoomID = roomID
	return &s, nil
}

func (r *PgRepository) CreateSchedule(ctx context.Context, sched *Schedule) (*Schedule, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedules (id, doctor_id, hospital_id, date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (doctor_id, date) DO NOTHING
		RETURNING id, doctor_id, hospital_id, date, created_at, updated_at
	`, id, sched.DoctorID, sched.HospitalID, sched.Date)

	created, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, ErrScheduleNotFound) {
			return nil, ErrScheduleExists
		}
		return nil, err
	}

	for _, slot := range sched.Slots {
		added, err := r.AddSlot(ctx, created.ID, slot)
		if err != nil {
			return nil, err
		}
		created.Slots = append(created.Slots, *added)
	}

	return created, nil
}

func (r *PgRepository) GetScheduleByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, hospital_id, date, created_at, updated_at
		FROM schedules
		WHERE id = $1
	`, id)

	sched, err := scanSchedule(row)
	if err != nil {
		return nil, err
	}
	return r.attachSlots(ctx, sched)
}

func (r *PgRepository) GetDoctorSchedule(ctx context.Context, doctorID uuid.UUID, date string) (*Schedule, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, hospital_id, date, created_at, updated_at
		FROM schedules
		WHERE doctor_id = $1 AND date = $2
	`, doctorID, date)

	sched, err := scanSchedule(row)
	if err != nil {
		return nil, err
	}
	return r.attachSlots(ctx, sched)
}

func (r *PgRepository) ListSchedulesByDoctor(ctx context.Context, doctorID uuid.UUID, from, to string) ([]Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, hospital_id, date, created_at, updated_at
		FROM schedules
		WHERE doctor_id = $1 AND date BETWEEN $2 AND $3
		ORDER BY date
	`, doctorID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		if _, err := r.attachSlots(ctx, &result[i]); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (r *PgRepository) DeleteSchedule(ctx context.Context, id uuid.UUID) error {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM schedules
		WHERE id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM time_slots
			WHERE schedule_id = $1 AND booked_count > 0
		  )
		RETURNING id
	`, id)

	var deleted uuid.UUID
	if err := row.Scan(&deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either missing or still carrying bookings; disambiguate.
			if _, getErr := r.GetScheduleByID(ctx, id); getErr != nil {
				return getErr
			}
			return ErrSlotHasBookings
		}
		return err
	}
	return nil
}

func (r *PgRepository) AddSlot(ctx context.Context, scheduleID uuid.UUID, slot TimeSlot) (*TimeSlot, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO time_slots (id, schedule_id, start_time, end_time, booked_count, max_bookings, room_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, now(), now())
		RETURNING id, schedule_id, start_time, end_time, booked_count, max_bookings, room_id, created_at, updated_at
	`, id, scheduleID, slot.StartTime, slot.EndTime, slot.MaxBookings, slot.RoomID)

	return scanSlot(row)
}

func (r *PgRepository) UpdateSlot(ctx context.Context, slot TimeSlot) (*TimeSlot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE time_slots
		SET start_time = $2,
		    end_time = $3,
		    max_bookings = $4,
		    room_id = $5,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, schedule_id, start_time, end_time, booked_count, max_bookings, room_id, created_at, updated_at
	`, slot.ID, slot.StartTime, slot.EndTime, slot.MaxBookings, slot.RoomID)

	return scanSlot(row)
}

func (r *PgRepository) DeleteSlot(ctx context.Context, id uuid.UUID) error {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM time_slots
		WHERE id = $1 AND booked_count = 0
		RETURNING id
	`, id)

	var deleted uuid.UUID
	if err := row.Scan(&deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := r.GetSlotByID(ctx, id); getErr != nil {
				return getErr
			}
			return ErrSlotHasBookings
		}
		return err
	}
	return nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, id uuid.UUID) (*TimeSlot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, schedule_id, start_time, end_time, booked_count, max_bookings, room_id, created_at, updated_at
		FROM time_slots
		WHERE id = $1
	`, id)
	return scanSlot(row)
}

func (r *PgRepository) GetSlotRef(ctx context.Context, id uuid.UUID) (*SlotRef, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT ts.id, s.doctor_id, s.date, ts.start_time
		FROM time_slots ts
		JOIN schedules s ON s.id = ts.schedule_id
		WHERE ts.id = $1
	`, id)

	var ref SlotRef
	var date time.Time
	if err := row.Scan(&ref.SlotID, &ref.DoctorID, &date, &ref.Start); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	ref.Date = date.Format(DateLayout)
	return &ref, nil
}

func (r *PgRepository) IncrementBooked(ctx context.Context, slotID uuid.UUID) (*TimeSlot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE time_slots
		SET booked_count = booked_count + 1,
		    updated_at = now()
		WHERE id = $1
		  AND booked_count < max_bookings
		RETURNING id, schedule_id, start_time, end_time, booked_count, max_bookings, room_id, created_at, updated_at
	`, slotID)

	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			// No row matched: missing slot or full slot.
			if _, getErr := r.GetSlotByID(ctx, slotID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrSlotFull
		}
		return nil, err
	}
	return slot, nil
}

func (r *PgRepository) DecrementBooked(ctx context.Context, slotID uuid.UUID) (*TimeSlot, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE time_slots
		SET booked_count = booked_count - 1,
		    updated_at = now()
		WHERE id = $1
		  AND booked_count > 0
		RETURNING id, schedule_id, start_time, end_time, booked_count, max_bookings, room_id, created_at, updated_at
	`, slotID)

	slot, err := scanSlot(row)
	if err != nil {
		if errors.Is(err, ErrSlotNotFound) {
			return r.GetSlotByID(ctx, slotID)
		}
		return nil, err
	}
	return slot, nil
}

func (r *PgRepository) attachSlots(ctx context.Context, sched *Schedule) (*Schedule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, schedule_id, start_time, end_time, booked_count, max_bookings, room_id, created_at, updated_at
		FROM time_slots
		WHERE schedule_id = $1
		ORDER BY start_time
	`, sched.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sched.Slots = sched.Slots[:0]
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		sched.Slots = append(sched.Slots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sched, nil
}
