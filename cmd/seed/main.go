// Command seed fills a migrated database with demo data: hospitals with
// branches, specialties, services, doctors with login accounts, two weeks of
// schedules, patients, and a few news articles. Every account gets the
// password "password123".
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/caredesk/clinic-booking/internal/config"
	"github.com/caredesk/clinic-booking/internal/db"
)

const (
	hospitalCount   = 3
	doctorsPerHosp  = 8
	patientCount    = 200
	scheduleDays    = 14
	defaultPassword = "password123"
)

var specialtyNames = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	hash, err := bcrypt.GenerateFromPassword([]byte(defaultPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	passwordHash := string(hash)

	s := seeder{pool: pool, passwordHash: passwordHash}

	if err := s.run(ctx); err != nil {
		log.Fatalf("seed: %v", err)
	}

	log.Println("seed complete")
}

type seeder struct {
	pool         *pgxpool.Pool
	passwordHash string
}

func (s *seeder) run(ctx context.Context) error {
	specialtyIDs, err := s.seedSpecialties(ctx)
	if err != nil {
		return fmt.Errorf("specialties: %w", err)
	}

	hospitalIDs, err := s.seedHospitals(ctx)
	if err != nil {
		return fmt.Errorf("hospitals: %w", err)
	}

	serviceIDs := map[uuid.UUID][]uuid.UUID{}
	doctorIDs := map[uuid.UUID][]uuid.UUID{}
	for _, hospitalID := range hospitalIDs {
		if err := s.seedBranches(ctx, hospitalID); err != nil {
			return fmt.Errorf("branches: %w", err)
		}
		ids, err := s.seedServices(ctx, hospitalID, specialtyIDs)
		if err != nil {
			return fmt.Errorf("services: %w", err)
		}
		serviceIDs[hospitalID] = ids

		docs, err := s.seedDoctors(ctx, hospitalID, specialtyIDs)
		if err != nil {
			return fmt.Errorf("doctors: %w", err)
		}
		doctorIDs[hospitalID] = docs
	}

	for hospitalID, docs := range doctorIDs {
		for _, doctorID := range docs {
			if err := s.seedSchedules(ctx, doctorID, hospitalID); err != nil {
				return fmt.Errorf("schedules: %w", err)
			}
		}
	}

	if err := s.seedPatients(ctx, patientCount); err != nil {
		return fmt.Errorf("patients: %w", err)
	}
	if err := s.seedAdmin(ctx); err != nil {
		return fmt.Errorf("admin: %w", err)
	}
	if err := s.seedNews(ctx); err != nil {
		return fmt.Errorf("news: %w", err)
	}
	return nil
}

func (s *seeder) seedSpecialties(ctx context.Context) ([]uuid.UUID, error) {
	log.Printf("seeding %d specialties", len(specialtyNames))

	ids := make([]uuid.UUID, 0, len(specialtyNames))
	for _, name := range specialtyNames {
		id := uuid.New()
		_, err := s.pool.Exec(ctx, `
			INSERT INTO specialties (id, name, description, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, true, now(), now())
		`, id, name, gofakeit.Sentence(12))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *seeder) seedHospitals(ctx context.Context) ([]uuid.UUID, error) {
	log.Printf("seeding %d hospitals", hospitalCount)

	ids := make([]uuid.UUID, 0, hospitalCount)
	for i := 0; i < hospitalCount; i++ {
		id := uuid.New()
		_, err := s.pool.Exec(ctx, `
			INSERT INTO hospitals (id, name, address, phone, description, image_url, rating, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, 0, true, now(), now())
		`, id,
			gofakeit.Company()+" Medical Center",
			gofakeit.Address().Address,
			gofakeit.Phone(),
			gofakeit.Paragraph(1, 3, 12, " "),
			gofakeit.ImageURL(640, 480),
		)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *seeder) seedBranches(ctx context.Context, hospitalID uuid.UUID) error {
	n := gofakeit.Number(1, 3)
	for i := 0; i < n; i++ {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO branches (id, hospital_id, name, address, phone, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, true, now(), now())
		`, uuid.New(), hospitalID,
			gofakeit.City()+" Branch",
			gofakeit.Address().Address,
			gofakeit.Phone(),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) seedServices(ctx context.Context, hospitalID uuid.UUID, specialtyIDs []uuid.UUID) ([]uuid.UUID, error) {
	names := []string{
		"General Checkup",
		"Specialist Consultation",
		"Blood Panel",
		"Ultrasound",
		"X-Ray",
		"Vaccination",
	}

	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		id := uuid.New()
		specialtyID := specialtyIDs[gofakeit.Number(0, len(specialtyIDs)-1)]
		_, err := s.pool.Exec(ctx, `
			INSERT INTO services (id, hospital_id, specialty_id, name, description, price, duration_minutes, image_url, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, now(), now())
		`, id, hospitalID, specialtyID, name,
			gofakeit.Sentence(10),
			int64(gofakeit.Number(20, 300))*1000,
			30,
			gofakeit.ImageURL(640, 480),
		)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *seeder) seedDoctors(ctx context.Context, hospitalID uuid.UUID, specialtyIDs []uuid.UUID) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors for hospital %s", doctorsPerHosp, hospitalID)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, doctorsPerHosp)
	for i := 0; i < doctorsPerHosp; i++ {
		name := gofakeit.Name()
		userID := uuid.New()

		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, role, name, email, phone, password_hash, created_at, updated_at)
			VALUES ($1, 'doctor', $2, $3, $4, $5, now(), now())
		`, userID, "Dr. "+name, gofakeit.Email(), gofakeit.Phone(), s.passwordHash)
		if err != nil {
			return nil, err
		}

		doctorID := uuid.New()
		specialtyID := specialtyIDs[gofakeit.Number(0, len(specialtyIDs)-1)]
		_, err = tx.Exec(ctx, `
			INSERT INTO doctors (id, user_id, hospital_id, specialty_id, name, title, description, price, avatar_url, rating, rating_count, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0, true, now(), now())
		`, doctorID, userID, hospitalID, specialtyID,
			"Dr. "+name,
			gofakeit.RandomString([]string{"MD", "MD, PhD", "Specialist II", "Associate Professor"}),
			gofakeit.Paragraph(1, 2, 14, " "),
			int64(gofakeit.Number(30, 200))*1000,
			gofakeit.ImageURL(256, 256),
		)
		if err != nil {
			return nil, err
		}
		ids = append(ids, doctorID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// seedSchedules creates one schedule per day for the next scheduleDays days,
// with 30-minute slots over a morning and an afternoon block.
func (s *seeder) seedSchedules(ctx context.Context, doctorID, hospitalID uuid.UUID) error {
	blocks := [][2]int{{8 * 60, 11*60 + 30}, {13*60 + 30, 17 * 60}}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	today := time.Now().Truncate(24 * time.Hour)
	for day := 0; day < scheduleDays; day++ {
		date := today.AddDate(0, 0, day)
		scheduleID := uuid.New()

		_, err := tx.Exec(ctx, `
			INSERT INTO schedules (id, doctor_id, hospital_id, date, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (doctor_id, date) DO NOTHING
		`, scheduleID, doctorID, hospitalID, date)
		if err != nil {
			return err
		}

		for _, block := range blocks {
			for start := block[0]; start+30 <= block[1]; start += 30 {
				_, err := tx.Exec(ctx, `
					INSERT INTO time_slots (id, schedule_id, start_time, end_time, booked_count, max_bookings, room_id, created_at, updated_at)
					VALUES ($1, $2, $3, $4, 0, $5, NULL, now(), now())
				`, uuid.New(), scheduleID, minutesToClock(start), minutesToClock(start+30), gofakeit.Number(1, 3))
				if err != nil {
					return err
				}
			}
		}
	}

	return tx.Commit(ctx)
}

func (s *seeder) seedPatients(ctx context.Context, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 50

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := s.pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, role, name, email, phone, password_hash, created_at, updated_at)
				VALUES ($1, 'patient', $2, $3, $4, $5, now(), now())
			`, uuid.New(), gofakeit.Name(), gofakeit.Email(), gofakeit.Phone(), s.passwordHash)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	return nil
}

func (s *seeder) seedAdmin(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, role, name, email, phone, password_hash, created_at, updated_at)
		VALUES ($1, 'admin', 'Admin', 'admin@caredesk.local', '', $2, now(), now())
	`, uuid.New(), s.passwordHash)
	return err
}

func (s *seeder) seedNews(ctx context.Context) error {
	for i := 0; i < 6; i++ {
		_, err := s.pool.Exec(ctx, `
			INSERT INTO news (title, summary, body, image_url, published, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`,
			gofakeit.Sentence(6),
			gofakeit.Sentence(16),
			gofakeit.Paragraph(3, 4, 14, "\n\n"),
			gofakeit.ImageURL(640, 480),
			i < 4, // leave a couple of drafts
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func minutesToClock(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
