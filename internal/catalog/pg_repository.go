package catalog

import (
	"context"
	"errors"

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

// Hospitals

const hospitalColumns = `id, name, address, phone, description, image_url, rating, is_active, created_at, updated_at`

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(&h.ID, &h.Name, &h.Address, &h.Phone, &h.Description, &h.ImageURL, &h.Rating, &h.IsActive, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrHospitalNotFound
		}
		return nil, err
	}
	return &h, nil
}

func (r *PgRepository) CreateHospital(ctx context.Context, h *Hospital) (*Hospital, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO hospitals (id, name, address, phone, description, image_url, rating, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, true, now(), now())
		RETURNING `+hospitalColumns+`
	`, uuid.New(), h.Name, h.Address, h.Phone, h.Description, h.ImageURL)
	return scanHospital(row)
}

func (r *PgRepository) UpdateHospital(ctx context.Context, h *Hospital) (*Hospital, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE hospitals
		SET name = $2, address = $3, phone = $4, description = $5, image_url = $6, is_active = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+hospitalColumns+`
	`, h.ID, h.Name, h.Address, h.Phone, h.Description, h.ImageURL, h.IsActive)
	return scanHospital(row)
}

func (r *PgRepository) DeleteHospital(ctx context.Context, id uuid.UUID) error {
	return r.deleteRow(ctx, `DELETE FROM hospitals WHERE id = $1 RETURNING id`, id, ErrHospitalNotFound)
}

func (r *PgRepository) GetHospital(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+hospitalColumns+` FROM hospitals WHERE id = $1`, id)
	return scanHospital(row)
}

func (r *PgRepository) ListHospitals(ctx context.Context, p ListParams) ([]Hospital, int, error) {
	total, err := r.countRows(ctx, `
		SELECT count(*) FROM hospitals
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		  AND (NOT $2 OR is_active)
	`, p.Search, p.ActiveOnly)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+hospitalColumns+` FROM hospitals
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		  AND (NOT $2 OR is_active)
		ORDER BY name
		LIMIT $3 OFFSET $4
	`, p.Search, p.ActiveOnly, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Hospital
	for rows.Next() {
		h, err := scanHospital(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *h)
	}
	return out, total, rows.Err()
}

// Branches

const branchColumns = `id, hospital_id, name, address, phone, is_active, created_at, updated_at`

func scanBranch(row pgx.Row) (*Branch, error) {
	var b Branch
	err := row.Scan(&b.ID, &b.HospitalID, &b.Name, &b.Address, &b.Phone, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBranchNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *PgRepository) CreateBranch(ctx context.Context, b *Branch) (*Branch, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO branches (id, hospital_id, name, address, phone, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, now(), now())
		RETURNING `+branchColumns+`
	`, uuid.New(), b.HospitalID, b.Name, b.Address, b.Phone)
	return scanBranch(row)
}

func (r *PgRepository) UpdateBranch(ctx context.Context, b *Branch) (*Branch, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE branches
		SET name = $2, address = $3, phone = $4, is_active = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+branchColumns+`
	`, b.ID, b.Name, b.Address, b.Phone, b.IsActive)
	return scanBranch(row)
}

func (r *PgRepository) DeleteBranch(ctx context.Context, id uuid.UUID) error {
	return r.deleteRow(ctx, `DELETE FROM branches WHERE id = $1 RETURNING id`, id, ErrBranchNotFound)
}

func (r *PgRepository) ListBranches(ctx context.Context, hospitalID uuid.UUID, p ListParams) ([]Branch, int, error) {
	total, err := r.countRows(ctx, `
		SELECT count(*) FROM branches
		WHERE hospital_id = $1
		  AND ($2 = '' OR name ILIKE '%'||$2||'%')
		  AND (NOT $3 OR is_active)
	`, hospitalID, p.Search, p.ActiveOnly)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+branchColumns+` FROM branches
		WHERE hospital_id = $1
		  AND ($2 = '' OR name ILIKE '%'||$2||'%')
		  AND (NOT $3 OR is_active)
		ORDER BY name
		LIMIT $4 OFFSET $5
	`, hospitalID, p.Search, p.ActiveOnly, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *b)
	}
	return out, total, rows.Err()
}

// Specialties

const specialtyColumns = `id, name, description, is_active, created_at, updated_at`

func scanSpecialty(row pgx.Row) (*Specialty, error) {
	var sp Specialty
	err := row.Scan(&sp.ID, &sp.Name, &sp.Description, &sp.IsActive, &sp.CreatedAt, &sp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSpecialtyNotFound
		}
		return nil, err
	}
	return &sp, nil
}

func (r *PgRepository) CreateSpecialty(ctx context.Context, sp *Specialty) (*Specialty, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO specialties (id, name, description, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, true, now(), now())
		RETURNING `+specialtyColumns+`
	`, uuid.New(), sp.Name, sp.Description)
	return scanSpecialty(row)
}

func (r *PgRepository) UpdateSpecialty(ctx context.Context, sp *Specialty) (*Specialty, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE specialties
		SET name = $2, description = $3, is_active = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+specialtyColumns+`
	`, sp.ID, sp.Name, sp.Description, sp.IsActive)
	return scanSpecialty(row)
}

func (r *PgRepository) DeleteSpecialty(ctx context.Context, id uuid.UUID) error {
	return r.deleteRow(ctx, `DELETE FROM specialties WHERE id = $1 RETURNING id`, id, ErrSpecialtyNotFound)
}

func (r *PgRepository) ListSpecialties(ctx context.Context, p ListParams) ([]Specialty, int, error) {
	total, err := r.countRows(ctx, `
		SELECT count(*) FROM specialties
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		  AND (NOT $2 OR is_active)
	`, p.Search, p.ActiveOnly)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+specialtyColumns+` FROM specialties
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		  AND (NOT $2 OR is_active)
		ORDER BY name
		LIMIT $3 OFFSET $4
	`, p.Search, p.ActiveOnly, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Specialty
	for rows.Next() {
		sp, err := scanSpecialty(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *sp)
	}
	return out, total, rows.Err()
}

// Services

const serviceColumns = `id, hospital_id, specialty_id, name, description, price, duration_minutes, image_url, is_active, created_at, updated_at`

func scanService(row pgx.Row) (*CareService, error) {
	var sv CareService
	var specialtyID *uuid.UUID
	err := row.Scan(&sv.ID, &sv.HospitalID, &specialtyID, &sv.Name, &sv.Description, &sv.Price, &sv.DurationMinutes, &sv.ImageURL, &sv.IsActive, &sv.CreatedAt, &sv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	sv.SpecialtyID = specialtyID
	return &sv, nil
}

func (r *PgRepository) CreateService(ctx context.Context, sv *CareService) (*CareService, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO services (id, hospital_id, specialty_id, name, description, price, duration_minutes, image_url, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, true, now(), now())
		RETURNING `+serviceColumns+`
	`, uuid.New(), sv.HospitalID, sv.SpecialtyID, sv.Name, sv.Description, sv.Price, sv.DurationMinutes, sv.ImageURL)
	return scanService(row)
}

func (r *PgRepository) UpdateService(ctx context.Context, sv *CareService) (*CareService, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE services
		SET specialty_id = $2, name = $3, description = $4, price = $5, duration_minutes = $6, image_url = $7, is_active = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+serviceColumns+`
	`, sv.ID, sv.SpecialtyID, sv.Name, sv.Description, sv.Price, sv.DurationMinutes, sv.ImageURL, sv.IsActive)
	return scanService(row)
}

func (r *PgRepository) DeleteService(ctx context.Context, id uuid.UUID) error {
	return r.deleteRow(ctx, `DELETE FROM services WHERE id = $1 RETURNING id`, id, ErrServiceNotFound)
}

func (r *PgRepository) GetService(ctx context.Context, id uuid.UUID) (*CareService, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	return scanService(row)
}

func (r *PgRepository) ListServices(ctx context.Context, p ListParams) ([]CareService, int, error) {
	total, err := r.countRows(ctx, `
		SELECT count(*) FROM services
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		  AND (NOT $2 OR is_active)
	`, p.Search, p.ActiveOnly)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+serviceColumns+` FROM services
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		  AND (NOT $2 OR is_active)
		ORDER BY name
		LIMIT $3 OFFSET $4
	`, p.Search, p.ActiveOnly, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []CareService
	for rows.Next() {
		sv, err := scanService(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *sv)
	}
	return out, total, rows.Err()
}

// Doctors

const doctorColumns = `id, user_id, hospital_id, specialty_id, name, title, description, price, avatar_url, rating, rating_count, is_active, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var userID *uuid.UUID
	err := row.Scan(&d.ID, &userID, &d.HospitalID, &d.SpecialtyID, &d.Name, &d.Title, &d.Description, &d.Price, &d.AvatarURL, &d.Rating, &d.RatingCount, &d.IsActive, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}
	d.UserID = userID
	return &d, nil
}

func (r *PgRepository) CreateDoctor(ctx context.Context, d *Doctor) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO doctors (id, user_id, hospital_id, specialty_id, name, title, description, price, avatar_url, rating, rating_count, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 0, 0, true, now(), now())
		RETURNING `+doctorColumns+`
	`, uuid.New(), d.UserID, d.HospitalID, d.SpecialtyID, d.Name, d.Title, d.Description, d.Price, d.AvatarURL)
	return scanDoctor(row)
}

func (r *PgRepository) UpdateDoctor(ctx context.Context, d *Doctor) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET hospital_id = $2, specialty_id = $3, name = $4, title = $5, description = $6, price = $7, avatar_url = $8, is_active = $9, updated_at = now()
		WHERE id = $1
		RETURNING `+doctorColumns+`
	`, d.ID, d.HospitalID, d.SpecialtyID, d.Name, d.Title, d.Description, d.Price, d.AvatarURL, d.IsActive)
	return scanDoctor(row)
}

func (r *PgRepository) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return r.deleteRow(ctx, `DELETE FROM doctors WHERE id = $1 RETURNING id`, id, ErrDoctorNotFound)
}

func (r *PgRepository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE id = $1`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+doctorColumns+` FROM doctors WHERE user_id = $1`, userID)
	return scanDoctor(row)
}

func (r *PgRepository) ListDoctors(ctx context.Context, p ListParams) ([]Doctor, int, error) {
	total, err := r.countRows(ctx, `
		SELECT count(*) FROM doctors
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		  AND (NOT $2 OR is_active)
	`, p.Search, p.ActiveOnly)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+doctorColumns+` FROM doctors
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		  AND (NOT $2 OR is_active)
		ORDER BY rating DESC, name
		LIMIT $3 OFFSET $4
	`, p.Search, p.ActiveOnly, p.Limit, p.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *d)
	}
	return out, total, rows.Err()
}

func (r *PgRepository) SetDoctorRating(ctx context.Context, id uuid.UUID, rating float64, count int) error {
	row := r.pool.QueryRow(ctx, `
		UPDATE doctors
		SET rating = $2, rating_count = $3, updated_at = now()
		WHERE id = $1
		RETURNING id
	`, id, rating, count)

	var updated uuid.UUID
	if err := row.Scan(&updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDoctorNotFound
		}
		return err
	}
	return nil
}

// Helpers

func (r *PgRepository) deleteRow(ctx context.Context, sql string, id uuid.UUID, notFound error) error {
	var deleted uuid.UUID
	if err := r.pool.QueryRow(ctx, sql, id).Scan(&deleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound
		}
		return err
	}
	return nil
}

func (r *PgRepository) countRows(ctx context.Context, sql string, args ...any) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
