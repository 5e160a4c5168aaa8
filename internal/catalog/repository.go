package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrHospitalNotFound  = errors.New("hospital not found")
	ErrBranchNotFound    = errors.New("branch not found")
	ErrSpecialtyNotFound = errors.New("specialty not found")
	ErrServiceNotFound   = errors.New("service not found")
	ErrDoctorNotFound    = errors.New("doctor not found")
)

// Repository contains all DB interactions for the catalog entities.
type Repository interface {
	CreateHospital(ctx context.Context, h *Hospital) (*Hospital, error)
	UpdateHospital(ctx context.Context, h *Hospital) (*Hospital, error)
	DeleteHospital(ctx context.Context, id uuid.UUID) error
	GetHospital(ctx context.Context, id uuid.UUID) (*Hospital, error)
	ListHospitals(ctx context.Context, p ListParams) ([]Hospital, int, error)

	CreateBranch(ctx context.Context, b *Branch) (*Branch, error)
	UpdateBranch(ctx context.Context, b *Branch) (*Branch, error)
	DeleteBranch(ctx context.Context, id uuid.UUID) error
	ListBranches(ctx context.Context, hospitalID uuid.UUID, p ListParams) ([]Branch, int, error)

	CreateSpecialty(ctx context.Context, sp *Specialty) (*Specialty, error)
	UpdateSpecialty(ctx context.Context, sp *Specialty) (*Specialty, error)
	DeleteSpecialty(ctx context.Context, id uuid.UUID) error
	ListSpecialties(ctx context.Context, p ListParams) ([]Specialty, int, error)

	CreateService(ctx context.Context, sv *CareService) (*CareService, error)
	UpdateService(ctx context.Context, sv *CareService) (*CareService, error)
	DeleteService(ctx context.Context, id uuid.UUID) error
	GetService(ctx context.Context, id uuid.UUID) (*CareService, error)
	ListServices(ctx context.Context, p ListParams) ([]CareService, int, error)

	CreateDoctor(ctx context.Context, d *Doctor) (*Doctor, error)
	UpdateDoctor(ctx context.Context, d *Doctor) (*Doctor, error)
	DeleteDoctor(ctx context.Context, id uuid.UUID) error
	GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*Doctor, error)
	ListDoctors(ctx context.Context, p ListParams) ([]Doctor, int, error)

	// SetDoctorRating stores the recomputed review aggregate on the doctor row.
	SetDoctorRating(ctx context.Context, id uuid.UUID, rating float64, count int) error
}
