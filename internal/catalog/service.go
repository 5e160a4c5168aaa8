package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrMissingRequiredField = errors.New("missing required field")

// Service fronts the catalog repository with validation and paging. Mutations
// are admin-only; enforcement happens in the API middleware.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateHospital(ctx context.Context, h Hospital) (*Hospital, error) {
	if h.Name == "" || h.Address == "" {
		return nil, ErrMissingRequiredField
	}
	created, err := s.repo.CreateHospital(ctx, &h)
	if err != nil {
		return nil, fmt.Errorf("create hospital: %w", err)
	}
	return created, nil
}

func (s *Service) UpdateHospital(ctx context.Context, h Hospital) (*Hospital, error) {
	if h.Name == "" || h.Address == "" {
		return nil, ErrMissingRequiredField
	}
	updated, err := s.repo.UpdateHospital(ctx, &h)
	if err != nil {
		return nil, fmt.Errorf("update hospital: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteHospital(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteHospital(ctx, id)
}

func (s *Service) GetHospital(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return s.repo.GetHospital(ctx, id)
}

func (s *Service) ListHospitals(ctx context.Context, p ListParams) (Page[Hospital], error) {
	p = p.Normalize()
	items, total, err := s.repo.ListHospitals(ctx, p)
	if err != nil {
		return Page[Hospital]{}, fmt.Errorf("list hospitals: %w", err)
	}
	return NewPage(items, total, p), nil
}

func (s *Service) CreateBranch(ctx context.Context, b Branch) (*Branch, error) {
	if b.Name == "" || b.HospitalID == uuid.Nil {
		return nil, ErrMissingRequiredField
	}
	created, err := s.repo.CreateBranch(ctx, &b)
	if err != nil {
		return nil, fmt.Errorf("create branch: %w", err)
	}
	return created, nil
}

func (s *Service) UpdateBranch(ctx context.Context, b Branch) (*Branch, error) {
	if b.Name == "" {
		return nil, ErrMissingRequiredField
	}
	updated, err := s.repo.UpdateBranch(ctx, &b)
	if err != nil {
		return nil, fmt.Errorf("update branch: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteBranch(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteBranch(ctx, id)
}

func (s *Service) ListBranches(ctx context.Context, hospitalID uuid.UUID, p ListParams) (Page[Branch], error) {
	p = p.Normalize()
	items, total, err := s.repo.ListBranches(ctx, hospitalID, p)
	if err != nil {
		return Page[Branch]{}, fmt.Errorf("list branches: %w", err)
	}
	return NewPage(items, total, p), nil
}

func (s *Service) CreateSpecialty(ctx context.Context, sp Specialty) (*Specialty, error) {
	if sp.Name == "" {
		return nil, ErrMissingRequiredField
	}
	created, err := s.repo.CreateSpecialty(ctx, &sp)
	if err != nil {
		return nil, fmt.Errorf("create specialty: %w", err)
	}
	return created, nil
}

func (s *Service) UpdateSpecialty(ctx context.Context, sp Specialty) (*Specialty, error) {
	if sp.Name == "" {
		return nil, ErrMissingRequiredField
	}
	updated, err := s.repo.UpdateSpecialty(ctx, &sp)
	if err != nil {
		return nil, fmt.Errorf("update specialty: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteSpecialty(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteSpecialty(ctx, id)
}

func (s *Service) ListSpecialties(ctx context.Context, p ListParams) (Page[Specialty], error) {
	p = p.Normalize()
	items, total, err := s.repo.ListSpecialties(ctx, p)
	if err != nil {
		return Page[Specialty]{}, fmt.Errorf("list specialties: %w", err)
	}
	return NewPage(items, total, p), nil
}

func (s *Service) CreateService(ctx context.Context, sv CareService) (*CareService, error) {
	if sv.Name == "" || sv.HospitalID == uuid.Nil || sv.Price < 0 || sv.DurationMinutes <= 0 {
		return nil, ErrMissingRequiredField
	}
	created, err := s.repo.CreateService(ctx, &sv)
	if err != nil {
		return nil, fmt.Errorf("create service: %w", err)
	}
	return created, nil
}

func (s *Service) UpdateService(ctx context.Context, sv CareService) (*CareService, error) {
	if sv.Name == "" || sv.Price < 0 || sv.DurationMinutes <= 0 {
		return nil, ErrMissingRequiredField
	}
	updated, err := s.repo.UpdateService(ctx, &sv)
	if err != nil {
		return nil, fmt.Errorf("update service: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteService(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteService(ctx, id)
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (*CareService, error) {
	return s.repo.GetService(ctx, id)
}

func (s *Service) ListServices(ctx context.Context, p ListParams) (Page[CareService], error) {
	p = p.Normalize()
	items, total, err := s.repo.ListServices(ctx, p)
	if err != nil {
		return Page[CareService]{}, fmt.Errorf("list services: %w", err)
	}
	return NewPage(items, total, p), nil
}

func (s *Service) CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	if d.Name == "" || d.HospitalID == uuid.Nil || d.SpecialtyID == uuid.Nil {
		return nil, ErrMissingRequiredField
	}
	created, err := s.repo.CreateDoctor(ctx, &d)
	if err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	return created, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	if d.Name == "" {
		return nil, ErrMissingRequiredField
	}
	updated, err := s.repo.UpdateDoctor(ctx, &d)
	if err != nil {
		return nil, fmt.Errorf("update doctor: %w", err)
	}
	return updated, nil
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteDoctor(ctx, id)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctor(ctx, id)
}

// GetDoctorProfile resolves the doctor row behind an authenticated doctor
// account; backs the /doctors/profile endpoint.
func (s *Service) GetDoctorProfile(ctx context.Context, userID uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctorByUserID(ctx, userID)
}

func (s *Service) ListDoctors(ctx context.Context, p ListParams) (Page[Doctor], error) {
	p = p.Normalize()
	items, total, err := s.repo.ListDoctors(ctx, p)
	if err != nil {
		return Page[Doctor]{}, fmt.Errorf("list doctors: %w", err)
	}
	return NewPage(items, total, p), nil
}
