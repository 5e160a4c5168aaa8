package review

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/caredesk/clinic-booking/internal/catalog"
)

var (
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrInvalidTarget   = errors.New("unknown review target")
	ErrEmptyBody       = errors.New("review body must not be empty")
	ErrNotEligible     = errors.New("reviews require a completed appointment with the target")
	ErrNotReplyAllowed = errors.New("only the reviewed party may reply")
)

// AppointmentChecker answers whether a patient has a completed appointment
// with a doctor or at a hospital.
type AppointmentChecker interface {
	HasCompletedAppointment(ctx context.Context, patientID, doctorID uuid.UUID) (bool, error)
	HasCompletedHospitalAppointment(ctx context.Context, patientID, hospitalID uuid.UUID) (bool, error)
}

// Catalog is the slice of the catalog repository the review service needs:
// resolving a doctor from a logged-in user, and storing rating aggregates.
type Catalog interface {
	GetDoctorByUserID(ctx context.Context, userID uuid.UUID) (*catalog.Doctor, error)
	SetDoctorRating(ctx context.Context, id uuid.UUID, rating float64, count int) error
}

type CreateInput struct {
	Target    TargetKind
	TargetID  uuid.UUID
	PatientID uuid.UUID
	Rating    int
	Comment   string
}

type Service struct {
	repo         Repository
	appointments AppointmentChecker
	catalog      Catalog
	log          zerolog.Logger
}

func NewService(repo Repository, appointments AppointmentChecker, cat Catalog, log zerolog.Logger) *Service {
	return &Service{repo: repo, appointments: appointments, catalog: cat, log: log}
}

// Create stores a review after checking the patient is eligible, then folds
// the new rating into the doctor's aggregate.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, ErrInvalidRating
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if in.Comment == "" {
		return nil, ErrEmptyBody
	}

	var eligible bool
	var err error
	switch in.Target {
	case TargetDoctor:
		eligible, err = s.appointments.HasCompletedAppointment(ctx, in.PatientID, in.TargetID)
	case TargetHospital:
		eligible, err = s.appointments.HasCompletedHospitalAppointment(ctx, in.PatientID, in.TargetID)
	default:
		return nil, ErrInvalidTarget
	}
	if err != nil {
		return nil, fmt.Errorf("checking eligibility: %w", err)
	}
	if !eligible {
		return nil, ErrNotEligible
	}

	rv, err := s.repo.CreateReview(ctx, &Review{
		Target:    in.Target,
		TargetID:  in.TargetID,
		PatientID: in.PatientID,
		Rating:    in.Rating,
		Comment:   in.Comment,
	})
	if err != nil {
		return nil, err
	}

	if in.Target == TargetDoctor {
		if err := s.recomputeDoctorRating(ctx, in.TargetID); err != nil {
			// the review itself is saved; the aggregate catches up next time
			s.log.Error().Err(err).Str("doctor_id", in.TargetID.String()).Msg("rating recompute failed")
		}
	}

	s.log.Info().
		Str("review_id", rv.ID.String()).
		Str("target", string(rv.Target)).
		Int("rating", rv.Rating).
		Msg("review created")
	return rv, nil
}

func (s *Service) recomputeDoctorRating(ctx context.Context, doctorID uuid.UUID) error {
	avg, count, err := s.repo.TargetAggregate(ctx, TargetDoctor, doctorID)
	if err != nil {
		return err
	}
	// one decimal place, matching what listings display
	avg = math.Round(avg*10) / 10
	return s.catalog.SetDoctorRating(ctx, doctorID, avg, count)
}

// Reply attaches a response to a review. Admins may always reply; a doctor
// may reply only to reviews of their own profile.
func (s *Service) Reply(ctx context.Context, reviewID, authorUserID uuid.UUID, isAdmin bool, body string) (*Reply, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}

	rv, err := s.repo.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	if !isAdmin {
		if rv.Target != TargetDoctor {
			return nil, ErrNotReplyAllowed
		}
		doc, err := s.catalog.GetDoctorByUserID(ctx, authorUserID)
		if err != nil {
			if errors.Is(err, catalog.ErrDoctorNotFound) {
				return nil, ErrNotReplyAllowed
			}
			return nil, err
		}
		if doc.ID != rv.TargetID {
			return nil, ErrNotReplyAllowed
		}
	}

	return s.repo.CreateReply(ctx, &Reply{
		ReviewID: reviewID,
		AuthorID: authorUserID,
		Body:     body,
	})
}

func (s *Service) ListByTarget(ctx context.Context, target TargetKind, targetID uuid.UUID, p catalog.ListParams) (catalog.Page[Review], error) {
	if target != TargetDoctor && target != TargetHospital {
		return catalog.Page[Review]{}, ErrInvalidTarget
	}
	p = p.Normalize()
	items, total, err := s.repo.ListByTarget(ctx, target, targetID, p.Limit, p.Offset())
	if err != nil {
		return catalog.Page[Review]{}, err
	}
	return catalog.NewPage(items, total, p), nil
}

// Delete removes a review (admin moderation) and refreshes the aggregate.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	rv, err := s.repo.GetReview(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteReview(ctx, id); err != nil {
		return err
	}
	if rv.Target == TargetDoctor {
		if err := s.recomputeDoctorRating(ctx, rv.TargetID); err != nil {
			s.log.Error().Err(err).Str("doctor_id", rv.TargetID.String()).Msg("rating recompute failed")
		}
	}
	return nil
}
