package review

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrReviewNotFound = errors.New("review not found")

// Repository contains the DB interactions for reviews and replies.
type Repository interface {
	CreateReview(ctx context.Context, rv *Review) (*Review, error)
	GetReview(ctx context.Context, id uuid.UUID) (*Review, error)
	DeleteReview(ctx context.Context, id uuid.UUID) error
	// ListByTarget returns one page of reviews, replies included, plus the
	// total count for the target.
	ListByTarget(ctx context.Context, target TargetKind, targetID uuid.UUID, limit, offset int) ([]Review, int, error)
	CreateReply(ctx context.Context, rp *Reply) (*Reply, error)
	// TargetAggregate returns the average rating and review count for a target.
	TargetAggregate(ctx context.Context, target TargetKind, targetID uuid.UUID) (float64, int, error)
}
