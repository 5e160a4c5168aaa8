package review

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const reviewColumns = `id, target_kind, target_id, patient_id, rating, comment, created_at, updated_at`

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

func scanReview(row pgx.Row) (*Review, error) {
	var rv Review
	err := row.Scan(
		&rv.ID,
		&rv.Target,
		&rv.TargetID,
		&rv.PatientID,
		&rv.Rating,
		&rv.Comment,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return &rv, nil
}

func (r *PgRepository) CreateReview(ctx context.Context, rv *Review) (*Review, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO reviews (target_kind, target_id, patient_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+reviewColumns,
		rv.Target, rv.TargetID, rv.PatientID, rv.Rating, rv.Comment,
	)
	created, err := scanReview(row)
	if err != nil {
		return nil, fmt.Errorf("inserting review: %w", err)
	}
	return created, nil
}

func (r *PgRepository) GetReview(ctx context.Context, id uuid.UUID) (*Review, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+reviewColumns+` FROM reviews WHERE id = $1`, id)
	rv, err := scanReview(row)
	if err != nil {
		return nil, err
	}
	if err := r.attachReplies(ctx, []*Review{rv}); err != nil {
		return nil, err
	}
	return rv, nil
}

func (r *PgRepository) DeleteReview(ctx context.Context, id uuid.UUID) error {
	var deleted uuid.UUID
	err := r.pool.QueryRow(ctx, `DELETE FROM reviews WHERE id = $1 RETURNING id`, id).Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrReviewNotFound
	}
	return err
}

func (r *PgRepository) ListByTarget(ctx context.Context, target TargetKind, targetID uuid.UUID, limit, offset int) ([]Review, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM reviews WHERE target_kind = $1 AND target_id = $2`,
		target, targetID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("counting reviews: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+reviewColumns+`
		FROM reviews
		WHERE target_kind = $1 AND target_id = $2
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		target, targetID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing reviews: %w", err)
	}
	defer rows.Close()

	var reviews []Review
	var refs []*Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return nil, 0, err
		}
		reviews = append(reviews, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range reviews {
		refs = append(refs, &reviews[i])
	}
	if err := r.attachReplies(ctx, refs); err != nil {
		return nil, 0, err
	}
	return reviews, total, nil
}

func (r *PgRepository) attachReplies(ctx context.Context, reviews []*Review) error {
	if len(reviews) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Review, len(reviews))
	ids := make([]uuid.UUID, 0, len(reviews))
	for _, rv := range reviews {
		byID[rv.ID] = rv
		ids = append(ids, rv.ID)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, review_id, author_id, body, created_at
		FROM review_replies
		WHERE review_id = ANY($1)
		ORDER BY created_at ASC`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("listing replies: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rp Reply
		if err := rows.Scan(&rp.ID, &rp.ReviewID, &rp.AuthorID, &rp.Body, &rp.CreatedAt); err != nil {
			return err
		}
		if rv, ok := byID[rp.ReviewID]; ok {
			rv.Replies = append(rv.Replies, rp)
		}
	}
	return rows.Err()
}

func (r *PgRepository) CreateReply(ctx context.Context, rp *Reply) (*Reply, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO review_replies (review_id, author_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, review_id, author_id, body, created_at`,
		rp.ReviewID, rp.AuthorID, rp.Body,
	)
	var created Reply
	err := row.Scan(&created.ID, &created.ReviewID, &created.AuthorID, &created.Body, &created.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting reply: %w", err)
	}
	return &created, nil
}

func (r *PgRepository) TargetAggregate(ctx context.Context, target TargetKind, targetID uuid.UUID) (float64, int, error) {
	var avg float64
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT coalesce(avg(rating), 0), count(*)
		FROM reviews
		WHERE target_kind = $1 AND target_id = $2`,
		target, targetID,
	).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("aggregating reviews: %w", err)
	}
	return avg, count, nil
}
