// Package news holds the clinic's announcement articles: admins author them,
// the public site lists them.
package news

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/caredesk/clinic-booking/internal/catalog"
)

var (
	ErrArticleNotFound = errors.New("article not found")
	ErrMissingTitle    = errors.New("article title must not be empty")
)

type Article struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Body      string    `json:"body"`
	ImageURL  string    `json:"imageUrl"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repository contains the DB interactions for news articles.
type Repository interface {
	Create(ctx context.Context, a *Article) (*Article, error)
	Update(ctx context.Context, a *Article) (*Article, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*Article, error)
	// List returns one page of articles, newest first. publishedOnly hides
	// drafts from the public listing.
	List(ctx context.Context, publishedOnly bool, limit, offset int) ([]Article, int, error)
}

const articleColumns = `id, title, summary, body, image_url, published, created_at, updated_at`

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

func scanArticle(row pgx.Row) (*Article, error) {
	var a Article
	err := row.Scan(&a.ID, &a.Title, &a.Summary, &a.Body, &a.ImageURL, &a.Published, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrArticleNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *PgRepository) Create(ctx context.Context, a *Article) (*Article, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO news (title, summary, body, image_url, published)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+articleColumns,
		a.Title, a.Summary, a.Body, a.ImageURL, a.Published,
	)
	return scanArticle(row)
}

func (r *PgRepository) Update(ctx context.Context, a *Article) (*Article, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE news
		SET title = $2, summary = $3, body = $4, image_url = $5, published = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+articleColumns,
		a.ID, a.Title, a.Summary, a.Body, a.ImageURL, a.Published,
	)
	return scanArticle(row)
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	var deleted uuid.UUID
	err := r.pool.QueryRow(ctx, `DELETE FROM news WHERE id = $1 RETURNING id`, id).Scan(&deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrArticleNotFound
	}
	return err
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Article, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+articleColumns+` FROM news WHERE id = $1`, id)
	return scanArticle(row)
}

func (r *PgRepository) List(ctx context.Context, publishedOnly bool, limit, offset int) ([]Article, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM news WHERE (NOT $1 OR published)`, publishedOnly,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+articleColumns+`
		FROM news
		WHERE (NOT $1 OR published)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		publishedOnly, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, err
		}
		articles = append(articles, *a)
	}
	return articles, total, rows.Err()
}

// Service applies validation and visibility rules over the repository.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Create(ctx context.Context, a *Article) (*Article, error) {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return nil, ErrMissingTitle
	}
	return s.repo.Create(ctx, a)
}

func (s *Service) Update(ctx context.Context, a *Article) (*Article, error) {
	a.Title = strings.TrimSpace(a.Title)
	if a.Title == "" {
		return nil, ErrMissingTitle
	}
	return s.repo.Update(ctx, a)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// Get returns an article; unpublished drafts are only visible to admins.
func (s *Service) Get(ctx context.Context, id uuid.UUID, includeDrafts bool) (*Article, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.Published && !includeDrafts {
		return nil, ErrArticleNotFound
	}
	return a, nil
}

func (s *Service) List(ctx context.Context, includeDrafts bool, p catalog.ListParams) (catalog.Page[Article], error) {
	p = p.Normalize()
	items, total, err := s.repo.List(ctx, !includeDrafts, p.Limit, p.Offset())
	if err != nil {
		return catalog.Page[Article]{}, err
	}
	return catalog.NewPage(items, total, p), nil
}
