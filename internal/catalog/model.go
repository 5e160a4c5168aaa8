package catalog

import (
	"time"

	"github.com/google/uuid"
)

type Hospital struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Address     string    `json:"address"`
	Phone       string    `json:"phone"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	Rating      float64   `json:"rating"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Branch struct {
	ID         uuid.UUID `json:"id"`
	HospitalID uuid.UUID `json:"hospitalId"`
	Name       string    `json:"name"`
	Address    string    `json:"address"`
	Phone      string    `json:"phone"`
	IsActive   bool      `json:"isActive"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type Specialty struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CareService is a bookable care offering at a hospital.
type CareService struct {
	ID              uuid.UUID  `json:"id"`
	HospitalID      uuid.UUID  `json:"hospitalId"`
	SpecialtyID     *uuid.UUID `json:"specialtyId"`
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	Price           int64      `json:"price"` // minor currency units
	DurationMinutes int        `json:"durationMinutes"`
	ImageURL        string     `json:"imageUrl"`
	IsActive        bool       `json:"isActive"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type Doctor struct {
	ID          uuid.UUID  `json:"id"`
	UserID      *uuid.UUID `json:"userId"` // login account, when one exists
	HospitalID  uuid.UUID  `json:"hospitalId"`
	SpecialtyID uuid.UUID  `json:"specialtyId"`
	Name        string     `json:"name"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       int64      `json:"price"`
	AvatarURL   string     `json:"avatarUrl"`
	Rating      float64    `json:"rating"`
	RatingCount int        `json:"ratingCount"`
	IsActive    bool       `json:"isActive"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ListParams is the shared paging/filter shape for catalog listings.
type ListParams struct {
	Page       int
	Limit      int
	Search     string // case-insensitive match on name/description
	ActiveOnly bool
}

// Normalize clamps paging to sane bounds (page >= 1, limit in [1,100]).
func (p ListParams) Normalize() ListParams {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
	if p.Limit > 100 {
		p.Limit = 100
	}
	return p
}

// Offset converts page/limit into a row offset.
func (p ListParams) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Page is one page of a catalog listing plus enough metadata for the client
// to render pagination controls without ever requesting an out-of-range page.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

func NewPage[T any](items []T, total int, params ListParams) Page[T] {
	totalPages := (total + params.Limit - 1) / params.Limit
	if totalPages < 1 {
		totalPages = 1
	}
	page := params.Page
	if page > totalPages {
		page = totalPages
	}
	return Page[T]{Items: items, Total: total, Page: page, TotalPages: totalPages}
}
