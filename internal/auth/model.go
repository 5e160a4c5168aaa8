package auth

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

type User struct {
	ID           uuid.UUID
	Role         Role
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is the authenticated identity carried through a request. It is the
// decoded, verified form of the bearer token.
type Session struct {
	UserID uuid.UUID
	Role   Role
}
