package review

import (
	"time"

	"github.com/google/uuid"
)

// TargetKind identifies what a review is about.
type TargetKind string

const (
	TargetDoctor   TargetKind = "doctor"
	TargetHospital TargetKind = "hospital"
)

type Review struct {
	ID        uuid.UUID  `json:"id"`
	Target    TargetKind `json:"target"`
	TargetID  uuid.UUID  `json:"targetId"`
	PatientID uuid.UUID  `json:"patientId"`
	Rating    int        `json:"rating"` // 1..5
	Comment   string     `json:"comment"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`

	Replies []Reply `json:"replies"`
}

// Reply is a response attached to a review, normally from the reviewed party.
type Reply struct {
	ID        uuid.UUID `json:"id"`
	ReviewID  uuid.UUID `json:"reviewId"`
	AuthorID  uuid.UUID `json:"authorId"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}
