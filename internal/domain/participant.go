package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Participant struct {
	ID             uuid.UUID
	DepartmentID   *uuid.UUID
	DepartmentName string
	Name           string
	Email          string
	Role           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ParticipantInput struct {
	DepartmentID *uuid.UUID
	Name         string
	Email        string
	Role         string
}

type ParticipantFilter struct {
	DepartmentID *uuid.UUID
	Search       string
	Limit        int
	Offset       int
}

type ParticipantRepository interface {
	List(ctx context.Context, filter ParticipantFilter) ([]Participant, int, error)
	Get(ctx context.Context, participantID uuid.UUID) (*Participant, error)
	Create(ctx context.Context, in ParticipantInput) (*Participant, error)
	Update(ctx context.Context, participantID uuid.UUID, in ParticipantInput) (*Participant, error)
	Delete(ctx context.Context, participantID uuid.UUID) error
	// UpsertByEmail inserts or updates by case-insensitive email and reports whether a row was created.
	UpsertByEmail(ctx context.Context, in ParticipantInput) (*Participant, bool, error)
	ListForAudience(ctx context.Context, audience Audience) ([]Participant, error)
	ListAll(ctx context.Context) ([]Participant, error)
}

// ImportRow is one parsed participant line; Department is matched by name.
type ImportRow struct {
	Line       int
	Name       string
	Email      string
	Role       string
	Department string
}

type ImportError struct {
	Line    int
	Message string
}

type ImportResult struct {
	Created int
	Updated int
	Skipped int
	Errors  []ImportError
}

