package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Department struct {
	ID          uuid.UUID
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// ParticipantCount is populated by List only.
	ParticipantCount int
}

type DepartmentInput struct {
	Name        string
	Description string
}

type DepartmentRepository interface {
	List(ctx context.Context) ([]Department, error)
	Get(ctx context.Context, departmentID uuid.UUID) (*Department, error)
	GetByName(ctx context.Context, name string) (*Department, error)
	Create(ctx context.Context, in DepartmentInput) (*Department, error)
	Update(ctx context.Context, departmentID uuid.UUID, in DepartmentInput) (*Department, error)
	// Delete removes the department; its participants stay, unassigned.
	Delete(ctx context.Context, departmentID uuid.UUID) error
}
