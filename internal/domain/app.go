package domain

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// AuthService handles credentials and access tokens.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Authenticate(ctx context.Context, token string) (*TokenClaims, error)
	Logout(ctx context.Context, token string) error
	GetAdmin(ctx context.Context, adminID uuid.UUID) (*Admin, error)
	ChangePassword(ctx context.Context, adminID uuid.UUID, current, next string) error
}

// DirectoryService manages departments and participants.
type DirectoryService interface {
	ListDepartments(ctx context.Context) ([]Department, error)
	GetDepartment(ctx context.Context, departmentID uuid.UUID) (*Department, error)
	CreateDepartment(ctx context.Context, in DepartmentInput) (*Department, error)
	UpdateDepartment(ctx context.Context, departmentID uuid.UUID, in DepartmentInput) (*Department, error)
	DeleteDepartment(ctx context.Context, departmentID uuid.UUID) error

	ListParticipants(ctx context.Context, filter ParticipantFilter) ([]Participant, int, error)
	GetParticipant(ctx context.Context, participantID uuid.UUID) (*Participant, error)
	CreateParticipant(ctx context.Context, in ParticipantInput) (*Participant, error)
	UpdateParticipant(ctx context.Context, participantID uuid.UUID, in ParticipantInput) (*Participant, error)
	DeleteParticipant(ctx context.Context, participantID uuid.UUID) error
	ImportParticipants(ctx context.Context, r io.Reader) (*ImportResult, error)
	ExportParticipants(ctx context.Context, w io.Writer) error
}

// TemplateService manages email templates and their e-cards.
type TemplateService interface {
	ListTemplates(ctx context.Context) ([]Template, error)
	GetTemplate(ctx context.Context, templateID uuid.UUID) (*Template, error)
	CreateTemplate(ctx context.Context, in TemplateInput) (*Template, error)
	UpdateTemplate(ctx context.Context, templateID uuid.UUID, in TemplateInput) (*Template, error)
	DeleteTemplate(ctx context.Context, templateID uuid.UUID) error
	UpdateECard(ctx context.Context, templateID uuid.UUID, settings ECardSettings) (*Template, error)
	SetBackdrop(ctx context.Context, templateID uuid.UUID, data []byte) (*Template, error)
	// PreviewECard returns the rendered document and its content type.
	PreviewECard(ctx context.Context, templateID uuid.UUID, name, role, format string) ([]byte, string, error)
}

// BlastService creates campaigns and drives their delivery.
type BlastService interface {
	CreateBlast(ctx context.Context, in BlastInput) (*Blast, error)
	GetBlast(ctx context.Context, blastID uuid.UUID) (*Blast, error)
	ListBlasts(ctx context.Context, limit, offset int) ([]Blast, int, error)
	ListDeliveries(ctx context.Context, blastID uuid.UUID, limit, offset int) ([]Delivery, int, error)
	// SendBlast starts delivery in the background and returns the blast in sending state.
	SendBlast(ctx context.Context, blastID uuid.UUID) (*Blast, error)
}

type AnalyticsService interface {
	Summary(ctx context.Context) (*Analytics, error)
}
