package httpserver

import (
	"time"

	"github.com/google/uuid"
	"github.com/pscheid92/blastdesk/internal/domain"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type adminResponse struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

type loginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	Admin     adminResponse `json:"admin"`
}

type meResponse struct {
	Admin     adminResponse `json:"admin"`
	CSRFToken string        `json:"csrf_token,omitempty"`
}

func toAdminResponse(a *domain.Admin) adminResponse {
	return adminResponse{
		ID:          a.ID,
		Email:       a.Email,
		CreatedAt:   a.CreatedAt,
		LastLoginAt: a.LastLoginAt,
	}
}

type pageResponse[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

func mapSlice[S, T any](in []S, f func(S) T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}

type departmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (r departmentRequest) toInput() domain.DepartmentInput {
	return domain.DepartmentInput{Name: r.Name, Description: r.Description}
}

type departmentResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	ParticipantCount int       `json:"participant_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func toDepartmentResponse(d domain.Department) departmentResponse {
	return departmentResponse{
		ID:               d.ID,
		Name:             d.Name,
		Description:      d.Description,
		ParticipantCount: d.ParticipantCount,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
}

type participantRequest struct {
	DepartmentID *uuid.UUID `json:"department_id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
}

func (r participantRequest) toInput() domain.ParticipantInput {
	return domain.ParticipantInput{
		DepartmentID: r.DepartmentID,
		Name:         r.Name,
		Email:        r.Email,
		Role:         r.Role,
	}
}

type participantResponse struct {
	ID             uuid.UUID  `json:"id"`
	DepartmentID   *uuid.UUID `json:"department_id"`
	DepartmentName string     `json:"department_name,omitempty"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Role           string     `json:"role"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func toParticipantResponse(p domain.Participant) participantResponse {
	return participantResponse{
		ID:             p.ID,
		DepartmentID:   p.DepartmentID,
		DepartmentName: p.DepartmentName,
		Name:           p.Name,
		Email:          p.Email,
		Role:           p.Role,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

type importErrorResponse struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

type importResponse struct {
	Created int                   `json:"created"`
	Updated int                   `json:"updated"`
	Skipped int                   `json:"skipped"`
	Errors  []importErrorResponse `json:"errors"`
}

func toImportResponse(r *domain.ImportResult) importResponse {
	return importResponse{
		Created: r.Created,
		Updated: r.Updated,
		Skipped: r.Skipped,
		Errors: mapSlice(r.Errors, func(e domain.ImportError) importErrorResponse {
			return importErrorResponse{Line: e.Line, Message: e.Message}
		}),
	}
}

type templateRequest struct {
	Name     string `json:"name"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
}

func (r templateRequest) toInput() domain.TemplateInput {
	return domain.TemplateInput{Name: r.Name, Subject: r.Subject, BodyHTML: r.BodyHTML}
}

type placementDTO struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"font_size"`
	Color    string  `json:"color"`
	Align    string  `json:"align"`
}

func (p placementDTO) toDomain() domain.TextPlacement {
	return domain.TextPlacement{X: p.X, Y: p.Y, FontSize: p.FontSize, Color: p.Color, Align: domain.Align(p.Align)}
}

func toPlacementDTO(p domain.TextPlacement) placementDTO {
	return placementDTO{X: p.X, Y: p.Y, FontSize: p.FontSize, Color: p.Color, Align: string(p.Align)}
}

type ecardRequest struct {
	Enabled bool         `json:"enabled"`
	Name    placementDTO `json:"name"`
	Role    placementDTO `json:"role"`
}

func (r ecardRequest) toSettings() domain.ECardSettings {
	return domain.ECardSettings{Enabled: r.Enabled, Name: r.Name.toDomain(), Role: r.Role.toDomain()}
}

// ecardResponse never carries the backdrop bytes.
type ecardResponse struct {
	Enabled      bool         `json:"enabled"`
	HasBackdrop  bool         `json:"has_backdrop"`
	BackdropType string       `json:"backdrop_type,omitempty"`
	Name         placementDTO `json:"name"`
	Role         placementDTO `json:"role"`
}

type templateResponse struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Subject   string        `json:"subject"`
	BodyHTML  string        `json:"body_html"`
	ECard     ecardResponse `json:"ecard"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func toTemplateResponse(t domain.Template) templateResponse {
	settings := domain.DefaultECardSettings()
	if t.ECard != nil {
		settings = *t.ECard
	}
	return templateResponse{
		ID:       t.ID,
		Name:     t.Name,
		Subject:  t.Subject,
		BodyHTML: t.BodyHTML,
		ECard: ecardResponse{
			Enabled:      settings.Enabled,
			HasBackdrop:  settings.HasBackdrop(),
			BackdropType: settings.BackdropType,
			Name:         toPlacementDTO(settings.Name),
			Role:         toPlacementDTO(settings.Role),
		},
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type audienceDTO struct {
	DepartmentIDs  []uuid.UUID `json:"department_ids"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

type blastRequest struct {
	TemplateID uuid.UUID   `json:"template_id"`
	Name       string      `json:"name"`
	Subject    string      `json:"subject"`
	Audience   audienceDTO `json:"audience"`
}

func (r blastRequest) toInput(createdBy uuid.UUID) domain.BlastInput {
	return domain.BlastInput{
		TemplateID: r.TemplateID,
		Name:       r.Name,
		Subject:    r.Subject,
		Audience: domain.Audience{
			DepartmentIDs:  r.Audience.DepartmentIDs,
			ParticipantIDs: r.Audience.ParticipantIDs,
		},
		CreatedBy: createdBy,
	}
}

type blastResponse struct {
	ID         uuid.UUID   `json:"id"`
	TemplateID uuid.UUID   `json:"template_id"`
	Name       string      `json:"name"`
	Subject    string      `json:"subject"`
	Status     string      `json:"status"`
	Audience   audienceDTO `json:"audience"`
	Total      int         `json:"total"`
	Sent       int         `json:"sent"`
	Failed     int         `json:"failed"`
	LastError  string      `json:"last_error,omitempty"`
	CreatedBy  uuid.UUID   `json:"created_by"`
	CreatedAt  time.Time   `json:"created_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

func toBlastResponse(b domain.Blast) blastResponse {
	return blastResponse{
		ID:         b.ID,
		TemplateID: b.TemplateID,
		Name:       b.Name,
		Subject:    b.Subject,
		Status:     string(b.Status),
		Audience: audienceDTO{
			DepartmentIDs:  emptyIfNil(b.Audience.DepartmentIDs),
			ParticipantIDs: emptyIfNil(b.Audience.ParticipantIDs),
		},
		Total:      b.Total,
		Sent:       b.Sent,
		Failed:     b.Failed,
		LastError:  b.LastError,
		CreatedBy:  b.CreatedBy,
		CreatedAt:  b.CreatedAt,
		StartedAt:  b.StartedAt,
		FinishedAt: b.FinishedAt,
	}
}

func emptyIfNil(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}

type deliveryResponse struct {
	ID            uuid.UUID `json:"id"`
	ParticipantID uuid.UUID `json:"participant_id"`
	Email         string    `json:"email"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	AttemptedAt   time.Time `json:"attempted_at"`
}

func toDeliveryResponse(d domain.Delivery) deliveryResponse {
	return deliveryResponse{
		ID:            d.ID,
		ParticipantID: d.ParticipantID,
		Email:         d.Email,
		Status:        string(d.Status),
		Error:         d.Error,
		AttemptedAt:   d.AttemptedAt,
	}
}

type totalsResponse struct {
	Departments  int `json:"departments"`
	Participants int `json:"participants"`
	Templates    int `json:"templates"`
	Blasts       int `json:"blasts"`
	EmailsSent   int `json:"emails_sent"`
	EmailsFailed int `json:"emails_failed"`
}

type departmentStatsResponse struct {
	DepartmentID *uuid.UUID `json:"department_id"`
	Name         string     `json:"name"`
	Participants int        `json:"participants"`
}

type dailySendsResponse struct {
	Day    string `json:"day"`
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
}

type analyticsResponse struct {
	Totals        totalsResponse            `json:"totals"`
	PerDepartment []departmentStatsResponse `json:"per_department"`
	RecentBlasts  []blastResponse           `json:"recent_blasts"`
	DailySends    []dailySendsResponse      `json:"daily_sends"`
	GeneratedAt   time.Time                 `json:"generated_at"`
}

func toAnalyticsResponse(a *domain.Analytics) analyticsResponse {
	return analyticsResponse{
		Totals: totalsResponse{
			Departments:  a.Totals.Departments,
			Participants: a.Totals.Participants,
			Templates:    a.Totals.Templates,
			Blasts:       a.Totals.Blasts,
			EmailsSent:   a.Totals.EmailsSent,
			EmailsFailed: a.Totals.EmailsFailed,
		},
		PerDepartment: mapSlice(a.PerDepartment, func(d domain.DepartmentStats) departmentStatsResponse {
			return departmentStatsResponse{DepartmentID: d.DepartmentID, Name: d.Name, Participants: d.Participants}
		}),
		RecentBlasts: mapSlice(a.RecentBlasts, toBlastResponse),
		DailySends: mapSlice(a.DailySends, func(d domain.DailySends) dailySendsResponse {
			return dailySendsResponse{Day: d.Day.Format(time.DateOnly), Sent: d.Sent, Failed: d.Failed}
		}),
		GeneratedAt: a.GeneratedAt,
	}
}
