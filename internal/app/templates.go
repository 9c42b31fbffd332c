package app

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pscheid92/blastdesk/internal/domain"
	"github.com/pscheid92/blastdesk/internal/ecard"
	apperrors "github.com/pscheid92/blastdesk/internal/platform/errors"
)

const (
	sampleName = "Jane Doe"
	sampleRole = "Participant"
)

// TemplateService manages email templates and their e-card settings.
type TemplateService struct {
	templates domain.TemplateRepository
	renderer  domain.ECardRenderer
	cache     domain.AnalyticsCache
}

func NewTemplateService(templates domain.TemplateRepository, renderer domain.ECardRenderer, cache domain.AnalyticsCache) *TemplateService {
	return &TemplateService{templates: templates, renderer: renderer, cache: cache}
}

func (s *TemplateService) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	return s.templates.List(ctx)
}

func (s *TemplateService) GetTemplate(ctx context.Context, templateID uuid.UUID) (*domain.Template, error) {
	return s.templates.Get(ctx, templateID)
}

func (s *TemplateService) CreateTemplate(ctx context.Context, in domain.TemplateInput) (*domain.Template, error) {
	if err := validateTemplate(&in); err != nil {
		return nil, err
	}
	t, err := s.templates.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	invalidateAnalytics(ctx, s.cache)
	return t, nil
}

func (s *TemplateService) UpdateTemplate(ctx context.Context, templateID uuid.UUID, in domain.TemplateInput) (*domain.Template, error) {
	if err := validateTemplate(&in); err != nil {
		return nil, err
	}
	return s.templates.Update(ctx, templateID, in)
}

func (s *TemplateService) DeleteTemplate(ctx context.Context, templateID uuid.UUID) error {
	if err := s.templates.Delete(ctx, templateID); err != nil {
		return err
	}
	invalidateAnalytics(ctx, s.cache)
	return nil
}

// UpdateECard stores placement settings. Enabling requires a backdrop.
func (s *TemplateService) UpdateECard(ctx context.Context, templateID uuid.UUID, settings domain.ECardSettings) (*domain.Template, error) {
	if err := validatePlacement("name", &settings.Name); err != nil {
		return nil, err
	}
	if err := validatePlacement("role", &settings.Role); err != nil {
		return nil, err
	}

	current, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if settings.Enabled && !current.ECard.HasBackdrop() {
		return nil, apperrors.ValidationError("upload a backdrop before enabling the e-card").WithField("field", "enabled")
	}

	if err := s.templates.UpdateECard(ctx, templateID, settings); err != nil {
		return nil, err
	}
	return s.templates.Get(ctx, templateID)
}

// SetBackdrop stores a new backdrop image after checking it decodes.
func (s *TemplateService) SetBackdrop(ctx context.Context, templateID uuid.UUID, data []byte) (*domain.Template, error) {
	if len(data) == 0 {
		return nil, apperrors.ValidationError("backdrop file is empty").WithField("field", "file")
	}
	contentType, err := ecard.DetectType(data)
	if err != nil {
		return nil, apperrors.ValidationError("backdrop must be a PNG, JPEG, GIF or WebP image").WithField("field", "file")
	}
	if err := s.templates.SetBackdrop(ctx, templateID, data, contentType); err != nil {
		return nil, err
	}
	return s.templates.Get(ctx, templateID)
}

// PreviewECard renders the e-card for a sample recipient.
func (s *TemplateService) PreviewECard(ctx context.Context, templateID uuid.UUID, name, role, format string) ([]byte, string, error) {
	t, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return nil, "", err
	}
	if !t.ECard.HasBackdrop() {
		return nil, "", apperrors.ValidationError("template has no e-card backdrop")
	}
	if name == "" {
		name = sampleName
	}
	if role == "" {
		role = sampleRole
	}

	var data []byte
	var contentType string
	switch format {
	case "", domain.PreviewPDF:
		data, err = s.renderer.RenderPDF(*t.ECard, name, role)
		contentType = "application/pdf"
	case domain.PreviewPNG:
		data, err = s.renderer.RenderPNG(*t.ECard, name, role)
		contentType = "image/png"
	default:
		return nil, "", apperrors.ValidationError("format must be pdf or png").WithField("field", "format")
	}
	if err != nil {
		if errors.Is(err, ecard.ErrInvalidColor) || errors.Is(err, ecard.ErrUnsupportedImage) {
			return nil, "", apperrors.ValidationError(err.Error())
		}
		return nil, "", apperrors.InternalError("failed to render e-card", err)
	}
	return data, contentType, nil
}
