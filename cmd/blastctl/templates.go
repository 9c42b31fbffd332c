package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/pscheid92/blastdesk/internal/domain"
)

// templateFile is the YAML document read by "templates import".
type templateFile struct {
	Templates []templateDoc `yaml:"templates"`

	dir string
}

type templateDoc struct {
	Name     string    `yaml:"name"`
	Subject  string    `yaml:"subject"`
	BodyHTML string    `yaml:"body_html"`
	ECard    *ecardDoc `yaml:"ecard"`
}

type ecardDoc struct {
	Enabled  bool          `yaml:"enabled"`
	Backdrop string        `yaml:"backdrop"`
	Name     *placementDoc `yaml:"name"`
	Role     *placementDoc `yaml:"role"`
}

type placementDoc struct {
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	FontSize float64 `yaml:"font_size"`
	Color    string  `yaml:"color"`
	Align    string  `yaml:"align"`
}

func (p *placementDoc) apply(dst *domain.TextPlacement) {
	if p == nil {
		return
	}
	*dst = domain.TextPlacement{
		X:        p.X,
		Y:        p.Y,
		FontSize: p.FontSize,
		Color:    p.Color,
		Align:    domain.Align(p.Align),
	}
}

// templateImporter is the part of domain.TemplateService used by the import.
type templateImporter interface {
	ListTemplates(ctx context.Context) ([]domain.Template, error)
	CreateTemplate(ctx context.Context, in domain.TemplateInput) (*domain.Template, error)
	UpdateTemplate(ctx context.Context, templateID uuid.UUID, in domain.TemplateInput) (*domain.Template, error)
	UpdateECard(ctx context.Context, templateID uuid.UUID, settings domain.ECardSettings) (*domain.Template, error)
	SetBackdrop(ctx context.Context, templateID uuid.UUID, data []byte) (*domain.Template, error)
}

func loadTemplateFile(path string) (*templateFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	file, err := parseTemplateFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	file.dir = filepath.Dir(path)
	return file, nil
}

func parseTemplateFile(data []byte) (*templateFile, error) {
	var file templateFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if len(file.Templates) == 0 {
		return nil, errors.New("no templates defined")
	}

	seen := make(map[string]bool, len(file.Templates))
	for i, t := range file.Templates {
		if t.Name == "" {
			return nil, fmt.Errorf("template %d: name is required", i+1)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("template %q is defined twice", t.Name)
		}
		seen[t.Name] = true
	}
	return &file, nil
}

// importTemplates creates templates by name or updates the existing ones.
// Backdrops are uploaded before the e-card is enabled.
func importTemplates(ctx context.Context, svc templateImporter, file *templateFile, out io.Writer) error {
	existing, err := svc.ListTemplates(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]uuid.UUID, len(existing))
	for _, t := range existing {
		byName[t.Name] = t.ID
	}

	for _, doc := range file.Templates {
		in := domain.TemplateInput{Name: doc.Name, Subject: doc.Subject, BodyHTML: doc.BodyHTML}

		var (
			t      *domain.Template
			action string
		)
		if id, ok := byName[doc.Name]; ok {
			t, err = svc.UpdateTemplate(ctx, id, in)
			action = "Updated"
		} else {
			t, err = svc.CreateTemplate(ctx, in)
			action = "Created"
		}
		if err != nil {
			return fmt.Errorf("template %q: %w", doc.Name, err)
		}

		if doc.ECard != nil {
			if err := applyECard(ctx, svc, t, doc.ECard, file.dir); err != nil {
				return fmt.Errorf("template %q: %w", doc.Name, err)
			}
		}
		fmt.Fprintf(out, "%s template %q (%s)\n", action, t.Name, t.ID)
	}
	return nil
}

func applyECard(ctx context.Context, svc templateImporter, t *domain.Template, doc *ecardDoc, dir string) error {
	if doc.Backdrop != "" {
		path := doc.Backdrop
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read backdrop: %w", err)
		}
		if t, err = svc.SetBackdrop(ctx, t.ID, data); err != nil {
			return err
		}
	}

	settings := domain.DefaultECardSettings()
	if t.ECard != nil {
		settings.Name, settings.Role = t.ECard.Name, t.ECard.Role
	}
	settings.Enabled = doc.Enabled
	doc.Name.apply(&settings.Name)
	doc.Role.apply(&settings.Role)

	_, err := svc.UpdateECard(ctx, t.ID, settings)
	return err
}
