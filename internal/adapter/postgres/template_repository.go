package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/blastdesk/internal/domain"
)

// templateColumns must match the Scan order in scanTemplate. The backdrop
// bytes are appended only by Get.
const templateColumns = `id, name, subject, body_html, ecard_enabled, ecard_backdrop_type, ecard_name, ecard_role, created_at, updated_at`

type placementRow struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"font_size"`
	Color    string  `json:"color"`
	Align    string  `json:"align"`
}

func toPlacementRow(p domain.TextPlacement) placementRow {
	return placementRow{X: p.X, Y: p.Y, FontSize: p.FontSize, Color: p.Color, Align: string(p.Align)}
}

func (p *placementRow) toDomain(fallback domain.TextPlacement) domain.TextPlacement {
	if p == nil {
		return fallback
	}
	align, ok := domain.ParseAlign(p.Align)
	if !ok {
		align = domain.AlignCenter
	}
	return domain.TextPlacement{X: p.X, Y: p.Y, FontSize: p.FontSize, Color: p.Color, Align: align}
}

type TemplateRepo struct {
	pool *pgxpool.Pool
}

func NewTemplateRepo(pool *pgxpool.Pool) *TemplateRepo {
	return &TemplateRepo{pool: pool}
}

func scanTemplate(row pgx.Row, withBackdrop bool) (*domain.Template, error) {
	var (
		t            domain.Template
		enabled      bool
		backdropType string
		name, role   *placementRow
		backdrop     []byte
	)

	dest := []any{&t.ID, &t.Name, &t.Subject, &t.BodyHTML, &enabled, &backdropType, &name, &role, &t.CreatedAt, &t.UpdatedAt}
	if withBackdrop {
		dest = append(dest, &backdrop)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	if enabled || backdropType != "" || name != nil || role != nil {
		defaults := domain.DefaultECardSettings()
		t.ECard = &domain.ECardSettings{
			Enabled:      enabled,
			Backdrop:     backdrop,
			BackdropType: backdropType,
			Name:         name.toDomain(defaults.Name),
			Role:         role.toDomain(defaults.Role),
		}
	}
	return &t, nil
}

func (r *TemplateRepo) List(ctx context.Context) ([]domain.Template, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	templates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Template, error) {
		t, err := scanTemplate(row, false)
		if err != nil {
			return domain.Template{}, err
		}
		return *t, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan templates: %w", err)
	}
	return templates, nil
}

func (r *TemplateRepo) Get(ctx context.Context, templateID uuid.UUID) (*domain.Template, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx, `SELECT `+templateColumns+`, ecard_backdrop FROM templates WHERE id = $1`, templateID), true)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) Create(ctx context.Context, in domain.TemplateInput) (*domain.Template, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx, `
		INSERT INTO templates (name, subject, body_html)
		VALUES ($1, $2, $3)
		RETURNING `+templateColumns, in.Name, in.Subject, in.BodyHTML), false)
	if err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) Update(ctx context.Context, templateID uuid.UUID, in domain.TemplateInput) (*domain.Template, error) {
	t, err := scanTemplate(r.pool.QueryRow(ctx, `
		UPDATE templates SET name = $2, subject = $3, body_html = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+templateColumns, templateID, in.Name, in.Subject, in.BodyHTML), false)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update template: %w", err)
	}
	return t, nil
}

func (r *TemplateRepo) UpdateECard(ctx context.Context, templateID uuid.UUID, settings domain.ECardSettings) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE templates
		SET ecard_enabled = $2, ecard_name = $3, ecard_role = $4, updated_at = now()
		WHERE id = $1`,
		templateID, settings.Enabled, toPlacementRow(settings.Name), toPlacementRow(settings.Role))
	if err != nil {
		return fmt.Errorf("failed to update e-card settings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}

func (r *TemplateRepo) SetBackdrop(ctx context.Context, templateID uuid.UUID, data []byte, contentType string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE templates SET ecard_backdrop = $2, ecard_backdrop_type = $3, updated_at = now()
		WHERE id = $1`, templateID, data, contentType)
	if err != nil {
		return fmt.Errorf("failed to store e-card backdrop: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}

func (r *TemplateRepo) Delete(ctx context.Context, templateID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, templateID)
	if isPgError(err, pgForeignKeyViolation) {
		return domain.ErrTemplateInUse
	}
	if err != nil {
		return fmt.Errorf("failed to delete template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTemplateNotFound
	}
	return nil
}
