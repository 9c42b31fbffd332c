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

const departmentColumns = `id, name, description, created_at, updated_at`

type DepartmentRepo struct {
	pool *pgxpool.Pool
}

func NewDepartmentRepo(pool *pgxpool.Pool) *DepartmentRepo {
	return &DepartmentRepo{pool: pool}
}

func scanDepartment(row pgx.Row) (*domain.Department, error) {
	var d domain.Department
	if err := row.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DepartmentRepo) List(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.id, d.name, d.description, d.created_at, d.updated_at, count(p.id)
		FROM departments d
		LEFT JOIN participants p ON p.department_id = d.id
		GROUP BY d.id
		ORDER BY lower(d.name)`)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}

	departments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Department, error) {
		var d domain.Department
		err := row.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt, &d.ParticipantCount)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan departments: %w", err)
	}
	return departments, nil
}

func (r *DepartmentRepo) Get(ctx context.Context, departmentID uuid.UUID) (*domain.Department, error) {
	d, err := scanDepartment(r.pool.QueryRow(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id = $1`, departmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDepartmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get department: %w", err)
	}
	return d, nil
}

func (r *DepartmentRepo) GetByName(ctx context.Context, name string) (*domain.Department, error) {
	d, err := scanDepartment(r.pool.QueryRow(ctx, `SELECT `+departmentColumns+` FROM departments WHERE lower(name) = lower($1)`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDepartmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get department by name: %w", err)
	}
	return d, nil
}

func (r *DepartmentRepo) Create(ctx context.Context, in domain.DepartmentInput) (*domain.Department, error) {
	d, err := scanDepartment(r.pool.QueryRow(ctx, `
		INSERT INTO departments (name, description)
		VALUES ($1, $2)
		RETURNING `+departmentColumns, in.Name, in.Description))
	if isPgError(err, pgUniqueViolation) {
		return nil, domain.ErrDepartmentExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create department: %w", err)
	}
	return d, nil
}

func (r *DepartmentRepo) Update(ctx context.Context, departmentID uuid.UUID, in domain.DepartmentInput) (*domain.Department, error) {
	d, err := scanDepartment(r.pool.QueryRow(ctx, `
		UPDATE departments SET name = $2, description = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+departmentColumns, departmentID, in.Name, in.Description))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrDepartmentNotFound
	}
	if isPgError(err, pgUniqueViolation) {
		return nil, domain.ErrDepartmentExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update department: %w", err)
	}
	return d, nil
}

func (r *DepartmentRepo) Delete(ctx context.Context, departmentID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM departments WHERE id = $1`, departmentID)
	if err != nil {
		return fmt.Errorf("failed to delete department: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDepartmentNotFound
	}
	return nil
}
