package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/blastdesk/internal/domain"
)

// participantSelect must match the Scan order in scanParticipant.
const participantSelect = `
	SELECT p.id, p.department_id, COALESCE(d.name, ''), p.name, p.email, p.role, p.created_at, p.updated_at
	FROM participants p
	LEFT JOIN departments d ON d.id = p.department_id`

const participantOrder = ` ORDER BY lower(p.name), p.id`

const defaultParticipantLimit = 50

type ParticipantRepo struct {
	pool *pgxpool.Pool
}

func NewParticipantRepo(pool *pgxpool.Pool) *ParticipantRepo {
	return &ParticipantRepo{pool: pool}
}

func scanParticipant(row pgx.Row) (*domain.Participant, error) {
	var p domain.Participant
	err := row.Scan(&p.ID, &p.DepartmentID, &p.DepartmentName, &p.Name, &p.Email, &p.Role, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectParticipants(rows pgx.Rows) ([]domain.Participant, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Participant, error) {
		p, err := scanParticipant(row)
		if err != nil {
			return domain.Participant{}, err
		}
		return *p, nil
	})
}

func mapParticipantWriteError(err error) error {
	switch {
	case isPgError(err, pgUniqueViolation):
		return domain.ErrParticipantExists
	case isPgError(err, pgForeignKeyViolation):
		return domain.ErrDepartmentNotFound
	default:
		return err
	}
}

// escapeLike quotes LIKE metacharacters so search text matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *ParticipantRepo) List(ctx context.Context, filter domain.ParticipantFilter) ([]domain.Participant, int, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultParticipantLimit
	}
	offset := max(filter.Offset, 0)

	search := strings.TrimSpace(filter.Search)
	pattern := "%" + escapeLike(search) + "%"

	const where = `
		WHERE ($1::uuid IS NULL OR p.department_id = $1)
		  AND ($2 = '' OR p.name ILIKE $3 OR p.email ILIKE $3)`

	var total int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM participants p`+where, filter.DepartmentID, search, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count participants: %w", err)
	}

	rows, err := r.pool.Query(ctx, participantSelect+where+participantOrder+` LIMIT $4 OFFSET $5`,
		filter.DepartmentID, search, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list participants: %w", err)
	}
	participants, err := collectParticipants(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan participants: %w", err)
	}
	return participants, total, nil
}

func (r *ParticipantRepo) Get(ctx context.Context, participantID uuid.UUID) (*domain.Participant, error) {
	p, err := scanParticipant(r.pool.QueryRow(ctx, participantSelect+` WHERE p.id = $1`, participantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}
	return p, nil
}

func (r *ParticipantRepo) Create(ctx context.Context, in domain.ParticipantInput) (*domain.Participant, error) {
	p, err := scanParticipant(r.pool.QueryRow(ctx, `
		WITH p AS (
			INSERT INTO participants (department_id, name, email, role)
			VALUES ($1, $2, $3, $4)
			RETURNING *
		)
		SELECT p.id, p.department_id, COALESCE(d.name, ''), p.name, p.email, p.role, p.created_at, p.updated_at
		FROM p LEFT JOIN departments d ON d.id = p.department_id`,
		in.DepartmentID, in.Name, in.Email, in.Role))
	if err != nil {
		if mapped := mapParticipantWriteError(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create participant: %w", err)
	}
	return p, nil
}

func (r *ParticipantRepo) Update(ctx context.Context, participantID uuid.UUID, in domain.ParticipantInput) (*domain.Participant, error) {
	p, err := scanParticipant(r.pool.QueryRow(ctx, `
		WITH p AS (
			UPDATE participants
			SET department_id = $2, name = $3, email = $4, role = $5, updated_at = now()
			WHERE id = $1
			RETURNING *
		)
		SELECT p.id, p.department_id, COALESCE(d.name, ''), p.name, p.email, p.role, p.created_at, p.updated_at
		FROM p LEFT JOIN departments d ON d.id = p.department_id`,
		participantID, in.DepartmentID, in.Name, in.Email, in.Role))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrParticipantNotFound
	}
	if err != nil {
		if mapped := mapParticipantWriteError(err); mapped != err {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to update participant: %w", err)
	}
	return p, nil
}

func (r *ParticipantRepo) Delete(ctx context.Context, participantID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM participants WHERE id = $1`, participantID)
	if err != nil {
		return fmt.Errorf("failed to delete participant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrParticipantNotFound
	}
	return nil
}

// UpsertByEmail keeps the stored department and role when the input leaves them empty.
func (r *ParticipantRepo) UpsertByEmail(ctx context.Context, in domain.ParticipantInput) (*domain.Participant, bool, error) {
	row := r.pool.QueryRow(ctx, `
		WITH p AS (
			INSERT INTO participants (department_id, name, email, role)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT ((lower(email))) DO UPDATE SET
				department_id = COALESCE(EXCLUDED.department_id, participants.department_id),
				name = EXCLUDED.name,
				role = COALESCE(NULLIF(EXCLUDED.role, ''), participants.role),
				updated_at = now()
			RETURNING *, (xmax = 0) AS inserted
		)
		SELECT p.id, p.department_id, COALESCE(d.name, ''), p.name, p.email, p.role, p.created_at, p.updated_at, p.inserted
		FROM p LEFT JOIN departments d ON d.id = p.department_id`,
		in.DepartmentID, in.Name, in.Email, in.Role)

	var p domain.Participant
	var inserted bool
	err := row.Scan(&p.ID, &p.DepartmentID, &p.DepartmentName, &p.Name, &p.Email, &p.Role, &p.CreatedAt, &p.UpdatedAt, &inserted)
	if err != nil {
		if mapped := mapParticipantWriteError(err); mapped != err {
			return nil, false, mapped
		}
		return nil, false, fmt.Errorf("failed to upsert participant: %w", err)
	}
	return &p, inserted, nil
}

func (r *ParticipantRepo) ListForAudience(ctx context.Context, audience domain.Audience) ([]domain.Participant, error) {
	departmentIDs := audience.DepartmentIDs
	if departmentIDs == nil {
		departmentIDs = []uuid.UUID{}
	}
	participantIDs := audience.ParticipantIDs
	if participantIDs == nil {
		participantIDs = []uuid.UUID{}
	}

	rows, err := r.pool.Query(ctx, participantSelect+`
		WHERE $1 OR p.department_id = ANY($2) OR p.id = ANY($3)`+participantOrder,
		audience.IsEmpty(), departmentIDs, participantIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list audience: %w", err)
	}
	participants, err := collectParticipants(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audience: %w", err)
	}
	return participants, nil
}

func (r *ParticipantRepo) ListAll(ctx context.Context) ([]domain.Participant, error) {
	rows, err := r.pool.Query(ctx, participantSelect+participantOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	participants, err := collectParticipants(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan participants: %w", err)
	}
	return participants, nil
}
