package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/blastdesk/internal/domain"
)

// blastColumns must match the Scan order in scanBlast.
const blastColumns = `id, template_id, name, subject, status, audience, total, sent, failed, last_error, created_by, created_at, started_at, finished_at`

const deliveryColumns = `id, blast_id, participant_id, email, status, error, attempted_at`

type audienceRow struct {
	DepartmentIDs  []uuid.UUID `json:"department_ids"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
}

type BlastRepo struct {
	pool *pgxpool.Pool
}

func NewBlastRepo(pool *pgxpool.Pool) *BlastRepo {
	return &BlastRepo{pool: pool}
}

func scanBlast(row pgx.Row) (*domain.Blast, error) {
	var (
		b         domain.Blast
		status    string
		audience  audienceRow
		createdBy *uuid.UUID
	)
	err := row.Scan(&b.ID, &b.TemplateID, &b.Name, &b.Subject, &status, &audience,
		&b.Total, &b.Sent, &b.Failed, &b.LastError, &createdBy, &b.CreatedAt, &b.StartedAt, &b.FinishedAt)
	if err != nil {
		return nil, err
	}
	b.Status = domain.BlastStatus(status)
	b.Audience = domain.Audience{DepartmentIDs: audience.DepartmentIDs, ParticipantIDs: audience.ParticipantIDs}
	if createdBy != nil {
		b.CreatedBy = *createdBy
	}
	return &b, nil
}

func collectBlasts(rows pgx.Rows) ([]domain.Blast, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Blast, error) {
		b, err := scanBlast(row)
		if err != nil {
			return domain.Blast{}, err
		}
		return *b, nil
	})
}

func (r *BlastRepo) Create(ctx context.Context, in domain.BlastInput, total int) (*domain.Blast, error) {
	var createdBy *uuid.UUID
	if in.CreatedBy != uuid.Nil {
		createdBy = &in.CreatedBy
	}
	audience := audienceRow{DepartmentIDs: in.Audience.DepartmentIDs, ParticipantIDs: in.Audience.ParticipantIDs}

	b, err := scanBlast(r.pool.QueryRow(ctx, `
		INSERT INTO blasts (template_id, name, subject, audience, total, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+blastColumns,
		in.TemplateID, in.Name, in.Subject, audience, total, createdBy))
	if isPgError(err, pgForeignKeyViolation) {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create blast: %w", err)
	}
	return b, nil
}

func (r *BlastRepo) Get(ctx context.Context, blastID uuid.UUID) (*domain.Blast, error) {
	b, err := scanBlast(r.pool.QueryRow(ctx, `SELECT `+blastColumns+` FROM blasts WHERE id = $1`, blastID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrBlastNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blast: %w", err)
	}
	return b, nil
}

func (r *BlastRepo) List(ctx context.Context, limit, offset int) ([]domain.Blast, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM blasts`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count blasts: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+blastColumns+` FROM blasts ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list blasts: %w", err)
	}
	blasts, err := collectBlasts(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan blasts: %w", err)
	}
	return blasts, total, nil
}

func (r *BlastRepo) ListByStatus(ctx context.Context, status domain.BlastStatus) ([]domain.Blast, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+blastColumns+` FROM blasts WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list blasts by status: %w", err)
	}
	blasts, err := collectBlasts(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan blasts: %w", err)
	}
	return blasts, nil
}

func (r *BlastRepo) MarkSending(ctx context.Context, blastID uuid.UUID, total int, at time.Time) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE blasts
			SET status = 'sending', total = $2, failed = 0, last_error = '', started_at = $3, finished_at = NULL
			WHERE id = $1 AND status IN ('draft', 'failed')`, blastID, total, at)
		if err != nil {
			return fmt.Errorf("failed to mark blast sending: %w", err)
		}
		if tag.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blasts WHERE id = $1)`, blastID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check blast: %w", err)
			}
			if !exists {
				return domain.ErrBlastNotFound
			}
			return domain.ErrBlastNotSendable
		}

		if _, err := tx.Exec(ctx, `DELETE FROM deliveries WHERE blast_id = $1 AND status = 'failed'`, blastID); err != nil {
			return fmt.Errorf("failed to clear failed deliveries: %w", err)
		}
		return nil
	})
}

func (r *BlastRepo) SentParticipantIDs(ctx context.Context, blastID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT participant_id FROM deliveries
		WHERE blast_id = $1 AND status = 'sent' AND participant_id IS NOT NULL`, blastID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sent recipients: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to scan sent recipients: %w", err)
	}
	return ids, nil
}

const deliveriesBlastFK = "deliveries_blast_id_fkey"

func (r *BlastRepo) RecordDelivery(ctx context.Context, d domain.Delivery) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var participantID *uuid.UUID
		if d.ParticipantID != uuid.Nil {
			participantID = &d.ParticipantID
		}

		// A participant deleted mid-send is recorded with a NULL reference.
		_, err := tx.Exec(ctx, `
			INSERT INTO deliveries (blast_id, participant_id, email, status, error, attempted_at)
			VALUES ($1, (SELECT id FROM participants WHERE id = $2), $3, $4, $5, $6)`,
			d.BlastID, participantID, d.Email, string(d.Status), d.Error, d.AttemptedAt)
		if isPgConstraint(err, pgForeignKeyViolation, deliveriesBlastFK) {
			return domain.ErrBlastNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to insert delivery: %w", err)
		}

		column := "sent"
		if d.Status == domain.DeliveryFailed {
			column = "failed"
		}
		if _, err := tx.Exec(ctx, `UPDATE blasts SET `+column+` = `+column+` + 1 WHERE id = $1`, d.BlastID); err != nil {
			return fmt.Errorf("failed to update blast counters: %w", err)
		}
		return nil
	})
}

func (r *BlastRepo) Finish(ctx context.Context, blastID uuid.UUID, status domain.BlastStatus, lastError string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE blasts SET status = $2, last_error = $3, finished_at = $4
		WHERE id = $1`, blastID, string(status), lastError, at)
	if err != nil {
		return fmt.Errorf("failed to finish blast: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrBlastNotFound
	}
	return nil
}

func (r *BlastRepo) ListDeliveries(ctx context.Context, blastID uuid.UUID, limit, offset int) ([]domain.Delivery, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM deliveries WHERE blast_id = $1`, blastID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count deliveries: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+deliveryColumns+` FROM deliveries
		WHERE blast_id = $1
		ORDER BY attempted_at, id
		LIMIT $2 OFFSET $3`, blastID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deliveries: %w", err)
	}

	deliveries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Delivery, error) {
		var (
			d             domain.Delivery
			participantID *uuid.UUID
			status        string
		)
		err := row.Scan(&d.ID, &d.BlastID, &participantID, &d.Email, &status, &d.Error, &d.AttemptedAt)
		if participantID != nil {
			d.ParticipantID = *participantID
		}
		d.Status = domain.DeliveryStatus(status)
		return d, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to scan deliveries: %w", err)
	}
	return deliveries, total, nil
}
