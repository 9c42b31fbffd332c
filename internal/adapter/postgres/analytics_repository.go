package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/blastdesk/internal/domain"
)

type AnalyticsRepo struct {
	pool *pgxpool.Pool
}

func NewAnalyticsRepo(pool *pgxpool.Pool) *AnalyticsRepo {
	return &AnalyticsRepo{pool: pool}
}

// Summary reads every aggregate from one read-only snapshot so the numbers agree.
func (r *AnalyticsRepo) Summary(ctx context.Context, since time.Time, recent int) (*domain.Analytics, error) {
	var summary domain.Analytics

	txOpts := pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}
	err := pgx.BeginTxFunc(ctx, r.pool, txOpts, func(tx pgx.Tx) error {
		t := &summary.Totals
		err := tx.QueryRow(ctx, `
			SELECT
				(SELECT count(*) FROM departments),
				(SELECT count(*) FROM participants),
				(SELECT count(*) FROM templates),
				(SELECT count(*) FROM blasts),
				(SELECT count(*) FROM deliveries WHERE status = 'sent'),
				(SELECT count(*) FROM deliveries WHERE status = 'failed')`).
			Scan(&t.Departments, &t.Participants, &t.Templates, &t.Blasts, &t.EmailsSent, &t.EmailsFailed)
		if err != nil {
			return fmt.Errorf("failed to query totals: %w", err)
		}

		rows, err := tx.Query(ctx, `
			SELECT d.id, d.name, count(p.id)
			FROM departments d
			LEFT JOIN participants p ON p.department_id = d.id
			GROUP BY d.id
			ORDER BY lower(d.name)`)
		if err != nil {
			return fmt.Errorf("failed to query department stats: %w", err)
		}
		summary.PerDepartment, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DepartmentStats, error) {
			var s domain.DepartmentStats
			err := row.Scan(&s.DepartmentID, &s.Name, &s.Participants)
			return s, err
		})
		if err != nil {
			return fmt.Errorf("failed to scan department stats: %w", err)
		}

		var unassigned int
		if err := tx.QueryRow(ctx, `SELECT count(*) FROM participants WHERE department_id IS NULL`).Scan(&unassigned); err != nil {
			return fmt.Errorf("failed to count unassigned participants: %w", err)
		}
		if unassigned > 0 {
			summary.PerDepartment = append(summary.PerDepartment, domain.DepartmentStats{Participants: unassigned})
		}

		rows, err = tx.Query(ctx, `SELECT `+blastColumns+` FROM blasts ORDER BY created_at DESC, id LIMIT $1`, recent)
		if err != nil {
			return fmt.Errorf("failed to query recent blasts: %w", err)
		}
		summary.RecentBlasts, err = collectBlasts(rows)
		if err != nil {
			return fmt.Errorf("failed to scan recent blasts: %w", err)
		}

		rows, err = tx.Query(ctx, `
			SELECT date_trunc('day', attempted_at AT TIME ZONE 'UTC') AS day,
			       count(*) FILTER (WHERE status = 'sent'),
			       count(*) FILTER (WHERE status = 'failed')
			FROM deliveries
			WHERE attempted_at >= $1
			GROUP BY day
			ORDER BY day`, since)
		if err != nil {
			return fmt.Errorf("failed to query daily sends: %w", err)
		}
		summary.DailySends, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DailySends, error) {
			var d domain.DailySends
			err := row.Scan(&d.Day, &d.Sent, &d.Failed)
			return d, err
		})
		if err != nil {
			return fmt.Errorf("failed to scan daily sends: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &summary, nil
}
