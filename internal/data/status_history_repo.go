package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/target/notify-dispatch/internal/domain/model"
)

// StatusHistoryRepo appends to notification_status_history.
type StatusHistoryRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewStatusHistoryRepo creates a StatusHistoryRepo.
func NewStatusHistoryRepo(db *sql.DB, cfg RepoConfig) *StatusHistoryRepo {
	return &StatusHistoryRepo{DB: db, clock: clockOrSystem(cfg.Clock)}
}

// Append writes one transition.
func (r *StatusHistoryRepo) Append(ctx context.Context, t model.StatusTransition) error {
	if strings.TrimSpace(t.JobID) == "" {
		return ErrJobIDRequired
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = r.clock.Now()
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO notification_status_history (job_id, status, detail, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, t.JobID, t.Status, t.Detail, t.RetryCount, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("append status history: %w", err)
	}
	return nil
}

// ListByJob returns a job's transitions oldest first.
func (r *StatusHistoryRepo) ListByJob(ctx context.Context, jobID string) ([]model.StatusTransition, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT job_id, status, detail, retry_count, created_at
		FROM notification_status_history
		WHERE job_id = $1
		ORDER BY id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.StatusTransition
	for rows.Next() {
		var (
			t      model.StatusTransition
			detail sql.NullString
		)
		if err := rows.Scan(&t.JobID, &t.Status, &detail, &t.RetryCount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status history: %w", err)
		}
		if detail.Valid {
			d := detail.String
			t.Detail = &d
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate status history: %w", err)
	}
	return out, nil
}

func insertHistoryTx(ctx context.Context, tx *sql.Tx, history []model.StatusTransition) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO notification_status_history (job_id, status, detail, retry_count, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("prepare status history insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, t := range history {
		if _, err := stmt.ExecContext(ctx, t.JobID, t.Status, t.Detail, t.RetryCount, t.CreatedAt); err != nil {
			return fmt.Errorf("insert status history for %s: %w", t.JobID, err)
		}
	}
	return nil
}
