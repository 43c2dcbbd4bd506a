package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/target/notify-dispatch/internal/core"
	"github.com/target/notify-dispatch/internal/data/pgxutil"
)

// Advisory lock namespace for reaper passes. Two-arg
// pg_try_advisory_xact_lock(major, minor) keeps concurrent reapers apart.
const (
	advisoryLockReaperMajor     = 2000
	advisoryLockReaperSent      = 1
	advisoryLockReaperDLQ       = 2
	advisoryLockReaperOrphans   = 3
	advisoryLockReaperStuckJobs = 4
	stuckJobError               = "dispatch interrupted before status was recorded"
)

// ReaperRepo deletes aged rows and repairs interrupted dispatches.
type ReaperRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewReaperRepo creates a ReaperRepo.
func NewReaperRepo(db *sql.DB, cfg RepoConfig) *ReaperRepo {
	return &ReaperRepo{DB: db, clock: clockOrSystem(cfg.Clock)}
}

// withLock runs fn under the reaper advisory lock for minor. When another
// reaper holds the lock the pass is skipped and reports zero rows.
func (r *ReaperRepo) withLock(ctx context.Context, minor int, fn func(*sql.Tx) (sql.Result, error)) (int64, error) {
	var affected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, minor).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				return nil
			}
			res, err := fn(tx)
			if err != nil {
				return err
			}
			affected, err = res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func validateCleanup(p core.CleanupParams) error {
	if p.BatchSize <= 0 {
		return errors.New("batch size must be greater than zero")
	}
	if p.OlderThan <= 0 {
		return errors.New("max age must be greater than zero")
	}
	return nil
}

// DeleteSentJobs removes sent (and webhook-advanced) jobs completed before the cutoff.
func (r *ReaperRepo) DeleteSentJobs(ctx context.Context, p core.CleanupParams) (int64, error) {
	if err := validateCleanup(p); err != nil {
		return 0, err
	}
	cutoff := r.clock.Now().Add(-p.OlderThan)
	return r.withLock(ctx, advisoryLockReaperSent, func(tx *sql.Tx) (sql.Result, error) {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM notification_jobs
			WHERE id IN (
				SELECT id FROM notification_jobs
				WHERE status IN ('sent', 'delivered', 'read')
				  AND COALESCE(completed_at, updated_at) < $1
				ORDER BY COALESCE(completed_at, updated_at)
				LIMIT $2
			)
		`, cutoff, p.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("delete sent jobs: %w", err)
		}
		return res, nil
	})
}

// DeleteDeadLetters removes dead letters archived before the cutoff.
func (r *ReaperRepo) DeleteDeadLetters(ctx context.Context, p core.CleanupParams) (int64, error) {
	if err := validateCleanup(p); err != nil {
		return 0, err
	}
	cutoff := r.clock.Now().Add(-p.OlderThan)
	return r.withLock(ctx, advisoryLockReaperDLQ, func(tx *sql.Tx) (sql.Result, error) {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM notification_dlq
			WHERE id IN (
				SELECT id FROM notification_dlq
				WHERE archived_at < $1
				ORDER BY archived_at
				LIMIT $2
			)
		`, cutoff, p.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("delete dead letters: %w", err)
		}
		return res, nil
	})
}

// ReleaseOrphanedEntries deletes visible queue entries whose job row is gone.
// Leased entries are left for their consumer.
func (r *ReaperRepo) ReleaseOrphanedEntries(ctx context.Context, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	now := r.clock.Now()
	return r.withLock(ctx, advisoryLockReaperOrphans, func(tx *sql.Tx) (sql.Result, error) {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM notification_queue
			WHERE msg_id IN (
				SELECT q.msg_id FROM notification_queue q
				LEFT JOIN notification_jobs j ON j.id = q.job_id
				WHERE j.id IS NULL AND q.vt <= $1
				ORDER BY q.msg_id
				LIMIT $2
				FOR UPDATE OF q SKIP LOCKED
			)
		`, now, batchSize)
		if err != nil {
			return nil, fmt.Errorf("release orphaned entries: %w", err)
		}
		return res, nil
	})
}

// RecoverStuckJobs fails jobs left queued or processing without a queue
// entry, which happens when a consumer dies between releasing the entry and
// writing the outcome. The failure counts against the retry budget so the
// promoter can pick the job up again. A job whose budget this spends is
// archived to notification_dlq in the same statement; with no live entry the
// dead letter carries msg_id 0 and read_ct 0.
func (r *ReaperRepo) RecoverStuckJobs(ctx context.Context, p core.CleanupParams) (int64, error) {
	if err := validateCleanup(p); err != nil {
		return 0, err
	}
	now := r.clock.Now()
	cutoff := now.Add(-p.OlderThan)
	return r.withLock(ctx, advisoryLockReaperStuckJobs, func(tx *sql.Tx) (sql.Result, error) {
		res, err := tx.ExecContext(ctx, `
			WITH stuck AS (
				SELECT j.id, j.tenant_id, j.channel, j.event_type, j.retry_count, j.max_retries, j.updated_at
				FROM notification_jobs j
				WHERE j.status IN ('queued', 'processing')
				  AND j.updated_at < $2
				  AND NOT EXISTS (SELECT 1 FROM notification_queue q WHERE q.job_id = j.id)
				ORDER BY j.updated_at
				LIMIT $4
				FOR UPDATE OF j SKIP LOCKED
			), dead AS (
				INSERT INTO notification_dlq (id, msg_id, job_id, message, error_message, read_ct, enqueued_at, archived_at)
				SELECT gen_random_uuid(), 0, s.id,
				       jsonb_build_object('job_id', s.id, 'tenant_id', s.tenant_id, 'channel', s.channel, 'event_type', s.event_type),
				       $3, 0, s.updated_at, $1
				FROM stuck s
				WHERE s.retry_count + 1 >= (CASE WHEN s.max_retries > 0 THEN s.max_retries ELSE 3 END)
			)
			UPDATE notification_jobs
			SET retry_count = LEAST(retry_count + 1, `+effectiveMaxSQL+`),
			    status = 'failed',
			    last_error = $3,
			    last_retry_at = $1,
			    completed_at = CASE WHEN retry_count + 1 >= `+effectiveMaxSQL+` THEN $1 ELSE NULL END,
			    updated_at = $1
			WHERE id IN (SELECT id FROM stuck)
		`, now, cutoff, stuckJobError, p.BatchSize)
		if err != nil {
			return nil, fmt.Errorf("recover stuck jobs: %w", err)
		}
		return res, nil
	})
}
