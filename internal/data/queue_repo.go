package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/target/notify-dispatch/internal/core"
	"github.com/target/notify-dispatch/internal/data/pgxutil"
	"github.com/target/notify-dispatch/internal/domain/model"
)

// QueueChannel is the LISTEN/NOTIFY channel announcing new queue entries.
const QueueChannel = "notification_queue"

const defaultPromoteLimit = 500

// QueueRepo is a Postgres-backed leasing queue. An entry is visible while
// vt <= now; Dequeue pushes vt forward by the visibility timeout so other
// consumers skip it until the lease lapses.
type QueueRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewQueueRepo creates a QueueRepo.
func NewQueueRepo(db *sql.DB, cfg RepoConfig) *QueueRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueRepo{
		DB:     db,
		clock:  clockOrSystem(cfg.Clock),
		logger: logger.With("component", "queue_repo"),
	}
}

// dequeueSQL leases up to $2 visible entries. SKIP LOCKED keeps concurrent
// consumers from waiting on (or double-leasing) the same rows.
const dequeueSQL = `
	WITH next AS (
		SELECT msg_id
		FROM notification_queue
		WHERE vt <= $1
		ORDER BY msg_id
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	)
	UPDATE notification_queue q
	SET vt = $1 + make_interval(secs => $3),
	    read_ct = q.read_ct + 1
	FROM next
	WHERE q.msg_id = next.msg_id
	RETURNING q.msg_id, q.read_ct, q.enqueued_at, q.vt, q.message
`

// Dequeue leases a batch of entries.
func (r *QueueRepo) Dequeue(ctx context.Context, p core.DequeueParams) ([]model.QueueEntry, error) {
	if p.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", p.BatchSize)
	}
	if p.VisibilitySeconds <= 0 {
		return nil, fmt.Errorf("visibility timeout must be positive, got %d", p.VisibilitySeconds)
	}

	now := r.clock.Now()
	var entries []model.QueueEntry
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, dequeueSQL, now, p.BatchSize, p.VisibilitySeconds)
		if err != nil {
			return err
		}
		entries, err = pgx.CollectRows(rows, scanQueueEntry)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].LeaseID < entries[j].LeaseID })
	return entries, nil
}

func scanQueueEntry(row pgx.CollectableRow) (model.QueueEntry, error) {
	var (
		e   model.QueueEntry
		raw []byte
	)
	if err := row.Scan(&e.LeaseID, &e.ReadCount, &e.EnqueuedAt, &e.VisibleAt, &raw); err != nil {
		return e, err
	}
	if err := json.Unmarshal(raw, &e.Payload); err != nil {
		// Keep the entry so the consumer can release it; an empty job id hydrates as stale.
		e.Payload = model.QueuePayload{}
	}
	return e, nil
}

// Release permanently deletes an entry.
func (r *QueueRepo) Release(ctx context.Context, leaseID int64) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM notification_queue WHERE msg_id = $1`, leaseID)
	if err != nil {
		return fmt.Errorf("release lease %d: %w", leaseID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("release lease %d rows affected: %w", leaseID, err)
	}
	if n == 0 {
		return ErrLeaseNotFound
	}
	return nil
}

// Archive moves an entry into notification_dlq in a single statement, so the
// live row is deleted if and only if the dead letter is written.
func (r *QueueRepo) Archive(ctx context.Context, leaseID int64, errMsg string) error {
	res, err := r.DB.ExecContext(ctx, `
		WITH moved AS (
			DELETE FROM notification_queue
			WHERE msg_id = $1
			RETURNING msg_id, job_id, message, read_ct, enqueued_at
		)
		INSERT INTO notification_dlq (id, msg_id, job_id, message, error_message, read_ct, enqueued_at, archived_at)
		SELECT $2, msg_id, job_id, message, $3, read_ct, enqueued_at, $4
		FROM moved
	`, leaseID, uuid.NewString(), errMsg, r.clock.Now())
	if err != nil {
		return fmt.Errorf("archive lease %d: %w", leaseID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive lease %d rows affected: %w", leaseID, err)
	}
	if n == 0 {
		return ErrLeaseNotFound
	}
	return nil
}

// Enqueue inserts a visible entry for a job and wakes listeners. A job may
// hold at most one live entry; a second enqueue returns ErrAlreadyQueued.
func (r *QueueRepo) Enqueue(ctx context.Context, payload model.QueuePayload) (int64, error) {
	if strings.TrimSpace(payload.JobID) == "" {
		return 0, ErrJobIDRequired
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal queue payload: %w", err)
	}

	now := r.clock.Now()
	var id int64
	err = pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO notification_queue (job_id, message, enqueued_at, vt)
				VALUES ($1, $2, $3, $3)
				RETURNING msg_id
			`, payload.JobID, string(msg), now).Scan(&id); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, QueueChannel, payload.JobID)
			return err
		},
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, ErrAlreadyQueued
		}
		return 0, fmt.Errorf("enqueue job %s: %w", payload.JobID, err)
	}
	return id, nil
}

// promoteSQL selects due scheduled jobs plus retryable failed jobs whose
// backoff has elapsed, inserts one queue entry per job and flips them to
// queued. The unique job_id constraint makes a second promotion a no-op.
const promoteSQL = `
	WITH due AS (
		SELECT j.id, j.tenant_id, j.channel, j.event_type
		FROM notification_jobs j
		WHERE (
				(j.status = 'scheduled' AND (j.scheduled_at IS NULL OR j.scheduled_at <= $1))
			 OR (j.status = 'failed'
				 AND j.retry_count < ` + effectiveMaxSQL + `
				 AND COALESCE(j.last_retry_at, j.updated_at) + make_interval(secs => $2::float8 * j.retry_count) <= $1)
		  )
		  AND ($3::text = '' OR j.tenant_id = $3::text)
		  AND NOT EXISTS (SELECT 1 FROM notification_queue q WHERE q.job_id = j.id)
		ORDER BY COALESCE(j.scheduled_at, j.created_at), j.id
		LIMIT $4
		FOR UPDATE OF j SKIP LOCKED
	),
	inserted AS (
		INSERT INTO notification_queue (job_id, message, enqueued_at, vt)
		SELECT id,
		       jsonb_build_object('job_id', id, 'tenant_id', tenant_id, 'channel', channel, 'event_type', event_type),
		       $1, $1
		FROM due
		ON CONFLICT (job_id) DO NOTHING
		RETURNING job_id
	)
	UPDATE notification_jobs j
	SET status = 'queued', updated_at = $1
	FROM inserted
	WHERE j.id = inserted.job_id
	RETURNING j.id, j.retry_count
`

// PromoteScheduled queues every due job and returns how many were queued.
func (r *QueueRepo) PromoteScheduled(ctx context.Context, p core.PromoteParams) (int, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = defaultPromoteLimit
	}
	backoffSeconds := p.RetryBackoff.Seconds()
	if backoffSeconds < 0 {
		backoffSeconds = 0
	}
	now := r.clock.Now()

	var promoted int
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			rows, err := tx.QueryContext(ctx, promoteSQL, now, backoffSeconds, p.TenantID, limit)
			if err != nil {
				return err
			}
			var history []model.StatusTransition
			for rows.Next() {
				var t model.StatusTransition
				if err := rows.Scan(&t.JobID, &t.RetryCount); err != nil {
					_ = rows.Close()
					return err
				}
				t.Status = model.JobStatusQueued
				t.CreatedAt = now
				history = append(history, t)
			}
			if err := rows.Err(); err != nil {
				return err
			}
			if err := rows.Close(); err != nil {
				return err
			}

			promoted = len(history)
			if promoted == 0 {
				return nil
			}
			if err := insertHistoryTx(ctx, tx, history); err != nil {
				return err
			}
			_, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, QueueChannel, fmt.Sprint(promoted))
			return err
		},
	})
	if err != nil {
		return 0, fmt.Errorf("promote scheduled jobs: %w", err)
	}
	return promoted, nil
}

// Stats reports ready, leased and dead-lettered counts.
func (r *QueueRepo) Stats(ctx context.Context) (*model.QueueStats, error) {
	var s model.QueueStats
	err := r.DB.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE vt <= $1),
			COUNT(*) FILTER (WHERE vt > $1),
			(SELECT COUNT(*) FROM notification_dlq)
		FROM notification_queue
	`, r.clock.Now()).Scan(&s.Ready, &s.Leased, &s.DeadLetters)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	return &s, nil
}

// WaitForEnqueue blocks until a NOTIFY on QueueChannel arrives or ctx ends.
func (r *QueueRepo) WaitForEnqueue(ctx context.Context) error {
	return pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{QueueChannel}.Sanitize()); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		defer func() {
			// A fresh context: ctx may already be done, and the pooled
			// connection must not keep listening.
			unlistenCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_, _ = conn.Exec(unlistenCtx, "UNLISTEN "+pgx.Identifier{QueueChannel}.Sanitize())
		}()
		_, err := conn.WaitForNotification(ctx)
		return err
	})
}
