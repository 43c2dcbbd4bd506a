package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/target/notify-dispatch/internal/data/pgxutil"
	"github.com/target/notify-dispatch/internal/domain/model"
)

// RepoConfig holds optional settings shared by the dispatch repositories.
type RepoConfig struct {
	Logger *slog.Logger
	Clock  Clock
}

// JobRepo provides database operations on notification_jobs.
type JobRepo struct {
	DB     *sql.DB
	clock  Clock
	logger *slog.Logger
}

// NewJobRepo creates a JobRepo.
func NewJobRepo(db *sql.DB, cfg RepoConfig) *JobRepo {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobRepo{
		DB:     db,
		clock:  clockOrSystem(cfg.Clock),
		logger: logger.With("component", "job_repo"),
	}
}

const jobColumns = `
  id,
  tenant_id,
  environment,
  event_type,
  channel,
  recipient_name,
  recipient_address,
  payload,
  template_key,
  template_variables,
  metadata,
  status,
  retry_count,
  max_retries,
  last_error,
  provider_message_id,
  scheduled_at,
  executed_at,
  completed_at,
  last_retry_at,
  created_at,
  updated_at
`

// effectiveMaxSQL mirrors model.Job.EffectiveMaxRetries.
const effectiveMaxSQL = `(CASE WHEN max_retries > 0 THEN max_retries ELSE 3 END)`

// Create inserts a job. New jobs start as scheduled; the promoter queues them.
func (r *JobRepo) Create(ctx context.Context, req *model.CreateJobRequest) (*model.Job, error) {
	if req == nil {
		return nil, errors.New("create job request is required")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	env := req.Environment
	if env == "" {
		env = model.EnvironmentLive
	}
	maxRetries := req.MaxRetries
	if maxRetries == 0 {
		maxRetries = model.DefaultMaxRetries
	}
	vars := req.TemplateVariables
	if vars == nil {
		vars = model.TemplateVariables{}
	}
	now := r.clock.Now()

	query := `
		INSERT INTO notification_jobs (
			tenant_id, environment, event_type, channel, recipient_name, recipient_address,
			payload, template_key, template_variables, metadata, status, max_retries,
			scheduled_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 'scheduled', $11, $12, $13, $13)
		RETURNING ` + jobColumns

	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query,
			req.TenantID, env, req.EventType, req.Channel, req.RecipientName, req.RecipientAddress,
			jsonOrEmpty(req.Payload), req.TemplateKey, vars, jsonOrEmpty(req.Metadata), maxRetries,
			req.ScheduledAt, now,
		)
		if err != nil {
			return err
		}
		job, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// GetByID loads a job. Unknown or malformed ids return model.ErrJobNotFound.
func (r *JobRepo) GetByID(ctx context.Context, id string) (*model.Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, model.ErrJobNotFound
	}

	query := `SELECT ` + jobColumns + ` FROM notification_jobs WHERE id = $1`

	var job *model.Job
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, id)
		if err != nil {
			return err
		}
		job, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Job])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, model.ErrJobNotFound
		}
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return job, nil
}

// MarkProcessing moves a job to processing. Jobs already sent (or further
// along via webhooks) are left untouched and reported as not found.
func (r *JobRepo) MarkProcessing(ctx context.Context, id string) error {
	now := r.clock.Now()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'processing', executed_at = $2, updated_at = $2
		WHERE id = $1 AND status NOT IN ('sent', 'delivered', 'read')
	`, id, now)
	return r.expectOne(res, err, "mark job processing")
}

// MarkSent records provider acceptance.
func (r *JobRepo) MarkSent(ctx context.Context, id, providerMessageID string) error {
	now := r.clock.Now()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'sent',
		    provider_message_id = NULLIF($2, ''),
		    last_error = NULL,
		    completed_at = $3,
		    updated_at = $3
		WHERE id = $1
	`, id, providerMessageID, now)
	return r.expectOne(res, err, "mark job sent")
}

// RecordFailure increments retry_count (capped at the effective max) and sets
// the job to failed in one statement. The returned record carries the new
// counter and the effective max; Terminal is left for the caller's policy.
func (r *JobRepo) RecordFailure(ctx context.Context, id, errMsg string) (*model.FailureRecord, error) {
	now := r.clock.Now()
	query := `
		UPDATE notification_jobs
		SET retry_count = LEAST(retry_count + 1, ` + effectiveMaxSQL + `),
		    status = 'failed',
		    last_error = $2,
		    last_retry_at = $3,
		    completed_at = CASE WHEN retry_count + 1 >= ` + effectiveMaxSQL + ` THEN $3 ELSE NULL END,
		    updated_at = $3
		WHERE id = $1
		RETURNING retry_count, ` + effectiveMaxSQL

	var rec model.FailureRecord
	err := r.DB.QueryRowContext(ctx, query, id, errMsg, now).Scan(&rec.RetryCount, &rec.MaxRetries)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, model.ErrJobNotFound
		}
		return nil, fmt.Errorf("record job failure: %w", err)
	}
	return &rec, nil
}

// MarkExhausted writes the terminal failed state for a job whose budget was
// already spent before this attempt. The counter is not touched.
func (r *JobRepo) MarkExhausted(ctx context.Context, id, errMsg string) error {
	now := r.clock.Now()
	res, err := r.DB.ExecContext(ctx, `
		UPDATE notification_jobs
		SET status = 'failed',
		    last_error = COALESCE(NULLIF($2, ''), last_error),
		    completed_at = COALESCE(completed_at, $3),
		    updated_at = $3
		WHERE id = $1
	`, id, errMsg, now)
	return r.expectOne(res, err, "mark job exhausted")
}

func (r *JobRepo) expectOne(res sql.Result, err error, op string) error {
	if err != nil {
		if isInvalidText(err) {
			return model.ErrJobNotFound
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return model.ErrJobNotFound
	}
	return nil
}

func jsonOrEmpty(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return []byte(`{}`)
	}
	return raw
}

// isInvalidText reports a malformed uuid literal, which we treat as a missing row.
func isInvalidText(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InvalidTextRepresentation
}
