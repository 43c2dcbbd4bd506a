package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/target/notify-dispatch/internal/data/pgxutil"
	"github.com/target/notify-dispatch/internal/domain/model"
)

// InAppRepo persists in_app_notifications.
type InAppRepo struct {
	DB    *sql.DB
	clock Clock
}

// NewInAppRepo creates an InAppRepo.
func NewInAppRepo(db *sql.DB, cfg RepoConfig) *InAppRepo {
	return &InAppRepo{DB: db, clock: clockOrSystem(cfg.Clock)}
}

const inAppColumns = `id, user_id, tenant_id, job_id, title, body, metadata, is_read, created_at`

// Insert writes an unread notification and returns the stored row.
func (r *InAppRepo) Insert(ctx context.Context, n *model.InAppNotification) (*model.InAppNotification, error) {
	if n == nil {
		return nil, errors.New("notification is required")
	}
	if strings.TrimSpace(n.UserID) == "" {
		return nil, errors.New("user id is required")
	}
	if strings.TrimSpace(n.TenantID) == "" {
		return nil, errors.New("tenant id is required")
	}

	id := n.ID
	if id == "" {
		id = uuid.NewString()
	}

	query := `
		INSERT INTO in_app_notifications (id, user_id, tenant_id, job_id, title, body, metadata, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, $8)
		RETURNING ` + inAppColumns

	var out *model.InAppNotification
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query,
			id, n.UserID, n.TenantID, n.JobID, n.Title, n.Body, jsonOrEmpty(n.Metadata), r.clock.Now())
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.InAppNotification])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert in-app notification: %w", err)
	}
	return out, nil
}

// CountUnread returns a user's unread notifications within a tenant.
func (r *InAppRepo) CountUnread(ctx context.Context, tenantID, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM in_app_notifications
		WHERE tenant_id = $1 AND user_id = $2 AND NOT is_read
	`, tenantID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}
