package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/target/notify-dispatch/internal/data/pgxutil"
	"github.com/target/notify-dispatch/internal/domain/model"
)

// TemplateRepo reads notification_templates.
type TemplateRepo struct {
	DB *sql.DB
}

// NewTemplateRepo creates a TemplateRepo.
func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{DB: db}
}

const templateColumns = `
  id,
  event_type,
  channel,
  tenant_id,
  subject,
  body,
  body_rich,
  provider_template_id,
  updated_at
`

// FindBest returns the tenant template for key, else the system template,
// else nil with no error. NULLS LAST orders the tenant row first.
func (r *TemplateRepo) FindBest(ctx context.Context, key model.TemplateKey) (*model.Template, error) {
	if strings.TrimSpace(key.EventType) == "" || key.Channel == "" {
		return nil, ErrTemplateKeyInvalid
	}

	query := `
		SELECT ` + templateColumns + `
		FROM notification_templates
		WHERE event_type = $1
		  AND channel = $2
		  AND (tenant_id = $3 OR tenant_id IS NULL)
		ORDER BY tenant_id NULLS LAST
		LIMIT 1
	`

	var tmpl *model.Template
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, key.EventType, string(key.Channel), key.TenantID)
		if err != nil {
			return err
		}
		tmpl, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Template])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find template: %w", err)
	}
	return tmpl, nil
}

// UpsertTemplateParams describes a template write.
type UpsertTemplateParams struct {
	Template model.Template
}

// Upsert creates or replaces the template for (event type, channel, tenant).
func (r *TemplateRepo) Upsert(ctx context.Context, p UpsertTemplateParams) (*model.Template, error) {
	t := p.Template
	if strings.TrimSpace(t.EventType) == "" || !t.Channel.Valid() {
		return nil, ErrTemplateKeyInvalid
	}

	query := `
		INSERT INTO notification_templates (event_type, channel, tenant_id, subject, body, body_rich, provider_template_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_type, channel, (COALESCE(tenant_id, ''))) DO UPDATE
		SET subject = EXCLUDED.subject,
		    body = EXCLUDED.body,
		    body_rich = EXCLUDED.body_rich,
		    provider_template_id = EXCLUDED.provider_template_id,
		    updated_at = now()
		RETURNING ` + templateColumns

	var out *model.Template
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query,
			t.EventType, string(t.Channel), t.TenantID, t.Subject, t.Body, t.BodyRich, t.ProviderTemplateID)
		if err != nil {
			return err
		}
		out, err = pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[model.Template])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert template: %w", err)
	}
	return out, nil
}
