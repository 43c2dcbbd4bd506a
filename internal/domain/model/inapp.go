package model

import (
	"encoding/json"
	"time"
)

// InAppNotification is a row the UI polls for a user.
type InAppNotification struct {
	ID        string          `json:"id"         db:"id"`
	UserID    string          `json:"user_id"    db:"user_id"`
	TenantID  string          `json:"tenant_id"  db:"tenant_id"`
	JobID     *string         `json:"job_id"     db:"job_id"`
	Title     string          `json:"title"      db:"title"`
	Body      string          `json:"body"       db:"body"`
	Metadata  json.RawMessage `json:"metadata"   db:"metadata"`
	IsRead    bool            `json:"is_read"    db:"is_read"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
