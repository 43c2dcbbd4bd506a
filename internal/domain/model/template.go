package model

import "time"

// Template is a rendering pattern for one (event type, channel) pair.
// TenantID is nil for system templates, which tenant templates shadow.
type Template struct {
	ID                 string    `json:"id"                             db:"id"`
	EventType          string    `json:"event_type"                     db:"event_type"`
	Channel            Channel   `json:"channel"                        db:"channel"`
	TenantID           *string   `json:"tenant_id,omitempty"            db:"tenant_id"`
	Subject            *string   `json:"subject,omitempty"              db:"subject"`
	Body               string    `json:"body"                           db:"body"`
	BodyRich           *string   `json:"body_rich,omitempty"            db:"body_rich"`
	ProviderTemplateID *string   `json:"provider_template_id,omitempty" db:"provider_template_id"`
	UpdatedAt          time.Time `json:"updated_at"                     db:"updated_at"`
}

// IsSystem reports whether the template is tenant-agnostic.
func (t *Template) IsSystem() bool {
	return t != nil && t.TenantID == nil
}

// TemplateKey identifies a template lookup.
type TemplateKey struct {
	EventType string
	Channel   Channel
	TenantID  string
}
