package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/target/notify-dispatch/internal/core"
	"github.com/target/notify-dispatch/internal/domain/model"
)

// DefaultTemplateTTL bounds how long a resolved template stays cached.
const DefaultTemplateTTL = 5 * time.Minute

// TemplateCacheOptions configures the optional read-through cache.
type TemplateCacheOptions struct {
	Cache core.TemplateCache // Optional: nil disables caching
	TTL   time.Duration      // Optional: defaults to DefaultTemplateTTL
}

// TemplateResolverOptions groups dependencies for TemplateResolver.
type TemplateResolverOptions struct {
	Repo   core.TemplateRepository // Required: template lookup
	Cache  TemplateCacheOptions    // Optional: read-through cache
	Logger *slog.Logger            // Optional: structured logger
}

// TemplateResolver selects the template for a job. A tenant template for the
// same event type and channel shadows the system one.
type TemplateResolver struct {
	repo   core.TemplateRepository
	cache  core.TemplateCache
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewTemplateResolver constructs a TemplateResolver.
func NewTemplateResolver(opts TemplateResolverOptions) (*TemplateResolver, error) {
	if opts.Repo == nil {
		return nil, errors.New("TemplateRepository is required")
	}
	ttl := opts.Cache.TTL
	if ttl == 0 {
		ttl = DefaultTemplateTTL
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TemplateResolver{
		repo:   opts.Repo,
		cache:  opts.Cache.Cache,
		ttl:    ttl,
		logger: logger.With("component", "template_resolver"),
	}, nil
}

// MustNewTemplateResolver constructs a TemplateResolver and panics on error.
func MustNewTemplateResolver(opts TemplateResolverOptions) *TemplateResolver {
	r, err := NewTemplateResolver(opts)
	if err != nil {
		panic(err) //nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
	}
	return r
}

// Resolve returns the best template for key, or nil when none exists.
// Cache failures degrade to a direct lookup.
func (r *TemplateResolver) Resolve(ctx context.Context, key model.TemplateKey) (*model.Template, error) {
	if key.EventType == "" || !key.Channel.Valid() {
		return nil, fmt.Errorf("resolve template: invalid key %s/%s", key.EventType, key.Channel)
	}

	if r.cache != nil {
		tmpl, found, err := r.cache.Get(ctx, key)
		switch {
		case err != nil:
			r.logger.WarnContext(ctx, "template cache read failed", "error", err,
				"event_type", key.EventType, "channel", key.Channel)
		case found:
			return tmpl, nil
		}
	}

	v, err, _ := r.group.Do(flightKey(key), func() (any, error) {
		return r.lookup(ctx, key)
	})
	if err != nil {
		return nil, err
	}
	tmpl, _ := v.(*model.Template)
	return tmpl, nil
}

func (r *TemplateResolver) lookup(ctx context.Context, key model.TemplateKey) (*model.Template, error) {
	tmpl, err := r.repo.FindBest(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("resolve template: %w", err)
	}
	if r.cache != nil && r.ttl > 0 {
		if err := r.cache.Set(ctx, key, tmpl, r.ttl); err != nil {
			r.logger.WarnContext(ctx, "template cache write failed", "error", err,
				"event_type", key.EventType, "channel", key.Channel)
		}
	}
	return tmpl, nil
}

func flightKey(key model.TemplateKey) string {
	return key.TenantID + "\x00" + key.EventType + "\x00" + string(key.Channel)
}
