// Package catalog declares the entities of the ministry site: their fields, listings, hooks and
// actions.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/urbanisme-sn/portail/internal/audit"
	"github.com/urbanisme-sn/portail/internal/schema"
)

// Model names.
const (
	News           = "news"
	Projects       = "projects"
	Tenders        = "tenders"
	Events         = "events"
	Careers        = "careers"
	Publications   = "publications"
	MediaGalleries = "media_galleries"
	Partners       = "partners"
	Users          = "users"
)

// ContentModels are the models editors manage.
var ContentModels = []string{News, Projects, Tenders, Events, Careers, Publications, MediaGalleries, Partners}

// Catalog builds the ministry models. Hooks and actions that read or write other rows go
// through db.
type Catalog struct {
	db     *gorm.DB
	audit  *audit.Service
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithAudit records action results in the audit log.
func WithAudit(a *audit.Service) Option { return func(c *Catalog) { c.audit = a } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(c *Catalog) { c.now = now } }

// WithLogger sets the catalog logger.
func WithLogger(l *slog.Logger) Option { return func(c *Catalog) { c.logger = l } }

// New creates a catalog bound to db.
func New(db *gorm.DB, opts ...Option) *Catalog {
	c := &Catalog{db: db, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Models returns a fresh configuration of every ministry model.
func (c *Catalog) Models() []*schema.ModelConfig {
	return []*schema.ModelConfig{
		c.news(),
		c.projects(),
		c.tenders(),
		c.events(),
		c.careers(),
		c.publications(),
		c.mediaGalleries(),
		c.partners(),
		c.users(),
	}
}

// Register adds every ministry model to r.
func (c *Catalog) Register(r *schema.Registry) error {
	for _, m := range c.Models() {
		if err := r.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// contentFeatures are enabled on every editorial model.
var contentFeatures = schema.Features{
	Search:      true,
	Filters:     true,
	Sort:        true,
	Pagination:  true,
	Export:      true,
	Import:      true,
	BulkActions: true,
	Trash:       true,
	Audit:       true,
	Duplicate:   true,
	Preview:     true,
}

func options(pairs ...string) []schema.Option {
	out := make([]schema.Option, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, schema.Option{Value: pairs[i], Label: pairs[i+1]})
	}
	return out
}

var regions = options(
	"dakar", "Dakar",
	"diourbel", "Diourbel",
	"fatick", "Fatick",
	"kaffrine", "Kaffrine",
	"kaolack", "Kaolack",
	"kedougou", "Kédougou",
	"kolda", "Kolda",
	"louga", "Louga",
	"matam", "Matam",
	"saint_louis", "Saint-Louis",
	"sedhiou", "Sédhiou",
	"tambacounda", "Tambacounda",
	"thies", "Thiès",
	"ziguinchor", "Ziguinchor",
)

func maxLen(n int) schema.Rule { return schema.Rule{Kind: schema.RuleMax, Value: n} }
func minLen(n int) schema.Rule { return schema.Rule{Kind: schema.RuleMin, Value: n} }

const (
	mb           = 1024 * 1024
	imageMaxSize = 5 * mb
	docMaxSize   = 20 * mb
)

// setStatus returns an action handler that moves rows of table to status. extra adds columns to
// the update.
func (c *Catalog) setStatus(model, table, status string, extra func(now time.Time) map[string]any) func(context.Context, []string) error {
	return func(ctx context.Context, ids []string) error {
		now := c.now().UTC()
		values := map[string]any{"status": status, schema.ColumnUpdatedAt: now}
		if extra != nil {
			for k, v := range extra(now) {
				values[k] = v
			}
		}
		keys := make([]any, len(ids))
		for i, id := range ids {
			keys[i] = id
		}
		res := c.db.WithContext(ctx).Table(table).
			Where(clause.IN{Column: clause.Column{Name: schema.ColumnID}, Values: keys}).
			Updates(values)
		if res.Error != nil {
			return fmt.Errorf("failed to set %s status to %s: %w", table, status, res.Error)
		}
		if c.audit != nil {
			for _, id := range ids {
				c.audit.Log(ctx, audit.Entry{
					Action:     audit.ActionUpdate,
					EntityType: model,
					EntityID:   id,
					Changes:    map[string]any{"status": status},
				})
			}
		}
		c.logger.Info("Status changed", "model", model, "status", status, "requested", len(ids), "updated", res.RowsAffected)
		return nil
	}
}

// liveCount counts rows of table matching column = value that are not in the trash.
func (c *Catalog) liveCount(ctx context.Context, table, column, value string) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).Table(table).
		Where(clause.Eq{Column: clause.Column{Name: column}, Value: value}).
		Where(clause.Eq{Column: clause.Column{Name: schema.ColumnDeletedAt}, Value: nil}).
		Count(&n).Error
	return n, err
}
