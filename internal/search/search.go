// Package search runs the public site search: a substring match over the search fields of every
// public model, one model after the other.
package search

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/urbanisme-sn/portail/internal/crud"
	"github.com/urbanisme-sn/portail/internal/schema"
)

const (
	// DefaultPerModel caps the hits returned for each model.
	DefaultPerModel = 5
	// MinQueryLength is the shortest query searched.
	MinQueryLength = 2

	excerptLength = 160
)

// excerptFields are tried in order to describe a hit.
var excerptFields = []string{"excerpt", "summary", "description", "content"}

// Hit is one matching record.
type Hit struct {
	Model   string `json:"model"`
	Label   string `json:"label"`
	ID      string `json:"id"`
	Title   string `json:"title"`
	Slug    string `json:"slug,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
}

// Searcher searches the public models.
type Searcher struct {
	services []*crud.Service
	perModel int
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithPerModel sets how many hits each model contributes.
func WithPerModel(n int) Option { return func(s *Searcher) { s.perModel = n } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Searcher) { s.logger = l } }

// New creates a searcher over the public, searchable models among services.
func New(services []*crud.Service, opts ...Option) *Searcher {
	s := &Searcher{perModel: DefaultPerModel, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	for _, svc := range services {
		m := svc.Model()
		if m.Public && m.Features.Search && len(m.SearchFields) > 0 {
			s.services = append(s.services, svc)
		}
	}
	return s
}

// PublicScope restricts opts to the rows a model shows on the public site. The model's public
// filter overrides caller filters on the same columns; trash is never listed.
func PublicScope(m *schema.ModelConfig, opts crud.ListOptions) crud.ListOptions {
	filters := make(map[string]any, len(opts.Filters)+len(m.PublicFilter))
	for k, v := range opts.Filters {
		filters[k] = v
	}
	for k, v := range m.PublicFilter {
		filters[k] = v
	}
	opts.Filters = filters
	opts.OnlyTrashed = false
	return opts
}

// Search returns the hits of q, grouped by model in registration order. A model that fails to
// answer is logged and skipped.
func (s *Searcher) Search(ctx context.Context, q string) []Hit {
	q = strings.TrimSpace(q)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return []Hit{}
	}

	hits := []Hit{}
	for _, svc := range s.services {
		if ctx.Err() != nil {
			break
		}
		m := svc.Model()
		res, err := svc.List(ctx, PublicScope(m, crud.ListOptions{Search: q, Limit: s.perModel}))
		if err != nil {
			s.logger.Warn("Search skipped model", "model", m.Name, "error", err)
			continue
		}
		for _, rec := range res.Data {
			hits = append(hits, Hit{
				Model:   m.Name,
				Label:   m.Label,
				ID:      rec.String(m.PrimaryKey),
				Title:   crud.DisplayName(m, rec),
				Slug:    rec.String("slug"),
				Excerpt: excerpt(rec),
			})
		}
	}
	return hits
}

func excerpt(rec schema.Record) string {
	for _, f := range excerptFields {
		if text := strings.Join(strings.Fields(stripTags(rec.String(f))), " "); text != "" {
			return truncate(text, excerptLength)
		}
	}
	return ""
}

// stripTags drops markup from rich text.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>' && inTag:
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}
