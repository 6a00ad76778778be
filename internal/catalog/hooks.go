package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm/clause"

	"github.com/urbanisme-sn/portail/internal/crud"
	"github.com/urbanisme-sn/portail/internal/schema"
)

// Slugify turns a title into a URL segment: accents folded, lower case, words joined by dashes.
func Slugify(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// uniqueSlug returns base, or base followed by the first free counter, among the slugs of table.
// Rows in the trash keep their slug.
func (c *Catalog) uniqueSlug(ctx context.Context, table, base string) (string, error) {
	candidate := base
	for i := 2; ; i++ {
		var n int64
		err := c.db.WithContext(ctx).Table(table).
			Where(clause.Eq{Column: clause.Column{Name: "slug"}, Value: candidate}).
			Count(&n).Error
		if err != nil {
			return "", err
		}
		if n == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
}

// withSlug fills an empty slug from the source field on create.
func (c *Catalog) withSlug(table, source string) func(context.Context, schema.Record) (schema.Record, error) {
	return func(ctx context.Context, data schema.Record) (schema.Record, error) {
		if data.String("slug") != "" {
			return data, nil
		}
		base := Slugify(data.String(source))
		if base == "" {
			return data, nil
		}
		slug, err := c.uniqueSlug(ctx, table, base)
		if err != nil {
			return nil, err
		}
		data["slug"] = slug
		return data, nil
	}
}

// chain runs create hooks in order.
func chain(hooks ...func(context.Context, schema.Record) (schema.Record, error)) func(context.Context, schema.Record) (schema.Record, error) {
	return func(ctx context.Context, data schema.Record) (schema.Record, error) {
		var err error
		for _, h := range hooks {
			if data, err = h(ctx, data); err != nil {
				return nil, err
			}
		}
		return data, nil
	}
}

// stampPublished sets published_at when a record is created already published.
func (c *Catalog) stampPublished(_ context.Context, data schema.Record) (schema.Record, error) {
	if data.String("status") == "published" && data.String("published_at") == "" {
		data["published_at"] = c.now().UTC()
	}
	return data, nil
}

// parseWhen reads a date or datetime value as stored or submitted.
func parseWhen(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case string:
		for _, layout := range []string{crud.DateTimeLayout, "2006-01-02T15:04", crud.DateLayout} {
			if t, err := time.Parse(layout, strings.TrimSpace(x)); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// after is a custom rule: the value must be later than the other field, when both are set.
func after(other string) func(any, schema.Record) bool {
	return func(value any, values schema.Record) bool {
		end, ok := parseWhen(value)
		if !ok {
			return true
		}
		start, ok := parseWhen(values[other])
		if !ok {
			return true
		}
		return end.After(start)
	}
}
