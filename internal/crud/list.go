package crud

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/urbanisme-sn/portail/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Listing defaults.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// Range is a filter value matching min <= column <= max. A nil bound is open.
type Range struct {
	Min any `json:"min,omitempty"`
	Max any `json:"max,omitempty"`
}

// ListOptions selects one page of a listing.
//
// Filter values that are slices become IN conditions, Range values (or maps with "min"/"max"
// keys) become range conditions and anything else is an equality.
type ListOptions struct {
	Page      int              `json:"page"`
	Limit     int              `json:"limit"`
	SortBy    string           `json:"sortBy,omitempty"`
	SortOrder schema.SortOrder `json:"sortOrder,omitempty"`
	Filters   map[string]any   `json:"filters,omitempty"`
	Search    string           `json:"search,omitempty"`
	Includes  []string         `json:"includes,omitempty"`

	// OnlyTrashed lists soft-deleted rows instead of live ones.
	OnlyTrashed bool `json:"onlyTrashed,omitempty"`
}

// ListResult is one page of rows with its pagination metadata.
type ListResult struct {
	Data       []schema.Record `json:"data"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
	HasNext    bool            `json:"hasNext"`
	HasPrev    bool            `json:"hasPrev"`
}

func newListResult(data []schema.Record, total int64, page, limit int) *ListResult {
	totalPages := int(math.Ceil(float64(total) / float64(limit)))
	return &ListResult{
		Data:       data,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// List returns one page of rows matching opts. Soft-deleted rows are excluded unless
// opts.OnlyTrashed is set.
func (s *Service) List(ctx context.Context, opts ListOptions) (res *ListResult, err error) {
	const op = "list"
	t := s.begin(op)
	defer t.done(&err)

	res, err = s.list(ctx, opts)
	if err != nil {
		return nil, s.fail(op, err)
	}
	return res, nil
}

func (s *Service) list(ctx context.Context, opts ListOptions) (*ListResult, error) {
	if opts.OnlyTrashed && !s.model.Features.Trash {
		return nil, fmt.Errorf("%s: trash: %w", s.model.Name, ErrFeatureDisabled)
	}
	if opts.Page < 1 {
		opts.Page = DefaultPage
	}
	if opts.Limit < 1 {
		opts.Limit = DefaultLimit
	}

	var total int64
	if err := s.query(ctx, opts).Count(&total).Error; err != nil {
		return nil, err
	}

	field, desc := s.sortOf(opts)
	var rows []map[string]any
	err := s.query(ctx, opts).
		Select(s.model.Columns()).
		Order(clause.OrderByColumn{Column: col(field), Desc: desc}).
		Order(clause.OrderByColumn{Column: col(s.model.PrimaryKey), Desc: desc}).
		Offset((opts.Page - 1) * opts.Limit).
		Limit(opts.Limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	data := make([]schema.Record, len(rows))
	for i, row := range rows {
		data[i] = s.decode(row)
	}
	if err := s.expand(ctx, data, opts.Includes); err != nil {
		return nil, err
	}
	return newListResult(data, total, opts.Page, opts.Limit), nil
}

// query builds the filtered statement shared by the count and the page read.
func (s *Service) query(ctx context.Context, opts ListOptions) *gorm.DB {
	q := s.table(ctx)
	if s.model.Features.Trash {
		if opts.OnlyTrashed {
			q = q.Where(clause.Neq{Column: col(schema.ColumnDeletedAt), Value: nil})
		} else {
			q = q.Where(notDeleted())
		}
	}

	names := make([]string, 0, len(opts.Filters))
	for name := range opts.Filters {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !s.model.HasColumn(name) {
			s.logger.Warn("Ignoring filter on unknown column", "model", s.model.Name, "column", name)
			continue
		}
		for _, expr := range s.filterExprs(name, opts.Filters[name]) {
			q = q.Where(expr)
		}
	}

	if term := strings.TrimSpace(opts.Search); term != "" && len(s.model.SearchFields) > 0 {
		pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
		exprs := make([]clause.Expression, len(s.model.SearchFields))
		for i, f := range s.model.SearchFields {
			exprs[i] = clause.Expr{SQL: `LOWER(?) LIKE ? ESCAPE '\'`, Vars: []any{col(f), pattern}}
		}
		q = q.Where(clause.Or(exprs...))
	}
	return q
}

func (s *Service) filterExprs(name string, v any) []clause.Expression {
	switch x := v.(type) {
	case Range:
		return s.rangeExprs(name, x.Min, x.Max)
	case *Range:
		if x == nil {
			return nil
		}
		return s.rangeExprs(name, x.Min, x.Max)
	case map[string]any:
		lo, hasMin := x["min"]
		hi, hasMax := x["max"]
		if !hasMin && !hasMax {
			s.logger.Warn("Ignoring object filter without min or max", "model", s.model.Name, "column", name)
			return nil
		}
		return s.rangeExprs(name, lo, hi)
	case []any:
		values := make([]any, len(x))
		for i, e := range x {
			values[i] = s.filterValue(name, e)
		}
		return []clause.Expression{clause.IN{Column: col(name), Values: values}}
	case []string:
		values := make([]any, len(x))
		for i, e := range x {
			values[i] = s.filterValue(name, e)
		}
		return []clause.Expression{clause.IN{Column: col(name), Values: values}}
	default:
		return []clause.Expression{clause.Eq{Column: col(name), Value: s.filterValue(name, v)}}
	}
}

func (s *Service) rangeExprs(name string, lo, hi any) []clause.Expression {
	var exprs []clause.Expression
	if lo != nil && lo != "" {
		exprs = append(exprs, clause.Gte{Column: col(name), Value: s.filterValue(name, lo)})
	}
	if hi != nil && hi != "" {
		exprs = append(exprs, clause.Lte{Column: col(name), Value: s.filterValue(name, hi)})
	}
	return exprs
}

// filterValue coerces query-string style values to the column type.
func (s *Service) filterValue(name string, v any) any {
	f, ok := s.model.Field(name)
	if !ok || v == nil {
		return v
	}
	switch {
	case f.Type.IsBoolean():
		if b, err := toBool(v); err == nil {
			return b
		}
	case f.Type.IsNumeric():
		if n, err := toNumber(v); err == nil {
			return n
		}
	}
	return v
}

// sortOf resolves the sort column and direction. Unknown columns fall back to the default sort.
func (s *Service) sortOf(opts ListOptions) (string, bool) {
	field := s.model.DefaultSort.Field
	if opts.SortBy != "" {
		if s.sortable(opts.SortBy) {
			field = opts.SortBy
		} else {
			s.logger.Warn("Ignoring unknown sort column", "model", s.model.Name, "column", opts.SortBy)
		}
	}

	order := s.model.DefaultSort.Order
	switch schema.SortOrder(strings.ToLower(string(opts.SortOrder))) {
	case schema.Asc:
		order = schema.Asc
	case schema.Desc:
		order = schema.Desc
	}
	return field, order == schema.Desc
}

func (s *Service) sortable(name string) bool {
	if !s.model.HasColumn(name) {
		return false
	}
	if len(s.model.SortFields) == 0 || name == s.model.DefaultSort.Field {
		return true
	}
	for _, f := range s.model.SortFields {
		if f == name {
			return true
		}
	}
	return false
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
