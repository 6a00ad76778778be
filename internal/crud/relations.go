package crud

import (
	"context"
	"fmt"

	"github.com/urbanisme-sn/portail/internal/schema"
	"gorm.io/gorm/clause"
)

// relatedKey is the primary key column assumed for related tables.
const relatedKey = schema.ColumnID

// expand attaches the eager relations of the model and the named includes to every record.
// Unknown include names are ignored.
func (s *Service) expand(ctx context.Context, recs []schema.Record, includes []string) error {
	if len(recs) == 0 {
		return nil
	}
	wanted := make(map[string]bool)
	for _, r := range s.model.Relations {
		if r.Eager {
			wanted[r.Name] = true
		}
	}
	for _, name := range includes {
		if _, ok := s.model.Relation(name); !ok {
			s.logger.Warn("Ignoring unknown relation", "model", s.model.Name, "relation", name)
			continue
		}
		wanted[name] = true
	}

	for _, r := range s.model.Relations {
		if !wanted[r.Name] {
			continue
		}
		var err error
		switch r.Type {
		case schema.BelongsTo:
			err = s.loadBelongsTo(ctx, recs, r)
		case schema.HasOne, schema.HasMany:
			err = s.loadHas(ctx, recs, r)
		case schema.ManyToMany:
			err = s.loadManyToMany(ctx, recs, r)
		}
		if err != nil {
			return fmt.Errorf("load relation %s: %w", r.Name, err)
		}
	}
	return nil
}

func keyOf(v any) string {
	if v == nil {
		return ""
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

func distinct(values []string) []any {
	seen := make(map[string]bool, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func (s *Service) rowsWhereIn(ctx context.Context, table, column string, values []any) ([]schema.Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	var rows []map[string]any
	err := s.db.WithContext(ctx).
		Table(table).
		Where(clause.IN{Column: col(column), Values: values}).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]schema.Record, len(rows))
	for i, row := range rows {
		out[i] = plainRow(row)
	}
	return out, nil
}

func (s *Service) loadBelongsTo(ctx context.Context, recs []schema.Record, r schema.Relation) error {
	keys := make([]string, len(recs))
	for i, rec := range recs {
		keys[i] = keyOf(rec[r.ForeignKey])
	}
	related, err := s.rowsWhereIn(ctx, r.Table, relatedKey, distinct(keys))
	if err != nil {
		return err
	}
	byKey := make(map[string]schema.Record, len(related))
	for _, row := range related {
		byKey[keyOf(row[relatedKey])] = row
	}
	for i, rec := range recs {
		if row, ok := byKey[keys[i]]; ok {
			rec[r.Name] = row
		} else {
			rec[r.Name] = nil
		}
	}
	return nil
}

func (s *Service) ownKeys(recs []schema.Record) []string {
	keys := make([]string, len(recs))
	for i, rec := range recs {
		keys[i] = keyOf(rec[s.model.PrimaryKey])
	}
	return keys
}

func (s *Service) loadHas(ctx context.Context, recs []schema.Record, r schema.Relation) error {
	keys := s.ownKeys(recs)
	related, err := s.rowsWhereIn(ctx, r.Table, r.ForeignKey, distinct(keys))
	if err != nil {
		return err
	}
	grouped := make(map[string][]schema.Record)
	for _, row := range related {
		k := keyOf(row[r.ForeignKey])
		grouped[k] = append(grouped[k], row)
	}
	for i, rec := range recs {
		rows := grouped[keys[i]]
		if r.Type == schema.HasOne {
			if len(rows) > 0 {
				rec[r.Name] = rows[0]
			} else {
				rec[r.Name] = nil
			}
			continue
		}
		if rows == nil {
			rows = []schema.Record{}
		}
		rec[r.Name] = rows
	}
	return nil
}

func (s *Service) loadManyToMany(ctx context.Context, recs []schema.Record, r schema.Relation) error {
	keys := s.ownKeys(recs)
	links, err := s.rowsWhereIn(ctx, r.Through, r.ForeignKey, distinct(keys))
	if err != nil {
		return err
	}
	others := make([]string, len(links))
	for i, l := range links {
		others[i] = keyOf(l[r.OtherKey])
	}
	related, err := s.rowsWhereIn(ctx, r.Table, relatedKey, distinct(others))
	if err != nil {
		return err
	}
	byKey := make(map[string]schema.Record, len(related))
	for _, row := range related {
		byKey[keyOf(row[relatedKey])] = row
	}
	grouped := make(map[string][]schema.Record)
	for _, l := range links {
		owner := keyOf(l[r.ForeignKey])
		if row, ok := byKey[keyOf(l[r.OtherKey])]; ok {
			grouped[owner] = append(grouped[owner], row)
		}
	}
	for i, rec := range recs {
		rows := grouped[keys[i]]
		if rows == nil {
			rows = []schema.Record{}
		}
		rec[r.Name] = rows
	}
	return nil
}
