package crud

import (
	"context"
	"fmt"

	"github.com/urbanisme-sn/portail/internal/schema"
)

// copySuffix is appended to slug values of duplicated rows.
const copySuffix = "-copy"

// Duplicate creates a copy of a row through Create. System columns and passwords are not copied.
// It returns nil when the source row does not exist.
func (s *Service) Duplicate(ctx context.Context, id string) (schema.Record, error) {
	if !s.model.Features.Duplicate {
		return nil, fmt.Errorf("%s: duplicate: %w", s.model.Name, ErrFeatureDisabled)
	}
	src, err := s.fetch(ctx, id)
	if err != nil {
		return nil, s.fail("duplicate", err, "id", id)
	}
	if src == nil {
		return nil, nil
	}

	data := make(schema.Record, len(s.model.Fields))
	for _, f := range s.model.Fields {
		v, ok := src[f.Name]
		if !ok || f.Type == schema.TypePassword {
			continue
		}
		if f.Type == schema.TypeSlug {
			if slug, _ := v.(string); slug != "" {
				v = slug + copySuffix
			}
		}
		data[f.Name] = v
	}
	return s.Create(ctx, data)
}

// RunAction runs the named action on ids. Actions that are not bulk take exactly one id.
func (s *Service) RunAction(ctx context.Context, name string, ids []string) (err error) {
	a, ok := s.model.Action(name)
	if !ok {
		return fmt.Errorf("%s: %q: %w", s.model.Name, name, ErrUnknownAction)
	}
	t := s.begin("action:" + name)
	defer t.done(&err)

	switch {
	case len(ids) == 0:
		return &RejectionError{Message: "no records selected"}
	case !a.Bulk && len(ids) > 1:
		return &RejectionError{Message: fmt.Sprintf("%s applies to a single record", a.Label)}
	}
	if err := a.Handler(ctx, ids); err != nil {
		return s.fail(name, err, "count", len(ids))
	}
	s.logger.Info("Action completed", "model", s.model.Name, "action", name, "count", len(ids))
	return nil
}
