package crud

import (
	"context"
	"fmt"

	"github.com/urbanisme-sn/portail/internal/audit"
	"github.com/urbanisme-sn/portail/internal/schema"
	"gorm.io/gorm/clause"
)

func (s *Service) requireTrash() error {
	if !s.model.Features.Trash {
		return fmt.Errorf("%s: trash: %w", s.model.Name, ErrFeatureDisabled)
	}
	return nil
}

// Restore clears deleted_at of a soft-deleted row. It returns false when no deleted row matches.
func (s *Service) Restore(ctx context.Context, id string) (restored bool, err error) {
	const op = "restore"
	t := s.begin(op)
	defer t.done(&err)

	if err := s.requireTrash(); err != nil {
		return false, err
	}
	res := s.table(ctx).
		Where(s.pkEq(id)).
		Where(clause.Neq{Column: col(schema.ColumnDeletedAt), Value: nil}).
		Updates(map[string]any{
			schema.ColumnDeletedAt: nil,
			schema.ColumnUpdatedAt: s.now().UTC(),
		})
	if res.Error != nil {
		return false, s.fail(op, res.Error, "id", id)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	s.record(ctx, audit.ActionUpdate, id, nil, map[string]any{schema.ColumnDeletedAt: nil})
	return true, nil
}

// ForceDelete removes a row from storage, deleted or not. The before-delete hook may veto it.
func (s *Service) ForceDelete(ctx context.Context, id string) (deleted bool, err error) {
	const op = "delete"
	t := s.begin("force delete")
	defer t.done(&err)

	if err := s.requireTrash(); err != nil {
		return false, err
	}
	if h := s.model.Hooks.BeforeDelete; h != nil {
		allowed, herr := h(ctx, id)
		if herr != nil {
			return false, s.fail(op, herr, "id", id, "stage", "before_delete")
		}
		if !allowed {
			t.veto()
			return false, nil
		}
	}
	res := s.removeQuery(ctx, s.pkEq(id), false)
	if res.Error != nil {
		return false, s.fail(op, res.Error, "id", id)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if h := s.model.Hooks.AfterDelete; h != nil {
		if herr := h(ctx, id); herr != nil {
			s.logger.Warn("After-delete hook failed", "model", s.model.Name, "id", id, "error", herr)
		}
	}
	s.record(ctx, audit.ActionDelete, id, nil, map[string]any{"permanent": true})
	return true, nil
}
